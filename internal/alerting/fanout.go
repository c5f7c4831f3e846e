package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SafeCircle/internal/alertlog"
	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/metrics"
	"SafeCircle/pkg/notification"
	"SafeCircle/pkg/scheduler"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ContactMarker 发出后回写 LastAlerted
type ContactMarker interface {
	MarkAlerted(ctx context.Context, contactID string, at int64) error
}

// FanOutConfig 扇出参数
type FanOutConfig struct {
	Channel     notification.Channel
	CountryCode string
	Stagger     time.Duration
	Retries     int
	RetryBase   time.Duration
}

// Result 单个联系人的结果
type Result struct {
	Contact models.Contact `json:"contact"`
	Address string         `json:"address"`
	Outcome models.Outcome `json:"outcome"`
	Err     error          `json:"-"`
	At      int64          `json:"at"`
}

// Delivery 一次扇出，可等待全部发出
type Delivery struct {
	batch    *scheduler.Batch
	inflight sync.WaitGroup
	done     chan struct{}
	mu       sync.Mutex
	results  []Result
	filled   []bool
}

// Wait 阻塞到所有意图发出（含重试），返回按联系人顺序排列的结果
func (d *Delivery) Wait() []Result {
	<-d.done
	return d.Results()
}

// Done 批次结束且所有重试完成后关闭
func (d *Delivery) Done() <-chan struct{} { return d.done }

func (d *Delivery) Total() int { return d.batch.Total() }

// Results 已完成的结果
func (d *Delivery) Results() []Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Result, 0, len(d.results))
	for i, r := range d.results {
		if d.filled[i] {
			out = append(out, r)
		}
	}
	return out
}

func (d *Delivery) set(i int, r Result) {
	d.mu.Lock()
	d.results[i] = r
	d.filled[i] = true
	d.mu.Unlock()
}

// Sent 成功发出的数量
func (d *Delivery) Sent() int {
	n := 0
	for _, r := range d.Results() {
		if r.Outcome == models.OutcomeSent {
			n++
		}
	}
	return n
}

// FanOut 第 i 个联系人在 i*Stagger 之后发出；单个联系人失败只记录，不影响其他人。
// 批次的时间槽只负责开始投递，重试在槽外进行，不会推迟后面的联系人
type FanOut struct {
	dispatcher notification.Dispatcher
	sched      *scheduler.Scheduler
	log        *alertlog.Log
	marker     ContactMarker
	cfg        FanOutConfig
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewFanOut(d notification.Dispatcher, sched *scheduler.Scheduler, log *alertlog.Log, marker ContactMarker, cfg FanOutConfig) *FanOut {
	if cfg.Channel == "" {
		cfg.Channel = notification.ChannelWhatsApp
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	return &FanOut{
		dispatcher: d,
		sched:      sched,
		log:        log,
		marker:     marker,
		cfg:        cfg,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
}

// Channel 当前扇出通道
func (f *FanOut) Channel() notification.Channel { return f.cfg.Channel }

// Send logType 写入告警日志的 Type；render 为每个联系人生成正文
func (f *FanOut) Send(ctx context.Context, contacts []models.Contact, logType string, render func(models.Contact) string) *Delivery {
	d := &Delivery{
		done:    make(chan struct{}),
		results: make([]Result, len(contacts)),
		filled:  make([]bool, len(contacts)),
	}
	jobs := make([]scheduler.Job, len(contacts))
	for i, c := range contacts {
		i, c := i, c
		jobs[i] = scheduler.FuncJob(func(ctx context.Context) {
			d.inflight.Add(1)
			go func() {
				defer d.inflight.Done()
				d.set(i, f.deliver(ctx, c, logType, render))
			}()
		})
	}

	start := f.now()
	d.batch = f.sched.Stagger(ctx, f.cfg.Stagger, jobs...)
	go func() {
		<-d.batch.Done()
		d.inflight.Wait()
		close(d.done)
		f.metrics.RecordFanOut(logType, f.now().Sub(start))
	}()
	return d
}

func (f *FanOut) deliver(ctx context.Context, c models.Contact, logType string, render func(models.Contact) string) (res Result) {
	res = Result{Contact: c, Address: notification.NormalizePhone(c.Phone, f.cfg.CountryCode)}
	defer func() {
		// render 或 dispatcher panic 都记为失败
		if r := recover(); r != nil {
			res.Outcome = models.OutcomeFailed
			res.Err = errors.WithCodef(errors.CodeDispatchFailed, "dispatch panic: %v", r)
		}
		res.At = f.now().UnixMilli()
		f.record(ctx, logType, res)
	}()

	if res.Address == "" {
		res.Outcome = models.OutcomeUnavailable
		res.Err = errors.ErrDispatchFailed.WithContext("contact", c.ID)
		return res
	}

	body := render(c)
	err := f.dispatchWithRetry(ctx, res.Address, body)
	if err != nil {
		res.Outcome = models.OutcomeFailed
		res.Err = errors.WrapCode(err, errors.CodeDispatchFailed, fmt.Sprintf("dispatch to %s", c.ID))
		return res
	}
	res.Outcome = models.OutcomeSent
	return res
}

func (f *FanOut) dispatchWithRetry(ctx context.Context, address, body string) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = f.cfg.RetryBase
	exp.MaxInterval = 4 * f.cfg.RetryBase
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := f.cfg.Retries
	if retries < 0 {
		retries = 0
	}
	var b backoff.BackOff = backoff.WithMaxRetries(exp, uint64(retries))
	b = backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		return f.dispatcher.Dispatch(ctx, f.cfg.Channel, address, body)
	}, b)
}

// record 写日志；只有成功发出的联系人更新 LastAlerted
func (f *FanOut) record(ctx context.Context, logType string, res Result) {
	f.metrics.RecordDispatch(string(f.cfg.Channel), string(res.Outcome))

	entry := models.AlertLogEntry{
		ContactID:   res.Contact.ID,
		ContactName: res.Contact.Name,
		Timestamp:   res.At,
		Type:        logType,
		Outcome:     res.Outcome,
	}
	if f.log != nil {
		if err := f.log.Append(ctx, entry); err != nil {
			f.logger.Warn("append alert log", zap.Error(err))
		}
		f.metrics.SetAlertLogSize(f.log.Len())
	}

	if res.Outcome != models.OutcomeSent {
		f.logger.Warn("dispatch failed", zap.String("contact", res.Contact.ID),
			zap.String("outcome", string(res.Outcome)), zap.Error(res.Err))
		return
	}
	if f.marker != nil {
		if err := f.marker.MarkAlerted(ctx, res.Contact.ID, res.At); err != nil {
			f.logger.Warn("mark alerted", zap.String("contact", res.Contact.ID), zap.Error(err))
		}
	}
}
