// Package alerting 告警引擎：触发 -> Gate -> 组装 -> 扇出 -> 告警日志。
package alerting

import (
	"context"
	"strings"
	"sync"
	"time"

	"SafeCircle/internal/alertlog"
	"SafeCircle/internal/gate"
	"SafeCircle/internal/geofence"
	"SafeCircle/internal/location"
	"SafeCircle/internal/models"
	"SafeCircle/internal/profile"
	"SafeCircle/internal/session"
	"SafeCircle/internal/trigger"
	"SafeCircle/pkg/config"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/i18n"
	"SafeCircle/pkg/metrics"
	"SafeCircle/pkg/notification"
	"SafeCircle/pkg/scheduler"
	"SafeCircle/pkg/util"

	"go.uber.org/zap"
)

// triggerBuffer 触发通道容量，满了以后新的触发被丢弃并记日志
const triggerBuffer = 64

// Options 引擎依赖。Profiles、Dispatcher、Scheduler 必填，其余可为 nil
type Options struct {
	Config     config.AlertingConfig
	Profiles   *profile.Store
	Provider   location.Provider
	Dispatcher notification.Dispatcher
	Session    *session.Store
	History    *location.History
	Messages   *i18n.I18nSupport
	Scheduler  *scheduler.Scheduler
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	Signals    *util.Signals
	Location   *time.Location
	Clock      trigger.Clock

	// 设备通道，nil 时只能通过 OnMotion / OnButton 注入
	Motion  trigger.MotionSource
	Buttons trigger.ButtonChannel

	// CountdownTick SOS 倒计时每一秒的实际时长，测试可缩短
	CountdownTick time.Duration
}

// Alert 一次触发的处理结果
type Alert struct {
	Trigger  models.EmergencyTrigger `json:"trigger"`
	Decision gate.Decision           `json:"decision"`
	Payload  models.AlertPayload     `json:"payload"`
	Delivery *Delivery               `json:"-"`
}

// Engine 显式构造的告警引擎，没有包级单例
type Engine struct {
	cfg        config.AlertingConfig
	profiles   *profile.Store
	dispatcher notification.Dispatcher
	session    *session.Store
	history    *location.History
	sched      *scheduler.Scheduler
	metrics    *metrics.Metrics
	logger     *zap.Logger
	signals    *util.Signals
	clock      trigger.Clock
	loc        *time.Location

	gate      *gate.Gate
	assembler *Assembler
	fanout    *FanOut
	formatter *Formatter
	alertLog  *alertlog.Log
	geoEval   *geofence.Evaluator
	fences    *geofence.Registry
	shake     *trigger.ShakeDetector
	buttons   *trigger.HardwareButtonAdapter
	motion    trigger.MotionSource
	journey   trigger.JourneyTimer
	checkIn   *trigger.CheckInTimer
	share     trigger.ShareTimer
	countdown *trigger.Countdown
	cron      *scheduler.Cron

	// handleMu 保证 Gate -> 组装 -> 扇出 按触发顺序串行
	handleMu sync.Mutex
	triggers chan models.EmergencyTrigger

	mu            sync.Mutex
	notifications []models.Notification
	recordings    []models.RecordingSession
	recording     *models.RecordingSession
	decoy         models.DecoyInfo
	lastFix       *models.LocationFix
	escort        bool
	siren         bool

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Profiles == nil || opts.Dispatcher == nil || opts.Scheduler == nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, "engine needs profiles, dispatcher and scheduler")
	}
	cfg := opts.Config
	cfg.Normalize()
	ch, err := notification.ParseChannel(cfg.Channel)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeInvalidInput, "dispatch channel")
	}

	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	lg = lg.Named("alerting")
	clock := opts.Clock
	if clock == nil {
		clock = trigger.SystemClock
	}
	signals := opts.Signals
	if signals == nil {
		signals = util.Sig()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	provider := opts.Provider
	if provider == nil {
		provider = location.Unsupported{}
	}
	now := func() time.Time { return time.UnixMilli(clock()) }

	e := &Engine{
		cfg:        cfg,
		profiles:   opts.Profiles,
		dispatcher: opts.Dispatcher,
		session:    opts.Session,
		history:    opts.History,
		sched:      opts.Scheduler,
		metrics:    opts.Metrics,
		logger:     lg,
		signals:    signals,
		clock:      clock,
		loc:        loc,
		motion:     opts.Motion,
		triggers:   make(chan models.EmergencyTrigger, triggerBuffer),
		ctx:        context.Background(),
	}

	e.gate = gate.New(map[models.TriggerSource]time.Duration{
		models.SourceShake:          cfg.ShakeCooldown,
		models.SourceHardwareButton: cfg.ButtonCooldown,
		models.SourceManual:         cfg.ManualCooldown,
		models.SourceJourneyTimeout: cfg.TimerCooldown,
		models.SourceCheckInTimeout: cfg.TimerCooldown,
	})

	e.assembler = NewAssembler(opts.Profiles, provider, cfg.LocationTimeout, cfg.HighAccuracy)
	e.assembler.now = now
	e.assembler.metrics = opts.Metrics
	e.assembler.logger = lg

	e.alertLog = alertlog.New(cfg.AlertLogCap, opts.Session)
	e.fanout = NewFanOut(opts.Dispatcher, opts.Scheduler, e.alertLog, opts.Profiles, FanOutConfig{
		Channel:     ch,
		CountryCode: cfg.CountryCode,
		Stagger:     cfg.Stagger,
		Retries:     cfg.DispatchRetries,
	})
	e.fanout.now = now
	e.fanout.metrics = opts.Metrics
	e.fanout.logger = lg

	e.formatter = NewFormatter(opts.Messages, cfg.Locale, loc)
	e.geoEval = geofence.NewEvaluator()
	var persister geofence.Persister = memoryPersister{}
	if opts.Session != nil {
		persister = opts.Session
	}
	e.fences = geofence.NewRegistry(persister, e.geoEval)
	e.shake = trigger.NewShakeDetector(cfg.ShakeThreshold, cfg.ShakeCooldown, e.Emit)
	if opts.Buttons != nil {
		e.buttons = trigger.NewHardwareButtonAdapter(opts.Buttons, e.Emit, clock)
	}
	e.checkIn = trigger.NewCheckInTimer(loc)
	e.countdown = trigger.NewCountdown(cfg.CountdownSeconds, opts.CountdownTick)
	return e, nil
}

// Load 从会话恢复全部状态
func (e *Engine) Load(ctx context.Context) error {
	if err := e.profiles.Load(ctx); err != nil {
		return errors.Wrap(err, "load profile")
	}
	if err := e.alertLog.Load(ctx); err != nil {
		return errors.Wrap(err, "load alert log")
	}
	if err := e.fences.Load(ctx); err != nil {
		return errors.Wrap(err, "load geofences")
	}
	if e.session == nil {
		return nil
	}

	var journey models.JourneyTracking
	if ok, err := e.session.Get(ctx, session.KeyJourneyTracking, &journey); err == nil && ok {
		e.journey.Restore(journey)
	}
	var checkIn models.CheckInSchedule
	if ok, err := e.session.Get(ctx, session.KeyCheckInSchedule, &checkIn); err == nil && ok {
		e.checkIn.Restore(checkIn)
	}
	var share models.ShareTimer
	if ok, err := e.session.Get(ctx, session.KeyShareTimer, &share); err == nil && ok {
		e.share.Restore(share)
	}
	var armed bool
	if ok, err := e.session.Get(ctx, session.KeySafeMode, &armed); err == nil && ok {
		e.gate.SetArmed(armed)
		e.metrics.SetSafeMode(armed)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	var recordings []models.RecordingSession
	if ok, err := e.session.Get(ctx, session.KeyRecordingSessions, &recordings); err == nil && ok {
		e.recordings = recordings
	}
	var decoy models.DecoyInfo
	if ok, err := e.session.Get(ctx, session.KeyDecoyInfo, &decoy); err == nil && ok {
		e.decoy = decoy
	}
	e.metrics.SetAlertLogSize(e.alertLog.Len())
	return nil
}

// Start 启动事件循环、定时器与设备订阅
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	runCtx := e.ctx
	e.mu.Unlock()

	e.wg.Add(1)
	go e.loop(runCtx)

	e.sched.Every(e.cfg.EvaluatorTick, scheduler.FuncJob(e.Tick))
	e.sched.Every(time.Second, scheduler.FuncJob(e.tickShare))

	if e.cfg.CheckInReminder != "" {
		e.cron = scheduler.NewCron(e.loc, e.logger)
		if _, err := e.cron.Add(e.cfg.CheckInReminder, scheduler.FuncJob(e.remindCheckIn)); err != nil {
			return errors.WrapCode(err, errors.CodeInvalidInput, "check-in reminder schedule")
		}
		e.cron.Start()
	}

	if e.motion != nil {
		e.shake.Start(e.motion)
	}
	if e.buttons != nil {
		if err := e.buttons.Start(); err != nil {
			// 媒体键插件不可用时只能手动触发
			e.logger.Warn("hardware button channel unavailable", zap.Error(err))
		}
	}
	e.logger.Info("engine started",
		zap.Float64("shake_threshold", e.cfg.ShakeThreshold),
		zap.String("channel", string(e.fanout.Channel())),
		zap.Bool("armed", e.gate.Armed()))
	return nil
}

// Stop 停止订阅与事件循环；已发出的意图不会撤回
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	cancel := e.cancel
	e.mu.Unlock()

	e.countdown.Cancel()
	e.shake.Stop()
	if e.buttons != nil {
		_ = e.buttons.Stop()
	}
	if e.cron != nil {
		e.cron.Stop()
	}
	cancel()
	e.wg.Wait()
}

func (e *Engine) runCtx() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

// Emit 适配器的回调，非阻塞
func (e *Engine) Emit(t models.EmergencyTrigger) {
	select {
	case e.triggers <- t:
	default:
		e.logger.Warn("trigger queue full, dropping", zap.String("source", string(t.Source)))
		e.metrics.RecordTrigger(string(t.Source), "overflow")
	}
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-e.triggers:
			if _, err := e.Handle(ctx, t); err != nil && !errors.Is(err, errors.ErrNoContacts) {
				e.logger.Error("handle trigger", zap.String("source", string(t.Source)), zap.Error(err))
			}
		}
	}
}

// Handle 同步处理一次触发。被 Gate 丢弃时 Alert.Decision.Accepted 为 false，err 为 nil
func (e *Engine) Handle(ctx context.Context, t models.EmergencyTrigger) (alert *Alert, err error) {
	e.handleMu.Lock()
	defer e.handleMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("alert flow panic", zap.Any("panic", r), zap.String("source", string(t.Source)))
			err = errors.WithCodef(errors.CodeInternal, "alert flow panic: %v", r)
		}
	}()

	if t.Timestamp == 0 {
		t.Timestamp = e.clock()
	}
	alert = &Alert{Trigger: t}
	alert.Decision = e.gate.Admit(t)
	e.metrics.RecordTrigger(string(t.Source), string(alert.Decision.Reason))
	if !alert.Decision.Accepted {
		e.logger.Debug("trigger dropped", zap.String("source", string(t.Source)), zap.String("reason", string(alert.Decision.Reason)))
		e.signals.Emit(models.SigTriggerDropped, t, string(alert.Decision.Reason))
		return alert, nil
	}

	e.announce(t)
	kind := models.KindFor(t)
	payload, delivery, err := e.raise(ctx, Request{Kind: kind, Source: t.Source, Detail: t.Detail, Group: t.Group})
	alert.Payload = payload
	alert.Delivery = delivery
	return alert, err
}

// announce 来源相关的即时提示
func (e *Engine) announce(t models.EmergencyTrigger) {
	switch t.Source {
	case models.SourceShake:
		e.notify(models.LevelAlert, "NotifyShakeDetected", nil)
	case models.SourceHardwareButton:
		e.notify(models.LevelAlert, "NotifyButtonPressed", nil)
	case models.SourceJourneyTimeout:
		e.notify(models.LevelAlert, "NotifyJourneyOverdue", nil)
		e.persist(session.KeyJourneyTracking, e.journey.State())
	case models.SourceCheckInTimeout:
		e.notify(models.LevelAlert, "NotifyCheckInMissed", nil)
		e.persist(session.KeyCheckInSchedule, e.checkIn.State())
	}
}

// raise 组装并扇出。没有联系人时中止并提示
func (e *Engine) raise(ctx context.Context, req Request) (models.AlertPayload, *Delivery, error) {
	asm, err := e.assembler.Assemble(ctx, req)
	if err != nil {
		if errors.Is(err, errors.ErrNoContacts) {
			e.notify(models.LevelWarning, "NotifyNoContacts", nil)
			e.saveRecord(&models.AlertRecord{Kind: string(req.Kind), Source: string(req.Source), Status: models.AlertStatusAborted})
		}
		return models.AlertPayload{}, nil, err
	}
	if asm.LocationErr != nil {
		e.notify(models.LevelWarning, "NotifyLocationUnavailable", nil)
	} else {
		e.rememberFix(*asm.Fix)
	}

	payload := asm.Payload
	body := e.formatter.Message(payload)
	delivery := e.fanout.Send(ctx, asm.Contacts, string(req.Kind), func(c models.Contact) string { return e.formatter.ForContact(c, body) })

	e.logger.Info("alert issued",
		zap.String("kind", string(req.Kind)),
		zap.String("source", string(req.Source)),
		zap.Int("contacts", len(asm.Contacts)),
		zap.Bool("has_location", payload.HasLocation()))

	e.wg.Add(1)
	go e.finalize(req, payload, delivery)
	return payload, delivery, nil
}

// finalize 等全部意图发出后汇总
func (e *Engine) finalize(req Request, payload models.AlertPayload, d *Delivery) {
	defer e.wg.Done()
	select {
	case <-d.Done():
	case <-e.runCtx().Done():
		return
	}
	results := d.Results()
	sent := d.Sent()

	rec := &models.AlertRecord{
		Kind:         string(req.Kind),
		Source:       string(req.Source),
		Status:       models.AlertStatusDispatched,
		LocationText: payload.LocationText,
		Recipients:   sent,
		Failed:       len(results) - sent,
	}
	e.saveRecord(rec)

	data := map[string]interface{}{"Count": sent, "Channel": channelLabel(e.fanout.Channel())}
	switch req.Kind {
	case models.KindSilent:
		e.notify(models.LevelInfo, "NotifySilentSent", data)
	case models.KindGroup:
		e.notify(models.LevelInfo, "NotifyGroupSent", data)
	case models.KindTest:
		e.notify(models.LevelInfo, "NotifyTestSent", data)
	case models.KindShare:
		// 分享类消息由调用方给出提示
	default:
		e.notify(models.LevelInfo, "NotifyAlertsSent", data)
	}
	e.signals.Emit(models.SigAlertIssued, *rec, e.alertLog.Entries())
}

func (e *Engine) saveRecord(rec *models.AlertRecord) {
	if e.history == nil {
		return
	}
	if err := e.history.SaveAlert(context.Background(), rec); err != nil {
		e.logger.Warn("save alert record", zap.Error(err))
	}
}

func channelLabel(ch notification.Channel) string {
	switch ch {
	case notification.ChannelWhatsApp:
		return "WhatsApp"
	case notification.ChannelSMS:
		return "SMS"
	}
	return string(ch)
}

// TriggerAlert 用户手动发出指定类型的告警（silent/group/panic/test/sos），不经过倒计时
func (e *Engine) TriggerAlert(ctx context.Context, kind models.AlertKind, detail string) (*Alert, error) {
	if kind == "" {
		kind = models.KindSOS
	}
	if !kind.Valid() || kind == models.KindShare {
		return nil, errors.ErrInvalidInput.WithContext("kind", string(kind))
	}
	return e.Handle(ctx, models.EmergencyTrigger{Source: models.SourceManual, Timestamp: e.clock(), Kind: kind, Detail: detail})
}

// TriggerGroupAlert 只发给 Group 匹配的联系人，group 为空时发给全部
func (e *Engine) TriggerGroupAlert(ctx context.Context, group, detail string) (*Alert, error) {
	return e.Handle(ctx, models.EmergencyTrigger{
		Source:    models.SourceManual,
		Timestamp: e.clock(),
		Kind:      models.KindGroup,
		Detail:    detail,
		Group:     strings.TrimSpace(group),
	})
}

// SetSafeMode 布防后 shake 与 alert 围栏才会触发
func (e *Engine) SetSafeMode(ctx context.Context, on bool) {
	e.gate.SetArmed(on)
	e.metrics.SetSafeMode(on)
	e.persist(session.KeySafeMode, on)
	if on {
		e.notify(models.LevelInfo, "NotifySafeModeOn", nil)
	} else {
		e.notify(models.LevelInfo, "NotifySafeModeOff", nil)
	}
}

func (e *Engine) SafeMode() bool { return e.gate.Armed() }

// SetShakeThreshold 运行时调整灵敏度，超出范围的值被截断
func (e *Engine) SetShakeThreshold(v float64) float64 {
	if v < config.MinShakeThreshold {
		v = config.MinShakeThreshold
	}
	if v > config.MaxShakeThreshold {
		v = config.MaxShakeThreshold
	}
	e.shake.SetThreshold(v)
	return v
}

func (e *Engine) ShakeThreshold() float64 { return e.shake.Threshold() }

// PressSOS 开始倒计时，归零后拨打报警电话并发出 SOS。倒计时中再次按下被忽略
func (e *Engine) PressSOS() bool {
	started := e.countdown.Start(
		func(remaining int) {
			e.signals.Emit(models.SigSOSCountdown, remaining)
		},
		e.fireSOS,
	)
	if started {
		e.notify(models.LevelAlert, "NotifySOSCountdown", nil)
	}
	return started
}

// CancelSOS 倒计时结束前取消
func (e *Engine) CancelSOS() bool {
	if !e.countdown.Cancel() {
		return false
	}
	e.notify(models.LevelInfo, "NotifySOSCancelled", nil)
	e.saveRecord(&models.AlertRecord{Kind: string(models.KindSOS), Source: string(models.SourceManual), Status: models.AlertStatusCancelled})
	return true
}

func (e *Engine) SOSPending() bool { return e.countdown.Running() }

func (e *Engine) fireSOS() {
	ctx := e.runCtx()
	e.notify(models.LevelAlert, "NotifySOSActivated", nil)
	num := map[string]interface{}{"Number": e.cfg.EmergencyNumber}
	if err := e.dispatcher.Dispatch(ctx, notification.ChannelTel, e.cfg.EmergencyNumber, ""); err != nil {
		e.logger.Error("emergency call", zap.Error(err))
		e.notify(models.LevelWarning, "NotifyCallFailed", num)
	} else {
		e.notify(models.LevelAlert, "NotifyCallingPolice", num)
	}
	e.Emit(models.EmergencyTrigger{Source: models.SourceManual, Timestamp: e.clock(), Kind: models.KindSOS})
}

// AlertLog 最新在前
func (e *Engine) AlertLog() []models.AlertLogEntry { return e.alertLog.Entries() }

// ClearAlertLog 只支持整体清空
func (e *Engine) ClearAlertLog(ctx context.Context) error {
	err := e.alertLog.Clear(ctx)
	e.metrics.SetAlertLogSize(0)
	return err
}

// Reset 清空会话：状态、日志、围栏、冷却记录
func (e *Engine) Reset(ctx context.Context) error {
	e.countdown.Cancel()
	e.gate.Reset()
	e.gate.SetArmed(false)
	e.journey.End()
	e.checkIn.Restore(models.CheckInSchedule{})
	e.share.Stop()
	e.alertLog.Restore(nil)

	e.mu.Lock()
	e.notifications = nil
	e.recordings = nil
	e.recording = nil
	e.decoy = models.DecoyInfo{}
	e.lastFix = nil
	e.escort = false
	e.mu.Unlock()

	for _, g := range e.fences.List() {
		_ = e.fences.Delete(ctx, g.ID)
	}
	e.metrics.Reset()
	e.metrics.SetSafeMode(false)
	if e.history != nil {
		if err := e.history.Clear(ctx); err != nil {
			return err
		}
	}
	if e.session != nil {
		if err := e.session.Reset(ctx); err != nil {
			return err
		}
	}
	return e.profiles.Replace(ctx, models.Profile{})
}

func (e *Engine) persist(key string, v any) {
	if e.session == nil {
		return
	}
	if err := e.session.Put(context.Background(), key, v); err != nil {
		e.logger.Warn("persist session state", zap.String("key", key), zap.Error(err))
	}
}

// memoryPersister 没有会话存储时围栏只在内存中
type memoryPersister struct{}

func (memoryPersister) Put(context.Context, string, any) error         { return nil }
func (memoryPersister) Get(context.Context, string, any) (bool, error) { return false, nil }
