package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type Job interface{ Run(ctx context.Context) }

type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

// Scheduler 所有任务共享一个根 context，Stop 后不再触发新任务
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// Stop 取消所有循环任务并等待它们退出
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) Every(d time.Duration, job Job) { s.spawn(func() { s.loopEvery(d, job) }) }

func (s *Scheduler) DailyAt(hh, mm int, job Job) { s.spawn(func() { s.loopDaily(hh, mm, job) }) }

func (s *Scheduler) OnceAfter(d time.Duration, job Job) { s.spawn(func() { s.onceAfter(d, job) }) }

func (s *Scheduler) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Scheduler) loopEvery(d time.Duration, job Job) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			safeRun(s.ctx, job)
		}
	}
}

func (s *Scheduler) loopDaily(hh, mm int, job Job) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(next.Sub(now)):
			safeRun(s.ctx, job)
		}
	}
}

func (s *Scheduler) onceAfter(d time.Duration, job Job) {
	select {
	case <-s.ctx.Done():
		return
	case <-time.After(d):
		safeRun(s.ctx, job)
	}
}

// Timer 可取消的一次性任务
type Timer struct {
	t     *time.Timer
	state atomic.Int32 // 0 pending, 1 fired, 2 stopped
}

// AfterFunc d 之后执行 job；在触发前调用 Stop 可以保证 job 永远不会运行
func (s *Scheduler) AfterFunc(d time.Duration, job Job) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		if !tm.state.CompareAndSwap(0, 1) {
			return
		}
		if s.ctx.Err() != nil {
			return
		}
		safeRun(s.ctx, job)
	})
	return tm
}

// Stop 返回 true 表示任务尚未开始且已被取消
func (t *Timer) Stop() bool {
	if !t.state.CompareAndSwap(0, 2) {
		return false
	}
	t.t.Stop()
	return true
}

// Fired 任务是否已经开始执行
func (t *Timer) Fired() bool { return t.state.Load() == 1 }

// Batch 一组按固定间隔依次发出的任务
type Batch struct {
	done   chan struct{}
	issued atomic.Int32
	total  int
}

// Done 所有任务发出后关闭
func (b *Batch) Done() <-chan struct{} { return b.done }

// Wait 阻塞到所有任务发出，返回实际发出的数量
func (b *Batch) Wait() int {
	<-b.done
	return int(b.issued.Load())
}

// Issued 当前已发出的任务数
func (b *Batch) Issued() int { return int(b.issued.Load()) }

// Total 批次任务总数
func (b *Batch) Total() int { return b.total }

// Stagger 第 i 个任务在 i*delay 之后执行，任务之间串行。
// 批次一旦开始只受 Scheduler.Stop 影响，调用方的 ctx 取消不会中断已开始的批次。
func (s *Scheduler) Stagger(ctx context.Context, delay time.Duration, jobs ...Job) *Batch {
	b := &Batch{done: make(chan struct{}), total: len(jobs)}
	runCtx := context.WithoutCancel(ctx)
	s.spawn(func() {
		defer close(b.done)
		start := time.Now()
		for i, job := range jobs {
			if wait := time.Until(start.Add(time.Duration(i) * delay)); wait > 0 {
				t := time.NewTimer(wait)
				select {
				case <-s.ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			} else if s.ctx.Err() != nil {
				return
			}
			safeRun(runCtx, job)
			b.issued.Add(1)
		}
	})
	return b
}

// safeRun 单个任务 panic 不影响调度循环
func safeRun(ctx context.Context, job Job) {
	defer func() { _ = recover() }()
	job.Run(ctx)
}
