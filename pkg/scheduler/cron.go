package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cron robfig/cron 包装，任务 panic 由 Recover 链兜底
type Cron struct {
	c   *cron.Cron
	loc *time.Location
}

// zapCronLogger 把 cron 内部日志接到 zap
type zapCronLogger struct{ lg *zap.Logger }

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.lg.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.lg.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

func NewCron(loc *time.Location, lg *zap.Logger) *Cron {
	if loc == nil {
		loc = time.Local
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	l := zapCronLogger{lg: lg.Named("cron")}
	c := cron.New(cron.WithLocation(loc), cron.WithLogger(l), cron.WithChain(cron.Recover(l)))
	return &Cron{c: c, loc: loc}
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { ctx := cr.c.Stop(); <-ctx.Done() }

func (cr *Cron) Add(expr string, job Job) (cron.EntryID, error) {
	return cr.c.AddFunc(expr, func() { job.Run(context.Background()) })
}

func (cr *Cron) Remove(id cron.EntryID) { cr.c.Remove(id) }

func (cr *Cron) Entries() []cron.Entry { return cr.c.Entries() }
