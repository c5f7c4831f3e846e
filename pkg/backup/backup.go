package backup

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"SafeCircle/pkg/scheduler"
	"SafeCircle/pkg/storage"

	"go.uber.org/zap"
)

// Task 一个备份任务
type Task func(ctx context.Context) error

// Runner 按 cron 表达式执行备份任务
type Runner struct {
	cron   *scheduler.Cron
	logger *zap.Logger

	mu      sync.Mutex
	started bool
}

func NewRunner(loc *time.Location, lg *zap.Logger) *Runner {
	if lg == nil {
		lg = zap.NewNop()
	}
	lg = lg.Named("backup")
	return &Runner{cron: scheduler.NewCron(loc, lg), logger: lg}
}

// Schedule 添加任务，失败只记日志，不影响下一次执行
func (r *Runner) Schedule(schedule, name string, task Task) error {
	_, err := r.cron.Add(schedule, scheduler.FuncJob(func(ctx context.Context) {
		if err := RunOnce(ctx, task); err != nil {
			r.logger.Warn("backup failed", zap.String("task", name), zap.Error(err))
			return
		}
		r.logger.Info("backup completed", zap.String("task", name))
	}))
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// RunOnce 直接执行一次
func RunOnce(ctx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("nil backup task")
	}
	return task(ctx)
}

func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		r.started = true
		r.cron.Start()
	}
}

func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		r.started = false
		r.cron.Stop()
	}
}

// SQLitePath 从 DSN 取出数据库文件路径，内存库返回空串
func SQLitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		if strings.Contains(p[i:], "mode=memory") {
			return ""
		}
		p = p[:i]
	}
	if p == "" || strings.HasPrefix(p, ":memory:") {
		return ""
	}
	return p
}

// SQLiteFile 把 SQLite 数据库文件整体上传到存储，键为 backups/sys_backup_YYYYMMDD_HHMMSS.db
func SQLiteFile(path string, store storage.Store, now func() time.Time) Task {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		if path == "" {
			return fmt.Errorf("sqlite database is in memory")
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("error opening source file: %w", err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}
		key := fmt.Sprintf("backups/sys_backup_%s.db", now().Format("20060102_150405"))
		if err := store.Write(ctx, key, f, info.Size(), "application/vnd.sqlite3"); err != nil {
			return fmt.Errorf("failed to upload backup: %w", err)
		}
		return nil
	}
}
