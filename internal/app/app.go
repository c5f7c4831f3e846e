// Package app 组装引擎、设备通道、HTTP 服务与周边基础设施。
package app

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"SafeCircle/internal/alerting"
	"SafeCircle/internal/capability"
	"SafeCircle/internal/device"
	"SafeCircle/internal/export"
	handlers "SafeCircle/internal/handler"
	"SafeCircle/internal/listeners"
	"SafeCircle/internal/location"
	"SafeCircle/internal/models"
	"SafeCircle/internal/profile"
	"SafeCircle/internal/session"
	"SafeCircle/pkg/backup"
	"SafeCircle/pkg/cache"
	"SafeCircle/pkg/config"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/i18n"
	"SafeCircle/pkg/metrics"
	"SafeCircle/pkg/middleware"
	"SafeCircle/pkg/notification"
	"SafeCircle/pkg/scheduler"
	"SafeCircle/pkg/sse"
	"SafeCircle/pkg/storage"
	"SafeCircle/pkg/util"
	"SafeCircle/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// App 一个进程内的完整服务
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	cache    cache.Cache
	sched    *scheduler.Scheduler
	signals  *util.Signals
	devices  *websocket.Hub
	bridge   *device.Bridge
	events   *sse.Hub
	metrics  *metrics.Metrics
	profiles *profile.Store
	history  *location.History
	engine   *alerting.Engine
	router   *gin.Engine
	backups  *backup.Runner

	closers []func() error
}

// New 按配置构建全部组件，不启动任何后台任务
func New(cfg *config.Config, lg *zap.Logger) (*App, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: lg, signals: util.NewSignals(), sched: scheduler.New()}
	built := false
	defer func() {
		if !built {
			a.Close()
		}
	}()

	var err error
	if a.cache, err = cache.NewCache(cfg.Cache); err != nil {
		return nil, errors.Wrap(err, "init cache")
	}
	a.closers = append(a.closers, a.cache.Close)
	sess := session.New(a.cache, 0)
	a.profiles = profile.New(sess)

	db, err := util.InitDatabase(cfg.DBDriver, cfg.DSN, cfg.Mode == "development" && cfg.Log.Level == "debug")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	a.history = location.NewHistory(db)
	if err = a.history.AutoMigrate(); err != nil {
		return nil, errors.Wrap(err, "migrate history")
	}

	a.metrics = metrics.NewMetrics()
	metrics.SetGlobal(a.metrics)

	a.devices = websocket.NewHub(websocket.LoadConfigFromEnv())
	a.devices.OnCountChange(func(delta int) { a.metrics.AddClients("websocket", delta) })
	a.closers = append(a.closers, func() error { a.devices.Close(); return nil })
	a.bridge = device.NewBridge(a.devices, lg)

	providers := location.Chain{a.bridge}
	if cfg.GeoIPDB != "" {
		geo, closeGeo, gerr := location.OpenGeoIP(cfg.GeoIPDB)
		if gerr != nil {
			lg.Warn("geoip database unavailable", zap.String("path", cfg.GeoIPDB), zap.Error(gerr))
		} else {
			providers = append(providers, geo)
			a.closers = append(a.closers, closeGeo)
		}
	}

	msgs, err := i18n.NewI18nSupport(cfg.Alerting.Locale)
	if err != nil {
		return nil, errors.Wrap(err, "load messages")
	}

	a.engine, err = alerting.NewEngine(alerting.Options{
		Config:     cfg.Alerting,
		Profiles:   a.profiles,
		Provider:   providers,
		Dispatcher: notification.NewIntentDispatcher(a.bridge),
		Session:    sess,
		History:    a.history,
		Messages:   msgs,
		Scheduler:  a.sched,
		Metrics:    a.metrics,
		Logger:     lg,
		Signals:    a.signals,
		Motion:     a.bridge,
		Buttons:    a.bridge,
	})
	if err != nil {
		return nil, err
	}

	a.events = sse.NewHub(0)
	a.events.OnCountChange(func(delta int) { a.metrics.AddClients("sse", delta) })

	var store storage.Store
	if cfg.ExportEnabled {
		store = storage.New(cfg.Storage)
	}
	exporter := export.New(a.history, a.engine, store, lg)
	if cfg.BackupSchedule != "" && store != nil {
		if err = a.scheduleBackups(exporter, store); err != nil {
			return nil, err
		}
	}

	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimit != "" {
		rl.Rate = cfg.RateLimit
	}
	limiter := middleware.NewRateLimiter(rl, nil).WithObserver(middleware.NewPrometheusObserver(a.metrics))

	var lang *i18n.I18nSupport
	if cfg.LanguageEnabled {
		lang = msgs
	}

	if cfg.Mode != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	a.router = gin.New()
	a.router.Use(gin.Recovery())
	handlers.NewHandlers(handlers.Deps{
		Engine:      a.engine,
		Profiles:    a.profiles,
		History:     a.history,
		Exporter:    exporter,
		Prober:      capability.NewProber(a.devices),
		Events:      a.events,
		Devices:     a.devices,
		Metrics:     a.metrics,
		Limiter:     limiter,
		I18n:        lang,
		Logger:      lg,
		APIPrefix:   cfg.APIPrefix,
		MetricsPath: cfg.MetricsPath,
	}).Register(a.router)
	built = true
	return a, nil
}

// scheduleBackups 定期归档导出包；文件型 SQLite 同时上传数据库文件
func (a *App) scheduleBackups(exporter *export.Exporter, store storage.Store) error {
	a.backups = backup.NewRunner(time.Local, a.logger)
	err := a.backups.Schedule(a.cfg.BackupSchedule, "export", func(ctx context.Context) error {
		_, err := exporter.Save(ctx)
		return err
	})
	if err != nil {
		return errors.WrapCode(err, errors.CodeInvalidInput, "backup schedule")
	}
	if a.cfg.DBDriver == "" || a.cfg.DBDriver == "sqlite" {
		if path := backup.SQLitePath(a.cfg.DSN); path != "" {
			if err := a.backups.Schedule(a.cfg.BackupSchedule, "sqlite", backup.SQLiteFile(path, store, nil)); err != nil {
				return errors.WrapCode(err, errors.CodeInvalidInput, "backup schedule")
			}
		}
	}
	return nil
}

// Engine 告警引擎
func (a *App) Engine() *alerting.Engine { return a.engine }

// Router HTTP 路由
func (a *App) Router() *gin.Engine { return a.router }

// Start 恢复会话状态并启动引擎与事件转发
func (a *App) Start(ctx context.Context) error {
	if err := a.engine.Load(ctx); err != nil {
		return err
	}
	stopListeners := listeners.InitAlertListeners(a.signals, a.events, a.bridge, a.logger)
	a.closers = append(a.closers, func() error { stopListeners(); return nil })

	unsubscribe := a.bridge.SubscribeLocation(func(fix models.LocationFix) {
		if _, err := a.engine.OnLocation(ctx, fix); err != nil {
			a.logger.Debug("device fix rejected", zap.Error(err))
		}
	})
	a.closers = append(a.closers, func() error { unsubscribe(); return nil })

	if a.backups != nil {
		a.backups.Start()
		a.closers = append(a.closers, func() error { a.backups.Stop(); return nil })
	}
	return a.engine.Start(ctx)
}

// Run 启动 HTTP 服务，ctx 取消后优雅退出
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", a.cfg.Addr), zap.String("prefix", a.cfg.APIPrefix))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "http server")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Close 停止引擎并按创建的逆序释放资源
func (a *App) Close() {
	if a.engine != nil {
		a.engine.Stop()
	}
	a.sched.Stop()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close resource", zap.Error(err))
		}
	}
	a.closers = nil
}
