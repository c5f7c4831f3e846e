package handlers

import (
	"SafeCircle/internal/alerting"
	"SafeCircle/internal/capability"
	"SafeCircle/internal/export"
	"SafeCircle/internal/location"
	"SafeCircle/internal/profile"
	"SafeCircle/pkg/i18n"
	"SafeCircle/pkg/metrics"
	"SafeCircle/pkg/middleware"
	"SafeCircle/pkg/sse"
	"SafeCircle/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps Engine 与 Profiles 必填
type Deps struct {
	Engine   *alerting.Engine
	Profiles *profile.Store
	History  *location.History
	Exporter *export.Exporter
	Prober   *capability.Prober
	Events   *sse.Hub
	Devices  *websocket.Hub
	Metrics  *metrics.Metrics
	Limiter  *middleware.RateLimiter
	I18n     *i18n.I18nSupport
	Logger   *zap.Logger

	APIPrefix   string
	MetricsPath string
}

type Handlers struct {
	engine   *alerting.Engine
	profiles *profile.Store
	history  *location.History
	exporter *export.Exporter
	prober   *capability.Prober
	events   *sse.Hub
	devices  *websocket.Hub
	metrics  *metrics.Metrics
	limiter  *middleware.RateLimiter
	i18n     *i18n.I18nSupport
	logger   *zap.Logger

	prefix      string
	metricsPath string
}

func NewHandlers(d Deps) *Handlers {
	lg := d.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	prefix := d.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}
	return &Handlers{
		engine:      d.Engine,
		profiles:    d.Profiles,
		history:     d.History,
		exporter:    d.Exporter,
		prober:      d.Prober,
		events:      d.Events,
		devices:     d.Devices,
		metrics:     d.Metrics,
		limiter:     d.Limiter,
		i18n:        d.I18n,
		logger:      lg.Named("handler"),
		prefix:      prefix,
		metricsPath: d.MetricsPath,
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	engine.Use(middleware.AccessLogMiddleware(h.logger))
	if h.metrics != nil {
		engine.Use(metrics.MonitorMiddleware(h.metrics))
		if h.metricsPath != "" {
			h.metrics.RegisterRoutes(engine, h.metricsPath)
		}
	}
	if h.devices != nil {
		websocket.RegisterRoutes(engine, websocket.NewHandler(h.devices))
	}

	r := engine.Group(h.prefix)
	if h.limiter != nil {
		r.Use(h.limiter.Middleware())
	}
	if h.i18n != nil {
		r.Use(middleware.LanguageMiddleware(h.i18n))
	}

	h.registerSystemRoutes(r)
	h.registerProfileRoutes(r)
	h.registerAlertRoutes(r)
	h.registerSensorRoutes(r)
	h.registerGeofenceRoutes(r)
	h.registerFeatureRoutes(r)
	h.registerHistoryRoutes(r)
}

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	system := r.Group("system")
	{
		system.GET("/health", h.HealthCheck)

		system.GET("/capabilities", h.handleCapabilities)

		system.POST("/rate-limiter/config", h.UpdateRateLimiterConfig)

		system.POST("/reset", h.handleReset)
	}
	r.GET("/docs", h.handleDocs)

	r.GET("/events", h.handleEvents)

	r.GET("/notifications", h.handleNotifications)
}

func (h *Handlers) registerProfileRoutes(r *gin.RouterGroup) {
	p := r.Group("profile")
	{
		p.GET("", h.handleGetProfile)

		p.PUT("/name", h.handleSetName)

		p.POST("/contacts", h.handleAddContact)

		p.DELETE("/contacts/:id", h.handleRemoveContact)
	}
}

func (h *Handlers) registerAlertRoutes(r *gin.RouterGroup) {
	idem := middleware.IdempotencyMiddleware(middleware.IdempotencyConfig{})

	alerts := r.Group("alerts")
	{
		alerts.POST("", idem, h.handleTriggerAlert)

		alerts.GET("/log", h.handleAlertLog)

		alerts.DELETE("/log", h.handleClearAlertLog)

		alerts.GET("/records", h.handleAlertRecords)
	}

	sos := r.Group("sos")
	{
		sos.POST("/press", idem, h.handlePressSOS)

		sos.POST("/cancel", h.handleCancelSOS)

		sos.GET("", h.handleSOSStatus)
	}

	settings := r.Group("settings")
	{
		settings.GET("", h.handleGetSettings)

		settings.PUT("/safe-mode", h.handleSetSafeMode)

		settings.PUT("/shake-threshold", h.handleSetShakeThreshold)
	}
}

// HTTP 方式上报传感器数据，没有设备通道的客户端使用
func (h *Handlers) registerSensorRoutes(r *gin.RouterGroup) {
	sensors := r.Group("sensors")
	{
		sensors.POST("/motion", h.handleMotion)

		sensors.POST("/button", h.handleButton)

		sensors.POST("/location", h.handleLocation)

		sensors.GET("/location", h.handleLastLocation)
	}
}

func (h *Handlers) registerGeofenceRoutes(r *gin.RouterGroup) {
	g := r.Group("geofences")
	{
		g.GET("", h.handleListGeofences)

		g.POST("", h.handleCreateGeofence)

		g.PUT("/:id/toggle", h.handleToggleGeofence)

		g.DELETE("/:id", h.handleDeleteGeofence)
	}
}

func (h *Handlers) registerFeatureRoutes(r *gin.RouterGroup) {
	journey := r.Group("journey")
	{
		journey.GET("", h.handleGetJourney)

		journey.POST("/start", h.handleStartJourney)

		journey.POST("/end", h.handleEndJourney)
	}

	checkIn := r.Group("checkin")
	{
		checkIn.GET("", h.handleGetCheckIn)

		checkIn.POST("/schedule", h.handleScheduleCheckIn)

		checkIn.POST("", h.handlePerformCheckIn)

		checkIn.DELETE("", h.handleCancelCheckIn)
	}

	share := r.Group("share")
	{
		share.POST("/location", h.handleShareLocation)

		share.GET("/timer", h.handleGetShareTimer)

		share.POST("/timer", h.handleStartShareTimer)

		share.DELETE("/timer", h.handleStopShareTimer)

		share.PUT("/walk", h.handleWalkWithMe)
	}

	rec := r.Group("recordings")
	{
		rec.GET("", h.handleListRecordings)

		rec.POST("/start", h.handleStartRecording)

		rec.POST("/stop", h.handleStopRecording)
	}

	decoy := r.Group("decoy")
	{
		decoy.GET("", h.handleGetDecoy)

		decoy.PUT("", h.handleSetDecoy)

		decoy.POST("/fake-call", h.handleFakeCall)

		decoy.DELETE("/fake-call", h.handleEndFakeCall)

		decoy.POST("/siren", h.handleSiren)

		decoy.POST("/flash", h.handleFlash)
	}
}

func (h *Handlers) registerHistoryRoutes(r *gin.RouterGroup) {
	hist := r.Group("history")
	{
		hist.GET("/locations", h.handleRecentLocations)

		hist.GET("/routes", h.handleListRoutes)

		hist.POST("/routes", h.handleSaveRoute)

		hist.DELETE("/routes/:id", h.handleDeleteRoute)
	}

	exp := r.Group("export")
	{
		exp.GET("", h.handleExportDownload)

		exp.POST("", h.handleExportArchive)
	}
}
