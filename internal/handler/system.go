package handlers

import (
	"net/http"
	"time"

	"SafeCircle/pkg/middleware"
	"SafeCircle/pkg/response"
	"SafeCircle/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UpdateRateLimiterConfig 更新限流配置
func (h *Handlers) UpdateRateLimiterConfig(c *gin.Context) {
	if h.limiter == nil {
		response.Fail(c, "rate limiter disabled", nil)
		return
	}
	cfg := middleware.DefaultRateLimiterConfig()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	h.limiter.UpdateConfig(cfg)
	response.Success(c, "rate limiter config updated", nil)
}

// HealthCheck 引擎总是可用；没有设备连接时为 degraded
func (h *Handlers) HealthCheck(c *gin.Context) {
	status := "healthy"
	devices := 0
	if h.devices != nil {
		devices = int(h.devices.GetConnectionCount())
	}
	if devices == 0 {
		status = "degraded"
	}
	sseClients := 0
	if h.events != nil {
		sseClients = h.events.ClientCount()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"safeMode":   h.engine.SafeMode(),
		"devices":    devices,
		"sseClients": sseClients,
		"sosPending": h.engine.SOSPending(),
		"timestamp":  time.Now().Unix(),
	})
}

func (h *Handlers) handleCapabilities(c *gin.Context) {
	deviceID := c.Query(websocket.QueryDeviceID)
	if deviceID == "" {
		deviceID = c.GetHeader(websocket.HeaderDeviceID)
	}
	report := h.prober.Probe(c.GetHeader("User-Agent"), deviceID)
	response.Success(c, "", gin.H{"report": report, "hidden": report.Hidden()})
}

func (h *Handlers) handleReset(c *gin.Context) {
	if err := h.engine.Reset(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "session cleared", nil)
}

// handleEvents SSE 推送提示与告警事件，客户端 ID 取自 ?client=
func (h *Handlers) handleEvents(c *gin.Context) {
	if h.events == nil {
		c.Status(http.StatusNotFound)
		return
	}
	id := c.Query("client")
	if id == "" {
		id = uuid.NewString()
	}
	h.events.Serve(c, id)
}

func (h *Handlers) handleNotifications(c *gin.Context) {
	response.Success(c, "", h.engine.Notifications())
}
