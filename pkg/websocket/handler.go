package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler 设备通道 HTTP 入口
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes 统一注册路由
func RegisterRoutes(r gin.IRoutes, handler *Handler) {
	r.GET(RouteWebSocket, handler.HandleWebSocket)
	r.GET(RouteWebSocketStats, handler.GetStats)
	r.GET(RouteWebSocketHealth, handler.HealthCheck)
}

// HandleWebSocket 设备 ID 取自查询参数或请求头，都没有时生成一个
func (h *Handler) HandleWebSocket(c *gin.Context) {
	deviceID := strings.TrimSpace(c.Query(QueryDeviceID))
	if deviceID == "" {
		deviceID = strings.TrimSpace(c.GetHeader(HeaderDeviceID))
	}
	if deviceID == "" {
		deviceID = "device_" + uuid.NewString()
	}
	HandleWebSocket(h.hub, c.Writer, c.Request, deviceID)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := GetConfigSummary(h.hub.config)
	stats["total_connections"] = h.hub.GetConnectionCount()
	stats["devices"] = h.hub.Devices()
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if err := h.hub.ctx.Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"error":   "设备通道已关闭",
			"details": err.Error(),
		})
		return
	}
	total := h.hub.GetConnectionCount()
	status := "healthy"
	if total == 0 {
		// 没有设备时传感器与意图都不可用
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            status,
		"total_connections": total,
		"max_connections":   h.hub.config.MaxConnections,
		"timestamp":         time.Now().Unix(),
	})
}
