package handlers

import (
	"context"
	"strconv"

	"SafeCircle/internal/alerting"
	"SafeCircle/internal/location"
	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/response"

	"github.com/gin-gonic/gin"
)

// detached 告警的分批发送要比请求活得久；保留请求方 IP 供 GeoIP 兜底定位
func detached(c *gin.Context) context.Context {
	ctx := context.WithoutCancel(c.Request.Context())
	return location.WithClientIP(ctx, c.ClientIP())
}

type triggerAlertRequest struct {
	Kind   models.AlertKind `json:"kind"`
	Detail string           `json:"detail"`
	// Group 仅 kind=group 时有效
	Group string `json:"group"`
}

type deliveryView struct {
	Total   int               `json:"total"`
	Results []alerting.Result `json:"results,omitempty"`
}

type alertView struct {
	*alerting.Alert
	Delivery *deliveryView `json:"delivery,omitempty"`
}

func viewDelivery(d *alerting.Delivery, wait bool) *deliveryView {
	if d == nil {
		return nil
	}
	v := &deliveryView{Total: d.Total()}
	if wait {
		v.Results = d.Wait()
	}
	return v
}

// handleTriggerAlert ?wait=true 时等全部意图发出后返回逐个联系人的结果
func (h *Handlers) handleTriggerAlert(c *gin.Context) {
	var req triggerAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	var (
		alert *alerting.Alert
		err   error
	)
	switch {
	case req.Group == "":
		alert, err = h.engine.TriggerAlert(detached(c), req.Kind, req.Detail)
	case req.Kind == models.KindGroup || req.Kind == "":
		alert, err = h.engine.TriggerGroupAlert(detached(c), req.Group, req.Detail)
	default:
		err = errors.ErrInvalidInput.WithContext("group", "only valid with kind=group")
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	wait, _ := strconv.ParseBool(c.Query("wait"))
	response.Accepted(c, string(alert.Decision.Reason), alertView{Alert: alert, Delivery: viewDelivery(alert.Delivery, wait)})
}

func (h *Handlers) handleAlertLog(c *gin.Context) {
	response.Success(c, "", h.engine.AlertLog())
}

func (h *Handlers) handleClearAlertLog(c *gin.Context) {
	if err := h.engine.ClearAlertLog(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "alert log cleared", nil)
}

func (h *Handlers) handleAlertRecords(c *gin.Context) {
	if h.history == nil {
		response.Success(c, "", []models.AlertRecord{})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	records, err := h.history.Alerts(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, errors.Wrap(err, "list alert records"))
		return
	}
	response.Success(c, "", records)
}

func (h *Handlers) handlePressSOS(c *gin.Context) {
	started := h.engine.PressSOS()
	msg := "countdown started"
	if !started {
		msg = "countdown already running"
	}
	response.Success(c, msg, gin.H{"started": started, "pending": h.engine.SOSPending()})
}

func (h *Handlers) handleCancelSOS(c *gin.Context) {
	cancelled := h.engine.CancelSOS()
	response.Success(c, "", gin.H{"cancelled": cancelled})
}

func (h *Handlers) handleSOSStatus(c *gin.Context) {
	response.Success(c, "", gin.H{"pending": h.engine.SOSPending()})
}

func (h *Handlers) handleGetSettings(c *gin.Context) {
	response.Success(c, "", gin.H{
		"safeMode":       h.engine.SafeMode(),
		"shakeThreshold": h.engine.ShakeThreshold(),
	})
}

type safeModeRequest struct {
	On *bool `json:"on" binding:"required"`
}

func (h *Handlers) handleSetSafeMode(c *gin.Context) {
	var req safeModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	h.engine.SetSafeMode(c.Request.Context(), *req.On)
	response.Success(c, "", gin.H{"safeMode": h.engine.SafeMode()})
}

type thresholdRequest struct {
	Threshold float64 `json:"threshold" binding:"required"`
}

// handleSetShakeThreshold 越界值被截断到 10..18
func (h *Handlers) handleSetShakeThreshold(c *gin.Context) {
	var req thresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	response.Success(c, "", gin.H{"shakeThreshold": h.engine.SetShakeThreshold(req.Threshold)})
}
