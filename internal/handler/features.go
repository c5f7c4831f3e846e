package handlers

import (
	"strconv"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/response"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) handleGetJourney(c *gin.Context) {
	response.Success(c, "", h.engine.Journey())
}

type startJourneyRequest struct {
	Destination string `json:"destination"`
	Minutes     int    `json:"minutes"`
}

// handleStartJourney 返回的 shareMessage 由客户端自行分享
func (h *Handlers) handleStartJourney(c *gin.Context) {
	var req startJourneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	out, err := h.engine.StartJourney(c.Request.Context(), req.Destination, req.Minutes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "journey started", out)
}

func (h *Handlers) handleEndJourney(c *gin.Context) {
	response.Success(c, "journey completed", h.engine.EndJourney())
}

func (h *Handlers) handleGetCheckIn(c *gin.Context) {
	response.Success(c, "", h.engine.CheckIn())
}

type scheduleCheckInRequest struct {
	Hours int `json:"hours"`
}

func (h *Handlers) handleScheduleCheckIn(c *gin.Context) {
	var req scheduleCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	response.Success(c, "check-in scheduled", h.engine.ScheduleCheckIn(c.Request.Context(), req.Hours))
}

func (h *Handlers) handlePerformCheckIn(c *gin.Context) {
	response.Success(c, "checked in", h.engine.PerformCheckIn())
}

func (h *Handlers) handleCancelCheckIn(c *gin.Context) {
	response.Success(c, "", h.engine.CancelCheckIn())
}

func (h *Handlers) handleShareLocation(c *gin.Context) {
	payload, d, err := h.engine.ShareLocation(detached(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	wait, _ := strconv.ParseBool(c.Query("wait"))
	response.Accepted(c, "location shared", gin.H{"payload": payload, "delivery": viewDelivery(d, wait)})
}

func (h *Handlers) handleGetShareTimer(c *gin.Context) {
	response.Success(c, "", h.engine.ShareTimer())
}

type shareTimerRequest struct {
	Minutes int `json:"minutes"`
}

func (h *Handlers) handleStartShareTimer(c *gin.Context) {
	var req shareTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	st, err := h.engine.StartShareTimer(req.Minutes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", st)
}

func (h *Handlers) handleStopShareTimer(c *gin.Context) {
	response.Success(c, "", h.engine.StopShareTimer())
}

type walkRequest struct {
	On bool `json:"on"`
}

func (h *Handlers) handleWalkWithMe(c *gin.Context) {
	var req walkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	d, err := h.engine.SetWalkWithMe(detached(c), req.On)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", gin.H{"on": h.engine.WalkWithMe(), "delivery": viewDelivery(d, false)})
}

func (h *Handlers) handleListRecordings(c *gin.Context) {
	response.Success(c, "", h.engine.Recordings())
}

type recordingRequest struct {
	Type models.RecordingType `json:"type"`
}

func (h *Handlers) handleStartRecording(c *gin.Context) {
	var req recordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	rec, err := h.engine.StartRecording(req.Type)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "recording started", rec)
}

func (h *Handlers) handleStopRecording(c *gin.Context) {
	rec, err := h.engine.StopRecording()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "recording stopped", rec)
}

func (h *Handlers) handleGetDecoy(c *gin.Context) {
	response.Success(c, "", h.engine.Decoy())
}

func (h *Handlers) handleSetDecoy(c *gin.Context) {
	var info models.DecoyInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	response.Success(c, "", h.engine.SetDecoy(info))
}

func (h *Handlers) handleFakeCall(c *gin.Context) {
	response.Success(c, "", gin.H{"caller": h.engine.StartFakeCall()})
}

func (h *Handlers) handleEndFakeCall(c *gin.Context) {
	h.engine.EndFakeCall()
	response.Success(c, "", nil)
}

func (h *Handlers) handleSiren(c *gin.Context) {
	response.Success(c, "", gin.H{"on": h.engine.ToggleSiren()})
}

func (h *Handlers) handleFlash(c *gin.Context) {
	h.engine.FlashSOS()
	response.Success(c, "", nil)
}
