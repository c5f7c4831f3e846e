package handlers

import (
	"SafeCircle/internal/models"
	"SafeCircle/internal/trigger"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/response"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) handleMotion(c *gin.Context) {
	var s trigger.MotionSample
	if err := c.ShouldBindJSON(&s); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	response.Success(c, "", gin.H{"triggered": h.engine.OnMotion(s)})
}

// handleButton 白名单外的键码 accepted=false
func (h *Handlers) handleButton(c *gin.Context) {
	var p trigger.ButtonPress
	if err := c.ShouldBindJSON(&p); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	response.Success(c, "", gin.H{"accepted": h.engine.OnButton(p)})
}

type transitionView struct {
	Fence    models.Geofence `json:"fence"`
	Distance float64         `json:"distance"`
}

func (h *Handlers) handleLocation(c *gin.Context) {
	var fix models.LocationFix
	if err := c.ShouldBindJSON(&fix); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	transitions, err := h.engine.OnLocation(detached(c), fix)
	if err != nil {
		response.Error(c, err)
		return
	}
	entered := make([]transitionView, 0, len(transitions))
	for _, tr := range transitions {
		entered = append(entered, transitionView{Fence: tr.Fence, Distance: tr.Distance})
	}
	response.Success(c, "", gin.H{"entered": entered})
}

func (h *Handlers) handleLastLocation(c *gin.Context) {
	fix, ok := h.engine.LastFix()
	if !ok {
		response.Error(c, errors.ErrLocationUnavailable)
		return
	}
	response.Success(c, "", gin.H{"fix": fix, "mapsUrl": fix.MapsURL()})
}

func (h *Handlers) handleListGeofences(c *gin.Context) {
	response.Success(c, "", h.engine.Geofences())
}

// createGeofenceRequest center 缺省时以最近定位为中心
type createGeofenceRequest struct {
	Name   string              `json:"name"`
	Center *models.LatLng      `json:"center"`
	Radius float64             `json:"radiusMeters"`
	Kind   models.GeofenceKind `json:"kind"`
}

func (h *Handlers) handleCreateGeofence(c *gin.Context) {
	var req createGeofenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	if req.Kind == "" {
		req.Kind = models.GeofenceSafe
	}
	var (
		g   models.Geofence
		err error
	)
	if req.Center != nil {
		g, err = h.engine.CreateGeofence(c.Request.Context(), req.Name, *req.Center, req.Radius, req.Kind)
	} else {
		g, err = h.engine.CreateGeofenceHere(c.Request.Context(), req.Name, req.Radius, req.Kind)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "geofence created", g)
}

func (h *Handlers) handleToggleGeofence(c *gin.Context) {
	g, err := h.engine.ToggleGeofence(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", g)
}

func (h *Handlers) handleDeleteGeofence(c *gin.Context) {
	if err := h.engine.DeleteGeofence(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "geofence deleted", nil)
}
