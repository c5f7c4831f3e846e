package handlers

import (
	"net/http"
	"strconv"

	"SafeCircle/internal/export"
	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

func (h *Handlers) handleRecentLocations(c *gin.Context) {
	if h.history == nil {
		response.Success(c, "", []models.LocationHistoryItem{})
		return
	}
	n := cast.ToInt(c.DefaultQuery("limit", "10"))
	items, err := h.history.Recent(c.Request.Context(), n)
	if err != nil {
		response.Error(c, errors.Wrap(err, "list location history"))
		return
	}
	response.Success(c, "", items)
}

func (h *Handlers) handleListRoutes(c *gin.Context) {
	if h.history == nil {
		response.Success(c, "", []models.SavedRoute{})
		return
	}
	routes, err := h.history.Routes(c.Request.Context())
	if err != nil {
		response.Error(c, errors.Wrap(err, "list routes"))
		return
	}
	response.Success(c, "", routes)
}

// saveRouteRequest origin 缺省时取最近定位
type saveRouteRequest struct {
	Name        string         `json:"name"`
	Origin      *models.LatLng `json:"origin"`
	Destination string         `json:"destination"`
}

func (h *Handlers) handleSaveRoute(c *gin.Context) {
	if h.history == nil {
		response.Error(c, errors.ErrPlatformUnsupported.WithContext("feature", "routes"))
		return
	}
	var req saveRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	var origin models.LatLng
	if req.Origin != nil {
		origin = *req.Origin
	} else {
		fix, ok := h.engine.LastFix()
		if !ok {
			response.Error(c, errors.ErrLocationUnavailable.WithContext("op", "save route"))
			return
		}
		origin = fix.LatLng()
	}
	route, err := h.history.SaveRoute(c.Request.Context(), req.Name, origin, req.Destination)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "route saved", route)
}

func (h *Handlers) handleDeleteRoute(c *gin.Context) {
	if h.history == nil {
		response.Error(c, errors.ErrNotFound.WithContext("route", c.Param("id")))
		return
	}
	if err := h.history.DeleteRoute(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "route deleted", nil)
}

// handleExportDownload 直接下载 JSON 文件
func (h *Handlers) handleExportDownload(c *gin.Context) {
	bundle, err := h.exporter.Bundle(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := export.Encode(bundle)
	if err != nil {
		response.Error(c, errors.Wrap(err, "encode export"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+h.exporter.Filename()+`"`)
	c.Header("Content-Length", strconv.Itoa(len(body)))
	c.Data(http.StatusOK, "application/json", body)
}

// handleExportArchive 写入对象存储，返回对象地址
func (h *Handlers) handleExportArchive(c *gin.Context) {
	arc, err := h.exporter.Save(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "export archived", arc)
}
