package handlers

import (
	"SafeCircle/internal/models"
	"SafeCircle/pkg/response"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) handleGetProfile(c *gin.Context) {
	p, err := h.profiles.Profile(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "", p)
}

type setNameRequest struct {
	Name string `json:"name"`
}

func (h *Handlers) handleSetName(c *gin.Context) {
	var req setNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	if err := h.profiles.SetName(c.Request.Context(), req.Name); err != nil {
		response.Error(c, err)
		return
	}
	h.handleGetProfile(c)
}

func (h *Handlers) handleAddContact(c *gin.Context) {
	var contact models.Contact
	if err := c.ShouldBindJSON(&contact); err != nil {
		response.Fail(c, "invalid request", gin.H{"error": err.Error()})
		return
	}
	added, err := h.profiles.AddContact(c.Request.Context(), contact)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "contact added", added)
}

func (h *Handlers) handleRemoveContact(c *gin.Context) {
	if err := h.profiles.RemoveContact(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "contact removed", nil)
}
