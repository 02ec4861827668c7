// Package api exposes the room control surface over HTTP. Commands act on
// behalf of a platform user named in the request body; the operator token on
// the request authenticates the frontend, not the acting user.
package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-voice/backend/internal/rooms"
	"github.com/aura-voice/backend/pkg/response"
)

// RoomHandler handles room command endpoints.
type RoomHandler struct {
	service *rooms.Service
	logger  *zap.Logger
}

// NewRoomHandler creates a room command handler.
func NewRoomHandler(service *rooms.Service, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{service: service, logger: logger}
}

// actorRequest carries the platform user a command acts for.
type actorRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// RenameRequest is the body for POST /rooms/:id/rename.
type RenameRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Name   string `json:"name" binding:"required"`
}

// Rename handles POST /rooms/:id/rename.
func (h *RoomHandler) Rename(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.service.Rename(c.Request.Context(), c.Param("id"), req.UserID, req.Name); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"renamed": true})
}

// LimitRequest is the body for capacity and bitrate commands.
type LimitRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Value  int    `json:"value"`
}

// SetCapacity handles POST /rooms/:id/capacity.
func (h *RoomHandler) SetCapacity(c *gin.Context) {
	var req LimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.service.SetCapacity(c.Request.Context(), c.Param("id"), req.UserID, req.Value); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"capacity": req.Value})
}

// SetBitrate handles POST /rooms/:id/bitrate.
func (h *RoomHandler) SetBitrate(c *gin.Context) {
	var req LimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.service.SetBitrate(c.Request.Context(), c.Param("id"), req.UserID, req.Value); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"bitrate": req.Value})
}

// ToggleRequest is the body for lock and keep-alive commands.
type ToggleRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	Enabled bool   `json:"enabled"`
}

// SetLock handles POST /rooms/:id/lock.
func (h *RoomHandler) SetLock(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.service.SetLock(c.Request.Context(), c.Param("id"), req.UserID, req.Enabled); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"locked": req.Enabled})
}

// SetKeepAlive handles POST /rooms/:id/keepalive.
func (h *RoomHandler) SetKeepAlive(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.service.SetKeepAlive(c.Request.Context(), c.Param("id"), req.UserID, req.Enabled); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"keep_alive": req.Enabled})
}

// TargetRequest is the body for allow, deny and transfer commands.
type TargetRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	TargetID string `json:"target_id" binding:"required"`
}

// Allow handles POST /rooms/:id/allow.
func (h *RoomHandler) Allow(c *gin.Context) {
	var req TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.service.Allow(c.Request.Context(), c.Param("id"), req.UserID, req.TargetID); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"allowed": req.TargetID})
}

// Deny handles POST /rooms/:id/deny.
func (h *RoomHandler) Deny(c *gin.Context) {
	var req TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.service.Deny(c.Request.Context(), c.Param("id"), req.UserID, req.TargetID); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"denied": req.TargetID})
}

// Transfer handles POST /rooms/:id/transfer.
func (h *RoomHandler) Transfer(c *gin.Context) {
	var req TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.service.Transfer(c.Request.Context(), c.Param("id"), req.UserID, req.TargetID); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"owner": req.TargetID})
}

// Claim handles POST /rooms/:id/claim.
func (h *RoomHandler) Claim(c *gin.Context) {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.service.Claim(c.Request.Context(), c.Param("id"), req.UserID); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"owner": req.UserID})
}

// Delete handles POST /rooms/:id/delete.
func (h *RoomHandler) Delete(c *gin.Context) {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), req.UserID); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

// Get handles GET /rooms/:id.
func (h *RoomHandler) Get(c *gin.Context) {
	room, err := h.service.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, room)
}

// ListByGuild handles GET /guilds/:id/rooms.
func (h *RoomHandler) ListByGuild(c *gin.Context) {
	list, err := h.service.ListRooms(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, list)
}

// Occupants handles GET /rooms/:id/occupants.
func (h *RoomHandler) Occupants(c *gin.Context) {
	occupants, err := h.service.Occupants(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"occupants": occupants, "count": len(occupants)})
}
