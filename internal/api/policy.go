package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-voice/backend/internal/platform"
	"github.com/aura-voice/backend/internal/policy"
	"github.com/aura-voice/backend/pkg/response"
)

// PolicyHandler handles guild policy endpoints.
type PolicyHandler struct {
	policies *policy.Repository
	platform platform.Client
	logger   *zap.Logger
}

// NewPolicyHandler creates a policy handler.
func NewPolicyHandler(policies *policy.Repository, pc platform.Client, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{policies: policies, platform: pc, logger: logger}
}

// CreateHubRequest is the body for POST /guilds/:id/hub.
type CreateHubRequest struct {
	Name             string `json:"name" binding:"required"`
	ParentCategoryID string `json:"parent_category_id"`
}

// CreateHub creates the guild's join-to-create channel and records it in the
// policy. Rooms spawned from the hub land in the same parent category.
func (h *PolicyHandler) CreateHub(c *gin.Context) {
	var req CreateHubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	guildID := c.Param("id")

	hubID, err := h.platform.CreateVoiceChannel(c.Request.Context(), guildID, platform.CreateChannelParams{
		Name:     req.Name,
		ParentID: req.ParentCategoryID,
	})
	if err != nil {
		h.logger.Error("hub channel creation failed", zap.String("guild_id", guildID), zap.Error(err))
		response.FromError(c, err)
		return
	}

	p, err := h.policies.SetHub(c.Request.Context(), guildID, hubID, req.ParentCategoryID)
	if err != nil {
		// Channel exists but isn't recorded; remove it so the guild isn't left
		// with an orphan hub.
		if delErr := h.platform.DeleteChannel(c.Request.Context(), hubID); delErr != nil {
			h.logger.Error("hub rollback failed", zap.String("channel_id", hubID), zap.Error(delErr))
		}
		response.FromError(c, err)
		return
	}
	response.Created(c, p)
}

// Get handles GET /guilds/:id/policy.
func (h *PolicyHandler) Get(c *gin.Context) {
	p, err := h.policies.GetOrCreate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, p)
}

// Update handles PATCH /guilds/:id/policy.
func (h *PolicyHandler) Update(c *gin.Context) {
	var params policy.UpdateParams
	if err := c.ShouldBindJSON(&params); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.policies.Update(c.Request.Context(), c.Param("id"), params)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, p)
}
