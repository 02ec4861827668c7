package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-voice/backend/internal/models"
	"github.com/aura-voice/backend/internal/policy"
	"github.com/aura-voice/backend/internal/preference"
	"github.com/aura-voice/backend/pkg/response"
)

// PreferenceHandler handles per-user room default endpoints.
type PreferenceHandler struct {
	prefs    *preference.Repository
	policies *policy.Repository
	logger   *zap.Logger
}

// NewPreferenceHandler creates a preference handler.
func NewPreferenceHandler(prefs *preference.Repository, policies *policy.Repository, logger *zap.Logger) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs, policies: policies, logger: logger}
}

// SetPreferenceRequest is the body for PUT /guilds/:id/preferences/:userId.
type SetPreferenceRequest struct {
	NameTemplate *string  `json:"name_template,omitempty"`
	Capacity     *int     `json:"capacity,omitempty"`
	Bitrate      *int     `json:"bitrate,omitempty"`
	Locked       *bool    `json:"locked,omitempty"`
	KeepAlive    *bool    `json:"keep_alive,omitempty"`
	Allowed      []string `json:"allowed,omitempty"`
	Denied       []string `json:"denied,omitempty"`
}

// Set handles PUT /guilds/:id/preferences/:userId.
func (h *PreferenceHandler) Set(c *gin.Context) {
	var req SetPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	guildID, userID := c.Param("id"), c.Param("userId")

	p, err := h.policies.GetOrCreate(c.Request.Context(), guildID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	pref := &models.UserPreference{
		GuildID:      guildID,
		UserID:       userID,
		NameTemplate: req.NameTemplate,
		Capacity:     req.Capacity,
		Bitrate:      req.Bitrate,
		Locked:       req.Locked,
		KeepAlive:    req.KeepAlive,
		Allowed:      req.Allowed,
		Denied:       req.Denied,
	}
	if err := h.prefs.Set(c.Request.Context(), p, pref); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, pref)
}

// Get handles GET /guilds/:id/preferences/:userId.
func (h *PreferenceHandler) Get(c *gin.Context) {
	pref, err := h.prefs.Get(c.Request.Context(), c.Param("id"), c.Param("userId"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	if pref == nil {
		response.NotFound(c, "no stored preference")
		return
	}
	response.OK(c, pref)
}

// Reset handles DELETE /guilds/:id/preferences/:userId.
func (h *PreferenceHandler) Reset(c *gin.Context) {
	if err := h.prefs.Reset(c.Request.Context(), c.Param("id"), c.Param("userId")); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}
