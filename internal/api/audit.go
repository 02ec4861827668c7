package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-voice/backend/internal/audit"
	"github.com/aura-voice/backend/pkg/queue"
	"github.com/aura-voice/backend/pkg/response"
)

// AuditHandler handles audit log read and export endpoints.
type AuditHandler struct {
	audits *audit.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewAuditHandler creates an audit handler. queue may be nil when export is
// not configured.
func NewAuditHandler(audits *audit.Repository, q *queue.Queue, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{audits: audits, queue: q, logger: logger}
}

// List handles GET /guilds/:id/audit.
func (h *AuditHandler) List(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	entries, err := h.audits.List(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, entries)
}

// Export handles POST /guilds/:id/audit/export, queuing an archive flush.
func (h *AuditHandler) Export(c *gin.Context) {
	if h.queue == nil {
		response.BadRequest(c, "audit export not configured")
		return
	}
	guildID := c.Param("id")
	if err := h.queue.EnqueueAuditExport(c.Request.Context(), queue.AuditExportPayload{GuildID: guildID}); err != nil {
		h.logger.Error("enqueue audit export failed", zap.String("guild_id", guildID), zap.Error(err))
		response.Internal(c, "failed to queue export")
		return
	}
	response.OK(c, gin.H{"queued": true})
}
