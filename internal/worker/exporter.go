// Package worker runs the background audit archival loop.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-voice/backend/internal/audit"
	"github.com/aura-voice/backend/pkg/queue"
	"github.com/aura-voice/backend/pkg/storage"
)

// batchSize caps how many audit rows one export job flushes.
const batchSize = 500

// Exporter drains audit export jobs from the queue, uploads un-archived
// entries to S3 and marks them exported.
type Exporter struct {
	queue  *queue.Queue
	audits *audit.Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewExporter creates an audit exporter.
func NewExporter(q *queue.Queue, audits *audit.Repository, s3 *storage.S3, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{queue: q, audits: audits, s3: s3, logger: logger}
}

// Run processes jobs until ctx is cancelled. Failed jobs are retried via the
// queue, landing in the DLQ after the retry budget is spent.
func (e *Exporter) Run(ctx context.Context) {
	e.logger.Info("audit exporter started")
	for {
		job, err := e.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				e.logger.Info("audit exporter stopped")
				return
			}
			e.logger.Error("dequeue failed", zap.Error(err))
			continue
		}
		if job == nil {
			continue
		}
		if err := e.Process(ctx, job); err != nil {
			e.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if err := e.queue.Retry(ctx, job); err != nil {
				e.logger.Error("retry failed", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
	}
}

// Process handles one job.
func (e *Exporter) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeAuditExport:
		var payload queue.AuditExportPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return e.export(ctx, payload.GuildID)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

func (e *Exporter) export(ctx context.Context, guildID string) error {
	entries, err := e.audits.ListUnexported(ctx, guildID, batchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	body, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	key, err := e.s3.UploadAuditBatch(ctx, guildID, body)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	if err := e.audits.MarkExported(ctx, ids); err != nil {
		return fmt.Errorf("mark exported after upload %s: %w", key, err)
	}
	e.logger.Info("audit batch exported",
		zap.String("guild_id", guildID), zap.Int("entries", len(entries)), zap.String("key", key))
	return nil
}
