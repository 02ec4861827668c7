// Package audit records durable lifecycle transitions for later archival.
package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-voice/backend/internal/models"
)

// Repository handles audit entry persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts one audit entry.
func (r *Repository) Record(ctx context.Context, guildID, roomID, action, actorID string, details interface{}) error {
	const q = `INSERT INTO audit_entries (id, guild_id, room_id, action, actor_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, q, uuid.New(), guildID, roomID, action, actorID, details)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// ListUnexported returns up to limit un-archived entries for a guild, oldest first.
func (r *Repository) ListUnexported(ctx context.Context, guildID string, limit int) ([]models.AuditEntry, error) {
	const q = `SELECT id, guild_id, room_id, action, actor_id, details, exported, created_at
		FROM audit_entries WHERE guild_id = $1 AND NOT exported
		ORDER BY created_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unexported: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.GuildID, &e.RoomID, &e.Action, &e.ActorID, &e.Details, &e.Exported, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkExported flags entries as archived.
func (r *Repository) MarkExported(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `UPDATE audit_entries SET exported = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// List returns a guild's most recent entries, newest first.
func (r *Repository) List(ctx context.Context, guildID string, limit int) ([]models.AuditEntry, error) {
	const q = `SELECT id, guild_id, room_id, action, actor_id, details, exported, created_at
		FROM audit_entries WHERE guild_id = $1
		ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.GuildID, &e.RoomID, &e.Action, &e.ActorID, &e.Details, &e.Exported, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
