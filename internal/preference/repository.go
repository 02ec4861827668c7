// Package preference persists per-user room defaults, independent of any
// single room's lifecycle.
package preference

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-voice/backend/internal/models"
	"github.com/aura-voice/backend/internal/rooms"
)

// Repository handles user preference persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a preference repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns a user's stored preference, or nil when none exists.
func (r *Repository) Get(ctx context.Context, guildID, userID string) (*models.UserPreference, error) {
	const q = `SELECT guild_id, user_id, name_template, capacity, bitrate, locked, keep_alive, allowed, denied, updated_at
		FROM user_preferences WHERE guild_id = $1 AND user_id = $2`
	var p models.UserPreference
	err := r.pool.QueryRow(ctx, q, guildID, userID).Scan(
		&p.GuildID, &p.UserID, &p.NameTemplate, &p.Capacity, &p.Bitrate,
		&p.Locked, &p.KeepAlive, &p.Allowed, &p.Denied, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return &p, nil
}

// Set validates the preference against the guild's hard caps and upserts it.
// Unlike creation-path resolution, which clamps silently, explicit preference
// writes above a cap are rejected so the user sees the limit.
func (r *Repository) Set(ctx context.Context, policy *models.GuildPolicy, pref *models.UserPreference) error {
	if pref.Capacity != nil && policy.MaxCapacity > 0 && *pref.Capacity > policy.MaxCapacity {
		return fmt.Errorf("%w: requested %d, maximum %d", rooms.ErrCapacityExceeded, *pref.Capacity, policy.MaxCapacity)
	}
	if pref.Bitrate != nil && policy.MaxBitrate > 0 && *pref.Bitrate > policy.MaxBitrate {
		return fmt.Errorf("%w: requested %d, maximum %d", rooms.ErrBitrateExceeded, *pref.Bitrate, policy.MaxBitrate)
	}

	const q = `INSERT INTO user_preferences (guild_id, user_id, name_template, capacity, bitrate, locked, keep_alive, allowed, denied, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			name_template = EXCLUDED.name_template,
			capacity      = EXCLUDED.capacity,
			bitrate       = EXCLUDED.bitrate,
			locked        = EXCLUDED.locked,
			keep_alive    = EXCLUDED.keep_alive,
			allowed       = EXCLUDED.allowed,
			denied        = EXCLUDED.denied,
			updated_at    = NOW()`
	allowed, denied := pref.Allowed, pref.Denied
	if allowed == nil {
		allowed = []string{}
	}
	if denied == nil {
		denied = []string{}
	}
	_, err := r.pool.Exec(ctx, q, pref.GuildID, pref.UserID, pref.NameTemplate, pref.Capacity, pref.Bitrate,
		pref.Locked, pref.KeepAlive, allowed, denied)
	if err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}

// Reset deletes a user's stored preference.
func (r *Repository) Reset(ctx context.Context, guildID, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_preferences WHERE guild_id = $1 AND user_id = $2`, guildID, userID)
	return err
}
