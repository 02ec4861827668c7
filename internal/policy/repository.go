// Package policy persists per-guild room lifecycle configuration.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-voice/backend/config"
	"github.com/aura-voice/backend/internal/models"
)

const policyColumns = `guild_id, hub_channel_id, parent_category_id, name_template, default_capacity, default_bitrate,
		delete_when_empty, grace_seconds, allow_rename, allow_capacity, allow_bitrate, allow_lock, allow_manage,
		allow_multi_room, max_capacity, max_bitrate, admin_role_id, auto_permission, created_at, updated_at`

// Repository handles guild policy persistence. Policies are created lazily
// with service defaults on first access and only ever superseded, not deleted.
type Repository struct {
	pool     *pgxpool.Pool
	defaults config.RoomsConfig
}

// NewRepository creates a guild policy repository.
func NewRepository(pool *pgxpool.Pool, defaults config.RoomsConfig) *Repository {
	return &Repository{pool: pool, defaults: defaults}
}

// GetOrCreate returns the guild's policy, inserting a default row when none exists.
func (r *Repository) GetOrCreate(ctx context.Context, guildID string) (*models.GuildPolicy, error) {
	p, err := r.get(ctx, guildID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get policy: %w", err)
	}

	const q = `INSERT INTO guild_policies (guild_id, default_capacity, default_bitrate, grace_seconds, max_capacity, max_bitrate)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (guild_id) DO NOTHING`
	_, err = r.pool.Exec(ctx, q, guildID,
		r.defaults.DefaultCapacity, r.defaults.DefaultBitrateKbps,
		r.defaults.DefaultGraceSeconds, r.defaults.MaxCapacity, r.defaults.MaxBitrateKbps)
	if err != nil {
		return nil, fmt.Errorf("create default policy: %w", err)
	}
	return r.get(ctx, guildID)
}

func (r *Repository) get(ctx context.Context, guildID string) (*models.GuildPolicy, error) {
	const q = `SELECT ` + policyColumns + ` FROM guild_policies WHERE guild_id = $1`
	var p models.GuildPolicy
	err := r.pool.QueryRow(ctx, q, guildID).Scan(
		&p.GuildID, &p.HubChannelID, &p.ParentCategoryID, &p.NameTemplate, &p.DefaultCapacity, &p.DefaultBitrate,
		&p.DeleteWhenEmpty, &p.GraceSeconds, &p.AllowRename, &p.AllowCapacity, &p.AllowBitrate, &p.AllowLock,
		&p.AllowManage, &p.AllowMultiRoom, &p.MaxCapacity, &p.MaxBitrate, &p.AdminRoleID, &p.AutoPermission,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetHub records the hub channel (and optional parent category) for a guild.
func (r *Repository) SetHub(ctx context.Context, guildID, hubChannelID, parentCategoryID string) (*models.GuildPolicy, error) {
	if _, err := r.GetOrCreate(ctx, guildID); err != nil {
		return nil, err
	}
	const q = `UPDATE guild_policies SET hub_channel_id = $1, parent_category_id = $2, updated_at = NOW() WHERE guild_id = $3`
	if _, err := r.pool.Exec(ctx, q, hubChannelID, parentCategoryID, guildID); err != nil {
		return nil, fmt.Errorf("set hub: %w", err)
	}
	return r.get(ctx, guildID)
}

// UpdateParams holds optional policy fields; nil fields are left unchanged.
type UpdateParams struct {
	NameTemplate    *string `json:"name_template,omitempty"`
	DefaultCapacity *int    `json:"default_capacity,omitempty"`
	DefaultBitrate  *int    `json:"default_bitrate,omitempty"`
	DeleteWhenEmpty *bool   `json:"delete_when_empty,omitempty"`
	GraceSeconds    *int    `json:"grace_seconds,omitempty"`
	AllowRename     *bool   `json:"allow_rename,omitempty"`
	AllowCapacity   *bool   `json:"allow_capacity,omitempty"`
	AllowBitrate    *bool   `json:"allow_bitrate,omitempty"`
	AllowLock       *bool   `json:"allow_lock,omitempty"`
	AllowManage     *bool   `json:"allow_manage,omitempty"`
	AllowMultiRoom  *bool   `json:"allow_multi_room,omitempty"`
	MaxCapacity     *int    `json:"max_capacity,omitempty"`
	MaxBitrate      *int    `json:"max_bitrate,omitempty"`
	AdminRoleID     *string `json:"admin_role_id,omitempty"`
	AutoPermission  *bool   `json:"auto_permission,omitempty"`
}

// Update applies non-nil fields to the guild's policy.
func (r *Repository) Update(ctx context.Context, guildID string, params UpdateParams) (*models.GuildPolicy, error) {
	if _, err := r.GetOrCreate(ctx, guildID); err != nil {
		return nil, err
	}
	const q = `UPDATE guild_policies SET
		name_template     = COALESCE($1, name_template),
		default_capacity  = COALESCE($2, default_capacity),
		default_bitrate   = COALESCE($3, default_bitrate),
		delete_when_empty = COALESCE($4, delete_when_empty),
		grace_seconds     = COALESCE($5, grace_seconds),
		allow_rename      = COALESCE($6, allow_rename),
		allow_capacity    = COALESCE($7, allow_capacity),
		allow_bitrate     = COALESCE($8, allow_bitrate),
		allow_lock        = COALESCE($9, allow_lock),
		allow_manage      = COALESCE($10, allow_manage),
		allow_multi_room  = COALESCE($11, allow_multi_room),
		max_capacity      = COALESCE($12, max_capacity),
		max_bitrate       = COALESCE($13, max_bitrate),
		admin_role_id     = COALESCE($14, admin_role_id),
		auto_permission   = COALESCE($15, auto_permission),
		updated_at        = NOW()
		WHERE guild_id = $16`
	_, err := r.pool.Exec(ctx, q,
		params.NameTemplate, params.DefaultCapacity, params.DefaultBitrate, params.DeleteWhenEmpty,
		params.GraceSeconds, params.AllowRename, params.AllowCapacity, params.AllowBitrate, params.AllowLock,
		params.AllowManage, params.AllowMultiRoom, params.MaxCapacity, params.MaxBitrate,
		params.AdminRoleID, params.AutoPermission, guildID)
	if err != nil {
		return nil, fmt.Errorf("update policy: %w", err)
	}
	return r.get(ctx, guildID)
}
