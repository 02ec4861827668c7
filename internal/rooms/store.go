package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-voice/backend/internal/models"
)

// Store is the durable record of managed rooms.
type Store interface {
	CreateRoom(ctx context.Context, room *models.ManagedRoom) error
	GetRoom(ctx context.Context, voiceChannelID string) (*models.ManagedRoom, error)
	GetOwnedRoom(ctx context.Context, guildID, ownerID string) (*models.ManagedRoom, error)
	ListRooms(ctx context.Context, guildID string) ([]models.ManagedRoom, error)
	ListAllRooms(ctx context.Context) ([]models.ManagedRoom, error)
	UpdateRoom(ctx context.Context, room *models.ManagedRoom) error
	DeleteRoom(ctx context.Context, voiceChannelID string) error
	TouchRoom(ctx context.Context, voiceChannelID string, at time.Time) error
}

// PolicyProvider yields the guild policy, creating a default lazily.
type PolicyProvider interface {
	GetOrCreate(ctx context.Context, guildID string) (*models.GuildPolicy, error)
}

// PreferenceProvider yields a user's stored preference, nil when none exists.
type PreferenceProvider interface {
	Get(ctx context.Context, guildID, userID string) (*models.UserPreference, error)
}

const roomColumns = `voice_channel_id, guild_id, text_channel_id, owner_id, locked, keep_alive, allowed, denied, created_at, last_active_at`

// Repository is the Postgres-backed Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a managed-room repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRoom inserts a new managed room row.
func (r *Repository) CreateRoom(ctx context.Context, room *models.ManagedRoom) error {
	const q = `INSERT INTO managed_rooms (voice_channel_id, guild_id, text_channel_id, owner_id, locked, keep_alive, allowed, denied)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, last_active_at`
	err := r.pool.QueryRow(ctx, q, room.VoiceChannelID, room.GuildID, room.TextChannelID, room.OwnerID,
		room.Locked, room.KeepAlive, textArray(room.Allowed), textArray(room.Denied)).
		Scan(&room.CreatedAt, &room.LastActiveAt)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// GetRoom returns the managed room for a voice channel id.
func (r *Repository) GetRoom(ctx context.Context, voiceChannelID string) (*models.ManagedRoom, error) {
	const q = `SELECT ` + roomColumns + ` FROM managed_rooms WHERE voice_channel_id = $1`
	room, err := scanRoom(r.pool.QueryRow(ctx, q, voiceChannelID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// GetOwnedRoom returns the room owned by a user in a guild, or nil when none.
func (r *Repository) GetOwnedRoom(ctx context.Context, guildID, ownerID string) (*models.ManagedRoom, error) {
	const q = `SELECT ` + roomColumns + ` FROM managed_rooms WHERE guild_id = $1 AND owner_id = $2 LIMIT 1`
	room, err := scanRoom(r.pool.QueryRow(ctx, q, guildID, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return room, err
}

// ListRooms returns all managed rooms in a guild.
func (r *Repository) ListRooms(ctx context.Context, guildID string) ([]models.ManagedRoom, error) {
	const q = `SELECT ` + roomColumns + ` FROM managed_rooms WHERE guild_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRooms(rows)
}

// ListAllRooms returns every managed room across guilds (startup reload and sweep).
func (r *Repository) ListAllRooms(ctx context.Context) ([]models.ManagedRoom, error) {
	const q = `SELECT ` + roomColumns + ` FROM managed_rooms ORDER BY guild_id, created_at`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRooms(rows)
}

// UpdateRoom persists mutable room state (owner, lock, keep-alive, sets).
func (r *Repository) UpdateRoom(ctx context.Context, room *models.ManagedRoom) error {
	const q = `UPDATE managed_rooms SET owner_id = $1, locked = $2, keep_alive = $3, allowed = $4, denied = $5
		WHERE voice_channel_id = $6`
	tag, err := r.pool.Exec(ctx, q, room.OwnerID, room.Locked, room.KeepAlive,
		textArray(room.Allowed), textArray(room.Denied), room.VoiceChannelID)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// DeleteRoom removes the managed room row.
func (r *Repository) DeleteRoom(ctx context.Context, voiceChannelID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM managed_rooms WHERE voice_channel_id = $1`, voiceChannelID)
	return err
}

// TouchRoom updates the last-activity time.
func (r *Repository) TouchRoom(ctx context.Context, voiceChannelID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE managed_rooms SET last_active_at = $1 WHERE voice_channel_id = $2`, at, voiceChannelID)
	return err
}

func scanRoom(row pgx.Row) (*models.ManagedRoom, error) {
	var room models.ManagedRoom
	err := row.Scan(&room.VoiceChannelID, &room.GuildID, &room.TextChannelID, &room.OwnerID,
		&room.Locked, &room.KeepAlive, &room.Allowed, &room.Denied, &room.CreatedAt, &room.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func collectRooms(rows pgx.Rows) ([]models.ManagedRoom, error) {
	var list []models.ManagedRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *room)
	}
	return list, rows.Err()
}

// textArray normalizes nil slices so pgx writes '{}' instead of NULL.
func textArray(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
