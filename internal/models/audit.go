package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded for room lifecycle transitions.
const (
	AuditRoomCreated   = "room_created"
	AuditRoomReclaimed = "room_reclaimed"
	AuditRoomPruned    = "room_pruned"
	AuditOwnerChanged  = "owner_changed"
)

// AuditEntry is one durable record of a lifecycle transition, exported in
// batches to the archive bucket by the worker.
type AuditEntry struct {
	ID        uuid.UUID       `json:"id"`
	GuildID   string          `json:"guild_id"`
	RoomID    string          `json:"room_id"`
	Action    string          `json:"action"`
	ActorID   string          `json:"actor_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	Exported  bool            `json:"exported"`
	CreatedAt time.Time       `json:"created_at"`
}
