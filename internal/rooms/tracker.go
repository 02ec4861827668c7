package rooms

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-voice/backend/internal/gateway"
	"github.com/aura-voice/backend/internal/platform"
)

// Tracker is the event-ingestion layer. It classifies gateway presence
// transitions (hub join, managed-room join, managed-room leave) and dispatches
// to the factory and the reclamation scheduler. It owns the in-memory index of
// guild -> managed room ids that makes classification cheap on the hot path.
type Tracker struct {
	mu      sync.RWMutex
	managed map[string]map[string]struct{} // guild id -> voice channel ids

	store     Store
	policies  PolicyProvider
	platform  platform.Client
	factory   *Factory
	scheduler *Scheduler
	logger    *zap.Logger
}

// NewTracker creates a membership tracker.
func NewTracker(store Store, policies PolicyProvider, pc platform.Client,
	factory *Factory, scheduler *Scheduler, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		managed:   make(map[string]map[string]struct{}),
		store:     store,
		policies:  policies,
		platform:  pc,
		factory:   factory,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Register subscribes the tracker to gateway events.
func (t *Tracker) Register(d *gateway.Dispatcher) {
	d.OnVoiceState(t.HandleVoiceState)
	d.OnChannelDelete(t.HandleChannelDelete)
	d.OnGuildCreate(t.HandleGuildCreate)
	d.OnGuildDelete(t.HandleGuildDelete)
}

// WarmStart loads all stored rooms into the index as occupied. The first
// sweep pass re-derives the true empty state from live occupancy, so a room
// that became non-empty during a restart window is never double-deleted.
func (t *Tracker) WarmStart(ctx context.Context) error {
	all, err := t.store.ListAllRooms(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	for _, room := range all {
		t.trackLocked(room.GuildID, room.VoiceChannelID)
	}
	t.mu.Unlock()
	t.logger.Info("room index warmed", zap.Int("rooms", len(all)))
	return nil
}

// Track adds a room to the index.
func (t *Tracker) Track(guildID, roomID string) {
	t.mu.Lock()
	t.trackLocked(guildID, roomID)
	t.mu.Unlock()
}

func (t *Tracker) trackLocked(guildID, roomID string) {
	if t.managed[guildID] == nil {
		t.managed[guildID] = make(map[string]struct{})
	}
	t.managed[guildID][roomID] = struct{}{}
}

// Untrack removes a room from the index.
func (t *Tracker) Untrack(guildID, roomID string) {
	t.mu.Lock()
	if m, ok := t.managed[guildID]; ok {
		delete(m, roomID)
		if len(m) == 0 {
			delete(t.managed, guildID)
		}
	}
	t.mu.Unlock()
}

// IsManaged reports whether the channel is a managed room in the guild.
func (t *Tracker) IsManaged(guildID, channelID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.managed[guildID][channelID]
	return ok
}

// HandleVoiceState classifies one presence transition. Leaves are handled
// before joins so a user moving between two managed rooms is counted out of
// the old room before being counted into the new one.
func (t *Tracker) HandleVoiceState(ev gateway.VoiceStateEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if ev.PrevChannelID != "" && t.IsManaged(ev.GuildID, ev.PrevChannelID) {
		t.onManagedLeave(ctx, ev.GuildID, ev.PrevChannelID)
	}
	if ev.ChannelID == "" || ev.ChannelID == ev.PrevChannelID {
		return
	}

	policy, err := t.policies.GetOrCreate(ctx, ev.GuildID)
	if err != nil {
		t.logger.Warn("load policy failed", zap.String("guild_id", ev.GuildID), zap.Error(err))
		return
	}
	switch {
	case policy.HubChannelID != "" && ev.ChannelID == policy.HubChannelID:
		t.onHubJoin(ctx, ev.GuildID, ev.UserID)
	case t.IsManaged(ev.GuildID, ev.ChannelID):
		t.onManagedJoin(ctx, ev.GuildID, ev.ChannelID)
	}
}

func (t *Tracker) onHubJoin(ctx context.Context, guildID, userID string) {
	room, err := t.factory.CreateRoom(ctx, guildID, userID)
	if err != nil {
		t.logger.Error("hub join: room creation failed",
			zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return
	}
	t.Track(guildID, room.VoiceChannelID)
	// The owner is in the room now (or about to be): any stale countdown from
	// a previous emptiness of an idempotently-returned room must not fire.
	t.scheduler.RoomOccupied(room.VoiceChannelID)
}

func (t *Tracker) onManagedJoin(ctx context.Context, guildID, channelID string) {
	t.scheduler.RoomOccupied(channelID)
	if err := t.store.TouchRoom(ctx, channelID, time.Now()); err != nil {
		t.logger.Warn("touch room failed", zap.String("room_id", channelID), zap.Error(err))
	}
}

func (t *Tracker) onManagedLeave(ctx context.Context, guildID, channelID string) {
	occupants, err := t.platform.ChannelOccupants(ctx, guildID, channelID)
	if err != nil {
		t.logger.Warn("occupancy check after leave failed",
			zap.String("room_id", channelID), zap.Error(err))
		return
	}
	if len(occupants) > 0 {
		return
	}
	room, err := t.store.GetRoom(ctx, channelID)
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			t.logger.Warn("load room after leave failed", zap.String("room_id", channelID), zap.Error(err))
		}
		return
	}
	policy, err := t.policies.GetOrCreate(ctx, guildID)
	if err != nil {
		t.logger.Warn("load policy failed", zap.String("guild_id", guildID), zap.Error(err))
		return
	}
	t.scheduler.RoomEmptied(room, policy)
}

// HandleChannelDelete prunes the record of a managed room deleted outside
// this service (e.g. manually by a moderator).
func (t *Tracker) HandleChannelDelete(ev gateway.ChannelDeleteEvent) {
	if !t.IsManaged(ev.GuildID, ev.ChannelID) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	t.scheduler.Forget(ev.ChannelID)
	room, err := t.store.GetRoom(ctx, ev.ChannelID)
	if err == nil {
		t.scheduler.PruneRecord(ctx, room)
	} else if !errors.Is(err, ErrRoomNotFound) {
		t.logger.Warn("load room after external delete failed",
			zap.String("room_id", ev.ChannelID), zap.Error(err))
	}
	t.Untrack(ev.GuildID, ev.ChannelID)
}

// HandleGuildCreate warms the index scope for a guild the bot joined.
func (t *Tracker) HandleGuildCreate(ev gateway.GuildEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	roomsInGuild, err := t.store.ListRooms(ctx, ev.GuildID)
	if err != nil {
		t.logger.Warn("warm guild index failed", zap.String("guild_id", ev.GuildID), zap.Error(err))
		return
	}
	t.mu.Lock()
	for _, room := range roomsInGuild {
		t.trackLocked(ev.GuildID, room.VoiceChannelID)
	}
	t.mu.Unlock()
}

// HandleGuildDelete evicts the guild's index scope and cancels its countdowns.
func (t *Tracker) HandleGuildDelete(ev gateway.GuildEvent) {
	t.mu.Lock()
	ids := t.managed[ev.GuildID]
	delete(t.managed, ev.GuildID)
	t.mu.Unlock()
	for id := range ids {
		t.scheduler.Forget(id)
	}
}
