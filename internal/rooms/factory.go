package rooms

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-voice/backend/internal/models"
	"github.com/aura-voice/backend/internal/platform"
)

// Notifier publishes lifecycle events for dashboards and other instances.
type Notifier interface {
	Publish(guildID, event string, payload interface{})
}

// Auditor records durable lifecycle audit entries.
type Auditor interface {
	Record(ctx context.Context, guildID, roomID, action, actorID string, details interface{}) error
}

// Lifecycle event names published through the Notifier.
const (
	EventRoomCreated   = "room_created"
	EventRoomUpdated   = "room_updated"
	EventRoomReclaimed = "room_reclaimed"
	EventRoomPruned    = "room_pruned"
	EventOwnerChanged  = "owner_changed"
)

// Factory creates linked room pairs for hub joiners.
type Factory struct {
	store    Store
	policies PolicyProvider
	prefs    PreferenceProvider
	platform platform.Client
	sync     *Synchronizer
	notifier Notifier
	auditor  Auditor
	logger   *zap.Logger
}

// NewFactory creates a room factory. notifier and auditor may be nil.
func NewFactory(store Store, policies PolicyProvider, prefs PreferenceProvider, pc platform.Client,
	sync *Synchronizer, notifier Notifier, auditor Auditor, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		store: store, policies: policies, prefs: prefs, platform: pc,
		sync: sync, notifier: notifier, auditor: auditor, logger: logger,
	}
}

// CreateRoom provisions a linked voice+text pair for the requester. When the
// guild disallows multiple rooms per user and the requester already owns one,
// that room is returned instead of an error. A failure after the voice channel
// exists tears down whatever was created so no platform resource is left
// without a record.
func (f *Factory) CreateRoom(ctx context.Context, guildID, requesterID string) (*models.ManagedRoom, error) {
	policy, err := f.policies.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationInvalid, err)
	}

	if !policy.AllowMultiRoom {
		existing, err := f.store.GetOwnedRoom(ctx, guildID, requesterID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if err := f.platform.MoveMember(ctx, guildID, requesterID, existing.VoiceChannelID); err != nil {
				f.logger.Warn("move into existing room failed",
					zap.String("room_id", existing.VoiceChannelID), zap.Error(err))
			}
			return existing, nil
		}
	}

	pref, err := f.prefs.Get(ctx, guildID, requesterID)
	if err != nil {
		f.logger.Warn("load preference failed, using guild defaults",
			zap.String("guild_id", guildID), zap.String("user_id", requesterID), zap.Error(err))
		pref = nil
	}

	username, err := f.platform.Username(ctx, guildID, requesterID)
	if err != nil || username == "" {
		username = "member"
	}
	spec := Resolve(policy, pref, requesterID, username)
	if !policy.AllowLock {
		spec.Locked = false
	}

	voiceID, err := f.platform.CreateVoiceChannel(ctx, guildID, platform.CreateChannelParams{
		Name:     spec.Name,
		ParentID: policy.ParentCategoryID,
		Capacity: spec.Capacity,
		Bitrate:  spec.Bitrate,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: voice channel: %v", ErrRoomCreationFailed, err)
	}

	textID, err := f.platform.CreateTextChannel(ctx, guildID, platform.CreateChannelParams{
		Name:     textChannelName(spec.Name),
		ParentID: policy.ParentCategoryID,
	})
	if err != nil {
		f.rollback(ctx, voiceID, "")
		return nil, fmt.Errorf("%w: text channel: %v", ErrRoomCreationFailed, err)
	}

	room := &models.ManagedRoom{
		GuildID:        guildID,
		VoiceChannelID: voiceID,
		TextChannelID:  textID,
		OwnerID:        requesterID,
		Locked:         spec.Locked,
		KeepAlive:      spec.KeepAlive,
		Allowed:        spec.Allowed,
		Denied:         spec.Denied,
	}
	if err := f.store.CreateRoom(ctx, room); err != nil {
		f.rollback(ctx, voiceID, textID)
		return nil, fmt.Errorf("%w: persist: %v", ErrRoomCreationFailed, err)
	}

	if policy.AutoPermission {
		f.sync.Apply(ctx, room, policy)
	}

	if err := f.platform.MoveMember(ctx, guildID, requesterID, voiceID); err != nil {
		// Non-fatal: the user can join manually.
		f.logger.Warn("move member into new room failed",
			zap.String("room_id", voiceID), zap.String("user_id", requesterID), zap.Error(err))
	}

	if f.auditor != nil {
		if err := f.auditor.Record(ctx, guildID, voiceID, models.AuditRoomCreated, requesterID, room); err != nil {
			f.logger.Warn("audit room creation failed", zap.Error(err))
		}
	}
	if f.notifier != nil {
		f.notifier.Publish(guildID, EventRoomCreated, room)
	}

	f.logger.Info("room created",
		zap.String("guild_id", guildID),
		zap.String("room_id", voiceID),
		zap.String("owner_id", requesterID),
		zap.Bool("locked", room.Locked))
	return room, nil
}

// rollback best-effort deletes channels created before a failure.
func (f *Factory) rollback(ctx context.Context, voiceID, textID string) {
	for _, id := range []string{voiceID, textID} {
		if id == "" {
			continue
		}
		if err := f.platform.DeleteChannel(ctx, id); err != nil {
			f.logger.Error("rollback channel delete failed", zap.String("channel_id", id), zap.Error(err))
		}
	}
}

// textChannelName derives the paired text channel's name.
func textChannelName(voiceName string) string {
	return SanitizeName(voiceName + " chat")
}
