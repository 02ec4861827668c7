package rooms

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-voice/backend/internal/models"
	"github.com/aura-voice/backend/internal/platform"
)

// OwnershipManager transfers and claims room ownership, re-delegating
// management permissions through the synchronizer.
type OwnershipManager struct {
	store    Store
	platform platform.Client
	sync     *Synchronizer
	notifier Notifier
	auditor  Auditor
	logger   *zap.Logger
}

// NewOwnershipManager creates an ownership manager. notifier and auditor may be nil.
func NewOwnershipManager(store Store, pc platform.Client, sync *Synchronizer,
	notifier Notifier, auditor Auditor, logger *zap.Logger) *OwnershipManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OwnershipManager{store: store, platform: pc, sync: sync, notifier: notifier, auditor: auditor, logger: logger}
}

// Transfer hands the room to newOwnerID. Unless byAdmin, the new owner must
// currently occupy the room. The old owner's management rights are dropped and
// the new owner's granted by the follow-up overlay sync.
func (m *OwnershipManager) Transfer(ctx context.Context, room *models.ManagedRoom, policy *models.GuildPolicy, newOwnerID string, byAdmin bool) error {
	if room.OwnerID == newOwnerID {
		return nil
	}
	if !byAdmin {
		occupants, err := m.platform.ChannelOccupants(ctx, room.GuildID, room.VoiceChannelID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPlatformAPIFailure, err)
		}
		if !containsID(occupants, newOwnerID) {
			return fmt.Errorf("%w: new owner is not in the room", ErrPermissionDenied)
		}
	}

	previous := room.OwnerID
	room.SetOwner(newOwnerID)
	if err := m.store.UpdateRoom(ctx, room); err != nil {
		room.SetOwner(previous)
		return err
	}
	m.sync.Apply(ctx, room, policy)

	if m.auditor != nil {
		if err := m.auditor.Record(ctx, room.GuildID, room.VoiceChannelID, models.AuditOwnerChanged, newOwnerID,
			map[string]string{"previous_owner": previous}); err != nil {
			m.logger.Warn("audit ownership change failed", zap.Error(err))
		}
	}
	if m.notifier != nil {
		m.notifier.Publish(room.GuildID, EventOwnerChanged, map[string]string{
			"room_id":        room.VoiceChannelID,
			"owner_id":       newOwnerID,
			"previous_owner": previous,
		})
	}
	m.logger.Info("room ownership transferred",
		zap.String("room_id", room.VoiceChannelID),
		zap.String("from", previous), zap.String("to", newOwnerID))
	return nil
}

// Claim is Transfer gated on the current owner being absent from the room's
// live occupant list. The claimant must be present. Occupancy is read from the
// platform at call time, never from cached state.
func (m *OwnershipManager) Claim(ctx context.Context, room *models.ManagedRoom, policy *models.GuildPolicy, claimantID string) error {
	occupants, err := m.platform.ChannelOccupants(ctx, room.GuildID, room.VoiceChannelID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlatformAPIFailure, err)
	}
	if containsID(occupants, room.OwnerID) {
		return fmt.Errorf("%w: owner is still in the room", ErrPermissionDenied)
	}
	if !containsID(occupants, claimantID) {
		return fmt.Errorf("%w: claimant is not in the room", ErrPermissionDenied)
	}
	return m.Transfer(ctx, room, policy, claimantID, true)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
