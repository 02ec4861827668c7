package rooms

import (
	"context"

	"go.uber.org/zap"

	"github.com/aura-voice/backend/internal/models"
	"github.com/aura-voice/backend/internal/platform"
)

// Synchronizer reconciles the live permission overlay of a linked room pair
// with the room's declarative state: lock flag, owner, allow/deny sets, admin
// role. It is invoked after every mutating command, so it diffs against the
// current overwrites and only issues calls for entries that changed —
// re-applying an unchanged state produces no writes.
type Synchronizer struct {
	platform platform.Client
	logger   *zap.Logger
}

// NewSynchronizer creates a permission synchronizer.
func NewSynchronizer(pc platform.Client, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{platform: pc, logger: logger}
}

// Apply computes the desired overlay and reconciles both linked channels.
// Partial platform failures are logged per target and do not abort the
// remaining updates; the overlay converges on the next invocation.
func (s *Synchronizer) Apply(ctx context.Context, room *models.ManagedRoom, policy *models.GuildPolicy) {
	desired := desiredOverlay(room, policy)
	for _, channelID := range []string{room.VoiceChannelID, room.TextChannelID} {
		if channelID == "" {
			continue
		}
		s.reconcile(ctx, channelID, room.GuildID, desired)
	}
}

// desiredOverlay builds the target overwrite set keyed by principal id.
// The everyone principal is the role whose id equals the guild id.
func desiredOverlay(room *models.ManagedRoom, policy *models.GuildPolicy) map[string]platform.Overwrite {
	desired := make(map[string]platform.Overwrite)

	// Owner always holds full management rights on both resources.
	desired[room.OwnerID] = platform.Overwrite{
		TargetID:   room.OwnerID,
		TargetType: platform.TargetMember,
		Allow:      platform.PermManagement,
	}

	if policy.AdminRoleID != "" {
		desired[policy.AdminRoleID] = platform.Overwrite{
			TargetID:   policy.AdminRoleID,
			TargetType: platform.TargetRole,
			Allow:      platform.PermManagement,
		}
	}

	if room.Locked {
		desired[room.GuildID] = platform.Overwrite{
			TargetID:   room.GuildID,
			TargetType: platform.TargetRole,
			Deny:       platform.PermView | platform.PermConnect,
		}
		for _, id := range room.Allowed {
			if id == room.OwnerID || room.IsDenied(id) {
				continue
			}
			desired[id] = platform.Overwrite{
				TargetID:   id,
				TargetType: platform.TargetMember,
				Allow:      platform.PermView | platform.PermConnect,
			}
		}
	}

	// Deny entries override the allow set and the default principal in
	// either lock state.
	for _, id := range room.Denied {
		if id == room.OwnerID {
			continue
		}
		desired[id] = platform.Overwrite{
			TargetID:   id,
			TargetType: platform.TargetMember,
			Deny:       platform.PermView | platform.PermConnect,
		}
	}

	return desired
}

// reconcile diffs the channel's current overwrites against the desired set.
// Member overwrites on an ephemeral room are all created by this service, so
// stale ones are cleared; role overwrites other than the everyone principal
// and the admin role are left alone (moderators may have set them).
func (s *Synchronizer) reconcile(ctx context.Context, channelID, guildID string, desired map[string]platform.Overwrite) {
	current, err := s.platform.GetOverwrites(ctx, channelID)
	if err != nil {
		s.logger.Warn("read overwrites failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}

	seen := make(map[string]platform.Overwrite, len(current))
	for _, ow := range current {
		seen[ow.TargetID] = ow
		want, ok := desired[ow.TargetID]
		if !ok {
			if ow.TargetType == platform.TargetRole && ow.TargetID != guildID {
				continue
			}
			if err := s.platform.ClearOverwrite(ctx, channelID, ow.TargetID); err != nil {
				s.logger.Warn("clear overwrite failed",
					zap.String("channel_id", channelID), zap.String("target_id", ow.TargetID), zap.Error(err))
			}
			continue
		}
		if ow.Allow != want.Allow || ow.Deny != want.Deny {
			if err := s.platform.SetOverwrite(ctx, channelID, want); err != nil {
				s.logger.Warn("set overwrite failed",
					zap.String("channel_id", channelID), zap.String("target_id", want.TargetID), zap.Error(err))
			}
		}
	}

	for id, want := range desired {
		if _, ok := seen[id]; ok {
			continue
		}
		if err := s.platform.SetOverwrite(ctx, channelID, want); err != nil {
			s.logger.Warn("set overwrite failed",
				zap.String("channel_id", channelID), zap.String("target_id", want.TargetID), zap.Error(err))
		}
	}
}
