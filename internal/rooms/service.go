package rooms

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-voice/backend/internal/models"
	"github.com/aura-voice/backend/internal/platform"
)

// Service executes control-surface commands against managed rooms. Every
// command authorizes the acting platform user (owner, or holder of the guild
// admin role), mutates durable state, and ends with an overlay resync when
// access-relevant state changed.
type Service struct {
	store     Store
	policies  PolicyProvider
	platform  platform.Client
	sync      *Synchronizer
	ownership *OwnershipManager
	scheduler *Scheduler
	notifier  Notifier
	logger    *zap.Logger
}

// NewService creates the command service. notifier may be nil.
func NewService(store Store, policies PolicyProvider, pc platform.Client, sync *Synchronizer,
	ownership *OwnershipManager, scheduler *Scheduler, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store: store, policies: policies, platform: pc, sync: sync,
		ownership: ownership, scheduler: scheduler, notifier: notifier, logger: logger,
	}
}

// load fetches the room and its guild policy, and reports whether the caller
// is an admin (holds the guild's admin role).
func (s *Service) load(ctx context.Context, roomID, callerID string) (*models.ManagedRoom, *models.GuildPolicy, bool, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, false, err
	}
	policy, err := s.policies.GetOrCreate(ctx, room.GuildID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: %v", ErrConfigurationInvalid, err)
	}
	isAdmin := false
	if policy.AdminRoleID != "" && callerID != "" {
		isAdmin, err = s.platform.MemberHasRole(ctx, room.GuildID, callerID, policy.AdminRoleID)
		if err != nil {
			s.logger.Warn("admin role check failed", zap.String("user_id", callerID), zap.Error(err))
			isAdmin = false
		}
	}
	return room, policy, isAdmin, nil
}

// authorize enforces owner-or-admin plus the guild feature toggle. Admins
// bypass toggles.
func authorize(room *models.ManagedRoom, callerID string, isAdmin, featureEnabled bool) error {
	if isAdmin {
		return nil
	}
	if room.OwnerID != callerID {
		return fmt.Errorf("%w: not the room owner", ErrPermissionDenied)
	}
	if !featureEnabled {
		return fmt.Errorf("%w: disabled by guild policy", ErrPermissionDenied)
	}
	return nil
}

// Rename renames the voice channel and its paired text channel.
func (s *Service) Rename(ctx context.Context, roomID, callerID, name string) error {
	room, policy, isAdmin, err := s.load(ctx, roomID, callerID)
	if err != nil {
		return err
	}
	if err := authorize(room, callerID, isAdmin, policy.AllowRename); err != nil {
		return err
	}
	clean := SanitizeName(name)
	if err := s.updateChannel(ctx, room.VoiceChannelID, platform.ChannelPatch{Name: &clean}); err != nil {
		return err
	}
	textName := textChannelName(clean)
	if err := s.updateChannel(ctx, room.TextChannelID, platform.ChannelPatch{Name: &textName}); err != nil {
		// The voice channel already renamed; the pair converges on retry.
		s.logger.Warn("text channel rename failed", zap.String("room_id", roomID), zap.Error(err))
	}
	s.publishUpdate(room)
	return nil
}

// SetCapacity sets the voice channel's user limit, clamped to the guild cap.
func (s *Service) SetCapacity(ctx context.Context, roomID, callerID string, capacity int) error {
	room, policy, isAdmin, err := s.load(ctx, roomID, callerID)
	if err != nil {
		return err
	}
	if err := authorize(room, callerID, isAdmin, policy.AllowCapacity); err != nil {
		return err
	}
	capped := clamp(capacity, 0, policy.MaxCapacity)
	if err := s.updateChannel(ctx, room.VoiceChannelID, platform.ChannelPatch{Capacity: &capped}); err != nil {
		return err
	}
	s.publishUpdate(room)
	return nil
}

// SetBitrate sets the voice channel's bitrate in kbps, clamped to the guild cap.
func (s *Service) SetBitrate(ctx context.Context, roomID, callerID string, kbps int) error {
	room, policy, isAdmin, err := s.load(ctx, roomID, callerID)
	if err != nil {
		return err
	}
	if err := authorize(room, callerID, isAdmin, policy.AllowBitrate); err != nil {
		return err
	}
	capped := clamp(kbps, 8, policy.MaxBitrate)
	if err := s.updateChannel(ctx, room.VoiceChannelID, platform.ChannelPatch{Bitrate: &capped}); err != nil {
		return err
	}
	s.publishUpdate(room)
	return nil
}

// SetLock toggles the room lock and resyncs the overlay on both channels.
func (s *Service) SetLock(ctx context.Context, roomID, callerID string, locked bool) error {
	room, policy, isAdmin, err := s.load(ctx, roomID, callerID)
	if err != nil {
		return err
	}
	if err := authorize(room, callerID, isAdmin, policy.AllowLock); err != nil {
		return err
	}
	if room.Locked == locked {
		return nil
	}
	room.Locked = locked
	if err := s.store.UpdateRoom(ctx, room); err != nil {
		return err
	}
	s.sync.Apply(ctx, room, policy)
	s.publishUpdate(room)
	return nil
}

// Allow adds a user to the allow set and resyncs.
func (s *Service) Allow(ctx context.Context, roomID, callerID, userID string) error {
	return s.mutateSets(ctx, roomID, callerID, func(room *models.ManagedRoom) error {
		room.AddAllowed(userID)
		return nil
	})
}

// Deny adds a user to the deny set and resyncs. The owner cannot be denied.
func (s *Service) Deny(ctx context.Context, roomID, callerID, userID string) error {
	return s.mutateSets(ctx, roomID, callerID, func(room *models.ManagedRoom) error {
		if userID == room.OwnerID {
			return fmt.Errorf("%w: cannot deny the room owner", ErrPermissionDenied)
		}
		room.AddDenied(userID)
		return nil
	})
}

func (s *Service) mutateSets(ctx context.Context, roomID, callerID string, mutate func(*models.ManagedRoom) error) error {
	room, policy, isAdmin, err := s.load(ctx, roomID, callerID)
	if err != nil {
		return err
	}
	if err := authorize(room, callerID, isAdmin, policy.AllowManage); err != nil {
		return err
	}
	if err := mutate(room); err != nil {
		return err
	}
	if err := s.store.UpdateRoom(ctx, room); err != nil {
		return err
	}
	s.sync.Apply(ctx, room, policy)
	s.publishUpdate(room)
	return nil
}

// SetKeepAlive toggles the room's reclamation exemption. Enabling it cancels
// any pending countdown immediately.
func (s *Service) SetKeepAlive(ctx context.Context, roomID, callerID string, keepAlive bool) error {
	room, policy, isAdmin, err := s.load(ctx, roomID, callerID)
	if err != nil {
		return err
	}
	if err := authorize(room, callerID, isAdmin, policy.AllowManage); err != nil {
		return err
	}
	if room.KeepAlive == keepAlive {
		return nil
	}
	room.KeepAlive = keepAlive
	if err := s.store.UpdateRoom(ctx, room); err != nil {
		return err
	}
	if keepAlive {
		s.scheduler.RoomOccupied(roomID)
	}
	// A keep-alive turned off while the room sits empty is picked up by the
	// next sweep pass.
	s.publishUpdate(room)
	return nil
}

// Transfer hands ownership to another user. Admin callers bypass the
// occupancy precondition.
func (s *Service) Transfer(ctx context.Context, roomID, callerID, newOwnerID string) error {
	room, policy, isAdmin, err := s.load(ctx, roomID, callerID)
	if err != nil {
		return err
	}
	if err := authorize(room, callerID, isAdmin, policy.AllowManage); err != nil {
		return err
	}
	return s.ownership.Transfer(ctx, room, policy, newOwnerID, isAdmin)
}

// Claim takes ownership of a room whose owner is absent.
func (s *Service) Claim(ctx context.Context, roomID, callerID string) error {
	room, policy, _, err := s.load(ctx, roomID, callerID)
	if err != nil {
		return err
	}
	return s.ownership.Claim(ctx, room, policy, callerID)
}

// Delete reclaims a room immediately on explicit command.
func (s *Service) Delete(ctx context.Context, roomID, callerID string) error {
	room, policy, isAdmin, err := s.load(ctx, roomID, callerID)
	if err != nil {
		return err
	}
	if err := authorize(room, callerID, isAdmin, policy.AllowManage); err != nil {
		return err
	}
	s.scheduler.ReclaimNow(ctx, room)
	return nil
}

// GetRoom returns one managed room.
func (s *Service) GetRoom(ctx context.Context, roomID string) (*models.ManagedRoom, error) {
	return s.store.GetRoom(ctx, roomID)
}

// ListRooms returns a guild's managed rooms.
func (s *Service) ListRooms(ctx context.Context, guildID string) ([]models.ManagedRoom, error) {
	return s.store.ListRooms(ctx, guildID)
}

// Occupants returns the live occupant list of a room's voice channel.
func (s *Service) Occupants(ctx context.Context, roomID string) ([]string, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	occupants, err := s.platform.ChannelOccupants(ctx, room.GuildID, room.VoiceChannelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlatformAPIFailure, err)
	}
	return occupants, nil
}

func (s *Service) updateChannel(ctx context.Context, channelID string, patch platform.ChannelPatch) error {
	err := s.platform.UpdateChannel(ctx, channelID, patch)
	if err == nil {
		return nil
	}
	if err == platform.ErrNotFound {
		return fmt.Errorf("%w: channel %s", ErrPlatformResourceMissing, channelID)
	}
	return fmt.Errorf("%w: %v", ErrPlatformAPIFailure, err)
}

func (s *Service) publishUpdate(room *models.ManagedRoom) {
	if s.notifier != nil {
		s.notifier.Publish(room.GuildID, EventRoomUpdated, room)
	}
}
