package rooms

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-voice/backend/internal/models"
	"github.com/aura-voice/backend/internal/platform"
	"github.com/aura-voice/backend/pkg/queue"
)

// ExportQueue enqueues audit export work after reclamations.
type ExportQueue interface {
	EnqueueAuditExport(ctx context.Context, payload queue.AuditExportPayload) error
}

// countdown is one pending reclamation. The entry's presence in the
// scheduler's map is the single source of truth for "still live": cancellation
// and firing both remove it under the same mutex, so exactly one wins.
type countdown struct {
	timer    *time.Timer
	deadline time.Time
}

// Scheduler owns empty-room countdowns and the periodic reconciliation sweep.
// Countdowns are in-memory only; after a restart every stored room is assumed
// occupied and the first sweep re-derives emptiness from live occupancy.
type Scheduler struct {
	store    Store
	policies PolicyProvider
	platform platform.Client
	notifier Notifier
	auditor  Auditor
	exports  ExportQueue
	logger   *zap.Logger

	mu         sync.Mutex
	countdowns map[string]*countdown // voice channel id -> pending countdown

	// sweepMu serializes the sweep pass against individual countdown
	// completions so the two paths never race on the same room.
	sweepMu sync.Mutex

	defaultGrace  time.Duration
	sweepInterval time.Duration

	// onRemoved is invoked after a room record is deleted (reclaim or prune)
	// so the tracker can drop it from the in-memory index.
	onRemoved func(guildID, roomID string)
}

// SetRemovalHook registers the callback invoked when a room record is removed.
func (s *Scheduler) SetRemovalHook(fn func(guildID, roomID string)) {
	s.onRemoved = fn
}

// NewScheduler creates a reclamation scheduler. notifier, auditor and exports may be nil.
func NewScheduler(store Store, policies PolicyProvider, pc platform.Client,
	notifier Notifier, auditor Auditor, exports ExportQueue,
	defaultGrace, sweepInterval time.Duration, logger *zap.Logger) *Scheduler {
	if defaultGrace <= 0 {
		defaultGrace = time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:         store,
		policies:      policies,
		platform:      pc,
		notifier:      notifier,
		auditor:       auditor,
		exports:       exports,
		countdowns:    make(map[string]*countdown),
		defaultGrace:  defaultGrace,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// reclaimable decides whether an empty room may be reclaimed. The guild's
// delete-when-empty flag is a kill switch; when it is on, a room's keep-alive
// flag opts that single room out. Every call site (runtime transition,
// startup, sweep) goes through this one helper.
func reclaimable(room *models.ManagedRoom, policy *models.GuildPolicy) bool {
	return policy.DeleteWhenEmpty && !room.KeepAlive
}

// RoomEmptied starts (or restarts) the countdown for a room that just reached
// zero occupants. No countdown starts when the room is exempt.
func (s *Scheduler) RoomEmptied(room *models.ManagedRoom, policy *models.GuildPolicy) {
	if !reclaimable(room, policy) {
		s.logger.Debug("empty room exempt from reclamation", zap.String("room_id", room.VoiceChannelID))
		return
	}
	grace := policy.GracePeriod()
	if grace <= 0 {
		grace = s.defaultGrace
	}
	roomID := room.VoiceChannelID

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.countdowns[roomID]; ok {
		old.timer.Stop()
	}
	cd := &countdown{deadline: time.Now().Add(grace)}
	cd.timer = time.AfterFunc(grace, func() { s.fire(roomID, cd) })
	s.countdowns[roomID] = cd
	s.logger.Info("reclamation countdown started",
		zap.String("room_id", roomID), zap.Duration("grace", grace))
}

// RoomOccupied cancels any pending countdown for the room. Removal from the
// map under the mutex guarantees the countdown cannot also fire.
func (s *Scheduler) RoomOccupied(roomID string) {
	s.mu.Lock()
	cd, ok := s.countdowns[roomID]
	if ok {
		delete(s.countdowns, roomID)
		cd.timer.Stop()
	}
	s.mu.Unlock()
	if ok {
		s.logger.Info("reclamation countdown cancelled", zap.String("room_id", roomID))
	}
}

// Forget drops a pending countdown without reclaiming, used when the room was
// deleted externally.
func (s *Scheduler) Forget(roomID string) {
	s.mu.Lock()
	if cd, ok := s.countdowns[roomID]; ok {
		delete(s.countdowns, roomID)
		cd.timer.Stop()
	}
	s.mu.Unlock()
}

// IsPending reports whether a countdown is currently scheduled for the room.
func (s *Scheduler) IsPending(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.countdowns[roomID]
	return ok
}

// fire runs when a countdown elapses. It claims the handle first — if the
// handle is gone or replaced, a cancel or reschedule won and nothing happens.
func (s *Scheduler) fire(roomID string, cd *countdown) {
	s.mu.Lock()
	cur, ok := s.countdowns[roomID]
	if !ok || cur != cd {
		s.mu.Unlock()
		return
	}
	delete(s.countdowns, roomID)
	s.mu.Unlock()

	// Serialize against the sweep so both never reclaim the same room.
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			s.logger.Warn("load room for reclamation failed", zap.String("room_id", roomID), zap.Error(err))
		}
		return
	}

	// The countdown fires asynchronously; an occupant may have joined since
	// it was scheduled. Re-check live occupancy before deleting.
	occupants, err := s.platform.ChannelOccupants(ctx, room.GuildID, roomID)
	if err != nil {
		s.logger.Warn("occupancy re-check failed, leaving room for sweep",
			zap.String("room_id", roomID), zap.Error(err))
		return
	}
	if len(occupants) > 0 {
		s.logger.Info("reclamation aborted, room regained occupants",
			zap.String("room_id", roomID), zap.Int("occupants", len(occupants)))
		return
	}

	s.reclaim(ctx, room)
}

// reclaim deletes both linked channels and the room record. A failed platform
// deletion is logged and the record kept so the next sweep retries.
func (s *Scheduler) reclaim(ctx context.Context, room *models.ManagedRoom) {
	for _, id := range []string{room.VoiceChannelID, room.TextChannelID} {
		if id == "" {
			continue
		}
		if err := s.platform.DeleteChannel(ctx, id); err != nil && !errors.Is(err, platform.ErrNotFound) {
			s.logger.Error("reclaim channel delete failed, will retry on next sweep",
				zap.String("channel_id", id), zap.Error(err))
			return
		}
	}
	if err := s.store.DeleteRoom(ctx, room.VoiceChannelID); err != nil {
		s.logger.Error("delete room record failed", zap.String("room_id", room.VoiceChannelID), zap.Error(err))
		return
	}

	if s.auditor != nil {
		if err := s.auditor.Record(ctx, room.GuildID, room.VoiceChannelID, models.AuditRoomReclaimed, "", room); err != nil {
			s.logger.Warn("audit reclamation failed", zap.Error(err))
		}
	}
	if s.exports != nil {
		if err := s.exports.EnqueueAuditExport(ctx, queue.AuditExportPayload{GuildID: room.GuildID}); err != nil {
			s.logger.Warn("enqueue audit export failed", zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.Publish(room.GuildID, EventRoomReclaimed, map[string]string{
			"room_id": room.VoiceChannelID,
		})
	}
	if s.onRemoved != nil {
		s.onRemoved(room.GuildID, room.VoiceChannelID)
	}
	s.logger.Info("room reclaimed",
		zap.String("guild_id", room.GuildID), zap.String("room_id", room.VoiceChannelID))
}

// ReclaimNow reclaims a room immediately (explicit delete command), cancelling
// any pending countdown first.
func (s *Scheduler) ReclaimNow(ctx context.Context, room *models.ManagedRoom) {
	s.Forget(room.VoiceChannelID)
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	s.reclaim(ctx, room)
}

// PruneRecord removes the record of an externally deleted room, serialized
// against the sweep.
func (s *Scheduler) PruneRecord(ctx context.Context, room *models.ManagedRoom) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	s.prune(ctx, room)
}

// Run executes the periodic sweep until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep re-validates every stored room against live platform state: rooms
// whose voice channel vanished are pruned, rooms found empty get a countdown,
// rooms found occupied get any stale countdown cancelled. Recovers from missed
// gateway events and process restarts.
func (s *Scheduler) Sweep(ctx context.Context) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	all, err := s.store.ListAllRooms(ctx)
	if err != nil {
		s.logger.Error("sweep: list rooms failed", zap.Error(err))
		return
	}

	for i := range all {
		room := &all[i]
		exists, err := s.platform.ChannelExists(ctx, room.VoiceChannelID)
		if err != nil {
			s.logger.Warn("sweep: existence check failed",
				zap.String("room_id", room.VoiceChannelID), zap.Error(err))
			continue
		}
		if !exists {
			s.prune(ctx, room)
			continue
		}

		occupants, err := s.platform.ChannelOccupants(ctx, room.GuildID, room.VoiceChannelID)
		if err != nil {
			s.logger.Warn("sweep: occupancy check failed",
				zap.String("room_id", room.VoiceChannelID), zap.Error(err))
			continue
		}
		if len(occupants) > 0 {
			s.RoomOccupied(room.VoiceChannelID)
			continue
		}

		policy, err := s.policies.GetOrCreate(ctx, room.GuildID)
		if err != nil {
			s.logger.Warn("sweep: load policy failed", zap.String("guild_id", room.GuildID), zap.Error(err))
			continue
		}
		if !s.IsPending(room.VoiceChannelID) {
			s.RoomEmptied(room, policy)
		}
	}
}

// prune removes the record (and the orphaned text channel) of a room whose
// voice channel was deleted outside this service.
func (s *Scheduler) prune(ctx context.Context, room *models.ManagedRoom) {
	s.Forget(room.VoiceChannelID)
	if room.TextChannelID != "" {
		if err := s.platform.DeleteChannel(ctx, room.TextChannelID); err != nil && !errors.Is(err, platform.ErrNotFound) {
			s.logger.Warn("prune text channel failed", zap.String("channel_id", room.TextChannelID), zap.Error(err))
		}
	}
	if err := s.store.DeleteRoom(ctx, room.VoiceChannelID); err != nil {
		s.logger.Error("prune room record failed", zap.String("room_id", room.VoiceChannelID), zap.Error(err))
		return
	}
	if s.auditor != nil {
		if err := s.auditor.Record(ctx, room.GuildID, room.VoiceChannelID, models.AuditRoomPruned, "", nil); err != nil {
			s.logger.Warn("audit prune failed", zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.Publish(room.GuildID, EventRoomPruned, map[string]string{
			"room_id": room.VoiceChannelID,
		})
	}
	if s.onRemoved != nil {
		s.onRemoved(room.GuildID, room.VoiceChannelID)
	}
	s.logger.Info("room record pruned", zap.String("room_id", room.VoiceChannelID))
}
