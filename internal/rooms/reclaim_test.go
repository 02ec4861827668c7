package rooms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aura-voice/backend/internal/models"
)

const (
	testGrace = 50 * time.Millisecond
	waitFired = 500 * time.Millisecond
)

func newTestScheduler(policy *models.GuildPolicy) (*Scheduler, *memStore, *fakePlatform, *recordingAuditor, *recordingExports) {
	store := newMemStore()
	pc := newFakePlatform()
	auditor := &recordingAuditor{}
	exports := &recordingExports{}
	s := NewScheduler(store, &staticPolicies{policy: policy}, pc, nil, auditor, exports,
		testGrace, time.Hour, nil)
	return s, store, pc, auditor, exports
}

func seedRoom(store *memStore, pc *fakePlatform, id string) *models.ManagedRoom {
	room := &models.ManagedRoom{
		GuildID:        "guild-1",
		VoiceChannelID: id,
		TextChannelID:  id + "-text",
		OwnerID:        "owner",
	}
	_ = store.CreateRoom(context.Background(), room)
	pc.addChannel(id)
	pc.addChannel(id + "-text")
	return room
}

func waitRemoved(t *testing.T, store *memStore, id string) {
	t.Helper()
	deadline := time.Now().Add(waitFired)
	for time.Now().Before(deadline) {
		if !store.has(id) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s was not reclaimed within %v", id, waitFired)
}

func TestCountdownReclaimsEmptyRoom(t *testing.T) {
	policy := openPolicy()
	policy.GraceSeconds = 0 // fall back to the scheduler's default grace
	s, store, pc, auditor, exports := newTestScheduler(policy)
	room := seedRoom(store, pc, "room-a")

	s.RoomEmptied(room, policy)
	require.True(t, s.IsPending("room-a"))

	waitRemoved(t, store, "room-a")
	exists, _ := pc.ChannelExists(context.Background(), "room-a")
	require.False(t, exists)
	exists, _ = pc.ChannelExists(context.Background(), "room-a-text")
	require.False(t, exists, "paired text channel goes with the room")
	require.Contains(t, auditor.recorded(), models.AuditRoomReclaimed)

	exports.mu.Lock()
	require.Len(t, exports.jobs, 1)
	exports.mu.Unlock()
}

func TestRejoinCancelsCountdown(t *testing.T) {
	policy := openPolicy()
	policy.GraceSeconds = 0
	s, store, pc, _, _ := newTestScheduler(policy)
	room := seedRoom(store, pc, "room-a")

	s.RoomEmptied(room, policy)
	s.RoomOccupied("room-a")
	require.False(t, s.IsPending("room-a"))

	time.Sleep(3 * testGrace)
	require.True(t, store.has("room-a"), "cancelled countdown must never delete")
}

func TestFireAbortsWhenRoomRegainedOccupants(t *testing.T) {
	policy := openPolicy()
	policy.GraceSeconds = 0
	s, store, pc, _, _ := newTestScheduler(policy)
	room := seedRoom(store, pc, "room-a")

	// A join event was missed, but the platform says someone is inside.
	pc.setOccupants("room-a", "u9")
	s.RoomEmptied(room, policy)

	time.Sleep(3 * testGrace)
	require.True(t, store.has("room-a"), "live occupancy re-check must win over a stale countdown")
	require.False(t, s.IsPending("room-a"))
}

func TestKeepAliveRoomIsExempt(t *testing.T) {
	policy := openPolicy()
	s, store, pc, _, _ := newTestScheduler(policy)
	room := seedRoom(store, pc, "room-a")
	room.KeepAlive = true
	_ = store.UpdateRoom(context.Background(), room)

	s.RoomEmptied(room, policy)
	require.False(t, s.IsPending("room-a"))
}

func TestDeleteWhenEmptyKillSwitch(t *testing.T) {
	policy := openPolicy()
	policy.DeleteWhenEmpty = false
	s, store, pc, _, _ := newTestScheduler(policy)
	room := seedRoom(store, pc, "room-a")

	s.RoomEmptied(room, policy)
	require.False(t, s.IsPending("room-a"))
}

func TestReclaimNowIsImmediateAndSingle(t *testing.T) {
	policy := openPolicy()
	s, store, pc, auditor, _ := newTestScheduler(policy)
	room := seedRoom(store, pc, "room-a")

	s.RoomEmptied(room, policy)
	s.ReclaimNow(context.Background(), room)
	require.False(t, store.has("room-a"))

	// The pending countdown was forgotten; nothing fires a second delete.
	time.Sleep(3 * testGrace)
	require.Equal(t, []string{models.AuditRoomReclaimed}, auditor.recorded())
}

func TestSweepPrunesVanishedChannel(t *testing.T) {
	policy := openPolicy()
	s, store, pc, auditor, _ := newTestScheduler(policy)
	room := seedRoom(store, pc, "room-a")

	// Moderator deleted the voice channel by hand; the record is stale.
	_ = pc.DeleteChannel(context.Background(), room.VoiceChannelID)
	s.Sweep(context.Background())

	require.False(t, store.has("room-a"))
	exists, _ := pc.ChannelExists(context.Background(), "room-a-text")
	require.False(t, exists, "orphaned text channel is cleaned up")
	require.Contains(t, auditor.recorded(), models.AuditRoomPruned)
}

func TestSweepStartsCountdownForEmptyRoom(t *testing.T) {
	policy := openPolicy()
	s, store, pc, _, _ := newTestScheduler(policy)
	seedRoom(store, pc, "room-a")

	s.Sweep(context.Background())
	require.True(t, s.IsPending("room-a"))
}

func TestSweepCancelsStaleCountdownForOccupiedRoom(t *testing.T) {
	policy := openPolicy()
	s, store, pc, _, _ := newTestScheduler(policy)
	room := seedRoom(store, pc, "room-a")

	s.RoomEmptied(room, policy)
	pc.setOccupants("room-a", "u1", "u2")

	s.Sweep(context.Background())
	require.False(t, s.IsPending("room-a"))
}

func TestRemovalHookFires(t *testing.T) {
	policy := openPolicy()
	s, store, pc, _, _ := newTestScheduler(policy)
	room := seedRoom(store, pc, "room-a")

	var gotGuild, gotRoom string
	s.SetRemovalHook(func(guildID, roomID string) { gotGuild, gotRoom = guildID, roomID })

	s.ReclaimNow(context.Background(), room)
	require.Equal(t, "guild-1", gotGuild)
	require.Equal(t, "room-a", gotRoom)
}
