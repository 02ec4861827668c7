package rooms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aura-voice/backend/internal/gateway"
	"github.com/aura-voice/backend/internal/models"
)

func newTestTracker(policy *models.GuildPolicy) (*Tracker, *Scheduler, *memStore, *fakePlatform) {
	store := newMemStore()
	pc := newFakePlatform()
	sync := NewSynchronizer(pc, nil)
	factory := NewFactory(store, &staticPolicies{policy: policy}, &staticPrefs{}, pc, sync, nil, nil, nil)
	scheduler := NewScheduler(store, &staticPolicies{policy: policy}, pc, nil, nil, nil, testGrace, time.Hour, nil)
	tracker := NewTracker(store, &staticPolicies{policy: policy}, pc, factory, scheduler, nil)
	scheduler.SetRemovalHook(tracker.Untrack)
	return tracker, scheduler, store, pc
}

func TestHubJoinCreatesAndTracksRoom(t *testing.T) {
	policy := openPolicy()
	tracker, _, store, pc := newTestTracker(policy)
	pc.addChannel("hub-1")
	pc.usernames["u1"] = "alice"

	tracker.HandleVoiceState(gateway.VoiceStateEvent{
		GuildID: "guild-1", UserID: "u1", ChannelID: "hub-1",
	})

	all, _ := store.ListAllRooms(context.Background())
	require.Len(t, all, 1)
	require.True(t, tracker.IsManaged("guild-1", all[0].VoiceChannelID))
}

func TestLeaveStartsCountdownJoinCancels(t *testing.T) {
	policy := openPolicy()
	tracker, scheduler, store, pc := newTestTracker(policy)
	room := seedRoom(store, pc, "room-a")
	tracker.Track("guild-1", room.VoiceChannelID)

	// Last occupant walks out.
	pc.setOccupants("room-a")
	tracker.HandleVoiceState(gateway.VoiceStateEvent{
		GuildID: "guild-1", UserID: "u1", PrevChannelID: "room-a",
	})
	require.True(t, scheduler.IsPending("room-a"))

	// Someone joins before the grace elapses.
	tracker.HandleVoiceState(gateway.VoiceStateEvent{
		GuildID: "guild-1", UserID: "u2", ChannelID: "room-a",
	})
	require.False(t, scheduler.IsPending("room-a"))

	time.Sleep(3 * testGrace)
	require.True(t, store.has("room-a"))
}

func TestLeaveWithRemainingOccupantsNoCountdown(t *testing.T) {
	policy := openPolicy()
	tracker, scheduler, store, pc := newTestTracker(policy)
	room := seedRoom(store, pc, "room-a")
	tracker.Track("guild-1", room.VoiceChannelID)

	pc.setOccupants("room-a", "u2")
	tracker.HandleVoiceState(gateway.VoiceStateEvent{
		GuildID: "guild-1", UserID: "u1", PrevChannelID: "room-a",
	})
	require.False(t, scheduler.IsPending("room-a"))
}

func TestMoveBetweenManagedRoomsCountsBothSides(t *testing.T) {
	policy := openPolicy()
	tracker, scheduler, store, pc := newTestTracker(policy)
	a := seedRoom(store, pc, "room-a")
	b := seedRoom(store, pc, "room-b")
	tracker.Track("guild-1", a.VoiceChannelID)
	tracker.Track("guild-1", b.VoiceChannelID)

	pc.setOccupants("room-a")
	pc.setOccupants("room-b", "u1")
	tracker.HandleVoiceState(gateway.VoiceStateEvent{
		GuildID: "guild-1", UserID: "u1", ChannelID: "room-b", PrevChannelID: "room-a",
	})

	require.True(t, scheduler.IsPending("room-a"), "vacated room starts its countdown")
	require.False(t, scheduler.IsPending("room-b"))
}

func TestExternalChannelDeletePrunesRecord(t *testing.T) {
	policy := openPolicy()
	tracker, scheduler, store, pc := newTestTracker(policy)
	room := seedRoom(store, pc, "room-a")
	tracker.Track("guild-1", room.VoiceChannelID)
	scheduler.RoomEmptied(room, policy)

	tracker.HandleChannelDelete(gateway.ChannelDeleteEvent{GuildID: "guild-1", ChannelID: "room-a"})

	require.False(t, store.has("room-a"))
	require.False(t, tracker.IsManaged("guild-1", "room-a"))
	require.False(t, scheduler.IsPending("room-a"))
}

func TestWarmStartIndexesStoredRooms(t *testing.T) {
	policy := openPolicy()
	tracker, _, store, pc := newTestTracker(policy)
	seedRoom(store, pc, "room-a")
	seedRoom(store, pc, "room-b")

	require.NoError(t, tracker.WarmStart(context.Background()))
	require.True(t, tracker.IsManaged("guild-1", "room-a"))
	require.True(t, tracker.IsManaged("guild-1", "room-b"))
}

func TestGuildDeleteEvictsIndex(t *testing.T) {
	policy := openPolicy()
	tracker, scheduler, store, pc := newTestTracker(policy)
	room := seedRoom(store, pc, "room-a")
	tracker.Track("guild-1", room.VoiceChannelID)
	scheduler.RoomEmptied(room, policy)

	tracker.HandleGuildDelete(gateway.GuildEvent{GuildID: "guild-1"})
	require.False(t, tracker.IsManaged("guild-1", "room-a"))
	require.False(t, scheduler.IsPending("room-a"))
}
