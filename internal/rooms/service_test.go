package rooms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aura-voice/backend/internal/models"
)

func newTestService(policy *models.GuildPolicy) (*Service, *Scheduler, *memStore, *fakePlatform) {
	store := newMemStore()
	pc := newFakePlatform()
	sync := NewSynchronizer(pc, nil)
	scheduler := NewScheduler(store, &staticPolicies{policy: policy}, pc, nil, nil, nil, testGrace, time.Hour, nil)
	ownership := NewOwnershipManager(store, pc, sync, nil, nil, nil)
	svc := NewService(store, &staticPolicies{policy: policy}, pc, sync, ownership, scheduler, nil, nil)
	return svc, scheduler, store, pc
}

func TestCommandsRequireOwnerOrAdmin(t *testing.T) {
	policy := openPolicy()
	svc, _, store, pc := newTestService(policy)
	seedRoom(store, pc, "room-a")

	err := svc.Rename(context.Background(), "room-a", "stranger", "Hijacked")
	require.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, svc.Rename(context.Background(), "room-a", "owner", "My Room"))
}

func TestAdminBypassesDisabledToggle(t *testing.T) {
	policy := openPolicy()
	policy.AllowRename = false
	policy.AdminRoleID = "role-admin"
	svc, _, store, pc := newTestService(policy)
	seedRoom(store, pc, "room-a")
	pc.memberRole["mod"] = "role-admin"

	err := svc.Rename(context.Background(), "room-a", "owner", "Nope")
	require.ErrorIs(t, err, ErrPermissionDenied, "toggle binds the owner")

	require.NoError(t, svc.Rename(context.Background(), "room-a", "mod", "Renamed"), "admins bypass toggles")
}

func TestSetLockResyncsOverlay(t *testing.T) {
	policy := openPolicy()
	svc, _, store, pc := newTestService(policy)
	seedRoom(store, pc, "room-a")

	require.NoError(t, svc.SetLock(context.Background(), "room-a", "owner", true))
	stored, _ := store.GetRoom(context.Background(), "room-a")
	require.True(t, stored.Locked)
	require.Contains(t, pc.channelOverwrites("room-a"), "guild-1", "everyone deny lands on lock")

	// Locking an already locked room is a no-op.
	writes := pc.writeCount()
	require.NoError(t, svc.SetLock(context.Background(), "room-a", "owner", true))
	require.Equal(t, writes, pc.writeCount())
}

func TestDenyRejectsOwner(t *testing.T) {
	policy := openPolicy()
	svc, _, store, pc := newTestService(policy)
	seedRoom(store, pc, "room-a")

	err := svc.Deny(context.Background(), "room-a", "owner", "owner")
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestAllowThenDenyMovesBetweenSets(t *testing.T) {
	policy := openPolicy()
	svc, _, store, pc := newTestService(policy)
	seedRoom(store, pc, "room-a")

	require.NoError(t, svc.Allow(context.Background(), "room-a", "owner", "u2"))
	stored, _ := store.GetRoom(context.Background(), "room-a")
	require.True(t, stored.IsAllowed("u2"))

	require.NoError(t, svc.Deny(context.Background(), "room-a", "owner", "u2"))
	stored, _ = store.GetRoom(context.Background(), "room-a")
	require.False(t, stored.IsAllowed("u2"), "a user is in at most one of the two sets")
	require.True(t, stored.IsDenied("u2"))
}

func TestSetKeepAliveCancelsPendingCountdown(t *testing.T) {
	policy := openPolicy()
	svc, scheduler, store, pc := newTestService(policy)
	room := seedRoom(store, pc, "room-a")

	scheduler.RoomEmptied(room, policy)
	require.True(t, scheduler.IsPending("room-a"))

	require.NoError(t, svc.SetKeepAlive(context.Background(), "room-a", "owner", true))
	require.False(t, scheduler.IsPending("room-a"))

	time.Sleep(3 * testGrace)
	require.True(t, store.has("room-a"))
}

func TestDeleteCommandReclaimsImmediately(t *testing.T) {
	policy := openPolicy()
	svc, _, store, pc := newTestService(policy)
	seedRoom(store, pc, "room-a")

	require.NoError(t, svc.Delete(context.Background(), "room-a", "owner"))
	require.False(t, store.has("room-a"))
	exists, _ := pc.ChannelExists(context.Background(), "room-a")
	require.False(t, exists)
}

func TestCommandOnUnknownRoom(t *testing.T) {
	policy := openPolicy()
	svc, _, _, _ := newTestService(policy)

	err := svc.SetCapacity(context.Background(), "ghost", "owner", 5)
	require.ErrorIs(t, err, ErrRoomNotFound)
}
