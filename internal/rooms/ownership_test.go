package rooms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aura-voice/backend/internal/platform"
)

func newTestOwnership() (*OwnershipManager, *memStore, *fakePlatform) {
	store := newMemStore()
	pc := newFakePlatform()
	sync := NewSynchronizer(pc, nil)
	m := NewOwnershipManager(store, pc, sync, nil, &recordingAuditor{}, nil)
	return m, store, pc
}

func TestTransferRequiresNewOwnerPresent(t *testing.T) {
	m, store, pc := newTestOwnership()
	policy := openPolicy()
	room := seedRoom(store, pc, "room-a")
	pc.setOccupants("room-a", "owner")

	err := m.Transfer(context.Background(), room, policy, "absent", false)
	require.ErrorIs(t, err, ErrPermissionDenied)

	stored, _ := store.GetRoom(context.Background(), "room-a")
	require.Equal(t, "owner", stored.OwnerID)
}

func TestTransferMovesManagementOverlay(t *testing.T) {
	m, store, pc := newTestOwnership()
	policy := openPolicy()
	room := seedRoom(store, pc, "room-a")
	pc.setOccupants("room-a", "owner", "u2")

	// Existing overlay from the previous owner.
	sync := NewSynchronizer(pc, nil)
	sync.Apply(context.Background(), room, policy)

	require.NoError(t, m.Transfer(context.Background(), room, policy, "u2", false))

	stored, _ := store.GetRoom(context.Background(), "room-a")
	require.Equal(t, "u2", stored.OwnerID)

	ows := pc.channelOverwrites("room-a")
	require.Equal(t, platform.PermManagement, ows["u2"].Allow, "new owner gains management")
	require.NotContains(t, ows, "owner", "old owner's grant is revoked")
}

func TestTransferAdminBypassesOccupancy(t *testing.T) {
	m, store, pc := newTestOwnership()
	policy := openPolicy()
	room := seedRoom(store, pc, "room-a")

	require.NoError(t, m.Transfer(context.Background(), room, policy, "u2", true))
	stored, _ := store.GetRoom(context.Background(), "room-a")
	require.Equal(t, "u2", stored.OwnerID)
}

func TestTransferClearsNewOwnerFromDenySet(t *testing.T) {
	m, store, pc := newTestOwnership()
	policy := openPolicy()
	room := seedRoom(store, pc, "room-a")
	room.Denied = []string{"u2"}
	_ = store.UpdateRoom(context.Background(), room)

	require.NoError(t, m.Transfer(context.Background(), room, policy, "u2", true))
	stored, _ := store.GetRoom(context.Background(), "room-a")
	require.Equal(t, "u2", stored.OwnerID)
	require.False(t, stored.IsDenied("u2"), "the owner can never be in the deny set")
}

func TestClaimBlockedWhileOwnerPresent(t *testing.T) {
	m, store, pc := newTestOwnership()
	policy := openPolicy()
	room := seedRoom(store, pc, "room-a")
	pc.setOccupants("room-a", "owner", "u2")

	err := m.Claim(context.Background(), room, policy, "u2")
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestClaimRequiresClaimantPresent(t *testing.T) {
	m, store, pc := newTestOwnership()
	policy := openPolicy()
	room := seedRoom(store, pc, "room-a")
	pc.setOccupants("room-a", "u3")

	err := m.Claim(context.Background(), room, policy, "u2")
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestClaimSucceedsWhenOwnerAbsent(t *testing.T) {
	m, store, pc := newTestOwnership()
	policy := openPolicy()
	room := seedRoom(store, pc, "room-a")
	pc.setOccupants("room-a", "u2", "u3")

	require.NoError(t, m.Claim(context.Background(), room, policy, "u2"))
	stored, _ := store.GetRoom(context.Background(), "room-a")
	require.Equal(t, "u2", stored.OwnerID)
}
