package rooms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aura-voice/backend/internal/models"
)

func newTestFactory(policy *models.GuildPolicy, pref *models.UserPreference) (*Factory, *memStore, *fakePlatform, *recordingAuditor) {
	store := newMemStore()
	pc := newFakePlatform()
	auditor := &recordingAuditor{}
	sync := NewSynchronizer(pc, nil)
	f := NewFactory(store, &staticPolicies{policy: policy}, &staticPrefs{pref: pref}, pc, sync, nil, auditor, nil)
	return f, store, pc, auditor
}

func TestCreateRoomProvisionsLinkedPair(t *testing.T) {
	policy := openPolicy()
	f, store, pc, auditor := newTestFactory(policy, nil)
	pc.usernames["u1"] = "alice"

	room, err := f.CreateRoom(context.Background(), "guild-1", "u1")
	require.NoError(t, err)
	require.Equal(t, "u1", room.OwnerID)
	require.True(t, store.has(room.VoiceChannelID))
	require.NotEmpty(t, room.TextChannelID)

	exists, _ := pc.ChannelExists(context.Background(), room.VoiceChannelID)
	require.True(t, exists)
	exists, _ = pc.ChannelExists(context.Background(), room.TextChannelID)
	require.True(t, exists)

	require.Equal(t, room.VoiceChannelID, pc.moved["u1"], "requester is moved into the new room")
	require.Contains(t, auditor.recorded(), models.AuditRoomCreated)

	// AutoPermission applied the owner overlay.
	require.Contains(t, pc.channelOverwrites(room.VoiceChannelID), "u1")
}

func TestCreateRoomIdempotentPerOwner(t *testing.T) {
	policy := openPolicy()
	f, _, pc, _ := newTestFactory(policy, nil)
	pc.usernames["u1"] = "alice"

	first, err := f.CreateRoom(context.Background(), "guild-1", "u1")
	require.NoError(t, err)

	second, err := f.CreateRoom(context.Background(), "guild-1", "u1")
	require.NoError(t, err)
	require.Equal(t, first.VoiceChannelID, second.VoiceChannelID,
		"a second hub join returns the existing room instead of spawning another")
	require.Equal(t, first.VoiceChannelID, pc.moved["u1"], "requester is moved back into their room")
}

func TestCreateRoomMultiRoomAllowed(t *testing.T) {
	policy := openPolicy()
	policy.AllowMultiRoom = true
	f, _, pc, _ := newTestFactory(policy, nil)
	pc.usernames["u1"] = "alice"

	first, err := f.CreateRoom(context.Background(), "guild-1", "u1")
	require.NoError(t, err)
	second, err := f.CreateRoom(context.Background(), "guild-1", "u1")
	require.NoError(t, err)
	require.NotEqual(t, first.VoiceChannelID, second.VoiceChannelID)
}

func TestCreateRoomRollsBackOnTextFailure(t *testing.T) {
	policy := openPolicy()
	f, store, pc, _ := newTestFactory(policy, nil)
	pc.failCreateText = true

	_, err := f.CreateRoom(context.Background(), "guild-1", "u1")
	require.ErrorIs(t, err, ErrRoomCreationFailed)

	all, _ := store.ListAllRooms(context.Background())
	require.Empty(t, all, "no record without a full channel pair")
	exists, _ := pc.ChannelExists(context.Background(), "voice-1")
	require.False(t, exists, "orphaned voice channel is torn down")
}

func TestCreateRoomLockPreferenceGatedByPolicy(t *testing.T) {
	policy := openPolicy()
	policy.AllowLock = false
	pref := &models.UserPreference{Locked: boolp(true)}
	f, _, pc, _ := newTestFactory(policy, pref)
	pc.usernames["u1"] = "alice"

	room, err := f.CreateRoom(context.Background(), "guild-1", "u1")
	require.NoError(t, err)
	require.False(t, room.Locked)
}
