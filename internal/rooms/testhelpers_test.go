package rooms

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aura-voice/backend/internal/models"
	"github.com/aura-voice/backend/internal/platform"
	"github.com/aura-voice/backend/pkg/queue"
)

// memStore is an in-memory Store for tests. It hands out copies so callers
// mutate the store only through UpdateRoom, like the real repository.
type memStore struct {
	mu    sync.Mutex
	rooms map[string]models.ManagedRoom
}

func newMemStore() *memStore {
	return &memStore{rooms: make(map[string]models.ManagedRoom)}
}

func (s *memStore) CreateRoom(ctx context.Context, room *models.ManagedRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	room.CreatedAt = now
	room.LastActiveAt = now
	s.rooms[room.VoiceChannelID] = *room
	return nil
}

func (s *memStore) GetRoom(ctx context.Context, voiceChannelID string) (*models.ManagedRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[voiceChannelID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	out := room
	return &out, nil
}

func (s *memStore) GetOwnedRoom(ctx context.Context, guildID, ownerID string) (*models.ManagedRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		if room.GuildID == guildID && room.OwnerID == ownerID {
			out := room
			return &out, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListRooms(ctx context.Context, guildID string) ([]models.ManagedRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.ManagedRoom
	for _, room := range s.rooms {
		if room.GuildID == guildID {
			list = append(list, room)
		}
	}
	return list, nil
}

func (s *memStore) ListAllRooms(ctx context.Context) ([]models.ManagedRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.ManagedRoom
	for _, room := range s.rooms {
		list = append(list, room)
	}
	return list, nil
}

func (s *memStore) UpdateRoom(ctx context.Context, room *models.ManagedRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.VoiceChannelID]; !ok {
		return ErrRoomNotFound
	}
	s.rooms[room.VoiceChannelID] = *room
	return nil
}

func (s *memStore) DeleteRoom(ctx context.Context, voiceChannelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, voiceChannelID)
	return nil
}

func (s *memStore) TouchRoom(ctx context.Context, voiceChannelID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[voiceChannelID]; ok {
		room.LastActiveAt = at
		s.rooms[voiceChannelID] = room
	}
	return nil
}

func (s *memStore) has(voiceChannelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[voiceChannelID]
	return ok
}

// staticPolicies serves one policy for every guild.
type staticPolicies struct {
	policy *models.GuildPolicy
}

func (p *staticPolicies) GetOrCreate(ctx context.Context, guildID string) (*models.GuildPolicy, error) {
	out := *p.policy
	out.GuildID = guildID
	return &out, nil
}

// staticPrefs serves one preference (or nil) for every user.
type staticPrefs struct {
	pref *models.UserPreference
}

func (p *staticPrefs) Get(ctx context.Context, guildID, userID string) (*models.UserPreference, error) {
	return p.pref, nil
}

// fakePlatform is an in-memory platform.Client with write counters and
// injectable failures.
type fakePlatform struct {
	mu         sync.Mutex
	nextID     int
	channels   map[string]bool
	overwrites map[string]map[string]platform.Overwrite
	occupants  map[string][]string
	usernames  map[string]string
	memberRole map[string]string // userID -> roleID
	moved      map[string]string // userID -> channelID

	overwriteWrites int // SetOverwrite + ClearOverwrite calls
	deletes         int

	failCreateText  bool
	failCreateVoice bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channels:   make(map[string]bool),
		overwrites: make(map[string]map[string]platform.Overwrite),
		occupants:  make(map[string][]string),
		usernames:  make(map[string]string),
		memberRole: make(map[string]string),
		moved:      make(map[string]string),
	}
}

func (f *fakePlatform) addChannel(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id] = true
}

func (f *fakePlatform) setOccupants(channelID string, userIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.occupants[channelID] = userIDs
}

func (f *fakePlatform) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overwriteWrites
}

func (f *fakePlatform) channelOverwrites(channelID string) map[string]platform.Overwrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]platform.Overwrite, len(f.overwrites[channelID]))
	for k, v := range f.overwrites[channelID] {
		out[k] = v
	}
	return out
}

func (f *fakePlatform) CreateVoiceChannel(ctx context.Context, guildID string, params platform.CreateChannelParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateVoice {
		return "", errors.New("voice create refused")
	}
	f.nextID++
	id := fmt.Sprintf("voice-%d", f.nextID)
	f.channels[id] = true
	return id, nil
}

func (f *fakePlatform) CreateTextChannel(ctx context.Context, guildID string, params platform.CreateChannelParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateText {
		return "", errors.New("text create refused")
	}
	f.nextID++
	id := fmt.Sprintf("text-%d", f.nextID)
	f.channels[id] = true
	return id, nil
}

func (f *fakePlatform) DeleteChannel(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.channels[channelID] {
		return platform.ErrNotFound
	}
	delete(f.channels, channelID)
	delete(f.overwrites, channelID)
	f.deletes++
	return nil
}

func (f *fakePlatform) UpdateChannel(ctx context.Context, channelID string, patch platform.ChannelPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.channels[channelID] {
		return platform.ErrNotFound
	}
	return nil
}

func (f *fakePlatform) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[channelID], nil
}

func (f *fakePlatform) GetOverwrites(ctx context.Context, channelID string) ([]platform.Overwrite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Overwrite
	for _, ow := range f.overwrites[channelID] {
		out = append(out, ow)
	}
	return out, nil
}

func (f *fakePlatform) SetOverwrite(ctx context.Context, channelID string, ow platform.Overwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.overwrites[channelID] == nil {
		f.overwrites[channelID] = make(map[string]platform.Overwrite)
	}
	f.overwrites[channelID][ow.TargetID] = ow
	f.overwriteWrites++
	return nil
}

func (f *fakePlatform) ClearOverwrite(ctx context.Context, channelID, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.overwrites[channelID], targetID)
	f.overwriteWrites++
	return nil
}

func (f *fakePlatform) MoveMember(ctx context.Context, guildID, userID, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moved[userID] = channelID
	return nil
}

func (f *fakePlatform) MemberHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memberRole[userID] == roleID, nil
}

func (f *fakePlatform) ChannelOccupants(ctx context.Context, guildID, channelID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.occupants[channelID], nil
}

func (f *fakePlatform) Username(ctx context.Context, guildID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usernames[userID], nil
}

// recordingAuditor captures audit actions.
type recordingAuditor struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAuditor) Record(ctx context.Context, guildID, roomID, action, actorID string, details interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	return nil
}

func (a *recordingAuditor) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.actions...)
}

// recordingExports counts enqueued export jobs.
type recordingExports struct {
	mu   sync.Mutex
	jobs []queue.AuditExportPayload
}

func (e *recordingExports) EnqueueAuditExport(ctx context.Context, payload queue.AuditExportPayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs = append(e.jobs, payload)
	return nil
}

func openPolicy() *models.GuildPolicy {
	return &models.GuildPolicy{
		GuildID:         "guild-1",
		HubChannelID:    "hub-1",
		NameTemplate:    "{username}'s Room",
		DefaultBitrate:  64,
		DeleteWhenEmpty: true,
		GraceSeconds:    1,
		AllowRename:     true,
		AllowCapacity:   true,
		AllowBitrate:    true,
		AllowLock:       true,
		AllowManage:     true,
		MaxCapacity:     10,
		MaxBitrate:      128,
		AutoPermission:  true,
	}
}
