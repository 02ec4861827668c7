package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	subscribed []string
	cancelled  []string
}

func (f *fakeSubscriber) SubscribeGuild(guildID string, handler func(event string, payload []byte)) (func(), error) {
	f.subscribed = append(f.subscribed, guildID)
	return func() { f.cancelled = append(f.cancelled, guildID) }, nil
}

func newTestClient(guildID, id string) *Client {
	return &Client{ID: id, GuildID: guildID, send: make(chan WSMessage, 4)}
}

func TestHubSubscribesPerGuildOnce(t *testing.T) {
	sub := &fakeSubscriber{}
	hub := NewHub(sub, nil)

	a := newTestClient("g1", "c1")
	b := newTestClient("g1", "c2")
	hub.Register(a)
	hub.Register(b)

	require.Equal(t, []string{"g1"}, sub.subscribed, "one Redis subscription per guild")
	require.Equal(t, 2, hub.WatcherCount("g1"))

	hub.Unregister(a)
	require.Empty(t, sub.cancelled, "subscription stays while watchers remain")
	hub.Unregister(b)
	require.Equal(t, []string{"g1"}, sub.cancelled, "last watcher tears the subscription down")
}

func TestHubBroadcastReachesGuildClientsOnly(t *testing.T) {
	hub := NewHub(nil, nil)
	a := newTestClient("g1", "c1")
	b := newTestClient("g2", "c2")
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast("g1", "room_created", map[string]string{"room_id": "voice-1"})

	select {
	case msg := <-a.send:
		require.Equal(t, "room_created", msg.Event)
	default:
		t.Fatal("g1 client did not receive the event")
	}
	select {
	case msg := <-b.send:
		t.Fatalf("g2 client must not receive g1 events, got %q", msg.Event)
	default:
	}
}
