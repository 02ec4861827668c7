package events

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// GuildSubscriber subscribes to a guild's event stream.
type GuildSubscriber interface {
	SubscribeGuild(guildID string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains guild_id -> set of dashboard connections and broadcasts
// lifecycle events to them. The per-guild Redis subscription is opened when
// the first client connects and closed when the last one leaves.
type Hub struct {
	mu     sync.RWMutex
	guilds map[string]map[string]*Client
	subs   map[string]func()
	sub    GuildSubscriber
	logger *zap.Logger
}

// NewHub creates a dashboard hub.
func NewHub(sub GuildSubscriber, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		guilds: make(map[string]map[string]*Client),
		subs:   make(map[string]func()),
		sub:    sub,
		logger: logger,
	}
}

// Register adds a client to its guild's room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.guilds[c.GuildID] == nil {
		h.guilds[c.GuildID] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeGuild(c.GuildID, func(event string, payload []byte) {
				h.Broadcast(c.GuildID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.GuildID] = cancel
			} else {
				h.logger.Warn("guild subscription failed", zap.String("guild_id", c.GuildID), zap.Error(err))
			}
		}
	}
	h.guilds[c.GuildID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("dashboard client joined", zap.String("client_id", c.ID), zap.String("guild_id", c.GuildID))
}

// Unregister removes a client, dropping the guild subscription when empty.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.guilds[c.GuildID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.guilds, c.GuildID)
			if cancel, ok := h.subs[c.GuildID]; ok {
				cancel()
				delete(h.subs, c.GuildID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("dashboard client left", zap.String("client_id", c.ID), zap.String("guild_id", c.GuildID))
}

// Broadcast sends an event to every local client watching a guild.
func (h *Hub) Broadcast(guildID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.guilds[guildID]
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// WatcherCount returns the number of connected clients for a guild.
func (h *Hub) WatcherCount(guildID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.guilds[guildID])
}
