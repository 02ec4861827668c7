// Package gateway consumes the platform's push event stream over a websocket
// and dispatches decoded events to typed subscribers.
package gateway

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event names on the gateway wire.
const (
	EventVoiceState    = "voice_state_update"
	EventChannelDelete = "channel_delete"
	EventGuildCreate   = "guild_create"
	EventGuildDelete   = "guild_delete"
)

// VoiceStateEvent is one presence transition: a user moved between voice
// channels. Empty ChannelID means the user disconnected; empty PrevChannelID
// means the user was not in a voice channel before.
type VoiceStateEvent struct {
	GuildID       string `json:"guild_id"`
	UserID        string `json:"user_id"`
	ChannelID     string `json:"channel_id"`
	PrevChannelID string `json:"prev_channel_id"`
}

// ChannelDeleteEvent signals a channel was deleted, possibly outside this service.
type ChannelDeleteEvent struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
}

// GuildEvent signals the bot joined or left a guild.
type GuildEvent struct {
	GuildID string `json:"guild_id"`
}

// Dispatcher routes decoded gateway events to registered handlers. Each event
// kind has its own subscriber list, so consumers only see the events they
// asked for.
type Dispatcher struct {
	mu            sync.RWMutex
	onVoiceState  []func(VoiceStateEvent)
	onChanDelete  []func(ChannelDeleteEvent)
	onGuildCreate []func(GuildEvent)
	onGuildDelete []func(GuildEvent)
	logger        *zap.Logger
}

// NewDispatcher creates an event dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger}
}

// OnVoiceState registers a handler for voice state transitions.
func (d *Dispatcher) OnVoiceState(fn func(VoiceStateEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onVoiceState = append(d.onVoiceState, fn)
}

// OnChannelDelete registers a handler for channel deletions.
func (d *Dispatcher) OnChannelDelete(fn func(ChannelDeleteEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChanDelete = append(d.onChanDelete, fn)
}

// OnGuildCreate registers a handler for guild joins.
func (d *Dispatcher) OnGuildCreate(fn func(GuildEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onGuildCreate = append(d.onGuildCreate, fn)
}

// OnGuildDelete registers a handler for guild departures.
func (d *Dispatcher) OnGuildDelete(fn func(GuildEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onGuildDelete = append(d.onGuildDelete, fn)
}

// Dispatch decodes and routes one wire message. Unknown events are dropped
// with a debug log so a gateway upgrade cannot break ingestion.
func (d *Dispatcher) Dispatch(event string, data json.RawMessage) {
	switch event {
	case EventVoiceState:
		var ev VoiceStateEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			d.logger.Warn("malformed voice state event", zap.Error(err))
			return
		}
		d.mu.RLock()
		handlers := d.onVoiceState
		d.mu.RUnlock()
		for _, fn := range handlers {
			fn(ev)
		}
	case EventChannelDelete:
		var ev ChannelDeleteEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			d.logger.Warn("malformed channel delete event", zap.Error(err))
			return
		}
		d.mu.RLock()
		handlers := d.onChanDelete
		d.mu.RUnlock()
		for _, fn := range handlers {
			fn(ev)
		}
	case EventGuildCreate, EventGuildDelete:
		var ev GuildEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			d.logger.Warn("malformed guild event", zap.Error(err))
			return
		}
		d.mu.RLock()
		var handlers []func(GuildEvent)
		if event == EventGuildCreate {
			handlers = d.onGuildCreate
		} else {
			handlers = d.onGuildDelete
		}
		d.mu.RUnlock()
		for _, fn := range handlers {
			fn(ev)
		}
	default:
		d.logger.Debug("unhandled gateway event", zap.String("event", event))
	}
}
