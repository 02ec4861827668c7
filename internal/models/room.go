package models

import "time"

// ManagedRoom is a live ephemeral room: a voice channel and its paired text
// channel, created and destroyed together. Keyed by the voice channel id.
// Invariant: the owner is never present in the deny set.
type ManagedRoom struct {
	GuildID        string    `json:"guild_id"`
	VoiceChannelID string    `json:"voice_channel_id"`
	TextChannelID  string    `json:"text_channel_id"`
	OwnerID        string    `json:"owner_id"`
	Locked         bool      `json:"locked"`
	KeepAlive      bool      `json:"keep_alive"`
	Allowed        []string  `json:"allowed"`
	Denied         []string  `json:"denied"`
	CreatedAt      time.Time `json:"created_at"`
	LastActiveAt   time.Time `json:"last_active_at"`
}

// IsAllowed reports whether the user id is in the allow set.
func (r *ManagedRoom) IsAllowed(userID string) bool {
	return contains(r.Allowed, userID)
}

// IsDenied reports whether the user id is in the deny set.
func (r *ManagedRoom) IsDenied(userID string) bool {
	return contains(r.Denied, userID)
}

// AddAllowed inserts userID into the allow set and removes it from the deny set.
func (r *ManagedRoom) AddAllowed(userID string) {
	r.Denied = remove(r.Denied, userID)
	if !contains(r.Allowed, userID) {
		r.Allowed = append(r.Allowed, userID)
	}
}

// AddDenied inserts userID into the deny set and removes it from the allow set.
// The owner cannot be denied.
func (r *ManagedRoom) AddDenied(userID string) {
	if userID == r.OwnerID {
		return
	}
	r.Allowed = remove(r.Allowed, userID)
	if !contains(r.Denied, userID) {
		r.Denied = append(r.Denied, userID)
	}
}

// SetOwner updates the owner and drops the new owner from the deny set so the
// invariant holds across transfers.
func (r *ManagedRoom) SetOwner(userID string) {
	r.OwnerID = userID
	r.Denied = remove(r.Denied, userID)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
