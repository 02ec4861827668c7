package models

import "time"

// UserPreference holds a user's stored room defaults for one guild.
// Nil pointer fields mean "no preference, use the guild default".
// Written only by explicit preference commands; read-only input to room creation.
type UserPreference struct {
	GuildID      string    `json:"guild_id"`
	UserID       string    `json:"user_id"`
	NameTemplate *string   `json:"name_template,omitempty"`
	Capacity     *int      `json:"capacity,omitempty"`
	Bitrate      *int      `json:"bitrate,omitempty"` // kbps
	Locked       *bool     `json:"locked,omitempty"`
	KeepAlive    *bool     `json:"keep_alive,omitempty"`
	Allowed      []string  `json:"allowed,omitempty"`
	Denied       []string  `json:"denied,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
