package models

import "time"

// GuildPolicy is the per-guild configuration for ephemeral voice rooms.
// Created lazily with defaults on first access; mutated by guild admins; never deleted.
type GuildPolicy struct {
	GuildID          string    `json:"guild_id"`
	HubChannelID     string    `json:"hub_channel_id"`
	ParentCategoryID string    `json:"parent_category_id"`
	NameTemplate     string    `json:"name_template"` // supports {username} placeholder
	DefaultCapacity  int       `json:"default_capacity"`
	DefaultBitrate   int       `json:"default_bitrate"` // kbps
	DeleteWhenEmpty  bool      `json:"delete_when_empty"`
	GraceSeconds     int       `json:"grace_seconds"`
	AllowRename      bool      `json:"allow_rename"`
	AllowCapacity    bool      `json:"allow_capacity"`
	AllowBitrate     bool      `json:"allow_bitrate"`
	AllowLock        bool      `json:"allow_lock"`
	AllowManage      bool      `json:"allow_manage"`
	AllowMultiRoom   bool      `json:"allow_multi_room"`
	MaxCapacity      int       `json:"max_capacity"`
	MaxBitrate       int       `json:"max_bitrate"` // kbps
	AdminRoleID      string    `json:"admin_role_id"`
	AutoPermission   bool      `json:"auto_permission"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GracePeriod returns the configured empty-room grace period.
func (p *GuildPolicy) GracePeriod() time.Duration {
	return time.Duration(p.GraceSeconds) * time.Second
}
