// Package platform talks to the chat platform's REST API: channel CRUD,
// permission overwrites, member moves, and live occupancy reads.
package platform

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested resource no longer exists on the platform.
var ErrNotFound = errors.New("platform: not found")

// Permission bits applied through overwrites.
type Permissions uint64

const (
	PermView Permissions = 1 << iota
	PermConnect
	PermSpeak
	PermManageChannel
	PermMoveMembers
	PermMuteMembers
)

// PermManagement is the full set granted to a room owner and the admin role.
const PermManagement = PermView | PermConnect | PermSpeak | PermManageChannel | PermMoveMembers | PermMuteMembers

// TargetType distinguishes role and member overwrite targets.
type TargetType string

const (
	TargetRole   TargetType = "role"
	TargetMember TargetType = "member"
)

// Overwrite is one per-principal permission entry on a channel. The everyone
// principal is the role whose id equals the guild id.
type Overwrite struct {
	TargetID   string      `json:"target_id"`
	TargetType TargetType  `json:"target_type"`
	Allow      Permissions `json:"allow"`
	Deny       Permissions `json:"deny"`
}

// ChannelPatch holds mutable channel attributes; nil fields are left unchanged.
type ChannelPatch struct {
	Name     *string `json:"name,omitempty"`
	Capacity *int    `json:"capacity,omitempty"`
	Bitrate  *int    `json:"bitrate,omitempty"` // kbps
}

// CreateChannelParams describes a channel to create under a parent category.
type CreateChannelParams struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
	Capacity int    `json:"capacity,omitempty"`
	Bitrate  int    `json:"bitrate,omitempty"` // kbps; voice channels only
}

// Client is the platform API surface the lifecycle manager depends on.
type Client interface {
	CreateVoiceChannel(ctx context.Context, guildID string, params CreateChannelParams) (string, error)
	CreateTextChannel(ctx context.Context, guildID string, params CreateChannelParams) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	UpdateChannel(ctx context.Context, channelID string, patch ChannelPatch) error
	ChannelExists(ctx context.Context, channelID string) (bool, error)

	GetOverwrites(ctx context.Context, channelID string) ([]Overwrite, error)
	SetOverwrite(ctx context.Context, channelID string, ow Overwrite) error
	ClearOverwrite(ctx context.Context, channelID, targetID string) error

	MoveMember(ctx context.Context, guildID, userID, channelID string) error
	MemberHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
	ChannelOccupants(ctx context.Context, guildID, channelID string) ([]string, error)
	Username(ctx context.Context, guildID, userID string) (string, error)
}
