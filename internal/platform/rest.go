package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RESTClient implements Client over the platform's HTTP API.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewRESTClient creates a platform REST client.
func NewRESTClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *RESTClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type channelResponse struct {
	ID string `json:"id"`
}

// CreateVoiceChannel creates a voice channel and returns its id.
func (c *RESTClient) CreateVoiceChannel(ctx context.Context, guildID string, params CreateChannelParams) (string, error) {
	var out channelResponse
	path := fmt.Sprintf("/guilds/%s/channels/voice", guildID)
	if err := c.do(ctx, http.MethodPost, path, params, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CreateTextChannel creates a text channel and returns its id.
func (c *RESTClient) CreateTextChannel(ctx context.Context, guildID string, params CreateChannelParams) (string, error) {
	var out channelResponse
	path := fmt.Sprintf("/guilds/%s/channels/text", guildID)
	if err := c.do(ctx, http.MethodPost, path, params, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// DeleteChannel deletes a channel by id.
func (c *RESTClient) DeleteChannel(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+channelID, nil, nil)
}

// UpdateChannel patches channel attributes.
func (c *RESTClient) UpdateChannel(ctx context.Context, channelID string, patch ChannelPatch) error {
	return c.do(ctx, http.MethodPatch, "/channels/"+channelID, patch, nil)
}

// ChannelExists reports whether the channel still exists on the platform.
func (c *RESTClient) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &channelResponse{})
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetOverwrites returns the channel's current permission overwrites.
func (c *RESTClient) GetOverwrites(ctx context.Context, channelID string) ([]Overwrite, error) {
	var out []Overwrite
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID+"/overwrites", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetOverwrite creates or replaces one permission overwrite.
func (c *RESTClient) SetOverwrite(ctx context.Context, channelID string, ow Overwrite) error {
	return c.do(ctx, http.MethodPut, "/channels/"+channelID+"/overwrites/"+ow.TargetID, ow, nil)
}

// ClearOverwrite removes the overwrite for a target, if any.
func (c *RESTClient) ClearOverwrite(ctx context.Context, channelID, targetID string) error {
	err := c.do(ctx, http.MethodDelete, "/channels/"+channelID+"/overwrites/"+targetID, nil, nil)
	if err == ErrNotFound {
		return nil
	}
	return err
}

// MoveMember moves a connected member into the given voice channel.
func (c *RESTClient) MoveMember(ctx context.Context, guildID, userID, channelID string) error {
	body := map[string]string{"channel_id": channelID}
	path := fmt.Sprintf("/guilds/%s/members/%s/voice", guildID, userID)
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

// MemberHasRole reports whether the guild member holds the given role.
func (c *RESTClient) MemberHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	var out struct {
		Roles []string `json:"roles"`
	}
	path := fmt.Sprintf("/guilds/%s/members/%s", guildID, userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	for _, r := range out.Roles {
		if r == roleID {
			return true, nil
		}
	}
	return false, nil
}

// ChannelOccupants returns the user ids currently connected to a voice channel.
// This is the live platform state, not a cached view.
func (c *RESTClient) ChannelOccupants(ctx context.Context, guildID, channelID string) ([]string, error) {
	var out struct {
		UserIDs []string `json:"user_ids"`
	}
	path := fmt.Sprintf("/guilds/%s/channels/%s/occupants", guildID, channelID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.UserIDs, nil
}

// Username returns the display name for a user, used for room name templates.
func (c *RESTClient) Username(ctx context.Context, guildID, userID string) (string, error) {
	var out struct {
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
	}
	path := fmt.Sprintf("/guilds/%s/members/%s", guildID, userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	if out.DisplayName != "" {
		return out.DisplayName, nil
	}
	return out.Username, nil
}
