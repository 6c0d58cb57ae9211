// Package rooms provisions conversation rooms on the Daily REST API.
package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/voicecall/internal/apperr"
)

const (
	DefaultBaseURL = "https://api.daily.co/v1"
	DefaultTTL     = time.Hour

	maxErrorBody = 4 << 10
)

// Room is a provisioned room together with an owner token for the bot.
type Room struct {
	Name      string
	URL       string
	Token     string
	ExpiresAt time.Time
}

// Client talks to the Daily REST API.
type Client struct {
	baseURL string
	apiKey  string
	ttl     time.Duration
	hc      *http.Client
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTTL sets how long rooms stay open.
func WithTTL(d time.Duration) Option {
	return func(c *Client) { c.ttl = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a Daily client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		ttl:     DefaultTTL,
		hc:      &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type roomProperties struct {
	Exp                  int64 `json:"exp"`
	EnableChat           bool  `json:"enable_chat"`
	EnableEmojiReactions bool  `json:"enable_emoji_reactions"`
}

type tokenProperties struct {
	RoomName string `json:"room_name"`
	IsOwner  bool   `json:"is_owner"`
}

// Provision creates a room that expires after the configured TTL and an
// owner token for it.
func (c *Client) Provision(ctx context.Context) (Room, error) {
	expires := c.now().Add(c.ttl)

	var room struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	err := c.post(ctx, "/rooms", map[string]any{
		"properties": roomProperties{Exp: expires.Unix()},
	}, &room)
	if err != nil {
		return Room{}, fmt.Errorf("create room: %w", err)
	}
	if room.Name == "" || room.URL == "" {
		return Room{}, apperr.NewUpstream("Invalid room data from Daily API", nil)
	}

	var token struct {
		Token string `json:"token"`
	}
	err = c.post(ctx, "/meeting-tokens", map[string]any{
		"properties": tokenProperties{RoomName: room.Name, IsOwner: true},
	}, &token)
	if err != nil {
		return Room{}, fmt.Errorf("create meeting token: %w", err)
	}
	if token.Token == "" {
		return Room{}, apperr.NewUpstream("Invalid token data from Daily API", nil)
	}

	slog.Debug("Room provisioned", "room_name", room.Name, "expires_at", expires)
	return Room{Name: room.Name, URL: room.URL, Token: token.Token, ExpiresAt: expires.Truncate(time.Second)}, nil
}

// post sends an authenticated request to the Daily REST API. Daily answers
// successful creates with exactly 200, and any other status is logged with its
// body before being returned as an upstream failure.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperr.NewUpstream("encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apperr.NewUpstream("build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return apperr.NewUpstream("Daily API request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.Error("Daily API error", "path", path, "status", resp.StatusCode, "body", string(raw))
		return apperr.NewUpstream(fmt.Sprintf("Daily API returned status %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.NewUpstream("decode Daily API response", err)
	}
	return nil
}
