package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agency-gamification/models"
	"agency-gamification/utils"
)

// GamificationClient calls the gamification API on behalf of one user.
// With Bearer set it sends a JWT; otherwise it sends the gateway token and
// the X-User-* headers the gateway would add.
type GamificationClient struct {
	BaseURL    string
	Token      string
	Bearer     string
	UserID     models.UserID
	Username   string
	HTTPClient *http.Client
}

func NewGamificationClient(baseURL string, userID models.UserID, username string) *GamificationClient {
	return &GamificationClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		UserID:     userID,
		Username:   username,
		HTTPClient: utils.HTTPClient,
	}
}

func (c *GamificationClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.Bearer != "":
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	default:
		if c.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.Token)
		}
		req.Header.Set("X-User-ID", c.UserID.String())
		if c.Username != "" {
			req.Header.Set("X-Username", c.Username)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call gamification service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("gamification service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gamification response: %w", err)
	}
	return nil
}

// Ping reports the user present.
func (c *GamificationClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/gamification/ping", map[string]string{
		"userId":   c.UserID.String(),
		"username": c.Username,
	}, nil)
}

// ActiveShift is an open session as seen by a reconnecting client.
type ActiveShift struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	StartTime time.Time `json:"start_time"`
}

// Elapsed is recomputed from StartTime; the server's elapsed_seconds is
// only a hint.
func (s *ActiveShift) Elapsed(now time.Time) time.Duration {
	if s == nil || now.Before(s.StartTime) {
		return 0
	}
	return now.Sub(s.StartTime)
}

// ActiveSession resumes an in-progress shift after a reconnect. It returns
// nil when no shift is open.
func (c *GamificationClient) ActiveSession(ctx context.Context) (*ActiveShift, error) {
	var shift *ActiveShift
	if err := c.do(ctx, http.MethodGet, "/gamification/shift/active/"+c.UserID.String(), nil, &shift); err != nil {
		return nil, err
	}
	return shift, nil
}

func (c *GamificationClient) StartShift(ctx context.Context) (*ActiveShift, error) {
	var shift ActiveShift
	if err := c.do(ctx, http.MethodPost, "/gamification/shift/start", map[string]string{"userId": c.UserID.String()}, &shift); err != nil {
		return nil, err
	}
	return &shift, nil
}

// StopShift closes the open shift and returns the raw result body.
func (c *GamificationClient) StopShift(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/gamification/shift/stop", map[string]string{"userId": c.UserID.String()}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
