// Package viewer renders a running antnest server in the terminal.
// It observes the nest through the HTTP API and drives it with the
// spawn and reset endpoints.
package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/antnest/internal/api"
	"github.com/talgya/antnest/internal/engine"
)

// Client talks to an antnest API server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Client targeting the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Map fetches the nest layout.
func (c *Client) Map(ctx context.Context) (*engine.MapSnapshot, error) {
	var m engine.MapSnapshot
	if err := c.fetchJSON(ctx, "/api/map", &m); err != nil {
		return nil, fmt.Errorf("fetch map: %w", err)
	}
	return &m, nil
}

// State fetches the current agents and exploration counters.
func (c *Client) State(ctx context.Context) (*engine.StateSnapshot, error) {
	var st engine.StateSnapshot
	if err := c.fetchJSON(ctx, "/api/state", &st); err != nil {
		return nil, fmt.Errorf("fetch state: %w", err)
	}
	return &st, nil
}

// Spawn adds n ants at the spawn room.
func (c *Client) Spawn(ctx context.Context, n int) error {
	return c.post(ctx, fmt.Sprintf("/api/spawn?count=%d", n))
}

// Reset regenerates the nest.
func (c *Client) Reset(ctx context.Context) error {
	return c.post(ctx, "/api/reset")
}

// WaitReady polls the health endpoint with exponential backoff until it
// answers or ctx ends.
func (c *Client) WaitReady(ctx context.Context) error {
	backoff := 250 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		var health map[string]any
		err := c.fetchJSON(ctx, "/api/health", &health)
		if err == nil {
			return nil
		}
		slog.Info("antnest not ready, retrying...", "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s: %w", c.BaseURL, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Subscribe opens the live WebSocket feed. The returned channel closes when
// the connection drops or ctx ends.
func (c *Client) Subscribe(ctx context.Context) (<-chan api.WSMessage, error) {
	url := "ws" + strings.TrimPrefix(c.BaseURL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	out := make(chan api.WSMessage, 16)
	done := make(chan struct{})

	// Unblocks ReadJSON when ctx ends first.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			var msg api.WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
