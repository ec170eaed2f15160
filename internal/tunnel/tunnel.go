// Package tunnel resolves the externally reachable base URL used to
// build webhook callbacks, from a local ngrok agent.
package tunnel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client queries the ngrok agent API for the current public tunnel URL.
// Construct one at process start and inject it; there is no package
// singleton.
type Client struct {
	agentURL string
	client   *http.Client
}

// NewClient creates a client for the ngrok agent API, e.g.
// http://127.0.0.1:4040.
func NewClient(agentURL string) *Client {
	return &Client{
		agentURL: strings.TrimRight(agentURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// PublicURL returns the public URL of the first active tunnel. A
// subscription cannot be created until this resolves.
func (c *Client) PublicURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.agentURL+"/api/tunnels", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tunnel agent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("tunnel agent bad status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Tunnels []struct {
			PublicURL string `json:"public_url"`
		} `json:"tunnels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode tunnel response: %w", err)
	}

	if len(result.Tunnels) == 0 {
		return "", fmt.Errorf("no active tunnels")
	}
	return result.Tunnels[0].PublicURL, nil
}
