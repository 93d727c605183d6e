// Package api is a minimal client for the workload's own HTTP API, used
// to probe health and whether the provisioned admin credential is still
// valid.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to one workload instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the given base URL, e.g.
// "http://localhost:3000".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Health checks the readiness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: status %d", resp.StatusCode)
	}
	return nil
}

// BuildInfo returns the version reported by the workload.
func (c *Client) BuildInfo(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var body struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode health response: %w", err)
	}
	return body.Version, nil
}

// PasswordHasBeenChanged reports whether the provisioned admin
// credential no longer authenticates, meaning someone changed it through
// the UI or API. The operator then stops advertising the stored value.
func (c *Client) PasswordHasBeenChanged(ctx context.Context, user, password string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/org", nil)
	if err != nil {
		return false, err
	}
	req.SetBasicAuth(user, password)
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("credential probe: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusUnauthorized:
		return true, nil
	default:
		return false, fmt.Errorf("credential probe: status %d", resp.StatusCode)
	}
}
