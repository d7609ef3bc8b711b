// Package gateclient is the hook-side HTTP client for the relay.
//
// The CLI subcommands that run inside agent hooks (session start/end,
// notify, gate) talk to the control-plane through this client instead of
// hand-rolling requests. Every call is bounded: hooks run inline in the
// agent's lifecycle and must never hang it.
package gateclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/dbbuilder-org/claude-notify/internal/store"
)

// ErrNoDecision means the poll window closed without a recorded verdict.
var ErrNoDecision = errors.New("no decision recorded")

// Client talks to a running relay.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the relay at baseURL (e.g. "http://127.0.0.1:9876").
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// RegisterSession maps a session id to its tmux pane.
func (c *Client) RegisterSession(ctx context.Context, sessionID, terminalHandle, cwd string) error {
	return c.postJSON(ctx, "/api/session/register", map[string]string{
		"session_id":      sessionID,
		"terminal_handle": terminalHandle,
		"cwd":             cwd,
	}, nil)
}

// RemoveSession drops a session registration.
func (c *Client) RemoveSession(ctx context.Context, sessionID string) error {
	return c.postJSON(ctx, "/api/session/remove", map[string]string{
		"session_id": sessionID,
	}, nil)
}

// ActionRequest describes one pending action to register.
type ActionRequest struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Project   string `json:"project"`
	Tool      string `json:"tool"`
}

// RegisterAction registers a pending action and returns the operator-facing
// page URL.
func (c *Client) RegisterAction(ctx context.Context, req ActionRequest) (pageURL string, err error) {
	var resp struct {
		OK      bool   `json:"ok"`
		PageURL string `json:"page_url"`
	}
	if err := c.postJSON(ctx, "/api/action/register", req, &resp); err != nil {
		return "", err
	}
	return resp.PageURL, nil
}

// Decision performs one decision-channel query. found is false while no
// verdict has been recorded for the token.
func (c *Client) Decision(ctx context.Context, token string) (verdict store.Verdict, found bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/decision?token="+url.QueryEscape(token), nil)
	if err != nil {
		return "", false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("decision query: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		OK       bool   `json:"ok"`
		Decision string `json:"decision"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", false, fmt.Errorf("decision query: %w", err)
	}
	if payload.Decision == "" {
		return "", false, nil
	}
	v, ok := store.ParseVerdict(payload.Decision)
	if !ok {
		return "", false, fmt.Errorf("decision query: unrecognized verdict %q", payload.Decision)
	}
	return v, true, nil
}

// WaitForDecision polls the decision channel at a fixed interval until a
// verdict appears or the timeout elapses. Transient network errors are
// retried like absent decisions: the relay may still be starting when the
// first permission prompt fires.
func (c *Client) WaitForDecision(ctx context.Context, token string, interval, timeout time.Duration) (store.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var verdict store.Verdict
	operation := func() error {
		v, found, err := c.Decision(ctx, token)
		if err != nil {
			return err
		}
		if !found {
			return ErrNoDecision
		}
		verdict = v
		return nil
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("no decision within %s: %w", timeout, err)
	}
	return verdict, nil
}

// Health reports whether a relay answers on the base URL.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Status fetches the relay's status counters as raw JSON.
func (c *Client) Status(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status query: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// postJSON sends a JSON body and decodes the response into out when out is
// non-nil. Non-2xx responses carry the relay's error message.
func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("POST %s: %s (%s)", path, apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("POST %s: decode response: %w", path, err)
		}
	}
	return nil
}
