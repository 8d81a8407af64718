// Package gateway wraps the external delivery microservice that pushes
// absence alerts out of band (SMS/email). The worker is its only caller.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Alert is one outbound message for a user.
type Alert struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Channel string `json:"channel,omitempty"`
}

// SendResult reports delivery acceptance.
type SendResult struct {
	Accepted  bool   `json:"accepted"`
	MessageID string `json:"message_id"`
}

// Client calls the delivery service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, calls succeed without touching the
// network, which keeps dev and test environments self-contained.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Health verifies the delivery service is reachable.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("delivery service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("delivery service unhealthy: %s", resp.Status)
	}
	return nil
}

// Send pushes one alert.
func (c *Client) Send(ctx context.Context, alert Alert) (*SendResult, error) {
	if c.Skip {
		return &SendResult{Accepted: true, MessageID: "skipped"}, nil
	}
	if alert.UserID == "" {
		return nil, fmt.Errorf("user id required")
	}

	body, _ := json.Marshal(alert)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("delivery service error %s: %s", resp.Status, string(respBody))
	}

	var out SendResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
