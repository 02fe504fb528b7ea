package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"desktown-backend/shared/config"
	"desktown-backend/shared/utils/webhook"
)

// ErrAutomationDisabled is returned when AUTOMATION_WEBHOOK_URL is unset
var ErrAutomationDisabled = errors.New("automation webhook not configured")

// AutomationClient relays tasks to the external automation workflow
type AutomationClient struct {
	webhookURL string
	secret     []byte
	httpClient *http.Client
	now        func() time.Time
}

// NewAutomationClient creates a client from the active configuration
func NewAutomationClient() *AutomationClient {
	cfg := config.GetConfig()
	return NewAutomationClientWith(cfg.AutomationWebhookURL, cfg.AutomationWebhookSecret, &http.Client{
		Timeout: 30 * time.Second,
	})
}

func NewAutomationClientWith(webhookURL, secret string, httpClient *http.Client) *AutomationClient {
	return &AutomationClient{
		webhookURL: webhookURL,
		secret:     []byte(secret),
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Enabled reports whether a webhook URL is configured
func (ac *AutomationClient) Enabled() bool {
	return ac != nil && ac.webhookURL != ""
}

// TaskAutomationRequest is the payload posted for a task
type TaskAutomationRequest struct {
	TaskID      uint   `json:"task_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	RequestedBy string `json:"requested_by"`
	CallbackURL string `json:"callback_url,omitempty"`
	RequestedAt string `json:"requested_at"`
}

// TaskAutomationCallback is what the workflow posts back to /api/automations/callback
type TaskAutomationCallback struct {
	EventID string          `json:"event_id"`
	TaskID  uint            `json:"task_id" binding:"required"`
	Status  string          `json:"status" binding:"required"`
	Result  json.RawMessage `json:"result"`
}

// SendTask makes a single signed POST. There are no retries; the caller marks the task failed on error.
func (ac *AutomationClient) SendTask(ctx context.Context, req TaskAutomationRequest) error {
	if !ac.Enabled() {
		return ErrAutomationDisabled
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ac.webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if len(ac.secret) > 0 {
		httpReq.Header.Set(webhook.SignatureHeader, webhook.Sign(ac.secret, jsonData, ac.now()))
	}

	resp, err := ac.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("automation webhook returned status: %d", resp.StatusCode)
	}
	return nil
}
