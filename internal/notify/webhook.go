package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookPayload is the JSON body posted to webhook endpoints
type WebhookPayload struct {
	Severity string            `json:"severity"`
	Run      string            `json:"run"`
	Repo     string            `json:"repo,omitempty"`
	Title    string            `json:"title"`
	Message  string            `json:"message,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Webhook posts notices to an HTTP endpoint as JSON
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook notifier with a default HTTP client
func NewWebhook(url string) *Webhook {
	return NewWebhookWithClient(url, &http.Client{Timeout: 10 * time.Second})
}

// NewWebhookWithClient creates a Webhook notifier with a custom HTTP client
func NewWebhookWithClient(url string, client *http.Client) *Webhook {
	return &Webhook{url: url, client: client}
}

// Notify posts the notice as JSON to the webhook URL
func (w *Webhook) Notify(ctx context.Context, n Notice) error {
	body, err := json.Marshal(WebhookPayload{
		Severity: string(n.Severity),
		Run:      n.Run,
		Repo:     n.Repo,
		Title:    n.Title,
		Message:  n.Message,
		Fields:   n.Fields,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	return post(ctx, w.client, w.url, body, "webhook")
}

// Name returns "webhook"
func (w *Webhook) Name() string {
	return "webhook"
}

func post(ctx context.Context, client *http.Client, url string, body []byte, kind string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned %d", kind, resp.StatusCode)
	}
	return nil
}
