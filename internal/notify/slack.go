package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"time"
)

// Slack posts notices to a Slack incoming webhook
type Slack struct {
	webhookURL string
	client     *http.Client
}

// NewSlack creates a Slack notifier with a default HTTP client
func NewSlack(webhookURL string) *Slack {
	return NewSlackWithClient(webhookURL, &http.Client{Timeout: 10 * time.Second})
}

// NewSlackWithClient creates a Slack notifier with a custom HTTP client
func NewSlackWithClient(webhookURL string, client *http.Client) *Slack {
	return &Slack{webhookURL: webhookURL, client: client}
}

var slackEmoji = map[Severity]string{
	SeverityInfo:     ":white_check_mark:",
	SeverityWarning:  ":warning:",
	SeverityCritical: ":rotating_light:",
}

// Notify posts the notice as a Block Kit message
func (s *Slack) Notify(ctx context.Context, n Notice) error {
	var fields []map[string]any
	for _, k := range slices.Sorted(maps.Keys(n.Fields)) {
		if v := n.Fields[k]; v != "" {
			fields = append(fields, map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*%s:* %s", k, v),
			})
		}
	}

	blocks := []map[string]any{{
		"type": "section",
		"text": map[string]string{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*%s*\n%s", n.Title, n.Message),
		},
	}}
	if len(fields) > 0 {
		blocks = append(blocks, map[string]any{
			"type":     "context",
			"elements": fields,
		})
	}

	body, err := json.Marshal(map[string]any{
		"text":   fmt.Sprintf("%s *[%s]* %s", slackEmoji[n.Severity], n.Repo, n.Title),
		"blocks": blocks,
	})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	return post(ctx, s.client, s.webhookURL, body, "slack webhook")
}

// Name returns "slack"
func (s *Slack) Name() string {
	return "slack"
}
