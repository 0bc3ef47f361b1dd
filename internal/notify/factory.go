package notify

import (
	"fmt"
	"io"
)

// Config selects and configures notifiers
type Config struct {
	Backends     []string
	WebhookURL   string
	SlackWebhook string

	// Terminal is where the terminal notifier writes (nil means stderr)
	Terminal io.Writer
}

// FromConfig builds the configured notifier. It returns nil when no backend
// is configured.
func FromConfig(cfg Config) (Notifier, error) {
	var notifiers []Notifier
	for _, backend := range cfg.Backends {
		switch backend {
		case "terminal":
			notifiers = append(notifiers, NewTerminal(cfg.Terminal))
		case "slack":
			if cfg.SlackWebhook == "" {
				return nil, fmt.Errorf("slack notifier requires a webhook URL")
			}
			notifiers = append(notifiers, NewSlack(cfg.SlackWebhook))
		case "webhook":
			if cfg.WebhookURL == "" {
				return nil, fmt.Errorf("webhook notifier requires a URL")
			}
			notifiers = append(notifiers, NewWebhook(cfg.WebhookURL))
		default:
			return nil, fmt.Errorf("unknown notifier: %s", backend)
		}
	}

	switch len(notifiers) {
	case 0:
		return nil, nil
	case 1:
		return notifiers[0], nil
	default:
		return NewMulti(notifiers...), nil
	}
}
