package config

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/RevCBH/trunkback/internal/conflict"
	"github.com/RevCBH/trunkback/internal/vcs"
)

// ValidationError contains details about what failed validation.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// validateConfig checks all config values for validity.
// Returns nil if valid, or joined errors for all validation failures.
func validateConfig(cfg *Config) error {
	var errs []error

	switch cfg.Backend {
	case BackendGit:
		if strings.TrimSpace(cfg.Git.URL) == "" {
			errs = append(errs, &ValidationError{
				Field:   "git.url",
				Value:   cfg.Git.URL,
				Message: "must be set for the git backend",
			})
		}
		if strings.TrimSpace(cfg.Git.Branch) == "" {
			errs = append(errs, &ValidationError{
				Field:   "git.branch",
				Value:   cfg.Git.Branch,
				Message: "must not be empty",
			})
		}
	case BackendSVN:
		if strings.TrimSpace(cfg.SVN.URL) == "" {
			errs = append(errs, &ValidationError{
				Field:   "svn.url",
				Value:   cfg.SVN.URL,
				Message: "must be set for the svn backend",
			})
		}
	default:
		errs = append(errs, &ValidationError{
			Field:   "backend",
			Value:   cfg.Backend,
			Message: "must be one of: git, svn",
		})
	}

	if strings.Contains(cfg.Workspace.Prefix, "/") {
		errs = append(errs, &ValidationError{
			Field:   "workspace.prefix",
			Value:   cfg.Workspace.Prefix,
			Message: "must not contain a path separator",
		})
	}

	if d, err := time.ParseDuration(cfg.Workspace.PruneAfter); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "workspace.prune_after",
			Value:   cfg.Workspace.PruneAfter,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	} else if d <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "workspace.prune_after",
			Value:   cfg.Workspace.PruneAfter,
			Message: "must be positive",
		})
	}

	// Postpone would stall every conflicted merge, so only the two total
	// resolutions are accepted as a default.
	res, err := conflict.ParseResolution(cfg.Conflict.Default)
	if err == nil {
		err = conflict.Validate(vcs.ConflictDescriptor{Path: "*"}, res)
	}
	if err != nil {
		errs = append(errs, &ValidationError{
			Field:   "conflict.default",
			Value:   cfg.Conflict.Default,
			Message: "must be keep-theirs or keep-mine",
		})
	}

	for i, pattern := range cfg.Conflict.KeepMine {
		if _, err := path.Match(pattern, ""); pattern == "" || err != nil {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("conflict.keep_mine[%d]", i),
				Value:   pattern,
				Message: "must be a valid glob",
			})
		}
	}

	if cfg.Metrics.Textfile != "" && cfg.Metrics.Namespace == "" {
		errs = append(errs, &ValidationError{
			Field:   "metrics.namespace",
			Value:   cfg.Metrics.Namespace,
			Message: "must not be empty when metrics.textfile is set",
		})
	}

	errs = append(errs, validateNotify(cfg.Notify)...)

	// LogLevel must be one of: debug, info, warn, error (case-sensitive)
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, &ValidationError{
			Field:   "log_level",
			Value:   cfg.LogLevel,
			Message: "must be one of: debug, info, warn, error",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateNotify(n NotifyConfig) []error {
	var errs []error
	for i, b := range n.Backends {
		switch b {
		case "terminal", "slack":
		case "webhook":
			if n.WebhookURL == "" {
				errs = append(errs, &ValidationError{
					Field:   "notify.webhook_url",
					Value:   n.WebhookURL,
					Message: "must be set for the webhook backend",
				})
			}
		default:
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("notify.backends[%d]", i),
				Value:   b,
				Message: "must be one of: terminal, webhook, slack",
			})
		}
	}
	if slices.Contains(n.Backends, "slack") && n.SlackWebhookEnv == "" {
		errs = append(errs, &ValidationError{
			Field:   "notify.slack_webhook_env",
			Value:   n.SlackWebhookEnv,
			Message: "must name an environment variable for the slack backend",
		})
	}
	for i, o := range n.Outcomes {
		if o != "failure" && o != "success" {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("notify.outcomes[%d]", i),
				Value:   o,
				Message: "must be failure or success",
			})
		}
	}
	if d, err := time.ParseDuration(n.Timeout); err != nil || d <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "notify.timeout",
			Value:   n.Timeout,
			Message: "must be a positive duration",
		})
	}
	return errs
}
