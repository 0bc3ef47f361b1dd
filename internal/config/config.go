package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the per-repository config file looked up by LoadConfig.
const FileName = ".trunkback.yaml"

// BackendType selects the version control system being rolled back.
type BackendType string

const (
	// BackendGit rolls back a git branch with the diff strategy.
	BackendGit BackendType = "git"

	// BackendSVN rolls back an svn trunk with the merge strategy.
	BackendSVN BackendType = "svn"
)

// Config holds all configuration for trunkback.
// It is immutable after creation via LoadConfig().
type Config struct {
	// Backend is "git" or "svn"
	Backend BackendType `yaml:"backend"`

	// Git configures the distributed backend
	Git GitConfig `yaml:"git"`

	// SVN configures the centralized backend
	SVN SVNConfig `yaml:"svn"`

	// Workspace controls where scratch working copies are created
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Conflict selects the merge conflict policy
	Conflict ConflictConfig `yaml:"conflict"`

	// Push controls publishing of diff rollbacks
	Push PushConfig `yaml:"push"`

	// History configures the rollback run database
	History HistoryConfig `yaml:"history"`

	// Metrics configures the Prometheus textfile export
	Metrics MetricsConfig `yaml:"metrics"`

	// Notify configures rollback outcome notifications
	Notify NotifyConfig `yaml:"notify"`

	// LogLevel controls log verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
}

// GitConfig identifies the remote branch to roll back.
type GitConfig struct {
	// URL is the remote repository URL
	URL string `yaml:"url"`

	// Branch is the trunk branch (default: main)
	Branch string `yaml:"branch"`

	// MirrorDir is the local bare mirror used for resolving and diffing.
	// Empty derives a directory under the system temp dir from the URL.
	MirrorDir string `yaml:"mirror_dir,omitempty"`

	// AuthorName and AuthorEmail override the committer identity
	AuthorName  string `yaml:"author_name,omitempty"`
	AuthorEmail string `yaml:"author_email,omitempty"`
}

// SVNConfig identifies the trunk to roll back.
type SVNConfig struct {
	// URL is the trunk URL
	URL string `yaml:"url"`

	// Username is passed to svn when set
	Username string `yaml:"username,omitempty"`

	// PasswordEnv names the environment variable holding the password.
	// Passwords are never read from the config file.
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the svn password from the configured environment variable.
func (c SVNConfig) Password() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// WorkspaceConfig controls scratch directory allocation.
type WorkspaceConfig struct {
	// BaseDir is where workspaces are created. Empty means the system temp
	// dir; relative paths are resolved from the repository root.
	BaseDir string `yaml:"base_dir,omitempty"`

	// Prefix is prepended to every workspace directory name
	Prefix string `yaml:"prefix"`

	// PruneAfter is the age after which `trunkback prune` removes leftovers
	PruneAfter string `yaml:"prune_after"`
}

// ConflictConfig selects how merge conflicts are resolved.
type ConflictConfig struct {
	// Default is "keep-theirs" (restore the target) or "keep-mine"
	Default string `yaml:"default"`

	// KeepMine lists path globs whose conflicts keep the head version
	KeepMine []string `yaml:"keep_mine,omitempty"`
}

// PushConfig controls publishing.
type PushConfig struct {
	// Force overwrites the remote branch with a lease on the checkout revision
	Force bool `yaml:"force"`
}

// HistoryConfig locates the rollback history database.
type HistoryConfig struct {
	// Path is the SQLite file; relative paths are resolved from the
	// repository root. Empty disables history.
	Path string `yaml:"path"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile is written after every run when set
	Textfile string `yaml:"textfile,omitempty"`

	// Namespace prefixes every metric name
	Namespace string `yaml:"namespace"`
}

// NotifyConfig controls where rollback outcomes are reported.
type NotifyConfig struct {
	// Backends lists notifiers: terminal, webhook, slack. Empty disables
	// notifications.
	Backends []string `yaml:"backends,omitempty"`

	// Outcomes selects which runs notify: failure, success
	Outcomes []string `yaml:"outcomes"`

	// WebhookURL receives a JSON POST per notice
	WebhookURL string `yaml:"webhook_url,omitempty"`

	// SlackWebhookEnv names the environment variable holding the Slack
	// incoming webhook URL.
	SlackWebhookEnv string `yaml:"slack_webhook_env"`

	// Timeout bounds each delivery
	Timeout string `yaml:"timeout"`
}

// SlackWebhook returns the Slack webhook URL from the configured environment
// variable.
func (c NotifyConfig) SlackWebhook() string {
	if c.SlackWebhookEnv == "" {
		return ""
	}
	return os.Getenv(c.SlackWebhookEnv)
}

// TimeoutDuration parses the delivery timeout.
func (c NotifyConfig) TimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(c.Timeout)
}

// PruneAfterDuration parses the workspace prune age.
func (c *Config) PruneAfterDuration() (time.Duration, error) {
	return time.ParseDuration(c.Workspace.PruneAfter)
}

// LoadConfig loads configuration from the repository root.
// It applies defaults, then file values, then environment overrides,
// then resolves relative paths and validates.
//
// Parameters:
//   - repoRoot: absolute path to the directory holding .trunkback.yaml
//
// Returns the validated Config or an error if validation fails.
func LoadConfig(repoRoot string) (*Config, error) {
	return load(filepath.Join(repoRoot, FileName), repoRoot, false)
}

// LoadConfigFile loads an explicit config file, which must exist. Relative
// paths inside it are resolved from the file's directory.
func LoadConfigFile(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	return load(abs, filepath.Dir(abs), true)
}

func load(path, root string, required bool) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
		// missing config file is not an error (use defaults)
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnvOverrides(cfg)
	resolvePaths(cfg, root)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func resolvePaths(cfg *Config, root string) {
	for _, p := range []*string{
		&cfg.Workspace.BaseDir,
		&cfg.History.Path,
		&cfg.Metrics.Textfile,
		&cfg.Git.MirrorDir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}
