package config

import (
	"os"
	"strconv"
)

// envOverrides maps environment variables to config field setters.
var envOverrides = []struct {
	envVar string
	apply  func(*Config, string)
}{
	{
		envVar: "TRUNKBACK_BACKEND",
		apply: func(c *Config, v string) {
			c.Backend = BackendType(v)
		},
	},
	{
		envVar: "TRUNKBACK_GIT_URL",
		apply: func(c *Config, v string) {
			c.Git.URL = v
		},
	},
	{
		envVar: "TRUNKBACK_GIT_BRANCH",
		apply: func(c *Config, v string) {
			c.Git.Branch = v
		},
	},
	{
		envVar: "TRUNKBACK_SVN_URL",
		apply: func(c *Config, v string) {
			c.SVN.URL = v
		},
	},
	{
		envVar: "TRUNKBACK_SVN_USERNAME",
		apply: func(c *Config, v string) {
			c.SVN.Username = v
		},
	},
	{
		envVar: "TRUNKBACK_WORKSPACE_BASE",
		apply: func(c *Config, v string) {
			c.Workspace.BaseDir = v
		},
	},
	{
		envVar: "TRUNKBACK_PUSH_FORCE",
		apply: func(c *Config, v string) {
			if force, err := strconv.ParseBool(v); err == nil {
				c.Push.Force = force
			}
		},
	},
	{
		envVar: "TRUNKBACK_HISTORY_PATH",
		apply: func(c *Config, v string) {
			c.History.Path = v
		},
	},
	{
		envVar: "TRUNKBACK_METRICS_TEXTFILE",
		apply: func(c *Config, v string) {
			c.Metrics.Textfile = v
		},
	},
	{
		envVar: "TRUNKBACK_NOTIFY_WEBHOOK_URL",
		apply: func(c *Config, v string) {
			c.Notify.WebhookURL = v
		},
	},
	{
		envVar: "TRUNKBACK_LOG_LEVEL",
		apply: func(c *Config, v string) {
			c.LogLevel = v
		},
	},
}

// applyEnvOverrides modifies config in place with environment variable values.
func applyEnvOverrides(cfg *Config) {
	for _, override := range envOverrides {
		if val := os.Getenv(override.envVar); val != "" {
			override.apply(cfg, val)
		}
	}
}
