package config

const (
	DefaultBackend          = BackendGit
	DefaultGitBranch        = "main"
	DefaultWorkspacePrefix  = "trunkback-"
	DefaultPruneAfter       = "24h"
	DefaultConflictPolicy   = "keep-theirs"
	DefaultHistoryPath      = ".trunkback/history.db"
	DefaultMetricsNamespace = "trunkback"
	DefaultSVNPasswordEnv   = "TRUNKBACK_SVN_PASSWORD"
	DefaultNotifyOutcome    = "failure"
	DefaultSlackWebhookEnv  = "TRUNKBACK_SLACK_WEBHOOK"
	DefaultNotifyTimeout    = "10s"
	DefaultLogLevel         = "info"
)

// DefaultConfig returns a Config with all default values applied.
func DefaultConfig() *Config {
	return &Config{
		Backend: DefaultBackend,
		Git: GitConfig{
			Branch: DefaultGitBranch,
		},
		SVN: SVNConfig{
			PasswordEnv: DefaultSVNPasswordEnv,
		},
		Workspace: WorkspaceConfig{
			Prefix:     DefaultWorkspacePrefix,
			PruneAfter: DefaultPruneAfter,
		},
		Conflict: ConflictConfig{
			Default: DefaultConflictPolicy,
		},
		History: HistoryConfig{
			Path: DefaultHistoryPath,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultMetricsNamespace,
		},
		Notify: NotifyConfig{
			Outcomes:        []string{DefaultNotifyOutcome},
			SlackWebhookEnv: DefaultSlackWebhookEnv,
			Timeout:         DefaultNotifyTimeout,
		},
		LogLevel: DefaultLogLevel,
	}
}
