package config

import (
	"testing"
)

func TestEnvOverrides_Backend(t *testing.T) {
	cfg := &Config{Backend: BackendGit}
	t.Setenv("TRUNKBACK_BACKEND", "svn")

	applyEnvOverrides(cfg)

	if cfg.Backend != BackendSVN {
		t.Errorf("expected Backend to be 'svn', got '%s'", cfg.Backend)
	}
}

func TestEnvOverrides_URLs(t *testing.T) {
	cfg := &Config{}
	t.Setenv("TRUNKBACK_GIT_URL", "https://git.example.com/app.git")
	t.Setenv("TRUNKBACK_SVN_URL", "https://svn.example.com/repo/trunk")
	t.Setenv("TRUNKBACK_SVN_USERNAME", "deploy")

	applyEnvOverrides(cfg)

	if cfg.Git.URL != "https://git.example.com/app.git" {
		t.Errorf("unexpected Git.URL '%s'", cfg.Git.URL)
	}
	if cfg.SVN.URL != "https://svn.example.com/repo/trunk" {
		t.Errorf("unexpected SVN.URL '%s'", cfg.SVN.URL)
	}
	if cfg.SVN.Username != "deploy" {
		t.Errorf("unexpected SVN.Username '%s'", cfg.SVN.Username)
	}
}

func TestEnvOverrides_PushForce(t *testing.T) {
	cfg := &Config{}
	t.Setenv("TRUNKBACK_PUSH_FORCE", "true")

	applyEnvOverrides(cfg)

	if !cfg.Push.Force {
		t.Error("expected Push.Force to be true")
	}
}

func TestEnvOverrides_PushForceGarbageIgnored(t *testing.T) {
	cfg := &Config{Push: PushConfig{Force: true}}
	t.Setenv("TRUNKBACK_PUSH_FORCE", "sometimes")

	applyEnvOverrides(cfg)

	if !cfg.Push.Force {
		t.Error("expected unparseable value to leave Push.Force alone")
	}
}

func TestEnvOverrides_Paths(t *testing.T) {
	cfg := &Config{}
	t.Setenv("TRUNKBACK_WORKSPACE_BASE", "/tmp/ws")
	t.Setenv("TRUNKBACK_HISTORY_PATH", "/tmp/history.db")
	t.Setenv("TRUNKBACK_METRICS_TEXTFILE", "/tmp/trunkback.prom")

	applyEnvOverrides(cfg)

	if cfg.Workspace.BaseDir != "/tmp/ws" {
		t.Errorf("unexpected Workspace.BaseDir '%s'", cfg.Workspace.BaseDir)
	}
	if cfg.History.Path != "/tmp/history.db" {
		t.Errorf("unexpected History.Path '%s'", cfg.History.Path)
	}
	if cfg.Metrics.Textfile != "/tmp/trunkback.prom" {
		t.Errorf("unexpected Metrics.Textfile '%s'", cfg.Metrics.Textfile)
	}
}

func TestEnvOverrides_NotifyWebhook(t *testing.T) {
	cfg := &Config{}
	t.Setenv("TRUNKBACK_NOTIFY_WEBHOOK_URL", "https://hooks.example.com/rollback")

	applyEnvOverrides(cfg)

	if cfg.Notify.WebhookURL != "https://hooks.example.com/rollback" {
		t.Errorf("unexpected Notify.WebhookURL '%s'", cfg.Notify.WebhookURL)
	}
}

func TestEnvOverrides_EmptyNoChange(t *testing.T) {
	cfg := &Config{
		Git:      GitConfig{Branch: "original-branch"},
		LogLevel: "original-level",
	}
	t.Setenv("TRUNKBACK_GIT_BRANCH", "")
	t.Setenv("TRUNKBACK_LOG_LEVEL", "")

	applyEnvOverrides(cfg)

	if cfg.Git.Branch != "original-branch" {
		t.Errorf("expected Git.Branch to remain 'original-branch', got '%s'", cfg.Git.Branch)
	}
	if cfg.LogLevel != "original-level" {
		t.Errorf("expected LogLevel to remain 'original-level', got '%s'", cfg.LogLevel)
	}
}
