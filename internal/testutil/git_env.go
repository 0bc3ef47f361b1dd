package testutil

import (
	"os"
	"testing"
)

var gitEnvVars = []string{
	"GIT_DIR",
	"GIT_WORK_TREE",
	"GIT_INDEX_FILE",
	"GIT_COMMON_DIR",
	"GIT_PREFIX",
	"GIT_OBJECT_DIRECTORY",
	"GIT_ALTERNATE_OBJECT_DIRECTORIES",
	"GIT_CEILING_DIRECTORIES",
}

// UnsetGitEnv clears git environment variables that can redirect repo operations.
func UnsetGitEnv() {
	for _, key := range gitEnvVars {
		_ = os.Unsetenv(key)
	}
}

// IsolateGit points git at an empty HOME with a fixed identity so tests do not
// read the developer's global config.
func IsolateGit(t testing.TB) {
	t.Helper()
	UnsetGitEnv()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_AUTHOR_NAME", "Test User")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "Test User")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")
}
