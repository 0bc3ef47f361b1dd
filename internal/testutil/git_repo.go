package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RevCBH/trunkback/internal/command"
)

// GitRemote is a bare repository plus a seeding clone, for tests that run
// the real git binary.
type GitRemote struct {
	t      testing.TB
	runner command.Runner

	// URL is the bare repository path, usable as a clone URL
	URL string

	// Branch is the trunk branch
	Branch string

	seed string
}

// NewGitRemote creates an empty bare repository with trunk branch "main".
// Skips the test when git is not installed.
func NewGitRemote(t testing.TB) *GitRemote {
	t.Helper()
	IsolateGit(t)

	r := &GitRemote{
		t:      t,
		runner: command.New("git"),
		URL:    filepath.Join(t.TempDir(), "remote.git"),
		Branch: "main",
		seed:   filepath.Join(t.TempDir(), "seed"),
	}
	if _, err := r.runner.Exec(context.Background(), "", "--version"); err != nil {
		t.Skipf("git not available: %v", err)
	}
	r.git("", "init", "--quiet", "--bare", "--initial-branch=main", r.URL)
	r.git("", "init", "--quiet", "--initial-branch=main", r.seed)
	r.git(r.seed, "remote", "add", "origin", r.URL)
	return r
}

// Commit makes the seed tree equal files (path -> content), commits, pushes
// to the trunk and returns the new commit SHA.
func (r *GitRemote) Commit(message string, files map[string]string) string {
	r.t.Helper()

	entries, err := os.ReadDir(r.seed)
	if err != nil {
		r.t.Fatalf("read seed: %v", err)
	}
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(r.seed, e.Name())); err != nil {
			r.t.Fatalf("clear seed: %v", err)
		}
	}
	for p, content := range files {
		full := filepath.Join(r.seed, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			r.t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			r.t.Fatalf("write %s: %v", p, err)
		}
	}

	r.git(r.seed, "add", "-A")
	r.git(r.seed, "commit", "--quiet", "--allow-empty", "-m", message)
	r.git(r.seed, "push", "--quiet", "origin", "HEAD:refs/heads/"+r.Branch)
	return r.git(r.seed, "rev-parse", "HEAD")
}

// Head returns the trunk tip of the bare repository.
func (r *GitRemote) Head() string {
	r.t.Helper()
	return r.git(r.URL, "rev-parse", "refs/heads/"+r.Branch)
}

// Files lists the tree of rev as path -> content.
func (r *GitRemote) Files(rev string) map[string]string {
	r.t.Helper()
	out := map[string]string{}
	list := r.git(r.URL, "ls-tree", "-r", "--name-only", rev)
	if list == "" {
		return out
	}
	for _, p := range strings.Split(list, "\n") {
		out[p] = r.gitRaw(r.URL, "show", rev+":"+p)
	}
	return out
}

func (r *GitRemote) git(dir string, args ...string) string {
	r.t.Helper()
	return strings.TrimSpace(r.gitRaw(dir, args...))
}

func (r *GitRemote) gitRaw(dir string, args ...string) string {
	r.t.Helper()
	out, err := r.runner.Exec(context.Background(), dir, args...)
	if err != nil {
		r.t.Fatalf("git %s: %v", strings.Join(args, " "), err)
	}
	return out
}
