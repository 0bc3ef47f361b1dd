// Package git implements the distributed rollback backend on top of the git
// command line. Revisions are resolved against a local bare mirror of the
// remote, so a rollback never touches a workspace before its target is known.
package git

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/RevCBH/trunkback/internal/command"
	"github.com/RevCBH/trunkback/internal/vcs"
)

// DefaultBranch is the trunk branch used when none is configured.
const DefaultBranch = "main"

// Config binds a backend to one remote trunk.
type Config struct {
	// URL is the remote repository (any URL git clone accepts)
	URL string

	// Branch is the trunk branch (default: main)
	Branch string

	// MirrorDir holds the bare mirror used for resolution and diffs
	// (default: a per-URL directory under os.TempDir())
	MirrorDir string

	// AuthorName and AuthorEmail override the committer identity
	AuthorName  string
	AuthorEmail string
}

// Backend is a vcs.DistributedBackend driving the git binary.
type Backend struct {
	cfg    Config
	runner command.Runner
	logger *zap.Logger

	// mirrorMu serializes mirror clone/fetch
	mirrorMu sync.Mutex
}

var _ vcs.DistributedBackend = (*Backend)(nil)

// New creates a git backend. A nil runner runs the real git binary with
// terminal prompts disabled.
func New(cfg Config, runner command.Runner, logger *zap.Logger) (*Backend, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("git: remote url is required")
	}
	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}
	if cfg.MirrorDir == "" {
		cfg.MirrorDir = DefaultMirrorDir(cfg.URL)
	}
	if runner == nil {
		runner = command.New("git", "GIT_TERMINAL_PROMPT=0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		cfg:    cfg,
		runner: runner,
		logger: logger.With(zap.String("backend", "git"), zap.String("url", cfg.URL)),
	}, nil
}

// DefaultMirrorDir returns the mirror location used for url when none is
// configured.
func DefaultMirrorDir(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(os.TempDir(), "trunkback-mirrors", hex.EncodeToString(sum[:8])+".git")
}

// Name identifies the remote trunk.
func (b *Backend) Name() string {
	return b.cfg.URL + "#" + b.cfg.Branch
}

// Head returns the current tip of the remote trunk.
func (b *Backend) Head(ctx context.Context) (vcs.RevisionID, error) {
	return b.Resolve(ctx, "HEAD")
}

// Resolve refreshes the mirror and resolves ref to a full commit SHA. "HEAD"
// means the tip of the trunk branch, not the remote's default branch.
func (b *Backend) Resolve(ctx context.Context, ref string) (vcs.RevisionID, error) {
	if err := b.syncMirror(ctx); err != nil {
		return "", err
	}
	if ref == "HEAD" {
		ref = "refs/heads/" + b.cfg.Branch
	}
	out, err := b.runner.Exec(ctx, b.cfg.MirrorDir, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %s", vcs.ErrRevisionNotFound, ref)
	}
	sha := strings.TrimSpace(out)
	if sha == "" {
		return "", fmt.Errorf("%w: %s", vcs.ErrRevisionNotFound, ref)
	}
	return vcs.RevisionID(sha), nil
}

// syncMirror clones the bare mirror on first use and fetches it afterwards.
func (b *Backend) syncMirror(ctx context.Context) error {
	b.mirrorMu.Lock()
	defer b.mirrorMu.Unlock()

	if _, err := os.Stat(filepath.Join(b.cfg.MirrorDir, "HEAD")); err == nil {
		if _, err := b.runner.Exec(ctx, b.cfg.MirrorDir, "fetch", "--prune", "--quiet", "origin"); err != nil {
			return fmt.Errorf("fetch mirror: %w", err)
		}
		return nil
	}

	parent := filepath.Dir(b.cfg.MirrorDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("create mirror parent: %w", err)
	}
	b.logger.Info("cloning mirror", zap.String("mirror", b.cfg.MirrorDir))
	if _, err := b.runner.Exec(ctx, parent, "clone", "--mirror", "--quiet", b.cfg.URL, b.cfg.MirrorDir); err != nil {
		_ = os.RemoveAll(b.cfg.MirrorDir)
		return fmt.Errorf("clone mirror: %w", err)
	}
	return nil
}

// Checkout clones the trunk into dest, borrowing objects from the mirror, and
// resets the trunk branch to rev. dest must not exist.
func (b *Backend) Checkout(ctx context.Context, rev vcs.RevisionID, dest string) (*vcs.WorkingCopy, error) {
	if _, err := os.Stat(dest); err == nil {
		return nil, fmt.Errorf("%w: %s already exists", vcs.ErrCheckoutFailed, dest)
	}

	_, err := b.runner.Exec(ctx, filepath.Dir(dest),
		"clone", "--quiet", "--no-checkout", "--reference", b.cfg.MirrorDir,
		"--branch", b.cfg.Branch, b.cfg.URL, dest)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("%w: clone %s: %w", vcs.ErrCheckoutFailed, b.cfg.URL, err),
			os.RemoveAll(dest),
		)
	}

	if _, err := b.runner.Exec(ctx, dest, "checkout", "--quiet", "-B", b.cfg.Branch, rev.String()); err != nil {
		return nil, errors.Join(
			fmt.Errorf("%w: checkout %s: %w", vcs.ErrCheckoutFailed, rev, err),
			os.RemoveAll(dest),
		)
	}

	b.logger.Debug("working copy ready", zap.String("path", dest), zap.String("rev", rev.Short()))
	return &vcs.WorkingCopy{Path: dest, Repo: b.Name(), Revision: rev}, nil
}

// ApplyPathContent replaces path in the working copy and index with its
// content at rev.
func (b *Backend) ApplyPathContent(ctx context.Context, wc *vcs.WorkingCopy, path string, rev vcs.RevisionID) error {
	_, err := b.runner.Exec(ctx, wc.Path, "checkout", rev.String(), "--", path)
	if err != nil {
		if command.Mentions(err, "did not match", "pathspec") {
			return fmt.Errorf("%w: %s@%s", vcs.ErrPathNotFoundAtRevision, path, rev.Short())
		}
		return fmt.Errorf("checkout %s@%s: %w", path, rev.Short(), err)
	}
	return nil
}

// StageRemoval deletes path from the working copy and index. A path that is
// already gone is not an error.
func (b *Backend) StageRemoval(ctx context.Context, wc *vcs.WorkingCopy, path string) error {
	if _, err := b.runner.Exec(ctx, wc.Path, "rm", "-r", "-f", "--quiet", "--ignore-unmatch", "--", path); err != nil {
		return fmt.Errorf("rm %s: %w", path, err)
	}
	return nil
}

// Commit records the staged changes. Nothing staged yields vcs.NoOpResult.
func (b *Backend) Commit(ctx context.Context, wc *vcs.WorkingCopy, message string) (vcs.CommitResult, error) {
	out, err := b.runner.Exec(ctx, wc.Path, "diff", "--cached", "--name-only")
	if err != nil {
		return vcs.CommitResult{}, fmt.Errorf("%w: list staged: %w", vcs.ErrCommitFailed, err)
	}
	changed := countLines(out)
	if changed == 0 {
		return vcs.NoOpResult, nil
	}

	args := b.identityArgs()
	args = append(args, "commit", "--quiet", "--no-verify", "-m", message)
	if _, err := b.runner.Exec(ctx, wc.Path, args...); err != nil {
		return vcs.CommitResult{}, fmt.Errorf("%w: %w", vcs.ErrCommitFailed, err)
	}

	sha, err := b.runner.Exec(ctx, wc.Path, "rev-parse", "HEAD")
	if err != nil {
		return vcs.CommitResult{}, fmt.Errorf("%w: read commit: %w", vcs.ErrCommitFailed, err)
	}
	rev := vcs.RevisionID(strings.TrimSpace(sha))
	b.logger.Info("commit created", zap.String("rev", rev.Short()), zap.Int("changed", changed))
	return vcs.CommitResult{Revision: rev, ChangedPathCount: changed}, nil
}

func (b *Backend) identityArgs() []string {
	var args []string
	if b.cfg.AuthorName != "" {
		args = append(args, "-c", "user.name="+b.cfg.AuthorName)
	}
	if b.cfg.AuthorEmail != "" {
		args = append(args, "-c", "user.email="+b.cfg.AuthorEmail)
	}
	return args
}

// Push publishes the working copy's HEAD to the trunk. A non-fast-forward is
// reported as vcs.ErrPushRejected. With opts.Force the push overwrites the
// trunk only if it still points at the revision the working copy was
// checked out from.
func (b *Backend) Push(ctx context.Context, wc *vcs.WorkingCopy, opts vcs.PushOptions) error {
	refspec := "HEAD:refs/heads/" + b.cfg.Branch
	args := []string{"push"}
	if opts.Force {
		args = append(args, fmt.Sprintf("--force-with-lease=refs/heads/%s:%s", b.cfg.Branch, wc.Revision))
	}
	args = append(args, "origin", refspec)

	if _, err := b.runner.Exec(ctx, wc.Path, args...); err != nil {
		if command.Mentions(err, "[rejected]", "[remote rejected]", "non-fast-forward", "fetch first", "stale info") {
			return fmt.Errorf("%w: %s", vcs.ErrPushRejected, strings.TrimSpace(command.Stderr(err)))
		}
		return fmt.Errorf("push %s: %w", refspec, err)
	}
	b.logger.Info("pushed", zap.String("branch", b.cfg.Branch), zap.Bool("force", opts.Force))
	return nil
}

func countLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
