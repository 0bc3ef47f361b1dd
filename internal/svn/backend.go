// Package svn implements the centralized rollback backend on top of the svn
// command line client.
package svn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/RevCBH/trunkback/internal/command"
	"github.com/RevCBH/trunkback/internal/vcs"
)

// Config binds a backend to one trunk URL.
type Config struct {
	// URL is the trunk URL, e.g. https://svn.example.com/repo/trunk
	URL string

	// Username and Password are passed to every command when set
	Username string
	Password string
}

// Backend is a vcs.CentralizedBackend driving the svn binary.
type Backend struct {
	cfg    Config
	runner command.Runner
	logger *zap.Logger
}

var _ vcs.CentralizedBackend = (*Backend)(nil)

// New creates an svn backend. A nil runner runs the real svn binary.
func New(cfg Config, runner command.Runner, logger *zap.Logger) (*Backend, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("svn: trunk url is required")
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if runner == nil {
		runner = command.New("svn")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		cfg:    cfg,
		runner: runner,
		logger: logger.With(zap.String("backend", "svn"), zap.String("url", cfg.URL)),
	}, nil
}

// Name identifies the trunk.
func (b *Backend) Name() string {
	return b.cfg.URL
}

// exec runs svn non-interactively with the configured credentials. The
// password is fed on stdin so it never shows up in the process table or in a
// command error.
func (b *Backend) exec(ctx context.Context, dir string, args ...string) (string, error) {
	full := append([]string{}, args...)
	full = append(full, "--non-interactive")
	if b.cfg.Username != "" {
		full = append(full, "--username", b.cfg.Username)
	}
	if b.cfg.Password == "" {
		return b.runner.Exec(ctx, dir, full...)
	}
	full = append(full, "--password-from-stdin", "--no-auth-cache")
	return b.runner.ExecWithStdin(ctx, dir, b.cfg.Password+"\n", full...)
}

// Head returns the youngest revision of the trunk.
func (b *Backend) Head(ctx context.Context) (vcs.RevisionID, error) {
	return b.Resolve(ctx, "HEAD")
}

// Resolve turns a revision number, keyword or {DATE} into the number of the
// last revision that changed the trunk at that point.
func (b *Backend) Resolve(ctx context.Context, ref string) (vcs.RevisionID, error) {
	out, err := b.exec(ctx, "", "info", "--show-item", "last-changed-revision", "-r", ref, b.cfg.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %s", vcs.ErrRevisionNotFound, ref)
	}
	rev := strings.TrimSpace(out)
	if !isRevision(rev) {
		return "", fmt.Errorf("%w: %s (got %q)", vcs.ErrRevisionNotFound, ref, rev)
	}
	return vcs.RevisionID(rev), nil
}

// Checkout creates a working copy of the trunk at rev in dest, which must not
// exist.
func (b *Backend) Checkout(ctx context.Context, rev vcs.RevisionID, dest string) (*vcs.WorkingCopy, error) {
	if _, err := os.Stat(dest); err == nil {
		return nil, fmt.Errorf("%w: %s already exists", vcs.ErrCheckoutFailed, dest)
	}
	if _, err := b.exec(ctx, filepath.Dir(dest), "checkout", "--quiet", "-r", rev.String(), b.cfg.URL, dest); err != nil {
		return nil, errors.Join(
			fmt.Errorf("%w: %w", vcs.ErrCheckoutFailed, err),
			os.RemoveAll(dest),
		)
	}
	b.logger.Debug("working copy ready", zap.String("path", dest), zap.String("rev", rev.String()))
	return &vcs.WorkingCopy{Path: dest, Repo: b.Name(), Revision: rev}, nil
}

// Update brings the working copy to the youngest revision and returns the
// last revision that changed the trunk, the same form Resolve returns.
func (b *Backend) Update(ctx context.Context, wc *vcs.WorkingCopy) (vcs.RevisionID, error) {
	if _, err := b.exec(ctx, wc.Path, "update", "--quiet", "--accept", "postpone"); err != nil {
		return "", fmt.Errorf("svn update: %w", err)
	}
	out, err := b.exec(ctx, wc.Path, "info", "--show-item", "last-changed-revision", ".")
	if err != nil {
		return "", fmt.Errorf("svn info: %w", err)
	}
	rev := strings.TrimSpace(out)
	if !isRevision(rev) {
		return "", fmt.Errorf("svn info: unexpected revision %q", rev)
	}
	wc.Revision = vcs.RevisionID(rev)
	return wc.Revision, nil
}

// MergeRange applies the changes from..to of the trunk onto the working copy
// with every conflict postponed, then settles each conflict through policy.
func (b *Backend) MergeRange(ctx context.Context, from, to vcs.RevisionID, wc *vcs.WorkingCopy, policy vcs.ConflictPolicy) (vcs.MergeResult, error) {
	rng := from.String() + ":" + to.String()
	if _, err := b.exec(ctx, wc.Path, "merge", "--accept", "postpone", "-r", rng, b.cfg.URL, "."); err != nil {
		return vcs.MergeResult{}, fmt.Errorf("%w: svn merge -r %s: %w", vcs.ErrMergeFailed, rng, err)
	}

	st, err := b.status(ctx, wc)
	if err != nil {
		return vcs.MergeResult{}, err
	}

	result := vcs.MergeResult{}
	for _, c := range st.conflicts(wc.Revision.String(), to.String()) {
		res := policy.Resolve(c)
		if err := b.resolve(ctx, wc, c, res, to); err != nil {
			return result, err
		}
		result.ConflictsResolved++
	}

	if result.ConflictsResolved > 0 {
		if st, err = b.status(ctx, wc); err != nil {
			return result, err
		}
	}
	result.ChangedPathCount = st.changedPaths()
	b.logger.Info("merge applied",
		zap.String("range", rng),
		zap.Int("changed", result.ChangedPathCount),
		zap.Int("conflicts", result.ConflictsResolved))
	return result, nil
}

func (b *Backend) resolve(ctx context.Context, wc *vcs.WorkingCopy, c vcs.ConflictDescriptor, res vcs.Resolution, to vcs.RevisionID) error {
	if res != vcs.KeepTheirs && res != vcs.KeepMine {
		return fmt.Errorf("%w: conflict on %s left %s", vcs.ErrMergeFailed, c.Path, res)
	}
	if c.Reason == reasonTree {
		return b.resolveTree(ctx, wc, c.Path, res, to)
	}
	accept := "mine-full"
	if res == vcs.KeepTheirs {
		accept = "theirs-full"
	}
	if _, err := b.exec(ctx, wc.Path, "resolve", "--accept", accept, c.Path); err != nil {
		return fmt.Errorf("%w: resolve %s: %w", vcs.ErrMergeFailed, c.Path, err)
	}
	return nil
}

// resolveTree settles a tree conflict. svn only accepts the working state
// for these, so the working copy is marked resolved first and, when the
// target side wins, the path is then made to match the trunk at to: removed
// when it did not exist there, otherwise replaced by a copy from to.
func (b *Backend) resolveTree(ctx context.Context, wc *vcs.WorkingCopy, path string, res vcs.Resolution, to vcs.RevisionID) error {
	if _, err := b.exec(ctx, wc.Path, "resolve", "--accept", "working", path); err != nil {
		return fmt.Errorf("%w: resolve tree conflict on %s: %w", vcs.ErrMergeFailed, path, err)
	}
	if res == vcs.KeepMine {
		b.logger.Debug("tree conflict kept working copy", zap.String("path", path))
		return nil
	}

	inTarget, err := b.existsAt(ctx, path, to)
	if err != nil {
		return fmt.Errorf("%w: tree conflict on %s: %w", vcs.ErrMergeFailed, path, err)
	}
	if _, err := os.Lstat(filepath.Join(wc.Path, filepath.FromSlash(path))); err == nil {
		if _, err := b.exec(ctx, wc.Path, "rm", "--force", path); err != nil {
			return fmt.Errorf("%w: remove %s: %w", vcs.ErrMergeFailed, path, err)
		}
	}
	if inTarget {
		src := b.cfg.URL + "/" + path + "@" + to.String()
		if _, err := b.exec(ctx, wc.Path, "copy", src, path); err != nil {
			return fmt.Errorf("%w: restore %s from r%s: %w", vcs.ErrMergeFailed, path, to, err)
		}
	}
	b.logger.Debug("tree conflict resolved",
		zap.String("path", path),
		zap.Bool("restored", inTarget))
	return nil
}

// existsAt reports whether path exists in the trunk at rev.
func (b *Backend) existsAt(ctx context.Context, path string, rev vcs.RevisionID) (bool, error) {
	_, err := b.exec(ctx, "", "info", "--show-item", "kind", b.cfg.URL+"/"+path+"@"+rev.String())
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case command.Mentions(err, "W170000", "E170000", "E200009", "non-existent"):
		return false, nil
	default:
		return false, fmt.Errorf("svn info %s@%s: %w", path, rev, err)
	}
}

func (b *Backend) status(ctx context.Context, wc *vcs.WorkingCopy) (*status, error) {
	out, err := b.exec(ctx, wc.Path, "status", "--xml")
	if err != nil {
		return nil, fmt.Errorf("svn status: %w", err)
	}
	st, err := parseStatus([]byte(out))
	if err != nil {
		return nil, err
	}
	return st, nil
}

var committedRe = regexp.MustCompile(`(?m)^Committed revision (\d+)\.`)

// Commit commits the working copy. svn prints nothing when there is nothing
// to commit, which yields vcs.NoOpResult.
func (b *Backend) Commit(ctx context.Context, wc *vcs.WorkingCopy, message string) (vcs.CommitResult, error) {
	st, err := b.status(ctx, wc)
	if err != nil {
		return vcs.CommitResult{}, fmt.Errorf("%w: %w", vcs.ErrCommitFailed, err)
	}
	changed := st.changedPaths()

	out, err := b.exec(ctx, wc.Path, "commit", "-m", message)
	if err != nil {
		return vcs.CommitResult{}, fmt.Errorf("%w: %w", vcs.ErrCommitFailed, err)
	}
	m := committedRe.FindStringSubmatch(out)
	if m == nil {
		return vcs.NoOpResult, nil
	}
	rev := vcs.RevisionID(m[1])
	b.logger.Info("commit created", zap.String("rev", rev.String()), zap.Int("changed", changed))
	return vcs.CommitResult{Revision: rev, ChangedPathCount: changed}, nil
}

func isRevision(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
