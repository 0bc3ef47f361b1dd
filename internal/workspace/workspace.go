// Package workspace allocates scratch directories for rollback working copies
// and guarantees they are removed.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RevCBH/trunkback/internal/vcs"
)

// DefaultPrefix names workspace directories so Prune can recognize them.
const DefaultPrefix = "trunkback-"

// Manager hands out uniquely named workspace paths under Base.
type Manager struct {
	// Base is the directory workspaces are created in (default: os.TempDir())
	Base string

	// Prefix is prepended to every workspace directory name
	Prefix string

	// NewName generates the unique part of a directory name (default: uuid)
	NewName func() string

	Logger *zap.Logger
}

// Workspace is one allocated scratch directory. The directory itself is left
// absent by Acquire so a backend checkout can create it.
type Workspace struct {
	// Path is the absolute workspace directory
	Path string

	// CreatedAt is when the workspace was acquired
	CreatedAt time.Time

	once   sync.Once
	err    error
	logger *zap.Logger
}

// NewManager creates a manager rooted at base. An empty base means os.TempDir().
func NewManager(base string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		Base:   base,
		Prefix: DefaultPrefix,
		Logger: logger,
	}
}

func (m *Manager) base() (string, error) {
	base := m.Base
	if base == "" {
		base = os.TempDir()
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve workspace base: %w", err)
	}
	return abs, nil
}

func (m *Manager) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

// Acquire reserves a new, non-existent workspace path. A collision with an
// existing path fails with vcs.ErrWorkspaceConflict; there is no retry.
func (m *Manager) Acquire(ctx context.Context) (*Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, err := m.base()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace base: %w", err)
	}

	name := uuid.NewString()
	if m.NewName != nil {
		name = m.NewName()
	}
	path := filepath.Join(base, m.Prefix+name)

	if _, err := os.Lstat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", vcs.ErrWorkspaceConflict, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat workspace: %w", err)
	}

	m.logger().Debug("workspace acquired", zap.String("path", path))
	return &Workspace{
		Path:      path,
		CreatedAt: time.Now(),
		logger:    m.logger(),
	}, nil
}

// Release removes the workspace directory recursively. It is safe to call
// more than once; only the first call does any work.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		if err := os.RemoveAll(w.Path); err != nil {
			w.err = fmt.Errorf("remove workspace %s: %w", w.Path, err)
			if w.logger != nil {
				w.logger.Warn("workspace release failed", zap.String("path", w.Path), zap.Error(err))
			}
			return
		}
		if w.logger != nil {
			w.logger.Debug("workspace released", zap.String("path", w.Path))
		}
	})
	return w.err
}

// With acquires a workspace, runs fn and releases the workspace on every
// exit path, including errors, panics and cancellation of ctx.
func (m *Manager) With(ctx context.Context, fn func(ws *Workspace) error) (err error) {
	ws, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := ws.Release(); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()
	return fn(ws)
}

// Prune removes workspace directories under Base that carry the manager's
// prefix and are older than olderThan. Used to clean up after processes that
// were killed before they could release. Returns the removed paths.
func (m *Manager) Prune(olderThan time.Duration) ([]string, error) {
	base, err := m.base()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read workspace base: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	var removed []string
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() || m.Prefix == "" || !strings.HasPrefix(entry.Name(), m.Prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(base, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		m.logger().Info("pruned stale workspace", zap.String("path", path))
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}
