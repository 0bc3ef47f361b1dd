package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RevCBH/trunkback/internal/config"
	"github.com/RevCBH/trunkback/internal/events"
	"github.com/RevCBH/trunkback/internal/rollback"
)

// RollbackOptions holds flags for the merge and diff commands
type RollbackOptions struct {
	Target  string // Revision to roll back to
	Message string // Commit message (a trailer naming the target is added)
	Force   bool   // Overwrite the remote if it moved since checkout (diff only)
	DryRun  bool   // Compute the changes without committing
}

// Validate checks RollbackOptions for validity
func (opts RollbackOptions) Validate() error {
	if opts.Target == "" {
		return fmt.Errorf("a target revision is required (--target or positional argument)")
	}
	return nil
}

// strategy is implemented by rollback.MergeStrategy and rollback.DiffStrategy
type strategy interface {
	Rollback(ctx context.Context, req rollback.Request) (*rollback.Result, error)
}

// NewMergeCmd creates the merge command
func NewMergeCmd(app *App) *cobra.Command {
	var opts RollbackOptions

	cmd := &cobra.Command{
		Use:   "merge [target]",
		Short: "Roll an svn trunk back with a reverse merge",
		Long: `Merge checks out the trunk head, merges the range head:target into it and
commits the result. Conflicts are resolved by the configured policy
(keep-theirs restores the target).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Target = args[0]
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			return app.Rollback(cmd, rollback.StrategyMerge, opts)
		},
	}

	addRollbackFlags(cmd, &opts)
	return cmd
}

// NewDiffCmd creates the diff command
func NewDiffCmd(app *App) *cobra.Command {
	var opts RollbackOptions

	cmd := &cobra.Command{
		Use:   "diff [target]",
		Short: "Roll a git branch back by restoring the target snapshot",
		Long: `Diff compares the target with the branch head, removes paths added since
the target, restores every other changed path from the target, then commits
and pushes. A rejected push is never retried; use --force to overwrite the
remote with a lease on the checked out head.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Target = args[0]
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			return app.Rollback(cmd, rollback.StrategyDiff, opts)
		},
	}

	addRollbackFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Force-push with a lease on the checked out head")
	return cmd
}

func addRollbackFlags(cmd *cobra.Command, opts *RollbackOptions) {
	cmd.Flags().StringVarP(&opts.Target, "target", "t", "", "Revision to roll back to")
	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "Commit message")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "Compute the changes without committing")
}

// Rollback runs one rollback with the named strategy and reports the result
func (a *App) Rollback(cmd *cobra.Command, name string, opts RollbackOptions) (err error) {
	out := cmd.OutOrStdout()
	rt, err := a.wire(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			rt.Logger.Warn("failed to close runtime", zap.Error(closeErr))
		}
	}()

	ctx, intr := watchInterrupts(cmd.Context(), rt.Logger, cmd.ErrOrStderr())
	intr.listen(true)
	defer intr.release()

	s, err := a.strategy(rt, name)
	if err != nil {
		return err
	}

	res, err := s.Rollback(ctx, rollback.Request{
		Target:  opts.Target,
		Message: opts.Message,
		Force:   opts.Force || rt.Config.Push.Force,
		DryRun:  opts.DryRun,
	})
	err = intr.wrap(err)
	if !a.isJSON(out) {
		RenderResult(out, res, err, stylesFor(out))
	}
	return err
}

func (a *App) strategy(rt *Runtime, name string) (strategy, error) {
	switch name {
	case rollback.StrategyMerge:
		if rt.Config.Backend != config.BackendSVN {
			return nil, fmt.Errorf("merge rollback needs the svn backend (configured: %s)", rt.Config.Backend)
		}
		b, err := rt.SVNBackend(a.runner)
		if err != nil {
			return nil, err
		}
		return rollback.NewMergeStrategy(b, rt.Options()), nil
	case rollback.StrategyDiff:
		if rt.Config.Backend != config.BackendGit {
			return nil, fmt.Errorf("diff rollback needs the git backend (configured: %s)", rt.Config.Backend)
		}
		b, err := rt.GitBackend(a.runner)
		if err != nil {
			return nil, err
		}
		return rollback.NewDiffStrategy(b, rt.Options()), nil
	default:
		return nil, errors.New("unknown rollback strategy " + name)
	}
}

// wire loads config and assembles the runtime for a rollback command
func (a *App) wire(cmd *cobra.Command) (*Runtime, error) {
	cfg, logger, err := a.load(cmd)
	if err != nil {
		return nil, err
	}
	opts := WireOptions{Logger: logger, Notices: cmd.ErrOrStderr()}
	switch {
	case a.isJSON(cmd.OutOrStdout()):
		opts.JSON = cmd.OutOrStdout()
	case a.verbose:
		opts.Progress = cmd.ErrOrStderr()
	}
	return Wire(cfg, opts)
}

// load reads the config and builds the logger
func (a *App) load(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg.LogLevel, a.verbose, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// isJSON reports whether events go to out as JSON lines: when --json is
// set or out is not a terminal.
func (a *App) isJSON(out io.Writer) bool {
	return events.IsJSONMode(a.jsonOutput, out)
}
