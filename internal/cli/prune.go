package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/RevCBH/trunkback/internal/workspace"
)

// PruneOptions holds flags for the prune command
type PruneOptions struct {
	OlderThan time.Duration // Zero uses workspace.prune_after
}

// NewPruneCmd creates the prune command
func NewPruneCmd(app *App) *cobra.Command {
	var opts PruneOptions

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove workspaces left behind by killed rollbacks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Prune(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.OlderThan, "older-than", 0, "Minimum age of removed workspaces (default: workspace.prune_after)")
	return cmd
}

// Prune removes stale workspace directories
func (a *App) Prune(cmd *cobra.Command, opts PruneOptions) error {
	cfg, logger, err := a.load(cmd)
	if err != nil {
		return err
	}
	age := opts.OlderThan
	if age <= 0 {
		if age, err = cfg.PruneAfterDuration(); err != nil {
			return err
		}
	}

	m := workspace.NewManager(cfg.Workspace.BaseDir, logger)
	m.Prefix = cfg.Workspace.Prefix
	removed, err := m.Prune(age)

	out := cmd.OutOrStdout()
	for _, path := range removed {
		fmt.Fprintf(out, "removed %s\n", path)
	}
	if len(removed) == 0 && err == nil {
		fmt.Fprintln(out, "no stale workspaces")
	}
	return err
}
