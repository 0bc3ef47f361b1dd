package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RevCBH/trunkback/internal/events"
	"github.com/RevCBH/trunkback/internal/history"
)

// HistoryOptions holds flags for the history command
type HistoryOptions struct {
	Limit int // Maximum number of runs to list
}

// NewHistoryCmd creates the history command
func NewHistoryCmd(app *App) *cobra.Command {
	opts := HistoryOptions{Limit: 20}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded rollbacks or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) > 0 {
				runID = args[0]
			}
			return app.History(cmd, runID, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 20, "Maximum number of runs to list")
	return cmd
}

// History prints the run list, or one run with its events when runID is set
func (a *App) History(cmd *cobra.Command, runID string, opts HistoryOptions) error {
	cfg, logger, err := a.load(cmd)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("history is disabled (history.path is empty)")
	}
	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if runID == "" {
		runs, err := store.ListRuns(ctx, opts.Limit)
		if err != nil {
			return err
		}
		if a.jsonOutput {
			return json.NewEncoder(out).Encode(runs)
		}
		RenderRuns(out, runs, stylesFor(out))
		return nil
	}

	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	evs, err := store.ListEvents(ctx, runID)
	if err != nil {
		return err
	}
	if a.jsonOutput {
		emitter := events.NewJSONEmitter(out)
		for _, e := range evs {
			if err := emitter.Emit(e); err != nil {
				return err
			}
		}
		return nil
	}
	RenderRun(out, run, evs, stylesFor(out))
	return nil
}
