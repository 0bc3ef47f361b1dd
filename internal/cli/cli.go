// Package cli wires the trunkback commands.
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/RevCBH/trunkback/internal/command"
	"github.com/RevCBH/trunkback/internal/vcs"
)

// Exit codes returned by the trunkback binary.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitRevisionNotFound = 2
	ExitPushRejected     = 3
	ExitInterrupted      = 130
)

// VersionInfo holds build metadata for the version command
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// App represents the CLI application with all wired dependencies
type App struct {
	// Root command
	rootCmd *cobra.Command

	// Persistent flags
	configPath string
	verbose    bool
	jsonOutput bool

	// runner overrides the git/svn process runner (tests)
	runner command.Runner

	versionInfo VersionInfo
}

// New creates a new CLI application
func New() *App {
	app := &App{}
	app.setupRootCmd()
	return app
}

// Execute runs the CLI application
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

// SetVersion sets the version string for the version command
func (a *App) SetVersion(version, commit, date string) {
	a.versionInfo = VersionInfo{Version: version, Commit: commit, Date: date}
}

// SetArgs replaces the command line arguments (tests)
func (a *App) SetArgs(args []string) {
	a.rootCmd.SetArgs(args)
}

// setupRootCmd configures the root Cobra command
func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "trunkback",
		Short: "Roll a version-controlled trunk back to an earlier revision",
		Long: `trunkback restores the content of a trunk to an earlier revision by
creating one new commit on top of the current head. History is never rewritten.

Use "merge" for an svn trunk and "diff" for a git branch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := a.rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (default: ./.trunkback.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")
	flags.BoolVar(&a.jsonOutput, "json", false, "Emit events as JSON lines (default when stdout is not a terminal)")

	a.rootCmd.AddCommand(
		NewMergeCmd(a),
		NewDiffCmd(a),
		NewHistoryCmd(a),
		NewPruneCmd(a),
		NewVersionCmd(a),
	)
}

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, vcs.ErrRevisionNotFound):
		return ExitRevisionNotFound
	case errors.Is(err, vcs.ErrPushRejected):
		return ExitPushRejected
	case errors.Is(err, ErrInterrupted):
		return ExitInterrupted
	default:
		return ExitFailure
	}
}
