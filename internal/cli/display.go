package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/RevCBH/trunkback/internal/events"
	"github.com/RevCBH/trunkback/internal/history"
	"github.com/RevCBH/trunkback/internal/rollback"
	"github.com/RevCBH/trunkback/internal/vcs"
)

// StatusSymbol prefixes the headline of a rendered result
type StatusSymbol string

const (
	SymbolComplete StatusSymbol = "✓"
	SymbolNoOp     StatusSymbol = "○"
	SymbolDryRun   StatusSymbol = "→"
	SymbolFailed   StatusSymbol = "✗"
)

// Styles contains the lipgloss styles for terminal output
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Failure lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultStyles returns the colored styles used on a terminal
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Value:   lipgloss.NewStyle().Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Failure: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// PlainStyles renders without any escape sequences
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Title: plain, Label: plain, Value: plain, Success: plain, Warning: plain, Failure: plain, Muted: plain}
}

// isTerminal reports whether w is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func stylesFor(w io.Writer) Styles {
	if isTerminal(w) {
		return DefaultStyles()
	}
	return PlainStyles()
}

// RenderResult writes a human readable summary of a rollback
func RenderResult(w io.Writer, res *rollback.Result, err error, s Styles) {
	if res == nil {
		fmt.Fprintf(w, "%s %s\n", s.Failure.Render(string(SymbolFailed)), s.Failure.Render(err.Error()))
		return
	}

	var b strings.Builder
	switch {
	case err != nil:
		fmt.Fprintf(&b, "%s %s\n", s.Failure.Render(string(SymbolFailed)),
			s.Failure.Render("rollback failed: "+err.Error()))
	case res.DryRun:
		fmt.Fprintf(&b, "%s %s\n", s.Warning.Render(string(SymbolDryRun)),
			s.Title.Render(fmt.Sprintf("dry run: %d path(s) would change", res.ChangedPaths)))
	case res.NoOp():
		fmt.Fprintf(&b, "%s %s\n", s.Muted.Render(string(SymbolNoOp)),
			s.Title.Render("nothing to roll back: trunk already matches "+res.Target.Short()))
	default:
		fmt.Fprintf(&b, "%s %s\n", s.Success.Render(string(SymbolComplete)),
			s.Title.Render(fmt.Sprintf("rolled back %s to %s", res.Repo, res.Target.Short())))
	}

	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "  %s %s\n", s.Label.Render(fmt.Sprintf("%-10s", label)), s.Value.Render(value))
	}
	row("run", res.RunID)
	row("strategy", res.Strategy)
	row("head", res.Head.Short())
	row("target", res.Target.Short())
	if !res.Commit.IsNoOp() && res.Commit.Revision != "" {
		row("commit", res.Commit.Revision.Short())
	}
	if res.Strategy == rollback.StrategyDiff && (res.Removed > 0 || res.Restored > 0) {
		row("changed", fmt.Sprintf("%d (%d removed, %d restored)", res.Removed+res.Restored, res.Removed, res.Restored))
	} else if res.ChangedPaths > 0 {
		row("changed", fmt.Sprintf("%d", res.ChangedPaths))
	}
	if res.ConflictsResolved > 0 {
		row("conflicts", fmt.Sprintf("%d resolved", res.ConflictsResolved))
	}
	if res.Strategy == rollback.StrategyDiff && !res.Commit.IsNoOp() && !res.DryRun {
		row("pushed", yesNo(res.Pushed))
	}
	row("duration", res.Duration.Round(time.Millisecond).String())

	if res.DryRun && res.Plan != nil {
		for _, a := range res.Plan.Actions {
			fmt.Fprintf(&b, "    %s %s\n", s.Muted.Render(fmt.Sprintf("%-8s", a.Kind)), a.Path)
		}
	}

	fmt.Fprint(w, b.String())
}

// RenderRuns writes the history table, newest first
func RenderRuns(w io.Writer, runs []*history.Run, s Styles) {
	if len(runs) == 0 {
		fmt.Fprintln(w, s.Muted.Render("no rollbacks recorded"))
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Muted).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Title.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("RUN", "STARTED", "STRATEGY", "STATUS", "TARGET", "COMMIT", "CHANGED")
	for _, r := range runs {
		t.Row(
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Strategy,
			string(r.Status),
			vcs.RevisionID(r.Target).Short(),
			vcs.RevisionID(r.Commit).Short(),
			fmt.Sprintf("%d", r.ChangedPaths),
		)
	}
	fmt.Fprintln(w, t.Render())
}

// RenderRun writes one run with its event log
func RenderRun(w io.Writer, r *history.Run, evs []events.Event, s Styles) {
	fmt.Fprintf(w, "%s %s\n", s.Title.Render("rollback"), s.Value.Render(r.ID))
	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(w, "  %s %s\n", s.Label.Render(fmt.Sprintf("%-10s", label)), value)
	}
	field("repo", r.Repo)
	field("strategy", r.Strategy)
	field("status", string(r.Status))
	field("requested", r.TargetRef)
	field("target", r.Target)
	field("head", r.Head)
	field("commit", r.Commit)
	field("changed", fmt.Sprintf("%d", r.ChangedPaths))
	if r.ConflictsResolved > 0 {
		field("conflicts", fmt.Sprintf("%d", r.ConflictsResolved))
	}
	field("pushed", yesNo(r.Pushed))
	field("started", r.StartedAt.Local().Format(time.RFC3339))
	if d := r.Duration(); d > 0 {
		field("duration", d.Round(time.Millisecond).String())
	}
	if r.Error != nil {
		field("error", s.Failure.Render(*r.Error))
	}

	if len(evs) > 0 {
		fmt.Fprintln(w, s.Label.Render("  events"))
		for _, e := range evs {
			fmt.Fprintf(w, "    %s %s\n", s.Muted.Render(e.Time.Local().Format("15:04:05.000")), e.String())
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
