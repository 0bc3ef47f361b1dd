// Package classify turns the diff between a rollback target and the current
// head into the restore and remove actions that undo it.
package classify

import (
	"errors"
	"fmt"
	"iter"

	"github.com/RevCBH/trunkback/internal/vcs"
)

// ErrUnhandledChange is returned for a diff entry the classifier has no
// action for. It is never silently skipped.
var ErrUnhandledChange = errors.New("classify: unhandled diff entry")

// Kind is the type of a rollback action.
type Kind int

const (
	// Remove deletes a path that did not exist at the target revision.
	Remove Kind = iota + 1
	// Restore brings a path back to its content at the target revision.
	Restore
)

func (k Kind) String() string {
	switch k {
	case Remove:
		return "remove"
	case Restore:
		return "restore"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Action is one step of a rollback plan.
type Action struct {
	Kind Kind
	Path string
}

func (a Action) String() string {
	return a.Kind.String() + " " + a.Path
}

// Plan is the ordered list of actions derived from one diff.
type Plan struct {
	Actions []Action
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Actions) == 0
}

// Removals returns the Remove actions in plan order.
func (p *Plan) Removals() []Action {
	return p.filter(Remove)
}

// Restores returns the Restore actions in plan order.
func (p *Plan) Restores() []Action {
	return p.filter(Restore)
}

// Paths returns every path the plan touches, in plan order.
func (p *Plan) Paths() []string {
	if p == nil {
		return nil
	}
	seen := make(map[string]bool, len(p.Actions))
	var paths []string
	for _, a := range p.Actions {
		if !seen[a.Path] {
			seen[a.Path] = true
			paths = append(paths, a.Path)
		}
	}
	return paths
}

func (p *Plan) filter(kind Kind) []Action {
	if p == nil {
		return nil
	}
	var out []Action
	for _, a := range p.Actions {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Entry maps one diff entry to its actions. The entry must come from
// diff(target, head): the target revision is the old side.
//
//	Add            -> Remove(new)
//	Delete         -> Restore(old)
//	Modify         -> Restore(path)
//	Copy, Rename   -> Remove(new), Restore(old)
func Entry(e vcs.DiffEntry) ([]Action, error) {
	switch e.Type {
	case vcs.ChangeAdd:
		if e.NewPath == "" {
			return nil, fmt.Errorf("%w: add without new path", ErrUnhandledChange)
		}
		return []Action{{Kind: Remove, Path: e.NewPath}}, nil
	case vcs.ChangeDelete:
		if e.OldPath == "" {
			return nil, fmt.Errorf("%w: delete without old path", ErrUnhandledChange)
		}
		return []Action{{Kind: Restore, Path: e.OldPath}}, nil
	case vcs.ChangeModify:
		p := e.OldPath
		if p == "" {
			p = e.NewPath
		}
		if p == "" {
			return nil, fmt.Errorf("%w: modify without path", ErrUnhandledChange)
		}
		return []Action{{Kind: Restore, Path: p}}, nil
	case vcs.ChangeCopy, vcs.ChangeRename:
		if e.OldPath == "" || e.NewPath == "" {
			return nil, fmt.Errorf("%w: %s needs both paths (old=%q new=%q)",
				ErrUnhandledChange, e.Type, e.OldPath, e.NewPath)
		}
		return []Action{
			{Kind: Remove, Path: e.NewPath},
			{Kind: Restore, Path: e.OldPath},
		}, nil
	default:
		return nil, fmt.Errorf("%w: change type %s on %q", ErrUnhandledChange, e.Type, e.Path())
	}
}

// Classify consumes a diff sequence once and builds the plan. The first
// backend error or unclassifiable entry aborts classification.
//
// Each path gets at most one action. A path both removed and restored (the
// source of a copy that was also modified, say) keeps a single Restore,
// which already brings back its target content.
func Classify(entries iter.Seq2[vcs.DiffEntry, error]) (*Plan, error) {
	plan := &Plan{}
	index := make(map[string]int)
	for entry, err := range entries {
		if err != nil {
			return nil, err
		}
		actions, err := Entry(entry)
		if err != nil {
			return nil, err
		}
		for _, a := range actions {
			if i, ok := index[a.Path]; ok {
				if a.Kind == Restore {
					plan.Actions[i].Kind = Restore
				}
				continue
			}
			index[a.Path] = len(plan.Actions)
			plan.Actions = append(plan.Actions, a)
		}
	}
	return plan, nil
}
