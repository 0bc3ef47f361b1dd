// Package conflict provides the policies used to resolve merge conflicts
// during a rollback. Every policy here is total and never prompts.
package conflict

import (
	"fmt"
	"path"
	"strings"

	"github.com/RevCBH/trunkback/internal/vcs"
)

// Func adapts a plain function to vcs.ConflictPolicy.
type Func func(c vcs.ConflictDescriptor) vcs.Resolution

func (f Func) Resolve(c vcs.ConflictDescriptor) vcs.Resolution {
	return f(c)
}

// Static always answers with the same resolution.
type Static vcs.Resolution

func (s Static) Resolve(vcs.ConflictDescriptor) vcs.Resolution {
	return vcs.Resolution(s)
}

// KeepTheirs resolves every conflict toward the revision being merged in,
// which for a rollback is the target revision.
func KeepTheirs() vcs.ConflictPolicy {
	return Static(vcs.KeepTheirs)
}

// KeepMine resolves every conflict toward the current head.
func KeepMine() vcs.ConflictPolicy {
	return Static(vcs.KeepMine)
}

// Default is the policy used by automated rollbacks.
func Default() vcs.ConflictPolicy {
	return KeepTheirs()
}

// PathRules pins conflicts on matching paths to a fixed resolution and sends
// everything else to Fallback (KeepTheirs when nil). Patterns use path.Match
// syntax against the slash-separated conflict path; a pattern without a slash
// also matches the base name.
type PathRules struct {
	Rules    []Rule
	Fallback vcs.ConflictPolicy
}

// Rule maps a glob to a resolution.
type Rule struct {
	Pattern    string
	Resolution vcs.Resolution
}

// Resolve returns the resolution of the first matching rule.
func (p PathRules) Resolve(c vcs.ConflictDescriptor) vcs.Resolution {
	clean := path.Clean(strings.ReplaceAll(c.Path, "\\", "/"))
	for _, rule := range p.Rules {
		if matches(rule.Pattern, clean) {
			return rule.Resolution
		}
	}
	if p.Fallback == nil {
		return vcs.KeepTheirs
	}
	return p.Fallback.Resolve(c)
}

func matches(pattern, p string) bool {
	if ok, _ := path.Match(pattern, p); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(p))
		return ok
	}
	return false
}

// ParseResolution converts a config string into a resolution.
func ParseResolution(s string) (vcs.Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "theirs", "keep-theirs", "theirs-full":
		return vcs.KeepTheirs, nil
	case "mine", "keep-mine", "mine-full":
		return vcs.KeepMine, nil
	case "postpone":
		return vcs.Postpone, nil
	default:
		return vcs.ResolutionNone, fmt.Errorf("unknown conflict resolution %q", s)
	}
}

// Validate reports whether r is a resolution a merge can proceed with.
// Postpone and the zero value stall a merge and are rejected.
func Validate(c vcs.ConflictDescriptor, r vcs.Resolution) error {
	switch r {
	case vcs.KeepMine, vcs.KeepTheirs:
		return nil
	case vcs.Postpone:
		return fmt.Errorf("%w: conflict on %s postponed", vcs.ErrMergeFailed, c.Path)
	default:
		return fmt.Errorf("%w: no resolution for conflict on %s (%s)", vcs.ErrMergeFailed, c.Path, r)
	}
}
