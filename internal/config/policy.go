package config

import (
	"github.com/RevCBH/trunkback/internal/conflict"
	"github.com/RevCBH/trunkback/internal/vcs"
)

// Policy builds the conflict policy: paths matching KeepMine keep the head
// version and everything else gets the default resolution.
func (c ConflictConfig) Policy() (vcs.ConflictPolicy, error) {
	def, err := conflict.ParseResolution(c.Default)
	if err != nil {
		return nil, err
	}
	if len(c.KeepMine) == 0 {
		return conflict.Static(def), nil
	}
	rules := make([]conflict.Rule, 0, len(c.KeepMine))
	for _, pattern := range c.KeepMine {
		rules = append(rules, conflict.Rule{Pattern: pattern, Resolution: vcs.KeepMine})
	}
	return conflict.PathRules{Rules: rules, Fallback: conflict.Static(def)}, nil
}
