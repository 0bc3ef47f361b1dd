package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RevCBH/trunkback/internal/vcs"
)

func TestDefault_AlwaysKeepsTheirs(t *testing.T) {
	policy := Default()
	cases := []vcs.ConflictDescriptor{
		{Path: "a.txt", Reason: "text", Mine: "head", Theirs: "r5"},
		{Path: "dir/b.bin", Reason: "tree"},
		{},
	}
	for _, c := range cases {
		assert.Equal(t, vcs.KeepTheirs, policy.Resolve(c), "path %q", c.Path)
	}
}

func TestKeepMine(t *testing.T) {
	assert.Equal(t, vcs.KeepMine, KeepMine().Resolve(vcs.ConflictDescriptor{Path: "x"}))
}

func TestFunc(t *testing.T) {
	var seen []string
	policy := Func(func(c vcs.ConflictDescriptor) vcs.Resolution {
		seen = append(seen, c.Path)
		return vcs.KeepMine
	})

	assert.Equal(t, vcs.KeepMine, policy.Resolve(vcs.ConflictDescriptor{Path: "p"}))
	assert.Equal(t, []string{"p"}, seen)
}

func TestPathRules(t *testing.T) {
	policy := PathRules{
		Rules: []Rule{
			{Pattern: "VERSION", Resolution: vcs.KeepMine},
			{Pattern: "deploy/*.yaml", Resolution: vcs.KeepMine},
		},
	}

	tests := []struct {
		path string
		want vcs.Resolution
	}{
		{"VERSION", vcs.KeepMine},
		{"sub/VERSION", vcs.KeepMine},
		{"deploy/prod.yaml", vcs.KeepMine},
		{"deploy/nested/prod.yaml", vcs.KeepTheirs},
		{"./deploy/prod.yaml", vcs.KeepMine},
		{"src/main.go", vcs.KeepTheirs},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Resolve(vcs.ConflictDescriptor{Path: tt.path}))
		})
	}
}

func TestPathRules_Fallback(t *testing.T) {
	policy := PathRules{Fallback: KeepMine()}
	assert.Equal(t, vcs.KeepMine, policy.Resolve(vcs.ConflictDescriptor{Path: "any"}))
}

func TestParseResolution(t *testing.T) {
	r, err := ParseResolution("theirs")
	require.NoError(t, err)
	assert.Equal(t, vcs.KeepTheirs, r)

	r, err = ParseResolution(" Mine-Full ")
	require.NoError(t, err)
	assert.Equal(t, vcs.KeepMine, r)

	_, err = ParseResolution("coin-flip")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := vcs.ConflictDescriptor{Path: "a.txt"}

	assert.NoError(t, Validate(c, vcs.KeepTheirs))
	assert.NoError(t, Validate(c, vcs.KeepMine))
	assert.ErrorIs(t, Validate(c, vcs.Postpone), vcs.ErrMergeFailed)
	assert.ErrorIs(t, Validate(c, vcs.ResolutionNone), vcs.ErrMergeFailed)
	assert.ErrorIs(t, Validate(c, vcs.Resolution(99)), vcs.ErrMergeFailed)
}
