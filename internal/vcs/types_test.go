package vcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeType_String(t *testing.T) {
	assert.Equal(t, "add", ChangeAdd.String())
	assert.Equal(t, "rename", ChangeRename.String())
	assert.Equal(t, "unknown(0)", ChangeUnknown.String())
}

func TestResolution_String(t *testing.T) {
	assert.Equal(t, "keep-theirs", KeepTheirs.String())
	assert.Equal(t, "none", ResolutionNone.String())
	assert.Equal(t, "resolution(42)", Resolution(42).String())
}

func TestDiffEntry_Path(t *testing.T) {
	assert.Equal(t, "new.txt", DiffEntry{OldPath: "old.txt", NewPath: "new.txt"}.Path())
	assert.Equal(t, "gone.txt", DiffEntry{OldPath: "gone.txt", Type: ChangeDelete}.Path())
}

func TestRevisionID_Short(t *testing.T) {
	assert.Equal(t, "42", RevisionID("42").Short())
	assert.Equal(t, "0123456789ab", RevisionID("0123456789abcdef0123").Short())
}

func TestNoOpResult(t *testing.T) {
	assert.True(t, NoOpResult.IsNoOp())
	assert.False(t, CommitResult{Revision: "7", ChangedPathCount: 1}.IsNoOp())
}
