package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/RevCBH/trunkback/internal/vcs"
)

const devNull = "/dev/null"

// Diff lists the paths that differ between from and to, with from as the old
// side. git's output is parsed as it streams, one file at a time as the
// caller ranges over the entries; stopping early kills the diff.
func (b *Backend) Diff(ctx context.Context, from, to vcs.RevisionID) iter.Seq2[vcs.DiffEntry, error] {
	return func(yield func(vcs.DiffEntry, error) bool) {
		wrap := func(err error) error {
			return fmt.Errorf("git diff %s %s: %w", from.Short(), to.Short(), err)
		}
		rc, err := b.runner.Stream(ctx, b.cfg.MirrorDir,
			"-c", "core.quotePath=false",
			"diff", "--full-index", "-M", "-C", "--no-color", "--no-ext-diff",
			from.String(), to.String())
		if err != nil {
			yield(vcs.DiffEntry{}, wrap(err))
			return
		}
		closed := false
		defer func() {
			if !closed {
				rc.Close()
			}
		}()

		for entry, err := range ParseDiff(rc) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(vcs.DiffEntry{}, ctxErr)
				return
			}
			if err != nil {
				// A failing git exits mid-stream; its stderr beats the parse error.
				closed = true
				if closeErr := rc.Close(); closeErr != nil {
					err = wrap(closeErr)
				}
				yield(vcs.DiffEntry{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}

		closed = true
		if err := rc.Close(); err != nil {
			yield(vcs.DiffEntry{}, wrap(err))
		}
	}
}

// ParseDiff reads `git diff` output and yields one entry per file. Parsing
// stops at the first malformed file.
func ParseDiff(r io.Reader) iter.Seq2[vcs.DiffEntry, error] {
	return func(yield func(vcs.DiffEntry, error) bool) {
		mr := diff.NewMultiFileDiffReader(r)
		for {
			fd, err := mr.ReadFile()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(vcs.DiffEntry{}, fmt.Errorf("parse diff: %w", err))
				return
			}
			entry, err := entryFromFileDiff(fd)
			if !yield(entry, err) || err != nil {
				return
			}
		}
	}
}

// entryFromFileDiff derives the change type from git's extended headers.
// Names come from the ---/+++ lines when present, otherwise from the
// "diff --git" line (pure renames, mode changes, empty and binary files).
func entryFromFileDiff(fd *diff.FileDiff) (vcs.DiffEntry, error) {
	e := vcs.DiffEntry{
		OldPath: trimName(fd.OrigName, "a/"),
		NewPath: trimName(fd.NewName, "b/"),
		Type:    vcs.ChangeModify,
	}

	var header string
	for _, line := range fd.Extended {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			header = strings.TrimPrefix(line, "diff --git ")
		case strings.HasPrefix(line, "new file mode "):
			e.Type = vcs.ChangeAdd
		case strings.HasPrefix(line, "deleted file mode "):
			e.Type = vcs.ChangeDelete
		case strings.HasPrefix(line, "rename from "):
			e.Type = vcs.ChangeRename
			e.OldPath = strings.TrimPrefix(line, "rename from ")
		case strings.HasPrefix(line, "rename to "):
			e.Type = vcs.ChangeRename
			e.NewPath = strings.TrimPrefix(line, "rename to ")
		case strings.HasPrefix(line, "copy from "):
			e.Type = vcs.ChangeCopy
			e.OldPath = strings.TrimPrefix(line, "copy from ")
		case strings.HasPrefix(line, "copy to "):
			e.Type = vcs.ChangeCopy
			e.NewPath = strings.TrimPrefix(line, "copy to ")
		case strings.HasPrefix(line, "index "):
			e.OldContentID, e.NewContentID = parseIndex(line)
		}
	}

	if e.OldPath == "" && e.NewPath == "" && header != "" {
		e.OldPath, e.NewPath = splitHeader(header)
	}

	switch e.Type {
	case vcs.ChangeAdd:
		if e.NewPath == "" {
			e.NewPath = e.OldPath
		}
		e.OldPath = ""
	case vcs.ChangeDelete:
		if e.OldPath == "" {
			e.OldPath = e.NewPath
		}
		e.NewPath = ""
	case vcs.ChangeModify:
		if e.OldPath == "" {
			e.OldPath = e.NewPath
		}
		if e.NewPath == "" {
			e.NewPath = e.OldPath
		}
	}

	if e.Path() == "" {
		return e, fmt.Errorf("parse diff: no path in file header %q", header)
	}
	return e, nil
}

func trimName(name, prefix string) string {
	if name == devNull {
		return ""
	}
	return strings.TrimPrefix(name, prefix)
}

// parseIndex reads "index <old>..<new> [mode]".
func parseIndex(line string) (oldID, newID string) {
	fields := strings.Fields(strings.TrimPrefix(line, "index "))
	if len(fields) == 0 {
		return "", ""
	}
	oldID, newID, _ = strings.Cut(fields[0], "..")
	return oldID, newID
}

// splitHeader splits "a/<old> b/<new>". Paths containing " b/" are ambiguous
// in this form; the last occurrence wins.
func splitHeader(header string) (oldPath, newPath string) {
	i := strings.LastIndex(header, " b/")
	if i < 0 {
		return "", ""
	}
	return strings.TrimPrefix(header[:i], "a/"), header[i+len(" b/"):]
}
