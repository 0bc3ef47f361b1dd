package svn

import (
	"encoding/xml"
	"fmt"
	"path/filepath"

	"github.com/RevCBH/trunkback/internal/vcs"
)

// status is the subset of `svn status --xml` the backend reads.
type status struct {
	Targets []statusTarget `xml:"target"`
}

type statusTarget struct {
	Path    string        `xml:"path,attr"`
	Entries []statusEntry `xml:"entry"`
}

type statusEntry struct {
	Path     string   `xml:"path,attr"`
	WCStatus wcStatus `xml:"wc-status"`
}

type wcStatus struct {
	Item           string `xml:"item,attr"`
	Props          string `xml:"props,attr"`
	TreeConflicted bool   `xml:"tree-conflicted,attr"`
}

func parseStatus(data []byte) (*status, error) {
	var st status
	if err := xml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse svn status: %w", err)
	}
	return &st, nil
}

func (s *status) entries() []statusEntry {
	var out []statusEntry
	for _, t := range s.Targets {
		out = append(out, t.Entries...)
	}
	return out
}

const (
	reasonTree     = "tree conflict"
	reasonText     = "text conflict"
	reasonProperty = "property conflict"
)

// conflicts returns one descriptor per conflicted path, in status order.
func (s *status) conflicts(mine, theirs string) []vcs.ConflictDescriptor {
	var out []vcs.ConflictDescriptor
	for _, e := range s.entries() {
		var reason string
		switch {
		case e.WCStatus.TreeConflicted:
			reason = reasonTree
		case e.WCStatus.Item == "conflicted":
			reason = reasonText
		case e.WCStatus.Props == "conflicted":
			reason = reasonProperty
		default:
			continue
		}
		out = append(out, vcs.ConflictDescriptor{
			Path:   filepath.ToSlash(e.Path),
			Reason: reason,
			Mine:   mine,
			Theirs: theirs,
		})
	}
	return out
}

// changedPaths counts entries with a content or structural change. Property
// changes count except on the working copy root, where merges record
// mergeinfo.
func (s *status) changedPaths() int {
	n := 0
	for _, e := range s.entries() {
		switch e.WCStatus.Item {
		case "modified", "added", "deleted", "replaced", "conflicted":
			n++
			continue
		}
		if e.Path != "." && (e.WCStatus.Props == "modified" || e.WCStatus.Props == "conflicted") {
			n++
		}
	}
	return n
}
