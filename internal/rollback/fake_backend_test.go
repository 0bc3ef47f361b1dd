package rollback

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/RevCBH/trunkback/internal/vcs"
)

// fakeRepo is an in-memory repository with numbered revisions. Each revision
// is a full snapshot of path -> content.
type fakeRepo struct {
	mu        sync.Mutex
	snapshots map[vcs.RevisionID]map[string]string
	head      vcs.RevisionID
	next      int

	// conflicts lists paths the merge reports as conflicted
	conflicts []string

	// renames are reported by Diff instead of the add/delete pair they replace
	renames map[string]string

	// failures injected per operation name
	fail map[string]error

	// headAfterCheckout advances the trunk once a checkout happened
	headAfterCheckout map[string]string

	calls        []string
	workingDirs  []string
	pushed       []vcs.RevisionID
	pushedForced bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		snapshots: make(map[vcs.RevisionID]map[string]string),
		fail:      make(map[string]error),
		renames:   make(map[string]string),
	}
}

// commitSnapshot appends a revision with the given files and makes it head.
func (f *fakeRepo) commitSnapshot(files map[string]string) vcs.RevisionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commitLocked(files)
}

func (f *fakeRepo) commitLocked(files map[string]string) vcs.RevisionID {
	f.next++
	rev := vcs.RevisionID("r" + strconv.Itoa(f.next))
	snap := make(map[string]string, len(files))
	for k, v := range files {
		snap[k] = v
	}
	f.snapshots[rev] = snap
	f.head = rev
	return rev
}

func (f *fakeRepo) record(op string) error {
	f.calls = append(f.calls, op)
	return f.fail[op]
}

func (f *fakeRepo) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeRepo) mutationCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c != "resolve" && c != "head" {
			n++
		}
	}
	return n
}

// fakeWC is the in-memory state of a working copy.
type fakeWC struct {
	files map[string]string
}

type fakeBackend struct {
	repo *fakeRepo
	wcs  map[string]*fakeWC
}

var (
	_ vcs.CentralizedBackend = (*fakeBackend)(nil)
	_ vcs.DistributedBackend = (*fakeBackend)(nil)
)

func newFakeBackend(repo *fakeRepo) *fakeBackend {
	return &fakeBackend{repo: repo, wcs: make(map[string]*fakeWC)}
}

func (b *fakeBackend) Name() string { return "fake://trunk" }

func (b *fakeBackend) Head(ctx context.Context) (vcs.RevisionID, error) {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	if err := b.repo.record("head"); err != nil {
		return "", err
	}
	return b.repo.head, nil
}

func (b *fakeBackend) Resolve(ctx context.Context, ref string) (vcs.RevisionID, error) {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	if err := b.repo.record("resolve"); err != nil {
		return "", err
	}
	if ref == "HEAD" {
		return b.repo.head, nil
	}
	if _, ok := b.repo.snapshots[vcs.RevisionID(ref)]; !ok {
		return "", fmt.Errorf("%w: %s", vcs.ErrRevisionNotFound, ref)
	}
	return vcs.RevisionID(ref), nil
}

func (b *fakeBackend) Checkout(ctx context.Context, rev vcs.RevisionID, dest string) (*vcs.WorkingCopy, error) {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	if err := b.repo.record("checkout"); err != nil {
		return nil, err
	}
	if _, err := os.Stat(dest); err == nil {
		return nil, fmt.Errorf("%w: %s exists", vcs.ErrCheckoutFailed, dest)
	}
	snap := b.repo.snapshots[rev]
	wc := &fakeWC{files: make(map[string]string, len(snap))}
	for p, c := range snap {
		wc.files[p] = c
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}
	for p, c := range wc.files {
		if err := writeFile(dest, p, c); err != nil {
			return nil, err
		}
	}
	b.wcs[dest] = wc
	b.repo.workingDirs = append(b.repo.workingDirs, dest)

	if b.repo.headAfterCheckout != nil {
		b.repo.commitLocked(b.repo.headAfterCheckout)
		b.repo.headAfterCheckout = nil
	}
	return &vcs.WorkingCopy{Path: dest, Repo: b.Name(), Revision: rev}, nil
}

func (b *fakeBackend) Update(ctx context.Context, wc *vcs.WorkingCopy) (vcs.RevisionID, error) {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	if err := b.repo.record("update"); err != nil {
		return "", err
	}
	state := b.wcs[wc.Path]
	state.files = make(map[string]string)
	for p, c := range b.repo.snapshots[b.repo.head] {
		state.files[p] = c
	}
	wc.Revision = b.repo.head
	return b.repo.head, nil
}

func (b *fakeBackend) MergeRange(ctx context.Context, from, to vcs.RevisionID, wc *vcs.WorkingCopy, policy vcs.ConflictPolicy) (vcs.MergeResult, error) {
	b.repo.mu.Lock()
	if err := b.repo.record("merge"); err != nil {
		b.repo.mu.Unlock()
		return vcs.MergeResult{}, err
	}
	state := b.wcs[wc.Path]
	fromSnap := b.repo.snapshots[from]
	toSnap := b.repo.snapshots[to]
	conflicts := append([]string(nil), b.repo.conflicts...)
	b.repo.mu.Unlock()

	before := copyFiles(state.files)
	conflicted := make(map[string]bool, len(conflicts))
	result := vcs.MergeResult{}

	for _, p := range conflicts {
		conflicted[p] = true
		desc := vcs.ConflictDescriptor{Path: p, Reason: "edited on both sides", Mine: state.files[p], Theirs: toSnap[p]}
		switch policy.Resolve(desc) {
		case vcs.KeepTheirs:
			setOrDelete(state.files, p, toSnap, wc.Path)
		case vcs.KeepMine:
		default:
			return vcs.MergeResult{}, fmt.Errorf("%w: unresolved conflict on %s", vcs.ErrMergeFailed, p)
		}
		result.ConflictsResolved++
	}

	for _, p := range unionPaths(fromSnap, toSnap) {
		if conflicted[p] {
			continue
		}
		if fromSnap[p] == toSnap[p] {
			if _, inFrom := fromSnap[p]; inFrom == hasKey(toSnap, p) {
				continue
			}
		}
		setOrDelete(state.files, p, toSnap, wc.Path)
	}

	for _, p := range unionPaths(before, state.files) {
		if before[p] != state.files[p] || hasKey(before, p) != hasKey(state.files, p) {
			result.ChangedPathCount++
		}
	}
	return result, nil
}

func (b *fakeBackend) Diff(ctx context.Context, from, to vcs.RevisionID) iter.Seq2[vcs.DiffEntry, error] {
	return func(yield func(vcs.DiffEntry, error) bool) {
		b.repo.mu.Lock()
		err := b.repo.record("diff")
		fromSnap := b.repo.snapshots[from]
		toSnap := b.repo.snapshots[to]
		renames := b.repo.renames
		b.repo.mu.Unlock()
		if err != nil {
			yield(vcs.DiffEntry{}, err)
			return
		}

		renamedNew := map[string]string{}
		for oldPath, newPath := range renames {
			renamedNew[newPath] = oldPath
		}

		for _, p := range unionPaths(fromSnap, toSnap) {
			var e vcs.DiffEntry
			_, inFrom := fromSnap[p]
			_, inTo := toSnap[p]
			switch {
			case inFrom && inTo && fromSnap[p] == toSnap[p]:
				continue
			case inFrom && inTo:
				e = vcs.DiffEntry{OldPath: p, NewPath: p, Type: vcs.ChangeModify}
			case inFrom:
				if _, ok := renames[p]; ok {
					continue
				}
				e = vcs.DiffEntry{OldPath: p, Type: vcs.ChangeDelete}
			default:
				if oldPath, ok := renamedNew[p]; ok {
					e = vcs.DiffEntry{OldPath: oldPath, NewPath: p, Type: vcs.ChangeRename}
				} else {
					e = vcs.DiffEntry{NewPath: p, Type: vcs.ChangeAdd}
				}
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (b *fakeBackend) ApplyPathContent(ctx context.Context, wc *vcs.WorkingCopy, path string, rev vcs.RevisionID) error {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	if err := b.repo.record("apply"); err != nil {
		return err
	}
	content, ok := b.repo.snapshots[rev][path]
	if !ok {
		return fmt.Errorf("%w: %s@%s", vcs.ErrPathNotFoundAtRevision, path, rev)
	}
	b.wcs[wc.Path].files[path] = content
	return writeFile(wc.Path, path, content)
}

func (b *fakeBackend) StageRemoval(ctx context.Context, wc *vcs.WorkingCopy, path string) error {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	if err := b.repo.record("remove"); err != nil {
		return err
	}
	delete(b.wcs[wc.Path].files, path)
	return os.RemoveAll(filepath.Join(wc.Path, filepath.FromSlash(path)))
}

func (b *fakeBackend) Commit(ctx context.Context, wc *vcs.WorkingCopy, message string) (vcs.CommitResult, error) {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	if err := b.repo.record("commit"); err != nil {
		return vcs.CommitResult{}, err
	}
	state := b.wcs[wc.Path]
	base := b.repo.snapshots[b.repo.head]
	changed := 0
	for _, p := range unionPaths(base, state.files) {
		if base[p] != state.files[p] || hasKey(base, p) != hasKey(state.files, p) {
			changed++
		}
	}
	if changed == 0 {
		return vcs.NoOpResult, nil
	}
	rev := b.repo.commitLocked(state.files)
	return vcs.CommitResult{Revision: rev, ChangedPathCount: changed}, nil
}

func (b *fakeBackend) Push(ctx context.Context, wc *vcs.WorkingCopy, opts vcs.PushOptions) error {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	if err := b.repo.record("push"); err != nil {
		return err
	}
	b.repo.pushed = append(b.repo.pushed, b.repo.head)
	b.repo.pushedForced = opts.Force
	return nil
}

func writeFile(root, p, content string) error {
	full := filepath.Join(root, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content), 0o644)
}

func setOrDelete(files map[string]string, p string, snap map[string]string, root string) {
	if c, ok := snap[p]; ok {
		files[p] = c
		_ = writeFile(root, p, c)
		return
	}
	delete(files, p)
	_ = os.Remove(filepath.Join(root, filepath.FromSlash(p)))
}

func copyFiles(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

func unionPaths(a, b map[string]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range []map[string]string{a, b} {
		for p := range m {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}
