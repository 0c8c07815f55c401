package repo

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/odvcencio/strata/pkg/index"
	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

func TestCommit_SingleFile(t *testing.T) {
	r := newTestRepo(t)
	ix := stageFiles(t, r, map[string]string{"readme.md": "# hello\n"})

	res, err := r.Commit(ix, CommitOptions{Author: "Alice", Message: "Initial commit", Timestamp: testTimestamp})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if res.UpdatedRef != refs.BranchName("main") {
		t.Errorf("UpdatedRef = %q, want refs/heads/main", res.UpdatedRef)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}

	c, err := r.Store.ReadCommit(res.CommitID)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.Author != "Alice" || c.Message != "Initial commit" || c.Timestamp != testTimestamp {
		t.Errorf("commit = %+v", c)
	}
	if len(c.ParentIDs) != 0 {
		t.Errorf("root commit has parents %v", c.ParentIDs)
	}

	tree, err := r.Store.ReadTree(c.TreeID)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(tree.Entries) != 1 || tree.Entries[0].Name != "readme.md" || tree.Entries[0].Kind != object.KindBlob {
		t.Fatalf("tree entries = %+v, want single blob readme.md", tree.Entries)
	}

	head, err := r.Refs.ReadHead()
	if err != nil {
		t.Fatalf("ReadHead: %v", err)
	}
	if head.Kind != refs.HeadBranch {
		t.Errorf("HEAD kind = %v, want branch", head.Kind)
	}
	if got := mustReadRef(t, r, refs.BranchName("main")); got != res.CommitID {
		t.Errorf("main = %s, want %s", got.Short(), res.CommitID.Short())
	}

	rep, err := r.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !rep.IsHealthy() {
		t.Fatalf("Verify issues: %v", rep.Issues)
	}
}

func TestCommit_ChainsParents(t *testing.T) {
	r := newTestRepo(t)
	first := commitFiles(t, r, map[string]string{"a.txt": "1"}, "first")
	second := commitFiles(t, r, map[string]string{"a.txt": "2"}, "second")

	c, err := r.Store.ReadCommit(second)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if diff := cmp.Diff([]object.CommitID{first}, c.ParentIDs); diff != "" {
		t.Fatalf("parents mismatch (-want +got):\n%s", diff)
	}
}

func TestCommit_EmptyIndexWritesNothing(t *testing.T) {
	r := newTestRepo(t)
	before := memoryBackend(t, r).Len()

	_, err := r.Commit(index.New(), CommitOptions{Message: "empty"})
	if !errors.Is(err, ErrEmptyCommit) {
		t.Fatalf("Commit error = %v, want ErrEmptyCommit", err)
	}
	if after := memoryBackend(t, r).Len(); after != before {
		t.Errorf("object count changed from %d to %d", before, after)
	}
	if _, err := r.Refs.ReadRef(refs.BranchName("main")); !errors.Is(err, refs.ErrRefNotFound) {
		t.Errorf("ReadRef(main) error = %v, want ErrRefNotFound", err)
	}
}

func TestCommit_SnapshotReplacesPreviousTree(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, map[string]string{"a.txt": "a", "dir/b.txt": "b"}, "first")
	second := commitFiles(t, r, map[string]string{"c.txt": "c"}, "second")

	want := map[string]string{"c.txt": "c"}
	if diff := cmp.Diff(want, flattenCommit(t, r, second)); diff != "" {
		t.Fatalf("second tree mismatch (-want +got):\n%s", diff)
	}
}

func TestCommit_DefaultsAuthorAndKeepsTimestamp(t *testing.T) {
	r := newTestRepo(t)
	res, err := r.Commit(stageFiles(t, r, map[string]string{"a": "a"}), CommitOptions{Message: "m"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	c, err := r.Store.ReadCommit(res.CommitID)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.Author != "test-author" {
		t.Errorf("Author = %q, want configured user name", c.Author)
	}
	// A zero timestamp is a real input, so the id is reproducible.
	want, err := object.ComputeCommitID(c.TreeID, nil, "test-author", "m", 0)
	if err != nil {
		t.Fatalf("ComputeCommitID: %v", err)
	}
	if c.Timestamp != 0 || res.CommitID != want {
		t.Errorf("commit %s with timestamp %d, want %s with timestamp 0", res.CommitID.Short(), c.Timestamp, want.Short())
	}
}

func TestCommit_RejectsNewerIndexVersion(t *testing.T) {
	r := newTestRepo(t)
	ix := stageFiles(t, r, map[string]string{"a": "a"})
	ix.Version = index.Version + 1
	before := memoryBackend(t, r).Len()

	_, err := r.Commit(ix, CommitOptions{Message: "too new", Timestamp: testTimestamp})
	if !errors.Is(err, index.ErrVersionMismatch) {
		t.Fatalf("Commit error = %v, want ErrVersionMismatch", err)
	}
	if after := memoryBackend(t, r).Len(); after != before {
		t.Errorf("object count changed from %d to %d", before, after)
	}
	if _, err := r.Refs.ReadRef(refs.BranchName("main")); !errors.Is(err, refs.ErrRefNotFound) {
		t.Errorf("ReadRef(main) error = %v, want ErrRefNotFound", err)
	}
}

func TestCommit_ExtraParentsAreDeduplicated(t *testing.T) {
	r := newTestRepo(t)
	first := commitFiles(t, r, map[string]string{"a": "1"}, "first")

	res, err := r.Commit(stageFiles(t, r, map[string]string{"a": "2"}), CommitOptions{
		Message:      "second",
		Timestamp:    testTimestamp,
		ExtraParents: []object.CommitID{first, first},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	c, err := r.Store.ReadCommit(res.CommitID)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if diff := cmp.Diff([]object.CommitID{first}, c.ParentIDs); diff != "" {
		t.Fatalf("parents mismatch (-want +got):\n%s", diff)
	}
}

func TestCommit_DetachedHead(t *testing.T) {
	r := newTestRepo(t)
	first := commitFiles(t, r, map[string]string{"a": "1"}, "first")
	if err := r.Detach(first); err != nil {
		t.Fatalf("Detach: %v", err)
	}

	res, err := r.Commit(stageFiles(t, r, map[string]string{"a": "2"}), CommitOptions{Message: "detached", Timestamp: testTimestamp})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if res.UpdatedRef != "" {
		t.Errorf("UpdatedRef = %q, want empty for detached HEAD", res.UpdatedRef)
	}

	head, err := r.Refs.ReadHead()
	if err != nil {
		t.Fatalf("ReadHead: %v", err)
	}
	if head.Kind != refs.HeadDetached || head.Commit != res.CommitID {
		t.Errorf("HEAD = %v, want detached at %s", head, res.CommitID.Short())
	}
	if got := mustReadRef(t, r, refs.BranchName("main")); got != first {
		t.Errorf("main moved to %s, want unchanged %s", got.Short(), first.Short())
	}
	c, err := r.Store.ReadCommit(res.CommitID)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if diff := cmp.Diff([]object.CommitID{first}, c.ParentIDs); diff != "" {
		t.Fatalf("parents mismatch (-want +got):\n%s", diff)
	}
}

// racingRefs runs race before delegating each WriteRef, simulating another
// writer that moves the ref between read and compare-and-swap.
type racingRefs struct {
	refs.Store
	mu   sync.Mutex
	race func(call int)
	n    int
}

func (s *racingRefs) WriteRef(name refs.Name, target refs.Target, createIfMissing bool, expectedOld *refs.Target) error {
	s.mu.Lock()
	s.n++
	call := s.n
	s.mu.Unlock()
	s.race(call)
	return s.Store.WriteRef(name, target, createIfMissing, expectedOld)
}

func TestCommit_RetriesAfterConcurrentRefMove(t *testing.T) {
	r := newTestRepo(t)
	mainRef := refs.BranchName("main")
	first := commitFiles(t, r, map[string]string{"a": "1"}, "first")
	intruder := writeRawCommit(t, r, emptyTree(t, r), []object.CommitID{first}, "intruder")

	inner := r.Refs
	r.Refs = &racingRefs{Store: inner, race: func(call int) {
		if call == 1 {
			if err := inner.WriteRef(mainRef, refs.CommitTarget(intruder), true, nil); err != nil {
				t.Errorf("racing WriteRef: %v", err)
			}
		}
	}}

	res, err := r.Commit(stageFiles(t, r, map[string]string{"a": "2"}), CommitOptions{Message: "second", Timestamp: testTimestamp})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	c, err := r.Store.ReadCommit(res.CommitID)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if diff := cmp.Diff([]object.CommitID{intruder}, c.ParentIDs); diff != "" {
		t.Fatalf("retried commit parents mismatch (-want +got):\n%s", diff)
	}
	if got := mustReadRef(t, r, mainRef); got != res.CommitID {
		t.Errorf("main = %s, want %s", got.Short(), res.CommitID.Short())
	}
}

func TestCommit_GivesUpAfterRetryBudget(t *testing.T) {
	r := newTestRepo(t)
	r.Config.Commit.RefRetries = 2
	mainRef := refs.BranchName("main")
	first := commitFiles(t, r, map[string]string{"a": "1"}, "first")
	tree := emptyTree(t, r)
	intruders := []object.CommitID{
		writeRawCommit(t, r, tree, []object.CommitID{first}, "intruder-a"),
		writeRawCommit(t, r, tree, []object.CommitID{first}, "intruder-b"),
	}

	inner := r.Refs
	r.Refs = &racingRefs{Store: inner, race: func(call int) {
		if err := inner.WriteRef(mainRef, refs.CommitTarget(intruders[call%2]), true, nil); err != nil {
			t.Errorf("racing WriteRef: %v", err)
		}
	}}

	_, err := r.Commit(stageFiles(t, r, map[string]string{"a": "2"}), CommitOptions{Message: "second", Timestamp: testTimestamp})
	if !errors.Is(err, refs.ErrRefConflict) {
		t.Fatalf("Commit error = %v, want ErrRefConflict", err)
	}
	got := mustReadRef(t, r, mainRef)
	if got != intruders[0] && got != intruders[1] {
		t.Errorf("main = %s, want one of the intruders", got.Short())
	}
}

func TestCommit_ConcurrentCommitsAllLand(t *testing.T) {
	r := newTestRepo(t)
	r.Config.Commit.RefRetries = 64
	commitFiles(t, r, map[string]string{"base": "0"}, "base")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	ids := make([]object.CommitID, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			blob, err := r.Store.WriteBlob([]byte{byte('a' + i)})
			if err != nil {
				errs[i] = err
				return
			}
			ix := index.New()
			ix.Add(index.MustPath("worker.txt"), blob)
			res, err := r.Commit(ix, CommitOptions{Message: "worker", Timestamp: testTimestamp})
			errs[i] = err
			if err == nil {
				ids[i] = res.CommitID
			}
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}

	head, err := r.HeadCommit()
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	seen := make(map[object.CommitID]bool)
	if err := r.History().Walk(head, func(e HistoryEntry) error {
		seen[e.ID] = true
		return nil
	}); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	for i, id := range ids {
		if !seen[id] {
			t.Errorf("worker %d commit %s not reachable from HEAD", i, id.Short())
		}
	}
}
