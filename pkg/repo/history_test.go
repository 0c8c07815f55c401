package repo

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/odvcencio/strata/pkg/object"
)

func entryIDs(entries []HistoryEntry) []object.CommitID {
	ids := make([]object.CommitID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func TestHistoryPage_PaginatesLinearHistory(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitFiles(t, r, map[string]string{"f": "1"}, "one")
	c2 := commitFiles(t, r, map[string]string{"f": "2"}, "two")
	c3 := commitFiles(t, r, map[string]string{"f": "3"}, "three")

	page, err := r.History().Page(c3, 2)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if diff := cmp.Diff([]object.CommitID{c3, c2}, entryIDs(page.Entries)); diff != "" {
		t.Fatalf("first page mismatch (-want +got):\n%s", diff)
	}
	if !page.HasMore() || page.NextCursor != c1 {
		t.Fatalf("NextCursor = %s, want %s", page.NextCursor, c1)
	}
	if page.Entries[0].Message != "three" {
		t.Errorf("first entry message = %q, want three", page.Entries[0].Message)
	}

	next, err := r.History().Page(page.NextCursor, 2)
	if err != nil {
		t.Fatalf("Page(cursor): %v", err)
	}
	if diff := cmp.Diff([]object.CommitID{c1}, entryIDs(next.Entries)); diff != "" {
		t.Fatalf("second page mismatch (-want +got):\n%s", diff)
	}
	if next.HasMore() {
		t.Fatalf("second page reports more history, cursor %s", next.NextCursor)
	}
}

func TestHistoryPage_ZeroLimit(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitFiles(t, r, map[string]string{"f": "1"}, "one")

	page, err := r.History().Page(c1, 0)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(page.Entries) != 0 {
		t.Fatalf("got %d entries, want none", len(page.Entries))
	}
	if page.NextCursor != c1 {
		t.Fatalf("NextCursor = %s, want start %s", page.NextCursor, c1)
	}
}

func TestHistoryPage_MissingStart(t *testing.T) {
	r := newTestRepo(t)
	missing := object.CommitID(object.HashBytes([]byte("no such commit")))
	if _, err := r.History().Page(missing, 10); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("Page error = %v, want ErrNotFound", err)
	}
}

func TestHistoryWalk_MergeVisitsEachCommitOnce(t *testing.T) {
	r := newTestRepo(t)
	tree := emptyTree(t, r)
	base := writeRawCommit(t, r, tree, nil, "base")
	left := writeRawCommit(t, r, tree, []object.CommitID{base}, "left")
	right := writeRawCommit(t, r, tree, []object.CommitID{base}, "right")
	merge := writeRawCommit(t, r, tree, []object.CommitID{left, right}, "merge")

	var got []object.CommitID
	err := r.History().Walk(merge, func(e HistoryEntry) error {
		got = append(got, e.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if diff := cmp.Diff([]object.CommitID{merge, left, right, base}, got); diff != "" {
		t.Fatalf("walk order mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryWalk_StopEarly(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, map[string]string{"f": "1"}, "one")
	c2 := commitFiles(t, r, map[string]string{"f": "2"}, "two")

	calls := 0
	err := r.History().Walk(c2, func(HistoryEntry) error {
		calls++
		return ErrStopWalk
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if calls != 1 {
		t.Fatalf("callback ran %d times, want 1", calls)
	}
}

func TestLog_UnbornHead(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.Log(10); !errors.Is(err, ErrUnbornHead) {
		t.Fatalf("Log error = %v, want ErrUnbornHead", err)
	}
}

func TestLog_FromHead(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitFiles(t, r, map[string]string{"f": "1"}, "one")
	c2 := commitFiles(t, r, map[string]string{"f": "2"}, "two")

	page, err := r.Log(10)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if diff := cmp.Diff([]object.CommitID{c2, c1}, entryIDs(page.Entries)); diff != "" {
		t.Fatalf("log mismatch (-want +got):\n%s", diff)
	}
}
