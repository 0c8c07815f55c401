// Package diff compares two snapshots at path granularity. Only blob leaves
// are reported; directories appear implicitly through the paths beneath them.
package diff

import (
	"fmt"
	"path"
	"sort"

	"github.com/odvcencio/strata/pkg/object"
)

// ChangeType classifies what happened to a path between two snapshots.
type ChangeType int

const (
	Added    ChangeType = iota + 1 // Path exists only in the after snapshot.
	Removed                        // Path exists only in the before snapshot.
	Modified                       // Path exists in both with different blobs.
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(c))
	}
}

// PathChange records a single path-level change. Before is zero for Added,
// After is zero for Removed.
type PathChange struct {
	Path   string
	Type   ChangeType
	Before object.BlobID
	After  object.BlobID
}

// Diff is the sorted list of changed paths between two snapshots.
type Diff struct {
	Entries []PathChange
}

// IsEmpty reports whether the snapshots are identical.
func (d *Diff) IsEmpty() bool { return len(d.Entries) == 0 }

// Lookup returns the change recorded for p.
func (d *Diff) Lookup(p string) (PathChange, bool) {
	i := sort.Search(len(d.Entries), func(i int) bool { return d.Entries[i].Path >= p })
	if i < len(d.Entries) && d.Entries[i].Path == p {
		return d.Entries[i], true
	}
	return PathChange{}, false
}

// Compute diffs the trees of two commits.
func Compute(store *object.Store, a, b object.CommitID) (*Diff, error) {
	ca, err := store.ReadCommit(a)
	if err != nil {
		return nil, fmt.Errorf("diff: read commit %s: %w", a.Short(), err)
	}
	cb, err := store.ReadCommit(b)
	if err != nil {
		return nil, fmt.Errorf("diff: read commit %s: %w", b.Short(), err)
	}
	return Trees(store, ca.TreeID, cb.TreeID)
}

// pending is one pair of directories still to compare. A zero id stands for
// a directory absent on that side.
type pending struct {
	prefix string
	before object.TreeID
	after  object.TreeID
}

// Trees diffs two trees. Identical subtree ids are skipped without reading
// them. A name that is a file on one side and a directory on the other is
// reported as a removal of one and additions of the other.
func Trees(store *object.Store, a, b object.TreeID) (*Diff, error) {
	d := &Diff{}
	stack := []pending{{before: a, after: b}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.before == p.after {
			continue
		}

		before, err := readOptionalTree(store, p.before)
		if err != nil {
			return nil, err
		}
		after, err := readOptionalTree(store, p.after)
		if err != nil {
			return nil, err
		}

		i, j := 0, 0
		for i < len(before) || j < len(after) {
			var be, ae *object.TreeEntry
			switch {
			case j >= len(after) || (i < len(before) && before[i].Name < after[j].Name):
				be = &before[i]
				i++
			case i >= len(before) || after[j].Name < before[i].Name:
				ae = &after[j]
				j++
			default:
				be, ae = &before[i], &after[j]
				i++
				j++
			}
			stack = compareEntry(d, stack, p.prefix, be, ae)
		}
	}

	sort.Slice(d.Entries, func(i, j int) bool { return d.Entries[i].Path < d.Entries[j].Path })
	return d, nil
}

func compareEntry(d *Diff, stack []pending, prefix string, be, ae *object.TreeEntry) []pending {
	entry := be
	if entry == nil {
		entry = ae
	}
	full := entry.Name
	if prefix != "" {
		full = path.Join(prefix, entry.Name)
	}

	var beforeBlob, afterBlob object.BlobID
	var beforeDir, afterDir object.TreeID
	if be != nil {
		if be.IsDir() {
			beforeDir = object.TreeID(be.ID)
		} else {
			beforeBlob = object.BlobID(be.ID)
		}
	}
	if ae != nil {
		if ae.IsDir() {
			afterDir = object.TreeID(ae.ID)
		} else {
			afterBlob = object.BlobID(ae.ID)
		}
	}

	switch {
	case !beforeBlob.IsZero() && !afterBlob.IsZero():
		if beforeBlob != afterBlob {
			d.Entries = append(d.Entries, PathChange{Path: full, Type: Modified, Before: beforeBlob, After: afterBlob})
		}
	case !beforeBlob.IsZero():
		d.Entries = append(d.Entries, PathChange{Path: full, Type: Removed, Before: beforeBlob})
	case !afterBlob.IsZero():
		d.Entries = append(d.Entries, PathChange{Path: full, Type: Added, After: afterBlob})
	}

	if !beforeDir.IsZero() || !afterDir.IsZero() {
		stack = append(stack, pending{prefix: full, before: beforeDir, after: afterDir})
	}
	return stack
}

func readOptionalTree(store *object.Store, id object.TreeID) ([]object.TreeEntry, error) {
	if id.IsZero() {
		return nil, nil
	}
	t, err := store.ReadTree(id)
	if err != nil {
		return nil, fmt.Errorf("diff: read tree %s: %w", id, err)
	}
	return t.Entries, nil
}
