package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/strata/pkg/diff"
	"github.com/odvcencio/strata/pkg/index"
	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

// MergeStatus is the outcome of a merge.
type MergeStatus int

const (
	MergeClean    MergeStatus = iota + 1 // merge commit written and ref advanced
	MergeConflict                        // nothing written; see ConflictingPaths
)

func (s MergeStatus) String() string {
	switch s {
	case MergeClean:
		return "clean"
	case MergeConflict:
		return "conflict"
	default:
		return fmt.Sprintf("MergeStatus(%d)", int(s))
	}
}

// MergeOptions carries the merge commit metadata, with the same defaults as
// CommitOptions.
type MergeOptions struct {
	Author    string
	Message   string
	Timestamp uint64
}

// MergeResult describes a merge. Conflicts are a normal outcome, not an
// error.
type MergeResult struct {
	Status           MergeStatus
	Base             object.CommitID
	CommitID         object.CommitID // MergeClean only
	UpdatedRef       refs.Name       // empty when a detached HEAD moved, or HEAD was unborn with nothing at ours
	ConflictingPaths []string        // MergeConflict only, sorted
}

// Merge performs a path-level three-way merge of theirs into ours.
//
//  1. Find the merge base
//  2. Diff base against each side
//  3. Resolve per path: one-sided changes win, identical changes converge,
//     differing changes conflict
//  4. On conflict, return without writing anything
//  5. Otherwise write the merged tree and a commit with parents [ours, theirs],
//     then advance the ref that pointed at ours when the merge started
//
// The tip is chosen before any work is done. If HEAD names a commit other
// than ours and no branch points at ours, the caller's view is stale and
// Merge fails with refs.ErrRefConflict without writing anything. A tip that
// moves while the merge runs fails the final compare-and-swap the same way.
// Neither case is retried: ours is fixed by the caller.
func (r *Repo) Merge(ours, theirs object.CommitID, opts MergeOptions) (*MergeResult, error) {
	tip, err := r.mergeTip(ours)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	base, err := r.FindMergeBase(ours, theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	baseCommit, err := r.readCommit(base)
	if err != nil {
		return nil, fmt.Errorf("merge: read base: %w", err)
	}

	oursDiff, err := diff.Compute(r.Store, base, ours)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	theirsDiff, err := diff.Compute(r.Store, base, theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	resolved, conflicts := resolveChanges(oursDiff, theirsDiff)
	if len(conflicts) > 0 {
		r.logf("merge %s into %s: %d conflicting paths", theirs.Short(), ours.Short(), len(conflicts))
		return &MergeResult{Status: MergeConflict, Base: base, ConflictingPaths: conflicts}, nil
	}

	ix, err := IndexFromTree(r.Store, baseCommit.TreeID)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	for _, c := range resolved {
		p, err := index.ParsePath(c.Path)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		if c.Type == diff.Removed {
			ix.Remove(p)
			continue
		}
		ix.Add(p, c.After)
	}
	// Each side may be consistent alone yet clash once combined, e.g. one
	// side replaces a file with a directory while the other edits beside it.
	if clashes := fileDirClashes(ix); len(clashes) > 0 {
		r.logf("merge %s into %s: %d file/directory clashes", theirs.Short(), ours.Short(), len(clashes))
		return &MergeResult{Status: MergeConflict, Base: base, ConflictingPaths: clashes}, nil
	}
	treeID, err := WriteTrees(r.Store, BuildSnapshot(ix))
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	author := opts.Author
	if author == "" {
		author = r.Config.User.Name
	}
	msg := opts.Message
	if msg == "" {
		msg = fmt.Sprintf("Merge %s into %s", theirs.Short(), ours.Short())
	}
	c, err := object.NewCommit(treeID, []object.CommitID{ours, theirs}, author, msg, opts.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	id, err := r.Store.WriteCommit(c)
	if err != nil {
		return nil, fmt.Errorf("merge: write commit: %w", err)
	}

	updated, err := r.advanceTip(tip, ours, id)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	r.logf("merge %s into %s: clean, commit %s", theirs.Short(), ours.Short(), id.Short())
	return &MergeResult{Status: MergeClean, Base: base, CommitID: id, UpdatedRef: updated}, nil
}

// resolveChanges combines two diffs against the same base. The result holds
// one change per touched path; conflicts are the sorted paths both sides
// changed differently.
func resolveChanges(ours, theirs *diff.Diff) ([]diff.PathChange, []string) {
	byPath := make(map[string]diff.PathChange, len(ours.Entries))
	for _, c := range ours.Entries {
		byPath[c.Path] = c
	}

	var conflicts []string
	for _, t := range theirs.Entries {
		o, both := byPath[t.Path]
		if !both {
			byPath[t.Path] = t
			continue
		}
		// Same resulting blob (both zero when both removed) converges.
		if o.After != t.After {
			conflicts = append(conflicts, t.Path)
		}
	}
	sort.Strings(conflicts)

	out := make([]diff.PathChange, 0, len(byPath))
	for _, c := range byPath {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, conflicts
}

// tipKind says which ref a merge advances.
type tipKind int

const (
	tipNone     tipKind = iota // only when HEAD is unborn and no branch is at ours
	tipBranch                  // a branch pointing at ours
	tipDetached                // a detached HEAD equal to ours
)

type mergeTarget struct {
	kind   tipKind
	branch refs.Name
}

// mergeTip picks the ref that heads ours: the HEAD branch if it points at
// ours, else the first branch (by name) pointing at ours, else a detached
// HEAD equal to ours.
func (r *Repo) mergeTip(ours object.CommitID) (mergeTarget, error) {
	head, err := r.Refs.ReadHead()
	if err != nil {
		return mergeTarget{}, fmt.Errorf("read HEAD: %w", err)
	}
	expected := refs.CommitTarget(ours)

	if head.Kind == refs.HeadBranch {
		t, err := r.Refs.ReadRef(head.Branch)
		if err != nil && !errors.Is(err, refs.ErrRefNotFound) {
			return mergeTarget{}, fmt.Errorf("read %s: %w", head.Branch, err)
		}
		if err == nil && t == expected {
			return mergeTarget{kind: tipBranch, branch: head.Branch}, nil
		}
	}

	list, err := r.Refs.ListRefs()
	if err != nil {
		return mergeTarget{}, fmt.Errorf("list refs: %w", err)
	}
	for _, ref := range list {
		if ref.Target == expected && strings.HasPrefix(string(ref.Name), refs.HeadsPrefix) {
			return mergeTarget{kind: tipBranch, branch: ref.Name}, nil
		}
	}

	switch head.Kind {
	case refs.HeadDetached:
		if head.Commit == ours {
			return mergeTarget{kind: tipDetached}, nil
		}
		return mergeTarget{}, fmt.Errorf("detached HEAD is at %s, not %s: %w", head.Commit.Short(), ours.Short(), refs.ErrRefConflict)
	case refs.HeadBranch:
		return mergeTarget{}, fmt.Errorf("%s no longer points at %s: %w", head.Branch, ours.Short(), refs.ErrRefConflict)
	}
	return mergeTarget{kind: tipNone}, nil
}

// advanceTip moves the chosen tip from ours to id. It returns the moved
// branch, or "" when a detached HEAD moved or there was no tip.
func (r *Repo) advanceTip(tip mergeTarget, ours, id object.CommitID) (refs.Name, error) {
	switch tip.kind {
	case tipBranch:
		return tip.branch, r.advanceRef(tip.branch, id, refs.CommitTarget(ours))
	case tipDetached:
		// HEAD has no compare-and-swap; re-check right before the write.
		head, err := r.Refs.ReadHead()
		if err != nil {
			return "", fmt.Errorf("read HEAD: %w", err)
		}
		if head.Kind != refs.HeadDetached || head.Commit != ours {
			return "", fmt.Errorf("HEAD moved to %s during merge: %w", head, refs.ErrRefConflict)
		}
		if err := r.Refs.WriteHead(refs.Detached(id)); err != nil {
			return "", fmt.Errorf("update detached HEAD: %w", err)
		}
		return "", nil
	}
	r.logf("merge: no ref points at %s; commit %s is unreferenced", ours.Short(), id.Short())
	return "", nil
}
