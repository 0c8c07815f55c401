package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/strata/pkg/object"
)

var (
	ErrAncestryDisjoint = errors.New("histories share no common ancestor")
	ErrMergeBaseLimit   = errors.New("merge base search exceeded step limit")
)

const maxMergeBaseSteps = 1_000_000

// mergeBaseStepsLimit lets tests tighten the safety limit without affecting
// production defaults.
var mergeBaseStepsLimit = maxMergeBaseSteps

func mergeBaseLimit() int {
	// Keep the safety default as a hard bound; the test hook may only tighten.
	if mergeBaseStepsLimit <= 0 || mergeBaseStepsLimit > maxMergeBaseSteps {
		return maxMergeBaseSteps
	}
	return mergeBaseStepsLimit
}

// ancestry is one side of the lockstep search: everything seen so far and the
// commits whose parents have not been expanded yet.
type ancestry struct {
	seen     map[object.CommitID]struct{}
	frontier []object.CommitID
}

func newAncestry(start object.CommitID) *ancestry {
	return &ancestry{
		seen:     map[object.CommitID]struct{}{start: {}},
		frontier: []object.CommitID{start},
	}
}

// FindMergeBase returns the nearest common ancestor of a and b. Both ancestry
// sets grow one generation at a time, alternating sides, and the first commit
// found in both is the base. A commit is its own ancestor, so when one side
// contains the other the older commit is returned.
func (r *Repo) FindMergeBase(a, b object.CommitID) (object.CommitID, error) {
	if a == b {
		if _, err := r.readCommit(a); err != nil {
			return object.CommitID{}, fmt.Errorf("find merge base: %w", err)
		}
		return a, nil
	}

	left, right := newAncestry(a), newAncestry(b)
	limit := mergeBaseLimit()
	steps := 0

	for len(left.frontier) > 0 || len(right.frontier) > 0 {
		for _, pair := range [2][2]*ancestry{{left, right}, {right, left}} {
			side, other := pair[0], pair[1]
			base, found, err := r.expand(side, other, &steps, limit)
			if err != nil {
				return object.CommitID{}, err
			}
			if found {
				return base, nil
			}
		}
	}
	return object.CommitID{}, fmt.Errorf("find merge base %s %s: %w", a.Short(), b.Short(), ErrAncestryDisjoint)
}

// expand replaces side's frontier with the parents of its commits. It reports
// the first newly seen commit that other has already seen.
func (r *Repo) expand(side, other *ancestry, steps *int, limit int) (object.CommitID, bool, error) {
	var next []object.CommitID
	for _, id := range side.frontier {
		if _, ok := other.seen[id]; ok {
			return id, true, nil
		}
		*steps++
		if *steps > limit {
			return object.CommitID{}, false, fmt.Errorf("find merge base: %w (%d)", ErrMergeBaseLimit, limit)
		}
		c, err := r.readCommit(id)
		if err != nil {
			return object.CommitID{}, false, fmt.Errorf("find merge base: read commit %s: %w", id.Short(), err)
		}
		for _, p := range c.ParentIDs {
			if _, ok := side.seen[p]; ok {
				continue
			}
			side.seen[p] = struct{}{}
			if _, ok := other.seen[p]; ok {
				return p, true, nil
			}
			next = append(next, p)
		}
	}
	side.frontier = next
	return object.CommitID{}, false, nil
}

// IsAncestor reports whether ancestor is reachable from descendant through
// parent links (a commit is its own ancestor).
func (r *Repo) IsAncestor(ancestor, descendant object.CommitID) (bool, error) {
	found := false
	err := r.History().Walk(descendant, func(e HistoryEntry) error {
		if e.ID == ancestor {
			found = true
			return ErrStopWalk
		}
		return nil
	})
	return found, err
}
