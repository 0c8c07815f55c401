package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/strata/pkg/index"
	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

// ErrEmptyCommit is returned when Commit is given an index with no entries.
var ErrEmptyCommit = errors.New("nothing staged")

// CommitOptions carries the metadata of a new commit. Timestamp is stored as
// given, so a commit id is reproducible from its inputs; callers wanting wall
// time pass it explicitly. An empty Author falls back to the configured user
// name.
// ExtraParents follow the HEAD parent in the parent list.
type CommitOptions struct {
	Author       string
	Message      string
	Timestamp    uint64
	ExtraParents []object.CommitID
}

// CommitResult reports what Commit wrote. UpdatedRef is empty when HEAD was
// detached and moved directly.
type CommitResult struct {
	CommitID   object.CommitID
	UpdatedRef refs.Name
	Attempts   int
}

// Commit snapshots ix as a new commit on top of HEAD.
//
//  1. Check the index version and reject an empty index
//  2. Materialize trees
//  3. Resolve parents from HEAD plus ExtraParents
//  4. Write the commit
//  5. Advance the branch with a compare-and-swap, or move a detached HEAD
//
// When another writer moves the branch between steps 3 and 5, the commit is
// rebuilt on the new tip and retried, up to Config.Commit.RefRetries times.
// The ref is only ever moved by the final step, so a failure leaves refs
// unchanged.
func (r *Repo) Commit(ix *index.Index, opts CommitOptions) (*CommitResult, error) {
	if err := ix.CheckVersion(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	if ix.IsEmpty() {
		return nil, fmt.Errorf("commit: %w", ErrEmptyCommit)
	}

	treeID, err := WriteTrees(r.Store, BuildSnapshot(ix))
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return r.commitTree(treeID, opts)
}

func (r *Repo) commitTree(treeID object.TreeID, opts CommitOptions) (*CommitResult, error) {
	author := opts.Author
	if author == "" {
		author = r.Config.User.Name
	}

	maxAttempts := 1 + r.Config.Commit.RefRetries
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := r.commitOnce(treeID, author, opts.Message, opts.Timestamp, opts.ExtraParents)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}
		if !errors.Is(err, refs.ErrRefConflict) {
			return nil, err
		}
		lastErr = err
		r.logf("commit: ref moved concurrently (attempt %d/%d): %v", attempt, maxAttempts, err)
	}
	return nil, fmt.Errorf("commit: gave up after %d attempts: %w", maxAttempts, lastErr)
}

func (r *Repo) commitOnce(treeID object.TreeID, author, message string, ts uint64, extra []object.CommitID) (*CommitResult, error) {
	head, err := r.Refs.ReadHead()
	if err != nil {
		return nil, fmt.Errorf("commit: read HEAD: %w", err)
	}

	var parents []object.CommitID
	var expected refs.Target // zero: branch must not exist yet
	switch head.Kind {
	case refs.HeadBranch:
		t, err := r.Refs.ReadRef(head.Branch)
		switch {
		case err == nil:
			expected = t
			parents = append(parents, t.Commit)
		case errors.Is(err, refs.ErrRefNotFound):
			// Deleted since ReadHead; treat as unborn.
		default:
			return nil, fmt.Errorf("commit: read %s: %w", head.Branch, err)
		}
	case refs.HeadDetached:
		parents = append(parents, head.Commit)
	}
	parents = dedupParents(append(parents, extra...))

	c, err := object.NewCommit(treeID, parents, author, message, ts)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	id, err := r.Store.WriteCommit(c)
	if err != nil {
		return nil, fmt.Errorf("commit: write commit: %w", err)
	}

	if head.Kind == refs.HeadDetached {
		if err := r.Refs.WriteHead(refs.Detached(id)); err != nil {
			return nil, fmt.Errorf("commit: update detached HEAD: %w", err)
		}
		r.logf("commit %s on detached HEAD", id.Short())
		return &CommitResult{CommitID: id}, nil
	}

	if err := r.advanceRef(head.Branch, id, expected); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	// HEAD already names the branch: unborn and born symbolic HEADs are
	// stored identically, so no HEAD write is needed.
	r.logf("commit %s on %s", id.Short(), head.Branch.Branch())
	return &CommitResult{CommitID: id, UpdatedRef: head.Branch}, nil
}

// advanceRef moves name from expected (zero for "absent") to id. A ref that
// moved but whose reflog could not be appended counts as moved.
func (r *Repo) advanceRef(name refs.Name, id object.CommitID, expected refs.Target) error {
	err := r.Refs.WriteRef(name, refs.CommitTarget(id), true, &expected)
	if errors.Is(err, refs.ErrRefUpdatedButReflogAppendFailed) {
		r.logf("warning: %v", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	return nil
}

func dedupParents(in []object.CommitID) []object.CommitID {
	if len(in) < 2 {
		return in
	}
	seen := make(map[object.CommitID]struct{}, len(in))
	out := in[:0]
	for _, p := range in {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
