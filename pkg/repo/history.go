package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/strata/pkg/object"
)

// ErrStopWalk can be returned by a Walk callback to end the walk early
// without error.
var ErrStopWalk = errors.New("stop walk")

// HistoryEntry is one commit in a history page.
type HistoryEntry struct {
	ID        object.CommitID
	TreeID    object.TreeID
	ParentIDs []object.CommitID
	Author    string
	Message   string
	Timestamp uint64
}

// HistoryPage is a bounded slice of history. NextCursor is zero when the
// traversal is exhausted; otherwise passing it as the next start resumes.
type HistoryPage struct {
	Entries    []HistoryEntry
	NextCursor object.CommitID
}

// HasMore reports whether another page follows.
func (p *HistoryPage) HasMore() bool { return !p.NextCursor.IsZero() }

// HistoryWalker pages through commit ancestry breadth-first.
type HistoryWalker struct {
	repo *Repo
}

// History returns a walker over r's commits.
func (r *Repo) History() *HistoryWalker {
	return &HistoryWalker{repo: r}
}

// Page returns up to limit commits reachable from start in breadth-first
// order: a FIFO queue seeded with start, parents enqueued after children, and
// a visited set so reconverging merges never repeat a commit. When the page
// fills, NextCursor is the front of the remaining queue.
//
// A cursor resumes exactly for linear histories. Across merges the resumed
// walk starts a fresh traversal from the cursor, so commits reachable only
// through other queued branches are not revisited by later pages.
//
// limit 0 returns an empty page whose cursor is start. A start that does not
// name a stored commit fails with object.ErrNotFound.
func (w *HistoryWalker) Page(start object.CommitID, limit int) (*HistoryPage, error) {
	if _, err := w.repo.readCommit(start); err != nil {
		return nil, fmt.Errorf("history: start %s: %w", start.Short(), err)
	}
	if limit <= 0 {
		return &HistoryPage{NextCursor: start}, nil
	}

	page := &HistoryPage{}
	queue := []object.CommitID{start}
	visited := map[object.CommitID]struct{}{start: {}}

	for len(queue) > 0 {
		if len(page.Entries) == limit {
			page.NextCursor = queue[0]
			return page, nil
		}
		id := queue[0]
		queue = queue[1:]

		c, err := w.repo.readCommit(id)
		if err != nil {
			return nil, fmt.Errorf("history: read commit %s: %w", id.Short(), err)
		}
		page.Entries = append(page.Entries, entryFromCommit(c))

		for _, p := range c.ParentIDs {
			if _, seen := visited[p]; seen {
				continue
			}
			visited[p] = struct{}{}
			queue = append(queue, p)
		}
	}
	return page, nil
}

// Walk visits every commit reachable from start in the same order as Page,
// without a limit. Returning ErrStopWalk from fn ends the walk cleanly.
func (w *HistoryWalker) Walk(start object.CommitID, fn func(HistoryEntry) error) error {
	queue := []object.CommitID{start}
	visited := map[object.CommitID]struct{}{start: {}}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		c, err := w.repo.readCommit(id)
		if err != nil {
			return fmt.Errorf("history: read commit %s: %w", id.Short(), err)
		}
		if err := fn(entryFromCommit(c)); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
		for _, p := range c.ParentIDs {
			if _, seen := visited[p]; !seen {
				visited[p] = struct{}{}
				queue = append(queue, p)
			}
		}
	}
	return nil
}

// Log pages history from HEAD.
func (r *Repo) Log(limit int) (*HistoryPage, error) {
	head, err := r.HeadCommit()
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	return r.History().Page(head, limit)
}

func entryFromCommit(c *object.Commit) HistoryEntry {
	return HistoryEntry{
		ID:        c.ID,
		TreeID:    c.TreeID,
		ParentIDs: append([]object.CommitID(nil), c.ParentIDs...),
		Author:    c.Author,
		Message:   c.Message,
		Timestamp: c.Timestamp,
	}
}
