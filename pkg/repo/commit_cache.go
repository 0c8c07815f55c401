package repo

import (
	"sync"

	"github.com/odvcencio/strata/pkg/object"
)

// maxCachedCommits bounds the cache; once full, new commits are read but not
// retained.
const maxCachedCommits = 1 << 16

// commitCache memoizes decoded commits for history walks and merge-base
// search. Commits are immutable, so entries never go stale.
type commitCache struct {
	mu      sync.RWMutex
	commits map[object.CommitID]*object.Commit
}

func newCommitCache() *commitCache {
	return &commitCache{commits: make(map[object.CommitID]*object.Commit)}
}

func (c *commitCache) read(store *object.Store, id object.CommitID) (*object.Commit, error) {
	c.mu.RLock()
	cached, ok := c.commits[id]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	commit, err := store.ReadCommit(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, exists := c.commits[id]; exists {
		return existing, nil
	}
	if len(c.commits) < maxCachedCommits {
		c.commits[id] = commit
	}
	return commit, nil
}

func (c *commitCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.commits)
}
