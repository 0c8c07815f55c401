// Package repo ties the object store and ref store together into the
// version-control operations: commit, history, diff, merge and verify.
package repo

import (
	"io"
	"log"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

// Repo is an opened repository. All methods are safe for concurrent use;
// the only shared mutable state lives behind Refs and is updated with
// compare-and-swap.
type Repo struct {
	Dir    string        // .strata directory, empty for in-memory repositories
	Store  *object.Store // content-addressed object store
	Refs   refs.Store    // refs and HEAD
	Config *Config

	logger  *log.Logger
	commits *commitCache
	closers []io.Closer
}

// Option configures a Repo.
type Option func(*Repo)

// WithLogger routes notable events (ref moves, retries, merge outcomes) to l.
func WithLogger(l *log.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithConfig overrides DefaultConfig.
func WithConfig(cfg *Config) Option {
	return func(r *Repo) {
		if cfg != nil {
			r.Config = cfg
		}
	}
}

// New wires a repository from an existing object store and ref store.
func New(store *object.Store, rs refs.Store, opts ...Option) *Repo {
	r := &Repo{
		Store:   store,
		Refs:    rs,
		Config:  DefaultConfig(),
		logger:  log.New(io.Discard, "", 0),
		commits: newCommitCache(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewMemory returns a repository that keeps everything in memory, with HEAD
// on the unborn default branch.
func NewMemory(opts ...Option) *Repo {
	r := New(object.NewMemoryStore(), nil, opts...)
	r.Refs = refs.NewMemoryStore(r.Config.DefaultBranchRef())
	return r
}

// Close releases backend resources. It is safe to call more than once.
func (r *Repo) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

func (r *Repo) logf(format string, args ...any) {
	r.logger.Printf(format, args...)
}

// readCommit reads through the shared commit cache.
func (r *Repo) readCommit(id object.CommitID) (*object.Commit, error) {
	return r.commits.read(r.Store, id)
}
