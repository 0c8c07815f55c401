package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/strata/pkg/refs"
)

// ErrNoReflog is returned when the ref store keeps no reflog.
var ErrNoReflog = errors.New("ref store keeps no reflog")

// ReflogReader is implemented by ref stores that record ref history.
type ReflogReader interface {
	ReadReflog(name refs.Name, limit int) ([]refs.ReflogEntry, error)
}

// Reflog returns up to limit entries for name, newest first. limit <= 0
// returns everything.
func (r *Repo) Reflog(name refs.Name, limit int) ([]refs.ReflogEntry, error) {
	rr, ok := r.Refs.(ReflogReader)
	if !ok {
		return nil, ErrNoReflog
	}
	entries, err := rr.ReadReflog(name, limit)
	if err != nil {
		return nil, fmt.Errorf("reflog %s: %w", name, err)
	}
	return entries, nil
}
