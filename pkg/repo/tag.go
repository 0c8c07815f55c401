package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

// TagsPrefix is the namespace of tag refs.
const TagsPrefix = "refs/tags/"

func tagRef(name string) refs.Name { return refs.Name(TagsPrefix + strings.TrimSpace(name)) }

// CreateTag creates or, with force, moves refs/tags/<name> to target.
func (r *Repo) CreateTag(name string, target object.CommitID, force bool) error {
	ref := tagRef(name)
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	if _, err := r.readCommit(target); err != nil {
		return fmt.Errorf("create tag %q: %w", name, err)
	}
	var expected *refs.Target
	if !force {
		expected = &refs.Target{}
	}
	err := r.Refs.WriteRef(ref, refs.CommitTarget(target), true, expected)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, refs.ErrRefUpdatedButReflogAppendFailed):
		r.logf("warning: %v", err)
		return nil
	case errors.Is(err, refs.ErrRefConflict):
		return fmt.Errorf("create tag: tag %q already exists: %w", name, err)
	default:
		return fmt.Errorf("create tag %q: %w", name, err)
	}
}

// DeleteTag removes refs/tags/<name>.
func (r *Repo) DeleteTag(name string) error {
	err := r.Refs.DeleteRef(tagRef(name), nil)
	if err != nil && !errors.Is(err, refs.ErrRefUpdatedButReflogAppendFailed) {
		return fmt.Errorf("delete tag %q: %w", name, err)
	}
	return nil
}

// ListTags returns the short names of all tags, sorted.
func (r *Repo) ListTags() ([]string, error) {
	return r.listShortNames(TagsPrefix)
}
