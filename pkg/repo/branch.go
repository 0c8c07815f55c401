package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

// CreateBranch creates refs/heads/<name> pointing at target. Returns an error
// if the branch already exists.
func (r *Repo) CreateBranch(name string, target object.CommitID) error {
	ref := refs.BranchName(name)
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	if _, err := r.readCommit(target); err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	absent := refs.Target{}
	if err := r.Refs.WriteRef(ref, refs.CommitTarget(target), true, &absent); err != nil {
		if errors.Is(err, refs.ErrRefConflict) {
			return fmt.Errorf("create branch: branch %q already exists: %w", name, err)
		}
		if errors.Is(err, refs.ErrRefUpdatedButReflogAppendFailed) {
			r.logf("warning: %v", err)
			return nil
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes refs/heads/<name>. The branch HEAD names cannot be
// deleted.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}
	err = r.Refs.DeleteRef(refs.BranchName(name), nil)
	if errors.Is(err, refs.ErrRefUpdatedButReflogAppendFailed) {
		r.logf("warning: %v", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}

// ListBranches returns the short names of all branches, sorted.
func (r *Repo) ListBranches() ([]string, error) {
	return r.listShortNames(refs.HeadsPrefix)
}

func (r *Repo) listShortNames(prefix string) ([]string, error) {
	all, err := r.Refs.ListRefs()
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	var names []string
	for _, ref := range all {
		if s, ok := strings.CutPrefix(string(ref.Name), prefix); ok {
			names = append(names, s)
		}
	}
	return names, nil
}

// CurrentBranch returns the short name of the branch HEAD names, born or
// unborn. It returns "" when HEAD is detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Refs.ReadHead()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	if head.Kind == refs.HeadDetached {
		return "", nil
	}
	return head.Branch.Branch(), nil
}

// SwitchBranch points HEAD at an existing branch.
func (r *Repo) SwitchBranch(name string) error {
	ref := refs.BranchName(name)
	if _, err := r.Refs.ReadRef(ref); err != nil {
		return fmt.Errorf("switch: %w", err)
	}
	if err := r.Refs.WriteHead(refs.OnBranch(ref)); err != nil {
		return fmt.Errorf("switch: %w", err)
	}
	r.logf("switched to %s", name)
	return nil
}

// Detach points HEAD directly at a commit.
func (r *Repo) Detach(id object.CommitID) error {
	if _, err := r.readCommit(id); err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	if err := r.Refs.WriteHead(refs.Detached(id)); err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	r.logf("HEAD detached at %s", id.Short())
	return nil
}
