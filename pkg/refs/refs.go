// Package refs stores the mutable pointers of a repository: named refs and
// HEAD. Objects are immutable; refs are the only shared mutable state, and
// every update can carry an expected previous value for compare-and-swap.
package refs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
)

var (
	ErrRefNotFound    = errors.New("ref not found")
	ErrRefConflict    = errors.New("ref compare-and-swap mismatch")
	ErrInvalidRefName = errors.New("invalid ref name")
)

var ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")

// HeadsPrefix is the namespace of branch refs.
const HeadsPrefix = "refs/heads/"

// Name is a full ref name such as "refs/heads/main".
type Name string

// BranchName returns the ref name for a short branch name.
func BranchName(branch string) Name {
	return Name(HeadsPrefix + branch)
}

// Branch returns the short branch name, or the full name for refs outside
// refs/heads/.
func (n Name) Branch() string {
	return strings.TrimPrefix(string(n), HeadsPrefix)
}

func (n Name) String() string { return string(n) }

// Validate checks that n lives under refs/ and contains only safe segments.
func (n Name) Validate() error {
	s := string(n)
	if !strings.HasPrefix(s, "refs/") || len(s) == len("refs/") {
		return fmt.Errorf("%w: %q must be under refs/", ErrInvalidRefName, s)
	}
	if strings.ContainsAny(s, " \t\n\\:?*[~^\x00\x7f") {
		return fmt.Errorf("%w: %q contains a forbidden character", ErrInvalidRefName, s)
	}
	for _, seg := range strings.Split(s, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.HasPrefix(seg, ".") || strings.HasSuffix(seg, ".lock") {
			return fmt.Errorf("%w: %q has a bad segment %q", ErrInvalidRefName, s, seg)
		}
	}
	return nil
}

// Target is what a ref points at. Refs only ever point at commits. The zero
// Target means "no ref" when used as an expected old value.
type Target struct {
	Commit object.CommitID
}

// CommitTarget wraps a commit id.
func CommitTarget(id object.CommitID) Target { return Target{Commit: id} }

func (t Target) IsZero() bool   { return t.Commit.IsZero() }
func (t Target) String() string { return t.Commit.String() }

// Ref is a named target, as returned by ListRefs.
type Ref struct {
	Name   Name
	Target Target
}

// HeadKind distinguishes the three HEAD states.
type HeadKind int

const (
	HeadBranch   HeadKind = iota + 1 // HEAD names a branch that has a target
	HeadDetached                     // HEAD holds a commit id directly
	HeadUnborn                       // HEAD names a branch with no commits yet
)

// HeadState is the current value of HEAD.
type HeadState struct {
	Kind   HeadKind
	Branch Name            // HeadBranch, HeadUnborn
	Commit object.CommitID // HeadDetached
}

func OnBranch(name Name) HeadState          { return HeadState{Kind: HeadBranch, Branch: name} }
func Unborn(name Name) HeadState            { return HeadState{Kind: HeadUnborn, Branch: name} }
func Detached(id object.CommitID) HeadState { return HeadState{Kind: HeadDetached, Commit: id} }

// IsSymbolic reports whether HEAD names a branch (born or unborn).
func (h HeadState) IsSymbolic() bool {
	return h.Kind == HeadBranch || h.Kind == HeadUnborn
}

func (h HeadState) String() string {
	switch h.Kind {
	case HeadBranch:
		return "branch " + string(h.Branch)
	case HeadUnborn:
		return "unborn " + string(h.Branch)
	case HeadDetached:
		return "detached " + h.Commit.String()
	default:
		return "invalid HEAD"
	}
}

// Store persists refs and HEAD.
//
// WriteRef fails with ErrRefConflict when expectedOld is non-nil and differs
// from the stored value; a non-nil pointer to the zero Target requires the
// ref to be absent. Without createIfMissing an absent ref fails with
// ErrRefNotFound. ListRefs returns refs sorted by name, taken as one snapshot.
type Store interface {
	ReadHead() (HeadState, error)
	WriteHead(state HeadState) error
	ReadRef(name Name) (Target, error)
	WriteRef(name Name, target Target, createIfMissing bool, expectedOld *Target) error
	DeleteRef(name Name, expectedOld *Target) error
	ListRefs() ([]Ref, error)
}

// CheckUpdate applies the WriteRef precondition rules to the current value
// (nil when the ref is absent). Backends call it while holding their
// per-ref serialization.
func CheckUpdate(name Name, current *Target, createIfMissing bool, expectedOld *Target) error {
	if expectedOld != nil {
		switch {
		case expectedOld.IsZero() && current != nil:
			return fmt.Errorf("update ref %q: %w (expected absent, found %s)", name, ErrRefConflict, current.Commit)
		case !expectedOld.IsZero() && current == nil:
			return fmt.Errorf("update ref %q: %w (expected %s, found absent)", name, ErrRefConflict, expectedOld.Commit)
		case !expectedOld.IsZero() && *current != *expectedOld:
			return fmt.Errorf("update ref %q: %w (expected %s, found %s)", name, ErrRefConflict, expectedOld.Commit, current.Commit)
		}
	}
	if current == nil && !createIfMissing {
		return fmt.Errorf("update ref %q: %w", name, ErrRefNotFound)
	}
	return nil
}

// FormatHead encodes HEAD the way it is stored on disk: "ref: <name>" for a
// symbolic HEAD, the bare commit hex when detached.
func FormatHead(h HeadState) (string, error) {
	switch h.Kind {
	case HeadBranch, HeadUnborn:
		if err := h.Branch.Validate(); err != nil {
			return "", err
		}
		return "ref: " + string(h.Branch), nil
	case HeadDetached:
		if h.Commit.IsZero() {
			return "", fmt.Errorf("detached HEAD needs a commit id")
		}
		return h.Commit.String(), nil
	default:
		return "", fmt.Errorf("invalid HEAD kind %d", h.Kind)
	}
}

// ParseHead decodes a stored HEAD value. exists reports whether a branch ref
// has a target, which decides between HeadBranch and HeadUnborn.
func ParseHead(raw string, exists func(Name) (bool, error)) (HeadState, error) {
	content := strings.TrimSpace(raw)
	if name, ok := strings.CutPrefix(content, "ref: "); ok {
		n := Name(strings.TrimSpace(name))
		if err := n.Validate(); err != nil {
			return HeadState{}, fmt.Errorf("head: %w", err)
		}
		born, err := exists(n)
		if err != nil {
			return HeadState{}, fmt.Errorf("head: %w", err)
		}
		if born {
			return OnBranch(n), nil
		}
		return Unborn(n), nil
	}
	id, err := object.ParseCommitID(content)
	if err != nil {
		return HeadState{}, fmt.Errorf("head: %w", err)
	}
	return Detached(id), nil
}

// ValidateTarget checks a ref name and refuses empty targets.
func ValidateTarget(name Name, target Target) error {
	if err := name.Validate(); err != nil {
		return err
	}
	if target.IsZero() {
		return fmt.Errorf("update ref %q: empty target", name)
	}
	return nil
}
