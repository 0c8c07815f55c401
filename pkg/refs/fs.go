package refs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odvcencio/strata/pkg/object"
)

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref Name
	Old Target
	New Target
	Err error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"update ref %q: %s (old=%s new=%s): %v",
		e.Ref,
		ErrRefUpdatedButReflogAppendFailed,
		e.Old,
		e.New,
		e.Err,
	)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// FSStore keeps refs as one file per ref under root/refs, HEAD in root/HEAD
// and reflogs under root/logs. Updates use lockfile + rename so concurrent
// processes serialize per ref.
//
// Within a process, ref writers share mu for reading and ListRefs takes it
// exclusively, so a listing never observes a half-applied set of updates.
type FSStore struct {
	root string
	mu   sync.RWMutex
	now  func() time.Time
}

// NewFSStore opens (and creates if needed) a ref store rooted at root.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(filepath.Join(root, "refs", "heads"), 0o755); err != nil {
		return nil, fmt.Errorf("refs: mkdir: %w", err)
	}
	return &FSStore{root: root, now: time.Now}, nil
}

func (s *FSStore) refPath(name Name) string {
	return filepath.Join(s.root, filepath.FromSlash(string(name)))
}

func (s *FSStore) headPath() string {
	return filepath.Join(s.root, "HEAD")
}

// ReadHead reads HEAD. A missing HEAD file is an error: Init always writes one.
func (s *FSStore) ReadHead() (HeadState, error) {
	data, err := os.ReadFile(s.headPath())
	if err != nil {
		return HeadState{}, fmt.Errorf("read HEAD: %w", err)
	}
	return ParseHead(string(data), func(n Name) (bool, error) {
		t, err := readRefTarget(s.refPath(n))
		if err != nil {
			return false, err
		}
		return t != nil, nil
	})
}

// WriteHead replaces HEAD atomically. Unborn and branch states are stored
// identically; the distinction is recomputed on read.
func (s *FSStore) WriteHead(state HeadState) error {
	content, err := FormatHead(state)
	if err != nil {
		return err
	}
	lockPath := s.headPath() + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("write HEAD: lock: %w", err)
	}
	return commitLockFile(lockFile, lockPath, s.headPath(), content)
}

func (s *FSStore) ReadRef(name Name) (Target, error) {
	if err := name.Validate(); err != nil {
		return Target{}, err
	}
	t, err := readRefTarget(s.refPath(name))
	if err != nil {
		return Target{}, fmt.Errorf("read ref %q: %w", name, err)
	}
	if t == nil {
		return Target{}, fmt.Errorf("read ref %q: %w", name, ErrRefNotFound)
	}
	return *t, nil
}

// WriteRef updates name under its lockfile. Reflog append happens after the
// rename; if it fails the ref update remains committed and a
// RefUpdateReflogError is returned.
func (s *FSStore) WriteRef(name Name, target Target, createIfMissing bool, expectedOld *Target) error {
	if err := ValidateTarget(name, target); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	refPath := s.refPath(name)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}

	current, err := readRefTarget(refPath)
	if err != nil {
		releaseLock(lockFile, lockPath)
		return fmt.Errorf("update ref %q: read old target: %w", name, err)
	}
	if err := CheckUpdate(name, current, createIfMissing, expectedOld); err != nil {
		releaseLock(lockFile, lockPath)
		return err
	}
	if err := commitLockFile(lockFile, lockPath, refPath, target.String()); err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}

	var old Target
	if current != nil {
		old = *current
	}
	if err := s.appendReflog(name, old, target, "update"); err != nil {
		return &RefUpdateReflogError{Ref: name, Old: old, New: target, Err: err}
	}
	return nil
}

func (s *FSStore) DeleteRef(name Name, expectedOld *Target) error {
	if err := name.Validate(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	refPath := s.refPath(name)
	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete ref %q: %w", name, ErrRefNotFound)
		}
		return fmt.Errorf("delete ref %q: lock: %w", name, err)
	}
	defer releaseLock(lockFile, lockPath)

	current, err := readRefTarget(refPath)
	if err != nil {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	if err := CheckUpdate(name, current, false, expectedOld); err != nil {
		return err
	}
	if err := os.Remove(refPath); err != nil {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	if err := s.appendReflog(name, *current, Target{}, "delete"); err != nil {
		return &RefUpdateReflogError{Ref: name, Old: *current, Err: err}
	}
	return nil
}

// ListRefs walks root/refs and returns every ref sorted by name.
func (s *FSStore) ListRefs() ([]Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := filepath.Join(s.root, "refs")
	var out []Ref
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		t, err := readRefTarget(path)
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}
		out = append(out, Ref{Name: Name(filepath.ToSlash(rel)), Target: *t})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func releaseLock(f *os.File, lockPath string) {
	_ = f.Close()
	_ = os.Remove(lockPath)
}

// commitLockFile writes content into the held lock and renames it over dst.
// The lock is released on every path.
func commitLockFile(f *os.File, lockPath, dst, content string) error {
	if _, err := f.WriteString(content + "\n"); err != nil {
		releaseLock(f, lockPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Sync(); err != nil {
		releaseLock(f, lockPath)
		return fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(lockPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(lockPath, dst); err != nil {
		_ = os.Remove(lockPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// readRefTarget returns nil, nil when the ref file does not exist.
func readRefTarget(refPath string) (*Target, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	id, err := object.ParseCommitID(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("malformed ref file %s: %w", refPath, err)
	}
	t := CommitTarget(id)
	return &t, nil
}
