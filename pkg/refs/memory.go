package refs

import (
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is a Store held entirely in memory, for tests and embedders
// that persist nothing.
type MemoryStore struct {
	mu   sync.RWMutex
	head HeadState
	refs map[Name]Target
}

// NewMemoryStore returns a store whose HEAD is the unborn branch
// defaultBranch (a full ref name).
func NewMemoryStore(defaultBranch Name) *MemoryStore {
	return &MemoryStore{
		head: Unborn(defaultBranch),
		refs: make(map[Name]Target),
	}
}

func (m *MemoryStore) ReadHead() (HeadState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.head
	if h.IsSymbolic() {
		if _, ok := m.refs[h.Branch]; ok {
			h.Kind = HeadBranch
		} else {
			h.Kind = HeadUnborn
		}
	}
	return h, nil
}

func (m *MemoryStore) WriteHead(state HeadState) error {
	if _, err := FormatHead(state); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head = state
	return nil
}

func (m *MemoryStore) ReadRef(name Name) (Target, error) {
	if err := name.Validate(); err != nil {
		return Target{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.refs[name]
	if !ok {
		return Target{}, fmt.Errorf("read ref %q: %w", name, ErrRefNotFound)
	}
	return t, nil
}

func (m *MemoryStore) WriteRef(name Name, target Target, createIfMissing bool, expectedOld *Target) error {
	if err := ValidateTarget(name, target); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var current *Target
	if t, ok := m.refs[name]; ok {
		current = &t
	}
	if err := CheckUpdate(name, current, createIfMissing, expectedOld); err != nil {
		return err
	}
	m.refs[name] = target
	return nil
}

func (m *MemoryStore) DeleteRef(name Name, expectedOld *Target) error {
	if err := name.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var current *Target
	if t, ok := m.refs[name]; ok {
		current = &t
	}
	if err := CheckUpdate(name, current, false, expectedOld); err != nil {
		return err
	}
	delete(m.refs, name)
	return nil
}

func (m *MemoryStore) ListRefs() ([]Ref, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Ref, 0, len(m.refs))
	for n, t := range m.refs {
		out = append(out, Ref{Name: n, Target: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
