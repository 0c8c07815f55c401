package object

import (
	"fmt"
	"sync"
)

// Backend is the raw key-value layer under a Store. Implementations only move
// bytes; hashing and verification happen in Store. Get must return an error
// wrapping ErrNotFound for absent ids.
type Backend interface {
	Put(id ObjectID, data []byte) error
	Get(id ObjectID) ([]byte, error)
	Exists(id ObjectID) (bool, error)
}

// MemoryBackend keeps objects in a map. It is meant for tests and for
// short-lived scratch repositories.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[ObjectID][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[ObjectID][]byte)}
}

func (m *MemoryBackend) Put(id ObjectID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[id]; ok {
		return nil
	}
	m.objects[id] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBackend) Get(id ObjectID) ([]byte, error) {
	m.mu.RLock()
	data, ok := m.objects[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBackend) Exists(id ObjectID) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[id]
	m.mu.RUnlock()
	return ok, nil
}

// Len returns the number of stored objects.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Overwrite replaces stored bytes without any checks. It exists so tests can
// simulate on-disk corruption.
func (m *MemoryBackend) Overwrite(id ObjectID, data []byte) {
	m.mu.Lock()
	m.objects[id] = append([]byte(nil), data...)
	m.mu.Unlock()
}
