// Package index implements the staging area: a transient mapping from paths
// to blob ids that becomes the snapshot of the next commit.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"

	"github.com/odvcencio/strata/pkg/object"
)

// Version is the newest index format this package understands.
const Version uint32 = 1

// ErrVersionMismatch is returned by CheckVersion for indexes written by a
// newer format.
var ErrVersionMismatch = errors.New("index version mismatch")

// Index is the staging area. It carries no history and is rebuilt by the
// caller for each commit attempt. An Index is not safe for concurrent
// mutation.
type Index struct {
	Version uint32
	entries map[SafePath]object.BlobID
}

// New returns an empty index at the current Version.
func New() *Index {
	return &Index{Version: Version, entries: make(map[SafePath]object.BlobID)}
}

// Add stages blob at path, replacing any existing entry.
func (ix *Index) Add(path SafePath, blob object.BlobID) {
	if ix.entries == nil {
		ix.entries = make(map[SafePath]object.BlobID)
	}
	ix.entries[path] = blob
}

// Remove unstages path. It reports whether an entry existed.
func (ix *Index) Remove(path SafePath) bool {
	if _, ok := ix.entries[path]; !ok {
		return false
	}
	delete(ix.entries, path)
	return true
}

// Get returns the staged blob for path.
func (ix *Index) Get(path SafePath) (object.BlobID, bool) {
	id, ok := ix.entries[path]
	return id, ok
}

// Entries yields staged (path, blob) pairs in sorted path order.
func (ix *Index) Entries() iter.Seq2[SafePath, object.BlobID] {
	return func(yield func(SafePath, object.BlobID) bool) {
		for _, p := range ix.Paths() {
			if !yield(p, ix.entries[p]) {
				return
			}
		}
	}
}

// Paths returns the staged paths in sorted order.
func (ix *Index) Paths() []SafePath {
	paths := make([]SafePath, 0, len(ix.entries))
	for p := range ix.entries {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	return paths
}

func (ix *Index) Len() int      { return len(ix.entries) }
func (ix *Index) IsEmpty() bool { return len(ix.entries) == 0 }

// CheckVersion fails when the index was written by a newer format.
func (ix *Index) CheckVersion() error {
	if ix.Version > Version {
		return fmt.Errorf("%w: index version %d, supported %d", ErrVersionMismatch, ix.Version, Version)
	}
	return nil
}

// diskIndex is the JSON form kept by the CLI between "add" and "commit".
type diskIndex struct {
	Version uint32            `json:"version"`
	Entries map[string]string `json:"entries"`
}

// Load reads an index saved with Save. A missing file yields an empty index.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var di diskIndex
	if err := json.Unmarshal(data, &di); err != nil {
		return nil, fmt.Errorf("read index: unmarshal: %w", err)
	}
	ix := &Index{Version: di.Version, entries: make(map[SafePath]object.BlobID, len(di.Entries))}
	if err := ix.CheckVersion(); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	for p, h := range di.Entries {
		sp, err := ParsePath(p)
		if err != nil {
			return nil, fmt.Errorf("read index: %w", err)
		}
		id, err := object.ParseObjectID(h)
		if err != nil {
			return nil, fmt.Errorf("read index entry %q: %w", p, err)
		}
		ix.entries[sp] = object.BlobID(id)
	}
	return ix, nil
}

// Save atomically writes the index to path via temp file + rename.
func (ix *Index) Save(path string) error {
	di := diskIndex{Version: ix.Version, Entries: make(map[string]string, len(ix.entries))}
	for p, id := range ix.entries {
		di.Entries[string(p)] = id.String()
	}
	data, err := json.MarshalIndent(di, "", "  ")
	if err != nil {
		return fmt.Errorf("write index: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("write index: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write index: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write index: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write index: rename: %w", err)
	}
	return nil
}
