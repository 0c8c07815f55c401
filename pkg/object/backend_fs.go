package object

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FSBackend stores objects as loose files with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
type FSBackend struct {
	root string
	zstd *compressor // nil when compression is disabled
	sync func(*os.File) error
}

// FSOption configures an FSBackend.
type FSOption func(*fsOptions)

type fsOptions struct {
	compress bool
	level    int
}

// WithCompression enables zstd for objects of at least 128 bytes. Level is
// 1 (fastest) to 4 (best); anything else selects the default.
func WithCompression(level int) FSOption {
	return func(o *fsOptions) {
		o.compress = true
		o.level = level
	}
}

// NewFSBackend creates a backend rooted at root, creating the objects/
// subdirectory.
func NewFSBackend(root string, opts ...FSOption) (*FSBackend, error) {
	var o fsOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(filepath.Join(root, "objects"), 0o755); err != nil {
		return nil, fmt.Errorf("fs backend: mkdir: %w", err)
	}
	b := &FSBackend{root: root, sync: (*os.File).Sync}
	if o.compress {
		c, err := newCompressor(o.level)
		if err != nil {
			return nil, fmt.Errorf("fs backend: %w", err)
		}
		b.zstd = c
	}
	return b, nil
}

// objectPath returns the filesystem path for a given id.
func (b *FSBackend) objectPath(id ObjectID) string {
	h := id.String()
	return filepath.Join(b.root, "objects", h[:2], h[2:])
}

func (b *FSBackend) Exists(id ObjectID) (bool, error) {
	_, err := os.Stat(b.objectPath(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("object stat %s: %w", id, err)
}

// Put writes data atomically: to a temp file in the fan-out directory, synced,
// then renamed into place. A concurrent writer of the same id renames identical
// bytes over the same name, so the race is harmless.
func (b *FSBackend) Put(id ObjectID, data []byte) error {
	if ok, err := b.Exists(id); err != nil {
		return err
	} else if ok {
		return nil
	}

	raw := data
	if b.zstd != nil {
		raw = b.zstd.compress(data)
	}

	dir := filepath.Dir(b.objectPath(id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("object write: %w", err)
	}
	if err := b.sync(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("object write sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("object write close: %w", err)
	}
	if err := os.Rename(tmpName, b.objectPath(id)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("object write rename: %w", err)
	}
	return nil
}

// Get reads an object, transparently inflating zstd frames. Compressed
// objects remain readable after compression is switched off.
func (b *FSBackend) Get(id ObjectID) ([]byte, error) {
	raw, err := os.ReadFile(b.objectPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("object read %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("object read %s: %w", id, err)
	}

	dec := b.zstd
	if dec == nil && hasZstdMagic(raw) {
		c, err := newCompressor(0)
		if err != nil {
			return nil, err
		}
		defer c.close()
		dec = c
	}
	if dec == nil {
		return raw, nil
	}
	data, err := dec.decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("object read %s: inflate: %w: %v", id, ErrCorrupt, err)
	}
	return data, nil
}

// Close releases compression resources.
func (b *FSBackend) Close() error {
	if b.zstd != nil {
		b.zstd.close()
		b.zstd = nil
	}
	return nil
}

func hasZstdMagic(raw []byte) bool {
	return len(raw) >= len(zstdMagic) && string(raw[:len(zstdMagic)]) == string(zstdMagic)
}
