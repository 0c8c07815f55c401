package object

import (
	"errors"
	"fmt"
	"io"
)

// Store is a content-addressed object store over a pluggable Backend. It
// holds no locks of its own: identical content always maps to the same id,
// so concurrent writers converge without coordination.
type Store struct {
	backend Backend
}

// NewStore creates a Store over the given backend.
func NewStore(b Backend) *Store {
	return &Store{backend: b}
}

// NewMemoryStore is shorthand for a Store over a fresh MemoryBackend.
func NewMemoryStore() *Store {
	return NewStore(NewMemoryBackend())
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Exists reports whether an object is stored under id.
func (s *Store) Exists(id ObjectID) (bool, error) {
	return s.backend.Exists(id)
}

// Write stores obj and returns its id. Writing the same content twice returns
// the same id and leaves the backend untouched the second time.
func (s *Store) Write(obj Object) (ObjectID, error) {
	switch o := obj.(type) {
	case *Blob:
	case *Tree:
		if err := o.Validate(); err != nil {
			return ObjectID{}, fmt.Errorf("object write tree: %w", err)
		}
	case *Commit:
		if !o.Verify() {
			return ObjectID{}, fmt.Errorf("object write commit %s: %w: id does not match fields", o.ID, ErrCorrupt)
		}
	default:
		return ObjectID{}, fmt.Errorf("object write: unsupported object %T", obj)
	}

	data := obj.encode()
	id := HashBytes(data)

	ok, err := s.backend.Exists(id)
	if err != nil {
		return ObjectID{}, fmt.Errorf("object write %s: %w", id, err)
	}
	if ok {
		return id, nil
	}
	if err := s.backend.Put(id, data); err != nil {
		return ObjectID{}, fmt.Errorf("object write %s: %w", id, err)
	}
	return id, nil
}

// Read loads and verifies an object. It fails with ErrNotFound when id is
// absent and ErrCorrupt when the stored bytes do not hash to id or do not
// decode.
func (s *Store) Read(id ObjectID) (Object, error) {
	data, err := s.backend.Get(id)
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w", id, err)
	}
	if actual := HashBytes(data); actual != id {
		return nil, fmt.Errorf("object read %s: %w: content hashes to %s", id, ErrCorrupt, actual)
	}
	obj, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w: %v", id, ErrCorrupt, err)
	}
	return obj, nil
}

// ReadKind returns the stored kind of id without keeping the object.
func (s *Store) ReadKind(id ObjectID) (Kind, error) {
	obj, err := s.Read(id)
	if err != nil {
		return 0, err
	}
	return obj.Kind(), nil
}

// Close closes the backend if it holds resources.
func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob stores a payload as a blob.
func (s *Store) WriteBlob(data []byte) (BlobID, error) {
	id, err := s.Write(&Blob{Data: data})
	return BlobID(id), err
}

// ReadBlob reads a blob.
func (s *Store) ReadBlob(id BlobID) (*Blob, error) {
	obj, err := s.Read(ObjectID(id))
	if err != nil {
		return nil, err
	}
	b, ok := obj.(*Blob)
	if !ok {
		return nil, fmt.Errorf("object %s: %w: got %s, want blob", id, ErrKindMismatch, obj.Kind())
	}
	return b, nil
}

// WriteTree stores a tree.
func (s *Store) WriteTree(t *Tree) (TreeID, error) {
	id, err := s.Write(t)
	return TreeID(id), err
}

// ReadTree reads a tree.
func (s *Store) ReadTree(id TreeID) (*Tree, error) {
	obj, err := s.Read(ObjectID(id))
	if err != nil {
		return nil, err
	}
	t, ok := obj.(*Tree)
	if !ok {
		return nil, fmt.Errorf("object %s: %w: got %s, want tree", id, ErrKindMismatch, obj.Kind())
	}
	return t, nil
}

// WriteCommit stores a commit built by NewCommit.
func (s *Store) WriteCommit(c *Commit) (CommitID, error) {
	id, err := s.Write(c)
	return CommitID(id), err
}

// ReadCommit reads a commit.
func (s *Store) ReadCommit(id CommitID) (*Commit, error) {
	obj, err := s.Read(ObjectID(id))
	if err != nil {
		return nil, err
	}
	c, ok := obj.(*Commit)
	if !ok {
		return nil, fmt.Errorf("object %s: %w: got %s, want commit", id, ErrKindMismatch, obj.Kind())
	}
	return c, nil
}
