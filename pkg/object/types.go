package object

import (
	"encoding/hex"
	"fmt"
	"sort"
)

// IDSize is the width of an object id in bytes (SHA-256).
const IDSize = 32

// ObjectID is a SHA-256 digest identifying an object by its content.
// The zero value means "no object".
type ObjectID [IDSize]byte

// BlobID, TreeID and CommitID name an ObjectID of a specific kind. Crossing
// kinds always needs an explicit conversion.
type (
	BlobID   ObjectID
	TreeID   ObjectID
	CommitID ObjectID
)

// ParseObjectID decodes a 64-character lowercase hex string.
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != IDSize*2 {
		return id, fmt.Errorf("parse object id %q: want %d hex chars, got %d", s, IDSize*2, len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("parse object id %q: %w", s, err)
	}
	return id, nil
}

// ParseCommitID is ParseObjectID for commit ids.
func ParseCommitID(s string) (CommitID, error) {
	id, err := ParseObjectID(s)
	return CommitID(id), err
}

func (id ObjectID) String() string { return hex.EncodeToString(id[:]) }
func (id ObjectID) IsZero() bool   { return id == ObjectID{} }

// Short returns the first 8 hex characters.
func (id ObjectID) Short() string { return id.String()[:8] }

func (id BlobID) String() string     { return ObjectID(id).String() }
func (id BlobID) IsZero() bool       { return ObjectID(id).IsZero() }
func (id TreeID) String() string     { return ObjectID(id).String() }
func (id TreeID) IsZero() bool       { return ObjectID(id).IsZero() }
func (id CommitID) String() string   { return ObjectID(id).String() }
func (id CommitID) IsZero() bool     { return ObjectID(id).IsZero() }
func (id CommitID) Short() string    { return ObjectID(id).Short() }
func (id BlobID) Object() ObjectID   { return ObjectID(id) }
func (id TreeID) Object() ObjectID   { return ObjectID(id) }
func (id CommitID) Object() ObjectID { return ObjectID(id) }

// Kind identifies the variant of a stored object.
type Kind uint8

const (
	KindBlob   Kind = 1
	KindTree   Kind = 2
	KindCommit Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindTree:
		return "tree"
	case KindCommit:
		return "commit"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Object is one of *Blob, *Tree or *Commit. The set is closed: the interface
// has an unexported method so no other package can add variants.
type Object interface {
	Kind() Kind
	ObjectID() ObjectID
	encode() []byte
}

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

func (b *Blob) Kind() Kind         { return KindBlob }
func (b *Blob) ObjectID() ObjectID { return HashBytes(b.encode()) }
func (b *Blob) encode() []byte     { return encodeBlob(b) }

// ID returns the blob's content address.
func (b *Blob) ID() BlobID { return BlobID(b.ObjectID()) }

// TreeEntry is one entry in a tree object. Kind is KindBlob or KindTree.
type TreeEntry struct {
	Name string
	Kind Kind
	ID   ObjectID
}

// IsDir reports whether the entry points at a subtree.
func (e TreeEntry) IsDir() bool { return e.Kind == KindTree }

// Tree holds directory entries. Entries are kept sorted by Name on encode,
// so construction order never affects the id.
type Tree struct {
	Entries []TreeEntry
}

func (t *Tree) Kind() Kind         { return KindTree }
func (t *Tree) ObjectID() ObjectID { return HashBytes(t.encode()) }
func (t *Tree) encode() []byte     { return encodeTree(t) }

// ID returns the tree's content address. It is only meaningful for a tree
// that passes Validate: the encoding cannot represent names longer than its
// 16-bit length prefix, and Store.Write rejects such trees.
func (t *Tree) ID() TreeID { return TreeID(t.ObjectID()) }

// Validate reports whether the tree can be stored: names are non-empty,
// unique, free of '/' and NUL, fit the length prefix, and kinds are blob or
// tree. Entry order does not matter.
func (t *Tree) Validate() error {
	sorted := &Tree{Entries: append([]TreeEntry(nil), t.Entries...)}
	sorted.Sort()
	return sorted.validate()
}

// Sort orders entries by name, byte-wise.
func (t *Tree) Sort() {
	sort.Slice(t.Entries, func(i, j int) bool {
		return t.Entries[i].Name < t.Entries[j].Name
	})
}

// Lookup returns the entry with the given name.
func (t *Tree) Lookup(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// Commit is a snapshot record. ID is computed by NewCommit from the other
// fields; mutating any of them afterwards makes Verify return false.
type Commit struct {
	ID        CommitID
	TreeID    TreeID
	ParentIDs []CommitID
	Author    string
	Message   string
	Timestamp uint64
}

// NewCommit builds a commit and computes its id.
func NewCommit(tree TreeID, parents []CommitID, author, message string, timestamp uint64) (*Commit, error) {
	c := &Commit{
		TreeID:    tree,
		ParentIDs: append([]CommitID(nil), parents...),
		Author:    author,
		Message:   message,
		Timestamp: timestamp,
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.ID = CommitID(HashBytes(encodeCommit(c)))
	return c, nil
}

// ComputeCommitID is the pure id function behind NewCommit.
func ComputeCommitID(tree TreeID, parents []CommitID, author, message string, timestamp uint64) (CommitID, error) {
	c, err := NewCommit(tree, parents, author, message, timestamp)
	if err != nil {
		return CommitID{}, err
	}
	return c.ID, nil
}

// Verify recomputes the id from the commit fields and compares it to ID.
func (c *Commit) Verify() bool {
	if c.validate() != nil {
		return false
	}
	return CommitID(HashBytes(encodeCommit(c))) == c.ID
}

func (c *Commit) Kind() Kind         { return KindCommit }
func (c *Commit) ObjectID() ObjectID { return ObjectID(c.ID) }
func (c *Commit) encode() []byte     { return encodeCommit(c) }

func (c *Commit) validate() error {
	if len(c.Author) > maxAuthorLen {
		return fmt.Errorf("commit author: %w (%d bytes, max %d)", ErrFieldTooLong, len(c.Author), maxAuthorLen)
	}
	if uint64(len(c.Message)) > maxMessageLen {
		return fmt.Errorf("commit message: %w (%d bytes)", ErrFieldTooLong, len(c.Message))
	}
	return nil
}
