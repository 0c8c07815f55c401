package object

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestHashBytesDeterminism(t *testing.T) {
	data := []byte("hello world")
	h1 := HashBytes(data)
	h2 := HashBytes(data)
	if h1 != h2 {
		t.Errorf("HashBytes not deterministic: %s != %s", h1, h2)
	}
	if len(h1.String()) != 64 {
		t.Errorf("hex length: got %d, want 64", len(h1.String()))
	}
}

func TestParseObjectIDRoundTrip(t *testing.T) {
	id := HashBytes([]byte("abc"))
	got, err := ParseObjectID(id.String())
	if err != nil {
		t.Fatalf("ParseObjectID: %v", err)
	}
	if got != id {
		t.Fatalf("ParseObjectID = %s, want %s", got, id)
	}

	for _, bad := range []string{"", "abc", id.String()[:63] + "g"} {
		if _, err := ParseObjectID(bad); err == nil {
			t.Errorf("ParseObjectID(%q) succeeded, want error", bad)
		}
	}
}

func TestBlobAndTreeDomainsDiffer(t *testing.T) {
	// A blob whose payload is a tree encoding must not share the tree's id.
	tree := &Tree{}
	blob := &Blob{Data: Encode(tree)}
	if blob.ObjectID() == tree.ObjectID() {
		t.Fatal("blob and tree ids collide")
	}
}

func TestStoreWriteBlobIdempotent(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewStore(backend)

	id1, err := s.WriteBlob([]byte("same bytes"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	id2, err := s.WriteBlob([]byte("same bytes"))
	if err != nil {
		t.Fatalf("WriteBlob (second): %v", err)
	}
	if id1 != id2 {
		t.Fatalf("ids differ: %s vs %s", id1, id2)
	}
	if backend.Len() != 1 {
		t.Fatalf("backend holds %d objects, want 1", backend.Len())
	}
	if id1 != HashBlob([]byte("same bytes")) {
		t.Fatalf("HashBlob disagrees with WriteBlob")
	}
}

func TestStoreReadBlob(t *testing.T) {
	s := NewMemoryStore()
	id, err := s.WriteBlob([]byte("# Hello"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	b, err := s.ReadBlob(id)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(b.Data) != "# Hello" {
		t.Fatalf("Data = %q", b.Data)
	}
}

func TestStoreReadNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Read(HashBytes([]byte("nope")))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read missing: err = %v, want ErrNotFound", err)
	}
	ok, err := s.Exists(HashBytes([]byte("nope")))
	if err != nil || ok {
		t.Fatalf("Exists missing = %v, %v", ok, err)
	}
}

func TestStoreReadCorrupt(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewStore(backend)
	id, err := s.WriteBlob([]byte("original"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}

	backend.Overwrite(ObjectID(id), Encode(&Blob{Data: []byte("tampered")}))
	if _, err := s.Read(ObjectID(id)); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Read tampered: err = %v, want ErrCorrupt", err)
	}
}

func TestStoreReadUndecodable(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewStore(backend)
	garbage := []byte("not an object")
	id := HashBytes(garbage)
	if err := backend.Put(id, garbage); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Read(id); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Read garbage: err = %v, want ErrCorrupt", err)
	}
}

func TestStoreKindMismatch(t *testing.T) {
	s := NewMemoryStore()
	id, err := s.WriteBlob([]byte("x"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	if _, err := s.ReadTree(TreeID(id)); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("ReadTree(blob): err = %v, want ErrKindMismatch", err)
	}
	if _, err := s.ReadCommit(CommitID(id)); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("ReadCommit(blob): err = %v, want ErrKindMismatch", err)
	}
}

func TestTreeOrderIndependent(t *testing.T) {
	a := HashBytes([]byte("a"))
	b := HashBytes([]byte("b"))
	t1 := &Tree{Entries: []TreeEntry{
		{Name: "b.txt", Kind: KindBlob, ID: b},
		{Name: "a.txt", Kind: KindBlob, ID: a},
	}}
	t2 := &Tree{Entries: []TreeEntry{
		{Name: "a.txt", Kind: KindBlob, ID: a},
		{Name: "b.txt", Kind: KindBlob, ID: b},
	}}
	if t1.ID() != t2.ID() {
		t.Fatalf("tree id depends on entry order")
	}

	s := NewMemoryStore()
	id, err := s.WriteTree(t1)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	got, err := s.ReadTree(id)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(got.Entries) != 2 || got.Entries[0].Name != "a.txt" || got.Entries[1].Name != "b.txt" {
		t.Fatalf("entries not sorted on read: %+v", got.Entries)
	}
}

func TestWriteTreeRejectsInvalidEntries(t *testing.T) {
	s := NewMemoryStore()
	id := HashBytes([]byte("x"))
	cases := map[string]*Tree{
		"slash":     {Entries: []TreeEntry{{Name: "a/b", Kind: KindBlob, ID: id}}},
		"empty":     {Entries: []TreeEntry{{Name: "", Kind: KindBlob, ID: id}}},
		"duplicate": {Entries: []TreeEntry{{Name: "a", Kind: KindBlob, ID: id}, {Name: "a", Kind: KindTree, ID: id}}},
		"bad kind":  {Entries: []TreeEntry{{Name: "a", Kind: KindCommit, ID: id}}},
	}
	for name, tr := range cases {
		if _, err := s.WriteTree(tr); err == nil {
			t.Errorf("%s: WriteTree succeeded, want error", name)
		}
	}
}

func TestTreeOverlongNameIsRejected(t *testing.T) {
	s := NewMemoryStore()
	tr := &Tree{Entries: []TreeEntry{
		{Name: "ok", Kind: KindBlob, ID: HashBytes([]byte("x"))},
		{Name: strings.Repeat("n", maxNameLen+1), Kind: KindBlob, ID: HashBytes([]byte("y"))},
	}}
	if err := tr.Validate(); !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("Validate error = %v, want ErrFieldTooLong", err)
	}
	if _, err := s.WriteTree(tr); !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("WriteTree error = %v, want ErrFieldTooLong", err)
	}
	if ok, err := s.Exists(tr.ObjectID()); err != nil || ok {
		t.Fatalf("Exists = %v, %v; want nothing stored", ok, err)
	}

	// At the limit the name still round-trips.
	tr.Entries[1].Name = strings.Repeat("n", maxNameLen)
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate at limit: %v", err)
	}
	id, err := s.WriteTree(tr)
	if err != nil {
		t.Fatalf("WriteTree at limit: %v", err)
	}
	if id != tr.ID() {
		t.Fatalf("stored id %s, ID() %s", id, tr.ID())
	}
}

func TestEmptyTree(t *testing.T) {
	s := NewMemoryStore()
	id, err := s.WriteTree(&Tree{})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	got, err := s.ReadTree(id)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(got.Entries) != 0 {
		t.Fatalf("empty tree has %d entries", len(got.Entries))
	}
}

func TestStoreConcurrentWritersConverge(t *testing.T) {
	s := NewMemoryStore()
	const workers = 16

	var wg sync.WaitGroup
	ids := make([]BlobID, workers)
	errs := make([]error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.WriteBlob([]byte("shared content"))
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("worker %d id %s, want %s", i, ids[i], ids[0])
		}
	}
}

func TestStoreCommitRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	tree, err := s.WriteTree(&Tree{})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	parent := CommitID(HashBytes([]byte("parent")))
	c, err := NewCommit(tree, []CommitID{parent}, "Alice", "Initial commit", 1_700_000_000)
	if err != nil {
		t.Fatalf("NewCommit: %v", err)
	}
	id, err := s.WriteCommit(c)
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	if id != c.ID {
		t.Fatalf("WriteCommit id %s, want %s", id, c.ID)
	}

	got, err := s.ReadCommit(id)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if !got.Verify() {
		t.Fatal("read commit does not verify")
	}
	if got.TreeID != tree || len(got.ParentIDs) != 1 || got.ParentIDs[0] != parent {
		t.Fatalf("commit fields lost: %+v", got)
	}
	if got.Author != "Alice" || got.Message != "Initial commit" || got.Timestamp != 1_700_000_000 {
		t.Fatalf("commit metadata lost: %+v", got)
	}
}

func TestStoreRejectsTamperedCommit(t *testing.T) {
	s := NewMemoryStore()
	c, err := NewCommit(TreeID{}, nil, "a", "m", 1)
	if err != nil {
		t.Fatalf("NewCommit: %v", err)
	}
	c.Message = "changed"
	if _, err := s.WriteCommit(c); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("WriteCommit tampered: err = %v, want ErrCorrupt", err)
	}
}

func BenchmarkStoreWriteBlob(b *testing.B) {
	s := NewMemoryStore()
	for i := 0; i < b.N; i++ {
		if _, err := s.WriteBlob([]byte(fmt.Sprintf("blob-%d", i))); err != nil {
			b.Fatal(err)
		}
	}
}
