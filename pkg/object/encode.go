package object

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// encodingVersion is written after every type tag. Changing any encoding
// changes every downstream id, so it is bumped rather than edited.
const encodingVersion = 1

const (
	maxAuthorLen  = math.MaxUint16
	maxMessageLen = math.MaxUint32
	maxNameLen    = math.MaxUint16
	hexIDLen      = IDSize * 2
)

var (
	tagBlob   = []byte("blob\x00")
	tagTree   = []byte("tree\x00")
	tagCommit = []byte("commit\x00")
)

// Encode returns the canonical bytes of obj. Stored bytes are exactly this
// encoding and the object id is its SHA-256.
func Encode(obj Object) []byte {
	return obj.encode()
}

// encodeBlob:
//
//	"blob\0" version payload
func encodeBlob(b *Blob) []byte {
	out := make([]byte, 0, len(tagBlob)+1+len(b.Data))
	out = append(out, tagBlob...)
	out = append(out, encodingVersion)
	out = append(out, b.Data...)
	return out
}

// encodeTree sorts a copy of the entries by name and writes:
//
//	"tree\0" version count:u32le (kind:u8 namelen:u16le name hexid)*
func encodeTree(t *Tree) []byte {
	sorted := make([]TreeEntry, len(t.Entries))
	copy(sorted, t.Entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var buf bytes.Buffer
	buf.Write(tagTree)
	buf.WriteByte(encodingVersion)
	writeU32(&buf, uint32(len(sorted)))
	for _, e := range sorted {
		buf.WriteByte(byte(e.Kind))
		writeU16(&buf, uint16(len(e.Name)))
		buf.WriteString(e.Name)
		buf.WriteString(e.ID.String())
	}
	return buf.Bytes()
}

// encodeCommit:
//
//	"commit\0" version hex(tree) parents:u32le hex(parent)* authorlen:u16le
//	author msglen:u32le message timestamp:u64le
func encodeCommit(c *Commit) []byte {
	var buf bytes.Buffer
	buf.Write(tagCommit)
	buf.WriteByte(encodingVersion)
	buf.WriteString(c.TreeID.String())
	writeU32(&buf, uint32(len(c.ParentIDs)))
	for _, p := range c.ParentIDs {
		buf.WriteString(p.String())
	}
	writeU16(&buf, uint16(len(c.Author)))
	buf.WriteString(c.Author)
	writeU32(&buf, uint32(len(c.Message)))
	buf.WriteString(c.Message)
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], c.Timestamp)
	buf.Write(ts[:])
	return buf.Bytes()
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// Decode parses canonical bytes into an object. The caller is responsible
// for comparing HashBytes(data) with the expected id.
func Decode(data []byte) (Object, error) {
	switch {
	case bytes.HasPrefix(data, tagBlob):
		return decodeBlob(data[len(tagBlob):])
	case bytes.HasPrefix(data, tagTree):
		return decodeTree(data[len(tagTree):])
	case bytes.HasPrefix(data, tagCommit):
		c, err := decodeCommit(data[len(tagCommit):])
		if err != nil {
			return nil, err
		}
		c.ID = CommitID(HashBytes(data))
		return c, nil
	default:
		return nil, fmt.Errorf("decode: unknown object tag")
	}
}

// decoder is a bounds-checked cursor over an encoded object body.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf) < n {
		d.err = fmt.Errorf("truncated (need %d bytes, have %d)", n, len(d.buf))
		return nil
	}
	out := d.buf[:n]
	d.buf = d.buf[n:]
	return out
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) id() ObjectID {
	b := d.take(hexIDLen)
	if b == nil {
		return ObjectID{}
	}
	var id ObjectID
	if _, err := hex.Decode(id[:], b); err != nil {
		d.err = fmt.Errorf("bad hex id: %w", err)
		return ObjectID{}
	}
	// Uppercase hex decodes fine but is not canonical.
	if id.String() != string(b) {
		d.err = fmt.Errorf("non-canonical hex id %q", b)
	}
	return id
}

func (d *decoder) version() {
	if v := d.u8(); d.err == nil && v != encodingVersion {
		d.err = fmt.Errorf("unsupported encoding version %d", v)
	}
}

func (d *decoder) finish() error {
	if d.err == nil && len(d.buf) != 0 {
		d.err = fmt.Errorf("%d trailing bytes", len(d.buf))
	}
	return d.err
}

func decodeBlob(body []byte) (*Blob, error) {
	d := &decoder{buf: body}
	d.version()
	if d.err != nil {
		return nil, fmt.Errorf("decode blob: %w", d.err)
	}
	data := make([]byte, len(d.buf))
	copy(data, d.buf)
	return &Blob{Data: data}, nil
}

func decodeTree(body []byte) (*Tree, error) {
	d := &decoder{buf: body}
	d.version()
	count := d.u32()
	if d.err != nil {
		return nil, fmt.Errorf("decode tree: %w", d.err)
	}
	// Each entry needs at least kind + namelen + id.
	if uint64(count)*(1+2+hexIDLen) > uint64(len(d.buf)) {
		return nil, fmt.Errorf("decode tree: entry count %d exceeds body", count)
	}

	t := &Tree{Entries: make([]TreeEntry, 0, count)}
	for i := uint32(0); i < count; i++ {
		kind := Kind(d.u8())
		name := string(d.take(int(d.u16())))
		id := d.id()
		if d.err != nil {
			return nil, fmt.Errorf("decode tree entry %d: %w", i, d.err)
		}
		t.Entries = append(t.Entries, TreeEntry{Name: name, Kind: kind, ID: id})
	}
	if err := d.finish(); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return t, nil
}

func decodeCommit(body []byte) (*Commit, error) {
	d := &decoder{buf: body}
	d.version()
	c := &Commit{TreeID: TreeID(d.id())}
	n := d.u32()
	if d.err == nil && uint64(n)*hexIDLen > uint64(len(d.buf)) {
		return nil, fmt.Errorf("decode commit: parent count %d exceeds body", n)
	}
	for i := uint32(0); i < n && d.err == nil; i++ {
		c.ParentIDs = append(c.ParentIDs, CommitID(d.id()))
	}
	c.Author = string(d.take(int(d.u16())))
	c.Message = string(d.take(int(d.u32())))
	c.Timestamp = d.u64()
	if err := d.finish(); err != nil {
		return nil, fmt.Errorf("decode commit: %w", err)
	}
	return c, nil
}

// validate enforces the shape the materializer produces: unique, sorted,
// non-empty names without slashes, and only blob/tree kinds.
func (t *Tree) validate() error {
	for i, e := range t.Entries {
		if e.Name == "" || e.Name == "." || e.Name == ".." || strings.ContainsAny(e.Name, "/\x00") {
			return fmt.Errorf("invalid entry name %q", e.Name)
		}
		if len(e.Name) > maxNameLen {
			return fmt.Errorf("entry name %q: %w", e.Name[:32], ErrFieldTooLong)
		}
		if e.Kind != KindBlob && e.Kind != KindTree {
			return fmt.Errorf("entry %q: invalid kind %s", e.Name, e.Kind)
		}
		if i > 0 && t.Entries[i-1].Name >= e.Name {
			return fmt.Errorf("entries not strictly sorted at %q", e.Name)
		}
	}
	return nil
}
