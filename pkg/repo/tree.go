package repo

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/strata/pkg/index"
	"github.com/odvcencio/strata/pkg/object"
)

// ErrPathConflict is returned when a snapshot uses one path both as a file
// and as a directory prefix.
var ErrPathConflict = errors.New("path is both a file and a directory")

// SnapshotEntry is one file of a snapshot.
type SnapshotEntry struct {
	Path index.SafePath
	Blob object.BlobID
}

// Snapshot is a path-sorted list of files.
type Snapshot []SnapshotEntry

// BuildSnapshot copies the index entries into a sorted snapshot.
func BuildSnapshot(ix *index.Index) Snapshot {
	snap := make(Snapshot, 0, ix.Len())
	for p, id := range ix.Entries() {
		snap = append(snap, SnapshotEntry{Path: p, Blob: id})
	}
	return snap
}

// dirGroup collects the direct children of one directory while trees are
// being materialized.
type dirGroup struct {
	path    string // "" for the root
	entries []object.TreeEntry
}

// WriteTrees materializes snapshot as nested trees in store and returns the
// root tree id. Directories are written deepest first so every child tree id
// is known before its parent is encoded. An empty snapshot yields the empty
// tree.
func WriteTrees(store *object.Store, snapshot Snapshot) (object.TreeID, error) {
	groups := map[string]*dirGroup{"": {path: ""}}
	files := make(map[string]struct{}, len(snapshot))

	for _, e := range snapshot {
		p := e.Path.String()
		files[p] = struct{}{}
		dir := e.Path.Dir()
		// Ensure every intermediate directory has a group.
		for d := dir; ; d = parentDir(d) {
			if _, ok := groups[d]; ok {
				break
			}
			groups[d] = &dirGroup{path: d}
		}
		groups[dir].entries = append(groups[dir].entries, object.TreeEntry{
			Name: e.Path.Base(),
			Kind: object.KindBlob,
			ID:   e.Blob.Object(),
		})
	}

	for d := range groups {
		if _, clash := files[d]; clash && d != "" {
			return object.TreeID{}, fmt.Errorf("write trees: %q: %w", d, ErrPathConflict)
		}
	}

	order := make([]*dirGroup, 0, len(groups))
	for _, g := range groups {
		order = append(order, g)
	}
	sort.Slice(order, func(i, j int) bool {
		di, dj := depth(order[i].path), depth(order[j].path)
		if di != dj {
			return di > dj
		}
		return order[i].path < order[j].path
	})

	var root object.TreeID
	for _, g := range order {
		id, err := store.WriteTree(&object.Tree{Entries: g.entries})
		if err != nil {
			return object.TreeID{}, fmt.Errorf("write tree (prefix=%q): %w", g.path, err)
		}
		if g.path == "" {
			root = id
			continue
		}
		parent := groups[parentDir(g.path)]
		parent.entries = append(parent.entries, object.TreeEntry{
			Name: path.Base(g.path),
			Kind: object.KindTree,
			ID:   id.Object(),
		})
	}
	return root, nil
}

// fileDirClashes returns the sorted file paths of ix that are also used as a
// directory prefix by another entry.
func fileDirClashes(ix *index.Index) []string {
	dirs := make(map[string]struct{})
	for p := range ix.Entries() {
		for d := p.Dir(); d != ""; d = parentDir(d) {
			dirs[d] = struct{}{}
		}
	}
	var out []string
	for p := range ix.Entries() {
		if _, ok := dirs[p.String()]; ok {
			out = append(out, p.String())
		}
	}
	return out
}

func parentDir(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return ""
}

func depth(p string) int {
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}

// TreeFileEntry is a single file in a flattened tree.
type TreeFileEntry struct {
	Path string
	Blob object.BlobID
}

// FlattenTree walks a tree and returns every file with its full slash path,
// sorted by path.
func FlattenTree(store *object.Store, root object.TreeID) ([]TreeFileEntry, error) {
	type frame struct {
		prefix string
		id     object.TreeID
	}
	var out []TreeFileEntry
	stack := []frame{{id: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		t, err := store.ReadTree(f.id)
		if err != nil {
			return nil, fmt.Errorf("flatten tree: read %s: %w", f.id, err)
		}
		for _, e := range t.Entries {
			full := e.Name
			if f.prefix != "" {
				full = f.prefix + "/" + e.Name
			}
			if e.IsDir() {
				stack = append(stack, frame{prefix: full, id: object.TreeID(e.ID)})
				continue
			}
			out = append(out, TreeFileEntry{Path: full, Blob: object.BlobID(e.ID)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// IndexFromTree rebuilds an index holding every file of a tree. Committing it
// unchanged reproduces the same tree.
func IndexFromTree(store *object.Store, root object.TreeID) (*index.Index, error) {
	files, err := FlattenTree(store, root)
	if err != nil {
		return nil, err
	}
	ix := index.New()
	for _, f := range files {
		p, err := index.ParsePath(f.Path)
		if err != nil {
			return nil, fmt.Errorf("index from tree: %w", err)
		}
		ix.Add(p, f.Blob)
	}
	return ix, nil
}
