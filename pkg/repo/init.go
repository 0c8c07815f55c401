package repo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
	"github.com/odvcencio/strata/pkg/sqlitestore"
)

// DirName is the repository metadata directory created under the work root.
const DirName = ".strata"

const (
	configFile = "config.toml"
	sqliteFile = "strata.db"
	indexFile  = "index.json"
)

// Init creates a new repository at path. It creates the .strata/ directory
// with config.toml, HEAD on the unborn default branch, and the storage the
// configured backend needs. Returns an error if .strata/ already exists.
func Init(path string, cfg *Config, opts ...Option) (*Repo, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	dir := filepath.Join(path, DirName)

	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("init: mkdir %s: %w", dir, err)
	}
	if err := cfg.Save(filepath.Join(dir, configFile)); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	r, err := openDir(dir, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := r.Refs.WriteHead(refs.Unborn(cfg.DefaultBranchRef())); err != nil {
		r.Close()
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}
	return r, nil
}

// Open searches upward from path for a .strata/ directory and opens the
// repository. Returns an error if no .strata/ directory is found.
func Open(path string, opts ...Option) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		dir := filepath.Join(cur, DirName)
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			cfg, err := LoadConfig(filepath.Join(dir, configFile))
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			r, err := openDir(dir, cfg, opts...)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			return r, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a strata repository (or any parent up to /)")
		}
		cur = parent
	}
}

func openDir(dir string, cfg *Config, opts ...Option) (*Repo, error) {
	opts = append([]Option{WithConfig(cfg)}, opts...)

	switch cfg.Core.Backend {
	case BackendSQLite:
		db, err := sqlitestore.Open(filepath.Join(dir, sqliteFile))
		if err != nil {
			return nil, err
		}
		r := New(object.NewStore(db.Objects()), db.Refs(), opts...)
		r.Dir = dir
		r.closers = []io.Closer{db}
		return r, nil

	default:
		var fsOpts []object.FSOption
		if cfg.Objects.Compression {
			fsOpts = append(fsOpts, object.WithCompression(cfg.Objects.CompressionLevel))
		}
		backend, err := object.NewFSBackend(dir, fsOpts...)
		if err != nil {
			return nil, err
		}
		rs, err := refs.NewFSStore(dir)
		if err != nil {
			backend.Close()
			return nil, err
		}
		r := New(object.NewStore(backend), rs, opts...)
		r.Dir = dir
		r.closers = []io.Closer{backend}
		return r, nil
	}
}

// IndexPath is where the CLI keeps its working index.
func (r *Repo) IndexPath() string {
	if r.Dir == "" {
		return ""
	}
	return filepath.Join(r.Dir, indexFile)
}

// ConfigPath is the location of config.toml.
func (r *Repo) ConfigPath() string {
	if r.Dir == "" {
		return ""
	}
	return filepath.Join(r.Dir, configFile)
}

// ErrUnbornHead is returned when a revision names HEAD before the first commit.
var ErrUnbornHead = errors.New("HEAD has no commits yet")

// HeadCommit resolves HEAD to a commit id.
func (r *Repo) HeadCommit() (object.CommitID, error) {
	h, err := r.Refs.ReadHead()
	if err != nil {
		return object.CommitID{}, err
	}
	switch h.Kind {
	case refs.HeadDetached:
		return h.Commit, nil
	case refs.HeadBranch:
		t, err := r.Refs.ReadRef(h.Branch)
		if err != nil {
			return object.CommitID{}, err
		}
		return t.Commit, nil
	default:
		return object.CommitID{}, fmt.Errorf("%w (branch %s)", ErrUnbornHead, h.Branch.Branch())
	}
}

// ResolveRevision resolves a revision string to a commit id.
//
// Resolution order:
//  1. "HEAD" resolves through HeadCommit.
//  2. Names starting with "refs/" are read as full ref names.
//  3. Short names are tried as "refs/heads/<name>", then "refs/tags/<name>".
//  4. Anything else must be a full 64-character commit id that exists.
func (r *Repo) ResolveRevision(rev string) (object.CommitID, error) {
	rev = strings.TrimSpace(rev)
	if rev == "" || rev == "HEAD" {
		return r.HeadCommit()
	}
	if strings.HasPrefix(rev, "refs/") {
		t, err := r.Refs.ReadRef(refs.Name(rev))
		if err != nil {
			return object.CommitID{}, err
		}
		return t.Commit, nil
	}
	for _, name := range []refs.Name{refs.BranchName(rev), tagRef(rev)} {
		if name.Validate() != nil {
			continue
		}
		t, err := r.Refs.ReadRef(name)
		if err == nil {
			return t.Commit, nil
		}
		if !errors.Is(err, refs.ErrRefNotFound) {
			return object.CommitID{}, err
		}
	}
	id, err := object.ParseCommitID(rev)
	if err != nil {
		return object.CommitID{}, fmt.Errorf("resolve %q: %w", rev, refs.ErrRefNotFound)
	}
	if _, err := r.Store.ReadCommit(id); err != nil {
		return object.CommitID{}, fmt.Errorf("resolve %q: %w", rev, err)
	}
	return id, nil
}
