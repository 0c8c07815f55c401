// Package sqlitestore keeps objects, refs and HEAD in a single SQLite
// database file. It is an alternative to the directory-per-object layout for
// embedders that prefer one file per repository.
//
// The database runs in WAL mode with a busy timeout, and every write
// transaction starts IMMEDIATE so ref compare-and-swap is serialized by
// SQLite's write lock across processes.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS objects (
	id   BLOB PRIMARY KEY,
	data BLOB NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS refs (
	name   TEXT PRIMARY KEY,
	target TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS head (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reflog (
	seq    INTEGER PRIMARY KEY AUTOINCREMENT,
	name   TEXT NOT NULL,
	old    TEXT NOT NULL,
	new    TEXT NOT NULL,
	ts     INTEGER NOT NULL,
	reason TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reflog_name ON reflog(name, seq);
`

// DB wraps the SQLite connection pool shared by the object and ref stores.
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open creates or opens the database at path and ensures the schema exists.
// The caller must call Close when done.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlitestore: create directory: %w", err)
	}

	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(wal)")
	q.Add("_pragma", "synchronous(normal)")
	q.Set("_txlock", "immediate")
	conn, err := sql.Open("sqlite3", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlitestore: ping: %w", err)
	}
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(4)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlitestore: init schema: %w", err)
	}
	return &DB{conn: conn, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close checkpoints the WAL and closes the pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	// Best effort; a failed checkpoint leaves the WAL for the next open.
	_, _ = db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("sqlitestore: close: %w", err)
	}
	db.conn = nil
	return nil
}

// Objects returns the object backend view of db.
func (db *DB) Objects() *ObjectBackend { return &ObjectBackend{db: db} }

// Refs returns the ref store view of db.
func (db *DB) Refs() *RefStore { return &RefStore{db: db} }

// inTx runs fn inside a write transaction and commits it when fn succeeds.
func (db *DB) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit: %w", err)
	}
	return nil
}
