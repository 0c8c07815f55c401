package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/odvcencio/strata/pkg/object"
)

// ObjectBackend implements object.Backend on the objects table. Rows are
// keyed by the raw 32-byte id and hold the canonical encoding unchanged.
type ObjectBackend struct {
	db *DB
}

var _ object.Backend = (*ObjectBackend)(nil)

// Put inserts the object unless a row with the same id already exists.
func (b *ObjectBackend) Put(id object.ObjectID, data []byte) error {
	_, err := b.db.conn.Exec(
		`INSERT INTO objects (id, data) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		id[:], data,
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", id, err)
	}
	return nil
}

func (b *ObjectBackend) Get(id object.ObjectID) ([]byte, error) {
	var data []byte
	err := b.db.conn.QueryRow(`SELECT data FROM objects WHERE id = ?`, id[:]).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, object.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return data, nil
}

func (b *ObjectBackend) Exists(id object.ObjectID) (bool, error) {
	var one int
	err := b.db.conn.QueryRow(`SELECT 1 FROM objects WHERE id = ?`, id[:]).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", id, err)
	}
	return true, nil
}

// Count returns the number of stored objects.
func (b *ObjectBackend) Count() (int, error) {
	var n int
	if err := b.db.conn.QueryRow(`SELECT COUNT(*) FROM objects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count objects: %w", err)
	}
	return n, nil
}

// Close closes the shared database.
func (b *ObjectBackend) Close() error { return b.db.Close() }
