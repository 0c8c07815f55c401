package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

// RefStore implements refs.Store on the refs and head tables. Every update
// reads and writes inside one IMMEDIATE transaction, so the compare-and-swap
// check and the write are atomic with respect to other connections.
type RefStore struct {
	db *DB
}

var _ refs.Store = (*RefStore)(nil)

func (s *RefStore) ReadHead() (refs.HeadState, error) {
	var raw string
	err := s.db.conn.QueryRow(`SELECT value FROM head WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return refs.HeadState{}, fmt.Errorf("read HEAD: not initialized")
	}
	if err != nil {
		return refs.HeadState{}, fmt.Errorf("read HEAD: %w", err)
	}
	return refs.ParseHead(raw, func(n refs.Name) (bool, error) {
		_, ok, err := lookupRef(s.db.conn, n)
		return ok, err
	})
}

func (s *RefStore) WriteHead(state refs.HeadState) error {
	raw, err := refs.FormatHead(state)
	if err != nil {
		return err
	}
	_, err = s.db.conn.Exec(
		`INSERT INTO head (id, value) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET value = excluded.value`,
		raw,
	)
	if err != nil {
		return fmt.Errorf("write HEAD: %w", err)
	}
	return nil
}

func (s *RefStore) ReadRef(name refs.Name) (refs.Target, error) {
	if err := name.Validate(); err != nil {
		return refs.Target{}, err
	}
	t, ok, err := lookupRef(s.db.conn, name)
	if err != nil {
		return refs.Target{}, fmt.Errorf("read ref %q: %w", name, err)
	}
	if !ok {
		return refs.Target{}, fmt.Errorf("read ref %q: %w", name, refs.ErrRefNotFound)
	}
	return t, nil
}

func (s *RefStore) WriteRef(name refs.Name, target refs.Target, createIfMissing bool, expectedOld *refs.Target) error {
	if err := refs.ValidateTarget(name, target); err != nil {
		return err
	}
	return s.db.inTx(func(tx *sql.Tx) error {
		current, ok, err := lookupRef(tx, name)
		if err != nil {
			return fmt.Errorf("update ref %q: %w", name, err)
		}
		var cur *refs.Target
		if ok {
			cur = &current
		}
		if err := refs.CheckUpdate(name, cur, createIfMissing, expectedOld); err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO refs (name, target) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET target = excluded.target`,
			string(name), target.String(),
		); err != nil {
			return fmt.Errorf("update ref %q: %w", name, err)
		}
		return s.appendReflog(tx, name, current, target, "update")
	})
}

func (s *RefStore) DeleteRef(name refs.Name, expectedOld *refs.Target) error {
	if err := name.Validate(); err != nil {
		return err
	}
	return s.db.inTx(func(tx *sql.Tx) error {
		current, ok, err := lookupRef(tx, name)
		if err != nil {
			return fmt.Errorf("delete ref %q: %w", name, err)
		}
		var cur *refs.Target
		if ok {
			cur = &current
		}
		if err := refs.CheckUpdate(name, cur, false, expectedOld); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM refs WHERE name = ?`, string(name)); err != nil {
			return fmt.Errorf("delete ref %q: %w", name, err)
		}
		return s.appendReflog(tx, name, current, refs.Target{}, "delete")
	})
}

// ListRefs reads all refs in one statement, which SQLite executes against a
// single snapshot.
func (s *RefStore) ListRefs() ([]refs.Ref, error) {
	rows, err := s.db.conn.Query(`SELECT name, target FROM refs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	defer rows.Close()

	var out []refs.Ref
	for rows.Next() {
		var name, hex string
		if err := rows.Scan(&name, &hex); err != nil {
			return nil, fmt.Errorf("list refs: %w", err)
		}
		id, err := object.ParseCommitID(hex)
		if err != nil {
			return nil, fmt.Errorf("list refs: malformed target for %q: %w", name, err)
		}
		out = append(out, refs.Ref{Name: refs.Name(name), Target: refs.CommitTarget(id)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return out, nil
}

// ReadReflog returns the newest limit entries for name, newest first.
func (s *RefStore) ReadReflog(name refs.Name, limit int) ([]refs.ReflogEntry, error) {
	if err := name.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.conn.Query(
		`SELECT old, new, ts, reason FROM reflog WHERE name = ? ORDER BY seq DESC LIMIT ?`,
		string(name), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer rows.Close()

	var out []refs.ReflogEntry
	for rows.Next() {
		var oldHex, newHex, reason string
		var ts int64
		if err := rows.Scan(&oldHex, &newHex, &ts, &reason); err != nil {
			return nil, fmt.Errorf("read reflog: %w", err)
		}
		out = append(out, refs.ReflogEntry{
			Ref:       name,
			Old:       parseTarget(oldHex),
			New:       parseTarget(newHex),
			Timestamp: ts,
			Reason:    reason,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	return out, nil
}

func (s *RefStore) appendReflog(tx *sql.Tx, name refs.Name, old, updated refs.Target, reason string) error {
	_, err := tx.Exec(
		`INSERT INTO reflog (name, old, new, ts, reason) VALUES (?, ?, ?, ?, ?)`,
		string(name), formatTarget(old), formatTarget(updated), s.db.now().Unix(), reason,
	)
	if err != nil {
		return fmt.Errorf("update ref %q: reflog: %w", name, err)
	}
	return nil
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

func lookupRef(q queryer, name refs.Name) (refs.Target, bool, error) {
	var hex string
	err := q.QueryRow(`SELECT target FROM refs WHERE name = ?`, string(name)).Scan(&hex)
	if errors.Is(err, sql.ErrNoRows) {
		return refs.Target{}, false, nil
	}
	if err != nil {
		return refs.Target{}, false, err
	}
	id, err := object.ParseCommitID(hex)
	if err != nil {
		return refs.Target{}, false, fmt.Errorf("malformed target %q: %w", hex, err)
	}
	return refs.CommitTarget(id), true, nil
}

func formatTarget(t refs.Target) string {
	if t.IsZero() {
		return ""
	}
	return t.String()
}

func parseTarget(s string) refs.Target {
	id, err := object.ParseCommitID(s)
	if err != nil {
		return refs.Target{}
	}
	return refs.CommitTarget(id)
}
