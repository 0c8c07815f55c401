package refs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
)

const zeroHex = "0000000000000000000000000000000000000000000000000000000000000000"

// ReflogEntry records one ref transition. A zero Old means the ref was
// created; a zero New means it was deleted.
type ReflogEntry struct {
	Ref       Name
	Old       Target
	New       Target
	Timestamp int64
	Reason    string
}

func (s *FSStore) appendReflog(name Name, old, updated Target, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "update"
	}
	logPath := filepath.Join(s.root, "logs", filepath.FromSlash(string(name)))
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}

	line := fmt.Sprintf("%s %s %d %s\n", reflogHex(old), reflogHex(updated), s.now().Unix(), reason)

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

func reflogHex(t Target) string {
	if t.IsZero() {
		return zeroHex
	}
	return t.String()
}

// ReadReflog returns the newest limit entries for name, newest first. A limit
// of zero or less returns everything. Malformed lines are skipped.
func (s *FSStore) ReadReflog(name Name, limit int) ([]ReflogEntry, error) {
	if err := name.Validate(); err != nil {
		return nil, err
	}
	logPath := filepath.Join(s.root, "logs", filepath.FromSlash(string(name)))
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 4)
		if len(parts) < 4 {
			continue
		}
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		old, okOld := parseReflogHex(parts[0])
		updated, okNew := parseReflogHex(parts[1])
		if !okOld || !okNew {
			continue
		}
		entries = append(entries, ReflogEntry{
			Ref:       name,
			Old:       old,
			New:       updated,
			Timestamp: ts,
			Reason:    parts[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func parseReflogHex(s string) (Target, bool) {
	if s == zeroHex {
		return Target{}, true
	}
	id, err := object.ParseCommitID(s)
	if err != nil {
		return Target{}, false
	}
	return CommitTarget(id), true
}
