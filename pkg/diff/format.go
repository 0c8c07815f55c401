package diff

import (
	"fmt"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
)

// FormatSummary renders one line per change:
//
//	A  path   (added)
//	M  path   (modified)
//	D  path   (removed)
func FormatSummary(d *Diff) string {
	var b strings.Builder
	for _, c := range d.Entries {
		var marker string
		switch c.Type {
		case Added:
			marker = "A"
		case Removed:
			marker = "D"
		case Modified:
			marker = "M"
		}
		fmt.Fprintf(&b, "%s  %s\n", marker, c.Path)
	}
	return b.String()
}

// FormatPatch renders a line-level patch for every change, reading blob
// contents from store. Added and removed files are shown in full.
func FormatPatch(store *object.Store, d *Diff) (string, error) {
	var b strings.Builder
	for _, c := range d.Entries {
		before, err := blobData(store, c.Before)
		if err != nil {
			return "", err
		}
		after, err := blobData(store, c.After)
		if err != nil {
			return "", err
		}

		switch c.Type {
		case Added:
			fmt.Fprintf(&b, "--- /dev/null\n+++ b/%s\n", c.Path)
		case Removed:
			fmt.Fprintf(&b, "--- a/%s\n+++ /dev/null\n", c.Path)
		default:
			fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", c.Path, c.Path)
		}
		for _, l := range Lines(before, after) {
			switch l.Op {
			case Delete:
				fmt.Fprintf(&b, "-%s\n", l.Text)
			case Insert:
				fmt.Fprintf(&b, "+%s\n", l.Text)
			case Equal:
				fmt.Fprintf(&b, " %s\n", l.Text)
			}
		}
	}
	return b.String(), nil
}

func blobData(store *object.Store, id object.BlobID) ([]byte, error) {
	if id.IsZero() {
		return nil, nil
	}
	blob, err := store.ReadBlob(id)
	if err != nil {
		return nil, fmt.Errorf("patch: read blob %s: %w", id, err)
	}
	return blob.Data, nil
}
