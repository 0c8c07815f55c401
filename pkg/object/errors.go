package object

import "errors"

var (
	// ErrNotFound means no object is stored under the requested id.
	ErrNotFound = errors.New("object not found")
	// ErrCorrupt means the stored bytes do not hash to their id or do not decode.
	ErrCorrupt = errors.New("object corrupt")
	// ErrKindMismatch means the object exists but is not of the requested kind.
	ErrKindMismatch = errors.New("object kind mismatch")
	// ErrFieldTooLong means a commit field does not fit its length prefix.
	ErrFieldTooLong = errors.New("field too long")
)
