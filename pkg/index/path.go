package index

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned for paths that are not clean, relative,
// slash-separated file paths.
var ErrInvalidPath = errors.New("invalid path")

// SafePath is a validated repository-relative path such as "pkg/util/util.go".
type SafePath string

// ParsePath validates p. It rejects empty and absolute paths, empty, "." and
// ".." segments, backslashes and NUL bytes.
func ParsePath(p string) (SafePath, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, p)
	}
	if strings.ContainsAny(p, "\\\x00") {
		return "", fmt.Errorf("%w: %q contains a backslash or NUL", ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "":
			return "", fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, p)
		case ".", "..":
			return "", fmt.Errorf("%w: %q has a %q segment", ErrInvalidPath, p, seg)
		}
	}
	return SafePath(p), nil
}

// MustPath is ParsePath for literals; it panics on invalid input.
func MustPath(p string) SafePath {
	sp, err := ParsePath(p)
	if err != nil {
		panic(err)
	}
	return sp
}

func (p SafePath) String() string { return string(p) }

// Dir returns the parent directory, "" for top-level paths.
func (p SafePath) Dir() string {
	if i := strings.LastIndexByte(string(p), '/'); i >= 0 {
		return string(p[:i])
	}
	return ""
}

// Base returns the final path segment.
func (p SafePath) Base() string {
	if i := strings.LastIndexByte(string(p), '/'); i >= 0 {
		return string(p[i+1:])
	}
	return string(p)
}
