// Package pathname validates and canonicalizes the relative names that
// identify entries inside a collection. Names use "/" as the only separator
// and are re-checked every time they cross a trust boundary: once when an
// entry is created from a local filesystem path, and again when a received
// collection is materialized on disk.
package pathname

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrInvalidPath indicates a path or path component that failed validation.
var ErrInvalidPath = errors.New("invalid path")

// validateComponent checks a single path segment. A segment must be
// non-empty, must not be "." or "..", must not contain either separator
// character, and must be well-formed UTF-8.
func validateComponent(c string) error {
	if c == "" {
		return fmt.Errorf("%w: empty path component", ErrInvalidPath)
	}
	if c == "." || c == ".." {
		return fmt.Errorf("%w: path component %q", ErrInvalidPath, c)
	}
	if strings.ContainsAny(c, "/\\") {
		return fmt.Errorf("%w: separator in path component %q", ErrInvalidPath, c)
	}
	if !utf8.ValidString(c) {
		return fmt.Errorf("%w: path component is not valid UTF-8", ErrInvalidPath)
	}
	return nil
}

// EntryName converts a filesystem path into an entry name, expressed
// relative to root. Both arguments should already be absolute and
// canonical; root is excluded from the resulting name. Every component of
// the relative remainder is validated.
func EntryName(path, root string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not under %s", ErrInvalidPath, path, root)
	}
	return FromRelative(rel)
}

// FromRelative validates a relative filesystem path and returns it as an
// entry name with "/" separators. Absolute paths and any path containing
// "." or ".." components are rejected.
func FromRelative(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, rel)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, part := range parts {
		if err := validateComponent(part); err != nil {
			return "", err
		}
	}
	return strings.Join(parts, "/"), nil
}

// Components splits a stored entry name into validated segments. Names read
// from a received collection are untrusted, so every segment is checked
// even if the name was validated when the collection was built.
func Components(name string) ([]string, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty entry name", ErrInvalidPath)
	}
	if strings.HasPrefix(name, "/") {
		return nil, fmt.Errorf("%w: entry name %q is absolute", ErrInvalidPath, name)
	}
	parts := strings.Split(name, "/")
	for _, part := range parts {
		if err := validateComponent(part); err != nil {
			return nil, err
		}
	}
	return parts, nil
}

// ExportPath re-derives a destination path for a stored entry name under
// root. The resulting path always lands inside root; any name that would
// escape it fails validation.
func ExportPath(root, name string) (string, error) {
	parts, err := Components(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{root}, parts...)...), nil
}
