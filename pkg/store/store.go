// Package store provides the path-addressed key/value storage used by the
// provisioner, modelled on a flash filesystem with an internal, an external
// and a volatile location.
package store

import (
	"errors"
	"fmt"
	"strings"
)

// Store errors.
var (
	ErrNotFound    = errors.New("store: file not found")
	ErrInvalidPath = errors.New("store: invalid path")
	ErrNoSpace     = errors.New("store: no space left")
	ErrCorrupt     = errors.New("store: file corrupt")
)

// MaxPathLength is the longest path the store accepts, in bytes.
const MaxPathLength = 128

// Location selects the backing area for a file.
type Location uint8

const (
	// Internal is the on-chip flash filesystem.
	Internal Location = iota
	// External is the external flash filesystem.
	External
	// Volatile is RAM; contents do not survive a restart.
	Volatile
)

// String returns the location name.
func (l Location) String() string {
	switch l {
	case Internal:
		return "internal"
	case External:
		return "external"
	case Volatile:
		return "volatile"
	default:
		return fmt.Sprintf("location(%d)", uint8(l))
	}
}

// Store is the file contract the provisioner depends on.
// Implementations must be safe for concurrent access.
type Store interface {
	// Put writes data at path, replacing any previous content.
	Put(loc Location, path string, data []byte) error

	// Read returns the content at path.
	// Returns ErrNotFound if nothing is stored there.
	Read(loc Location, path string) ([]byte, error)

	// Exists reports whether a file exists at path in the Internal location.
	Exists(path string) bool
}

// Filesystem is the raw filesystem handle that can be wiped.
type Filesystem interface {
	// Format erases every persistent file.
	Format() error
}

// Device combines the file contract with the raw filesystem.
type Device interface {
	Store
	Filesystem
}

// ValidatePath checks that path is absolute, bounded, and free of empty,
// "." or ".." segments.
func ValidatePath(path string) error {
	if path == "" || len(path) > MaxPathLength {
		return fmt.Errorf("%w: length %d", ErrInvalidPath, len(path))
	}
	if path[0] != '/' {
		return fmt.Errorf("%w: %q is not absolute", ErrInvalidPath, path)
	}
	for _, seg := range strings.Split(path[1:], "/") {
		switch seg {
		case "", ".", "..":
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("%w: contains NUL", ErrInvalidPath)
	}
	return nil
}
