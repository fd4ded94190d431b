package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/blake3"
)

// Directory names for the persistent locations under the base directory.
const (
	internalDir = "internal"
	externalDir = "external"
)

// checksumSize is the length of the BLAKE3 trailer appended to every file.
const checksumSize = 32

// FileStore is a directory-backed implementation of Device that emulates the
// token's flash filesystems on a host. Each file carries a BLAKE3 trailer so
// truncated or tampered files are reported as ErrCorrupt.
// Volatile files are kept in memory only.
type FileStore struct {
	mu       sync.RWMutex
	baseDir  string
	capacity int

	volatile map[string][]byte
}

// NewFileStore creates a file-based store rooted at baseDir.
// capacity bounds the total payload bytes on disk; 0 disables the limit.
func NewFileStore(baseDir string, capacity int) (*FileStore, error) {
	for _, dir := range []string{internalDir, externalDir} {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return &FileStore{
		baseDir:  baseDir,
		capacity: capacity,
		volatile: make(map[string][]byte),
	}, nil
}

// BaseDir returns the root directory of the store.
func (s *FileStore) BaseDir() string {
	return s.baseDir
}

// Put writes data at path. Persistent writes go through a temporary file and
// a rename so a crash never leaves a half-written file behind.
func (s *FileStore) Put(loc Location, path string, data []byte) error {
	if err := ValidatePath(path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if loc == Volatile {
		s.volatile[path] = append([]byte(nil), data...)
		return nil
	}

	name, err := s.filename(loc, path)
	if err != nil {
		return err
	}

	if s.capacity > 0 {
		used, err := s.usedLocked()
		if err != nil {
			return err
		}
		if prev, err := payloadSize(name); err == nil {
			used -= prev
		}
		if used+len(data) > s.capacity {
			return fmt.Errorf("%w: %d bytes requested, %d free", ErrNoSpace, len(data), s.capacity-used)
		}
	}

	if err := os.MkdirAll(filepath.Dir(name), 0o700); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	sum := blake3.Sum256(data)
	buf := make([]byte, 0, len(data)+checksumSize)
	buf = append(buf, data...)
	buf = append(buf, sum[:]...)

	tmp, err := os.CreateTemp(filepath.Dir(name), ".put-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, name); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Read returns the content at path after verifying its checksum.
func (s *FileStore) Read(loc Location, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if loc == Volatile {
		data, ok := s.volatile[path]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return append([]byte(nil), data...), nil
	}

	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	name, err := s.filename(loc, path)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(raw) < checksumSize {
		return nil, fmt.Errorf("%w: %s truncated", ErrCorrupt, path)
	}

	data, trailer := raw[:len(raw)-checksumSize], raw[len(raw)-checksumSize:]
	sum := blake3.Sum256(data)
	if !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("%w: %s checksum mismatch", ErrCorrupt, path)
	}
	return data, nil
}

// Exists reports whether path exists in the Internal location.
func (s *FileStore) Exists(path string) bool {
	if ValidatePath(path) != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	name, err := s.filename(Internal, path)
	if err != nil {
		return false
	}
	info, err := os.Stat(name)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes path. Missing files are not an error.
func (s *FileStore) Delete(loc Location, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loc == Volatile {
		delete(s.volatile, path)
		return nil
	}
	if err := ValidatePath(path); err != nil {
		return err
	}
	name, err := s.filename(loc, path)
	if err != nil {
		return err
	}
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Format wipes the Internal and External locations.
func (s *FileStore) Format() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dir := range []string{internalDir, externalDir} {
		full := filepath.Join(s.baseDir, dir)
		if err := os.RemoveAll(full); err != nil {
			return fmt.Errorf("format %s: %w", dir, err)
		}
		if err := os.MkdirAll(full, 0o700); err != nil {
			return fmt.Errorf("format %s: %w", dir, err)
		}
	}
	return nil
}

// Used returns the payload bytes currently stored on disk.
func (s *FileStore) Used() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usedLocked()
}

func (s *FileStore) filename(loc Location, path string) (string, error) {
	var dir string
	switch loc {
	case Internal:
		dir = internalDir
	case External:
		dir = externalDir
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, loc)
	}
	return filepath.Join(s.baseDir, dir, filepath.FromSlash(path[1:])), nil
}

func (s *FileStore) usedLocked() (int, error) {
	total := 0
	for _, dir := range []string{internalDir, externalDir} {
		err := filepath.WalkDir(filepath.Join(s.baseDir, dir), func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			if n := int(info.Size()) - checksumSize; n > 0 {
				total += n
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("measure store: %w", err)
		}
	}
	return total, nil
}

func payloadSize(name string) (int, error) {
	info, err := os.Stat(name)
	if err != nil {
		return 0, err
	}
	n := int(info.Size()) - checksumSize
	if n < 0 {
		n = 0
	}
	return n, nil
}

// Ensure FileStore implements Device.
var _ Device = (*FileStore)(nil)
