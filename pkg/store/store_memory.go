package store

import (
	"fmt"
	"sync"
)

// MemoryStore is an in-memory implementation of Device.
// Useful for tests and for devices that need no persistence.
type MemoryStore struct {
	mu sync.RWMutex

	files    [3]map[string][]byte
	capacity int // 0 means unlimited
}

// NewMemoryStore creates an empty in-memory store.
// capacity bounds the total bytes held across persistent locations; 0 disables the limit.
func NewMemoryStore(capacity int) *MemoryStore {
	s := &MemoryStore{capacity: capacity}
	for i := range s.files {
		s.files[i] = make(map[string][]byte)
	}
	return s
}

// Put stores a copy of data at path.
func (s *MemoryStore) Put(loc Location, path string, data []byte) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if loc > Volatile {
		return fmt.Errorf("%w: %s", ErrInvalidPath, loc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity > 0 && loc != Volatile {
		used := s.usedLocked() - len(s.files[loc][path])
		if used+len(data) > s.capacity {
			return fmt.Errorf("%w: %d bytes requested, %d free", ErrNoSpace, len(data), s.capacity-used)
		}
	}

	s.files[loc][path] = append([]byte(nil), data...)
	return nil
}

// Read returns a copy of the data at path.
func (s *MemoryStore) Read(loc Location, path string) ([]byte, error) {
	if loc > Volatile {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, loc)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.files[loc][path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return append([]byte(nil), data...), nil
}

// Exists reports whether path exists in the Internal location.
func (s *MemoryStore) Exists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.files[Internal][path]
	return ok
}

// Delete removes path. Missing files are not an error.
func (s *MemoryStore) Delete(loc Location, path string) error {
	if loc > Volatile {
		return fmt.Errorf("%w: %s", ErrInvalidPath, loc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files[loc], path)
	return nil
}

// Format clears the Internal and External locations.
func (s *MemoryStore) Format() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[Internal] = make(map[string][]byte)
	s.files[External] = make(map[string][]byte)
	return nil
}

// Len returns the number of files in loc.
func (s *MemoryStore) Len(loc Location) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if loc > Volatile {
		return 0
	}
	return len(s.files[loc])
}

func (s *MemoryStore) usedLocked() int {
	n := 0
	for _, loc := range []Location{Internal, External} {
		for _, data := range s.files[loc] {
			n += len(data)
		}
	}
	return n
}

// Ensure MemoryStore implements Device.
var _ Device = (*MemoryStore)(nil)
