package device

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Flash geometry of the emulated bootloader area.
const (
	PageSize  = 4096
	PageCount = 8
)

// ErrPageOutOfRange is returned for pages outside the flash image.
var ErrPageOutOfRange = errors.New("device: flash page out of range")

// FileFlash emulates the raw flash pages outside the filesystem with a
// host file. Erased pages read as 0xFF.
type FileFlash struct {
	mu   sync.Mutex
	path string
}

// NewFileFlash opens or creates the flash image at path. A new image is
// filled with zeros, i.e. every page is programmed.
func NewFileFlash(path string) (*FileFlash, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, make([]byte, PageSize*PageCount), 0o600); err != nil {
			return nil, fmt.Errorf("create flash image: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open flash image: %w", err)
	}
	return &FileFlash{path: path}, nil
}

// ErasePage sets every byte of page to 0xFF.
func (f *FileFlash) ErasePage(page int) error {
	if page < 0 || page >= PageCount {
		return fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open flash image: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteAt(bytes.Repeat([]byte{0xFF}, PageSize), int64(page*PageSize)); err != nil {
		return fmt.Errorf("erase page %d: %w", page, err)
	}
	return nil
}

// Erased reports whether page reads as all 0xFF.
func (f *FileFlash) Erased(page int) (bool, error) {
	if page < 0 || page >= PageCount {
		return false, fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return false, fmt.Errorf("read flash image: %w", err)
	}
	start := page * PageSize
	if len(data) < start+PageSize {
		return false, nil
	}
	return bytes.Equal(data[start:start+PageSize], bytes.Repeat([]byte{0xFF}, PageSize)), nil
}
