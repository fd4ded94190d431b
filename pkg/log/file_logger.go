package log

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// FileLogger appends CBOR events to a .plog file. With a size limit it
// rotates the file to <path>.1 once the limit is reached, keeping one
// previous generation. It is safe for concurrent use.
type FileLogger struct {
	path    string
	maxSize int64

	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	size    int64
	dropped int
	err     error
	closed  bool
}

// NewFileLogger opens path for appending, creating it if needed.
func NewFileLogger(path string) (*FileLogger, error) {
	return NewRotatingFileLogger(path, 0)
}

// NewRotatingFileLogger is NewFileLogger with a size limit in bytes.
// A limit of zero disables rotation.
func NewRotatingFileLogger(path string, maxSize int64) (*FileLogger, error) {
	if maxSize < 0 {
		return nil, fmt.Errorf("negative log size limit %d", maxSize)
	}
	l := &FileLogger{path: path, maxSize: maxSize}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) open() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	l.file = f
	l.buf = bufio.NewWriter(f)
	l.size = info.Size()
	return nil
}

func (l *FileLogger) rotate() error {
	if err := l.buf.Flush(); err != nil {
		return err
	}
	if err := l.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return err
	}
	return l.open()
}

// Log appends one event. Failures never reach the caller; they are
// counted in Dropped and the first one is kept for Err.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	data, err := EncodeEvent(event)
	if err == nil && l.maxSize > 0 && l.size > 0 && l.size+int64(len(data)) > l.maxSize {
		err = l.rotate()
	}
	if err == nil {
		_, err = l.buf.Write(data)
	}
	if err == nil {
		// Flush per event so a crashed simulator still leaves a readable log.
		err = l.buf.Flush()
	}
	if err != nil {
		l.dropped++
		if l.err == nil {
			l.err = err
		}
		return
	}
	l.size += int64(len(data))
}

// Dropped returns how many events could not be written.
func (l *FileLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Err returns the first write error, if any.
func (l *FileLogger) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close flushes and closes the file. Later Log calls are ignored and
// repeated Close calls return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	flushErr := l.buf.Flush()
	if err := l.file.Close(); err != nil {
		return err
	}
	return flushErr
}

var _ Logger = (*FileLogger)(nil)
