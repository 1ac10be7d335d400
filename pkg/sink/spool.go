package sink

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/WhileEndless/go-rawget/pkg/constants"
	"github.com/WhileEndless/go-rawget/pkg/errors"
)

// Spool keeps a response body in memory and moves it to a temporary file
// once it grows past the memory limit.
type Spool struct {
	buf    bytes.Buffer
	file   *os.File
	path   string
	size   int64
	limit  int64
	mu     sync.Mutex
	closed bool
}

// NewSpool creates a Spool with the given memory limit.
func NewSpool(limit int64) *Spool {
	if limit <= 0 {
		limit = constants.DefaultSpoolMemLimit
	}
	return &Spool{limit: limit}
}

// Write stores p, spilling to disk once above the memory limit.
func (s *Spool) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, os.ErrClosed
	}

	if s.file == nil && int64(s.buf.Len()+len(p)) <= s.limit {
		n, err := s.buf.Write(p)
		s.size += int64(n)
		return n, err
	}

	if s.file == nil {
		if err := s.spill(); err != nil {
			return 0, err
		}
	}

	n, err := s.file.Write(p)
	s.size += int64(n)
	return n, err
}

// spill moves the in-memory data to a new temp file. Must hold mu.
func (s *Spool) spill() error {
	tmp, err := os.CreateTemp("", constants.AppName+"-body-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(s.buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	s.file = tmp
	s.path = tmp.Name()
	s.buf.Reset()
	return nil
}

// Bytes returns the in-memory data, or nil once the body spilled to disk.
func (s *Spool) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		return nil
	}
	return s.buf.Bytes()
}

// Path returns the temp file backing a spilled body.
func (s *Spool) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Size returns the number of bytes written.
func (s *Spool) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// IsSpilled reports whether the body moved to disk.
func (s *Spool) IsSpilled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file != nil
}

// Reader returns a fresh reader over everything written so far.
func (s *Spool) Reader() (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.NewSinkError(os.ErrClosed)
	}
	if s.file == nil {
		return io.NopCloser(bytes.NewReader(s.buf.Bytes())), nil
	}
	if err := s.file.Sync(); err != nil {
		return nil, errors.NewSinkError(err)
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.NewSinkError(err)
	}
	return f, nil
}

// Close removes the temp file, if any. It is idempotent.
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	if removeErr := os.Remove(s.path); removeErr != nil && err == nil {
		err = removeErr
	}
	s.file = nil
	s.path = ""
	if err != nil {
		return errors.NewSinkError(err)
	}
	return nil
}

// Reset discards the stored body so the Spool can be written again.
func (s *Spool) Reset() error {
	if err := s.Close(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
	s.size = 0
	s.closed = false
	return nil
}
