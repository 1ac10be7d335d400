// Package sink provides destinations for response bodies: a file created
// only when a body is about to be written, and an in-memory spool.
package sink

import (
	"os"

	"fortio.org/log"

	"github.com/WhileEndless/go-rawget/pkg/errors"
)

// Opener is implemented by sinks that acquire their resources lazily. Open is
// called once, right before the first body byte is written, and never for a
// request that fails before its body phase.
type Opener interface {
	Open() error
}

// File writes the body to a file that is created or truncated on Open.
type File struct {
	path string
	f    *os.File
	size int64
}

// NewFile returns a sink for path. Nothing touches the filesystem until Open.
func NewFile(path string) *File {
	return &File{path: path}
}

// Open creates or truncates the file.
func (s *File) Open() error {
	if s.f != nil {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.NewSinkError(err)
	}
	log.LogVf("Opened output file %s", s.path)
	s.f = f
	return nil
}

// Write appends p to the file, opening it first if needed.
func (s *File) Write(p []byte) (int, error) {
	if s.f == nil {
		if err := s.Open(); err != nil {
			return 0, err
		}
	}
	n, err := s.f.Write(p)
	s.size += int64(n)
	return n, err
}

// Path returns the destination path.
func (s *File) Path() string { return s.path }

// Opened reports whether the file was created.
func (s *File) Opened() bool { return s.f != nil }

// Size returns the number of bytes written through this sink.
func (s *File) Size() int64 { return s.size }

// Close closes the file if it was opened.
func (s *File) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		return errors.NewSinkError(err)
	}
	return nil
}
