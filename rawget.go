// Package rawget provides a minimal HTTP/1.1 GET client built on raw sockets.
// It follows redirects and streams the response body, delimited by
// Content-Length, chunked transfer coding or connection close, to any sink.
package rawget

import (
	"context"
	"io"

	"github.com/WhileEndless/go-rawget/pkg/body"
	"github.com/WhileEndless/go-rawget/pkg/client"
	"github.com/WhileEndless/go-rawget/pkg/constants"
	"github.com/WhileEndless/go-rawget/pkg/errors"
	"github.com/WhileEndless/go-rawget/pkg/header"
	"github.com/WhileEndless/go-rawget/pkg/sink"
	"github.com/WhileEndless/go-rawget/pkg/timing"
)

// Version is the current version of the rawget library
const Version = constants.AppVersion

// GetVersion returns the current version of the library
func GetVersion() string {
	return Version
}

// Re-export key types for easier usage
type (
	// Options controls one GET and every redirect it follows.
	Options = client.Options

	// Result describes the final response of a GET.
	Result = client.Result

	// Framing is the body delimiting strategy chosen from the headers.
	Framing = body.Framing

	// Header is the merged, case-insensitive response header table.
	Header = header.Table

	// Spool stores a body in memory and spills it to disk above a limit.
	Spool = sink.Spool

	// FileSink writes a body to a file created only when a body arrives.
	FileSink = sink.File

	// Metrics captures timing information for a request.
	Metrics = timing.Metrics

	// Error represents a structured error with context information.
	Error = errors.Error
)

// Re-export error types for convenience
const (
	ErrorTypeInput    = errors.ErrorTypeInput
	ErrorTypeNetwork  = errors.ErrorTypeNetwork
	ErrorTypeProtocol = errors.ErrorTypeProtocol
	ErrorTypePolicy   = errors.ErrorTypePolicy
	ErrorTypeTimeout  = errors.ErrorTypeTimeout
	ErrorTypeIO       = errors.ErrorTypeIO
)

// DefaultOptions returns the default client options.
func DefaultOptions() Options {
	return client.DefaultOptions()
}

// Get fetches url with opts and streams the final body to dst.
func Get(ctx context.Context, url string, dst io.Writer, opts Options) (*Result, error) {
	return client.New(opts).Get(ctx, url, dst)
}

// Download fetches url into the file at path. The file is created, or
// truncated, only when a body is about to be written, so failed requests and
// 204 responses leave it untouched.
func Download(ctx context.Context, url, path string, opts Options) (*Result, error) {
	f := sink.NewFile(path)
	res, err := client.New(opts).Get(ctx, url, f)
	if cerr := f.Close(); cerr != nil && err == nil {
		return nil, cerr
	}
	return res, err
}

// Fetch fetches url into a Spool. The caller must Close the returned Spool.
func Fetch(ctx context.Context, url string, opts Options) (*Result, *Spool, error) {
	spool := sink.NewSpool(constants.DefaultSpoolMemLimit)
	res, err := client.New(opts).Get(ctx, url, spool)
	if err != nil {
		spool.Close()
		return nil, nil, err
	}
	return res, spool, nil
}

// NewSpool creates a Spool with the specified memory limit.
func NewSpool(limit int64) *Spool {
	return sink.NewSpool(limit)
}

// IsTimeoutError checks if an error is a deadline error.
func IsTimeoutError(err error) bool {
	return errors.IsTimeoutError(err)
}

// IsContextCanceled checks if an error is due to cancellation.
func IsContextCanceled(err error) bool {
	return errors.IsContextCanceled(err)
}

// GetErrorType returns the error type of a structured error, or "".
func GetErrorType(err error) errors.ErrorType {
	return errors.GetErrorType(err)
}

// GetErrorKind returns the precise error kind of a structured error, or "".
func GetErrorKind(err error) errors.Kind {
	return errors.GetKind(err)
}

// StatusCode returns the HTTP status carried by an HTTP error, or 0.
func StatusCode(err error) int {
	return errors.StatusCode(err)
}
