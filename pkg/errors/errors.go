// Package errors provides structured error types for the rawget library.
package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// ErrorType represents the category of error that occurred.
type ErrorType string

const (
	// ErrorTypeInput represents a bad URL or scheme supplied by the caller
	ErrorTypeInput ErrorType = "input"
	// ErrorTypeNetwork represents resolution, connect, read and write failures
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeProtocol represents a response that is not acceptable HTTP/1.1
	ErrorTypeProtocol ErrorType = "protocol"
	// ErrorTypePolicy represents responses refused by client policy (status, redirects)
	ErrorTypePolicy ErrorType = "policy"
	// ErrorTypeTimeout represents expiry of the operation deadline
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeIO represents failures of the output sink
	ErrorTypeIO ErrorType = "io"
)

// Kind names the precise condition inside an ErrorType.
type Kind string

const (
	KindUnsupportedScheme Kind = "UnsupportedScheme"
	KindMalformedURL      Kind = "MalformedURL"

	KindResolution Kind = "ResolutionError"
	KindConnect    Kind = "ConnectError"
	KindRead       Kind = "ReadError"
	KindWrite      Kind = "WriteError"
	KindShortWrite Kind = "ShortWrite"

	KindMalformedStatusLine         Kind = "MalformedStatusLine"
	KindMalformedHeaders            Kind = "MalformedHeaders"
	KindHeadersTooLong              Kind = "HeadersTooLong"
	KindTooManyHeaders              Kind = "TooManyHeaders"
	KindUnexpectedEOF               Kind = "UnexpectedEOF"
	KindUnsupportedContentEncoding  Kind = "UnsupportedContentEncoding"
	KindUnsupportedTransferEncoding Kind = "UnsupportedTransferEncoding"
	KindMalformedContentLength      Kind = "MalformedContentLength"
	KindMalformedChunkSize          Kind = "MalformedChunkSize"

	KindHTTPError                       Kind = "HTTPError"
	KindUnexpectedInformationalResponse Kind = "UnexpectedInformationalResponse"
	KindMissingLocation                 Kind = "MissingLocation"
	KindTooManyRedirects                Kind = "TooManyRedirects"

	KindDeadlineExceeded Kind = "DeadlineExceeded"
	KindCanceled         Kind = "Canceled"

	KindSinkWrite Kind = "SinkWrite"
)

// Sentinels for use with the standard errors.Is. An *Error matches a sentinel
// when Type and Kind are equal.
var (
	ErrUnsupportedScheme           = &Error{Type: ErrorTypeInput, Kind: KindUnsupportedScheme}
	ErrMalformedURL                = &Error{Type: ErrorTypeInput, Kind: KindMalformedURL}
	ErrHeadersTooLong              = &Error{Type: ErrorTypeProtocol, Kind: KindHeadersTooLong}
	ErrMalformedHeaders            = &Error{Type: ErrorTypeProtocol, Kind: KindMalformedHeaders}
	ErrMalformedChunkSize          = &Error{Type: ErrorTypeProtocol, Kind: KindMalformedChunkSize}
	ErrUnsupportedTransferEncoding = &Error{Type: ErrorTypeProtocol, Kind: KindUnsupportedTransferEncoding}
	ErrHTTPError                   = &Error{Type: ErrorTypePolicy, Kind: KindHTTPError}
	ErrMissingLocation             = &Error{Type: ErrorTypePolicy, Kind: KindMissingLocation}
	ErrTooManyRedirects            = &Error{Type: ErrorTypePolicy, Kind: KindTooManyRedirects}
	ErrDeadlineExceeded            = &Error{Type: ErrorTypeTimeout, Kind: KindDeadlineExceeded}
)

// Error represents a structured error with context information.
type Error struct {
	Type       ErrorType `json:"type"`
	Kind       Kind      `json:"kind"`
	Message    string    `json:"message"`
	Cause      error     `json:"cause,omitempty"`
	Host       string    `json:"host,omitempty"`
	Port       string    `json:"port,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same type (and kind, when the
// target names one). Timeout errors also match context.DeadlineExceeded.
func (e *Error) Is(target error) bool {
	if target == context.DeadlineExceeded {
		return e.Type == ErrorTypeTimeout
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Kind == "" || e.Kind == t.Kind
}

func newError(typ ErrorType, kind Kind, message string, cause error) *Error {
	return &Error{
		Type:      typ,
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// NewInputError creates an error for a URL the client cannot use.
func NewInputError(kind Kind, message string) *Error {
	return newError(ErrorTypeInput, kind, message, nil)
}

// NewDNSError creates a name resolution error.
func NewDNSError(host string, cause error) *Error {
	if isTimeout(cause) {
		return NewTimeoutError("resolving "+host, cause)
	}
	e := newError(ErrorTypeNetwork, KindResolution, fmt.Sprintf("DNS lookup failed for host %s", host), cause)
	e.Host = host
	return e
}

// NewConnectionError creates a connection error.
func NewConnectionError(host, port string, cause error) *Error {
	if isTimeout(cause) {
		return NewTimeoutError(fmt.Sprintf("connecting to %s", net.JoinHostPort(host, port)), cause)
	}
	e := newError(ErrorTypeNetwork, KindConnect, fmt.Sprintf("failed to connect to %s", net.JoinHostPort(host, port)), cause)
	e.Host = host
	e.Port = port
	return e
}

// NewReadError creates an error for a failed read from the connection.
func NewReadError(operation string, cause error) *Error {
	if isTimeout(cause) {
		return NewTimeoutError(operation, cause)
	}
	return newError(ErrorTypeNetwork, KindRead, fmt.Sprintf("read failed during %s", operation), cause)
}

// NewWriteError creates an error for a failed write to the connection.
func NewWriteError(operation string, cause error) *Error {
	if isTimeout(cause) {
		return NewTimeoutError(operation, cause)
	}
	kind := KindWrite
	if cause == io.ErrShortWrite {
		kind = KindShortWrite
	}
	return newError(ErrorTypeNetwork, kind, fmt.Sprintf("write failed during %s", operation), cause)
}

// NewTimeoutError creates a deadline error.
func NewTimeoutError(operation string, cause error) *Error {
	return newError(ErrorTypeTimeout, KindDeadlineExceeded, fmt.Sprintf("deadline exceeded while %s", operation), cause)
}

// FromContext converts a done context into a timeout or cancellation error.
func FromContext(ctx context.Context, operation string) *Error {
	if ctx.Err() == context.DeadlineExceeded {
		return NewTimeoutError(operation, ctx.Err())
	}
	return newError(ErrorTypeNetwork, KindCanceled, fmt.Sprintf("canceled while %s", operation), ctx.Err())
}

// NewProtocolError creates a protocol error.
func NewProtocolError(kind Kind, message string, cause error) *Error {
	return newError(ErrorTypeProtocol, kind, message, cause)
}

// NewPolicyError creates an error for a response the client refuses to follow.
func NewPolicyError(kind Kind, message string) *Error {
	return newError(ErrorTypePolicy, kind, message, nil)
}

// NewHTTPStatusError creates the policy error for a status code >= 400.
func NewHTTPStatusError(code int, reason string) *Error {
	e := newError(ErrorTypePolicy, KindHTTPError, fmt.Sprintf("server returned HTTP error %d: %s", code, reason), nil)
	e.StatusCode = code
	return e
}

// NewSinkError creates an error for a failed write to the output sink.
func NewSinkError(cause error) *Error {
	return newError(ErrorTypeIO, KindSinkWrite, "writing response body to sink", cause)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsTimeoutError checks if an error is a timeout error.
func IsTimeoutError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == ErrorTypeTimeout
	}
	return isTimeout(err)
}

// GetErrorType returns the error type if it's a structured error.
func GetErrorType(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// GetKind returns the error kind if it's a structured error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusCode returns the HTTP status carried by an HTTPError, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsContextCanceled checks if an error is due to context cancellation.
func IsContextCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
