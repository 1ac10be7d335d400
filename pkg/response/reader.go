// Package response reads the status line and headers of an HTTP/1.1
// response from a byte stream that delivers data in arbitrary pieces.
package response

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fortio.org/log"
	"golang.org/x/net/http/httpguts"

	"github.com/WhileEndless/go-rawget/pkg/constants"
	"github.com/WhileEndless/go-rawget/pkg/errors"
	"github.com/WhileEndless/go-rawget/pkg/header"
	"github.com/WhileEndless/go-rawget/pkg/wire"
)

// ReadinessWaiter is implemented by sources that can block until data is
// available without consuming it.
type ReadinessWaiter interface {
	WaitReadable() error
}

// Limits bounds the header block.
type Limits struct {
	MaxHeaderBytes int // status line and header lines, terminators included
	MaxHeaderCount int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxHeaderBytes: constants.MaxHeaderBytes,
		MaxHeaderCount: constants.MaxHeaderCount,
	}
}

// Status is a parsed status line.
type Status struct {
	Proto  string
	Code   int
	Reason string
}

// Head is the status line and header table of a response.
type Head struct {
	Status
	Header *header.Table
}

type state int

const (
	stateStatusLine state = iota
	stateHeaders
	stateBodyStart
)

// Reader assembles a response head. Body bytes that arrive together with the
// headers stay unread in the cursor once the head is complete. Nothing past
// the empty line is ever read: when that line ends on a lone CR or LF, the
// cursor drops the complementary byte if the body's first read starts with it.
type Reader struct {
	src    io.Reader
	cur    *wire.Cursor
	lines  *wire.LineScanner
	limits Limits

	state   state
	entries []header.Entry
	eof     bool
	started bool

	// OnFirstByte, when set, is called once the first response byte arrives.
	OnFirstByte func()
}

// NewReader returns a Reader consuming src through cur.
func NewReader(src io.Reader, cur *wire.Cursor, limits Limits) *Reader {
	if limits.MaxHeaderBytes <= 0 {
		limits.MaxHeaderBytes = constants.MaxHeaderBytes
	}
	if limits.MaxHeaderCount <= 0 {
		limits.MaxHeaderCount = constants.MaxHeaderCount
	}
	return &Reader{
		src:    src,
		cur:    cur,
		lines:  wire.NewLineScanner(cur),
		limits: limits,
	}
}

// ReadHead reads the status line and all headers.
func (r *Reader) ReadHead(ctx context.Context) (*Head, error) {
	st, err := r.ReadStatus(ctx)
	if err != nil {
		return nil, err
	}
	h, err := r.ReadHeaders(ctx)
	if err != nil {
		return nil, err
	}
	return &Head{Status: st, Header: h}, nil
}

// ReadStatus reads and parses the status line.
func (r *Reader) ReadStatus(ctx context.Context) (Status, error) {
	if r.state != stateStatusLine {
		return Status{}, fmt.Errorf("response: status line already read")
	}
	line, err := r.readLine(ctx, "reading status line")
	if err != nil {
		return Status{}, err
	}
	st, err := parseStatusLine(line)
	if err != nil {
		return Status{}, err
	}
	r.state = stateHeaders
	return st, nil
}

// ReadHeaders reads header lines up to the empty line and builds the table.
func (r *Reader) ReadHeaders(ctx context.Context) (*header.Table, error) {
	if r.state != stateHeaders {
		return nil, fmt.Errorf("response: headers read out of order")
	}
	for r.state == stateHeaders {
		line, err := r.readLine(ctx, "reading response headers")
		if err != nil {
			return nil, err
		}
		if err := r.handleHeaderLine(line); err != nil {
			return nil, err
		}
	}
	log.Infof("All HTTP response headers have been received (%d bytes prefetched)", r.cur.Len())
	return header.NewTable(r.entries), nil
}

func (r *Reader) handleHeaderLine(line string) error {
	switch {
	case line == "":
		r.state = stateBodyStart

	case line[0] == ' ' || line[0] == '\t':
		if len(r.entries) == 0 {
			return errors.NewProtocolError(errors.KindMalformedHeaders, "continuation line before the first header", nil)
		}
		fragment := strings.TrimRight(strings.TrimLeft(line, " \t"), " \t")
		if fragment == "" {
			return nil
		}
		last := &r.entries[len(r.entries)-1]
		if log.LogDebug() {
			log.Debugf("Appending %q to %q in %q header", fragment, last.Value, last.Name)
		}
		last.Value += " " + fragment

	default:
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return errors.NewProtocolError(errors.KindMalformedHeaders, fmt.Sprintf("header line without colon: %q", line), nil)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if !httpguts.ValidHeaderFieldName(name) {
			return errors.NewProtocolError(errors.KindMalformedHeaders, fmt.Sprintf("invalid header name %q", name), nil)
		}
		if len(r.entries) >= r.limits.MaxHeaderCount {
			return errors.NewProtocolError(errors.KindTooManyHeaders,
				fmt.Sprintf("more than %d response headers", r.limits.MaxHeaderCount), nil)
		}
		value = strings.TrimRight(strings.TrimLeft(value, " \t"), " \t")
		if log.LogDebug() {
			log.Debugf("Found header %q: %q -> goes into slot %d", name, value, len(r.entries))
		}
		r.entries = append(r.entries, header.Entry{Name: name, Value: value})
	}
	return nil
}

// readLine returns the next line, reading more data as needed.
func (r *Reader) readLine(ctx context.Context, operation string) (string, error) {
	for {
		if raw, ok := r.lines.Next(); ok {
			if r.cur.Consumed() > int64(r.limits.MaxHeaderBytes) {
				return "", r.tooLong()
			}
			line := string(raw)
			if log.LogDebug() {
				log.Debugf("Received line: %q", line)
			}
			return line, nil
		}
		if r.cur.Full() {
			r.cur.Compact()
		}
		if r.cur.Full() || r.cur.Consumed()+int64(r.cur.Len()) > int64(r.limits.MaxHeaderBytes) {
			return "", r.tooLong()
		}
		if r.eof {
			return "", errors.NewProtocolError(errors.KindUnexpectedEOF, "connection closed while "+operation, io.ErrUnexpectedEOF)
		}
		if err := r.fill(ctx, operation); err != nil {
			return "", err
		}
	}
}

// fill waits for readiness and performs one read. A read of zero bytes
// without error means nothing has arrived yet.
func (r *Reader) fill(ctx context.Context, operation string) error {
	if ctx.Err() != nil {
		return errors.FromContext(ctx, operation)
	}
	if w, ok := r.src.(ReadinessWaiter); ok {
		if err := w.WaitReadable(); err != nil {
			if ctx.Err() != nil {
				return errors.FromContext(ctx, operation)
			}
			return errors.NewReadError(operation, err)
		}
	}
	n, err := r.cur.Fill(r.src)
	if n > 0 && !r.started {
		r.started = true
		if r.OnFirstByte != nil {
			r.OnFirstByte()
		}
	}
	switch {
	case err == io.EOF:
		r.eof = true
	case err != nil:
		if ctx.Err() != nil {
			return errors.FromContext(ctx, operation)
		}
		return errors.NewReadError(operation, err)
	}
	return nil
}

func (r *Reader) tooLong() error {
	return errors.NewProtocolError(errors.KindHeadersTooLong,
		fmt.Sprintf("response headers are too long (> %d bytes)", r.limits.MaxHeaderBytes), nil)
}

func parseStatusLine(line string) (Status, error) {
	malformed := func(reason string) (Status, error) {
		return Status{}, errors.NewProtocolError(errors.KindMalformedStatusLine,
			fmt.Sprintf("malformed status line %q: %s", line, reason), nil)
	}

	proto, rest, ok := strings.Cut(line, " ")
	if !ok {
		return malformed("missing status code")
	}
	if !strings.HasPrefix(proto, "HTTP/") {
		return malformed("unknown protocol")
	}
	rest = strings.TrimLeft(rest, " ")
	code, reason, _ := strings.Cut(rest, " ")
	if len(code) != 3 {
		return malformed("status code must have 3 digits")
	}
	n, err := strconv.Atoi(code)
	if err != nil || code[0] < '0' || code[0] > '9' {
		return malformed("status code is not a number")
	}
	if n < 100 {
		return malformed("status code below 100")
	}
	return Status{Proto: proto, Code: n, Reason: reason}, nil
}
