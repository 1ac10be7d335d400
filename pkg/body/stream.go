package body

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fortio.org/log"

	"github.com/WhileEndless/go-rawget/pkg/constants"
	"github.com/WhileEndless/go-rawget/pkg/errors"
	"github.com/WhileEndless/go-rawget/pkg/wire"
)

const readOp = "reading response body"

// Stats describes a finished body transfer.
type Stats struct {
	Written  int64 // bytes handed to the sink
	Complete bool  // false when the peer closed before the framing was satisfied
	Trailing int   // buffered bytes past Content-Length that were dropped
	Chunks   int   // non-empty chunks decoded
}

// Streamer copies a response body whose first bytes may already be buffered
// in the cursor left behind by the header reader.
type Streamer struct {
	src   io.Reader
	cur   *wire.Cursor
	chunk int
}

// NewStreamer returns a Streamer reading src through cur. Reads are bounded by
// chunkSize and by the cursor capacity.
func NewStreamer(src io.Reader, cur *wire.Cursor, chunkSize int) *Streamer {
	if chunkSize <= 0 {
		chunkSize = constants.CopyChunkSize
	}
	return &Streamer{src: src, cur: cur, chunk: chunkSize}
}

// Copy streams the body described by f to dst.
func (s *Streamer) Copy(ctx context.Context, f Framing, dst io.Writer) (Stats, error) {
	var (
		st  Stats
		err error
	)
	switch f.Kind {
	case Chunked:
		st, err = s.copyChunked(ctx, dst)
	default:
		st, err = s.copyLength(ctx, f, dst)
	}
	if err == nil {
		log.LogVf("Body done: %d bytes written, complete=%v", st.Written, st.Complete)
	}
	return st, err
}

// fill performs one bounded read into the cursor. EOF is reported through
// the boolean and never as an error.
func (s *Streamer) fill(ctx context.Context, limit int) (bool, error) {
	if ctx.Err() != nil {
		return false, errors.FromContext(ctx, readOp)
	}
	if s.cur.Full() {
		s.cur.Compact()
	}
	if limit <= 0 || limit > s.chunk {
		limit = s.chunk
	}
	_, err := s.cur.FillAtMost(s.src, limit)
	switch {
	case err == io.EOF:
		return true, nil
	case err != nil:
		if ctx.Err() != nil {
			return false, errors.FromContext(ctx, readOp)
		}
		return false, errors.NewReadError(readOp, err)
	}
	return false, nil
}

func (s *Streamer) drain(dst io.Writer, n int, st *Stats) error {
	written, err := s.cur.Drain(dst, n)
	st.Written += int64(written)
	if err != nil {
		return errors.NewSinkError(err)
	}
	return nil
}

// copyLength handles FixedLength and Unbounded bodies.
func (s *Streamer) copyLength(ctx context.Context, f Framing, dst io.Writer) (Stats, error) {
	var st Stats
	bounded := f.Kind == FixedLength
	remaining := f.Length
	eof := false

	for {
		n := s.cur.Len()
		if bounded && int64(n) > remaining {
			n = int(remaining)
		}
		if err := s.drain(dst, n, &st); err != nil {
			return st, err
		}
		if bounded {
			remaining -= int64(n)
			if remaining == 0 {
				if extra := s.cur.Len(); extra > 0 {
					log.Warnf("Ignoring %d bytes of trailing data after Content-Length %d", extra, f.Length)
					st.Trailing = extra
					s.cur.Consume(extra)
				}
				st.Complete = true
				return st, nil
			}
		}
		if eof {
			break
		}

		limit := s.chunk
		if bounded && remaining < int64(limit) {
			limit = int(remaining)
		}
		var err error
		if eof, err = s.fill(ctx, limit); err != nil {
			return st, err
		}
	}

	if bounded {
		log.Warnf("Connection ended prematurely: received %d of %d bytes", st.Written, f.Length)
		return st, nil
	}
	st.Complete = true
	return st, nil
}

// copyChunked decodes the chunked transfer coding. Trailers after the last
// chunk are left unread.
func (s *Streamer) copyChunked(ctx context.Context, dst io.Writer) (Stats, error) {
	var st Stats
	for {
		line, eof, err := s.sizeLine(ctx)
		if err != nil {
			return st, err
		}
		if eof {
			log.Warnf("Chunked body ended prematurely before a chunk size line (%d bytes received)", st.Written)
			return st, nil
		}
		size, err := parseChunkSize(line)
		if err != nil {
			return st, err
		}
		if size == 0 {
			st.Complete = true
			return st, nil
		}
		log.LogVf("Chunk %d: %d bytes, %d already buffered", st.Chunks+1, size, s.cur.Len())
		st.Chunks++

		remaining := size
		for remaining > 0 {
			if s.cur.Len() == 0 {
				if eof {
					log.Warnf("Chunked body ended prematurely: %d bytes of chunk missing", remaining)
					return st, nil
				}
				if eof, err = s.fill(ctx, int(min(remaining, int64(s.chunk)))); err != nil {
					return st, err
				}
				continue
			}
			n := int(min(remaining, int64(s.cur.Len())))
			if err := s.drain(dst, n, &st); err != nil {
				return st, err
			}
			remaining -= int64(n)
		}
		s.cur.Compact()
	}
}

// sizeLine returns the next chunk size line after stripping at most one
// terminator left over from the previous chunk. The strip is recomputed on
// every attempt so a terminator split across reads is still stripped whole.
// The line itself never waits for more data once its first terminator byte
// is buffered.
func (s *Streamer) sizeLine(ctx context.Context) (string, bool, error) {
	eof := false
	for {
		p := s.cur.Unread()
		k := wire.StripTerminator(p)
		if line, n, ok := wire.SplitLine(p[k:]); ok {
			last := p[k+n-1]
			split := k+n == len(p) && n == len(line)+1
			size := string(line)
			s.cur.Consume(k + n)
			if split {
				// a one-byte terminator at the end of the data may be the
				// first half of a pair
				s.cur.DropNext(wire.Complement(last))
			}
			return size, false, nil
		}
		if eof {
			return "", true, nil
		}
		if s.cur.Full() {
			s.cur.Compact()
			if s.cur.Full() {
				return "", false, errors.NewProtocolError(errors.KindMalformedChunkSize,
					fmt.Sprintf("chunk size line longer than %d bytes", s.cur.Cap()), nil)
			}
		}

		var err error
		if eof, err = s.fill(ctx, 0); err != nil {
			return "", false, err
		}
	}
}

// parseChunkSize reads the leading hex digits of a size line. Anything after
// them, such as a chunk extension, is ignored.
func parseChunkSize(line string) (int64, error) {
	digits := strings.TrimLeft(line, " \t")
	end := 0
	for end < len(digits) && isHex(digits[end]) {
		end++
	}
	if end == 0 || end > constants.MaxChunkSizeHex {
		return 0, errors.NewProtocolError(errors.KindMalformedChunkSize,
			fmt.Sprintf("malformed chunk size line %q", line), nil)
	}
	n, err := strconv.ParseUint(digits[:end], 16, 63)
	if err != nil {
		return 0, errors.NewProtocolError(errors.KindMalformedChunkSize,
			fmt.Sprintf("chunk size %q out of range", digits[:end]), err)
	}
	return int64(n), nil
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
