package body

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WhileEndless/go-rawget/pkg/errors"
	"github.com/WhileEndless/go-rawget/pkg/header"
	"github.com/WhileEndless/go-rawget/pkg/wire"
)

// fragments returns its parts one Read at a time.
type fragments struct {
	parts []string
}

func (f *fragments) Read(p []byte) (int, error) {
	if len(f.parts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.parts[0])
	f.parts[0] = f.parts[0][n:]
	if f.parts[0] == "" {
		f.parts = f.parts[1:]
	}
	return n, nil
}

func table(kv ...string) *header.Table {
	var entries []header.Entry
	for i := 0; i+1 < len(kv); i += 2 {
		entries = append(entries, header.Entry{Name: kv[i], Value: kv[i+1]})
	}
	return header.NewTable(entries)
}

// stream runs a Streamer with prefetched bytes already in the cursor.
func stream(t *testing.T, f Framing, size int, prefetched string, parts ...string) (string, Stats, error) {
	t.Helper()
	cur := wire.NewCursor(size)
	if prefetched != "" {
		_, err := cur.Fill(strings.NewReader(prefetched))
		require.NoError(t, err)
	}
	var out bytes.Buffer
	st, err := NewStreamer(&fragments{parts: parts}, cur, size).Copy(context.Background(), f, &out)
	return out.String(), st, err
}

func TestSelectFraming(t *testing.T) {
	tests := []struct {
		name    string
		headers *header.Table
		want    Framing
	}{
		{"content length", table("content-length", "5"), Framing{FixedLength, 5}},
		{"zero length", table("content-length", "0"), Framing{FixedLength, 0}},
		{"chunked", table("transfer-encoding", "chunked"), Framing{Chunked, -1}},
		{"chunked mixed case", table("transfer-encoding", " Chunked ,"), Framing{Chunked, -1}},
		{"te over cl", table("transfer-encoding", "chunked", "content-length", "not even a number"), Framing{Chunked, -1}},
		{"repeated identical cl", table("content-length", "7", "content-length", "7"), Framing{FixedLength, 7}},
		{"neither", table("content-type", "text/plain"), Framing{Unbounded, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectFraming(tt.headers)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSelectFramingErrors(t *testing.T) {
	tests := []struct {
		name    string
		headers *header.Table
		kind    errors.Kind
	}{
		{"content encoding", table("content-encoding", "gzip", "content-length", "3"), errors.KindUnsupportedContentEncoding},
		{"gzip transfer", table("transfer-encoding", "gzip, chunked"), errors.KindUnsupportedTransferEncoding},
		{"identity transfer", table("transfer-encoding", "identity"), errors.KindUnsupportedTransferEncoding},
		{"chunked twice", table("transfer-encoding", "chunked, chunked"), errors.KindUnsupportedTransferEncoding},
		{"bad length", table("content-length", "12abc"), errors.KindMalformedContentLength},
		{"negative length", table("content-length", "-1"), errors.KindMalformedContentLength},
		{"conflicting lengths", table("content-length", "1", "content-length", "2"), errors.KindMalformedContentLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectFraming(tt.headers)
			require.Error(t, err)
			require.Equal(t, errors.ErrorTypeProtocol, errors.GetErrorType(err))
			require.Equal(t, tt.kind, errors.GetKind(err))
		})
	}
}

func TestFramingString(t *testing.T) {
	require.Equal(t, "fixed-length(42)", Framing{FixedLength, 42}.String())
	require.Equal(t, "chunked", Framing{Chunked, -1}.String())
	require.Equal(t, "unbounded", Framing{Unbounded, -1}.String())
}

func TestCopyFixedLength(t *testing.T) {
	f := Framing{FixedLength, 11}

	out, st, err := stream(t, f, 16, "hello", " wor", "ld")
	require.NoError(t, err)
	require.Equal(t, "hello world", out)
	require.EqualValues(t, 11, st.Written)
	require.True(t, st.Complete)

	// prefetched data past the declared length is dropped
	out, st, err = stream(t, Framing{FixedLength, 5}, 16, "helloEXTRA")
	require.NoError(t, err)
	require.Equal(t, "hello", out)
	require.Equal(t, 5, st.Trailing)
	require.True(t, st.Complete)

	// nothing is read past the declared length
	src := &fragments{parts: []string{"abc", "def"}}
	cur := wire.NewCursor(16)
	var buf bytes.Buffer
	_, err = NewStreamer(src, cur, 16).Copy(context.Background(), Framing{FixedLength, 3}, &buf)
	require.NoError(t, err)
	require.Equal(t, "abc", buf.String())
	require.Equal(t, []string{"def"}, src.parts)
}

func TestCopyFixedLengthPremature(t *testing.T) {
	out, st, err := stream(t, Framing{FixedLength, 100}, 16, "abc", "defg")
	require.NoError(t, err)
	require.Equal(t, "abcdefg", out)
	require.EqualValues(t, 7, st.Written)
	require.False(t, st.Complete)
}

func TestCopyUnbounded(t *testing.T) {
	long := strings.Repeat("0123456789", 50)
	out, st, err := stream(t, Framing{Unbounded, -1}, 32, "pre-", long[:123], long[123:])
	require.NoError(t, err)
	require.Equal(t, "pre-"+long, out)
	require.True(t, st.Complete)
}

func TestCopyChunkedScenario(t *testing.T) {
	out, st, err := stream(t, Framing{Chunked, -1}, 64, "", "4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n")
	require.NoError(t, err)
	require.Equal(t, "Wikipedia", out)
	require.True(t, st.Complete)
	require.Equal(t, 2, st.Chunks)
}

func TestCopyChunkedTolerance(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"extension", []string{"4;name=value\r\nWiki\r\n0\r\n\r\n"}, "Wiki"},
		{"bare lf", []string{"4\nWiki\n5\npedia\n0\n\n"}, "Wikipedia"},
		{"lf cr", []string{"4\n\rWiki\n\r0\n\r"}, "Wiki"},
		{"upper hex", []string{"A\r\n0123456789\r\n0\r\n\r\n"}, "0123456789"},
		{"terminator split from payload", []string{"4\r", "\nWiki\r", "\n0\r\n"}, "Wiki"},
		{"terminator split before size", []string{"4\r\nWiki\r", "\n5\r\npedia\r\n0\r\n"}, "Wikipedia"},
		{"payload across reads", []string{"a\r\n01234", "567", "89\r\n0\r\n"}, "0123456789"},
		{"zero with trailer", []string{"3\r\nabc\r\n0; ext\r\nX-Trailer: 1\r\n\r\n"}, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, st, err := stream(t, Framing{Chunked, -1}, 16, "", tt.parts...)
			require.NoError(t, err)
			require.Equal(t, tt.want, out)
			require.True(t, st.Complete)
		})
	}
}

func TestCopyChunkedPremature(t *testing.T) {
	for _, parts := range [][]string{
		{"4\r\nWi"},
		{"4\r\nWiki\r\n"},
		{"4\r\nWiki\r\n5"},
		{},
	} {
		_, st, err := stream(t, Framing{Chunked, -1}, 16, "", parts...)
		require.NoError(t, err, "%q", parts)
		require.False(t, st.Complete, "%q", parts)
	}
}

func TestCopyChunkedMalformed(t *testing.T) {
	for _, raw := range []string{
		"zz\r\nabc\r\n",
		"\r\n\r\nabc",
		";ext\r\n",
		"11111111111111111\r\n",
		strings.Repeat("f", 20) + "\r\n",
		"4" + strings.Repeat(" ", 40) + "\r\nWiki",
	} {
		_, _, err := stream(t, Framing{Chunked, -1}, 16, "", raw)
		require.Error(t, err, "%q", raw)
		require.Equal(t, errors.KindMalformedChunkSize, errors.GetKind(err), "%q", raw)
		require.ErrorIs(t, err, errors.ErrMalformedChunkSize)
	}
}

// stalled delivers its data and then fails, like a peer that keeps the
// connection open without sending anything more.
type stalled struct {
	data string
}

func (s *stalled) Read(p []byte) (int, error) {
	if s.data == "" {
		return 0, stderrors.New("read after the body was complete")
	}
	n := copy(p, s.data)
	s.data = s.data[n:]
	return n, nil
}

func TestCopyStopsWhenFramingSatisfied(t *testing.T) {
	tests := []struct {
		name string
		f    Framing
		raw  string
		want string
	}{
		{"last chunk bare lf", Framing{Chunked, -1}, "4\nWiki\n0\n", "Wiki"},
		{"last chunk bare cr", Framing{Chunked, -1}, "4\rWiki\r0\r", "Wiki"},
		{"last chunk crlf", Framing{Chunked, -1}, "4\r\nWiki\r\n0\r\n", "Wiki"},
		{"empty fixed length", Framing{FixedLength, 0}, "", ""},
		{"fixed length", Framing{FixedLength, 4}, "Wiki", "Wiki"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			st, err := NewStreamer(&stalled{data: tt.raw}, wire.NewCursor(16), 16).
				Copy(context.Background(), tt.f, &out)
			require.NoError(t, err)
			require.Equal(t, tt.want, out.String())
			require.True(t, st.Complete)
		})
	}
}

// encodeChunked writes data as chunks of the given sizes, cycling through them.
func encodeChunked(data []byte, sizes []int) string {
	var b strings.Builder
	for i := 0; len(data) > 0; i++ {
		n := sizes[i%len(sizes)]
		if n > len(data) {
			n = len(data)
		}
		fmt.Fprintf(&b, "%x\r\n", n)
		b.Write(data[:n])
		b.WriteString("\r\n")
		data = data[n:]
	}
	b.WriteString("0\r\n\r\n")
	return b.String()
}

// split cuts s into pieces at random positions.
func split(rng *rand.Rand, s string) []string {
	var parts []string
	for len(s) > 0 {
		n := 1 + rng.Intn(40)
		if n > len(s) {
			n = len(s)
		}
		parts = append(parts, s[:n])
		s = s[n:]
	}
	return parts
}

func TestChunkedRoundTrip(t *testing.T) {
	// Encoding arbitrary bytes as chunks and decoding them through arbitrary
	// read boundaries gives back the original bytes.
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		data := make([]byte, rng.Intn(600))
		rng.Read(data)
		sizes := []int{1 + rng.Intn(100), 1 + rng.Intn(10), 1 + rng.Intn(300)}
		encoded := encodeChunked(data, sizes)

		out, st, err := stream(t, Framing{Chunked, -1}, 32, "", split(rng, encoded)...)
		require.NoError(t, err, "iteration %d", i)
		require.True(t, st.Complete, "iteration %d", i)
		require.Equal(t, string(data), out, "iteration %d", i)
		require.EqualValues(t, len(data), st.Written)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, stderrors.New("disk full")
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return len(p) / 2, nil
}

func TestCopySinkErrors(t *testing.T) {
	for _, w := range []io.Writer{failingWriter{}, shortWriter{}} {
		cur := wire.NewCursor(16)
		_, err := NewStreamer(&fragments{parts: []string{"abcdef"}}, cur, 16).
			Copy(context.Background(), Framing{FixedLength, 6}, w)
		require.Error(t, err)
		require.Equal(t, errors.ErrorTypeIO, errors.GetErrorType(err))
		require.Equal(t, errors.KindSinkWrite, errors.GetKind(err))
	}
}

type brokenReader struct{}

func (brokenReader) Read(p []byte) (int, error) {
	return 0, stderrors.New("connection reset by peer")
}

func TestCopyReadError(t *testing.T) {
	var out bytes.Buffer
	_, err := NewStreamer(brokenReader{}, wire.NewCursor(16), 16).
		Copy(context.Background(), Framing{Unbounded, -1}, &out)
	require.Error(t, err)
	require.Equal(t, errors.ErrorTypeNetwork, errors.GetErrorType(err))
	require.Equal(t, errors.KindRead, errors.GetKind(err))
}

func TestCopyDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	var out bytes.Buffer
	_, err := NewStreamer(&fragments{parts: []string{"data"}}, wire.NewCursor(16), 16).
		Copy(ctx, Framing{FixedLength, 4}, &out)
	require.Error(t, err)
	require.True(t, errors.IsTimeoutError(err))
	require.ErrorIs(t, err, errors.ErrDeadlineExceeded)
}
