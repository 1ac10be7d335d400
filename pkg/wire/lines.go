package wire

import "bytes"

// Complement returns the byte that completes a two-byte terminator started
// by c.
func Complement(c byte) byte {
	if c == '\r' {
		return '\n'
	}
	return '\r'
}

// indexTerminator returns the index of the earliest '\r' or '\n' in p, or -1.
func indexTerminator(p []byte) int {
	return bytes.IndexAny(p, "\r\n")
}

// SplitLine finds the earliest line terminator in p. It returns the line
// without its terminator and the number of bytes the line occupies, terminator
// included. "\r\n" and "\n\r" count as one terminator, as do lone '\r' or '\n'.
func SplitLine(p []byte) (line []byte, n int, ok bool) {
	i := indexTerminator(p)
	if i < 0 {
		return nil, 0, false
	}
	n = i + 1
	if n < len(p) && p[n] == Complement(p[i]) {
		n++
	}
	return p[:i], n, true
}

// StripTerminator returns the length (0, 1 or 2) of the single line terminator
// p starts with. Only one terminator is ever stripped.
func StripTerminator(p []byte) int {
	if len(p) == 0 || (p[0] != '\r' && p[0] != '\n') {
		return 0
	}
	if len(p) > 1 && p[1] == Complement(p[0]) {
		return 2
	}
	return 1
}

// LineScanner splits the unread region of a Cursor into lines. Bytes already
// found to hold no terminator are not scanned again when more data arrives.
//
// A terminator that ends the buffered data may be the first half of a pair.
// The scanner never waits for the other half; it asks the cursor to drop that
// byte if it is the next one to arrive.
type LineScanner struct {
	cur     *Cursor
	scanned int // unread bytes known to contain no terminator
}

// NewLineScanner returns a scanner over cur.
func NewLineScanner(cur *Cursor) *LineScanner {
	return &LineScanner{cur: cur}
}

// Next returns the next complete line and consumes it from the cursor along
// with its terminator. The returned slice aliases the cursor buffer and must be
// copied before the next Fill. It reports false when no full line is buffered.
func (s *LineScanner) Next() ([]byte, bool) {
	p := s.cur.Unread()

	i := indexTerminator(p[s.scanned:])
	if i < 0 {
		s.scanned = len(p)
		return nil, false
	}
	i += s.scanned

	n := i + 1
	if n < len(p) && p[n] == Complement(p[i]) {
		n++
	}
	split := n == len(p) && n == i+1

	line := p[:i]
	s.cur.Consume(n)
	s.scanned = 0
	if split {
		s.cur.DropNext(Complement(p[i]))
	}
	return line, true
}

// Pending reports whether the last terminator ended the buffered data and its
// complementary byte has not been seen yet.
func (s *LineScanner) Pending() bool {
	return s.cur.Dropping()
}
