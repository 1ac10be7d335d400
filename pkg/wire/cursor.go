// Package wire holds the bounded receive buffer shared by the response parser
// and the body decoders, and the line splitting rules applied to it.
package wire

import (
	stderrors "errors"
	"io"
)

// ErrBufferFull is returned by Fill when no capacity is left.
var ErrBufferFull = stderrors.New("wire: buffer full")

// Cursor owns a fixed-capacity receive buffer. buf[r:w] holds the unread
// bytes; 0 <= r <= w <= len(buf) always holds.
type Cursor struct {
	buf      []byte
	r, w     int
	consumed int64
	drop     byte // dropped if it is the next byte to arrive, 0 if none
}

// NewCursor allocates a cursor of the given capacity.
func NewCursor(size int) *Cursor {
	return &Cursor{buf: make([]byte, size)}
}

// Unread returns the buffered bytes not consumed yet. The slice is only valid
// until the next Fill, Compact or Reset.
func (c *Cursor) Unread() []byte {
	return c.buf[c.r:c.w]
}

// Len returns the number of unread bytes.
func (c *Cursor) Len() int { return c.w - c.r }

// Cap returns the buffer capacity.
func (c *Cursor) Cap() int { return len(c.buf) }

// Full reports whether there is no room left after the write position.
func (c *Cursor) Full() bool { return c.w == len(c.buf) }

// Consumed returns the number of bytes consumed since the cursor was created.
func (c *Cursor) Consumed() int64 { return c.consumed }

// Consume marks n unread bytes as read.
func (c *Cursor) Consume(n int) {
	if n < 0 || n > c.Len() {
		panic("wire: consume out of range")
	}
	c.r += n
	c.consumed += int64(n)
	if c.r == c.w {
		c.r, c.w = 0, 0
	}
}

// Fill performs one read from src into the free space after the write
// position and reports how many bytes arrived.
func (c *Cursor) Fill(src io.Reader) (int, error) {
	if c.Full() {
		return 0, ErrBufferFull
	}
	n, err := src.Read(c.buf[c.w:])
	if n < 0 || n > len(c.buf)-c.w {
		return 0, io.ErrNoProgress
	}
	c.w += n
	c.settle(n)
	return n, err
}

// FillAtMost is like Fill but reads no more than limit bytes.
func (c *Cursor) FillAtMost(src io.Reader, limit int) (int, error) {
	if c.Full() {
		return 0, ErrBufferFull
	}
	end := c.w + limit
	if end > len(c.buf) {
		end = len(c.buf)
	}
	n, err := src.Read(c.buf[c.w:end])
	if n < 0 || n > end-c.w {
		return 0, io.ErrNoProgress
	}
	c.w += n
	c.settle(n)
	return n, err
}

// DropNext arranges for b to be discarded if it is the next byte a Fill
// delivers. It has no effect while unread bytes are buffered.
func (c *Cursor) DropNext(b byte) {
	if c.Len() == 0 {
		c.drop = b
	}
}

// Dropping reports whether a DropNext is still waiting for its byte.
func (c *Cursor) Dropping() bool { return c.drop != 0 }

// settle applies a pending DropNext to the n bytes that just arrived. The
// reported fill count still includes a dropped byte.
func (c *Cursor) settle(n int) {
	if c.drop == 0 || n == 0 {
		return
	}
	if c.buf[c.r] == c.drop {
		c.Consume(1)
	}
	c.drop = 0
}

// Compact moves the unread bytes to the start of the buffer.
func (c *Cursor) Compact() {
	if c.r == 0 {
		return
	}
	n := copy(c.buf, c.buf[c.r:c.w])
	c.r, c.w = 0, n
}

// Drain writes up to n unread bytes to w and consumes what was written.
func (c *Cursor) Drain(w io.Writer, n int) (int, error) {
	if n > c.Len() {
		n = c.Len()
	}
	if n == 0 {
		return 0, nil
	}
	written, err := w.Write(c.buf[c.r : c.r+n])
	if written < 0 || written > n {
		written = 0
	}
	c.Consume(written)
	if err == nil && written < n {
		err = io.ErrShortWrite
	}
	return written, err
}
