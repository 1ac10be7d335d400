// Package transport provides the low-level connection handling for rawget.
package transport

import (
	"context"
	"net"
	"time"

	"fortio.org/log"

	"github.com/WhileEndless/go-rawget/pkg/errors"
	"github.com/WhileEndless/go-rawget/pkg/target"
	"github.com/WhileEndless/go-rawget/pkg/timing"
)

// aLongTimeAgo is a deadline in the past, used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Transport resolves targets and opens connections to them.
type Transport struct {
	resolver Resolver
	dialer   net.Dialer
}

// New creates a Transport using the system resolver.
func New() *Transport {
	return NewWithResolver(&NetResolver{})
}

// NewWithResolver creates a Transport with a custom resolver.
func NewWithResolver(resolver Resolver) *Transport {
	if resolver == nil {
		resolver = &NetResolver{}
	}
	return &Transport{resolver: resolver}
}

// Connect resolves t and connects to the first candidate endpoint. The returned
// connection carries the deadline of ctx and is interrupted when ctx is done.
func (tr *Transport) Connect(ctx context.Context, t *target.Target, timer *timing.Timer) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.FromContext(ctx, "connecting to "+t.Address())
	}

	timer.StartResolve()
	candidates, err := tr.resolver.Resolve(ctx, t.Host, t.Port)
	timer.EndResolve()
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.FromContext(ctx, "resolving "+t.Host)
		}
		return nil, errors.NewDNSError(t.Host, err)
	}
	if len(candidates) == 0 {
		return nil, errors.NewDNSError(t.Host, &net.DNSError{Err: "no addresses found", Name: t.Host, IsNotFound: true})
	}

	ep := candidates[0]
	log.Infof("Connecting to %s (%s)...", t.Address(), ep.Address)
	timer.StartConnect()
	nc, err := tr.dialer.DialContext(ctx, ep.Network, ep.Address)
	timer.EndConnect()
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.FromContext(ctx, "connecting to "+t.Address())
		}
		return nil, errors.NewConnectionError(t.Host, t.Port, err)
	}
	log.Infof("Connected to %s OK", t.Address())

	return Wrap(ctx, nc), nil
}

// Conn is a connection bound to the deadline and cancellation of a context.
type Conn struct {
	net.Conn
	stop func() bool
}

// Wrap binds nc to ctx: the context deadline becomes the I/O deadline and
// cancellation interrupts any blocked read or write.
func Wrap(ctx context.Context, nc net.Conn) *Conn {
	if deadline, ok := ctx.Deadline(); ok {
		if err := nc.SetDeadline(deadline); err != nil {
			log.Warnf("Unable to set deadline on %v: %v", nc.RemoteAddr(), err)
		}
	}
	return &Conn{
		Conn: nc,
		stop: context.AfterFunc(ctx, func() {
			nc.SetDeadline(aLongTimeAgo) // nolint: errcheck
		}),
	}
}

// WaitReadable blocks until the connection has data (or EOF) to read, or the
// deadline passes. Connections without a pollable descriptor return at once and
// rely on the blocking read.
func (c *Conn) WaitReadable() error {
	return waitReadable(c.Conn)
}

// Close releases the connection.
func (c *Conn) Close() error {
	if c.stop != nil {
		c.stop()
	}
	return c.Conn.Close()
}
