package client

import (
	"time"

	"github.com/WhileEndless/go-rawget/pkg/constants"
	"github.com/WhileEndless/go-rawget/pkg/transport"
)

// Options controls one top-level GET, including every redirect hop it follows.
type Options struct {
	// Timeout is the single deadline for the whole operation: resolution,
	// connect, send and receive, across all redirects. It is never refreshed.
	Timeout time.Duration

	// MaxRedirects is the number of 3xx hops that may be followed.
	MaxRedirects int

	MaxHeaderBytes int // status line plus header lines, terminators included
	MaxHeaderCount int
	CopyChunkSize  int // largest single read while streaming a body

	UserAgent string

	// Resolver replaces the system resolver when set.
	Resolver transport.Resolver
	// Network is "tcp", "tcp4" or "tcp6" and only applies to the system resolver.
	Network string
	// StaticHosts maps host names to fixed IP addresses ahead of the resolver.
	StaticHosts map[string]string
}

// DefaultOptions returns the options used for a zero Options value.
func DefaultOptions() Options {
	return Options{
		Timeout:        constants.DefaultRequestTimeout,
		MaxRedirects:   constants.DefaultMaxRedirects,
		MaxHeaderBytes: constants.MaxHeaderBytes,
		MaxHeaderCount: constants.MaxHeaderCount,
		CopyChunkSize:  constants.CopyChunkSize,
		UserAgent:      constants.UserAgent,
		Network:        "tcp",
	}
}

// withDefaults fills unset fields. A negative MaxRedirects disables redirects.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.MaxRedirects == 0 {
		o.MaxRedirects = d.MaxRedirects
	} else if o.MaxRedirects < 0 {
		o.MaxRedirects = 0
	}
	if o.MaxHeaderBytes <= 0 {
		o.MaxHeaderBytes = d.MaxHeaderBytes
	}
	if o.MaxHeaderCount <= 0 {
		o.MaxHeaderCount = d.MaxHeaderCount
	}
	if o.CopyChunkSize <= 0 {
		o.CopyChunkSize = d.CopyChunkSize
	}
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	if o.Network == "" {
		o.Network = d.Network
	}
	return o
}

// resolver builds the resolver chain described by the options.
func (o Options) resolver() transport.Resolver {
	r := o.Resolver
	if r == nil {
		r = &transport.NetResolver{Network: o.Network}
	}
	if len(o.StaticHosts) > 0 {
		r = &transport.StaticResolver{Hosts: o.StaticHosts, Next: r}
	}
	return r
}
