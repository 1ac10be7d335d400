// Package client provides the main HTTP GET client API.
package client

import (
	"context"
	"fmt"
	"io"

	"fortio.org/log"

	"github.com/WhileEndless/go-rawget/pkg/body"
	"github.com/WhileEndless/go-rawget/pkg/errors"
	"github.com/WhileEndless/go-rawget/pkg/header"
	"github.com/WhileEndless/go-rawget/pkg/response"
	"github.com/WhileEndless/go-rawget/pkg/sink"
	"github.com/WhileEndless/go-rawget/pkg/target"
	"github.com/WhileEndless/go-rawget/pkg/timing"
	"github.com/WhileEndless/go-rawget/pkg/transport"
	"github.com/WhileEndless/go-rawget/pkg/wire"
)

// Result describes the final response of a GET, after all redirects.
type Result struct {
	URL        string
	Proto      string
	StatusCode int
	Reason     string
	Redirects  int

	// NoContent is set for 204 responses; nothing was written to the sink.
	NoContent bool

	Framing  body.Framing
	Expected int64 // declared body length, -1 when unknown
	Written  int64 // bytes handed to the sink
	Complete bool  // false when the body ended before its framing was satisfied
	Trailing int   // bytes past Content-Length that were dropped

	Header  *header.Table
	Metrics timing.Metrics
}

// Client performs GET requests over plain HTTP/1.1, one connection per hop.
type Client struct {
	transport *transport.Transport
	opts      Options
}

// New returns a Client configured by opts. Zero fields take their defaults.
func New(opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		transport: transport.NewWithResolver(opts.resolver()),
		opts:      opts,
	}
}

// NewWithTransport creates a Client with a custom transport.
func NewWithTransport(t *transport.Transport, opts Options) *Client {
	return &Client{
		transport: t,
		opts:      opts.withDefaults(),
	}
}

// Options returns the effective options.
func (c *Client) Options() Options {
	return c.opts
}

// request carries the state of one top-level call from hop to hop.
type request struct {
	target *target.Target
	depth  int // redirects followed so far
}

// Get fetches rawURL and streams the final body to dst. If dst implements
// sink.Opener it is opened only once a body is about to be written.
//
// One deadline, Options.Timeout, bounds the whole call including redirects.
// A body that ends before its declared length or before the last chunk is not
// an error; Result.Complete reports it.
func (c *Client) Get(ctx context.Context, rawURL string, dst io.Writer) (*Result, error) {
	if c.transport == nil {
		return nil, fmt.Errorf("client transport is nil")
	}
	if dst == nil {
		dst = io.Discard
	}

	t, err := target.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	timer := timing.NewTimer()
	req := request{target: t}
	for {
		res, next, err := c.fetch(ctx, req, dst, timer)
		if err != nil {
			return nil, err
		}
		if next == nil {
			res.Redirects = req.depth
			res.Metrics = timer.GetMetrics()
			return res, nil
		}
		log.Infof("Following redirect %d/%d to %s", req.depth+1, c.opts.MaxRedirects, next)
		req = request{target: next, depth: req.depth + 1}
	}
}

// fetch performs one hop. It returns either the final result or the target of
// a redirect. The connection is closed before fetch returns on every path.
func (c *Client) fetch(ctx context.Context, req request, dst io.Writer, timer *timing.Timer) (*Result, *target.Target, error) {
	t := req.target
	timer.StartHop()

	conn, err := c.transport.Connect(ctx, t, timer)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Close()
	c.logElapsed(timer, "connected")

	if err := writeRequest(ctx, conn, buildRequest(t, c.opts.UserAgent)); err != nil {
		return nil, nil, err
	}
	c.logElapsed(timer, "request sent")

	cur := wire.NewCursor(c.opts.MaxHeaderBytes)
	rd := response.NewReader(conn, cur, response.Limits{
		MaxHeaderBytes: c.opts.MaxHeaderBytes,
		MaxHeaderCount: c.opts.MaxHeaderCount,
	})
	timer.StartTTFB()
	rd.OnFirstByte = timer.EndTTFB

	st, err := rd.ReadStatus(ctx)
	if err != nil {
		return nil, nil, err
	}
	res := &Result{
		URL:        t.String(),
		Proto:      st.Proto,
		StatusCode: st.Code,
		Reason:     st.Reason,
		Expected:   -1,
	}

	switch {
	case st.Code >= 400:
		return nil, nil, errors.NewHTTPStatusError(st.Code, st.Reason)
	case st.Code < 200:
		return nil, nil, errors.NewPolicyError(errors.KindUnexpectedInformationalResponse,
			fmt.Sprintf("server returned %d %s, a 1xx response to a request without body or Upgrade", st.Code, st.Reason))
	case st.Code == 204:
		log.Infof("Server returned 204 No Content, there is nothing to save")
		timer.EndHeaders()
		res.NoContent = true
		res.Complete = true
		res.Framing = body.Framing{Kind: body.FixedLength, Length: 0}
		res.Expected = 0
		return res, nil, nil
	}

	h, err := rd.ReadHeaders(ctx)
	timer.EndHeaders()
	if err != nil {
		return nil, nil, err
	}
	res.Header = h
	c.logElapsed(timer, "headers received")

	if st.Code >= 300 {
		next, err := c.redirect(req, h)
		return nil, next, err
	}

	framing, err := body.SelectFraming(h)
	if err != nil {
		return nil, nil, err
	}
	res.Framing = framing
	res.Expected = framing.Length
	log.Infof("Receiving %s body", framing)

	if o, ok := dst.(sink.Opener); ok {
		if err := o.Open(); err != nil {
			return nil, nil, err
		}
	}

	timer.StartBody()
	stats, err := body.NewStreamer(conn, cur, c.opts.CopyChunkSize).Copy(ctx, framing, dst)
	timer.EndBody()
	if err != nil {
		return nil, nil, err
	}
	res.Written = stats.Written
	res.Complete = stats.Complete
	res.Trailing = stats.Trailing
	c.logElapsed(timer, "body received")
	return res, nil, nil
}

// redirect validates a 3xx response and returns where it points.
func (c *Client) redirect(req request, h *header.Table) (*target.Target, error) {
	location, ok := h.Get("location")
	if !ok {
		return nil, errors.NewPolicyError(errors.KindMissingLocation, "redirect response without Location header")
	}
	log.Infof("Server returned redirect: %s", location)
	if req.depth+1 > c.opts.MaxRedirects {
		return nil, errors.NewPolicyError(errors.KindTooManyRedirects,
			fmt.Sprintf("stopped after %d redirects", c.opts.MaxRedirects))
	}
	return req.target.Resolve(location)
}

func (c *Client) logElapsed(timer *timing.Timer, phase string) {
	log.LogVf("%s: started %.3f seconds ago", phase, timer.Elapsed().Seconds())
}
