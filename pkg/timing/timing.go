// Package timing provides performance measurement utilities for HTTP requests.
package timing

import (
	"fmt"
	"time"
)

// Metrics captures timing information for one top-level request. Phase
// durations are summed over every redirect hop.
type Metrics struct {
	// Resolve is the time spent resolving host names
	Resolve time.Duration `json:"resolve"`

	// Connect is the time spent establishing TCP connections
	Connect time.Duration `json:"connect"`

	// TTFB is the time between the request being sent and the first response byte
	TTFB time.Duration `json:"ttfb"`

	// Headers is the time spent receiving status lines and headers
	Headers time.Duration `json:"headers"`

	// Body is the time spent streaming the final response body
	Body time.Duration `json:"body"`

	// Total is the end-to-end time, including every hop
	Total time.Duration `json:"total"`

	// Hops is the number of request attempts (1 + redirects followed)
	Hops int `json:"hops"`
}

// Timer helps measure request timings.
type Timer struct {
	start        time.Time
	resolveStart time.Time
	connectStart time.Time
	ttfbStart    time.Time
	headersStart time.Time
	bodyStart    time.Time
	m            Metrics
}

// NewTimer creates a new timing measurement session.
func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

// StartHop marks the beginning of a new request attempt.
func (t *Timer) StartHop() {
	t.m.Hops++
}

// StartResolve marks the beginning of name resolution.
func (t *Timer) StartResolve() {
	t.resolveStart = time.Now()
}

// EndResolve marks the end of name resolution.
func (t *Timer) EndResolve() {
	t.m.Resolve += since(t.resolveStart)
}

// StartConnect marks the beginning of the TCP connection.
func (t *Timer) StartConnect() {
	t.connectStart = time.Now()
}

// EndConnect marks the end of the TCP connection.
func (t *Timer) EndConnect() {
	t.m.Connect += since(t.connectStart)
}

// StartTTFB marks when the request has been sent and the response is awaited.
func (t *Timer) StartTTFB() {
	t.ttfbStart = time.Now()
	t.headersStart = t.ttfbStart
}

// EndTTFB marks the first response byte. Only the first call after StartTTFB counts.
func (t *Timer) EndTTFB() {
	if t.ttfbStart.IsZero() {
		return
	}
	t.m.TTFB += since(t.ttfbStart)
	t.ttfbStart = time.Time{}
}

// EndHeaders marks the end of the header block.
func (t *Timer) EndHeaders() {
	t.m.Headers += since(t.headersStart)
}

// StartBody marks the beginning of body streaming.
func (t *Timer) StartBody() {
	t.bodyStart = time.Now()
}

// EndBody marks the end of body streaming.
func (t *Timer) EndBody() {
	t.m.Body += since(t.bodyStart)
}

// Elapsed returns the time since the timer was created.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// GetMetrics returns the calculated timing metrics.
func (t *Timer) GetMetrics() Metrics {
	m := t.m
	m.Total = t.Elapsed()
	return m
}

func since(start time.Time) time.Duration {
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}

// GetConnectionTime returns the total connection establishment time (resolve + connect).
func (m Metrics) GetConnectionTime() time.Duration {
	return m.Resolve + m.Connect
}

// String provides a human-readable representation of the metrics.
func (m Metrics) String() string {
	return fmt.Sprintf("Resolve: %v, Connect: %v, TTFB: %v, Headers: %v, Body: %v, Total: %v, Hops: %d",
		m.Resolve, m.Connect, m.TTFB, m.Headers, m.Body, m.Total, m.Hops)
}
