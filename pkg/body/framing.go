// Package body decides how a response body is delimited and streams it from
// the connection to a sink.
package body

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/log"

	"github.com/WhileEndless/go-rawget/pkg/errors"
	"github.com/WhileEndless/go-rawget/pkg/header"
)

// Kind is the body delimiting strategy.
type Kind int

const (
	// Unbounded bodies are read until the peer closes the connection.
	Unbounded Kind = iota
	// FixedLength bodies carry exactly Framing.Length bytes.
	FixedLength
	// Chunked bodies use the chunked transfer coding.
	Chunked
)

func (k Kind) String() string {
	switch k {
	case FixedLength:
		return "fixed-length"
	case Chunked:
		return "chunked"
	default:
		return "unbounded"
	}
}

// Framing is decided once from the headers and never changes afterwards.
// Length is -1 unless Kind is FixedLength.
type Framing struct {
	Kind   Kind
	Length int64
}

func (f Framing) String() string {
	if f.Kind == FixedLength {
		return fmt.Sprintf("%s(%d)", f.Kind, f.Length)
	}
	return f.Kind.String()
}

// SelectFraming derives the framing from the response headers.
//
// Transfer-Encoding wins over Content-Length. The only accepted transfer
// coding is a single "chunked"; any content coding is refused because none is
// ever offered in the request.
func SelectFraming(h *header.Table) (Framing, error) {
	if enc, ok := h.Get("content-encoding"); ok {
		return Framing{}, errors.NewProtocolError(errors.KindUnsupportedContentEncoding,
			fmt.Sprintf("unsupported content encoding %q", enc), nil)
	}

	te, hasTE := h.Get("transfer-encoding")
	cl, hasCL := h.Get("content-length")

	if hasTE {
		if hasCL {
			log.Warnf("Both Transfer-Encoding and Content-Length are present, ignoring Content-Length %q", cl)
		}
		if !chunkedOnly(te) {
			return Framing{}, errors.NewProtocolError(errors.KindUnsupportedTransferEncoding,
				fmt.Sprintf("unsupported transfer encoding %q", te), nil)
		}
		return Framing{Kind: Chunked, Length: -1}, nil
	}

	if hasCL {
		n, err := parseContentLength(cl)
		if err != nil {
			return Framing{}, err
		}
		return Framing{Kind: FixedLength, Length: n}, nil
	}

	log.Warnf("Neither Content-Length nor Transfer-Encoding present, reading until the connection closes")
	return Framing{Kind: Unbounded, Length: -1}, nil
}

// chunkedOnly reports whether v is "chunked" surrounded only by whitespace
// and commas.
func chunkedOnly(v string) bool {
	lower := strings.ToLower(v)
	i := strings.Index(lower, "chunked")
	if i < 0 {
		return false
	}
	rest := lower[:i] + lower[i+len("chunked"):]
	return strings.Trim(rest, " \t,") == ""
}

// parseContentLength accepts a decimal length. Repeated Content-Length headers
// arrive joined with ", " and are accepted only when all values agree.
func parseContentLength(v string) (int64, error) {
	var length int64 = -1
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 63)
		if err != nil {
			return 0, errors.NewProtocolError(errors.KindMalformedContentLength,
				fmt.Sprintf("malformed Content-Length %q", v), err)
		}
		if length >= 0 && int64(n) != length {
			return 0, errors.NewProtocolError(errors.KindMalformedContentLength,
				fmt.Sprintf("conflicting Content-Length values %q", v), nil)
		}
		length = int64(n)
	}
	return length, nil
}
