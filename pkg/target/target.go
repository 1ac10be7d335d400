// Package target splits request URLs into the parts the client dials and sends.
package target

import (
	"net"
	"strconv"
	"strings"

	"fortio.org/log"
	"golang.org/x/net/http/httpguts"

	"github.com/WhileEndless/go-rawget/pkg/constants"
	"github.com/WhileEndless/go-rawget/pkg/errors"
)

// Target is a decomposed plaintext HTTP URL.
type Target struct {
	Scheme string
	Host   string // ASCII host, IPv6 literals without brackets
	Port   string
	Path   string // without the leading slash
}

// Parse decomposes raw of the form [http://]host[:port]/path.
func Parse(raw string) (*Target, error) {
	rest := raw
	scheme, afterScheme, found := strings.Cut(raw, ":")
	if !found {
		log.Warnf("No scheme in URL %q, assuming %s", raw, constants.DefaultScheme)
		scheme = constants.DefaultScheme
	} else {
		if !strings.EqualFold(scheme, "http") {
			if strings.EqualFold(scheme, "https") {
				return nil, errors.NewInputError(errors.KindUnsupportedScheme, "HTTPS is not implemented")
			}
			return nil, errors.NewInputError(errors.KindUnsupportedScheme, "unsupported scheme "+strconv.Quote(scheme))
		}
		if !strings.HasPrefix(afterScheme, "//") {
			return nil, errors.NewInputError(errors.KindMalformedURL, "malformed URL (no // after scheme): "+raw)
		}
		rest = afterScheme[2:]
		scheme = constants.DefaultScheme
	}

	hostPort, path, found := strings.Cut(rest, "/")
	if !found {
		return nil, errors.NewInputError(errors.KindMalformedURL, "malformed URL (no path separator): "+raw)
	}

	host, port, err := splitHostPort(hostPort)
	if err != nil {
		return nil, err
	}
	return &Target{Scheme: scheme, Host: host, Port: port, Path: path}, nil
}

// splitHostPort splits on the last colon, honouring bracketed IPv6 literals.
func splitHostPort(hostPort string) (host, port string, err error) {
	host, port = hostPort, constants.DefaultPort
	if strings.HasPrefix(hostPort, "[") {
		end := strings.IndexByte(hostPort, ']')
		if end < 0 {
			return "", "", errors.NewInputError(errors.KindMalformedURL, "unterminated IPv6 literal: "+hostPort)
		}
		host = hostPort[1:end]
		switch tail := hostPort[end+1:]; {
		case tail == "":
		case tail[0] == ':':
			port = tail[1:]
		default:
			return "", "", errors.NewInputError(errors.KindMalformedURL, "garbage after IPv6 literal: "+hostPort)
		}
	} else if i := strings.LastIndexByte(hostPort, ':'); i >= 0 {
		host, port = hostPort[:i], hostPort[i+1:]
	}

	if host == "" {
		return "", "", errors.NewInputError(errors.KindMalformedURL, "empty host")
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return "", "", errors.NewInputError(errors.KindMalformedURL, "invalid port "+strconv.Quote(port))
	}

	if !strings.Contains(host, ":") {
		ascii, err := httpguts.PunycodeHostPort(host)
		if err != nil {
			return "", "", errors.NewInputError(errors.KindMalformedURL, "invalid host "+strconv.Quote(host)+": "+err.Error())
		}
		host = ascii
	}
	if !httpguts.ValidHostHeader(net.JoinHostPort(host, port)) {
		return "", "", errors.NewInputError(errors.KindMalformedURL, "invalid host "+strconv.Quote(host))
	}
	return host, port, nil
}

// Address returns host:port suitable for dialing.
func (t *Target) Address() string {
	return net.JoinHostPort(t.Host, t.Port)
}

// HostHeader returns the Host request header value. The port is omitted when
// it is the default one.
func (t *Target) HostHeader() string {
	if t.Port == constants.DefaultPort {
		if strings.Contains(t.Host, ":") {
			return "[" + t.Host + "]"
		}
		return t.Host
	}
	return t.Address()
}

// RequestURI returns the request-target sent on the request line.
func (t *Target) RequestURI() string {
	return "/" + t.Path
}

// String reassembles the URL.
func (t *Target) String() string {
	return t.Scheme + "://" + t.HostHeader() + t.RequestURI()
}

// Resolve returns the target a Location header points to. Absolute URLs are
// parsed as is; scheme-relative, origin-relative and path-relative references
// are resolved against t.
func (t *Target) Resolve(location string) (*Target, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return nil, errors.NewInputError(errors.KindMalformedURL, "empty redirect location")
	case strings.HasPrefix(location, "//"):
		return Parse(t.Scheme + ":" + location)
	case strings.HasPrefix(location, "/"):
		next := *t
		next.Path = location[1:]
		return &next, nil
	case hasScheme(location):
		return Parse(location)
	}

	// path-relative: replace the last segment of the current path
	next := *t
	dir := ""
	if i := strings.LastIndexByte(t.Path, '/'); i >= 0 {
		dir = t.Path[:i+1]
	}
	next.Path = dir + location
	return &next, nil
}

// hasScheme reports whether ref starts with "scheme:" per RFC 3986.
func hasScheme(ref string) bool {
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' || c == '+' || c == '-' || c == '.':
			if i == 0 {
				return false
			}
		case c == ':':
			return i > 0
		default:
			return false
		}
	}
	return false
}
