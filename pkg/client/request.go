package client

import (
	"context"
	"io"
	"strings"

	"fortio.org/log"

	"github.com/WhileEndless/go-rawget/pkg/errors"
	"github.com/WhileEndless/go-rawget/pkg/target"
)

// buildRequest returns the complete GET request for t. No body is ever sent
// and the server is asked to close the connection after one response.
func buildRequest(t *target.Target, userAgent string) []byte {
	var b strings.Builder
	b.WriteString("GET ")
	b.WriteString(t.RequestURI())
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Host: ")
	b.WriteString(t.HostHeader())
	b.WriteString("\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("User-Agent: ")
	b.WriteString(userAgent)
	b.WriteString("\r\n\r\n")
	return []byte(b.String())
}

// writeRequest writes all of req to w. A write that makes no progress without
// reporting an error is a short write.
func writeRequest(ctx context.Context, w io.Writer, req []byte) error {
	const op = "sending request"
	if log.LogDebug() {
		log.Debugf("Sending request: %q", req)
	}
	written := 0
	for written < len(req) {
		n, err := w.Write(req[written:])
		written += n
		if err != nil {
			if ctx.Err() != nil {
				return errors.FromContext(ctx, op)
			}
			return errors.NewWriteError(op, err)
		}
		if n == 0 {
			return errors.NewWriteError(op, io.ErrShortWrite)
		}
	}
	log.Infof("Request sent (%d bytes)", written)
	return nil
}
