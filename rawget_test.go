package rawget_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/WhileEndless/go-rawget"
)

// listenOnce serves a single connection with the given raw response.
func listenOnce(t *testing.T, response string) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	lines := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(5 * time.Second)) // nolint: errcheck

		reader := bufio.NewReader(conn)
		line, _ := reader.ReadString('\n')
		lines <- line
		for {
			l, err := reader.ReadString('\n')
			if err != nil || l == "\r\n" {
				break
			}
		}
		conn.Write([]byte(response)) // nolint: errcheck
	}()
	return "http://" + ln.Addr().String(), lines
}

func TestDownloadChunked(t *testing.T) {
	base, lines := listenOnce(t, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nTest\r\n0\r\n\r\n")
	path := filepath.Join(t.TempDir(), "out.txt")

	res, err := rawget.Download(context.Background(), base+"/chunk", path, rawget.DefaultOptions())
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if line := <-lines; !strings.HasPrefix(line, "GET /chunk HTTP/1.1") {
		t.Fatalf("unexpected request line: %q", line)
	}
	if res.StatusCode != 200 || !res.Complete || res.Written != 4 {
		t.Fatalf("unexpected result: %+v", res)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "Test" {
		t.Fatalf("expected body Test, got %q", data)
	}
}

func TestDownloadErrorKeepsFile(t *testing.T) {
	base, _ := listenOnce(t, "HTTP/1.1 500 Internal Server Error\r\nContent-Length: 4\r\n\r\noops")
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(path, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := rawget.Download(context.Background(), base+"/", path, rawget.Options{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if rawget.GetErrorType(err) != rawget.ErrorTypePolicy || rawget.StatusCode(err) != 500 {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "previous" {
		t.Fatalf("output file was modified: %q", data)
	}
}

func TestFetch(t *testing.T) {
	base, _ := listenOnce(t, "HTTP/1.1 200 OK\r\nContent-Length: 11\r\n\r\nhello world")

	res, spool, err := rawget.Fetch(context.Background(), base+"/", rawget.Options{})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	defer spool.Close()

	if res.Framing.String() != "fixed-length(11)" {
		t.Fatalf("unexpected framing %s", res.Framing)
	}
	r, err := spool.Reader()
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(r)
	if string(data) != "hello world" {
		t.Fatalf("unexpected body %q", data)
	}
}

func TestGetTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(io.Discard, conn) // nolint: errcheck
	}()

	opts := rawget.DefaultOptions()
	opts.Timeout = 150 * time.Millisecond
	_, err = rawget.Get(context.Background(), "http://"+ln.Addr().String()+"/", io.Discard, opts)
	if !rawget.IsTimeoutError(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if rawget.GetErrorKind(err) != "DeadlineExceeded" {
		t.Fatalf("unexpected kind %q", rawget.GetErrorKind(err))
	}
}

func TestVersion(t *testing.T) {
	if rawget.GetVersion() == "" {
		t.Fatal("empty version")
	}
}
