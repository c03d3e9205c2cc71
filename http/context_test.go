package http

import (
	"bytes"
	"testing"

	"github.com/momentics/reactor-http/buffer"
)

// TestOversizeRequestLine exercises spec.md scenario 5: a single request
// whose start-line is 10000 bytes with no '\n' drives the parser to a 414
// status and StateError.
func TestOversizeRequestLine(t *testing.T) {
	c := NewContext()
	buf := buffer.New()
	buf.Append(bytes.Repeat([]byte{'A'}, 10000))

	c.Recv(buf)

	if c.State() != StateError {
		t.Fatalf("state = %v, want StateError", c.State())
	}
	if c.Status() != 414 {
		t.Fatalf("status = %d, want 414", c.Status())
	}
}

// TestShortBodyThenStall exercises spec.md scenario 6: a GET with
// Content-Length: 100 followed by only 3 body bytes leaves the parser in
// StateBody with those 3 bytes accumulated, and no request is produced
// until the rest of the body arrives.
func TestShortBodyThenStall(t *testing.T) {
	c := NewContext()
	buf := buffer.New()
	buf.AppendString("GET /x HTTP/1.1\r\nContent-Length: 100\r\n\r\naaa")

	c.Recv(buf)

	if c.State() != StateBody {
		t.Fatalf("state = %v, want StateBody", c.State())
	}
	if got := string(c.Request().Body); got != "aaa" {
		t.Fatalf("accumulated body = %q, want %q", got, "aaa")
	}
	if buf.Len() != 0 {
		t.Fatalf("buffer should be fully drained, has %d bytes left", buf.Len())
	}
}

// TestGetWithQuery exercises the parse half of spec.md scenario 4: method,
// path, percent-decoded query params and version are extracted correctly,
// and a trailing Connection: keep-alive header is visible on the request.
func TestGetWithQuery(t *testing.T) {
	c := NewContext()
	buf := buffer.New()
	buf.AppendString("GET /hello?u=a&p=1%202 HTTP/1.1\r\nHost: x\r\nConnection: keep-alive\r\n\r\n")

	c.Recv(buf)

	if c.State() != StateOver {
		t.Fatalf("state = %v, want StateOver", c.State())
	}
	req := c.Request()
	if req.Method != "GET" {
		t.Fatalf("method = %q, want GET", req.Method)
	}
	if req.Path != "/hello" {
		t.Fatalf("path = %q, want /hello", req.Path)
	}
	if req.Version != "HTTP/1.1" {
		t.Fatalf("version = %q, want HTTP/1.1", req.Version)
	}
	if req.Query["u"] != "a" || req.Query["p"] != "1 2" {
		t.Fatalf("query = %v, want {u:a p:\"1 2\"}", req.Query)
	}
	if !req.KeepAlive() {
		t.Fatalf("expected KeepAlive() true")
	}
}

// TestResetIsLeftIdentity verifies that reset;recv(b) behaves the same as
// parsing b on a fresh Context, the property spec.md §8 requires so a
// persistent connection can parse a second request after the first.
func TestResetIsLeftIdentity(t *testing.T) {
	c := NewContext()
	buf := buffer.New()
	buf.AppendString("GET /first HTTP/1.1\r\n\r\n")
	c.Recv(buf)
	if c.State() != StateOver {
		t.Fatalf("first parse: state = %v, want StateOver", c.State())
	}

	c.Reset()
	buf.AppendString("GET /second HTTP/1.1\r\n\r\n")
	c.Recv(buf)

	if c.State() != StateOver {
		t.Fatalf("second parse: state = %v, want StateOver", c.State())
	}
	if c.Request().Path != "/second" {
		t.Fatalf("second parse: path = %q, want /second", c.Request().Path)
	}
}
