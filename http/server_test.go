//go:build linux

package http

import (
	"bufio"
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/momentics/reactor-http/loop"
)

// freeLoopbackAddr asks the kernel for an ephemeral port via a throwaway
// listener, then closes it immediately so the reactor's raw-fd acceptor
// can bind the same address.
func freeLoopbackAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("pick free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// TestGetWithQueryEndToEnd exercises spec.md scenario 4 over a real
// socket: a GET with a percent-encoded query string is routed, the
// response carries Connection: keep-alive, and the connection survives to
// parse a second request (the parser's Reset left-identity property).
func TestGetWithQueryEndToEnd(t *testing.T) {
	el, err := loop.New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	go el.Run()
	defer el.Stop()

	addr := freeLoopbackAddr(t)
	srv := NewServer(el, addr)

	var gotQuery map[string]string
	srv.Get(`/hello`, func(req *Request, resp *Response) {
		gotQuery = req.Query
		resp.SetBodyString("hi\n")
	})

	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte("GET /hello?u=a&p=1%202 HTTP/1.1\r\nHost: x\r\nConnection: keep-alive\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := bufio.NewReader(conn)
	statusLine, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if statusLine != "HTTP/1.1 200 OK\r\n" {
		t.Fatalf("status line = %q", statusLine)
	}

	headers := map[string]string{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read header: %v", err)
		}
		line = string(bytes.TrimRight([]byte(line), "\r\n"))
		if line == "" {
			break
		}
		sep := bytes.IndexByte([]byte(line), ':')
		if sep < 0 {
			continue
		}
		headers[line[:sep]] = line[sep+2:]
	}
	if headers["Connection"] != "keep-alive" {
		t.Fatalf("Connection header = %q, want keep-alive", headers["Connection"])
	}

	if gotQuery["u"] != "a" || gotQuery["p"] != "1 2" {
		t.Fatalf("query = %v, want {u:a p:\"1 2\"}", gotQuery)
	}

	// The connection must still be usable for a second request, proving
	// the per-connection parser was Reset rather than torn down.
	if _, err := conn.Write([]byte("GET /hello?u=b HTTP/1.1\r\nHost: x\r\nConnection: keep-alive\r\n\r\n")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	statusLine, err = r.ReadString('\n')
	if err != nil {
		t.Fatalf("read second status line: %v", err)
	}
	if statusLine != "HTTP/1.1 200 OK\r\n" {
		t.Fatalf("second status line = %q", statusLine)
	}
	if gotQuery["u"] != "b" {
		t.Fatalf("second query = %v, want {u:b}", gotQuery)
	}
}

// TestOversizeRequestLineEndToEnd exercises spec.md scenario 5 over a real
// socket: a 10000-byte start-line with no newline gets a 414 response and
// the connection is then closed by the server.
func TestOversizeRequestLineEndToEnd(t *testing.T) {
	el, err := loop.New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	go el.Run()
	defer el.Stop()

	addr := freeLoopbackAddr(t)
	srv := NewServer(el, addr)
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write(bytes.Repeat([]byte{'A'}, 10000)); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := bufio.NewReader(conn)
	statusLine, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if statusLine != "HTTP/1.1 414 URI Too Long\r\n" {
		t.Fatalf("status line = %q", statusLine)
	}

	// The server half-closes and then releases; the peer should observe
	// EOF once it drains the rest of the response.
	buf := make([]byte, 4096)
	for {
		if _, err := conn.Read(buf); err != nil {
			break // EOF expected
		}
	}
}

// TestShortBodyThenStallEndToEnd exercises spec.md scenario 6 over a real
// socket: a request whose Content-Length exceeds the bytes actually sent
// leaves the handler un-run, and the connection is released once its idle
// timeout elapses.
func TestShortBodyThenStallEndToEnd(t *testing.T) {
	const idleTimeoutSec = 2

	el, err := loop.New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	go el.Run()
	defer el.Stop()

	addr := freeLoopbackAddr(t)
	srv := NewServer(el, addr)
	srv.SetIdleTimeoutSec(idleTimeoutSec)

	handlerRan := false
	srv.Get(`/x`, func(req *Request, resp *Response) {
		handlerRan = true
	})

	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET /x HTTP/1.1\r\nContent-Length: 100\r\n\r\naaa")); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Duration(idleTimeoutSec+2) * time.Second))
	buf := make([]byte, 1)
	n, err := conn.Read(buf)
	if n != 0 || err == nil {
		t.Fatalf("expected no bytes and eventual EOF before any response, got n=%d err=%v", n, err)
	}
	if handlerRan {
		t.Fatalf("handler should not have run with an incomplete body")
	}
}
