//go:build linux

package tcp

import (
	"net"
	"testing"
	"time"

	"github.com/momentics/reactor-http/buffer"
	"github.com/momentics/reactor-http/loop"
)

// TestEchoScenario exercises spec.md scenario 2: a client sends the same
// payload five times with gaps, and every recv produces exactly one echo.
func TestEchoScenario(t *testing.T) {
	el, err := loop.New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	go el.Run()
	defer el.Stop()

	addr := freeLoopbackAddr(t)

	srv := NewServer(el, addr)
	srv.SetCallbacks(nil, func(c *Connection, buf *buffer.Buffer) {
		c.Send(buf.ReadAll())
	}, nil, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload := []byte("hello world!")
	for i := 0; i < 5; i++ {
		if _, err := conn.Write(payload); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		got := make([]byte, len(payload))
		if _, err := readFull(conn, got); err != nil {
			t.Fatalf("read echo %d: %v", i, err)
		}
		if string(got) != string(payload) {
			t.Fatalf("echo %d mismatch: got %q", i, got)
		}
	}
}

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

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
