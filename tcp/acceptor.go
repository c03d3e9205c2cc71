// Package tcp implements the acceptor, the per-connection state machine
// and buffers, and the master/worker TcpServer facade described in
// spec.md §4.6, §4.9-§4.12, and §6.
package tcp

import (
	"fmt"
	"log"
	"net"

	"github.com/momentics/reactor-http/loop"
	"github.com/momentics/reactor-http/netutil"
	"github.com/momentics/reactor-http/reactor"
)

// NewConnCallback is invoked once per accepted client socket, on the
// acceptor's owning loop (the master loop).
type NewConnCallback func(sock *netutil.Socket, peer net.Addr)

// Acceptor is a listening socket whose readable Channel event drains the
// kernel's accept queue, per spec.md §4.10.
type Acceptor struct {
	sock    *netutil.Socket
	channel *reactor.Channel
	loop    *loop.EventLoop

	NewConnCallback NewConnCallback
	listening       bool
}

// NewAcceptor binds and listens addr and wires its readable Channel on
// owner. The Channel's read interest is not enabled until Listen is
// called.
func NewAcceptor(owner *loop.EventLoop, addr string) (*Acceptor, error) {
	sock, err := netutil.ListenTCP(addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: acceptor listen: %w", err)
	}
	a := &Acceptor{sock: sock, loop: owner}
	a.channel = reactor.NewChannel(owner, sock.Fd)
	a.channel.ReadCallback = a.handleRead
	return a, nil
}

// Listen enables read interest, after which accepted connections start
// flowing to NewConnCallback.
func (a *Acceptor) Listen() {
	a.listening = true
	a.channel.EnableReading()
}

// Close removes the Channel and closes the listening socket. Must be
// called on the owning loop.
func (a *Acceptor) Close() error {
	a.channel.Remove()
	return a.sock.Close()
}

// handleRead drains the kernel accept queue: the listening socket is
// level-triggered, so a single readable notification may represent many
// pending connections; Accept4 loops until EAGAIN.
func (a *Acceptor) handleRead() {
	for {
		client, peer, err := a.sock.Accept()
		if err != nil {
			if !netutil.IsWouldBlock(err) && !netutil.IsInterrupted(err) {
				log.Printf("tcp: accept error: %v", err)
			}
			return
		}
		if a.NewConnCallback != nil {
			a.NewConnCallback(client, peer)
		} else {
			client.Close()
		}
	}
}
