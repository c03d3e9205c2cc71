//go:build linux

// Package netutil provides a thin, non-blocking-aware TCP endpoint wrapper
// over a raw file descriptor, the Socket collaborator from spec.md §3/§6.
package netutil

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Socket is a non-owning-by-default wrapper around a raw fd: closing it
// closes the fd, but callers that hand the fd to a Channel must not close
// the fd while the Channel is still registered with the Poller.
type Socket struct {
	Fd int
}

// ListenTCP creates, binds and listens a non-blocking IPv4/IPv6 TCP socket
// on addr (host:port). SO_REUSEADDR is set so restarts don't hit
// EADDRINUSE against sockets still draining TIME_WAIT.
func ListenTCP(addr string) (*Socket, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("netutil: resolve %s: %w", addr, err)
	}

	domain := unix.AF_INET
	sa := toSockaddrInet4(tcpAddr)
	var sa6 *unix.SockaddrInet6
	if tcpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
		sa6 = toSockaddrInet6(tcpAddr)
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("netutil: socket: %w", err)
	}
	s := &Socket{Fd: fd}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		s.Close()
		return nil, fmt.Errorf("netutil: SO_REUSEADDR: %w", err)
	}

	if domain == unix.AF_INET {
		err = unix.Bind(fd, sa)
	} else {
		err = unix.Bind(fd, sa6)
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("netutil: bind %s: %w", addr, err)
	}

	const backlog = 1024
	if err := unix.Listen(fd, backlog); err != nil {
		s.Close()
		return nil, fmt.Errorf("netutil: listen %s: %w", addr, err)
	}
	return s, nil
}

func toSockaddrInet4(a *net.TCPAddr) *unix.SockaddrInet4 {
	sa := &unix.SockaddrInet4{Port: a.Port}
	if ip4 := a.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	return sa
}

func toSockaddrInet6(a *net.TCPAddr) *unix.SockaddrInet6 {
	sa := &unix.SockaddrInet6{Port: a.Port}
	if a.IP != nil {
		copy(sa.Addr[:], a.IP.To16())
	}
	return sa
}

// Accept accepts one pending connection in non-blocking mode. It returns
// (nil, unix.EAGAIN) when no connection is pending — spec.md's "transient
// I/O, no user-visible effect" case, not an error the caller should log.
func (s *Socket) Accept() (*Socket, net.Addr, error) {
	nfd, sa, err := unix.Accept4(s.Fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return nil, nil, err
	}
	addr := sockaddrToAddr(sa)
	return &Socket{Fd: nfd}, addr, nil
}

func sockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte(nil), v.Addr[:]...), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append([]byte(nil), v.Addr[:]...), Port: v.Port}
	default:
		return nil
	}
}

// SetNonBlock toggles O_NONBLOCK explicitly; sockets from ListenTCP/Accept
// already carry it, this is for fds obtained elsewhere.
func (s *Socket) SetNonBlock(nb bool) error {
	return unix.SetNonblock(s.Fd, nb)
}

// SetTCPNoDelay disables/enables Nagle's algorithm.
func (s *Socket) SetTCPNoDelay(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return unix.SetsockoptInt(s.Fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

// SetKeepAlive enables/disables SO_KEEPALIVE.
func (s *Socket) SetKeepAlive(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return unix.SetsockoptInt(s.Fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, v)
}

// Read performs a non-blocking read. A negative n with err == nil never
// happens; would-block is reported as (-1, unix.EAGAIN) and surfaces here
// as a plain error for the caller to test with IsWouldBlock.
func (s *Socket) Read(p []byte) (int, error) {
	return unix.Read(s.Fd, p)
}

// Write performs a non-blocking write.
func (s *Socket) Write(p []byte) (int, error) {
	return unix.Write(s.Fd, p)
}

// ShutdownWrite performs the write-half of a TCP half-close, letting any
// already-buffered inbound data still be read while announcing no more
// output will be sent.
func (s *Socket) ShutdownWrite() error {
	return unix.Shutdown(s.Fd, unix.SHUT_WR)
}

// Close closes the underlying fd.
func (s *Socket) Close() error {
	return unix.Close(s.Fd)
}

// IsWouldBlock reports whether err is the kernel's "no progress right now"
// signal, which spec.md §7 classifies as transient I/O rather than a
// fatal socket error.
func IsWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// IsInterrupted reports whether err is EINTR.
func IsInterrupted(err error) bool {
	return err == unix.EINTR
}
