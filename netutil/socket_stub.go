//go:build !linux

package netutil

import (
	"errors"
	"net"
)

// Socket is a non-functional stand-in on non-Linux platforms; see the
// linux build's socket.go for the real implementation. spec.md §1 scopes
// this module to Linux epoll/timerfd/eventfd semantics.
type Socket struct {
	Fd int
}

var errUnsupported = errors.New("netutil: raw-fd sockets require linux")

func ListenTCP(addr string) (*Socket, error)           { return nil, errUnsupported }
func (s *Socket) Accept() (*Socket, net.Addr, error)    { return nil, nil, errUnsupported }
func (s *Socket) SetNonBlock(nb bool) error             { return errUnsupported }
func (s *Socket) SetTCPNoDelay(on bool) error           { return errUnsupported }
func (s *Socket) SetKeepAlive(on bool) error            { return errUnsupported }
func (s *Socket) Read(p []byte) (int, error)            { return 0, errUnsupported }
func (s *Socket) Write(p []byte) (int, error)           { return 0, errUnsupported }
func (s *Socket) ShutdownWrite() error                  { return errUnsupported }
func (s *Socket) Close() error                          { return errUnsupported }
func IsWouldBlock(err error) bool                        { return false }
func IsInterrupted(err error) bool                       { return false }
