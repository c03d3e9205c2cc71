package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/reactor-http/loop"
	"github.com/momentics/reactor-http/netutil"
)

// ErrAlreadyRunning mirrors the teacher's lowlevel/server/server.go
// sentinel for a double Start call.
var ErrAlreadyRunning = errors.New("tcp: server already running")

// Metrics is a point-in-time snapshot of server-wide counters, grounded on
// api.APIMetrics/control.MetricsRegistry from the teacher pack.
type Metrics struct {
	NumConnections int64
	BytesRead      uint64
	BytesWritten   uint64
	StartedAt      time.Time
}

// Server accepts connections on a master EventLoop and assigns each to a
// worker loop round-robin, per spec.md §6's TcpServer surface.
type Server struct {
	addr        string
	masterLoop  *loop.EventLoop
	pool        *loop.Pool
	acceptor    *Acceptor
	threadCount int
	idleTimeout int

	onConnected ConnectedCallback
	onMessage   MessageCallback
	onClose     CloseCallback
	onEvent     EventCallback

	mu       sync.Mutex
	conns    map[uint64]*Connection
	nextID   uint64
	started  bool
	numConns int64

	bytesRead    uint64
	bytesWritten uint64

	startedAt time.Time
}

// NewServer constructs a Server bound to masterLoop (the loop Acceptor
// events are dispatched on) listening on addr, applying any functional
// options before returning.
func NewServer(masterLoop *loop.EventLoop, addr string, opts ...ServerOption) *Server {
	s := &Server{
		addr:       addr,
		masterLoop: masterLoop,
		conns:      make(map[uint64]*Connection),
	}
	s.Apply(opts...)
	return s
}

// SetThreadCount configures how many worker loops own accepted
// connections. 0 (the default) means all work runs on the master loop.
func (s *Server) SetThreadCount(n int) { s.threadCount = n }

// SetIdleTimeoutSec arms idle eviction at sec seconds for every connection
// this server accepts. 0 disables it (the default).
func (s *Server) SetIdleTimeoutSec(sec int) { s.idleTimeout = sec }

// SetCallbacks wires the four user-facing per-connection callbacks applied
// to every connection this server accepts.
func (s *Server) SetCallbacks(onConnected ConnectedCallback, onMessage MessageCallback, onClose CloseCallback, onEvent EventCallback) {
	s.onConnected = onConnected
	s.onMessage = onMessage
	s.onClose = onClose
	s.onEvent = onEvent
}

// Start binds the listening socket, spins up the worker pool (if
// configured), and begins accepting. It returns once the acceptor is
// armed; it does not block — the caller is expected to separately run
// masterLoop.Run() (and, in single-loop deployments, that the same loop
// that runs the acceptor also runs accepted connections).
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.started = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.threadCount > 0 {
		pool, err := loop.NewPool(s.threadCount)
		if err != nil {
			return fmt.Errorf("tcp: start worker pool: %w", err)
		}
		s.pool = pool
	}

	acc, err := NewAcceptor(s.masterLoop, s.addr)
	if err != nil {
		return err
	}
	s.acceptor = acc
	acc.NewConnCallback = s.newConnection
	acc.Listen()
	return nil
}

// newConnection assigns an accepted socket round-robin to a worker loop
// (or the master loop, if no pool is configured) and establishes the
// Connection there, per spec.md's "all performed on the owning EventLoop".
func (s *Server) newConnection(sock *netutil.Socket, peer net.Addr) {
	target := s.masterLoop
	if s.pool != nil && s.pool.Size() > 0 {
		target = s.pool.NextLoop()
	}

	id := atomic.AddUint64(&s.nextID, 1)

	target.RunInLoop(func() {
		conn := newConnection(id, target, sock, peer)
		conn.SetCallbacks(s.onConnected, s.onMessage, s.onClose, s.onEvent)
		conn.setServerCloseCallback(s.handleConnClosed)
		conn.setByteCounters(&s.bytesRead, &s.bytesWritten)

		s.mu.Lock()
		s.conns[id] = conn
		s.mu.Unlock()
		atomic.AddInt64(&s.numConns, 1)

		conn.established()
		if s.idleTimeout > 0 {
			conn.EnableInactiveRelease(s.idleTimeout)
		}
	})
}

func (s *Server) handleConnClosed(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c.ID)
	s.mu.Unlock()
	atomic.AddInt64(&s.numConns, -1)
}

// Metrics returns a snapshot of server-wide counters.
func (s *Server) Metrics() Metrics {
	return Metrics{
		NumConnections: atomic.LoadInt64(&s.numConns),
		BytesRead:      atomic.LoadUint64(&s.bytesRead),
		BytesWritten:   atomic.LoadUint64(&s.bytesWritten),
		StartedAt:      s.startedAt,
	}
}

// Stop closes the acceptor and every live connection, then stops the
// worker pool.
func (s *Server) Stop() {
	if s.acceptor != nil {
		s.masterLoop.RunInLoop(func() {
			s.acceptor.Close()
		})
	}
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Shutdown()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
}
