package tcp

import (
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/momentics/reactor-http/buffer"
	"github.com/momentics/reactor-http/loop"
	"github.com/momentics/reactor-http/netutil"
	"github.com/momentics/reactor-http/reactor"
)

// State is one stage of the Connection lifecycle described in spec.md
// §4.6.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "disconnected"
	}
}

const readChunkSize = 65536

// ConnectedCallback, MessageCallback, CloseCallback, EventCallback and
// ServerCloseCallback are the five Connection-level hooks from spec.md §3.
type ConnectedCallback func(*Connection)
type MessageCallback func(*Connection, *buffer.Buffer)
type CloseCallback func(*Connection)
type EventCallback func(*Connection)
type ServerCloseCallback func(*Connection)

// Connection is the per-connection state machine, buffers, and callback
// set from spec.md §3/§4.6. The server holds one strong reference per id;
// every callback dispatched through the Channel additionally pins a
// reference for its own duration (Go's GC makes the "drop the strong ref
// last" discipline automatic: as long as release is the last thing that
// runs and nothing retains *Connection after, the object is collectible —
// there is no explicit refcounting step needed the way spec.md's source
// language requires).
type Connection struct {
	ID   uint64
	sock *netutil.Socket
	ch   *reactor.Channel
	loop *loop.EventLoop
	peer net.Addr

	inbound  *buffer.Buffer
	outbound *buffer.Buffer

	mu    sync.Mutex
	state State

	idleEnabled bool
	idleTimeout int

	Context any

	// bytesRead and bytesWritten point at the owning Server's aggregate
	// counters (shared across every Connection it has ever accepted), so
	// Server.Metrics() still reflects traffic from connections that have
	// since been released.
	bytesRead    *uint64
	bytesWritten *uint64

	onConnected   ConnectedCallback
	onMessage     MessageCallback
	onClose       CloseCallback
	onEvent       EventCallback
	onServerClose ServerCloseCallback
}

// newConnection constructs a Connection in StateConnecting. It must be
// wired into its owning loop and given to established() there.
func newConnection(id uint64, owner *loop.EventLoop, sock *netutil.Socket, peer net.Addr) *Connection {
	c := &Connection{
		ID:       id,
		sock:     sock,
		loop:     owner,
		peer:     peer,
		inbound:  buffer.New(),
		outbound: buffer.New(),
		state:    StateConnecting,
	}
	c.ch = reactor.NewChannel(owner, sock.Fd)
	c.ch.ReadCallback = c.handleRead
	c.ch.WriteCallback = c.handleWrite
	c.ch.ErrorCallback = c.handleError
	c.ch.CloseCallback = c.handleClose
	c.ch.EventCallback = c.handleAnyEvent
	return c
}

// RemoteAddr returns the peer address captured at accept time.
func (c *Connection) RemoteAddr() net.Addr { return c.peer }

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetCallbacks wires the four user-facing Connection callbacks before
// established() is called. Not safe to call once the connection is live;
// use Upgrade for that case.
func (c *Connection) SetCallbacks(onConnected ConnectedCallback, onMessage MessageCallback, onClose CloseCallback, onEvent EventCallback) {
	c.onConnected = onConnected
	c.onMessage = onMessage
	c.onClose = onClose
	c.onEvent = onEvent
}

func (c *Connection) setServerCloseCallback(cb ServerCloseCallback) {
	c.onServerClose = cb
}

// setByteCounters wires this connection's read/write accounting into the
// owning Server's aggregate counters.
func (c *Connection) setByteCounters(bytesRead, bytesWritten *uint64) {
	c.bytesRead = bytesRead
	c.bytesWritten = bytesWritten
}

// established transitions CONNECTING -> CONNECTED, enables read interest,
// and invokes the connect callback. Must run on the owning loop.
func (c *Connection) established() {
	c.mu.Lock()
	c.state = StateConnected
	c.mu.Unlock()
	c.ch.EnableReading()
	if c.onConnected != nil {
		c.onConnected(c)
	}
}

// handleRead attempts a non-blocking recv. A negative-length read (an
// error other than would-block) triggers shutdownInLoop; bytes received
// are appended to the inbound buffer and delivered to the message
// callback when the buffer holds any unread bytes. Zero bytes with no
// error on a level-triggered readable event means the peer has performed
// an orderly shutdown (EOF) and starts Shutdown instead; spec.md's "any
// observable event" still means this counts for idle-timer refresh via
// EventCallback.
func (c *Connection) handleRead() {
	raw := make([]byte, readChunkSize)
	n, err := c.sock.Read(raw)
	if err != nil {
		if netutil.IsWouldBlock(err) || netutil.IsInterrupted(err) {
			return
		}
		c.shutdownInLoop()
		return
	}
	if n == 0 {
		// Peer closed its write side (EOF). Treat like a graceful
		// shutdown request from the read path.
		c.Shutdown()
		return
	}
	if c.bytesRead != nil {
		atomic.AddUint64(c.bytesRead, uint64(n))
	}
	c.inbound.Append(raw[:n])
	if c.inbound.Len() > 0 && c.onMessage != nil {
		c.onMessage(c, c.inbound)
	}
}

// handleWrite attempts a non-blocking send from the outbound buffer. On a
// negative-length send (fatal error) it makes a last-chance delivery of
// any pending inbound data before releasing. Once the outbound buffer
// empties, write interest is disabled; if the connection was already
// DISCONNECTING, release runs immediately.
func (c *Connection) handleWrite() {
	if !c.ch.IsWriting() {
		return
	}
	data := c.outbound.Bytes()
	if len(data) == 0 {
		c.ch.DisableWriting()
		return
	}
	n, err := c.sock.Write(data)
	if err != nil {
		if netutil.IsWouldBlock(err) || netutil.IsInterrupted(err) {
			return
		}
		if c.inbound.Len() > 0 && c.onMessage != nil {
			c.onMessage(c, c.inbound)
		}
		c.release()
		return
	}
	if c.bytesWritten != nil {
		atomic.AddUint64(c.bytesWritten, uint64(n))
	}
	c.outbound.Drop(n)
	if c.outbound.Len() == 0 {
		c.ch.DisableWriting()
		c.mu.Lock()
		disconnecting := c.state == StateDisconnecting
		c.mu.Unlock()
		if disconnecting {
			c.release()
		}
	}
}

func (c *Connection) handleError() {
	log.Printf("tcp: connection %d socket error", c.ID)
}

func (c *Connection) handleClose() {
	c.shutdownInLoop()
}

// handleAnyEvent runs after every Channel dispatch, regardless of which
// callback fired, and is the single place idle-timer refresh happens.
func (c *Connection) handleAnyEvent() {
	if c.idleEnabled {
		c.loop.RefreshTimer(c.ID, c.idleTimeout)
	}
	if c.onEvent != nil {
		c.onEvent(c)
	}
}

// Send enqueues data for delivery. If the outbound buffer is already
// nonempty or a direct write can't flush it all, the remainder is
// buffered and write interest is armed. Safe to call from any goroutine:
// it always routes through RunInLoop, so the write happens on the owning
// loop after the current dispatch pass.
func (c *Connection) Send(data []byte) {
	c.loop.RunInLoop(func() {
		c.sendInLoop(data)
	})
}

func (c *Connection) sendInLoop(data []byte) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != StateConnected {
		return
	}
	if c.outbound.Len() == 0 && !c.ch.IsWriting() {
		n, err := c.sock.Write(data)
		if err != nil && !netutil.IsWouldBlock(err) && !netutil.IsInterrupted(err) {
			c.release()
			return
		}
		if n > 0 && c.bytesWritten != nil {
			atomic.AddUint64(c.bytesWritten, uint64(n))
		}
		if n < len(data) {
			if n < 0 {
				n = 0
			}
			c.outbound.Append(data[n:])
			c.ch.EnableWriting()
		}
		return
	}
	c.outbound.Append(data)
	c.ch.EnableWriting()
}

// Shutdown requests a graceful half-close: CONNECTED -> DISCONNECTING. Any
// unread inbound bytes are delivered once more; if outbound has pending
// data, write interest is armed (if not already) and release waits for it
// to drain; otherwise release runs immediately. Safe to call from any
// goroutine.
func (c *Connection) Shutdown() {
	c.loop.RunInLoop(c.shutdownInLoop)
}

func (c *Connection) shutdownInLoop() {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnecting
	c.mu.Unlock()

	if c.inbound.Len() > 0 && c.onMessage != nil {
		c.onMessage(c, c.inbound)
	}
	if c.outbound.Len() > 0 {
		if !c.ch.IsWriting() {
			c.ch.EnableWriting()
		}
		return
	}
	c.release()
}

// release is the terminal transition: DISCONNECTED. It removes the
// Channel from the Poller, closes the socket, cancels any idle timer, and
// invokes the user close callback followed by the server close callback.
// It must be the last thing run on this Connection.
func (c *Connection) release() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	c.ch.DisableAll()
	c.ch.Remove()
	if c.idleEnabled {
		c.loop.CancelTimer(c.ID)
	}
	c.sock.Close()

	if c.onClose != nil {
		c.onClose(c)
	}
	if c.onServerClose != nil {
		c.onServerClose(c)
	}
}

// EnableInactiveRelease arms (or refreshes) an idle-eviction timer keyed
// by this connection's id, calling release when the connection has been
// observably silent for sec seconds. Must run on the owning loop.
func (c *Connection) EnableInactiveRelease(sec int) {
	c.idleEnabled = true
	// The wheel fires a task between delay-1 and delay seconds after it is
	// armed, depending on where in the current one-second tick it lands, so
	// one extra tick keeps the connection for at least sec silent seconds.
	// The wheel clamps delays above its width.
	c.idleTimeout = sec + 1
	if c.loop.HasTimer(c.ID) {
		c.loop.RefreshTimer(c.ID, c.idleTimeout)
		return
	}
	c.loop.AddTimer(c.ID, c.idleTimeout, func() {
		c.loop.RunInLoop(c.release)
	}, nil)
}

// CancelInactiveRelease disarms idle eviction.
func (c *Connection) CancelInactiveRelease() {
	c.idleEnabled = false
	c.loop.CancelTimer(c.ID)
}

// Upgrade atomically replaces the user context and the message/connect/
// close/event callback set, on the owning loop, so no in-flight dispatch
// can observe a half-swapped state: per spec.md §4.6 and §9, this is how
// a plain TCP connection becomes, e.g., an HTTP connection mid-flight,
// without racing the reactor thread that already owns this Connection.
func (c *Connection) Upgrade(ctx any, onConnected ConnectedCallback, onMessage MessageCallback, onClose CloseCallback, onEvent EventCallback) {
	c.loop.RunInLoop(func() {
		c.Context = ctx
		c.onConnected = onConnected
		c.onMessage = onMessage
		c.onClose = onClose
		c.onEvent = onEvent
	})
}

// Loop returns the EventLoop this Connection is bound to.
func (c *Connection) Loop() *loop.EventLoop { return c.loop }
