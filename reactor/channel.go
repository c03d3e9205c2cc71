// Package reactor implements the Poller/Channel layer of the event loop:
// per-descriptor event registration and dispatch mediating between kernel
// readiness events and user callbacks.
package reactor

// EventType is a bitmask of readiness conditions, shared between the
// Poller's request mask and its delivered-events mask.
type EventType uint32

const (
	EventNone     EventType = 0
	EventReadable EventType = 1 << iota
	EventWritable
	EventPriority
	EventPeerClose // peer half-closed / hang-up-on-read-side
	EventError
	EventHangup
)

// LoopOwner is the minimal surface Channel needs from its owning loop: the
// ability to push a mask update to the Poller and to confirm which thread
// is calling. EventLoop implements this.
type LoopOwner interface {
	UpdateChannel(ch *Channel)
	RemoveChannel(ch *Channel)
	AssertInLoopThread()
}

// Channel binds one descriptor to an event mask and a set of typed
// callbacks. It does not own the descriptor: closing the fd is the
// caller's responsibility, and must happen only after Remove.
type Channel struct {
	Fd     int
	loop   LoopOwner
	events EventType // requested interest
	active EventType // most recently delivered events (set by HandleEvent)

	// pending holds the mask the Poller observed for this Channel during
	// the current Poll call, read by EventLoop's dispatch pass via
	// PendingEvents before it calls HandleEvent.
	pending EventType

	// index is poller-private bookkeeping (epoll_ctl ADD vs MOD, or -1 if
	// not yet registered).
	index int

	ReadCallback  func()
	WriteCallback func()
	ErrorCallback func()
	CloseCallback func()

	// EventCallback fires after every other callback on every dispatch,
	// regardless of which fired; Connection uses this to refresh its idle
	// timer on any observable activity.
	EventCallback func()
}

// NewChannel creates a Channel for fd, owned by loop. The Channel starts
// with no event interest; callers enable read/write explicitly.
func NewChannel(loop LoopOwner, fd int) *Channel {
	return &Channel{Fd: fd, loop: loop, index: -1}
}

// Events returns the currently requested interest mask.
func (c *Channel) Events() EventType { return c.events }

// Index is poller-private state, exposed so Poller implementations in this
// package can use Channel as their own bookkeeping slot.
func (c *Channel) Index() int     { return c.index }
func (c *Channel) SetIndex(i int) { c.index = i }

// SetPendingEvents records the mask a Poller observed for this Channel
// during the current Poll call.
func (c *Channel) SetPendingEvents(ev EventType) { c.pending = ev }

// PendingEvents returns the mask set by the most recent SetPendingEvents.
func (c *Channel) PendingEvents() EventType { return c.pending }

func (c *Channel) update() { c.loop.UpdateChannel(c) }

// EnableReading adds read+priority+peer-close interest.
func (c *Channel) EnableReading() {
	c.events |= EventReadable | EventPriority
	c.update()
}

// DisableReading removes read interest.
func (c *Channel) DisableReading() {
	c.events &^= EventReadable | EventPriority
	c.update()
}

// EnableWriting adds write interest.
func (c *Channel) EnableWriting() {
	c.events |= EventWritable
	c.update()
}

// DisableWriting removes write interest.
func (c *Channel) DisableWriting() {
	c.events &^= EventWritable
	c.update()
}

// DisableAll clears all interest, leaving the Channel registered but idle.
func (c *Channel) DisableAll() {
	c.events = EventNone
	c.update()
}

// IsWriting reports whether write interest is currently armed.
func (c *Channel) IsWriting() bool { return c.events&EventWritable != 0 }

// IsReading reports whether read interest is currently armed.
func (c *Channel) IsReading() bool { return c.events&EventReadable != 0 }

// IsNoneEvent reports whether this Channel currently requests nothing.
func (c *Channel) IsNoneEvent() bool { return c.events == EventNone }

// Remove detaches the Channel from its Poller. The descriptor itself is
// left open; closing it is the caller's job, after Remove returns.
func (c *Channel) Remove() {
	c.loop.RemoveChannel(c)
}

// HandleEvent dispatches delivered events in the order the kernel's
// half-close semantics demand: the read family (readable OR priority OR
// peer-close) must run before close/error so that any last bytes from a
// half-closed peer are drained before teardown; write must run before
// error so pending output gets one last attempt even if the socket then
// faults. The source this is adapted from composed the read-family test
// with bitwise OR between parenthesized sub-expressions, which is always
// truthy regardless of which bits were actually set; here it is a single
// OR-test of the delivered mask against the three read-family bits.
func (c *Channel) HandleEvent(revents EventType) {
	c.active = revents

	if revents&(EventReadable|EventPriority|EventPeerClose) != 0 {
		if c.ReadCallback != nil {
			c.ReadCallback()
		}
	}
	if revents&EventWritable != 0 {
		if c.WriteCallback != nil {
			c.WriteCallback()
		}
	}
	if revents&EventError != 0 {
		if c.ErrorCallback != nil {
			c.ErrorCallback()
		}
	}
	if revents&EventHangup != 0 {
		if c.CloseCallback != nil {
			c.CloseCallback()
		}
	}

	if c.EventCallback != nil {
		c.EventCallback()
	}
}
