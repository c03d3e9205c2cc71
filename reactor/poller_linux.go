//go:build linux

package reactor

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller is the Linux epoll(7) Poller, level-triggered (no EPOLLET is
// ever set: readiness for a descriptor that still has unread bytes, or
// still-unsent output, is reported again on the next Poll, per spec).
type epollPoller struct {
	epfd      int
	events    []unix.EpollEvent
	channels  map[int]*Channel
}

const initEventListSize = 16

// addPoller, modPoller, delPoller are epoll_ctl operations, named to match
// the three states a Channel can be in relative to the kernel epoll set.
const (
	addPoller = unix.EPOLL_CTL_ADD
	modPoller = unix.EPOLL_CTL_MOD
	delPoller = unix.EPOLL_CTL_DEL
)

func newEpollPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &epollPoller{
		epfd:     epfd,
		events:   make([]unix.EpollEvent, initEventListSize),
		channels: make(map[int]*Channel),
	}, nil
}

// NewPoller returns the platform Poller implementation.
func NewPoller() (Poller, error) {
	return newEpollPoller()
}

func toEpollMask(ev EventType) uint32 {
	var m uint32
	if ev&(EventReadable|EventPriority|EventPeerClose) != 0 {
		m |= unix.EPOLLIN | unix.EPOLLPRI | unix.EPOLLRDHUP
	}
	if ev&EventWritable != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}

func fromEpollMask(m uint32) EventType {
	var ev EventType
	if m&unix.EPOLLIN != 0 {
		ev |= EventReadable
	}
	if m&unix.EPOLLPRI != 0 {
		ev |= EventPriority
	}
	if m&unix.EPOLLRDHUP != 0 {
		ev |= EventPeerClose
	}
	if m&unix.EPOLLOUT != 0 {
		ev |= EventWritable
	}
	if m&(unix.EPOLLERR) != 0 {
		ev |= EventError
	}
	if m&unix.EPOLLHUP != 0 {
		ev |= EventHangup
	}
	return ev
}

func (p *epollPoller) Poll(timeout time.Duration, activeChannels *[]*Channel) (time.Time, error) {
	ms := int(timeout / time.Millisecond)
	if timeout < 0 {
		ms = -1
	}
	n, err := unix.EpollWait(p.epfd, p.events, ms)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil
		}
		return now, fmt.Errorf("reactor: epoll_wait: %w", err)
	}
	for i := 0; i < n; i++ {
		fd := int(p.events[i].Fd)
		ch, ok := p.channels[fd]
		if !ok {
			continue
		}
		ch.SetPendingEvents(fromEpollMask(p.events[i].Events))
		*activeChannels = append(*activeChannels, ch)
	}
	if n == len(p.events) {
		// Grow the event buffer for the next poll when we filled it.
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}
	return now, nil
}

// epollCtlOrAbort issues epoll_ctl and terminates the process on failure.
// spec.md §7 classifies a kernel-multiplexer fault as process-fatal: a
// Channel whose registration silently diverged from the kernel's epoll
// set would corrupt every other connection sharing this Poller, so there
// is no safe degraded mode to fall back to.
func epollCtlOrAbort(epfd, op, fd int, ev *unix.EpollEvent) {
	if err := unix.EpollCtl(epfd, op, fd, ev); err != nil {
		log.Fatalf("reactor: epoll_ctl(op=%d, fd=%d): %v", op, fd, err)
	}
}

func (p *epollPoller) UpdateChannel(ch *Channel) {
	if ch.Index() < 0 {
		// New registration.
		p.channels[ch.Fd] = ch
		ch.SetIndex(1)
		var ev unix.EpollEvent
		ev.Events = toEpollMask(ch.Events())
		ev.Fd = int32(ch.Fd)
		epollCtlOrAbort(p.epfd, addPoller, ch.Fd, &ev)
		return
	}
	// Existing registration: modify or, if no interest remains but the
	// Channel hasn't been removed, leave it registered-but-idle.
	var ev unix.EpollEvent
	ev.Events = toEpollMask(ch.Events())
	ev.Fd = int32(ch.Fd)
	epollCtlOrAbort(p.epfd, modPoller, ch.Fd, &ev)
}

func (p *epollPoller) RemoveChannel(ch *Channel) {
	delete(p.channels, ch.Fd)
	epollCtlOrAbort(p.epfd, delPoller, ch.Fd, nil)
	ch.SetIndex(-1)
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
