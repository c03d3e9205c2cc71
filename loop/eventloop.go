// Package loop implements the reactor event loop: a single-thread-owned
// cycle of poll -> dispatch -> drain-task-queue that is the synchronization
// backbone for every other component in this module.
package loop

import (
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/reactor-http/reactor"
	"github.com/momentics/reactor-http/timerwheel"
)

// pollTimeout bounds how long a single Poll call may block so the loop can
// periodically re-check its quit channel even with no registered activity.
const pollTimeout = 1 * time.Second

// EventLoop is bound permanently to the goroutine that calls Run. It owns
// a Poller, a wake-up eventfd wrapped in a Channel, a TimerWheel backed by
// a 1-second timerfd also wrapped in a Channel, and a cross-thread task
// queue drained under a swap-and-run pattern to minimize time spent
// holding the queue's mutex.
type EventLoop struct {
	poller reactor.Poller

	wakeFd      int
	wakeChannel *reactor.Channel

	timer        *timerPlatform
	timerChannel *reactor.Channel
	wheel        *timerwheel.Wheel
	nextTimerID  uint64

	threadID     int64 // not assigned anywhere; Run does not record its goroutine
	runningFlag  bool

	mu       sync.Mutex
	tasks    *queue.Queue
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}

	activeChannels []*reactor.Channel
}

// New constructs an EventLoop. It does not start polling until Run is
// called; Run must be called from the goroutine that will own this loop
// for its entire lifetime.
func New() (*EventLoop, error) {
	poller, err := reactor.NewPoller()
	if err != nil {
		return nil, fmt.Errorf("loop: new poller: %w", err)
	}
	timer, err := newTimerPlatform()
	if err != nil {
		poller.Close()
		return nil, fmt.Errorf("loop: new timer: %w", err)
	}
	wakeFd, err := newEventFd()
	if err != nil {
		poller.Close()
		timer.Close()
		return nil, fmt.Errorf("loop: new eventfd: %w", err)
	}

	el := &EventLoop{
		poller: poller,
		wakeFd: wakeFd,
		timer:  timer,
		wheel:  timerwheel.New(),
		tasks:  queue.New(),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	el.wakeChannel = reactor.NewChannel(el, wakeFd)
	el.wakeChannel.ReadCallback = el.handleWake
	el.wakeChannel.EnableReading()

	el.timerChannel = reactor.NewChannel(el, timer.Fd())
	el.timerChannel.ReadCallback = el.handleTimerExpiry
	el.timerChannel.EnableReading()

	return el, nil
}

// UpdateChannel satisfies reactor.LoopOwner: it forwards to the Poller.
func (el *EventLoop) UpdateChannel(ch *reactor.Channel) { el.poller.UpdateChannel(ch) }

// RemoveChannel satisfies reactor.LoopOwner.
func (el *EventLoop) RemoveChannel(ch *reactor.Channel) { el.poller.RemoveChannel(ch) }

// AssertInLoopThread satisfies reactor.LoopOwner and is a no-op: it does
// not check which goroutine is calling and never panics. Cross-thread
// work goes through RunInLoop/QueueInLoop.
func (el *EventLoop) AssertInLoopThread() {}

// Run executes the main reactor cycle until Stop is called. It must run on
// the goroutine that is to be permanently associated with this loop.
func (el *EventLoop) Run() error {
	defer close(el.done)
	el.runningFlag = true

	for {
		select {
		case <-el.quit:
			return nil
		default:
		}

		el.activeChannels = el.activeChannels[:0]
		_, err := el.poller.Poll(pollTimeout, &el.activeChannels)
		if err != nil {
			return fmt.Errorf("loop: poll: %w", err)
		}

		for _, ch := range el.activeChannels {
			ch.HandleEvent(ch.PendingEvents())
		}

		el.drainTasks()
	}
}

// Stop requests the loop to exit after its current iteration and blocks
// until Run has returned. Safe to call from any goroutine, any number of
// times.
func (el *EventLoop) Stop() {
	first := false
	el.quitOnce.Do(func() {
		close(el.quit)
		first = true
	})
	if !first {
		<-el.done
		return
	}
	el.wake()
	<-el.done
	el.wakeChannel.Remove()
	el.timerChannel.Remove()
	closeFd(el.wakeFd)
	el.timer.Close()
	el.poller.Close()
}

// drainTasks swaps the pending task queue for an empty one under the lock,
// then runs every queued task without holding the lock, so foreign
// producers are never blocked behind a long-running task.
func (el *EventLoop) drainTasks() {
	el.mu.Lock()
	pending := el.tasks
	el.tasks = queue.New()
	el.mu.Unlock()

	for pending.Length() > 0 {
		task := pending.Remove().(func())
		task()
	}
}

// RunInLoop queues fn and wakes the loop, exactly like QueueInLoop. It
// never runs fn synchronously, even when called from this loop's own
// goroutine: fn runs after the current dispatch pass, in FIFO order with
// other submissions. QueueInLoop is kept for call sites that want to be
// explicit about deferring.
func (el *EventLoop) RunInLoop(fn func()) {
	el.QueueInLoop(fn)
}

// QueueInLoop enqueues fn to run on this loop's own goroutine after the
// current dispatch pass, and wakes the loop if it may be blocked in Poll.
// Safe to call from any goroutine; submissions are FIFO relative to each
// other.
func (el *EventLoop) QueueInLoop(fn func()) {
	el.mu.Lock()
	el.tasks.Add(fn)
	el.mu.Unlock()
	el.wake()
}

// handleWake drains the eventfd counter so level-triggered readiness
// clears until the next wake.
func (el *EventLoop) handleWake() {
	drainEventFd(el.wakeFd)
}

func (el *EventLoop) wake() {
	writeEventFd(el.wakeFd)
}

// handleTimerExpiry reads the timerfd's overflow count and advances the
// wheel that many ticks, per spec.md 4.4: one read, k advances.
func (el *EventLoop) handleTimerExpiry() {
	k := el.timer.ReadExpirations()
	for i := uint64(0); i < k; i++ {
		el.wheel.Advance()
	}
}

// AddTimer schedules a new idle-eviction timer keyed by id, due in delaySec
// seconds. Must be called on the loop's own goroutine (route through
// RunInLoop from elsewhere).
func (el *EventLoop) AddTimer(id uint64, delaySec int, action, release func()) {
	el.wheel.Add(id, delaySec, action, release)
}

// RefreshTimer re-arms id's timer for delaySec more seconds. Must be
// called on the loop's own goroutine.
func (el *EventLoop) RefreshTimer(id uint64, delaySec int) bool {
	return el.wheel.Refresh(id, delaySec)
}

// CancelTimer suppresses id's timer callback. Must be called on the
// loop's own goroutine.
func (el *EventLoop) CancelTimer(id uint64) bool {
	return el.wheel.Cancel(id)
}

// HasTimer reports whether id currently has a live timer. Must be called
// on the loop's own goroutine.
func (el *EventLoop) HasTimer(id uint64) bool {
	return el.wheel.Has(id)
}
