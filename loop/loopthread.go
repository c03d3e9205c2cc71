package loop

import "runtime"

// Thread creates a reactor in a new goroutine pinned to its own OS thread
// (via runtime.LockOSThread, the nearest Go analogue to the teacher's
// NUMA-pinned worker threads in internal/concurrency/affinity_linux.go,
// minus the NUMA topology machinery this spec's domain has no use for —
// see DESIGN.md) and hands back its EventLoop handle once the loop is
// constructed; Run is called on that goroutine right afterwards.
type Thread struct {
	loop    *EventLoop
	started chan struct{}
	errc    chan error
}

// NewThread starts the reactor goroutine and blocks until the EventLoop is
// constructed, returning the thread handle. It does not wait for Run to
// begin; tasks queued before then run once it does.
func NewThread() (*Thread, error) {
	lt := &Thread{started: make(chan struct{}), errc: make(chan error, 1)}
	go lt.threadFunc()
	if err := <-lt.errc; err != nil {
		return nil, err
	}
	return lt, nil
}

func (lt *Thread) threadFunc() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	el, err := New()
	if err != nil {
		lt.errc <- err
		return
	}
	lt.loop = el
	lt.errc <- nil

	_ = el.Run()
}

// Loop returns the EventLoop owned by this thread.
func (lt *Thread) Loop() *EventLoop { return lt.loop }

// Stop stops the owned EventLoop and waits for its goroutine to exit.
func (lt *Thread) Stop() { lt.loop.Stop() }
