//go:build !linux

package loop

import (
	"os"
	"time"
)

// timerPlatform on non-Linux platforms is a compile-time stand-in: this
// module's production multiplexer is Linux epoll/timerfd only, per
// spec.md §1. It exists so the package builds elsewhere; Run will return
// the stub poller's error before ever touching this type meaningfully.
type timerPlatform struct {
	r, w *os.File
	tick *time.Ticker
	done chan struct{}
}

func newTimerPlatform() (*timerPlatform, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	t := &timerPlatform{r: r, w: w, tick: time.NewTicker(time.Second), done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-t.tick.C:
				w.Write([]byte{1})
			case <-t.done:
				return
			}
		}
	}()
	return t, nil
}

func (t *timerPlatform) Fd() int { return int(t.r.Fd()) }

func (t *timerPlatform) ReadExpirations() uint64 {
	var buf [1]byte
	n, err := t.r.Read(buf[:])
	if err != nil || n != 1 {
		return 0
	}
	return 1
}

func (t *timerPlatform) Close() error {
	t.tick.Stop()
	close(t.done)
	t.w.Close()
	return t.r.Close()
}

func newEventFd() (int, error) {
	r, _, err := os.Pipe()
	if err != nil {
		return -1, err
	}
	return int(r.Fd()), nil
}

func writeEventFd(fd int) {}
func drainEventFd(fd int) {}
func closeFd(fd int)      {}
