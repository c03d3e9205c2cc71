//go:build linux

package loop

import (
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// timerPlatform wraps a Linux timerfd armed to fire once per second,
// matching spec.md's "1-second timer fd" that drives the TimerWheel.
type timerPlatform struct {
	fd int
}

func newTimerPlatform() (*timerPlatform, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("timerfd_create: %w", err)
	}
	spec := unix.ItimerSpec{
		Interval: unix.NsecToTimespec(int64(time.Second)),
		Value:    unix.NsecToTimespec(int64(time.Second)),
	}
	if err := unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("timerfd_settime: %w", err)
	}
	return &timerPlatform{fd: fd}, nil
}

func (t *timerPlatform) Fd() int { return t.fd }

// ReadExpirations reads the 8-byte overflow count the kernel has
// accumulated since the last read. Returns 0 on EAGAIN (spurious wakeup)
// rather than erroring, matching spec.md's "transient I/O" category.
func (t *timerPlatform) ReadExpirations() uint64 {
	var buf [8]byte
	n, err := unix.Read(t.fd, buf[:])
	if err != nil || n != 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(buf[:])
}

func (t *timerPlatform) Close() error {
	return unix.Close(t.fd)
}

func newEventFd() (int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, fmt.Errorf("eventfd: %w", err)
	}
	return fd, nil
}

func writeEventFd(fd int) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(fd, buf[:])
}

func drainEventFd(fd int) {
	var buf [8]byte
	_, _ = unix.Read(fd, buf[:])
}

func closeFd(fd int) {
	_ = unix.Close(fd)
}
