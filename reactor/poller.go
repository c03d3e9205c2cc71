package reactor

import "time"

// Poller multiplexes readiness across registered Channels. Implementations
// are level-triggered: a descriptor stays reported ready while its
// condition holds, independent of how many prior polls reported it.
type Poller interface {
	// Poll blocks until at least one descriptor is ready or timeout
	// elapses, appending the active Channels (with their delivered event
	// mask already applied via HandleEvent-ready state) to activeChannels.
	// It returns the wall-clock time the poll returned, mirroring the
	// teacher's pattern of timestamping each loop iteration for latency
	// metrics.
	Poll(timeout time.Duration, activeChannels *[]*Channel) (time.Time, error)

	// UpdateChannel performs add-or-modify registration based on whether
	// ch has been seen before (tracked via ch.Index()).
	UpdateChannel(ch *Channel)

	// RemoveChannel detaches ch. ch must have no residual event interest.
	RemoveChannel(ch *Channel)

	// Close releases the poller's own kernel resources (e.g. the epoll
	// fd). Not safe to call while Poll is blocked in another goroutine.
	Close() error
}
