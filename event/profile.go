package event

import (
	"time"
)

// Profile holds the profiling timestamps of an event, in nanoseconds. Each is
// set once, when the event first enters the corresponding state, and is zero
// until then.
type Profile struct {
	Queued    uint64
	Submitted uint64
	Started   uint64
	Ended     uint64
}

// Clock returns the current time, in nanoseconds. It must be monotonic.
type Clock func() uint64

// MonotonicClock returns a [Clock] reporting wall-clock nanoseconds since the
// Unix epoch, as of its creation, advanced by the monotonic clock, so it
// never goes backwards.
func MonotonicClock() Clock {
	anchor := time.Now()
	base := uint64(anchor.UnixNano())
	return func() uint64 {
		// time.Since uses the monotonic reading of anchor
		return base + uint64(time.Since(anchor))
	}
}

var defaultClock = MonotonicClock()
