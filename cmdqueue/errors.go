package cmdqueue

import (
	"errors"
)

var (
	// ErrQueueClosed is returned when submitting to a closed [Queue].
	ErrQueueClosed = errors.New("cmdqueue: queue closed")

	// ErrInvalidContext is returned when using a [Context] that has already
	// been released.
	ErrInvalidContext = errors.New("cmdqueue: invalid context")
)
