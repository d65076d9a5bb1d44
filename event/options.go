package event

import (
	"github.com/joeycumines/logiface"
)

// eventOptions holds configuration options for Event creation.
type eventOptions struct {
	logger *logiface.Logger[logiface.Event]
	clock  Clock
}

// Option configures an [Event].
type Option interface {
	applyEvent(*eventOptions)
}

// optionImpl implements Option.
type optionImpl struct {
	applyEventFunc func(*eventOptions)
}

func (o *optionImpl) applyEvent(opts *eventOptions) {
	o.applyEventFunc(opts)
}

// WithLogger sets the logger, which logs status transitions at debug level.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *eventOptions) {
		opts.logger = logger
	}}
}

// WithClock sets the clock used for profiling timestamps. A nil clock
// restores the default, see [MonotonicClock].
func WithClock(clock Clock) Option {
	return &optionImpl{func(opts *eventOptions) {
		opts.clock = clock
	}}
}

// resolveOptions applies Option instances to eventOptions.
func resolveOptions(opts []Option) *eventOptions {
	cfg := &eventOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyEvent(cfg)
	}
	if cfg.clock == nil {
		cfg.clock = defaultClock
	}
	return cfg
}
