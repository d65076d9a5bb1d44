package cmdqueue

import (
	"github.com/joeycumines/logiface"
)

// contextOptions holds configuration options for Context creation.
type contextOptions struct {
	logger *logiface.Logger[logiface.Event]
}

// queueOptions holds configuration options for Queue creation.
type queueOptions struct {
	logger    *logiface.Logger[logiface.Event]
	profiling bool
}

// ContextOption configures a [Context].
type ContextOption interface {
	applyContext(*contextOptions)
}

// QueueOption configures a [Queue].
type QueueOption interface {
	applyQueue(*queueOptions)
}

// Option configures both a [Context] and a [Queue].
type Option interface {
	ContextOption
	QueueOption
}

type loggerOption struct {
	logger *logiface.Logger[logiface.Event]
}

func (o loggerOption) applyContext(opts *contextOptions) { opts.logger = o.logger }

func (o loggerOption) applyQueue(opts *queueOptions) { opts.logger = o.logger }

// WithLogger sets the logger.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return loggerOption{logger}
}

// queueOptionImpl implements QueueOption.
type queueOptionImpl struct {
	applyQueueFunc func(*queueOptions)
}

func (o *queueOptionImpl) applyQueue(opts *queueOptions) {
	o.applyQueueFunc(opts)
}

// WithProfiling enables recording of the profiling timestamps of events
// executed by the queue, see [event.Event.Profile].
func WithProfiling(enabled bool) QueueOption {
	return &queueOptionImpl{func(opts *queueOptions) {
		opts.profiling = enabled
	}}
}

func resolveContextOptions(opts []ContextOption) *contextOptions {
	cfg := &contextOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyContext(cfg)
		}
	}
	return cfg
}

func resolveQueueOptions(opts []QueueOption) *queueOptions {
	cfg := &queueOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyQueue(cfg)
		}
	}
	return cfg
}
