package mailbox

import (
	"github.com/joeycumines/logiface"
)

// mailboxOptions holds configuration options for Mailbox creation.
type mailboxOptions struct {
	logger   *logiface.Logger[logiface.Event]
	pageSize uint32
}

// Option configures a [Mailbox], or the devices opened by [DefaultOpener].
type Option interface {
	applyMailbox(*mailboxOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyMailboxFunc func(*mailboxOptions) error
}

func (o *optionImpl) applyMailbox(opts *mailboxOptions) error {
	return o.applyMailboxFunc(opts)
}

// WithLogger sets the logger. Buffers are dumped at trace level, before and
// after every call. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *mailboxOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithPageSize overrides the host page size, which is the minimum alignment
// of every allocation. Must be a power of two.
func WithPageSize(size uint32) Option {
	return &optionImpl{func(opts *mailboxOptions) error {
		if size == 0 || size&(size-1) != 0 {
			return errInvalidPageSize
		}
		opts.pageSize = size
		return nil
	}}
}

// resolveOptions applies Option instances to mailboxOptions.
func resolveOptions(opts []Option) (*mailboxOptions, error) {
	cfg := &mailboxOptions{
		pageSize: uint32(hostPageSize()),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyMailbox(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
