package cmdqueue

import (
	"sync/atomic"

	"github.com/joeycumines/go-vc4cl/event"
	"github.com/joeycumines/go-vc4cl/mailbox"
	"github.com/joeycumines/logiface"
)

var handleCounter atomic.Uint64

// Context is the parent of queues and events. It owns the mailbox, which is
// closed, disabling the QPUs, once the last reference is released.
type Context struct {
	// Prevent copying
	_ [0]func()

	mailbox *mailbox.Lazy
	logger  *logiface.Logger[logiface.Event]
	handle  uint64
	refs    atomic.Int32
}

var _ event.Context = (*Context)(nil)

// NewContext returns a context with a single reference, taking ownership of
// lazy, which may not be nil.
func NewContext(lazy *mailbox.Lazy, opts ...ContextOption) *Context {
	if lazy == nil {
		panic("cmdqueue: nil mailbox")
	}
	cfg := resolveContextOptions(opts)
	c := &Context{
		mailbox: lazy,
		logger:  cfg.logger,
		handle:  handleCounter.Add(1),
	}
	c.refs.Store(1)
	return c
}

// Handle returns the unique handle of the context.
func (c *Context) Handle() uint64 {
	return c.handle
}

// Mailbox returns the mailbox, opening it on first use.
func (c *Context) Mailbox() (*mailbox.Mailbox, error) {
	if c.refs.Load() <= 0 {
		return nil, ErrInvalidContext
	}
	return c.mailbox.Get()
}

// Logger returns the logger of the context, which may be nil.
func (c *Context) Logger() *logiface.Logger[logiface.Event] {
	return c.logger
}

// ReferenceCount returns the number of references, 0 once released.
func (c *Context) ReferenceCount() uint32 {
	return uint32(max(c.refs.Load(), 0))
}

// Retain adds a reference.
func (c *Context) Retain() {
	c.refs.Add(1)
}

// Release drops a reference. Releasing the last one closes the mailbox,
// returning the error, if any.
func (c *Context) Release() error {
	for {
		n := c.refs.Load()
		if n <= 0 {
			return ErrInvalidContext
		}
		if c.refs.CompareAndSwap(n, n-1) {
			if n != 1 {
				return nil
			}
			c.logger.Debug().
				Uint64("context", c.handle).
				Log("cmdqueue: context released")
			return c.mailbox.Close()
		}
	}
}
