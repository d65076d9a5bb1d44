package mailbox

import (
	"sync"
)

// Lazy constructs a [Mailbox] on first use, exactly once, even if first used
// from multiple goroutines concurrently. The outcome, including any error, is
// cached.
//
// A Lazy is the process-scoped handle to the mailbox: create one, and pass it
// to everything that needs the mailbox.
type Lazy struct {
	get     func() (*Mailbox, error)
	created *Mailbox
	mu      sync.Mutex
	closed  bool
}

// NewLazy returns a Lazy that uses open to construct the mailbox.
func NewLazy(open func() (*Mailbox, error)) *Lazy {
	l := new(Lazy)
	l.get = sync.OnceValues(func() (*Mailbox, error) {
		mb, err := open()
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed {
			_ = mb.Close()
			return nil, ErrClosed
		}
		l.created = mb
		return mb, nil
	})
	return l
}

// DefaultOpener returns a function that opens the mailbox device and the
// physical memory device, at the given paths.
func DefaultOpener(devicePath, memoryPath string, opts ...Option) func() (*Mailbox, error) {
	return func() (*Mailbox, error) {
		transport, err := OpenDevice(devicePath)
		if err != nil {
			return nil, err
		}
		mapper, err := OpenMemory(memoryPath)
		if err != nil {
			_ = transport.Close()
			return nil, err
		}
		return New(transport, mapper, opts...)
	}
}

// Get returns the mailbox, constructing it if necessary.
func (l *Lazy) Get() (*Mailbox, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return l.get()
}

// Close closes the mailbox, if it was constructed, disabling the QPUs.
// Subsequent calls to Get fail with [ErrClosed].
func (l *Lazy) Close() error {
	l.mu.Lock()
	l.closed = true
	mb := l.created
	l.created = nil
	l.mu.Unlock()
	if mb != nil {
		return mb.Close()
	}
	return nil
}
