package cmdqueue

import (
	"errors"
	"sync"
	"time"

	"github.com/joeycumines/go-vc4cl/event"
	"github.com/joeycumines/go-vc4cl/mailbox"
)

// ReadBufferAction copies from a device buffer into host memory.
type ReadBufferAction struct {
	// Prevent copying
	_ [0]func()

	buf    *mailbox.DeviceBuffer
	dst    []byte
	offset uint32
}

// NewReadBufferAction reads len(dst) bytes from buf, starting at offset.
func NewReadBufferAction(buf *mailbox.DeviceBuffer, offset uint32, dst []byte) *ReadBufferAction {
	return &ReadBufferAction{buf: buf, offset: offset, dst: dst}
}

// Execute implements [event.Action].
func (a *ReadBufferAction) Execute(*event.Event) event.Status {
	src, ok := bufferRange(a.buf, a.offset, len(a.dst))
	if !ok {
		return event.ErrInvalidValue.Status()
	}
	copy(a.dst, src)
	return event.Complete
}

// WriteBufferAction copies from host memory into a device buffer.
type WriteBufferAction struct {
	// Prevent copying
	_ [0]func()

	buf    *mailbox.DeviceBuffer
	src    []byte
	offset uint32
}

// NewWriteBufferAction writes src to buf, starting at offset.
func NewWriteBufferAction(buf *mailbox.DeviceBuffer, offset uint32, src []byte) *WriteBufferAction {
	return &WriteBufferAction{buf: buf, offset: offset, src: src}
}

// Execute implements [event.Action].
func (a *WriteBufferAction) Execute(*event.Event) event.Status {
	dst, ok := bufferRange(a.buf, a.offset, len(a.src))
	if !ok {
		return event.ErrInvalidValue.Status()
	}
	copy(dst, a.src)
	return event.Complete
}

// FillBufferAction repeats a pattern over a range of a device buffer.
type FillBufferAction struct {
	// Prevent copying
	_ [0]func()

	buf     *mailbox.DeviceBuffer
	pattern []byte
	offset  uint32
	size    uint32
}

// NewFillBufferAction fills size bytes of buf, starting at offset, with
// pattern. The size must be a multiple of the pattern's length.
func NewFillBufferAction(buf *mailbox.DeviceBuffer, pattern []byte, offset, size uint32) *FillBufferAction {
	return &FillBufferAction{buf: buf, pattern: pattern, offset: offset, size: size}
}

// Execute implements [event.Action].
func (a *FillBufferAction) Execute(*event.Event) event.Status {
	if len(a.pattern) == 0 || a.size%uint32(len(a.pattern)) != 0 {
		return event.ErrInvalidValue.Status()
	}
	dst, ok := bufferRange(a.buf, a.offset, int(a.size))
	if !ok {
		return event.ErrInvalidValue.Status()
	}
	for i := 0; i < len(dst); i += len(a.pattern) {
		copy(dst[i:], a.pattern)
	}
	return event.Complete
}

func bufferRange(buf *mailbox.DeviceBuffer, offset uint32, n int) ([]byte, bool) {
	if buf == nil {
		return nil, false
	}
	host := buf.Host()
	if host == nil || uint64(offset)+uint64(n) > uint64(len(host)) {
		return nil, false
	}
	return host[offset : int(offset)+n], true
}

// ExecuteQPUAction runs code on the QPUs, through the mailbox.
type ExecuteQPUAction struct {
	// Prevent copying
	_ [0]func()

	mailbox *mailbox.Mailbox
	err     error
	control mailbox.ControlList
	timeout time.Duration
	mu      sync.Mutex
	numQPUs uint32
	flush   bool
}

// NewExecuteQPUAction runs numQPUs QPUs, see [mailbox.Mailbox.ExecuteQPU].
func NewExecuteQPUAction(mb *mailbox.Mailbox, numQPUs uint32, control mailbox.ControlList, flush bool, timeout time.Duration) *ExecuteQPUAction {
	return &ExecuteQPUAction{
		mailbox: mb,
		numQPUs: numQPUs,
		control: control,
		flush:   flush,
		timeout: timeout,
	}
}

// Execute implements [event.Action]. Invalid arguments fail with
// [event.ErrInvalidValue], anything else with [event.ErrOutOfResources], see
// also [ExecuteQPUAction.Err].
func (a *ExecuteQPUAction) Execute(e *event.Event) event.Status {
	ok, err := a.mailbox.ExecuteQPU(a.numQPUs, a.control, a.flush, a.timeout)

	a.mu.Lock()
	a.err = err
	a.mu.Unlock()

	switch {
	case errors.Is(err, mailbox.ErrTimeoutOutOfRange), errors.Is(err, mailbox.ErrControlListTooShort):
		return event.ErrInvalidValue.Status()
	case err != nil:
		if ctx, _ := e.Context().(*Context); ctx != nil {
			ctx.logger.Err().
				Err(err).
				Stringer("event", e.ID()).
				Log("cmdqueue: failed to execute QPU code")
		}
		return event.ErrOutOfResources.Status()
	case !ok:
		return event.ErrOutOfResources.Status()
	}
	return event.Complete
}

// Err returns the error of the last execution, if the mailbox call failed.
func (a *ExecuteQPUAction) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}
