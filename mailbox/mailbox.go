package mailbox

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// enableSentinel is returned in place of 0 by ENABLE_QPU when the QPUs were
// already enabled (or are still in use, when disabling). It hints at a
// reference count inside the firmware, and is treated as success.
const enableSentinel = 0x80000000

// maxCodeArguments is the number of registers (r0-r5) EXECUTE_CODE sets.
const maxCodeArguments = 6

var (
	errEnableFailed = errors.New("mailbox: failed to enable QPUs")
	errNilTransport = errors.New("mailbox: nil transport")
	errNilMapper    = errors.New("mailbox: nil mapper")
)

// Mailbox is an open property mailbox channel.
//
// All methods are safe for concurrent use. Every operation performs exactly
// one system call, with a buffer local to the call.
type Mailbox struct {
	// Prevent copying
	_ [0]func()

	transport Transport
	mapper    Mapper
	logger    *logiface.Logger[logiface.Event]
	closeErr  error
	pageSize  uint32
	closeOnce sync.Once
	closed    atomic.Bool
}

// ControlList describes the QPU launch array for [Mailbox.ExecuteQPU]: for
// each QPU, the bus address of its uniforms, followed by the bus address of
// its code.
type ControlList struct {
	// Host is the host view of the array, optional, used for validation.
	Host []uint32
	// Address is the bus address of the array.
	Address DevicePointer
}

// New takes ownership of transport and mapper, and enables the QPUs.
// On failure both are closed.
func New(transport Transport, mapper Mapper, opts ...Option) (*Mailbox, error) {
	if transport == nil {
		return nil, errNilTransport
	}
	if mapper == nil {
		_ = transport.Close()
		return nil, errNilMapper
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		_ = transport.Close()
		_ = mapper.Close()
		return nil, err
	}

	x := &Mailbox{
		transport: transport,
		mapper:    mapper,
		logger:    cfg.logger,
		pageSize:  cfg.pageSize,
	}

	ok, err := x.EnableQPU(true)
	if err == nil && !ok {
		err = errEnableFailed
	} else if err != nil {
		err = fmt.Errorf("%w: %w", errEnableFailed, err)
	}
	if err != nil {
		_ = transport.Close()
		_ = mapper.Close()
		return nil, err
	}

	x.logger.Debug().
		Uint64("page_size", uint64(x.pageSize)).
		Log("mailbox: opened")

	return x, nil
}

// Close disables the QPUs, then releases the underlying devices. Subsequent
// calls return the result of the first.
func (x *Mailbox) Close() error {
	x.closeOnce.Do(func() {
		var errs []error
		if ok, err := x.EnableQPU(false); err != nil {
			errs = append(errs, err)
		} else if !ok {
			// nothing else can be done about it
			x.logger.Warning().Log("mailbox: failed to disable QPUs")
		}
		x.closed.Store(true)
		if err := x.mapper.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := x.transport.Close(); err != nil {
			errs = append(errs, err)
		}
		x.closeErr = errors.Join(errs...)
		x.logger.Debug().Log("mailbox: closed")
	})
	return x.closeErr
}

// PageSize returns the minimum alignment of allocations.
func (x *Mailbox) PageSize() uint32 {
	return x.pageSize
}

// Call sends msg to the firmware, returning a [*CallError] if the system call
// failed. It doesn't interpret the response.
func (x *Mailbox) Call(msg *Message) error {
	if x.closed.Load() {
		return ErrClosed
	}

	x.dump("mailbox: buffer before", msg)

	if err := x.transport.Call(msg.Words()); err != nil {
		x.logger.Err().
			Err(err).
			Stringer("tag", msg.Tag()).
			Log("mailbox: property call failed")
		return &CallError{Tag: msg.Tag(), Err: err}
	}

	x.dump("mailbox: buffer after", msg)

	return nil
}

// readMessage performs a call, and checks the response code of the buffer.
func (x *Mailbox) readMessage(msg *Message) (bool, error) {
	if err := x.Call(msg); err != nil {
		return false, err
	}
	if !msg.Succeeded() {
		x.logger.Debug().
			Stringer("tag", msg.Tag()).
			Uint64("code", uint64(msg.ResponseCode())).
			Log("mailbox: request failed")
		return false, nil
	}
	return true, nil
}

func (x *Mailbox) dump(label string, msg *Message) {
	b := x.logger.Trace()
	if !b.Enabled() {
		return
	}
	var s strings.Builder
	_ = msg.Dump(&s)
	b.Stringer("tag", msg.Tag()).
		Str("buffer", s.String()).
		Log(label)
}

// EnableQPU enables or disables the QPUs.
//
// The firmware answers 0x80000000 instead of 0 if another user already
// enabled (or still uses) the QPUs. That behavior is inferred, not
// documented, and is accepted as success.
func (x *Mailbox) EnableQPU(enable bool) (bool, error) {
	var v uint32
	if enable {
		v = 1
	}
	msg := NewMessage(TagEnableQPU, []uint32{v}, 1)
	if err := x.Call(msg); err != nil {
		return false, err
	}
	status := msg.Content(0)
	return status == 0 || status == enableSentinel, nil
}

// MemAlloc allocates GPU memory, returning the handle, or 0 if the firmware
// rejected the request. The alignment is raised to at least the page size,
// since the host mapping is released at page granularity.
func (x *Mailbox) MemAlloc(size, alignment uint32, flags MemoryFlag) (uint32, error) {
	msg := NewMessage(TagAllocateMemory, []uint32{size, max(x.pageSize, alignment), uint32(flags)}, 1)
	if err := x.Call(msg); err != nil {
		return 0, err
	}
	return msg.Content(0), nil
}

// MemLock locks the allocation in place, returning its bus address, or 0 if
// the firmware rejected the request.
func (x *Mailbox) MemLock(handle uint32) (DevicePointer, error) {
	msg := NewMessage(TagLockMemory, []uint32{handle}, 1)
	if err := x.Call(msg); err != nil {
		return 0, err
	}
	return DevicePointer(msg.Content(0)), nil
}

// MemUnlock unlocks a previously locked allocation.
func (x *Mailbox) MemUnlock(handle uint32) (bool, error) {
	msg := NewMessage(TagUnlockMemory, []uint32{handle}, 1)
	if err := x.Call(msg); err != nil {
		return false, err
	}
	return msg.Content(0) == 0, nil
}

// MemFree releases an allocation, which must be unlocked.
func (x *Mailbox) MemFree(handle uint32) (bool, error) {
	msg := NewMessage(TagReleaseMemory, []uint32{handle}, 1)
	if err := x.Call(msg); err != nil {
		return false, err
	}
	return msg.Content(0) == 0, nil
}

// ExecuteCode runs VideoCore code at the given bus address, with r0-r5 set to
// args. Missing arguments are 0.
func (x *Mailbox) ExecuteCode(address uint32, args ...uint32) (bool, error) {
	if len(args) > maxCodeArguments {
		return false, ErrTooManyArguments
	}
	var request [1 + maxCodeArguments]uint32
	request[0] = address
	copy(request[1:], args)
	msg := NewMessage(TagExecuteCode, request[:], 1)
	if err := x.Call(msg); err != nil {
		return false, err
	}
	return msg.Content(0) == 0, nil
}

// ExecuteQPU runs code on numQPUs QPUs, blocking until they finish, or the
// timeout elapses.
//
// By default the firmware flushes the GPU side L1 and L2 data caches before
// executing, flush=false skips that, which is a little quicker.
func (x *Mailbox) ExecuteQPU(numQPUs uint32, control ControlList, flush bool, timeout time.Duration) (bool, error) {
	ms := timeout.Milliseconds()
	if ms < 0 || ms > math.MaxUint32 {
		x.logger.Debug().
			Int64("timeout_ms", ms).
			Log("mailbox: timeout is too big, needs to fit into a 32-bit integer")
		return false, ErrTimeoutOutOfRange
	}
	if control.Host != nil && uint64(len(control.Host)) < 2*uint64(numQPUs) {
		return false, ErrControlListTooShort
	}
	var noFlush uint32
	if !flush {
		noFlush = 1
	}
	msg := NewMessage(TagExecuteQPU, []uint32{numQPUs, uint32(control.Address), noFlush, uint32(ms)}, 1)
	if err := x.Call(msg); err != nil {
		return false, err
	}
	return msg.Content(0) == 0, nil
}

// TotalGPUMemory returns the amount of GPU memory usable for compute: half of
// the memory assigned to the VideoCore, the rest is left for video and the
// firmware. Returns 0 if the query fails.
func (x *Mailbox) TotalGPUMemory() (uint32, error) {
	r, err := x.VCMemory()
	if err != nil {
		return 0, err
	}
	return r.Size / 2, nil
}
