// Package mailboxtest provides an in-memory VideoCore firmware, implementing
// [mailbox.Transport] and [mailbox.Mapper], for tests.
package mailboxtest

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/joeycumines/go-vc4cl/mailbox"
)

const (
	// busAlias is the uncached (0xC) alias, which the real firmware returns
	// for locked memory.
	busAlias = 0xC0000000
	// physBase is where fake allocations start, in physical address space.
	physBase = 0x1E000000
	// pageSize is the granularity of fake allocations.
	pageSize = 4096
)

// Defaults reported by the fake firmware.
const (
	DefaultFirmwareRevision = 0x5f6e1d4a
	DefaultBoardModel       = 0
	DefaultBoardRevision    = 0xa02082
	DefaultBoardSerial      = 0x00000000_1234abcd
	DefaultARMMemorySize    = 0x3b400000
	DefaultVCMemoryBase     = 0x3b400000
	DefaultVCMemorySize     = 0x04c00000
	DefaultV3DClockRate     = 250_000_000
	DefaultTemperature      = 48_312
	DefaultMaxTemperature   = 85_000
)

// Call records a request, as received by the firmware.
type Call struct {
	Request []uint32
	Tag     mailbox.Tag
}

// Execution records an EXECUTE_QPU request.
type Execution struct {
	NumQPUs uint32
	Control uint32
	NoFlush uint32
	Timeout uint32
}

type allocation struct {
	memory []byte
	phys   uint32
	flags  uint32
	locked bool
	mapped int
}

// Firmware is a fake VideoCore firmware, safe for concurrent use.
//
// The exported fields configure failure injection, and must be set before
// use, or while holding no expectations about concurrent calls.
type Firmware struct {
	allocs     map[uint32]*allocation
	rejected   map[mailbox.Tag]bool
	err        error
	mapErr     error
	calls      []Call
	executions []Execution
	mu         sync.Mutex
	nextHandle uint32
	nextPhys   uint32
	enabled    int
	closed     int
	qpuResult  uint32
}

var (
	_ mailbox.Transport = (*Firmware)(nil)
	_ mailbox.Mapper    = (*Firmware)(nil)
)

// New returns a fake firmware, with no allocations, and the QPUs disabled.
func New() *Firmware {
	return &Firmware{
		allocs:     make(map[uint32]*allocation),
		rejected:   make(map[mailbox.Tag]bool),
		nextHandle: 1,
		nextPhys:   physBase,
	}
}

// Open returns a [mailbox.Mailbox] using f as both transport and mapper.
func (f *Firmware) Open(opts ...mailbox.Option) (*mailbox.Mailbox, error) {
	return mailbox.New(f, f, append([]mailbox.Option{mailbox.WithPageSize(pageSize)}, opts...)...)
}

// FailCalls makes every subsequent system call fail with err, or succeed
// again if err is nil.
func (f *Firmware) FailCalls(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// FailMaps makes every subsequent Map fail with err, or succeed again if err
// is nil.
func (f *Firmware) FailMaps(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mapErr = err
}

// Reject makes the firmware reject (or stop rejecting) requests for tag.
func (f *Firmware) Reject(tag mailbox.Tag, reject bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected[tag] = reject
}

// SetQPUResult sets the status word EXECUTE_QPU responds with.
func (f *Firmware) SetQPUResult(v uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qpuResult = v
}

// Calls returns a copy of every request received so far.
func (f *Firmware) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallCount returns the number of requests received for tag.
func (f *Firmware) CallCount(tag mailbox.Tag) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	for _, c := range f.calls {
		if c.Tag == tag {
			n++
		}
	}
	return n
}

// Executions returns a copy of every EXECUTE_QPU request received so far.
func (f *Firmware) Executions() []Execution {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.executions)
}

// Allocations returns the number of live allocations.
func (f *Firmware) Allocations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.allocs)
}

// Mapped returns the number of live host mappings.
func (f *Firmware) Mapped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	for _, a := range f.allocs {
		n += a.mapped
	}
	return n
}

// Locked reports whether the allocation exists, and is locked.
func (f *Firmware) Locked(handle uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.allocs[handle]
	return a != nil && a.locked
}

// Memory returns the firmware side view of an allocation, nil if there is no
// such allocation.
func (f *Firmware) Memory(handle uint32) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a := f.allocs[handle]; a != nil {
		return a.memory
	}
	return nil
}

// Enabled returns the firmware's QPU enable reference count.
func (f *Firmware) Enabled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

// Closed returns the number of times Close was called.
func (f *Firmware) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close implements both [mailbox.Transport] and [mailbox.Mapper].
func (f *Firmware) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// Call implements [mailbox.Transport].
func (f *Firmware) Call(msg []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	if len(msg) < 7 || msg[0] != uint32(len(msg)*4) || msg[1] != 0 || msg[len(msg)-1] != 0 {
		return errors.New("mailboxtest: malformed buffer")
	}

	tag := mailbox.Tag(msg[2])
	valueBytes := msg[3]
	requestBytes := msg[4]
	if valueBytes%4 != 0 || int(valueBytes/4) != len(msg)-6 || requestBytes > valueBytes {
		return errors.New("mailboxtest: malformed tag")
	}
	value := msg[5 : 5+valueBytes/4]

	f.calls = append(f.calls, Call{Tag: tag, Request: slices.Clone(value[:requestBytes/4])})

	responseWords, ok := f.handle(tag, value)
	if !ok {
		msg[1] = mailbox.CodeResponseError
		return nil
	}
	msg[1] = mailbox.CodeResponseSuccess
	msg[4] = mailbox.ResponseFlag | uint32(responseWords*4)
	return nil
}

// handle processes a tag, must be called with f.mu held.
func (f *Firmware) handle(tag mailbox.Tag, value []uint32) (int, bool) {
	rejected := f.rejected[tag]

	switch tag {
	case mailbox.TagAllocateMemory:
		size, align, flags := value[0], value[1], value[2]
		value[0] = 0
		if rejected || size == 0 || align == 0 || align&(align-1) != 0 {
			return 1, true
		}
		handle := f.nextHandle
		f.nextHandle++
		phys := (f.nextPhys + align - 1) &^ (align - 1)
		f.nextPhys = phys + (size+pageSize-1)&^(pageSize-1)
		f.allocs[handle] = &allocation{
			memory: make([]byte, size),
			phys:   phys,
			flags:  flags,
		}
		value[0] = handle
		return 1, true

	case mailbox.TagLockMemory:
		a := f.allocs[value[0]]
		value[0] = 0
		if rejected || a == nil {
			return 1, true
		}
		a.locked = true
		value[0] = busAlias | a.phys
		return 1, true

	case mailbox.TagUnlockMemory:
		a := f.allocs[value[0]]
		if rejected || a == nil || !a.locked {
			value[0] = 1
			return 1, true
		}
		a.locked = false
		value[0] = 0
		return 1, true

	case mailbox.TagReleaseMemory:
		a := f.allocs[value[0]]
		if rejected || a == nil || a.locked {
			value[0] = 1
			return 1, true
		}
		delete(f.allocs, value[0])
		value[0] = 0
		return 1, true

	case mailbox.TagEnableQPU:
		if rejected {
			value[0] = 1
			return 1, true
		}
		if value[0] != 0 {
			f.enabled++
			if f.enabled == 1 {
				value[0] = 0
			} else {
				value[0] = 0x80000000
			}
		} else {
			if f.enabled > 0 {
				f.enabled--
			}
			if f.enabled == 0 {
				value[0] = 0
			} else {
				value[0] = 0x80000000
			}
		}
		return 1, true

	case mailbox.TagExecuteCode:
		value[0] = 0
		if rejected {
			value[0] = 1
		}
		return 1, true

	case mailbox.TagExecuteQPU:
		f.executions = append(f.executions, Execution{
			NumQPUs: value[0],
			Control: value[1],
			NoFlush: value[2],
			Timeout: value[3],
		})
		value[0] = f.qpuResult
		if rejected {
			value[0] = 1
		}
		return 1, true
	}

	if rejected {
		return 0, false
	}

	switch tag {
	case mailbox.TagFirmwareRevision:
		value[0] = DefaultFirmwareRevision
		return 1, true
	case mailbox.TagBoardModel:
		value[0] = DefaultBoardModel
		return 1, true
	case mailbox.TagBoardRevision:
		value[0] = DefaultBoardRevision
		return 1, true
	case mailbox.TagBoardSerial:
		value[0] = uint32(DefaultBoardSerial & 0xFFFFFFFF)
		value[1] = uint32(DefaultBoardSerial >> 32)
		return 2, true
	case mailbox.TagARMMemory:
		value[0] = 0
		value[1] = DefaultARMMemorySize
		return 2, true
	case mailbox.TagVCMemory:
		value[0] = DefaultVCMemoryBase
		value[1] = DefaultVCMemorySize
		return 2, true
	case mailbox.TagClockRate, mailbox.TagMaxClockRate:
		if mailbox.ClockID(value[0]) != mailbox.ClockV3D {
			value[1] = 0
		} else {
			value[1] = DefaultV3DClockRate
		}
		return 2, true
	case mailbox.TagTemperature:
		value[1] = DefaultTemperature
		return 2, true
	case mailbox.TagMaxTemperature:
		value[1] = DefaultMaxTemperature
		return 2, true
	}

	return 0, false
}

// Map implements [mailbox.Mapper], returning the firmware side memory of the
// allocation at phys, so writes through the host mapping are visible to
// [Firmware.Memory].
func (f *Firmware) Map(phys uint32, size uint32) (*mailbox.Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mapErr != nil {
		return nil, f.mapErr
	}
	for _, a := range f.allocs {
		if a.phys == phys && a.locked {
			if int(size) > len(a.memory) {
				return nil, fmt.Errorf("mailboxtest: map of %d bytes exceeds allocation of %d", size, len(a.memory))
			}
			a.mapped++
			return mailbox.NewMapping(a.memory, 0, int(size)), nil
		}
	}
	return nil, fmt.Errorf("mailboxtest: no locked allocation at 0x%08x", phys)
}

// Unmap implements [mailbox.Mapper].
func (f *Firmware) Unmap(m *mailbox.Mapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	region := m.Region()
	for _, a := range f.allocs {
		if len(region) != 0 && len(a.memory) != 0 && &region[0] == &a.memory[0] && a.mapped > 0 {
			a.mapped--
			return nil
		}
	}
	return errors.New("mailboxtest: unmap of unknown region")
}
