package mailbox

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// DeviceBuffer is a locked allocation of GPU memory, mapped into the process.
//
// Release unmaps the host view first. If the firmware then rejects the unlock
// or the free, the buffer is left half released: [DeviceBuffer.Host] is nil,
// but the handle is retained, and [DeviceBuffer.Released] reports false until
// a retried release frees it.
type DeviceBuffer struct {
	// Prevent copying
	_ [0]func()

	mailbox *Mailbox
	mapping *Mapping
	mu      sync.Mutex
	handle  uint32
	device  DevicePointer
	size    uint32
}

// Handle returns the firmware allocation handle, 0 once released.
func (b *DeviceBuffer) Handle() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handle
}

// Device returns the bus address of the buffer, as used by the QPUs.
func (b *DeviceBuffer) Device() DevicePointer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.device
}

// Size returns the size of the buffer, in bytes.
func (b *DeviceBuffer) Size() uint32 {
	return b.size
}

// Host returns the host mapping of the buffer, nil once released.
//
// The returned slice must not be used after [DeviceBuffer.Release].
func (b *DeviceBuffer) Host() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapping.Bytes()
}

// Released reports whether both the handle and the host mapping have been
// released.
func (b *DeviceBuffer) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handle == 0 && b.mapping == nil
}

// Release releases the buffer, see [Mailbox.ReleaseBuffer]. Releasing an
// already released buffer does nothing.
func (b *DeviceBuffer) Release() error {
	ok, err := b.mailbox.ReleaseBuffer(b)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("mailbox: failed to release buffer of %d bytes", b.size)
	}
	return nil
}

// Dump writes the content of the buffer as words, 8 per line, each line
// prefixed with the bus address of its first word.
func (b *DeviceBuffer) Dump(w io.Writer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	host := b.mapping.Bytes()
	for i := 0; i+4 <= len(host); i += 4 {
		if i%32 == 0 {
			if _, err := fmt.Fprintf(w, "\n%08x:", uint32(b.device)+uint32(i)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, " %08x", binary.NativeEndian.Uint32(host[i:])); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// AllocateBuffer allocates, locks, and maps size bytes of GPU memory.
//
// If the firmware rejects the allocation or the lock, nil is returned, with a
// nil error, and anything already allocated is released. A [*CallError] is
// returned if the channel failed, and an error wrapping [ErrMapFailed] if the
// memory could not be mapped.
func (x *Mailbox) AllocateBuffer(size, alignment uint32, flags MemoryFlag) (*DeviceBuffer, error) {
	handle, err := x.MemAlloc(size, alignment, flags)
	if err != nil {
		return nil, err
	}
	if handle == 0 {
		x.logger.Warning().
			Uint64("size", uint64(size)).
			Log("mailbox: failed to allocate memory")
		return nil, nil
	}

	device, err := x.MemLock(handle)
	if err != nil {
		x.discard(handle, false)
		return nil, err
	}
	if device == 0 {
		x.logger.Warning().
			Uint64("handle", uint64(handle)).
			Log("mailbox: failed to lock memory")
		x.discard(handle, false)
		return nil, nil
	}

	mapping, err := x.mapper.Map(BusToPhysical(device), size)
	if err != nil {
		x.logger.Err().
			Err(err).
			Uint64("handle", uint64(handle)).
			Stringer("device", device).
			Log("mailbox: failed to map memory")
		x.discard(handle, true)
		return nil, fmt.Errorf("%w: %w", ErrMapFailed, err)
	}

	x.logger.Debug().
		Uint64("size", uint64(size)).
		Uint64("handle", uint64(handle)).
		Stringer("device", device).
		Log("mailbox: allocated buffer")

	return &DeviceBuffer{
		mailbox: x,
		mapping: mapping,
		handle:  handle,
		device:  device,
		size:    size,
	}, nil
}

// discard releases a handle of a partially constructed buffer, on a best
// effort basis.
func (x *Mailbox) discard(handle uint32, locked bool) {
	if locked {
		if ok, err := x.MemUnlock(handle); err == nil && !ok {
			x.logger.Warning().Uint64("handle", uint64(handle)).Log("mailbox: failed to unlock discarded memory")
		}
	}
	if ok, err := x.MemFree(handle); err == nil && !ok {
		x.logger.Warning().Uint64("handle", uint64(handle)).Log("mailbox: failed to free discarded memory")
	}
}

// ReleaseBuffer unmaps, unlocks, and frees buf, skipping any step that was
// already done. Returns false if the firmware rejected the unlock or free, in
// which case the handle is retained, without a host mapping, and the release
// may be retried.
func (x *Mailbox) ReleaseBuffer(buf *DeviceBuffer) (bool, error) {
	if buf == nil {
		return true, nil
	}

	buf.mu.Lock()
	defer buf.mu.Unlock()

	if buf.mapping != nil {
		if err := x.mapper.Unmap(buf.mapping); err != nil {
			x.logger.Warning().Err(err).Uint64("handle", uint64(buf.handle)).Log("mailbox: failed to unmap memory")
		}
		buf.mapping = nil
	}

	if buf.handle == 0 {
		return true, nil
	}

	if buf.device != 0 {
		ok, err := x.MemUnlock(buf.handle)
		if err != nil || !ok {
			return false, err
		}
		buf.device = 0
	}

	ok, err := x.MemFree(buf.handle)
	if err != nil || !ok {
		return false, err
	}

	x.logger.Debug().
		Uint64("size", uint64(buf.size)).
		Uint64("handle", uint64(buf.handle)).
		Log("mailbox: released buffer")

	buf.handle = 0

	return true, nil
}
