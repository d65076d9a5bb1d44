//go:build linux

package mailbox

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// majorNum is the character device major number of the vcio driver.
	majorNum = 100

	iocWrite = 1
	iocRead  = 2

	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

// ioctlMboxProperty is _IOWR(MAJOR_NUM, 0, char *).
const ioctlMboxProperty = uintptr(iocRead|iocWrite)<<iocDirShift |
	unsafe.Sizeof(uintptr(0))<<iocSizeShift |
	majorNum<<iocTypeShift |
	0<<iocNRShift

// device is the vcio character device.
type device struct {
	fd int
}

var _ Transport = (*device)(nil)

// OpenDevice opens the property mailbox character device, normally
// [DefaultDevicePath].
func OpenDevice(path string) (Transport, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("mailbox: can't open device file %s (try creating it with: sudo mknod %s c %d 0): %w", path, path, majorNum, err)
	}
	return &device{fd: fd}, nil
}

// Call sends the property message, in place.
func (d *device) Call(msg []uint32) error {
	if len(msg) == 0 {
		return unix.EINVAL
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), ioctlMboxProperty, uintptr(unsafe.Pointer(&msg[0])))
	runtime.KeepAlive(msg)
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *device) Close() error {
	return unix.Close(d.fd)
}

// memDevice maps physical memory through /dev/mem.
type memDevice struct {
	fd       int
	pageSize int
}

var _ Mapper = (*memDevice)(nil)

// OpenMemory opens the physical memory device, normally [DefaultMemoryPath].
func OpenMemory(path string) (Mapper, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("mailbox: can't open %s (root access is required): %w", path, err)
	}
	return &memDevice{fd: fd, pageSize: unix.Getpagesize()}, nil
}

// Map maps size bytes of physical memory starting at phys, which need not be
// page aligned.
func (d *memDevice) Map(phys uint32, size uint32) (*Mapping, error) {
	offset := int(phys) % d.pageSize
	base := int64(phys) - int64(offset)
	region, err := unix.Mmap(d.fd, base, int(size)+offset, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mailbox: mmap of 0x%08x (%d bytes) failed: %w", phys, size, err)
	}
	return NewMapping(region, offset, int(size)), nil
}

func (d *memDevice) Unmap(m *Mapping) error {
	if m == nil || m.region == nil {
		return nil
	}
	if err := unix.Munmap(m.region); err != nil {
		return fmt.Errorf("mailbox: munmap failed: %w", err)
	}
	m.region = nil
	return nil
}

func (d *memDevice) Close() error {
	return unix.Close(d.fd)
}

// hostPageSize is the granularity munmap works at.
func hostPageSize() int {
	return unix.Getpagesize()
}
