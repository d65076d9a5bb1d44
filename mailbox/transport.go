package mailbox

// Default device paths.
const (
	DefaultDevicePath = "/dev/vcio"
	DefaultMemoryPath = "/dev/mem"
)

// Transport submits property messages to the firmware.
//
// Call must perform the request synchronously, overwriting msg with the
// response. It may be called concurrently, with distinct buffers.
type Transport interface {
	Call(msg []uint32) error
	Close() error
}

// Mapper maps physical memory into the address space of the process.
type Mapper interface {
	Map(phys uint32, size uint32) (*Mapping, error)
	Unmap(m *Mapping) error
	Close() error
}

// Mapping is a region of physical memory, mapped into the process.
type Mapping struct {
	region []byte
	offset int
	size   int
}

// NewMapping wraps region, a page-aligned mapping, exposing size bytes
// starting at offset.
func NewMapping(region []byte, offset, size int) *Mapping {
	if offset < 0 || size < 0 || offset+size > len(region) {
		panic("mailbox: mapping out of range")
	}
	return &Mapping{region: region, offset: offset, size: size}
}

// Bytes returns the mapped memory.
func (m *Mapping) Bytes() []byte {
	if m == nil || m.region == nil {
		return nil
	}
	return m.region[m.offset : m.offset+m.size : m.offset+m.size]
}

// Region returns the whole page-aligned region, as originally mapped.
func (m *Mapping) Region() []byte {
	if m == nil {
		return nil
	}
	return m.region
}
