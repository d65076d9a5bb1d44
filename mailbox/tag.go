package mailbox

import (
	"fmt"
)

// Tag identifies a property mailbox request.
type Tag uint32

// Property tags used by the driver.
const (
	TagFirmwareRevision Tag = 0x00000001
	TagBoardModel       Tag = 0x00010001
	TagBoardRevision    Tag = 0x00010002
	TagBoardSerial      Tag = 0x00010004
	TagARMMemory        Tag = 0x00010005
	TagVCMemory         Tag = 0x00010006
	TagClockRate        Tag = 0x00030002
	TagMaxClockRate     Tag = 0x00030004
	TagTemperature      Tag = 0x00030006
	TagMaxTemperature   Tag = 0x0003000A
	TagAllocateMemory   Tag = 0x0003000C
	TagLockMemory       Tag = 0x0003000D
	TagUnlockMemory     Tag = 0x0003000E
	TagReleaseMemory    Tag = 0x0003000F
	TagExecuteCode      Tag = 0x00030010
	TagExecuteQPU       Tag = 0x00030011
	TagEnableQPU        Tag = 0x00030012
)

// String implements [fmt.Stringer].
func (t Tag) String() string {
	switch t {
	case TagFirmwareRevision:
		return "FIRMWARE_REVISION"
	case TagBoardModel:
		return "BOARD_MODEL"
	case TagBoardRevision:
		return "BOARD_REVISION"
	case TagBoardSerial:
		return "BOARD_SERIAL"
	case TagARMMemory:
		return "ARM_MEMORY"
	case TagVCMemory:
		return "VC_MEMORY"
	case TagClockRate:
		return "GET_CLOCK_RATE"
	case TagMaxClockRate:
		return "GET_MAX_CLOCK_RATE"
	case TagTemperature:
		return "GET_TEMPERATURE"
	case TagMaxTemperature:
		return "GET_MAX_TEMPERATURE"
	case TagAllocateMemory:
		return "ALLOCATE_MEMORY"
	case TagLockMemory:
		return "LOCK_MEMORY"
	case TagUnlockMemory:
		return "UNLOCK_MEMORY"
	case TagReleaseMemory:
		return "RELEASE_MEMORY"
	case TagExecuteCode:
		return "EXECUTE_CODE"
	case TagExecuteQPU:
		return "EXECUTE_QPU"
	case TagEnableQPU:
		return "ENABLE_QPU"
	default:
		return fmt.Sprintf("TAG(0x%08x)", uint32(t))
	}
}

// MemoryFlag controls how the firmware allocates GPU memory, see
// [Mailbox.MemAlloc].
type MemoryFlag uint32

const (
	// MemFlagDiscardable means the allocation can be resized to 0 at any
	// time, use for cached data.
	MemFlagDiscardable MemoryFlag = 1 << 0
	// MemFlagNormal is the normal allocating alias, don't use from the ARM.
	MemFlagNormal MemoryFlag = 0 << 2
	// MemFlagDirect is the 0xC alias, uncached.
	MemFlagDirect MemoryFlag = 1 << 2
	// MemFlagCoherent is the 0x8 alias, non-allocating in L2 but coherent.
	MemFlagCoherent MemoryFlag = 2 << 2
	// MemFlagL1NonAllocating is the allocating in L2 alias.
	MemFlagL1NonAllocating = MemFlagDirect | MemFlagCoherent
	// MemFlagZero initialises the buffer to all zeros.
	MemFlagZero MemoryFlag = 1 << 4
	// MemFlagNoInit skips initialising the buffer to 0xFF.
	MemFlagNoInit MemoryFlag = 1 << 5
	// MemFlagHintPermalock hints the buffer is likely to be locked for its
	// whole lifetime.
	MemFlagHintPermalock MemoryFlag = 1 << 6
)

// ClockID selects a clock for [Mailbox.ClockRate].
type ClockID uint32

const (
	ClockEMMC  ClockID = 0x00000001
	ClockUART  ClockID = 0x00000002
	ClockARM   ClockID = 0x00000003
	ClockCore  ClockID = 0x00000004
	ClockV3D   ClockID = 0x00000005
	ClockH264  ClockID = 0x00000006
	ClockISP   ClockID = 0x00000007
	ClockSDRAM ClockID = 0x00000008
	ClockPixel ClockID = 0x00000009
	ClockPWM   ClockID = 0x0000000a
)

// DevicePointer is a VideoCore bus address, as seen by the QPUs and the
// firmware.
type DevicePointer uint32

// String implements [fmt.Stringer].
func (p DevicePointer) String() string {
	return fmt.Sprintf("0x%08x", uint32(p))
}

// busAliasMask covers the two top bits of a bus address, which select the
// cache alias (0x0, 0x4, 0x8 or 0xC).
const busAliasMask = 0xC0000000

// BusToPhysical converts a VideoCore bus address into the ARM physical address
// of the same memory, stripping the cache alias bits.
func BusToPhysical(addr DevicePointer) uint32 {
	return uint32(addr) &^ busAliasMask
}
