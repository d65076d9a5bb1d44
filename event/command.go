package event

import (
	"fmt"
)

// CommandType identifies the kind of work an event represents. It is used
// for reporting only, never for dispatch.
type CommandType uint32

// Supported command types, with their OpenCL values.
const (
	CommandNDRangeKernel     CommandType = 0x11F0
	CommandTask              CommandType = 0x11F1
	CommandNativeKernel      CommandType = 0x11F2
	CommandReadBuffer        CommandType = 0x11F3
	CommandWriteBuffer       CommandType = 0x11F4
	CommandCopyBuffer        CommandType = 0x11F5
	CommandReadImage         CommandType = 0x11F6
	CommandWriteImage        CommandType = 0x11F7
	CommandCopyImage         CommandType = 0x11F8
	CommandCopyImageToBuffer CommandType = 0x11F9
	CommandCopyBufferToImage CommandType = 0x11FA
	CommandMapBuffer         CommandType = 0x11FB
	CommandMapImage          CommandType = 0x11FC
	CommandUnmapMemObject    CommandType = 0x11FD
	CommandMarker            CommandType = 0x11FE
	CommandReadBufferRect    CommandType = 0x1201
	CommandWriteBufferRect   CommandType = 0x1202
	CommandCopyBufferRect    CommandType = 0x1203
	CommandUser              CommandType = 0x1204
	CommandBarrier           CommandType = 0x1205
	CommandMigrateMemObjects CommandType = 0x1206
	CommandFillBuffer        CommandType = 0x1207
	CommandFillImage         CommandType = 0x1208

	// ARM shared virtual memory extension
	CommandSVMFree    CommandType = 0x40BA
	CommandSVMMemcpy  CommandType = 0x40BB
	CommandSVMMemFill CommandType = 0x40BC
	CommandSVMMap     CommandType = 0x40BD
	CommandSVMUnmap   CommandType = 0x40BE
)

var commandNames = map[CommandType]string{
	CommandNDRangeKernel:     "NDRANGE_KERNEL",
	CommandTask:              "TASK",
	CommandNativeKernel:      "NATIVE_KERNEL",
	CommandReadBuffer:        "READ_BUFFER",
	CommandWriteBuffer:       "WRITE_BUFFER",
	CommandCopyBuffer:        "COPY_BUFFER",
	CommandReadImage:         "READ_IMAGE",
	CommandWriteImage:        "WRITE_IMAGE",
	CommandCopyImage:         "COPY_IMAGE",
	CommandCopyImageToBuffer: "COPY_IMAGE_TO_BUFFER",
	CommandCopyBufferToImage: "COPY_BUFFER_TO_IMAGE",
	CommandMapBuffer:         "MAP_BUFFER",
	CommandMapImage:          "MAP_IMAGE",
	CommandUnmapMemObject:    "UNMAP_MEM_OBJECT",
	CommandMarker:            "MARKER",
	CommandReadBufferRect:    "READ_BUFFER_RECT",
	CommandWriteBufferRect:   "WRITE_BUFFER_RECT",
	CommandCopyBufferRect:    "COPY_BUFFER_RECT",
	CommandUser:              "USER",
	CommandBarrier:           "BARRIER",
	CommandMigrateMemObjects: "MIGRATE_MEM_OBJECTS",
	CommandFillBuffer:        "FILL_BUFFER",
	CommandFillImage:         "FILL_IMAGE",
	CommandSVMFree:           "SVM_FREE_ARM",
	CommandSVMMemcpy:         "SVM_MEMCPY_ARM",
	CommandSVMMemFill:        "SVM_MEMFILL_ARM",
	CommandSVMMap:            "SVM_MAP_ARM",
	CommandSVMUnmap:          "SVM_UNMAP_ARM",
}

// Valid reports whether c is a supported command type.
func (c CommandType) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

// String implements [fmt.Stringer].
func (c CommandType) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("COMMAND(0x%04x)", uint32(c))
}
