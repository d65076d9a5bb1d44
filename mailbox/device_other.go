//go:build !linux

package mailbox

import (
	"os"
)

// OpenDevice always fails, the property mailbox only exists on Linux.
func OpenDevice(path string) (Transport, error) {
	return nil, ErrUnsupportedPlatform
}

// OpenMemory always fails, the property mailbox only exists on Linux.
func OpenMemory(path string) (Mapper, error) {
	return nil, ErrUnsupportedPlatform
}

func hostPageSize() int {
	return os.Getpagesize()
}
