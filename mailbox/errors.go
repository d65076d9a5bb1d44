package mailbox

import (
	"errors"
	"fmt"
	"syscall"
)

// Standard errors.
var (
	// ErrClosed is returned when a call is attempted on a closed [Mailbox].
	ErrClosed = errors.New("mailbox: closed")

	// ErrTimeoutOutOfRange is returned by [Mailbox.ExecuteQPU] when the
	// timeout, in milliseconds, doesn't fit into an unsigned 32-bit integer.
	ErrTimeoutOutOfRange = errors.New("mailbox: timeout must fit into 32 bits of milliseconds")

	// ErrTooManyArguments is returned by [Mailbox.ExecuteCode] when more than
	// six register values are given.
	ErrTooManyArguments = errors.New("mailbox: at most 6 register arguments are supported")

	// ErrUnsupportedPlatform is returned when opening the mailbox device on a
	// platform that doesn't have one.
	ErrUnsupportedPlatform = errors.New("mailbox: unsupported platform")

	// ErrControlListTooShort is returned by [Mailbox.ExecuteQPU] when the host
	// view of the control list has fewer than two words per QPU.
	ErrControlListTooShort = errors.New("mailbox: control list must hold 2 words per QPU")

	// ErrMapFailed is wrapped by the error [Mailbox.AllocateBuffer] returns if
	// the allocation could not be mapped into the process.
	ErrMapFailed = errors.New("mailbox: failed to map memory")

	errInvalidPageSize = errors.New("mailbox: page size must be a non-zero power of two")
)

// CallError indicates the property mailbox system call itself failed, which
// means the driver has lost the ability to communicate with the firmware.
type CallError struct {
	// Err is the underlying cause, typically a [syscall.Errno].
	Err error
	// Tag is the tag of the message being sent.
	Tag Tag
}

// Error implements the error interface.
func (e *CallError) Error() string {
	return fmt.Sprintf("mailbox: property call %s failed: %v", e.Tag, e.Err)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *CallError) Unwrap() error {
	return e.Err
}

// Errno returns the OS error code, or 0 if the cause was not an errno.
func (e *CallError) Errno() syscall.Errno {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return errno
	}
	return 0
}
