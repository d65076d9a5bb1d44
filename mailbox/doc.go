// Package mailbox implements the VideoCore IV property mailbox channel, the
// only interface between the host and the GPU firmware that is available to a
// user-space driver.
//
// # Protocol
//
// Every request is a single ioctl on the mailbox character device (normally
// /dev/vcio), carrying a buffer of native-endian 32-bit words:
//
//	[total size in bytes]
//	[request/response code]
//	[tag]
//	[value buffer size in bytes]
//	[request length / response indicator]
//	[value words...]
//	[end tag (0)]
//
// The firmware overwrites the value words with the response, sets the
// response code to 0x80000000, and sets bit 31 of the tag's length word. See
// [Message].
//
// # Failure classes
//
// A failing system call means the driver can no longer talk to the firmware,
// and is returned as a [*CallError]. A request the firmware rejected (a
// non-zero status word, a zero handle, a null bus address) is NOT an error:
// it is reported as a zero/false result, with a nil error.
//
// # Lifecycle
//
// A [Mailbox] enables the QPUs when created and disables them when closed.
// Only one should exist per process, use [Lazy] to construct it exactly once,
// and pass the [Lazy] (or the [Mailbox]) to whatever needs it.
package mailbox
