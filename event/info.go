package event

import (
	"encoding/binary"
)

// InfoParam selects the attribute [Event.GetInfo] reports.
type InfoParam uint32

const (
	InfoCommandQueue    InfoParam = 0x11D0
	InfoCommandType     InfoParam = 0x11D1
	InfoReferenceCount  InfoParam = 0x11D2
	InfoExecutionStatus InfoParam = 0x11D3
	InfoContext         InfoParam = 0x11D4
)

// ProfilingParam selects the timestamp [Event.GetProfilingInfo] reports.
type ProfilingParam uint32

const (
	ProfilingQueued    ProfilingParam = 0x1280
	ProfilingSubmitted ProfilingParam = 0x1281
	ProfilingStarted   ProfilingParam = 0x1282
	ProfilingEnded     ProfilingParam = 0x1283
)

// GetInfo writes the value of param into dst, in native byte order,
// returning the number of bytes written. If dst is nil, only the size is
// returned.
//
// Handles are 64 bits, 0 if unset. The command type and reference count are
// 32 bits unsigned, the status 32 bits signed: an unset user event reports
// [Submitted].
func (e *Event) GetInfo(param InfoParam, dst []byte) (int, error) {
	var value []byte
	switch param {
	case InfoCommandQueue:
		var handle uint64
		if q := e.Queue(); q != nil {
			handle = q.Handle()
		}
		value = binary.NativeEndian.AppendUint64(nil, handle)
	case InfoCommandType:
		value = binary.NativeEndian.AppendUint32(nil, uint32(e.typ))
	case InfoReferenceCount:
		value = binary.NativeEndian.AppendUint32(nil, e.ReferenceCount())
	case InfoExecutionStatus:
		status := e.Status()
		if status == Unset {
			status = Submitted
		}
		value = binary.NativeEndian.AppendUint32(nil, uint32(status))
	case InfoContext:
		value = binary.NativeEndian.AppendUint64(nil, e.ctx.Handle())
	default:
		return 0, ErrInvalidValue
	}
	return writeInfo(dst, value)
}

// Profile returns the profiling timestamps. Returns
// [ErrProfilingInfoNotAvailable] unless the event was executed by a queue
// with profiling enabled, and is finished.
func (e *Event) Profile() (Profile, error) {
	e.mu.Lock()
	q := e.queue
	status := e.status
	profile := e.profile
	e.mu.Unlock()

	if q == nil || !q.ProfilingEnabled() || !status.IsTerminal() {
		return Profile{}, ErrProfilingInfoNotAvailable
	}
	return profile, nil
}

// GetProfilingInfo writes the 64-bit timestamp selected by param into dst,
// like [Event.GetInfo], see also [Event.Profile].
func (e *Event) GetProfilingInfo(param ProfilingParam, dst []byte) (int, error) {
	profile, err := e.Profile()
	if err != nil {
		return 0, err
	}
	var value uint64
	switch param {
	case ProfilingQueued:
		value = profile.Queued
	case ProfilingSubmitted:
		value = profile.Submitted
	case ProfilingStarted:
		value = profile.Started
	case ProfilingEnded:
		value = profile.Ended
	default:
		return 0, ErrInvalidValue
	}
	return writeInfo(dst, binary.NativeEndian.AppendUint64(nil, value))
}

func writeInfo(dst, value []byte) (int, error) {
	if dst == nil {
		return len(value), nil
	}
	if len(dst) < len(value) {
		return 0, ErrInvalidValue
	}
	return copy(dst, value), nil
}
