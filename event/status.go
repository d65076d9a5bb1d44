package event

import (
	"errors"
	"fmt"
	"math"
)

// Status is the execution status of an event. Values at or below
// [Complete] are terminal: Complete itself, or a negative error code.
type Status int32

const (
	Complete  Status = 0
	Running   Status = 1
	Submitted Status = 2
	Queued    Status = 3

	// Unset is the initial status of a user event, until
	// [Event.SetUserEventStatus] is called.
	Unset Status = math.MaxInt32
)

// IsTerminal reports whether s is Complete, or an error.
func (s Status) IsTerminal() bool {
	return s <= Complete
}

// Err returns the [ErrorCode] of a negative status, or nil.
func (s Status) Err() error {
	if s < 0 {
		return ErrorCode(s)
	}
	return nil
}

// String implements [fmt.Stringer].
func (s Status) String() string {
	switch s {
	case Complete:
		return "COMPLETE"
	case Running:
		return "RUNNING"
	case Submitted:
		return "SUBMITTED"
	case Queued:
		return "QUEUED"
	case Unset:
		return "UNSET"
	}
	if s < 0 {
		return ErrorCode(s).Error()
	}
	return fmt.Sprintf("STATUS(%d)", int32(s))
}

// ErrorCode is a negative OpenCL error code. It implements error, so the
// sentinels below may be matched with [errors.Is].
type ErrorCode int32

const (
	ErrOutOfResources                     ErrorCode = -5
	ErrProfilingInfoNotAvailable          ErrorCode = -7
	ErrExecStatusErrorForEventsInWaitList ErrorCode = -14
	ErrInvalidValue                       ErrorCode = -30
	ErrInvalidEvent                       ErrorCode = -58
	ErrInvalidOperation                   ErrorCode = -59
)

// Error implements the error interface.
func (e ErrorCode) Error() string {
	switch e {
	case ErrOutOfResources:
		return "CL_OUT_OF_RESOURCES"
	case ErrProfilingInfoNotAvailable:
		return "CL_PROFILING_INFO_NOT_AVAILABLE"
	case ErrExecStatusErrorForEventsInWaitList:
		return "CL_EXEC_STATUS_ERROR_FOR_EVENTS_IN_WAIT_LIST"
	case ErrInvalidValue:
		return "CL_INVALID_VALUE"
	case ErrInvalidEvent:
		return "CL_INVALID_EVENT"
	case ErrInvalidOperation:
		return "CL_INVALID_OPERATION"
	}
	return fmt.Sprintf("CL_ERROR(%d)", int32(e))
}

// Status returns the code as an (error) execution status.
func (e ErrorCode) Status() Status {
	return Status(e)
}

// CodeOf converts err to a status: [Complete] for nil, the code of an
// [ErrorCode] in the chain, or [ErrOutOfResources] for anything else.
func CodeOf(err error) Status {
	if err == nil {
		return Complete
	}
	var code ErrorCode
	if errors.As(err, &code) && code < 0 {
		return Status(code)
	}
	return Status(ErrOutOfResources)
}
