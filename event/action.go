package event

// Action is the unit of work of an event, run by the queue that executes the
// event. It is exclusively owned by one event, and run at most once.
//
// Implementations must not retain the event after Execute returns. They are
// expected to be pointers, and to not be copied.
type Action interface {
	Execute(e *Event) Status
}

// CustomAction runs an arbitrary function, returning its result.
type CustomAction struct {
	// Prevent copying
	_ [0]func()

	fn func(e *Event) Status
}

// NewCustomAction wraps fn, which must not be nil.
func NewCustomAction(fn func(e *Event) Status) *CustomAction {
	if fn == nil {
		panic("event: nil action function")
	}
	return &CustomAction{fn: fn}
}

// Execute implements [Action].
func (a *CustomAction) Execute(e *Event) Status {
	return a.fn(e)
}

// NoAction does nothing, returning a fixed status.
type NoAction struct {
	// Prevent copying
	_ [0]func()

	status Status
}

// NewNoAction returns an action that always returns status.
func NewNoAction(status Status) *NoAction {
	return &NoAction{status: status}
}

// Execute implements [Action].
func (a *NoAction) Execute(*Event) Status {
	return a.status
}
