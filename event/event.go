package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/google/uuid"
	"github.com/joeycumines/logiface"
)

// Context is the parent of an event, retained for the lifetime of the event.
type Context interface {
	Handle() uint64
	Retain()
	Release() error
}

// Queue is the command queue an event is submitted to.
type Queue interface {
	Handle() uint64
	ProfilingEnabled() bool
}

// Callback is notified when an event reaches (or passes) the status it was
// registered for. The status is the event's status as of the notification,
// which is negative if the command failed.
//
// Callbacks run synchronously, on the goroutine updating the status, and so
// must not block.
type Callback func(e *Event, status Status)

type registration struct {
	callback Callback
	trigger  Status
	fired    bool
}

// Event tracks the lifecycle of a single command: its status, the callbacks
// to notify, the events it depends on, and its profiling timestamps.
//
// Events are reference counted. The creator holds the initial reference, and
// the event is destroyed, releasing its context, once the last reference is
// released. All methods are safe for concurrent use.
type Event struct {
	// Prevent copying
	_ [0]func()

	ctx       Context
	queue     Queue
	action    Action
	logger    *logiface.Logger[logiface.Event]
	clock     Clock
	done      chan struct{}
	callbacks []*registration
	waitList  []weak.Pointer[Event]
	profile   Profile
	mu        sync.Mutex
	refs      atomic.Int32
	id        uuid.UUID
	status    Status
	typ       CommandType
}

// New creates an event, with the given initial status, normally [Queued],
// retaining ctx. A nil ctx is a programming error, and panics.
//
// The action is run (at most once) by [Event.Execute], and may be nil.
func New(ctx Context, status Status, typ CommandType, action Action, opts ...Option) *Event {
	if ctx == nil {
		panic("event: nil context")
	}

	cfg := resolveOptions(opts)

	ctx.Retain()

	e := &Event{
		ctx:    ctx,
		action: action,
		logger: cfg.logger,
		clock:  cfg.clock,
		done:   make(chan struct{}),
		id:     uuid.New(),
		status: status,
		typ:    typ,
	}
	e.refs.Store(1)
	if status.IsTerminal() {
		close(e.done)
	}

	e.logger.Debug().
		Stringer("event", e.id).
		Stringer("type", typ).
		Stringer("status", status).
		Log("event: created")

	return e
}

// NewUserEvent creates an event of type [CommandUser], with the [Unset]
// status, which must be resolved using [Event.SetUserEventStatus].
func NewUserEvent(ctx Context, opts ...Option) *Event {
	return New(ctx, Unset, CommandUser, NewNoAction(Complete), opts...)
}

// ID returns the unique identifier of the event, for log correlation.
func (e *Event) ID() uuid.UUID {
	return e.id
}

// Type returns the command type.
func (e *Event) Type() CommandType {
	return e.typ
}

// Context returns the context the event was created in.
func (e *Event) Context() Context {
	return e.ctx
}

// String implements [fmt.Stringer].
func (e *Event) String() string {
	return fmt.Sprintf("%s[%s]", e.typ, e.id)
}

// Retain adds a reference. Returns [ErrInvalidEvent] if the event has already
// been destroyed.
func (e *Event) Retain() error {
	for {
		n := e.refs.Load()
		if n <= 0 {
			return ErrInvalidEvent
		}
		if e.refs.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Release drops a reference, destroying the event if it was the last.
// Returns [ErrInvalidEvent] if the event has already been destroyed.
func (e *Event) Release() error {
	for {
		n := e.refs.Load()
		if n <= 0 {
			return ErrInvalidEvent
		}
		if e.refs.CompareAndSwap(n, n-1) {
			if n == 1 {
				e.destroy()
			}
			return nil
		}
	}
}

// ReferenceCount returns the number of references, 0 once destroyed.
func (e *Event) ReferenceCount() uint32 {
	return uint32(max(e.refs.Load(), 0))
}

func (e *Event) destroy() {
	e.mu.Lock()
	e.action = nil
	e.callbacks = nil
	e.waitList = nil
	e.mu.Unlock()

	if err := e.ctx.Release(); err != nil {
		e.logger.Warning().
			Err(err).
			Stringer("event", e.id).
			Log("event: failed to release context")
	}

	e.logger.Trace().
		Stringer("event", e.id).
		Log("event: destroyed")
}

// Status returns the current status.
func (e *Event) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// IsFinished reports whether the status is terminal: [Complete], or an
// error.
func (e *Event) IsFinished() bool {
	return e.Status().IsTerminal()
}

// Done returns a channel that is closed once the event is finished.
func (e *Event) Done() <-chan struct{} {
	return e.done
}

// UpdateStatus sets the status, recording the profiling timestamp of that
// state if it's the first time it is entered, then fires any due callbacks,
// if fire is true.
//
// Callers are trusted to only move the status forward. Once the status is
// terminal, updates are ignored.
func (e *Event) UpdateStatus(status Status, fire bool) {
	e.mu.Lock()
	if prev := e.status; prev.IsTerminal() {
		e.mu.Unlock()
		e.logger.Debug().
			Stringer("event", e.id).
			Stringer("status", prev).
			Stringer("ignored", status).
			Log("event: ignoring status update of finished event")
		return
	}
	e.setStatusLocked(status)
	e.mu.Unlock()

	e.logger.Debug().
		Stringer("event", e.id).
		Stringer("type", e.typ).
		Stringer("status", status).
		Log("event: status updated")

	if fire {
		e.FireCallbacks()
	}
}

func (e *Event) setStatusLocked(status Status) {
	e.status = status
	switch {
	case status == Queued:
		e.setTime(&e.profile.Queued)
	case status == Submitted:
		e.setTime(&e.profile.Submitted)
	case status == Running:
		e.setTime(&e.profile.Started)
	case status.IsTerminal():
		e.setTime(&e.profile.Ended)
		close(e.done)
	}
}

func (e *Event) setTime(field *uint64) {
	if *field == 0 {
		*field = e.clock()
	}
}

// SetUserEventStatus resolves the status of a user event, to [Complete], or
// a negative error code, and fires any due callbacks.
//
// Returns [ErrInvalidValue] for any other status, and [ErrInvalidOperation]
// if the status was already set, in which case nothing changes.
func (e *Event) SetUserEventStatus(status Status) error {
	if status != Complete && status >= 0 {
		return ErrInvalidValue
	}

	e.mu.Lock()
	if e.status != Unset {
		e.mu.Unlock()
		return ErrInvalidOperation
	}
	e.setStatusLocked(status)
	e.mu.Unlock()

	e.logger.Debug().
		Stringer("event", e.id).
		Stringer("status", status).
		Log("event: user status set")

	e.FireCallbacks()

	return nil
}

// FireCallbacks invokes, in registration order, every callback that hasn't
// been invoked yet, and whose trigger status has been reached or passed.
func (e *Event) FireCallbacks() {
	e.mu.Lock()
	status := e.status
	var due []Callback
	for _, r := range e.callbacks {
		if !r.fired && status <= r.trigger {
			r.fired = true
			due = append(due, r.callback)
		}
	}
	e.mu.Unlock()

	for _, cb := range due {
		cb(e, status)
	}
}

// SetCallback registers cb to be invoked once, when the event reaches
// trigger, which must be [Submitted], [Running], or [Complete]. If the event
// has already reached trigger, cb is invoked immediately.
//
// Returns [ErrInvalidValue] for an unsupported trigger or a nil callback, in
// which case nothing is registered.
func (e *Event) SetCallback(trigger Status, cb Callback) error {
	switch trigger {
	case Submitted, Running, Complete:
	default:
		return ErrInvalidValue
	}
	if cb == nil {
		return ErrInvalidValue
	}

	e.mu.Lock()
	e.callbacks = append(e.callbacks, &registration{callback: cb, trigger: trigger})
	reached := e.status <= trigger
	e.mu.Unlock()

	if reached {
		e.FireCallbacks()
	}
	return nil
}

// WaitFor blocks until the event is finished, returning the final status,
// which is negative if the command failed.
func (e *Event) WaitFor() Status {
	<-e.done
	return e.Status()
}

// WaitContext is [Event.WaitFor], but stops waiting once ctx is done, in
// which case it returns the current status, and the context's error.
func (e *Event) WaitContext(ctx context.Context) (Status, error) {
	select {
	case <-e.done:
		return e.Status(), nil
	case <-ctx.Done():
		return e.Status(), ctx.Err()
	}
}

// PrepareToQueue associates the event with the queue that will execute it.
// An event may only ever be associated with one queue, returns
// [ErrInvalidOperation] if it already is, or [ErrInvalidValue] if q is nil.
func (e *Event) PrepareToQueue(q Queue) error {
	if q == nil {
		return ErrInvalidValue
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.queue != nil {
		return ErrInvalidOperation
	}
	e.queue = q
	return nil
}

// Queue returns the queue the event was prepared for, or nil.
func (e *Event) Queue() Queue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue
}

// SetEventWaitList replaces the events this event depends on. The list does
// not keep the events alive, nil entries are ignored.
func (e *Event) SetEventWaitList(events ...*Event) {
	list := make([]weak.Pointer[Event], 0, len(events))
	for _, dep := range events {
		if dep != nil {
			list = append(list, weak.Make(dep))
		}
	}
	e.mu.Lock()
	e.waitList = list
	e.mu.Unlock()
}

// WaitList returns the events this event depends on, that are still alive:
// neither collected, nor destroyed.
func (e *Event) WaitList() []*Event {
	e.mu.Lock()
	list := e.waitList
	e.mu.Unlock()

	var events []*Event
	for _, wp := range list {
		if dep := wp.Value(); dep != nil && dep.ReferenceCount() > 0 {
			events = append(events, dep)
		}
	}
	return events
}

// Execute runs the event's action, if it hasn't been run already, returning
// its result. The action is dropped, so it runs at most once.
func (e *Event) Execute() (Status, bool) {
	e.mu.Lock()
	action := e.action
	e.action = nil
	e.mu.Unlock()

	if action == nil {
		return 0, false
	}
	return action.Execute(e), true
}
