package cmdqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-vc4cl/event"
	"github.com/joeycumines/logiface"
)

// Queue is an in-order command queue. Submitted events are dispatched one at
// a time, on the goroutine of an event loop owned by the queue.
type Queue struct {
	// Prevent copying
	_ [0]func()

	ctx       *Context
	loop      *eventloop.Loop
	logger    *logiface.Logger[logiface.Event]
	runCtx    context.Context
	cancel    context.CancelFunc
	loopDone  chan struct{}
	pending   map[*event.Event]struct{}
	closeErr  error
	handle    uint64
	mu        sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	profiling bool
}

var _ event.Queue = (*Queue)(nil)

// New creates a queue in ctx, retaining it, and starts its event loop.
func New(ctx *Context, opts ...QueueOption) (*Queue, error) {
	if ctx == nil || ctx.ReferenceCount() == 0 {
		return nil, ErrInvalidContext
	}

	cfg := resolveQueueOptions(opts)
	if cfg.logger == nil {
		cfg.logger = ctx.logger
	}

	loop, err := eventloop.New()
	if err != nil {
		return nil, err
	}

	ctx.Retain()

	runCtx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		ctx:       ctx,
		loop:      loop,
		logger:    cfg.logger,
		runCtx:    runCtx,
		cancel:    cancel,
		loopDone:  make(chan struct{}),
		pending:   make(map[*event.Event]struct{}),
		handle:    handleCounter.Add(1),
		profiling: cfg.profiling,
	}

	go func() {
		defer close(q.loopDone)
		if err := loop.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			q.logger.Err().
				Err(err).
				Uint64("queue", q.handle).
				Log("cmdqueue: event loop failed")
		}
	}()

	q.logger.Debug().
		Uint64("queue", q.handle).
		Uint64("context", ctx.handle).
		Bool("profiling", q.profiling).
		Log("cmdqueue: queue created")

	return q, nil
}

// Handle returns the unique handle of the queue.
func (q *Queue) Handle() uint64 {
	return q.handle
}

// ProfilingEnabled reports whether profiling timestamps are reported for
// events executed by this queue.
func (q *Queue) ProfilingEnabled() bool {
	return q.profiling
}

// Context returns the context the queue was created in.
func (q *Queue) Context() *Context {
	return q.ctx
}

// Enqueue creates an event in the queue's context, waiting on waitList, and
// submits it. The caller owns the returned event, and must release it.
func (q *Queue) Enqueue(typ event.CommandType, action event.Action, waitList ...*event.Event) (*event.Event, error) {
	e := event.New(q.ctx, event.Queued, typ, action, event.WithLogger(q.logger))
	e.SetEventWaitList(waitList...)
	if err := q.Submit(e); err != nil {
		_ = e.Release()
		return nil, err
	}
	return e, nil
}

// Submit associates e with the queue, and schedules it for execution. The
// queue holds a reference to e until it has been dispatched.
//
// User events are resolved by their owner, and are never submitted, returns
// [event.ErrInvalidOperation] for them.
func (q *Queue) Submit(e *event.Event) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if e.Type() == event.CommandUser || e.Status() == event.Unset {
		return event.ErrInvalidOperation
	}
	if err := e.PrepareToQueue(q); err != nil {
		return err
	}
	if err := e.Retain(); err != nil {
		return err
	}

	if e.Status() == event.Queued {
		// records the queued timestamp
		e.UpdateStatus(event.Queued, false)
	}
	e.UpdateStatus(event.Submitted, true)

	q.mu.Lock()
	q.pending[e] = struct{}{}
	q.mu.Unlock()

	if err := q.loop.Submit(func() { q.dispatch(e) }); err != nil {
		q.logger.Err().
			Err(err).
			Stringer("event", e.ID()).
			Log("cmdqueue: failed to schedule event")
		q.abort(e, event.ErrOutOfResources.Status())
		return ErrQueueClosed
	}
	return nil
}

// dispatch runs on the loop.
func (q *Queue) dispatch(e *event.Event) {
	defer q.done(e)

	if e.IsFinished() {
		return
	}

	for _, dep := range e.WaitList() {
		status, err := dep.WaitContext(q.runCtx)
		if err != nil {
			e.UpdateStatus(event.ErrOutOfResources.Status(), true)
			return
		}
		if status < 0 {
			q.logger.Debug().
				Stringer("event", e.ID()).
				Stringer("dependency", dep.ID()).
				Stringer("status", status).
				Log("cmdqueue: dependency failed")
			e.UpdateStatus(event.ErrExecStatusErrorForEventsInWaitList.Status(), true)
			return
		}
	}

	e.UpdateStatus(event.Running, true)

	status, ok := e.Execute()
	if !ok || status > event.Complete {
		status = event.Complete
	}
	if status < 0 {
		q.logger.Warning().
			Stringer("event", e.ID()).
			Stringer("type", e.Type()).
			Stringer("status", status).
			Log("cmdqueue: command failed")
	}

	e.UpdateStatus(status, true)
}

// done drops the queue's reference to a dispatched event.
func (q *Queue) done(e *event.Event) {
	q.mu.Lock()
	_, ok := q.pending[e]
	delete(q.pending, e)
	q.mu.Unlock()
	if ok {
		_ = e.Release()
	}
}

// abort fails an event that will never be dispatched.
func (q *Queue) abort(e *event.Event, status event.Status) {
	e.UpdateStatus(status, true)
	q.done(e)
}

// Flush is a no-op: events are scheduled as soon as they are submitted.
func (q *Queue) Flush() error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	return nil
}

// Finish blocks until every event submitted so far has been dispatched, or
// ctx is done.
func (q *Queue) Finish(ctx context.Context) error {
	barrier := make(chan struct{})
	if err := q.loop.Submit(func() { close(barrier) }); err != nil {
		return ErrQueueClosed
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events, waits for the submitted ones to finish, or
// ctx to be done, then stops the event loop, and releases the context.
// Events that were never dispatched fail with [event.ErrOutOfResources].
func (q *Queue) Close(ctx context.Context) error {
	q.closeOnce.Do(func() {
		q.closed.Store(true)

		var errs []error
		if err := q.Finish(ctx); err != nil {
			errs = append(errs, err)
		} else if err := q.loop.Shutdown(ctx); err != nil && !errors.Is(err, eventloop.ErrLoopTerminated) {
			errs = append(errs, err)
		}
		q.cancel()
		<-q.loopDone

		q.mu.Lock()
		pending := make([]*event.Event, 0, len(q.pending))
		for e := range q.pending {
			pending = append(pending, e)
		}
		q.mu.Unlock()
		for _, e := range pending {
			q.abort(e, event.ErrOutOfResources.Status())
		}

		if err := q.ctx.Release(); err != nil {
			errs = append(errs, err)
		}
		q.closeErr = errors.Join(errs...)

		q.logger.Debug().
			Uint64("queue", q.handle).
			Int("aborted", len(pending)).
			Log("cmdqueue: queue closed")
	})
	return q.closeErr
}
