// Package event implements the lifecycle of asynchronous commands.
//
// An [Event] moves from [Queued] through [Submitted] and [Running] to
// [Complete], or fails with a negative status at any point. Callbacks may be
// registered for each of those milestones, and are notified once the event
// reaches or passes it. The status of a finished event never changes.
//
// User events start out [Unset], and are resolved exactly once by the
// application.
//
// The work of an event is an [Action], run at most once, by the queue the
// event was submitted to. Events reference the events they depend on weakly,
// so a wait list never keeps an event alive.
package event
