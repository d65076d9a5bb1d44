// Package cmdqueue executes events, in submission order, on a dedicated
// event loop.
//
// A [Context] owns the process-scoped mailbox handle, and every [Queue]
// created from it keeps it alive. A queue dispatches each submitted event
// once the events it waits on have finished, failing it if any of them
// failed, then runs its action.
package cmdqueue
