// Package dispatch decouples notification delivery from the collaborator's
// callback goroutine.
//
// A Dispatcher owns a single worker goroutine, started once by New, that
// drains an unbounded FIFO queue. Producers (collaborator callbacks) never
// block. For every dequeued notification the worker reads the current watcher
// set and invokes each watcher synchronously, in registration order, so
// watcher invocations are fully serialized against each other.
//
// # Failure Isolation
//
// A panicking watcher does not stall delivery to the rest: the panic is
// recovered, logged and reported through Config.OnPanic, and the worker moves
// on to the next watcher. A slow watcher still delays everything queued
// behind it.
//
// # Lifetime
//
// The worker runs until Stop is called. Notifications still queued at that
// point are dropped.
package dispatch
