// Package watch holds the persistent, top-level watchers of a client.
//
// Watchers registered here survive reconnects and session expiration: the
// dispatcher delivers every notification raised by any session of the client
// to the set of watchers registered at the time the notification is processed.
//
// # Watcher Variants
//
// The set of watcher roles is closed:
//   - Func: a persistent watcher wrapping an arbitrary callback
//   - Expiration: invokes its callback only for session expiration
//   - the connection manager's one-shot connect watcher (package connection),
//     which is never registered here
//
// # Identity
//
// Watchers are deduplicated by identity (==). Register rejects watchers whose
// dynamic type is not comparable; use pointer types such as *Func.
package watch
