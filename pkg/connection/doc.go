// Package connection manages the lifecycle of a single coordination-service
// session handle.
//
// This package handles:
//   - Mutually exclusive connect and close transitions
//   - Session resumption from a cached session ID and password
//   - Waiting for the session to be established, bounded by a timeout
//   - Reacting to session expiration reported by the collaborator
//   - Forwarding every collaborator notification to a Sink
//
// # State Machine
//
//	Disconnected -> Connecting -> Connected -> Disconnected
//
// All transitions happen through Connect, Close and Detach. A Manager never
// reconnects on its own; retry is always driven by the caller (see package
// retry).
//
// # Session Resumption
//
// After a successful connect the handle's session ID and password are
// cached. Close clears the cache, so the next Connect starts a fresh session.
// Detach drops the handle but keeps the cache, so the next Connect asks the
// collaborator to resume the same session. A cached session is used for at
// most one attempt: if that attempt fails, the following one starts fresh.
//
// # Expiration
//
// When the collaborator reports {None, Expired}, the handle is closed and the
// cache cleared before the next Connect can observe it. If the expiration
// arrives while Connect is still waiting, the attempt fails immediately with
// an error matching fault.ErrSessionExpired.
package connection
