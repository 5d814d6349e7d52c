// Package event defines the notifications raised by a coordination-service
// session.
//
// A Notification is an immutable value with three parts:
//   - Type: the namespace change that fired a watch, or TypeNone for
//     session-level transitions
//   - State: the session state observed when the notification was raised
//   - Path: the namespace node the notification refers to (empty for
//     session-level transitions)
//
// # Session Transitions
//
// Session-level notifications always carry TypeNone. The two that drive the
// connection lifecycle are:
//
//	{TypeNone, StateConnected}  - the session is established (or resumed)
//	{TypeNone, StateExpired}    - the server discarded the session
//
// Helper predicates IsConnected and IsExpired match exactly these shapes.
package event
