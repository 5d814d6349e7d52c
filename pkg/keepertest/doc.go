// Package keepertest provides an in-memory coordination ensemble for tests
// and demos.
//
// Ensemble implements connection.Dialer. It keeps server-side sessions in
// memory, validates resumption requests and lets the caller inject the
// failures a real ensemble produces: dial errors, sessions that never
// establish, expiration, dropped transports and rejected credentials.
//
// Notifications are delivered synchronously on the goroutine that caused
// them, unless a connect delay is configured, in which case the initial
// Connected notification arrives on a timer goroutine.
package keepertest
