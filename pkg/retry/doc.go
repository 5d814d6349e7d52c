// Package retry decides whether a failed operation may be attempted again and
// offers an opt-in loop that does so.
//
// The Classifier answers the retry question from the fault code of an error.
// A session-expired failure closes the connection as a side effect, so the
// caller's next attempt starts a new session rather than reusing the dead
// one. Nothing in the client retries on its own: Do is a helper for callers
// that want a bounded loop with exponential backoff.
package retry
