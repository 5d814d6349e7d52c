// Package fault classifies failures reported by the coordination service.
//
// The collaborator's own error types are translated into a closed set of
// fault codes (Code). Whether a fault is worth retrying is a property of the
// code, looked up in a single table rather than re-derived by callers:
//
//	retryable:     ConnectionLoss, OperationTimeout, SessionExpired, SessionMoved
//	not retryable: everything else (NoNode, NoAuth, BadArguments, ...)
//
// A SessionExpired fault is retryable only with a fresh session. Callers
// that own a connection should close it before retrying; see package retry.
package fault
