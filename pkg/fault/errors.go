package fault

import (
	"errors"
	"fmt"
)

// Error is a fault reported by the coordination service.
type Error struct {
	// Code classifies the fault.
	Code Code

	// Path is the namespace node the failed operation addressed, if any.
	Path string

	// Err is the collaborator's original error, if any.
	Err error
}

// Sentinel faults for use with errors.Is. Matching compares codes only.
var (
	ErrConnectionLoss   = &Error{Code: CodeConnectionLoss}
	ErrOperationTimeout = &Error{Code: CodeOperationTimeout}
	ErrSessionExpired   = &Error{Code: CodeSessionExpired}
	ErrSessionMoved     = &Error{Code: CodeSessionMoved}
	ErrNoNode           = &Error{Code: CodeNoNode}
	ErrNoAuth           = &Error{Code: CodeNoAuth}
	ErrAuthFailed       = &Error{Code: CodeAuthFailed}
)

// New returns a fault for code on path.
func New(code Code, path string) *Error {
	return &Error{Code: code, Path: path}
}

// Wrap returns a fault for code that carries the collaborator's error.
func Wrap(code Code, path string, err error) *Error {
	return &Error{Code: code, Path: path, Err: err}
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "keeper: " + e.Code.String()
	if e.Path != "" {
		msg = fmt.Sprintf("%s for %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Err)
	}
	return msg
}

// Unwrap returns the collaborator's error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// CodeOf extracts the fault code from err.
// It returns false when err does not wrap an *Error.
func CodeOf(err error) (Code, bool) {
	var fe *Error
	if errors.As(err, &fe) && fe != nil {
		return fe.Code, true
	}
	return CodeOK, false
}

// IsRetryable reports whether the operation that failed with err may succeed
// if repeated. Errors that are not faults are never retryable.
func IsRetryable(err error) bool {
	code, ok := CodeOf(err)
	return ok && code.Retryable()
}

// IsSessionExpired reports whether err indicates session expiration.
func IsSessionExpired(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == CodeSessionExpired
}
