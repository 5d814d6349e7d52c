package fault

// Code is a coordination-service fault code.
// Values match the numeric codes used on the wire.
type Code int32

const (
	CodeOK                      Code = 0
	CodeSystemError             Code = -1
	CodeRuntimeInconsistency    Code = -2
	CodeDataInconsistency       Code = -3
	CodeConnectionLoss          Code = -4
	CodeMarshallingError        Code = -5
	CodeUnimplemented           Code = -6
	CodeOperationTimeout        Code = -7
	CodeBadArguments            Code = -8
	CodeAPIError                Code = -100
	CodeNoNode                  Code = -101
	CodeNoAuth                  Code = -102
	CodeBadVersion              Code = -103
	CodeNoChildrenForEphemerals Code = -108
	CodeNodeExists              Code = -110
	CodeNotEmpty                Code = -111
	CodeSessionExpired          Code = -112
	CodeInvalidCallback         Code = -113
	CodeInvalidACL              Code = -114
	CodeAuthFailed              Code = -115
	CodeClosing                 Code = -116
	CodeNothing                 Code = -117
	CodeSessionMoved            Code = -118
)

var codeNames = map[Code]string{
	CodeOK:                      "OK",
	CodeSystemError:             "SYSTEM_ERROR",
	CodeRuntimeInconsistency:    "RUNTIME_INCONSISTENCY",
	CodeDataInconsistency:       "DATA_INCONSISTENCY",
	CodeConnectionLoss:          "CONNECTION_LOSS",
	CodeMarshallingError:        "MARSHALLING_ERROR",
	CodeUnimplemented:           "UNIMPLEMENTED",
	CodeOperationTimeout:        "OPERATION_TIMEOUT",
	CodeBadArguments:            "BAD_ARGUMENTS",
	CodeAPIError:                "API_ERROR",
	CodeNoNode:                  "NO_NODE",
	CodeNoAuth:                  "NO_AUTH",
	CodeBadVersion:              "BAD_VERSION",
	CodeNoChildrenForEphemerals: "NO_CHILDREN_FOR_EPHEMERALS",
	CodeNodeExists:              "NODE_EXISTS",
	CodeNotEmpty:                "NOT_EMPTY",
	CodeSessionExpired:          "SESSION_EXPIRED",
	CodeInvalidCallback:         "INVALID_CALLBACK",
	CodeInvalidACL:              "INVALID_ACL",
	CodeAuthFailed:              "AUTH_FAILED",
	CodeClosing:                 "CLOSING",
	CodeNothing:                 "NOTHING",
	CodeSessionMoved:            "SESSION_MOVED",
}

// retryable lists the codes for which repeating the operation can succeed.
// Codes absent from the table are not retryable.
var retryable = map[Code]bool{
	CodeConnectionLoss:   true,
	CodeOperationTimeout: true,
	CodeSessionExpired:   true,
	CodeSessionMoved:     true,
}

// String returns the fault code name.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Known reports whether c is part of the fault taxonomy.
func (c Code) Known() bool {
	_, ok := codeNames[c]
	return ok
}

// Retryable reports whether an operation failing with c may succeed if repeated.
func (c Code) Retryable() bool {
	return retryable[c]
}

// ParseCode returns the code with the given name, as printed by String.
func ParseCode(name string) (Code, bool) {
	for c, n := range codeNames {
		if n == name {
			return c, true
		}
	}
	return CodeOK, false
}
