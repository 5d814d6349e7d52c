package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableTable(t *testing.T) {
	retry := []Code{CodeConnectionLoss, CodeOperationTimeout, CodeSessionExpired, CodeSessionMoved}
	for _, c := range retry {
		assert.True(t, c.Retryable(), "%s should be retryable", c)
	}

	noRetry := []Code{
		CodeOK, CodeSystemError, CodeRuntimeInconsistency, CodeDataInconsistency,
		CodeMarshallingError, CodeUnimplemented, CodeBadArguments, CodeAPIError,
		CodeNoNode, CodeNoAuth, CodeBadVersion, CodeNoChildrenForEphemerals,
		CodeNodeExists, CodeNotEmpty, CodeInvalidCallback, CodeInvalidACL,
		CodeAuthFailed, CodeClosing, CodeNothing,
	}
	for _, c := range noRetry {
		assert.False(t, c.Retryable(), "%s should not be retryable", c)
	}

	assert.False(t, Code(-9999).Retryable())
	assert.False(t, Code(-9999).Known())
	assert.Equal(t, "UNKNOWN", Code(-9999).String())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(CodeConnectionLoss, "/a")))
	assert.True(t, IsRetryable(fmt.Errorf("read: %w", ErrOperationTimeout)))
	assert.False(t, IsRetryable(New(CodeNoNode, "/a")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestIsSessionExpired(t *testing.T) {
	err := Wrap(CodeSessionExpired, "/locks", errors.New("zk: session has been expired by the server"))
	assert.True(t, IsSessionExpired(err))
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.False(t, errors.Is(err, ErrConnectionLoss))
	assert.False(t, IsSessionExpired(ErrSessionMoved))
}

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CodeNoAuth, "/secret", cause)

	assert.Equal(t, "keeper: NO_AUTH for /secret (boom)", err.Error())
	assert.Equal(t, "keeper: CONNECTION_LOSS", ErrConnectionLoss.Error())
	assert.ErrorIs(t, err, cause)

	code, ok := CodeOf(fmt.Errorf("wrapped: %w", err))
	assert.True(t, ok)
	assert.Equal(t, CodeNoAuth, code)

	_, ok = CodeOf(cause)
	assert.False(t, ok)
}

func TestParseCode(t *testing.T) {
	code, ok := ParseCode("SESSION_EXPIRED")
	assert.True(t, ok)
	assert.Equal(t, CodeSessionExpired, code)

	code, ok = ParseCode("OK")
	assert.True(t, ok)
	assert.Equal(t, CodeOK, code)

	_, ok = ParseCode("session_expired")
	assert.False(t, ok)
	_, ok = ParseCode("UNKNOWN")
	assert.False(t, ok)
}
