package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorSubjectMapping(t *testing.T) {
	cases := []struct {
		code Code
		want string
	}{
		{CodeTargetForbidden, SubjectToolCallError},
		{CodeActionError, SubjectToolCallError},
		{CodeAgentError, SubjectAgentError},
		{CodeRouterError, SubjectRouterError},
		{CodeUnknownRecipient, SubjectRouterError},
		{CodeRuntimeError, SubjectRuntimeError},
		{CodeTaskTimeout, ""},
		{CodeCancelled, ""},
	}
	for _, tc := range cases {
		e := New(tc.code, "boom")
		assert.Equal(t, tc.want, e.Subject(), "code %s", tc.code)
	}
}

func TestErrorIsMatchesByCodeOnly(t *testing.T) {
	a := New(CodeRouterError, "peer unreachable")
	b := New(CodeRouterError, "different message, same code")
	c := New(CodeAgentError, "different code")

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
	assert.False(t, a.Is(errors.New("not a *protocol.Error")))
}

func TestErrorUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	wrapped := Wrap(CodeRouterError, "send failed", cause)
	assert.Equal(t, cause, errors.Unwrap(wrapped))
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestErrorWithTaskStampsTaskID(t *testing.T) {
	e := New(CodeSchemaError, "bad envelope").WithTask("task-42")
	assert.Equal(t, "task-42", e.TaskID)
}

func TestCodeStringNamesEveryCode(t *testing.T) {
	codes := []Code{
		CodeSchemaError, CodeTargetForbidden, CodeUnknownRecipient, CodeRouterError,
		CodeActionError, CodeAgentError, CodeTaskTimeout, CodeCancelled, CodeRuntimeError,
	}
	for _, c := range codes {
		assert.NotEqual(t, "unknown", c.String())
	}
	assert.Equal(t, "unknown", Code(999).String())
}
