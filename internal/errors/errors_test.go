package errors

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrAuth,
		ErrNotFound,
		ErrTransition,
		ErrProvider,
		ErrTimeout,
		ErrVerify,
		ErrKeys,
		ErrConnect,
		ErrSSHAuth,
		ErrUnreachable,
		ErrTransfer,
		ErrConfig,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "auth error",
			code:       ErrAuth,
			message:    "AWS rejected your credentials",
			suggestion: "Run 'aws configure' to refresh them",
		},
		{
			name:       "transition error",
			code:       ErrTransition,
			message:    "Can't resize a running instance",
			suggestion: "Stop the instance first, then resize",
		},
		{
			name:       "keys error",
			code:       ErrKeys,
			message:    "Key file is group/world readable",
			suggestion: "Fix with: chmod 400 <key>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormat(t *testing.T) {
	err := New(ErrTimeout, "Instance didn't reach 'running' in time", "Check its state with: lobot list")

	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "✗ "), "should start with failure symbol")
	assert.Contains(t, msg, "Instance didn't reach 'running' in time")
	assert.Contains(t, msg, "Check its state with: lobot list")
}

func TestErrorFormatWithCause(t *testing.T) {
	cause := errors.New("RequestLimitExceeded: rate exceeded")
	err := WrapWithCode(cause, ErrProvider, "AWS API call failed", "Try again in a moment")

	msg := err.Error()
	assert.Contains(t, msg, "AWS API call failed")
	assert.Contains(t, msg, "RequestLimitExceeded: rate exceeded")
	assert.Contains(t, msg, "Try again in a moment")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, "Describe call failed")

	assert.Equal(t, ErrProvider, err.Code)
	assert.ErrorIs(t, err, cause)
}

func TestIsCode(t *testing.T) {
	err := New(ErrNotFound, "No instance with id i-0abc", "")

	assert.True(t, IsCode(err, ErrNotFound))
	assert.False(t, IsCode(err, ErrAuth))
	assert.False(t, IsCode(nil, ErrNotFound))
	assert.False(t, IsCode(errors.New("plain"), ErrNotFound))
}

func TestIsCodeWrapped(t *testing.T) {
	inner := New(ErrAuth, "Credentials expired", "")
	outer := WrapWithCode(inner, ErrTimeout, "Polling aborted", "")

	// Only the outermost code counts; the polling loop already classified it.
	assert.True(t, IsCode(outer, ErrTimeout))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(ErrProvider, "throttled", "")))
	assert.False(t, Retryable(New(ErrAuth, "expired", "")))
	assert.False(t, Retryable(New(ErrTransition, "wrong state", "")))
	assert.False(t, Retryable(nil))
}

func TestExitError(t *testing.T) {
	err := NewExitError(3)
	assert.Equal(t, 3, err.Code)
	assert.Contains(t, err.Error(), "3")
}
