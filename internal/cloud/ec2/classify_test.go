package ec2

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/stretchr/testify/assert"

	"github.com/lobot-sh/lobot/internal/errors"
)

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, classify(nil, "whatever"))
}

func TestClassifyAWSCodes(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"AuthFailure", errors.ErrAuth},
		{"UnauthorizedOperation", errors.ErrAuth},
		{"ExpiredToken", errors.ErrAuth},
		{"InvalidInstanceID.NotFound", errors.ErrNotFound},
		{"InvalidInstanceID.Malformed", errors.ErrNotFound},
		{"IncorrectInstanceState", errors.ErrTransition},
		{"RequestLimitExceeded", errors.ErrProvider},
		{"Throttling", errors.ErrProvider},
		{"ServiceUnavailable", errors.ErrProvider},
		{"SomeNewCode", errors.ErrProvider},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := classify(awserr.New(tt.code, "boom", nil), "call failed")
			assert.True(t, errors.IsCode(err, tt.want),
				"code %s should classify as %s, got %v", tt.code, tt.want, err)
		})
	}
}

func TestClassifyPlainErrorIsTransient(t *testing.T) {
	err := classify(stderrors.New("dial tcp: connection reset"), "call failed")
	assert.True(t, errors.IsCode(err, errors.ErrProvider))
}

func TestClassifyContextCancelPassesThrough(t *testing.T) {
	// Cancellation is the operator's doing, not a provider failure.
	err := classify(context.Canceled, "call failed")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.IsCode(err, errors.ErrProvider))
}

func TestNewRequiresRegion(t *testing.T) {
	_, err := New("", nil)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}
