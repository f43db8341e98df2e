package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		retryable   bool
		notFound    bool
		validation  bool
		conflict    bool
		storeFatal  bool
	}{
		{"transient", NewStoreTransientError("get", errors.New("timeout")), true, false, false, false, false},
		{"fatal", NewStoreFatalError("get", errors.New("syntax error")), false, false, false, false, true},
		{"not found", NewNotFoundError("abc"), false, true, false, false, false},
		{"validation", NewValidationError("code", "too long"), false, false, true, false, false},
		{"conflict", NewConflictError("abc"), false, false, false, true, false},
		{"plain error matches nothing", errors.New("boom"), false, false, false, false, false},
		{"wrapped transient still classifies", fmt.Errorf("outer: %w", NewStoreTransientError("get", errors.New("x"))), true, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.validation, IsValidation(tt.err))
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
			assert.Equal(t, tt.storeFatal, IsStoreFatal(tt.err))
		})
	}
}

func TestStoreTransientError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStoreTransientError("get", cause)
	assert.ErrorIs(t, err, cause)
}

func TestStoreFatalError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("constraint violation")
	err := NewStoreFatalError("upsert", cause)
	assert.ErrorIs(t, err, cause)
}

func TestFlushFailedError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("deadline exceeded")
	err := NewFlushFailedError(cause)
	assert.ErrorIs(t, err, cause)
}

func TestConfigValidationError_Message(t *testing.T) {
	err := NewConfigValidationError("click.batch_size", "must be a positive integer")
	assert.Contains(t, err.Error(), "click.batch_size")
	assert.Contains(t, err.Error(), "must be a positive integer")
}
