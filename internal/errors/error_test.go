package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuredError_Error(t *testing.T) {
	err := New(ErrorTypeValidation, "test_op", "test message")
	assert.Equal(t, "[validation] test_op: test message", err.Error())

	cause := errors.New("underlying error")
	err = Wrap(cause, ErrorTypeResolution, "locate", "unable to instantiate allocation manager for Bogus")
	assert.Contains(t, err.Error(), "[resolution] locate: unable to instantiate allocation manager for Bogus")
	assert.Contains(t, err.Error(), "underlying error")
	assert.Equal(t, cause, err.Unwrap())
}

func TestStructuredError_WithContext(t *testing.T) {
	err := New(ErrorTypeAllocation, "buffer", "limit exceeded")
	err = err.WithContext("requested", int64(100)).WithContext("backend", "Netty")

	assert.Equal(t, int64(100), err.Context["requested"])
	assert.Equal(t, "Netty", err.Context["backend"])
}

func TestStructuredError_ZeroContext(t *testing.T) {
	err := &StructuredError{Type: ErrorTypeValidation}
	err.WithContext("k", "v")
	assert.Equal(t, "v", err.Context["k"])
}

func TestErrorConstructors(t *testing.T) {
	assert.Equal(t, ErrorTypeValidation, NewValidationError("op", "msg").Type)
	assert.Equal(t, ErrorTypeConfiguration, NewConfigurationError("op", "msg").Type)
}

func TestErrorWrapping(t *testing.T) {
	sentinel := errors.New("sentinel")

	tests := []struct {
		name    string
		wrap    func(error, string, string) *StructuredError
		errType ErrorType
	}{
		{"configuration", WrapConfigurationError, ErrorTypeConfiguration},
		{"resolution", WrapResolutionError, ErrorTypeResolution},
		{"allocation", WrapAllocationError, ErrorTypeAllocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := tt.wrap(sentinel, "op", "msg")
			assert.Equal(t, tt.errType, wrapped.Type)
			assert.Equal(t, "op", wrapped.Operation)
			assert.Equal(t, "msg", wrapped.Message)
			assert.True(t, errors.Is(wrapped, sentinel))
		})
	}

	assert.Nil(t, Wrap(nil, ErrorTypeAllocation, "op", "msg"))
}

func TestErrorAs(t *testing.T) {
	var err error = WrapResolutionError(errors.New("x"), "locate", "failed")
	var se *StructuredError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, ErrorTypeResolution, se.Type)
}

func TestStackTraceCapture(t *testing.T) {
	err := New(ErrorTypeValidation, "test", "message")
	assert.Greater(t, len(err.Stack), 0)
}
