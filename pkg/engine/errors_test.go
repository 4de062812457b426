package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := NewNetworkError("lookup failed", errors.New("dial tcp: timeout")).WithUnit("IpReporter")
	assert.Equal(t, "[network] lookup failed (unit=IpReporter): dial tcp: timeout", err.Error())

	plain := NewValidationError("number is required", nil)
	assert.Equal(t, "[validation] number is required", plain.Error())
}

func TestError_Classification(t *testing.T) {
	v := NewValidationError("bad", nil)
	n := NewNetworkError("down", nil)
	u := NewUnhandledError("oops", nil)
	raw := errors.New("raw")

	assert.True(t, IsValidation(v))
	assert.True(t, IsNetwork(n))
	assert.True(t, IsUnhandled(u))
	assert.True(t, IsUnhandled(raw))
	assert.False(t, IsUnhandled(nil))

	wrapped := fmt.Errorf("context: %w", n)
	assert.Equal(t, ErrorKindNetwork, KindOf(wrapped))
	assert.Equal(t, ErrorKindUnhandled, KindOf(raw))
}

func TestError_IsMatchesKindAndCode(t *testing.T) {
	err := NewValidationError("negative", nil).WithCode(ErrCodeOutOfRange)

	assert.True(t, errors.Is(err, &Error{Kind: ErrorKindValidation, Code: ErrCodeOutOfRange}))
	assert.False(t, errors.Is(err, &Error{Kind: ErrorKindValidation, Code: ErrCodeInvalidPayload}))
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))

	raw := errors.New("raw")
	classified := AsError(raw)
	assert.Equal(t, ErrorKindUnhandled, classified.Kind)
	assert.ErrorIs(t, classified, raw)

	n := NewNetworkError("down", nil)
	assert.Same(t, n, AsError(fmt.Errorf("wrap: %w", n)))
}

func TestError_WithDetail(t *testing.T) {
	err := NewValidationError("too large", nil).
		WithDetail("number", 20000).
		WithDetail("max", 10000)

	assert.Equal(t, 20000, err.Details["number"])
	assert.Equal(t, 10000, err.Details["max"])
}
