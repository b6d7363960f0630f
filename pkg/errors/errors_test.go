package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      New(CodeTerminated, "stopped"),
			expected: "[TERMINATED] stopped",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeDatabaseError, "insert failed", errors.New("disk full")),
			expected: "[DATABASE_ERROR] insert failed: disk full",
		},
		{
			name:     "formatted",
			err:      Newf(CodeInvalidInput, "batch of %d sources", 65),
			expected: "[INVALID_INPUT] batch of 65 sources",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Is(t *testing.T) {
	err1 := New(CodeTerminated, "user cancelled")
	err2 := New(CodeTerminated, "timeout")
	err3 := New(CodeInvalidInput, "bad")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestIsTerminated(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"sentinel", ErrTerminated, true},
		{"wrapped by app error", Wrap(CodeTerminated, "run stopped", errors.New("sigint")), true},
		{"wrapped by fmt", fmt.Errorf("harmonic: %w", ErrTerminated), true},
		{"other", ErrInvalidInput, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTerminated(tt.err))
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, CodeNotFound, GetErrorCode(ErrNotFound))
	assert.Equal(t, CodeTerminated, GetErrorCode(fmt.Errorf("outer: %w", ErrTerminated)))
	assert.Equal(t, CodeUnknown, GetErrorCode(errors.New("plain")))
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "resource not found", GetErrorMessage(ErrNotFound))
	assert.Equal(t, "plain", GetErrorMessage(errors.New("plain")))
	assert.Equal(t, "", GetErrorMessage(nil))
}

func TestCheckIndex(t *testing.T) {
	assert.NotPanics(t, func() { CheckIndex(0, 1) })
	assert.NotPanics(t, func() { CheckIndex(9, 10) })

	defer func() {
		r := recover()
		require.NotNil(t, r)
		oob, ok := r.(*IndexOutOfBoundsError)
		require.True(t, ok)
		assert.Equal(t, int64(10), oob.Index)
		assert.Equal(t, int64(10), oob.Size)
		assert.Contains(t, oob.Error(), "INDEX_OUT_OF_BOUNDS")
	}()
	CheckIndex(10, 10)
}

func TestFromPanic(t *testing.T) {
	t.Run("app error passes through", func(t *testing.T) {
		assert.Same(t, ErrTerminated, FromPanic(ErrTerminated))
	})

	t.Run("index fault", func(t *testing.T) {
		err := FromPanic(&IndexOutOfBoundsError{Index: -1, Size: 3})
		assert.Equal(t, CodePanic, err.Code)
		var oob *IndexOutOfBoundsError
		assert.True(t, errors.As(err, &oob))
	})

	t.Run("allocation failure", func(t *testing.T) {
		err := FromPanic(errors.New("runtime error: makeslice: len out of range"))
		assert.Equal(t, CodeResourceExhausted, err.Code)
	})

	t.Run("string value", func(t *testing.T) {
		err := FromPanic("boom")
		assert.Equal(t, CodePanic, err.Code)
		assert.Equal(t, "boom", err.Message)
	})
}
