package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover_WithPanic(t *testing.T) {
	fit := func() (err error) {
		defer Recover(&err, "RandomForestClassifier.Fit")
		panic("index out of range")
	}

	err := fit()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, errors.As(err, &panicErr), "expected PanicError, got %T", err)
	assert.Equal(t, "RandomForestClassifier.Fit", panicErr.Operation)
	assert.Equal(t, "index out of range", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in RandomForestClassifier.Fit: index out of range", panicErr.Error())
	assert.Contains(t, panicErr.String(), "Stack trace:")
	assert.Nil(t, panicErr.Unwrap())
}

func TestRecover_WithoutPanic(t *testing.T) {
	fit := func() (err error) {
		defer Recover(&err, "Fit")
		return nil
	}
	assert.NoError(t, fit())
}

func TestRecover_WithExistingError(t *testing.T) {
	original := fmt.Errorf("original error")

	fit := func() (err error) {
		defer Recover(&err, "Fit")
		err = original
		panic("panic after error")
	}

	err := fit()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "panic in Fit"))
	assert.True(t, errors.Is(err, original))
}

func TestSafeExecute(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		assert.NoError(t, SafeExecute("op", func() error { return nil }))
	})

	t.Run("function error is returned unchanged", func(t *testing.T) {
		original := fmt.Errorf("function error")
		assert.Same(t, original, SafeExecute("op", func() error { return original }))
	})

	t.Run("panic becomes PanicError", func(t *testing.T) {
		err := SafeExecute("op", func() error { panic(42) })
		var panicErr *PanicError
		require.True(t, errors.As(err, &panicErr))
		assert.Equal(t, 42, panicErr.PanicValue)
	})
}
