package driver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorf(t *testing.T) {
	t.Run("success maps to nil", func(t *testing.T) {
		assert.NoError(t, Errorf("cuMemAlloc", Success))
	})

	t.Run("carries op and code", func(t *testing.T) {
		err := Errorf("cuMemAlloc", ErrorOutOfMemory)
		assert.EqualError(t, err, "cuMemAlloc: CUDA_ERROR_OUT_OF_MEMORY")
	})

	t.Run("matches by code through wrapping", func(t *testing.T) {
		err := fmt.Errorf("allocating buffer: %w", Errorf("cuMemAlloc", ErrorOutOfMemory))
		assert.True(t, errors.Is(err, &Error{Code: ErrorOutOfMemory}))
		assert.False(t, errors.Is(err, &Error{Code: ErrorInvalidValue}))
	})

	t.Run("unknown codes still print", func(t *testing.T) {
		assert.Equal(t, "CUDA_ERROR(12345)", Code(12345).String())
	})
}
