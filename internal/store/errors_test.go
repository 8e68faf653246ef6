package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFoundError(ErrNotFound))
	assert.True(t, IsNotFoundError(ErrTaskNotFound))
	assert.True(t, IsNotFoundError(fmt.Errorf("wrapped: %w", ErrTaskNotFound)))
	assert.False(t, IsNotFoundError(ErrDuplicate))

	assert.True(t, IsDuplicateError(ErrDuplicate))
	assert.True(t, IsDuplicateError(ErrDuplicateTaskID))
	assert.False(t, IsDuplicateError(ErrNotFound))
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	t.Run("formats with wrapped error", func(t *testing.T) {
		t.Parallel()

		inner := errors.New("disk I/O error")
		err := NewStoreError("task", "claim", "conditional update failed", inner)
		assert.Equal(t, "claim operation on task failed: conditional update failed: disk I/O error", err.Error())
	})

	t.Run("formats without wrapped error", func(t *testing.T) {
		t.Parallel()

		err := NewStoreError("task", "insert", "exec failed", nil)
		assert.Equal(t, "insert operation on task failed: exec failed", err.Error())
	})

	t.Run("unwrap preserves sentinel matching", func(t *testing.T) {
		t.Parallel()

		err := NewStoreError("task", "get", "query failed", fmt.Errorf("%w: no rows", ErrNotFound))
		assert.True(t, IsNotFoundError(err))

		var storeErr *StoreError
		assert.ErrorAs(t, error(err), &storeErr)
		assert.Equal(t, "task", storeErr.Entity)
		assert.Equal(t, "get", storeErr.Operation)
	})
}
