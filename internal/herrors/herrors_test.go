package herrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	err := NotFoundf("prompt %s", "abc")
	assert.Equal(t, NotFound, err.Kind)
	assert.False(t, err.IsRetryable())

	transient := Transientf(fmt.Errorf("dial timeout"), "evaluator call failed")
	assert.True(t, transient.IsRetryable())
	assert.ErrorContains(t, transient, "dial timeout")
}

func TestIs(t *testing.T) {
	err := Conflictf("slug taken")
	require.True(t, Is(err, Conflict))
	require.False(t, Is(err, NotFound))

	wrapped := fmt.Errorf("update failed: %w", err)
	require.True(t, Is(wrapped, Conflict))
}
