package semverx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBumpPatch(t *testing.T) {
	next, err := BumpPatch("1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", next)
}

func TestBumpMinorResetsPatch(t *testing.T) {
	next, err := BumpMinor("1.2.9")
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", next)
}

func TestBumpMajorResetsMinorAndPatch(t *testing.T) {
	next, err := BumpMajor("1.2.9")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", next)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare("1.0.0", "1.0.1"))
	assert.Equal(t, 0, Compare("1.0.0", "1.0.0"))
	assert.Equal(t, 1, Compare("1.1.0", "1.0.9"))
}

func TestStrictlyIncreasing(t *testing.T) {
	assert.True(t, StrictlyIncreasing([]string{"1.0.0", "1.0.1", "1.1.0"}))
	assert.False(t, StrictlyIncreasing([]string{"1.0.1", "1.0.0"}))
}

func TestInvalidVersion(t *testing.T) {
	_, err := BumpPatch("not-a-version")
	require.Error(t, err)
}
