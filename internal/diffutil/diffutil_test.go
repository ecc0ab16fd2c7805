package diffutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnifiedSingleLineChange(t *testing.T) {
	d := Unified("A", "B", "previous", "current")
	assert.Contains(t, d, "--- previous")
	assert.Contains(t, d, "+++ current")
	assert.Contains(t, d, "-A")
	assert.Contains(t, d, "+B")
}

func TestUnifiedIdenticalTextsYieldNoDiff(t *testing.T) {
	d := Unified("same", "same", "previous", "current")
	assert.Empty(t, d)
}

func TestUnifiedMultilineInsertion(t *testing.T) {
	old := "line1\nline2\nline3"
	next := "line1\nline2\nline2.5\nline3"
	d := Unified(old, next, "previous", "current")
	assert.Contains(t, d, "+line2.5")
	// Unchanged lines retain their leading context marker.
	assert.True(t, strings.Contains(d, " line1") || strings.Contains(d, " line2"))
}
