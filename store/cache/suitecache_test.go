package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetGet(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("default", 42)
	v, ok := c.Get("default")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestExpiry(t *testing.T) {
	c := New[string](1 * time.Millisecond)
	c.Set("k", "v")
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestStatsTrackHitsAndMisses(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("a", 1)
	c.Get("a")
	c.Get("missing")
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}
