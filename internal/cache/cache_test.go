package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetExpiresAfterMaxAge(t *testing.T) {
	c := New()
	c.Set("k", 42)

	v, ok := c.Get("k", time.Hour)
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get("k", time.Millisecond)
	assert.False(t, ok, "entry older than maxAge must be evicted")

	_, ok = c.Get("k", time.Hour)
	assert.False(t, ok, "eviction on expiry must be permanent, not re-extend the TTL")
}

func TestSetIsLastWriteWins(t *testing.T) {
	c := New()
	c.Set("k", 1)
	c.Set("k", 2)
	v, ok := c.Get("k", time.Hour)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestSweepDropsExpiredEntries(t *testing.T) {
	c := New()
	c.Set("old", 1)
	time.Sleep(5 * time.Millisecond)
	c.Set("new", 2)

	c.Sweep(2 * time.Millisecond)

	_, ok := c.Get("old", time.Hour)
	assert.False(t, ok)
	_, ok = c.Get("new", time.Hour)
	assert.True(t, ok)
}

func TestInvalidateRemovesImmediately(t *testing.T) {
	c := New()
	c.Set("k", 1)
	c.Invalidate("k")
	_, ok := c.Get("k", time.Hour)
	assert.False(t, ok)
}
