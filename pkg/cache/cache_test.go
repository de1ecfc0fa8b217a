package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetInvalidate(t *testing.T) {
	c := NewTTL[string, int]("test", 8, time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, c.Len())

	c.Invalidate("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestEviction(t *testing.T) {
	c := NewTTL[int, int]("test", 2, time.Minute)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3)

	_, ok := c.Get(1)
	assert.False(t, ok, "oldest entry evicted")
	assert.Equal(t, 2, c.Len())
}

func TestExpiry(t *testing.T) {
	c := NewTTL[string, string]("test", 8, 20*time.Millisecond)
	c.Set("k", "v")

	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestGetOrLoad(t *testing.T) {
	c := NewTTL[string, int]("test", 8, time.Minute)
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrLoad("x", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = c.GetOrLoad("x", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err = c.GetOrLoad("y", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("y")
	assert.False(t, ok)
}
