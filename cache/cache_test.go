package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iriusrisk/iriusrisk-cli-sub001/model"
)

func TestCache_PutAndGet(t *testing.T) {
	c := New(0)
	snap := model.NewSnapshot("v1")
	c.Put("ver-1", snap)

	got, ok := c.Get("ver-1")
	require.True(t, ok)
	assert.Same(t, snap, got)
	assert.Equal(t, 1, c.Len())
}

func TestCache_MissingKey(t *testing.T) {
	c := New(0)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Put("ver-1", model.NewSnapshot("v1"))

	_, ok := c.Get("ver-1")
	assert.True(t, ok)

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok = c.Get("ver-1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	c := New(0)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Put("ver-1", model.NewSnapshot("v1"))

	c.now = func() time.Time { return now.Add(24 * time.Hour) }
	_, ok := c.Get("ver-1")
	assert.True(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := New(0)
	c.Put("ver-1", model.NewSnapshot("v1"))
	c.Put("ver-2", model.NewSnapshot("v2"))

	c.Invalidate("ver-1")
	_, ok := c.Get("ver-1")
	assert.False(t, ok)
	_, ok = c.Get("ver-2")
	assert.True(t, ok)

	c.InvalidateAll()
	assert.Equal(t, 0, c.Len())
}

func TestCache_IgnoresEmptyKeyAndNil(t *testing.T) {
	c := New(0)
	c.Put("", model.NewSnapshot("v1"))
	c.Put("ver-1", nil)
	assert.Equal(t, 0, c.Len())
}
