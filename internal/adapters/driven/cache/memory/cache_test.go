package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetAndGet(t *testing.T) {
	c := New()
	ctx := context.Background()

	c.Set(ctx, "key", []float32{1, 2, 3}, time.Hour)

	got, ok := c.Get(ctx, "key")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got)
}

func TestCache_Get_Missing(t *testing.T) {
	c := New()

	_, ok := c.Get(context.Background(), "missing")
	assert.False(t, ok)
}

func TestCache_Get_Expired(t *testing.T) {
	c := New()
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set(ctx, "key", []float32{1}, time.Minute)

	// Advance past the TTL.
	c.now = func() time.Time { return now.Add(2 * time.Minute) }

	_, ok := c.Get(ctx, "key")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCache_Set_NonPositiveTTLIgnored(t *testing.T) {
	c := New()
	ctx := context.Background()

	c.Set(ctx, "key", []float32{1}, 0)
	_, ok := c.Get(ctx, "key")
	assert.False(t, ok)
}

func TestCache_Set_RefreshesExpiry(t *testing.T) {
	c := New()
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set(ctx, "key", []float32{1}, time.Minute)

	// Refresh just before expiry, then advance past the original deadline.
	c.now = func() time.Time { return now.Add(50 * time.Second) }
	c.Set(ctx, "key", []float32{2}, time.Minute)

	c.now = func() time.Time { return now.Add(90 * time.Second) }
	got, ok := c.Get(ctx, "key")
	require.True(t, ok)
	assert.Equal(t, []float32{2}, got)
}

func TestCache_SweepEvictsExpiredEntries(t *testing.T) {
	c := New()
	c.sweepSize = 2
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set(ctx, "a", []float32{1}, time.Minute)
	c.Set(ctx, "b", []float32{2}, time.Minute)

	// Both expired; the next Set triggers a sweep before inserting.
	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	c.Set(ctx, "c", []float32{3}, time.Minute)

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(ctx, "c")
	assert.True(t, ok)
}
