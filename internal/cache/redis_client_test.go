package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClientSetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClientTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	require.NoError(t, c.Set(ctx, "k", "v", time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestProgressRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	require.NoError(t, StoreProgress(ctx, c, ProgressSnapshot{
		JobID:    "job-1",
		Status:   "processing",
		Stage:    "translate",
		Progress: 57,
	}))

	snap, err := LoadProgress(ctx, c, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", snap.JobID)
	assert.Equal(t, "processing", snap.Status)
	assert.Equal(t, "translate", snap.Stage)
	assert.Equal(t, 57, snap.Progress)
	assert.False(t, snap.UpdatedAt.IsZero())

	_, err = LoadProgress(ctx, c, "job-2")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestProgressToleratesNilClient(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, StoreProgress(ctx, nil, ProgressSnapshot{JobID: "job-1"}))

	_, err := LoadProgress(ctx, nil, "job-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
