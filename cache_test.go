package velograph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "Task:t1", []byte("milk"), time.Minute))
	require.NoError(t, c.Set(ctx, "Task:t2", []byte("beer"), 0))
	require.NoError(t, c.Set(ctx, "Person:p1", []byte("paul"), 0))

	v, err := c.Get(ctx, "Task:t1")
	require.NoError(t, err)
	assert.Equal(t, []byte("milk"), v)

	now = now.Add(time.Minute)
	v, err = c.Get(ctx, "Task:t1")
	require.NoError(t, err)
	assert.Nil(t, v, "expired")
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.DeletePrefix(ctx, "Task:"))
	v, _ = c.Get(ctx, "Task:t2")
	assert.Nil(t, v)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete(ctx, "Person:p1"))
	require.NoError(t, c.Set(ctx, "Person:p2", nil, 0))
	require.NoError(t, c.Clear(ctx))
	assert.Zero(t, c.Len())
}
