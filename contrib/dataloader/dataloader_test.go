package dataloader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type task struct {
	GUID string
}

func guidOf(t *task) string { return t.GUID }

func TestOrderByKeys(t *testing.T) {
	t.Parallel()

	values := []*task{{GUID: "t3"}, {GUID: "t1"}, {GUID: "t2"}}

	t.Run("AllFound", func(t *testing.T) {
		t.Parallel()
		got, errs := OrderByKeys([]string{"t1", "t2", "t3"}, values, guidOf)
		require.Len(t, got, 3)
		for i, want := range []string{"t1", "t2", "t3"} {
			assert.Equal(t, want, got[i].GUID)
			assert.NoError(t, errs[i])
		}
	})

	t.Run("Missing", func(t *testing.T) {
		t.Parallel()
		got, errs := OrderByKeys([]string{"t1", "t9", "t1"}, values, guidOf)
		require.Len(t, got, 3)
		assert.Equal(t, "t1", got[0].GUID)
		assert.Nil(t, got[1])
		assert.ErrorIs(t, errs[1], ErrNotFound)
		assert.Equal(t, "t1", got[2].GUID)
	})
}

func TestPrimeAndClear(t *testing.T) {
	t.Parallel()

	l := NewLoader(func(context.Context, []string) ([]*task, []error) {
		return nil, []error{ErrNotFound}
	})
	l.PrimeMany([]*task{{GUID: "t1"}, {GUID: "t2"}}, guidOf)
	got, err := l.Load(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, "t2", got.GUID)

	l.Prime("t3", &task{GUID: "t3"})
	l.Clear("t1", "t2")
	for _, key := range []string{"t1", "t2"} {
		_, err = l.Load(context.Background(), key)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	got, err = l.Load(context.Background(), "t3")
	require.NoError(t, err)
	assert.Equal(t, "t3", got.GUID)
}

func TestContext(t *testing.T) {
	t.Parallel()

	type loaders struct{ Tasks string }
	ctx := NewContext(context.Background(), &loaders{Tasks: "tasks"})
	got, ok := FromContext[*loaders](ctx)
	require.True(t, ok)
	assert.Equal(t, "tasks", got.Tasks)

	_, ok = FromContext[*loaders](context.Background())
	assert.False(t, ok)
	_, ok = FromContext[string](ctx)
	assert.False(t, ok)
}

func BenchmarkOrderByKeys(b *testing.B) {
	keys := make([]string, 100)
	values := make([]*task, 100)
	for i := range 100 {
		keys[i] = string(rune('a'+i%26)) + string(rune('a'+i/26))
		values[i] = &task{GUID: keys[i]}
	}
	for b.Loop() {
		OrderByKeys(keys, values, guidOf)
	}
}
