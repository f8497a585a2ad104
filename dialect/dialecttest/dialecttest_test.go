package dialecttest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/dialect/dialecttest"
)

func TestMockOrdered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mock := dialecttest.New()
	mock.ExpectExec(`^MATCH \(n:Task\)`).
		WithParams(map[string]any{"a": "B"}).
		WillReturnRows(dialect.Row{"n": map[string]any{"guid": "1"}})
	mock.ExpectExec(`DELETE`).WillReturnStats(dialect.Stats{NodesDeleted: 1})

	res, err := mock.Exec(ctx, "MATCH (n:Task) WHERE n.title STARTS WITH $a RETURN n", map[string]any{"a": "B"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Error(t, mock.ExpectationsWereMet())

	res, err = mock.Exec(ctx, "MATCH (n:Task) DELETE n", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.NodesDeleted)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = mock.Exec(ctx, "RETURN 1", nil)
	assert.ErrorContains(t, err, "unexpected statement")
	assert.Len(t, mock.Calls(), 3)
}

func TestMockMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mock := dialecttest.New(dialecttest.WithMatcher(dialecttest.MatchExact))
	mock.ExpectExec("MATCH (n)\nRETURN n").WithParams(map[string]any{"a": 1})

	_, err := mock.Exec(ctx, "MATCH (m) RETURN m", map[string]any{"a": 1})
	assert.ErrorContains(t, err, "is not equal to")
	_, err = mock.Exec(ctx, "MATCH (n) RETURN n", map[string]any{"a": 2})
	assert.ErrorContains(t, err, "called with params")
	_, err = mock.Exec(ctx, "MATCH (n)   RETURN n", map[string]any{"a": 1})
	assert.NoError(t, err)
}

func TestMockAnyValueAndRespond(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mock := dialecttest.New()
	mock.ExpectExec("CREATE").
		WithParams(map[string]any{"props": map[string]any{"guid": dialecttest.AnyValue, "title": "x"}}).
		WillRespond(func(params map[string]any) (*dialect.Result, error) {
			return &dialect.Result{Rows: []dialect.Row{{"n": params["props"]}}}, nil
		})
	mock.ExpectExec("CREATE").WillReturnError(errors.New("boom"))

	res, err := mock.Exec(ctx, "CREATE (n:Task $props) RETURN n", map[string]any{
		"props": map[string]any{"guid": "g-1", "title": "x"},
	})
	require.NoError(t, err)
	props, ok := res.Rows[0].Props("n")
	require.True(t, ok)
	assert.Equal(t, "g-1", props["guid"])

	_, err = mock.Exec(ctx, "CREATE (n:Task $props) RETURN n", nil)
	assert.EqualError(t, err, "boom")
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, mock.Close(ctx))
}
