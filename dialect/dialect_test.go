package dialect_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/dialect/dialecttest"
)

func TestRow(t *testing.T) {
	t.Parallel()
	row := dialect.Row{
		"n":     map[string]any{"guid": "1"},
		"count": int64(3),
		"f":     2.0,
		"g":     2.5,
		"s":     "x",
	}
	props, ok := row.Props("n")
	require.True(t, ok)
	assert.Equal(t, "1", props["guid"])
	_, ok = row.Props("s")
	assert.False(t, ok)

	n, ok := row.Int("count")
	assert.True(t, ok)
	assert.EqualValues(t, 3, n)
	n, ok = row.Int("f")
	assert.True(t, ok)
	assert.EqualValues(t, 2, n)
	_, ok = row.Int("g")
	assert.False(t, ok)
	_, ok = row.Int("missing")
	assert.False(t, ok)
}

func TestResultID(t *testing.T) {
	t.Parallel()
	res := &dialect.Result{IDs: []map[string]string{{"n": "4:x:1"}, nil}}
	assert.Equal(t, "4:x:1", res.ID(0, "n"))
	assert.Empty(t, res.ID(0, "r"))
	assert.Empty(t, res.ID(1, "n"))
	assert.Empty(t, res.ID(2, "n"))
	assert.Empty(t, res.ID(-1, "n"))
	assert.Empty(t, (&dialect.Result{}).ID(0, "n"))
}

func TestStats(t *testing.T) {
	t.Parallel()
	var s dialect.Stats
	assert.False(t, s.ContainsUpdates())
	assert.Equal(t, "none", s.String())

	s = s.Add(dialect.Stats{NodesCreated: 1, RelationshipsCreated: 2})
	s = s.Add(dialect.Stats{NodesCreated: 1, PropertiesSet: 4})
	assert.True(t, s.ContainsUpdates())
	assert.Equal(t, dialect.Stats{NodesCreated: 2, RelationshipsCreated: 2, PropertiesSet: 4}, s)
	assert.Equal(t, "nodes_created=2 relationships_created=2 properties_set=4", s.String())
}

func TestStatsDriver(t *testing.T) {
	t.Parallel()
	var slow []string
	drv := dialect.NewStatsDriver(
		dialect.DriverFunc(func(_ context.Context, stmt string, _ map[string]any) (*dialect.Result, error) {
			switch stmt {
			case "slow":
				time.Sleep(5 * time.Millisecond)
			case "fail":
				return nil, errors.New("boom")
			}
			return &dialect.Result{Stats: dialect.Stats{NodesCreated: 1}}, nil
		}),
		dialect.WithSlowThreshold(time.Millisecond),
		dialect.WithSlowQueryHook(func(_ context.Context, stmt string, _ map[string]any, _ time.Duration) {
			slow = append(slow, stmt)
		}),
	)
	ctx := context.Background()
	_, err := drv.Exec(ctx, "fast", nil)
	require.NoError(t, err)
	_, err = drv.Exec(ctx, "slow", nil)
	require.NoError(t, err)
	_, err = drv.Exec(ctx, "fail", nil)
	require.Error(t, err)

	s := drv.QueryStats().Stats()
	assert.EqualValues(t, 3, s.TotalExecs)
	assert.EqualValues(t, 1, s.Errors)
	assert.GreaterOrEqual(t, s.SlowQueries, int64(1))
	assert.Contains(t, slow, "slow")
	assert.Equal(t, 2, s.Changes.NodesCreated)
	assert.NotZero(t, s.AvgDuration())
	assert.Contains(t, s.String(), "execs=3")

	drv.SetSlowThreshold(time.Hour)
	assert.Equal(t, time.Hour, drv.SlowThreshold())
	drv.QueryStats().Reset()
	assert.Zero(t, drv.QueryStats().Stats().TotalExecs)
	assert.Zero(t, dialect.StatsSnapshot{}.AvgDuration())
}

func TestSlowQueryLog(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	drv := dialect.NewStatsDriver(
		dialect.DriverFunc(func(context.Context, string, map[string]any) (*dialect.Result, error) {
			time.Sleep(2 * time.Millisecond)
			return &dialect.Result{}, nil
		}),
		dialect.WithSlowThreshold(time.Nanosecond),
		dialect.WithSlowQueryLog(zerolog.New(&buf)),
	)
	_, err := drv.Exec(context.Background(), "MATCH (n) RETURN n", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"message":"slow statement detected"`)
	assert.Contains(t, buf.String(), `"stmt":"MATCH (n) RETURN n"`)
}

func TestDebugDriver(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	mock := dialecttest.New()
	mock.ExpectExec("RETURN 1").WillReturnRows(dialect.Row{"1": int64(1)})
	drv := dialect.Debug(mock, zerolog.New(&buf).Level(zerolog.DebugLevel))

	res, err := drv.Exec(context.Background(), "RETURN 1", map[string]any{"a": "b"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.NoError(t, drv.Close(context.Background()))
	assert.True(t, mock.Closed())
	assert.Contains(t, buf.String(), "exec: RETURN 1 params: map[a:b]")
	assert.Contains(t, buf.String(), "close driver")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsDriver(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	drv := dialect.NewMetricsDriver(
		dialect.DriverFunc(func(_ context.Context, stmt string, _ map[string]any) (*dialect.Result, error) {
			if stmt == "MATCH (n) RETURN x" {
				return nil, errors.New("unknown variable")
			}
			return &dialect.Result{Stats: dialect.Stats{NodesCreated: 2}}, nil
		}),
		dialect.NewMetrics(reg),
	)
	ctx := context.Background()
	_, err := drv.Exec(ctx, "CREATE (n:Task $p) RETURN n", nil)
	require.NoError(t, err)
	_, err = drv.Exec(ctx, "MATCH (n) RETURN x", nil)
	require.Error(t, err)
	assert.NotNil(t, drv.Metrics())

	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "/" + l.GetValue()
			}
			if c := m.GetCounter(); c != nil {
				values[key] = c.GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["velograph_statements_total/create/ok"])
	assert.Equal(t, 1.0, values["velograph_statements_total/match/error"])
	assert.Equal(t, 2.0, values["velograph_changes_total/nodes_created"])
}

func TestClause(t *testing.T) {
	tests := []struct{ stmt, want string }{
		{"MATCH (n) RETURN n", "match"},
		{"  OPTIONAL MATCH (n)", "optional"},
		{"CREATE(n)", "create"},
		{"merge (a)-[:x]->(b)", "merge"},
		{"DROP INDEX x", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.stmt, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, dialect.Clause(tt.stmt))
		})
	}
}
