package mixin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/dialect/dialecttest"
	"github.com/syssam/velograph/predicate"
	"github.com/syssam/velograph/privacy"
)

func newTask(t *testing.T, mixins ...velograph.Mixin) (*dialecttest.Mock, *velograph.Model) {
	t.Helper()
	mock := dialecttest.New(dialecttest.WithMatcher(dialecttest.MatchExact))
	task, err := velograph.NewGraph(mock).Define("Task")
	require.NoError(t, err)
	task.Mixin(mixins...)
	return mock, task
}

func echo(params map[string]any) (*dialect.Result, error) {
	return &dialect.Result{Rows: []dialect.Row{{"n": params["_props"]}}}, nil
}

func TestTime(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return at }
	t.Cleanup(func() { now = func() time.Time { return time.Now().UTC() } })

	mock, task := newTask(t, Time{})
	ctx := context.Background()

	mock.ExpectExec("CREATE (n:Task $_props)\nRETURN n").WillRespond(echo)
	inst, err := task.Create(ctx, velograph.Props{"title": "Buy milk"})
	require.NoError(t, err)
	assert.Equal(t, at, inst.Props[CreatedAt])
	assert.Equal(t, at, inst.Props[UpdatedAt])

	later := at.Add(time.Hour)
	now = func() time.Time { return later }
	mock.ExpectExec("MATCH (n:Task)\nWHERE n.guid = $a\nSET n.title = $_u_n_title, n.updated_at = $_u_n_updated_at\nRETURN n").
		WithParams(map[string]any{"a": inst.GUID(), "_u_n_title": "Buy beer", "_u_n_updated_at": later})
	_, err = task.Update(ctx, predicate.Filter{velograph.GUIDKey: inst.GUID()}, velograph.Props{"title": "Buy beer", CreatedAt: later})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComposedDefaults(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Schema{}.Defaults())
	assert.Nil(t, Schema{}.Hooks())
	tests := []struct {
		name  string
		mixin velograph.Mixin
		keys  []string
		hooks int
	}{
		{name: "CreateTime", mixin: CreateTime{}, keys: []string{CreatedAt}, hooks: 1},
		{name: "UpdateTime", mixin: UpdateTime{}, keys: []string{UpdatedAt}, hooks: 1},
		{name: "Time", mixin: Time{}, keys: []string{CreatedAt, UpdatedAt}, hooks: 2},
		{name: "SoftDelete", mixin: SoftDelete{}, keys: []string{Deleted}, hooks: 1},
		{name: "TimeSoftDelete", mixin: TimeSoftDelete{}, keys: []string{CreatedAt, UpdatedAt, Deleted}, hooks: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			defaults := tt.mixin.Defaults()
			assert.Len(t, defaults, len(tt.keys))
			for _, k := range tt.keys {
				assert.Contains(t, defaults, k)
			}
			assert.Len(t, tt.mixin.Hooks(), tt.hooks)
		})
	}
}

func TestSoftDelete(t *testing.T) {
	t.Parallel()

	mock, task := newTask(t, SoftDelete{})
	ctx := context.Background()

	mock.ExpectExec("CREATE (n:Task $_props)\nRETURN n").WillRespond(func(params map[string]any) (*dialect.Result, error) {
		assert.Equal(t, false, params["_props"].(map[string]any)[Deleted])
		return echo(params)
	})
	_, err := task.Create(ctx, velograph.Props{"title": "Buy milk"})
	require.NoError(t, err)

	mock.ExpectExec("MATCH (n:Task)\nWHERE n.deleted = $a AND n.title = $b\nRETURN n").
		WithParams(map[string]any{"a": false, "b": "Buy milk"})
	_, err = task.Find(ctx, predicate.Filter{"title": "Buy milk"})
	require.NoError(t, err)

	mock.ExpectExec("MATCH (n:Task)\nWHERE n.deleted = $a\nRETURN n").
		WithParams(map[string]any{"a": true})
	_, err = task.Find(ctx, predicate.Filter{Deleted: true})
	require.NoError(t, err)

	p := SoftDeleted()
	assert.Equal(t, true, p[Deleted])
	assert.IsType(t, time.Time{}, p[DeletedAt])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantID(t *testing.T) {
	t.Parallel()

	mock, task := newTask(t, TenantID{})
	acme := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "u1", TenantID: "acme"})

	_, err := task.Create(context.Background(), velograph.Props{"title": "Buy milk"})
	assert.ErrorIs(t, err, ErrNoTenant)

	mock.ExpectExec("CREATE (n:Task $_props)\nRETURN n").WillRespond(echo)
	inst, err := task.Create(acme, velograph.Props{"title": "Buy milk"})
	require.NoError(t, err)
	assert.Equal(t, "acme", inst.Props[Tenant])

	_, err = task.Create(acme, velograph.Props{Tenant: "umbrella"})
	assert.True(t, velograph.IsPrivacyError(err))

	mock.ExpectExec("MATCH (n:Task)\nWHERE n.tenant = $a\nRETURN n").
		WithParams(map[string]any{"a": "acme"})
	_, err = task.Find(acme, nil)
	require.NoError(t, err)

	_, err = task.Find(context.Background(), nil)
	assert.True(t, velograph.IsPrivacyError(err))

	mock.ExpectExec("MATCH (n:Task)\nWHERE n.tenant = $a\nSET n.title = $_u_n_title\nRETURN n").
		WithParams(map[string]any{"a": "acme", "_u_n_title": "Buy beer"})
	_, err = task.Update(acme, nil, velograph.Props{"title": "Buy beer"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantIDField(t *testing.T) {
	t.Parallel()

	hooks := TenantID{Field: "workspace"}.Hooks()
	require.Len(t, hooks, 1)
	ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{TenantID: "w1"})
	p, err := hooks[0].BeforeCreate(ctx, velograph.Props{})
	require.NoError(t, err)
	assert.Equal(t, velograph.Props{"workspace": "w1"}, p)

	_, p, err = hooks[0].BeforeUpdate(ctx, nil, velograph.Props{"workspace": "w2", "title": "x"})
	require.NoError(t, err)
	assert.Equal(t, velograph.Props{"title": "x"}, p)
}
