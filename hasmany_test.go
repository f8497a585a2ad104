package velograph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/contrib/mixin"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/dialect/dialecttest"
	"github.com/syssam/velograph/predicate"
)

const (
	linkTask = "MATCH (a:Person {guid: $_src}), (b:Task)\nWHERE b.guid IN $_dst\nMERGE (a)-[r:created]->(b)\nRETURN r"
	getTasks = "MATCH (a:Person {guid: $_src})-[r:created]->(b:Task)"
)

// linked answers a link statement with one relationship per destination.
func linked(params map[string]any) (*dialect.Result, error) {
	dst := params["_dst"].([]string)
	res := &dialect.Result{Stats: dialect.Stats{RelationshipsCreated: len(dst)}}
	for range dst {
		edge, _ := params["_edge"].(map[string]any)
		if edge == nil {
			edge = map[string]any{}
		}
		res.Rows = append(res.Rows, dialect.Row{"r": edge})
	}
	return res, nil
}

func TestHasManyCreateAndGet(t *testing.T) {
	t.Parallel()

	s := newSchema(t)
	ctx := context.Background()
	paul := s.instance(t, s.person, velograph.Props{"name": "Paul"})

	var milk map[string]any
	s.mock.ExpectExec("CREATE (n:Task $_props)\nRETURN n").WillRespond(func(params map[string]any) (*dialect.Result, error) {
		milk = params["_props"].(map[string]any)
		return echoNode(params)
	})
	s.mock.ExpectExec(linkTask).WillRespond(func(params map[string]any) (*dialect.Result, error) {
		assert.Equal(t, paul.GUID(), params["_src"])
		assert.Equal(t, []string{milk["guid"].(string)}, params["_dst"])
		assert.NotContains(t, params, "_edge")
		return linked(params)
	})
	created, err := paul.Many("tasks").Create(ctx, []velograph.Props{{"title": "Buy milk"}}, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "Buy milk", created[0].Props["title"])
	assert.NotContains(t, created[0].Props, "done")
	assert.NotEmpty(t, created[0].GUID())

	s.mock.ExpectExec(getTasks+"\nRETURN b, r").
		WithParams(map[string]any{"_src": paul.GUID()}).
		WillRespond(func(map[string]any) (*dialect.Result, error) {
			return &dialect.Result{Rows: []dialect.Row{{"b": milk, "r": map[string]any{"since": int64(2020)}}}}, nil
		})
	tasks, err := paul.Many("tasks").Get(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Props["title"])
	assert.Equal(t, velograph.Props{"since": int64(2020)}, tasks[0].RelationProps)
	assert.Same(t, s.task, tasks[0].Model())
	require.NoError(t, s.mock.ExpectationsWereMet())
}

func TestHasManyGetFilter(t *testing.T) {
	t.Parallel()

	s := newSchema(t)
	paul := s.instance(t, s.person, velograph.Props{"name": "Paul"})
	stored := []map[string]any{
		{"guid": "t1", "title": "Buy milk", "done": false},
		{"guid": "t2", "title": "Buy beer", "done": true},
		{"guid": "t3", "title": "Read a book", "done": true},
	}
	filter := predicate.Filter{"title": predicate.HasPrefix("B"), "done": true}

	// The fake evaluates the filter the way the database does.
	s.mock.ExpectExec(getTasks+"\nWHERE b.done = $a AND b.title STARTS WITH $b\nRETURN b, r").
		WithParams(map[string]any{"_src": paul.GUID(), "a": true, "b": "B"}).
		WillRespond(func(map[string]any) (*dialect.Result, error) {
			res := &dialect.Result{}
			for _, task := range stored {
				if filter.Match(task) {
					res.Rows = append(res.Rows, dialect.Row{"b": task, "r": map[string]any{}})
				}
			}
			return res, nil
		})
	tasks, err := paul.Many("tasks").Get(context.Background(), filter, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy beer", tasks[0].Props["title"])
	require.NoError(t, s.mock.ExpectationsWereMet())
}

func TestHasManyCreatePartialFailure(t *testing.T) {
	t.Parallel()

	s := newSchema(t)
	paul := s.instance(t, s.person, velograph.Props{"name": "Paul"})
	boom := errors.New("link failed")

	s.mock.ExpectExec("CREATE (n:Task $_props)\nRETURN n").WillRespond(echoNode)
	s.mock.ExpectExec(linkTask).WillRespond(linked)
	s.mock.ExpectExec("CREATE (n:Task $_props)\nRETURN n").WillRespond(echoNode)
	s.mock.ExpectExec(linkTask).WillReturnError(boom)
	created, err := paul.Many("tasks").Create(context.Background(), []velograph.Props{{"title": "Buy milk"}, {"title": "Buy beer"}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var lerr *velograph.LinkError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "tasks", lerr.Relation)
	assert.Equal(t, "Buy beer", lerr.Instance.Props["title"])
	require.Len(t, created, 1)
	assert.Equal(t, "Buy milk", created[0].Props["title"])
	require.NoError(t, s.mock.ExpectationsWereMet())
}

func TestHasManyAdd(t *testing.T) {
	t.Parallel()

	s := newSchema(t)
	ctx := context.Background()
	paul := s.instance(t, s.person, velograph.Props{"name": "Paul"})
	milk := s.instance(t, s.task, velograph.Props{"title": "Buy milk"})
	beer := s.instance(t, s.task, velograph.Props{"title": "Buy beer"})

	s.mock.ExpectExec("MATCH (a:Person {guid: $_src}), (b:Task)\nWHERE b.guid IN $_dst\nMERGE (a)-[r:created {since: $_edge.since}]->(b)\nRETURN r").
		WithParams(map[string]any{
			"_src":  paul.GUID(),
			"_dst":  []string{milk.GUID(), beer.GUID()},
			"_edge": map[string]any{"since": 2020},
		}).
		WillReturnRows(dialect.Row{"r": map[string]any{}}, dialect.Row{"r": map[string]any{}}).
		WillReturnStats(dialect.Stats{RelationshipsCreated: 1})
	n, err := paul.Many("tasks").Add(ctx, []*velograph.Instance{milk, beer}, velograph.Props{"since": 2020})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only newly created relationships are counted")

	n, err = paul.Many("tasks").Add(ctx, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = paul.Many("tasks").Add(ctx, []*velograph.Instance{paul}, nil)
	assert.True(t, velograph.IsValidationError(err))
	_, err = paul.Many("tasks").Add(ctx, []*velograph.Instance{nil}, nil)
	assert.True(t, velograph.IsValidationError(err))
	require.NoError(t, s.mock.ExpectationsWereMet())
}

func TestHasManyRemove(t *testing.T) {
	t.Parallel()

	s := newSchema(t)
	paul := s.instance(t, s.person, velograph.Props{"name": "Paul"})
	s.mock.ExpectExec(getTasks+"\nWHERE b.done = $a AND r.since < $b\nDELETE r").
		WithParams(map[string]any{"_src": paul.GUID(), "a": true, "b": 2000}).
		WillReturnStats(dialect.Stats{RelationshipsDeleted: 2})
	stats, err := paul.Many("tasks").Remove(context.Background(), predicate.Filter{"done": true}, predicate.Filter{"since": predicate.LT(2000)})
	require.NoError(t, err)
	assert.Equal(t, velograph.Stats{RelationshipsDeleted: 2}, stats)
	assert.Zero(t, stats.NodesDeleted)
	require.NoError(t, s.mock.ExpectationsWereMet())
}

func TestHasManyCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rows []dialect.Row
		want int
	}{
		{name: "Two", rows: []dialect.Row{{"count": int64(2)}}, want: 2},
		{name: "Zero", rows: []dialect.Row{{"count": int64(0)}}, want: 0},
		{name: "Empty", want: -1},
		{name: "NotInt", rows: []dialect.Row{{"count": "2"}}, want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newSchema(t)
			paul := s.instance(t, s.person, velograph.Props{"name": "Paul"})
			s.mock.ExpectExec(getTasks + "\nRETURN count(b) AS count").WillReturnRows(tt.rows...)
			n, err := paul.Many("tasks").Count(context.Background(), nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestHasManyUpdate(t *testing.T) {
	t.Parallel()

	s := newSchema(t)
	ctx := context.Background()
	paul := s.instance(t, s.person, velograph.Props{"name": "Paul"})
	s.mock.ExpectExec(getTasks+"\nWHERE b.done = $a AND r.since = $b\nSET b.done = $_u_b_done, r.checked = $_u_r_checked\nRETURN b, r").
		WithParams(map[string]any{
			"_src":         paul.GUID(),
			"a":            false,
			"b":            2020,
			"_u_b_done":    true,
			"_u_r_checked": true,
		}).
		WillReturnRows(dialect.Row{
			"b": map[string]any{"guid": "t1", "done": true},
			"r": map[string]any{"since": 2020, "checked": true},
		})
	updated, err := paul.Many("tasks").Update(ctx,
		velograph.Props{"done": true}, predicate.Filter{"done": false},
		velograph.Props{"checked": true}, predicate.Filter{"since": 2020},
	)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, true, updated[0].Props["done"])
	assert.Equal(t, true, updated[0].RelationProps["checked"])

	_, err = paul.Many("tasks").Update(ctx, nil, nil, velograph.Props{"guid": "x"}, nil)
	assert.True(t, velograph.IsValidationError(err))
	require.NoError(t, s.mock.ExpectationsWereMet())
}

func TestHasManyUpdateHooks(t *testing.T) {
	t.Parallel()

	s := newSchema(t)
	ctx := context.Background()
	paul := s.instance(t, s.person, velograph.Props{"name": "Paul"})
	var after []string
	s.task.Mixin(mixin.Time{}, mixin.SoftDelete{}).Use(velograph.Hooks{
		AfterUpdate: func(_ context.Context, i *velograph.Instance) error {
			after = append(after, i.GUID())
			return nil
		},
	})
	s.mock.ExpectExec(getTasks+"\nWHERE b.deleted = $a AND b.title = $b\nSET b.done = $_u_b_done, b.updated_at = $_u_b_updated_at\nRETURN b, r").
		WithParams(map[string]any{
			"_src":            paul.GUID(),
			"a":               false,
			"b":               "Buy milk",
			"_u_b_done":       true,
			"_u_b_updated_at": dialecttest.AnyValue,
		}).
		WillReturnRows(dialect.Row{"b": map[string]any{"guid": "t1", "done": true}, "r": map[string]any{}})

	updated, err := paul.Many("tasks").Update(ctx,
		velograph.Props{"done": true, mixin.CreatedAt: "rewritten"}, predicate.Filter{"title": "Buy milk"},
		nil, nil,
	)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, []string{"t1"}, after)
	require.NoError(t, s.mock.ExpectationsWereMet())

	s.mock.ExpectExec(getTasks+"\nWHERE b.deleted = $a\nSET b.deleted_at = $_u_b_deleted_at, b.updated_at = $_u_b_updated_at\nRETURN b, r").
		WithParams(map[string]any{
			"_src":            paul.GUID(),
			"a":               true,
			"_u_b_deleted_at": dialecttest.AnyValue,
			"_u_b_updated_at": dialecttest.AnyValue,
		})
	_, err = paul.Many("tasks").Update(ctx,
		velograph.Props{mixin.DeletedAt: "now"}, predicate.Filter{mixin.Deleted: true},
		nil, nil,
	)
	require.NoError(t, err)
	require.NoError(t, s.mock.ExpectationsWereMet())
}

func TestAccessorErrors(t *testing.T) {
	t.Parallel()

	s := newSchema(t)
	ctx := context.Background()
	paul := s.instance(t, s.person, velograph.Props{"name": "Paul"})

	_, err := paul.Many("friends").Get(ctx, nil, nil)
	assert.True(t, velograph.IsValidationError(err))
	assert.Contains(t, err.Error(), "has no relation friends")

	_, err = paul.Many("supervisor").Count(ctx, nil, nil)
	assert.True(t, velograph.IsValidationError(err))
	assert.Contains(t, err.Error(), "is one, not many")

	_, err = paul.One("tasks").Get(ctx)
	assert.True(t, velograph.IsValidationError(err))

	orphan := velograph.Props{"name": "Nobody"}
	s.mock.ExpectExec("CREATE (n:Person $_props)\nRETURN n").WillReturnRows(dialect.Row{"n": map[string]any(orphan)})
	nobody, err := s.person.Create(ctx, nil)
	require.NoError(t, err)
	_, err = nobody.Many("tasks").Get(ctx, nil, nil)
	assert.True(t, velograph.IsValidationError(err), "instance without guid")
	assert.Len(t, s.mock.Calls(), 2)
}

func TestDirections(t *testing.T) {
	t.Parallel()

	s := newSchema(t)
	ctx := context.Background()
	milk := s.instance(t, s.task, velograph.Props{"title": "Buy milk"})
	knows, err := s.person.HasMany("acquaintances", velograph.Edge("knows", velograph.Direct(s.person), velograph.Direct(s.person)), velograph.Both)
	require.NoError(t, err)
	assert.Equal(t, velograph.Both, knows.Direction())
	paul := s.instance(t, s.person, velograph.Props{"name": "Paul"})

	s.mock.ExpectExec("MATCH (a:Task {guid: $_src})<-[r:created]-(b:Person)\nRETURN b, r").
		WillReturnRows(dialect.Row{"b": map[string]any{"guid": "p1", "name": "Paul"}, "r": map[string]any{}})
	creator, err := milk.One("creator").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Paul", creator.Props["name"])

	s.mock.ExpectExec("MATCH (a:Person {guid: $_src})-[r:knows]-(b:Person)\nRETURN b, r")
	_, err = paul.Many("acquaintances").Get(ctx, nil, nil)
	require.NoError(t, err)

	s.mock.ExpectExec("MATCH (a:Task {guid: $_src}), (b:Person)\nWHERE b.guid IN $_dst\nMERGE (a)<-[r:created]-(b)\nRETURN r").
		WillReturnStats(dialect.Stats{RelationshipsCreated: 1})
	ok, err := milk.One("creator").Add(ctx, paul, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, s.mock.ExpectationsWereMet())
}
