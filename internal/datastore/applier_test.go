package datastore

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/require"

	"github.com/rowguard/rowguard/pkg/compiler"
	"github.com/rowguard/rowguard/pkg/queryir"
)

func intPtr(v int) *int { return &v }

func render(t *testing.T, table string, placeholder sq.PlaceholderFormat, q *queryir.Query) (string, []any) {
	t.Helper()
	plan, err := compiler.Compile(q)
	require.NoError(t, err)

	builder, err := NewQueryApplier(table, placeholder).Apply(plan)
	require.NoError(t, err)

	sql, args, err := builder.ToSql()
	require.NoError(t, err)
	return sql, args
}

func TestApplierBasicSelect(t *testing.T) {
	sql, args := render(t, "users", sq.Question, &queryir.Query{
		Filter: map[string]any{"status": "active"},
	})

	require.Equal(t, "SELECT * FROM users WHERE status = ? LIMIT 10 OFFSET 0", sql)
	require.Equal(t, []any{"active"}, args)
}

func TestApplierDollarPlaceholders(t *testing.T) {
	sql, args := render(t, "users", sq.Dollar, &queryir.Query{
		Filter: map[string]any{"status": "active"},
		Limit:  intPtr(5),
	})

	require.Equal(t, "SELECT * FROM users WHERE status = $1 LIMIT 5 OFFSET 0", sql)
	require.Equal(t, []any{"active"}, args)
}

func TestApplierWhereShapes(t *testing.T) {
	sql, args := render(t, "users", sq.Question, &queryir.Query{
		WhereBetween: []queryir.BetweenCondition{{Field: "score", Values: []any{10, 20}}},
		WhereNull:    []string{"deleted_at"},
		WhereNotNull: []string{"email"},
		WhereIn:      map[string][]any{"region": {"us", "eu"}},
		WhereNotIn:   map[string][]any{"plan": {"trial"}},
	})

	require.Equal(t,
		"SELECT * FROM users WHERE score BETWEEN ? AND ? AND deleted_at IS NULL AND email IS NOT NULL "+
			"AND region IN (?,?) AND plan NOT IN (?) LIMIT 10 OFFSET 0",
		sql)
	require.Equal(t, []any{10, 20, "us", "eu", "trial"}, args)
}

func TestApplierRawConditionsFoldByBoolean(t *testing.T) {
	sql, args := render(t, "users", sq.Question, &queryir.Query{
		WhereRaw: []queryir.RawCondition{
			{Field: "age", Operator: ">", Value: 21},
			{Field: "vip", Operator: "=", Value: true, Boolean: "or"},
			{Field: "banned", Operator: "=", Value: false},
		},
	})

	require.Equal(t, "SELECT * FROM users WHERE ((age > ? OR vip = ?) AND banned = ?) LIMIT 10 OFFSET 0", sql)
	require.Equal(t, []any{21, true, false}, args)
}

func TestApplierConditionGroups(t *testing.T) {
	sql, args := render(t, "users", sq.Question, &queryir.Query{
		WhereGroups: []queryir.ConditionGroup{
			{
				Type: "or",
				Clauses: []queryir.RawCondition{
					{Field: "a", Operator: "=", Value: 1},
					{Field: "b", Operator: "=", Value: 2, Boolean: "or"},
				},
			},
		},
	})

	require.Equal(t, "SELECT * FROM users WHERE (a = ? OR b = ?) LIMIT 10 OFFSET 0", sql)
	require.Equal(t, []any{1, 2}, args)
}

func TestApplierNestedGroups(t *testing.T) {
	sql, args := render(t, "users", sq.Question, &queryir.Query{
		WhereGroups: []queryir.ConditionGroup{
			{
				Clauses: []queryir.RawCondition{{Field: "a", Operator: "=", Value: 1}},
				Groups: []queryir.ConditionGroup{
					{
						Type: "or",
						Clauses: []queryir.RawCondition{
							{Field: "b", Operator: "=", Value: 2},
							{Field: "c", Operator: "=", Value: 3, Boolean: "or"},
						},
					},
				},
			},
		},
	})

	require.Contains(t, sql, "a = ?")
	require.Contains(t, sql, "OR ((b = ? OR c = ?))")
	require.Equal(t, []any{1, 2, 3}, args)
}

func TestApplierExists(t *testing.T) {
	sql, args := render(t, "users", sq.Question, &queryir.Query{
		WhereExists: []queryir.ExistsCondition{
			{Query: "SELECT 1 FROM orders WHERE orders.user_id = users.id AND total > ?", Bindings: []any{100}},
		},
	})

	require.Equal(t,
		"SELECT * FROM users WHERE EXISTS (SELECT 1 FROM orders WHERE orders.user_id = users.id AND total > ?) LIMIT 10 OFFSET 0",
		sql)
	require.Equal(t, []any{100}, args)
}

func TestApplierGroupingAndOrdering(t *testing.T) {
	sql, args := render(t, "orders", sq.Question, &queryir.Query{
		GroupBy: []string{"region"},
		Having:  []queryir.HavingCondition{{Field: "count", Operator: ">", Value: 5}},
		OrderBy: []queryir.Ordering{{Field: "created_at", Direction: "desc", Nulls: "last"}},
	})

	require.Equal(t,
		"SELECT * FROM orders GROUP BY region HAVING count > ? ORDER BY created_at desc NULLS LAST LIMIT 10 OFFSET 0",
		sql)
	require.Equal(t, []any{5}, args)
}

func TestApplierProjectionsSuppressStar(t *testing.T) {
	sql, _ := render(t, "orders", sq.Question, &queryir.Query{
		Aggregates:      []queryir.Aggregate{{Type: "count", Field: "id", Alias: "total"}},
		WindowFunctions: []queryir.WindowFunction{{Type: "row_number", Alias: "rn"}},
	})

	require.Equal(t, "SELECT ROW_NUMBER() OVER () AS rn, COUNT(id) AS total FROM orders LIMIT 10 OFFSET 0", sql)
}

func TestApplierCTEPrefix(t *testing.T) {
	sql, args := render(t, "users", sq.Question, &queryir.Query{
		Filter: map[string]any{"status": "active"},
		CTEs: []queryir.CTE{
			{Name: "recent", Query: &queryir.Query{Filter: map[string]any{"fresh": true}}},
		},
	})

	require.Equal(t,
		"WITH recent AS (SELECT * FROM users WHERE fresh = ? LIMIT 10 OFFSET 0) "+
			"SELECT * FROM users WHERE status = ? LIMIT 10 OFFSET 0",
		sql)
	require.Equal(t, []any{true, "active"}, args)
}

func TestApplierRecursiveCTEPrefix(t *testing.T) {
	sql, args := render(t, "nodes", sq.Dollar, &queryir.Query{
		RecursiveCTEs: []queryir.RecursiveCTE{
			{
				Name:      "tree",
				Columns:   []string{"id", "parent_id"},
				Initial:   &queryir.Query{Filter: map[string]any{"parent_id": nil}},
				Recursive: &queryir.Query{WhereRaw: []queryir.RawCondition{{Field: "parent_id", Operator: "=", Value: 7}}},
				UnionAll:  true,
			},
		},
	})

	require.Equal(t,
		"WITH RECURSIVE tree (id, parent_id) AS ("+
			"SELECT * FROM nodes WHERE parent_id IS NULL LIMIT 10 OFFSET 0 "+
			"UNION ALL "+
			"SELECT * FROM nodes WHERE parent_id = $1 LIMIT 10 OFFSET 0) "+
			"SELECT * FROM nodes LIMIT 10 OFFSET 0",
		sql)
	require.Equal(t, []any{7}, args)
}

func TestApplierMixedCTEsShareOnePrefix(t *testing.T) {
	sql, _ := render(t, "nodes", sq.Question, &queryir.Query{
		CTEs: []queryir.CTE{
			{Name: "a", Query: &queryir.Query{}},
		},
		RecursiveCTEs: []queryir.RecursiveCTE{
			{Name: "b", Initial: &queryir.Query{}, Recursive: &queryir.Query{}},
		},
	})

	require.Contains(t, sql, "WITH RECURSIVE a AS (")
	require.Contains(t, sql, ", b AS (")
	// UNION without ALL when unionAll is unset.
	require.Contains(t, sql, "UNION SELECT")
}
