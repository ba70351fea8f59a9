// Package datastore translates compiled plans into SQL via squirrel. It is
// the only layer that renders SQL text; the compiler above it deals purely
// in abstract operations.
package datastore

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/ccoveille/go-safecast/v2"

	"github.com/rowguard/rowguard/pkg/compiler"
	"github.com/rowguard/rowguard/pkg/queryir"
)

// QueryApplier applies a compiled plan's operations, in order, to a squirrel
// SELECT builder.
type QueryApplier struct {
	table       string
	placeholder sq.PlaceholderFormat
}

// NewQueryApplier returns an applier building queries against the named
// table with the given placeholder format.
func NewQueryApplier(table string, placeholder sq.PlaceholderFormat) QueryApplier {
	return QueryApplier{table: table, placeholder: placeholder}
}

// Apply builds the SELECT for the plan. CTE subqueries run against the same
// base table; their rendered SQL is gathered into a single WITH prefix.
func (qa QueryApplier) Apply(plan *compiler.Plan) (sq.SelectBuilder, error) {
	builder := sq.Select().From(qa.table).PlaceholderFormat(qa.placeholder)

	projected := false
	var ctes []string
	var cteArgs []any
	recursive := false

	var rawChain sq.Sqlizer

	for _, op := range plan.Ops {
		switch op.Kind {
		case compiler.OpWith:
			fragment, args, err := qa.renderCTE(op)
			if err != nil {
				return builder, err
			}
			ctes = append(ctes, fragment)
			cteArgs = append(cteArgs, args...)

		case compiler.OpWithRecursive:
			fragment, args, err := qa.renderRecursiveCTE(op)
			if err != nil {
				return builder, err
			}
			ctes = append(ctes, fragment)
			cteArgs = append(cteArgs, args...)
			recursive = true

		case compiler.OpSelectWindow, compiler.OpSelectAdvancedWindow, compiler.OpSelectRaw:
			builder = builder.Column(sq.Expr(op.SQL, op.Args...))
			projected = true

		case compiler.OpSelectAggregate:
			builder = builder.Column(op.SQL)
			projected = true

		case compiler.OpWhereEq:
			builder = builder.Where(sq.Eq{op.Field: op.Value})

		case compiler.OpWhereRaw:
			clause := sq.Expr(fmt.Sprintf("%s %s ?", op.Field, op.Operator), op.Value)
			if rawChain == nil {
				rawChain = clause
			} else if strings.EqualFold(op.Boolean, "or") {
				rawChain = sq.Or{rawChain, clause}
			} else {
				rawChain = sq.And{rawChain, clause}
			}

		case compiler.OpWhereBetween:
			builder = builder.Where(sq.Expr(fmt.Sprintf("%s BETWEEN ? AND ?", op.Field), op.Values[0], op.Values[1]))

		case compiler.OpWhereNull:
			builder = builder.Where(sq.Eq{op.Field: nil})

		case compiler.OpWhereNotNull:
			builder = builder.Where(sq.NotEq{op.Field: nil})

		case compiler.OpWhereIn:
			builder = builder.Where(sq.Eq{op.Field: op.Values})

		case compiler.OpWhereNotIn:
			builder = builder.Where(sq.NotEq{op.Field: op.Values})

		case compiler.OpWhereExists:
			builder = builder.Where(sq.Expr("EXISTS ("+op.SQL+")", op.Args...))

		case compiler.OpWhereGroup:
			expr := groupSqlizer(op.Group)
			if expr != nil {
				builder = builder.Where(expr)
			}

		case compiler.OpGroupBy:
			builder = builder.GroupBy(op.Fields...)

		case compiler.OpHaving:
			builder = builder.Having(sq.Expr(fmt.Sprintf("%s %s ?", op.Field, op.Operator), op.Value))

		case compiler.OpOrderBy:
			builder = builder.OrderBy(orderExpression(op))

		case compiler.OpLimit:
			limit, err := safecast.Convert[uint64](op.Count)
			if err != nil {
				return builder, fmt.Errorf("invalid limit %d: %w", op.Count, err)
			}
			builder = builder.Limit(limit)

		case compiler.OpOffset:
			offset, err := safecast.Convert[uint64](op.Count)
			if err != nil {
				return builder, fmt.Errorf("invalid offset %d: %w", op.Count, err)
			}
			builder = builder.Offset(offset)

		default:
			return builder, fmt.Errorf("unknown operation kind: %q", op.Kind)
		}
	}

	if rawChain != nil {
		builder = builder.Where(rawChain)
	}
	if !projected {
		builder = builder.Column("*")
	}
	if len(ctes) > 0 {
		prefix := "WITH "
		if recursive {
			prefix = "WITH RECURSIVE "
		}
		builder = builder.PrefixExpr(sq.Expr(prefix+strings.Join(ctes, ", "), cteArgs...))
	}
	return builder, nil
}

// renderSubplan renders a nested plan's SELECT with bare ? placeholders; the
// outer builder rewrites placeholders once at the end.
func (qa QueryApplier) renderSubplan(plan *compiler.Plan) (string, []any, error) {
	sub := NewQueryApplier(qa.table, sq.Question)
	builder, err := sub.Apply(plan)
	if err != nil {
		return "", nil, err
	}
	return builder.ToSql()
}

func (qa QueryApplier) renderCTE(op compiler.Operation) (string, []any, error) {
	body, args, err := qa.renderSubplan(op.Subplan)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s%s AS (%s)", op.Name, columnList(op.Columns), body), args, nil
}

// renderRecursiveCTE assembles the initial branch unioned with the recursive
// branch; the union operator itself is plain SQL handled by the database.
func (qa QueryApplier) renderRecursiveCTE(op compiler.Operation) (string, []any, error) {
	initial, initialArgs, err := qa.renderSubplan(op.Initial)
	if err != nil {
		return "", nil, err
	}
	recursive, recursiveArgs, err := qa.renderSubplan(op.Recursive)
	if err != nil {
		return "", nil, err
	}
	union := "UNION"
	if op.UnionAll {
		union = "UNION ALL"
	}
	args := append(initialArgs, recursiveArgs...)
	return fmt.Sprintf("%s%s AS (%s %s %s)", op.Name, columnList(op.Columns), initial, union, recursive), args, nil
}

func columnList(columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	return " (" + strings.Join(columns, ", ") + ")"
}

func orderExpression(op compiler.Operation) string {
	expr := op.Field
	if op.Direction != "" {
		expr += " " + op.Direction
	}
	switch strings.ToLower(op.Nulls) {
	case "first":
		expr += " NULLS FIRST"
	case "last":
		expr += " NULLS LAST"
	}
	return expr
}

// groupSqlizer folds a condition group into a squirrel expression. Clauses
// chain left-to-right, each honoring its own boolean tag; the first clause
// starts the chain unconditionally. Sub-groups fold into the chain using the
// sub-group's own type.
func groupSqlizer(group *queryir.ConditionGroup) sq.Sqlizer {
	if group == nil {
		return nil
	}

	var chain sq.Sqlizer
	combine := func(expr sq.Sqlizer, or bool) {
		switch {
		case chain == nil:
			chain = expr
		case or:
			chain = sq.Or{chain, expr}
		default:
			chain = sq.And{chain, expr}
		}
	}

	for _, clause := range group.Clauses {
		expr := sq.Expr(fmt.Sprintf("%s %s ?", clause.Field, clause.Operator), clause.Value)
		combine(expr, strings.EqualFold(clause.Boolean, "or"))
	}
	for i := range group.Groups {
		sub := groupSqlizer(&group.Groups[i])
		if sub == nil {
			continue
		}
		combine(parens{sub}, strings.EqualFold(group.Groups[i].Type, "or"))
	}
	return chain
}

// parens wraps a sqlizer in parentheses so nested groups keep their
// precedence when rendered.
type parens struct {
	inner sq.Sqlizer
}

func (p parens) ToSql() (string, []any, error) {
	sql, args, err := p.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "(" + sql + ")", args, nil
}
