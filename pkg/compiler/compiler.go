package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rowguard/rowguard/internal/logging"
	"github.com/rowguard/rowguard/pkg/queryir"
)

var aggregateTypes = map[string]struct{}{
	"count": {},
	"sum":   {},
	"avg":   {},
	"min":   {},
	"max":   {},
}

var comparisonOperators = map[string]struct{}{
	"=": {}, "!=": {}, "<>": {}, ">": {}, ">=": {}, "<": {}, "<=": {},
	"like": {}, "not like": {}, "ilike": {},
}

func checkOperator(op string) error {
	if _, ok := comparisonOperators[strings.ToLower(op)]; !ok {
		return NewUnsupportedFeatureErr("operator", op)
	}
	return nil
}

// Compile turns a query IR into the ordered operation sequence. The clause
// order is fixed: later steps depend on earlier projections, so it must be
// reproduced exactly. Unknown aggregate, window, frame, and operator types
// are hard errors.
func Compile(q *queryir.Query) (*Plan, error) {
	plan := &Plan{}

	if err := compileCTEs(plan, q); err != nil {
		return nil, err
	}
	if err := compileWindows(plan, q); err != nil {
		return nil, err
	}

	// Base equality filter, iterated in sorted field order so compilation
	// is deterministic.
	for _, field := range sortedKeys(q.Filter) {
		plan.Ops = append(plan.Ops, Operation{Kind: OpWhereEq, Field: field, Value: q.Filter[field]})
	}

	for _, expr := range q.RawExpressions {
		plan.Ops = append(plan.Ops, Operation{Kind: OpSelectRaw, SQL: expr.Expression, Args: expr.Bindings})
	}

	for _, agg := range q.Aggregates {
		op, err := compileAggregate(agg)
		if err != nil {
			return nil, err
		}
		plan.Ops = append(plan.Ops, op)
	}

	for _, cond := range q.WhereRaw {
		if err := checkOperator(cond.Operator); err != nil {
			return nil, err
		}
		plan.Ops = append(plan.Ops, Operation{
			Kind:     OpWhereRaw,
			Field:    cond.Field,
			Operator: cond.Operator,
			Value:    cond.Value,
			Boolean:  cond.Boolean,
		})
	}

	for _, between := range q.WhereBetween {
		if len(between.Values) != 2 {
			return nil, fmt.Errorf("whereBetween on %q requires exactly two values, got %d", between.Field, len(between.Values))
		}
		plan.Ops = append(plan.Ops, Operation{Kind: OpWhereBetween, Field: between.Field, Values: between.Values})
	}

	for _, field := range q.WhereNull {
		plan.Ops = append(plan.Ops, Operation{Kind: OpWhereNull, Field: field})
	}
	for _, field := range q.WhereNotNull {
		plan.Ops = append(plan.Ops, Operation{Kind: OpWhereNotNull, Field: field})
	}

	for _, field := range sortedKeys(q.WhereIn) {
		plan.Ops = append(plan.Ops, Operation{Kind: OpWhereIn, Field: field, Values: q.WhereIn[field]})
	}
	for _, field := range sortedKeys(q.WhereNotIn) {
		plan.Ops = append(plan.Ops, Operation{Kind: OpWhereNotIn, Field: field, Values: q.WhereNotIn[field]})
	}

	for _, exists := range q.WhereExists {
		plan.Ops = append(plan.Ops, Operation{Kind: OpWhereExists, SQL: exists.Query, Args: exists.Bindings})
	}

	for i := range q.WhereGroups {
		group := q.WhereGroups[i]
		if err := checkGroupOperators(&group); err != nil {
			return nil, err
		}
		plan.Ops = append(plan.Ops, Operation{Kind: OpWhereGroup, Group: &group})
	}

	if len(q.GroupBy) > 0 {
		plan.Ops = append(plan.Ops, Operation{Kind: OpGroupBy, Fields: q.GroupBy})
	}

	for _, having := range q.Having {
		if err := checkOperator(having.Operator); err != nil {
			return nil, err
		}
		plan.Ops = append(plan.Ops, Operation{
			Kind:     OpHaving,
			Field:    having.Field,
			Operator: having.Operator,
			Value:    having.Value,
		})
	}

	for _, order := range q.OrderBy {
		plan.Ops = append(plan.Ops, Operation{
			Kind:      OpOrderBy,
			Field:     order.Field,
			Direction: order.Direction,
			Nulls:     order.Nulls,
		})
	}

	plan.Ops = append(plan.Ops,
		Operation{Kind: OpLimit, Count: q.EffectiveLimit()},
		Operation{Kind: OpOffset, Count: q.EffectiveOffset()},
	)

	return plan, nil
}

func compileCTEs(plan *Plan, q *queryir.Query) error {
	names := make(map[string]struct{}, len(q.CTEs)+len(q.RecursiveCTEs))

	for _, cte := range q.CTEs {
		if _, dup := names[cte.Name]; dup {
			return NewDuplicateNameErr("cte", cte.Name)
		}
		names[cte.Name] = struct{}{}

		if cte.Query == nil {
			return fmt.Errorf("cte %q is missing its query", cte.Name)
		}
		sub, err := Compile(cte.Query)
		if err != nil {
			return err
		}
		plan.Ops = append(plan.Ops, Operation{
			Kind:    OpWith,
			Name:    cte.Name,
			Columns: cte.Columns,
			Subplan: sub,
		})
	}

	for _, cte := range q.RecursiveCTEs {
		if _, dup := names[cte.Name]; dup {
			return NewDuplicateNameErr("cte", cte.Name)
		}
		names[cte.Name] = struct{}{}

		if cte.Initial == nil || cte.Recursive == nil {
			return fmt.Errorf("recursive cte %q requires both an initial and a recursive query", cte.Name)
		}
		initial, err := Compile(cte.Initial)
		if err != nil {
			return err
		}
		recursive, err := Compile(cte.Recursive)
		if err != nil {
			return err
		}
		if !referencesName(cte.Recursive, cte.Name) {
			logging.Debug().Str("cte", cte.Name).Msg("recursive branch never references the cte by name")
		}
		plan.Ops = append(plan.Ops, Operation{
			Kind:      OpWithRecursive,
			Name:      cte.Name,
			Columns:   cte.Columns,
			Initial:   initial,
			Recursive: recursive,
			UnionAll:  cte.UnionAll,
		})
	}
	return nil
}

func compileWindows(plan *Plan, q *queryir.Query) error {
	aliases := make(map[string]struct{}, len(q.WindowFunctions)+len(q.AdvancedWindows))

	for _, w := range q.WindowFunctions {
		if _, dup := aliases[w.Alias]; dup {
			return NewDuplicateNameErr("window alias", w.Alias)
		}
		aliases[w.Alias] = struct{}{}

		fragment, err := compileWindow(w)
		if err != nil {
			return err
		}
		plan.Ops = append(plan.Ops, Operation{Kind: OpSelectWindow, Name: w.Alias, SQL: fragment})
	}

	for _, w := range q.AdvancedWindows {
		if _, dup := aliases[w.Alias]; dup {
			return NewDuplicateNameErr("window alias", w.Alias)
		}
		aliases[w.Alias] = struct{}{}

		fragment, args, err := compileAdvancedWindow(w)
		if err != nil {
			return err
		}
		plan.Ops = append(plan.Ops, Operation{Kind: OpSelectAdvancedWindow, Name: w.Alias, SQL: fragment, Args: args})
	}
	return nil
}

func compileAggregate(agg queryir.Aggregate) (Operation, error) {
	aggType := strings.ToLower(agg.Type)
	if _, ok := aggregateTypes[aggType]; !ok {
		return Operation{}, NewUnsupportedFeatureErr("aggregate", agg.Type)
	}
	field := agg.Field
	if field == "" {
		field = "*"
	}
	return Operation{
		Kind: OpSelectAggregate,
		Name: agg.Alias,
		SQL:  fmt.Sprintf("%s(%s) AS %s", strings.ToUpper(aggType), field, agg.Alias),
	}, nil
}

func checkGroupOperators(group *queryir.ConditionGroup) error {
	for _, clause := range group.Clauses {
		if err := checkOperator(clause.Operator); err != nil {
			return err
		}
	}
	for i := range group.Groups {
		if err := checkGroupOperators(&group.Groups[i]); err != nil {
			return err
		}
	}
	return nil
}

// referencesName reports whether any textual fragment of the query mentions
// the given CTE name. This backs a debug log only, never an error.
func referencesName(q *queryir.Query, name string) bool {
	if q == nil {
		return false
	}
	for _, expr := range q.RawExpressions {
		if strings.Contains(expr.Expression, name) {
			return true
		}
	}
	for _, exists := range q.WhereExists {
		if strings.Contains(exists.Query, name) {
			return true
		}
	}
	for field := range q.Filter {
		if strings.Contains(field, name) {
			return true
		}
	}
	for _, cond := range q.WhereRaw {
		if strings.Contains(cond.Field, name) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
