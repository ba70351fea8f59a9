// Package compiler translates a query IR into an ordered sequence of
// clause-application operations against an abstract query-builder
// capability. It never executes I/O itself.
package compiler

import (
	"github.com/rowguard/rowguard/pkg/queryir"
)

// OpKind identifies one kind of clause application.
type OpKind string

const (
	OpWith                 OpKind = "with"
	OpWithRecursive        OpKind = "withRecursive"
	OpSelectWindow         OpKind = "selectWindow"
	OpSelectAdvancedWindow OpKind = "selectAdvancedWindow"
	OpWhereEq              OpKind = "whereEq"
	OpSelectRaw            OpKind = "selectRaw"
	OpSelectAggregate      OpKind = "selectAggregate"
	OpWhereRaw             OpKind = "whereRaw"
	OpWhereBetween         OpKind = "whereBetween"
	OpWhereNull            OpKind = "whereNull"
	OpWhereNotNull         OpKind = "whereNotNull"
	OpWhereIn              OpKind = "whereIn"
	OpWhereNotIn           OpKind = "whereNotIn"
	OpWhereExists          OpKind = "whereExists"
	OpWhereGroup           OpKind = "whereGroup"
	OpGroupBy              OpKind = "groupBy"
	OpHaving               OpKind = "having"
	OpOrderBy              OpKind = "orderBy"
	OpLimit                OpKind = "limit"
	OpOffset               OpKind = "offset"
)

// Operation is one clause application. Only the fields relevant to its Kind
// are populated; the applier in the datastore layer interprets them.
type Operation struct {
	Kind OpKind

	// Simple clause payloads.
	Field     string
	Fields    []string
	Operator  string
	Value     any
	Values    []any
	Boolean   string
	Direction string
	Nulls     string
	Count     int // limit/offset

	// Raw fragments (window projections, raw expressions, exists
	// predicates) with positional bindings.
	SQL  string
	Args []any

	// Grouped boolean tree.
	Group *queryir.ConditionGroup

	// CTE payloads.
	Name      string
	Columns   []string
	Subplan   *Plan
	Initial   *Plan
	Recursive *Plan
	UnionAll  bool
}

// Plan is the compiled form of one query: the operations in the exact order
// they must be applied to the builder.
type Plan struct {
	Ops []Operation
}

// Kinds returns the operation kinds in order, primarily for tests and
// debug logging.
func (p *Plan) Kinds() []OpKind {
	kinds := make([]OpKind, 0, len(p.Ops))
	for _, op := range p.Ops {
		kinds = append(kinds, op.Kind)
	}
	return kinds
}
