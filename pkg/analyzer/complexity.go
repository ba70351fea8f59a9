package analyzer

import (
	"github.com/rowguard/rowguard/pkg/queryir"
)

// Clause weights for the complexity score. The formula is part of the
// contract: callers gate on exact thresholds, so the weights are fixed.
const (
	weightWhereRaw     = 1.0
	weightWhereBetween = 1.5
	weightWhereIn      = 2.0
	weightWhereExists  = 3.0
	weightGroupBy      = 2.0
	weightHaving       = 2.0
	weightWindow       = 3.0
	weightGroupClause  = 1.5
)

// Complexity computes the weighted cost estimate for a query. The score is
// exactly reproducible for a given IR.
func Complexity(q *queryir.Query) float64 {
	score := weightWhereRaw * float64(len(q.WhereRaw))
	score += weightWhereBetween * float64(len(q.WhereBetween))
	score += weightWhereIn * float64(len(q.WhereIn))
	score += weightWhereExists * float64(len(q.WhereExists))
	score += weightGroupBy * float64(len(q.GroupBy))
	score += weightHaving * float64(len(q.Having))
	score += weightWindow * float64(len(q.WindowFunctions))

	for i := range q.WhereGroups {
		score += groupComplexity(&q.WhereGroups[i])
	}
	return score
}

// groupComplexity contributes the weight of a group's direct clauses plus
// the recursive contribution of its sub-groups.
func groupComplexity(group *queryir.ConditionGroup) float64 {
	score := weightGroupClause * float64(len(group.Clauses))
	for i := range group.Groups {
		score += groupComplexity(&group.Groups[i])
	}
	return score
}
