// Package queryir defines the declarative query intermediate representation
// accepted from request handlers, along with the typed row values used by
// row-level authorization. The JSON field names form the wire contract and
// must not change.
package queryir

const (
	// DefaultLimit is applied when a query carries no limit or an invalid one.
	DefaultLimit = 10

	// DefaultOffset is applied when a query carries no offset or an invalid one.
	DefaultOffset = 0
)

// Query is the intermediate representation of a single requested query.
// All fields are optional; the zero value is a valid "select everything"
// query. A Query is immutable once handed to the compiler.
type Query struct {
	Filter          map[string]any     `json:"filter,omitempty"`
	WhereRaw        []RawCondition     `json:"whereRaw,omitempty"`
	WhereBetween    []BetweenCondition `json:"whereBetween,omitempty"`
	WhereNull       []string           `json:"whereNull,omitempty"`
	WhereNotNull    []string           `json:"whereNotNull,omitempty"`
	WhereIn         map[string][]any   `json:"whereIn,omitempty"`
	WhereNotIn      map[string][]any   `json:"whereNotIn,omitempty"`
	WhereExists     []ExistsCondition  `json:"whereExists,omitempty"`
	WhereGroups     []ConditionGroup   `json:"whereGroups,omitempty"`
	GroupBy         []string           `json:"groupBy,omitempty"`
	Having          []HavingCondition  `json:"having,omitempty"`
	OrderBy         []Ordering         `json:"orderBy,omitempty"`
	Aggregates      []Aggregate        `json:"aggregates,omitempty"`
	RawExpressions  []RawExpression    `json:"rawExpressions,omitempty"`
	Limit           *int               `json:"limit,omitempty"`
	Offset          *int               `json:"offset,omitempty"`
	WindowFunctions []WindowFunction   `json:"windowFunctions,omitempty"`
	CTEs            []CTE              `json:"ctes,omitempty"`
	RecursiveCTEs   []RecursiveCTE     `json:"recursiveCtes,omitempty"`
	AdvancedWindows []AdvancedWindow   `json:"advancedWindows,omitempty"`
	Transforms      map[string]any     `json:"transforms,omitempty"`
	Cache           *CacheConfig       `json:"cache,omitempty"`
	Validation      *ValidationRules   `json:"validation,omitempty"`
}

// EffectiveLimit returns the limit to apply, falling back to DefaultLimit
// when the requested limit is absent or not a positive integer.
func (q *Query) EffectiveLimit() int {
	if q.Limit == nil || *q.Limit <= 0 {
		return DefaultLimit
	}
	return *q.Limit
}

// EffectiveOffset returns the offset to apply, falling back to DefaultOffset
// when the requested offset is absent or negative.
func (q *Query) EffectiveOffset() int {
	if q.Offset == nil || *q.Offset < 0 {
		return DefaultOffset
	}
	return *q.Offset
}

// RawCondition is a single comparison in whereRaw: field, operator, value,
// and the boolean connective joining it to the preceding clause.
type RawCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
	Boolean  string `json:"boolean,omitempty"` // "and" (default) or "or"
}

// BetweenCondition constrains a field to an inclusive [low, high] range.
// Values always holds exactly two entries on the wire.
type BetweenCondition struct {
	Field  string `json:"field"`
	Values []any  `json:"values"`
}

// ExistsCondition is a raw EXISTS predicate with positional bindings.
type ExistsCondition struct {
	Query    string `json:"query"`
	Bindings []any  `json:"bindings,omitempty"`
}

// ConditionGroup is a parenthesized boolean tree of clauses. Type is the
// group's connective ("and"/"or") used when folding the group into its
// parent; each clause carries its own connective relative to the previous
// clause in the same group.
type ConditionGroup struct {
	Type    string           `json:"type,omitempty"` // "and" (default) or "or"
	Clauses []RawCondition   `json:"clauses,omitempty"`
	Groups  []ConditionGroup `json:"groups,omitempty"`
}

// HavingCondition is a post-aggregation comparison.
type HavingCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Ordering is a single orderBy entry. Nulls, when set, is "first" or "last".
type Ordering struct {
	Field     string `json:"field"`
	Direction string `json:"direction,omitempty"` // "asc" (default) or "desc"
	Nulls     string `json:"nulls,omitempty"`
}

// Aggregate projects an aggregate function over a column.
type Aggregate struct {
	Type  string `json:"type"` // count, sum, avg, min, max
	Field string `json:"field,omitempty"`
	Alias string `json:"alias"`
}

// RawExpression injects a raw SELECT fragment with positional bindings.
type RawExpression struct {
	Expression string `json:"expression"`
	Bindings   []any  `json:"bindings,omitempty"`
}

// CacheConfig controls result caching for one query. Condition, when set,
// decides per-query whether the result is cacheable; it is never part of
// the wire shape.
type CacheConfig struct {
	TTLSeconds int      `json:"ttl"`
	Key        string   `json:"key,omitempty"`
	Tags       []string `json:"tags,omitempty"`

	Condition func(*Query) bool `json:"-"`
}

// ValidationRules are the static constraints checked by the analyzer before
// a query is compiled.
type ValidationRules struct {
	MaxLimit         *int     `json:"maxLimit,omitempty"`
	RequiredFields   []string `json:"requiredFields,omitempty"`
	DisallowedFields []string `json:"disallowedFields,omitempty"`
	MaxComplexity    *float64 `json:"maxComplexity,omitempty"`
}
