package queryir

// Window function types understood by the compiler. Any aggregate name
// (count, sum, avg, min, max) is also accepted as a window type.
const (
	WindowRowNumber  = "row_number"
	WindowRank       = "rank"
	WindowDenseRank  = "dense_rank"
	WindowLag        = "lag"
	WindowLead       = "lead"
	WindowFirstValue = "first_value"
	WindowLastValue  = "last_value"
)

// WindowFunction is a simple window computation: a function over an optional
// source field, projected under a unique alias, evaluated over an optional
// partition/ordering with an optional literal frame clause.
type WindowFunction struct {
	Type        string     `json:"type"`
	Field       string     `json:"field,omitempty"`
	Alias       string     `json:"alias"`
	PartitionBy []string   `json:"partitionBy,omitempty"`
	OrderBy     []Ordering `json:"orderBy,omitempty"`
	Frame       string     `json:"frame,omitempty"`
}

// Frame bound types for advanced windows.
const (
	BoundUnboundedPreceding = "unboundedPreceding"
	BoundPreceding          = "preceding"
	BoundCurrentRow         = "currentRow"
	BoundFollowing          = "following"
	BoundUnboundedFollowing = "unboundedFollowing"
)

// FrameBound is one endpoint of a structured window frame. Offset is only
// meaningful for the bounded preceding/following types.
type FrameBound struct {
	Type   string `json:"type"`
	Offset int    `json:"offset,omitempty"`
}

// WindowFrame is a structured ROWS/RANGE frame specification.
type WindowFrame struct {
	Mode  string     `json:"mode"` // "rows" or "range"
	Start FrameBound `json:"start"`
	End   FrameBound `json:"end"`
}

// AdvancedWindow extends WindowFunction with a structured frame and a filter
// predicate list applied to the window's input rows.
type AdvancedWindow struct {
	Type        string         `json:"type"`
	Field       string         `json:"field,omitempty"`
	Alias       string         `json:"alias"`
	PartitionBy []string       `json:"partitionBy,omitempty"`
	OrderBy     []Ordering     `json:"orderBy,omitempty"`
	Frame       *WindowFrame   `json:"frame,omitempty"`
	Filters     []RawCondition `json:"filters,omitempty"`
}

// CTE is a named non-recursive common table expression wrapping a nested
// query, optionally with an explicit column list. Names are unique within
// one compiled query.
type CTE struct {
	Name    string   `json:"name"`
	Query   *Query   `json:"query"`
	Columns []string `json:"columns,omitempty"`
}

// RecursiveCTE is a recursive common table expression: the initial branch
// unioned (ALL or DISTINCT) with the recursive branch. The recursive branch
// is expected to reference the CTE by name; that is not enforced here.
type RecursiveCTE struct {
	Name      string   `json:"name"`
	Initial   *Query   `json:"initial"`
	Recursive *Query   `json:"recursive"`
	UnionAll  bool     `json:"unionAll,omitempty"`
	Columns   []string `json:"columns,omitempty"`
}
