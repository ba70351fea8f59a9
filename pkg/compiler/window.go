package compiler

import (
	"fmt"
	"strings"

	"github.com/rowguard/rowguard/pkg/queryir"
)

var windowTypes = map[string]struct{}{
	queryir.WindowRowNumber:  {},
	queryir.WindowRank:       {},
	queryir.WindowDenseRank:  {},
	queryir.WindowLag:        {},
	queryir.WindowLead:       {},
	queryir.WindowFirstValue: {},
	queryir.WindowLastValue:  {},
	"count":                  {},
	"sum":                    {},
	"avg":                    {},
	"min":                    {},
	"max":                    {},
}

// windowCall renders the function-call fragment: ROW_NUMBER() takes no
// argument, every other type takes the source field or *.
func windowCall(windowType, field string) (string, error) {
	if _, ok := windowTypes[windowType]; !ok {
		return "", NewUnsupportedFeatureErr("window", windowType)
	}
	if windowType == queryir.WindowRowNumber {
		return "ROW_NUMBER()", nil
	}
	arg := field
	if arg == "" {
		arg = "*"
	}
	return fmt.Sprintf("%s(%s)", strings.ToUpper(windowType), arg), nil
}

// overClause concatenates the present sub-parts without dangling separators:
// PARTITION BY, then ORDER BY pairs, then an optional frame clause.
func overClause(partitionBy []string, orderBy []queryir.Ordering, frame string) string {
	parts := make([]string, 0, 3)
	if len(partitionBy) > 0 {
		parts = append(parts, "PARTITION BY "+strings.Join(partitionBy, ", "))
	}
	if len(orderBy) > 0 {
		pairs := make([]string, 0, len(orderBy))
		for _, o := range orderBy {
			pair := o.Field
			if o.Direction != "" {
				pair += " " + o.Direction
			}
			pairs = append(pairs, pair)
		}
		parts = append(parts, "ORDER BY "+strings.Join(pairs, ", "))
	}
	if frame != "" {
		parts = append(parts, frame)
	}
	return "OVER (" + strings.Join(parts, " ") + ")"
}

func compileWindow(w queryir.WindowFunction) (string, error) {
	call, err := windowCall(w.Type, w.Field)
	if err != nil {
		return "", err
	}
	over := overClause(w.PartitionBy, w.OrderBy, w.Frame)
	return fmt.Sprintf("%s %s AS %s", call, over, w.Alias), nil
}

// frameBound renders one endpoint of a structured frame.
func frameBound(b queryir.FrameBound) (string, error) {
	switch b.Type {
	case queryir.BoundUnboundedPreceding:
		return "UNBOUNDED PRECEDING", nil
	case queryir.BoundPreceding:
		return fmt.Sprintf("%d PRECEDING", b.Offset), nil
	case queryir.BoundCurrentRow:
		return "CURRENT ROW", nil
	case queryir.BoundFollowing:
		return fmt.Sprintf("%d FOLLOWING", b.Offset), nil
	case queryir.BoundUnboundedFollowing:
		return "UNBOUNDED FOLLOWING", nil
	default:
		return "", NewUnsupportedFeatureErr("frame bound", b.Type)
	}
}

func frameClause(f *queryir.WindowFrame) (string, error) {
	if f == nil {
		return "", nil
	}
	var mode string
	switch strings.ToLower(f.Mode) {
	case "rows":
		mode = "ROWS"
	case "range":
		mode = "RANGE"
	default:
		return "", NewUnsupportedFeatureErr("frame mode", f.Mode)
	}
	start, err := frameBound(f.Start)
	if err != nil {
		return "", err
	}
	end, err := frameBound(f.End)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s BETWEEN %s AND %s", mode, start, end), nil
}

// filterClause renders a FILTER (WHERE ...) fragment from the window's
// predicate list, returning the fragment and its positional bindings.
func filterClause(filters []queryir.RawCondition) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	var sb strings.Builder
	args := make([]any, 0, len(filters))
	for i, f := range filters {
		if err := checkOperator(f.Operator); err != nil {
			return "", nil, err
		}
		if i > 0 {
			if strings.EqualFold(f.Boolean, "or") {
				sb.WriteString(" OR ")
			} else {
				sb.WriteString(" AND ")
			}
		}
		fmt.Fprintf(&sb, "%s %s ?", f.Field, f.Operator)
		args = append(args, f.Value)
	}
	return fmt.Sprintf("FILTER (WHERE %s)", sb.String()), args, nil
}

func compileAdvancedWindow(w queryir.AdvancedWindow) (string, []any, error) {
	call, err := windowCall(w.Type, w.Field)
	if err != nil {
		return "", nil, err
	}
	filter, args, err := filterClause(w.Filters)
	if err != nil {
		return "", nil, err
	}
	frame, err := frameClause(w.Frame)
	if err != nil {
		return "", nil, err
	}
	over := overClause(w.PartitionBy, w.OrderBy, frame)

	var sb strings.Builder
	sb.WriteString(call)
	if filter != "" {
		sb.WriteString(" " + filter)
	}
	sb.WriteString(" " + over + " AS " + w.Alias)
	return sb.String(), args, nil
}
