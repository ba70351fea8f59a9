// Package analyzer performs static validation of a query IR and computes its
// complexity score. It also derives advisory optimization suggestions from an
// externally supplied execution plan; those are heuristics and never block a
// query.
package analyzer

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rowguard/rowguard/pkg/queryir"
)

// Violation is one failed validation check. Checks run independently and all
// violations are reported together.
type Violation struct {
	Rule    string `json:"rule"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationError carries every violation found for one query. The query is
// rejected before execution with no side effects.
type ValidationError struct {
	error
	violations []Violation
}

func NewValidationErr(violations []Violation) ValidationError {
	return ValidationError{
		error:      fmt.Errorf("query failed validation with %d violation(s)", len(violations)),
		violations: violations,
	}
}

// Violations returns the accumulated violations.
func (err ValidationError) Violations() []Violation { return err.violations }

func (err ValidationError) MarshalZerologObject(e *zerolog.Event) {
	arr := zerolog.Arr()
	for _, v := range err.violations {
		arr.Str(v.Message)
	}
	e.Str("error", err.Error()).Array("violations", arr)
}

// Validate checks the query against the given rules and returns every
// violation found. It never short-circuits on the first failure. A nil rule
// set validates everything.
func Validate(q *queryir.Query, rules *queryir.ValidationRules) []Violation {
	if rules == nil {
		return nil
	}

	var violations []Violation

	if rules.MaxLimit != nil && q.EffectiveLimit() > *rules.MaxLimit {
		violations = append(violations, Violation{
			Rule:    "maxLimit",
			Message: fmt.Sprintf("limit %d exceeds the maximum of %d", q.EffectiveLimit(), *rules.MaxLimit),
		})
	}

	referenced := referencedFields(q)

	for _, field := range rules.RequiredFields {
		if _, ok := referenced[field]; !ok {
			violations = append(violations, Violation{
				Rule:    "requiredFields",
				Field:   field,
				Message: fmt.Sprintf("required field %q is not referenced by the query", field),
			})
		}
	}

	for _, field := range rules.DisallowedFields {
		if _, ok := referenced[field]; ok {
			violations = append(violations, Violation{
				Rule:    "disallowedFields",
				Field:   field,
				Message: fmt.Sprintf("disallowed field %q is referenced by the query", field),
			})
		}
	}

	if rules.MaxComplexity != nil {
		if score := Complexity(q); score > *rules.MaxComplexity {
			violations = append(violations, Violation{
				Rule:    "maxComplexity",
				Message: fmt.Sprintf("complexity score %s exceeds the maximum of %s", trimFloat(score), trimFloat(*rules.MaxComplexity)),
			})
		}
	}

	return violations
}

// referencedFields collects every field named in the query's filtering
// clauses: filter, whereRaw, whereBetween, whereIn, whereNotIn, whereNull,
// and whereNotNull.
func referencedFields(q *queryir.Query) map[string]struct{} {
	fields := make(map[string]struct{})
	for field := range q.Filter {
		fields[field] = struct{}{}
	}
	for _, cond := range q.WhereRaw {
		fields[cond.Field] = struct{}{}
	}
	for _, between := range q.WhereBetween {
		fields[between.Field] = struct{}{}
	}
	for field := range q.WhereIn {
		fields[field] = struct{}{}
	}
	for field := range q.WhereNotIn {
		fields[field] = struct{}{}
	}
	for _, field := range q.WhereNull {
		fields[field] = struct{}{}
	}
	for _, field := range q.WhereNotNull {
		fields[field] = struct{}{}
	}
	return fields
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
