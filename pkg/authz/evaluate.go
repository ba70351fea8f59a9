package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/rowguard/rowguard/pkg/queryir"
)

// Decision is the tri-state outcome of evaluating one rule. Continue means
// the rule produced no applicable signal and evaluation falls through to the
// next rule in order.
type Decision int

const (
	DecisionContinue Decision = iota
	DecisionAllow
	DecisionDeny
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	default:
		return "continue"
	}
}

// Evaluate scans the rules strictly in list order and stops at the first
// definitive decision. If no rule decides, the default is deny. row may be
// nil when evaluating without row context; predicates may be nil when the
// rule list contains no customSql rules.
func Evaluate(ctx context.Context, rules []Rule, user UserContext, row queryir.Row, predicates PredicateCompiler) (bool, error) {
	for _, rule := range rules {
		decision, err := decideRule(ctx, rule, user, row, predicates)
		if err != nil {
			return false, err
		}
		switch decision {
		case DecisionAllow:
			return true, nil
		case DecisionDeny:
			return false, nil
		}
	}
	return false, nil
}

// decideRule produces the tri-state decision for a single rule. auth and
// guest test complementary predicates and return Continue on the
// non-matching side, so they can never both match within one evaluation.
func decideRule(ctx context.Context, rule Rule, user UserContext, row queryir.Row, predicates PredicateCompiler) (Decision, error) {
	switch rule.Allow {
	case RulePublic:
		return DecisionAllow, nil

	case RulePrivate:
		return DecisionDeny, nil

	case RuleRole:
		if len(rule.Roles) == 0 {
			return DecisionDeny, nil
		}
		for _, role := range rule.Roles {
			if user.Role == role {
				return DecisionAllow, nil
			}
		}
		return DecisionDeny, nil

	case RuleAuth:
		if user.IsAuthenticated() {
			return DecisionAllow, nil
		}
		return DecisionContinue, nil

	case RuleGuest:
		if !user.IsAuthenticated() {
			return DecisionAllow, nil
		}
		return DecisionContinue, nil

	case RuleLabels:
		if intersects(user.Labels, rule.Labels) {
			return DecisionAllow, nil
		}
		return DecisionContinue, nil

	case RuleTeams:
		if intersects(user.Teams, rule.Teams) {
			return DecisionAllow, nil
		}
		return DecisionContinue, nil

	case RuleStatic:
		if rule.Value != nil && *rule.Value {
			return DecisionAllow, nil
		}
		return DecisionDeny, nil

	case RuleFieldCheck:
		if rule.FieldCheck == nil {
			return DecisionContinue, fmt.Errorf("fieldCheck rule is missing its check")
		}
		return decideFieldCheck(*rule.FieldCheck, user, row)

	case RuleCustomSQL:
		return decideCustomSQL(ctx, rule.SQL, user, row, predicates)

	default:
		return DecisionContinue, fmt.Errorf("unknown rule kind: %q", rule.Allow)
	}
}

func decideFieldCheck(check FieldCheck, user UserContext, row queryir.Row) (Decision, error) {
	if row == nil {
		return DecisionContinue, nil
	}
	rowValue, ok := row[check.Field]
	if !ok {
		return DecisionContinue, nil
	}

	expected := check.Value
	if check.ValueType == SourceUserContext {
		name, isString := check.Value.(string)
		if !isString {
			return DecisionContinue, fmt.Errorf("fieldCheck with userContext source requires a field name, got %T", check.Value)
		}
		contextValue, present := user.Field(name)
		if !present {
			return DecisionContinue, nil
		}
		expected = contextValue
	}

	switch check.Operator {
	case CheckEquals:
		if rowValue.Equal(queryir.ValueOf(expected)) {
			return DecisionAllow, nil
		}
		return DecisionContinue, nil

	case CheckNotEquals:
		if !rowValue.Equal(queryir.ValueOf(expected)) {
			return DecisionAllow, nil
		}
		return DecisionContinue, nil

	case CheckIn:
		if valueInSet(rowValue, expected) {
			return DecisionAllow, nil
		}
		return DecisionContinue, nil

	case CheckNotIn:
		if !valueInSet(rowValue, expected) {
			return DecisionAllow, nil
		}
		return DecisionContinue, nil

	default:
		return DecisionContinue, fmt.Errorf("unknown fieldCheck operator: %q", check.Operator)
	}
}

// valueInSet tests membership of a row value within a comparison set, which
// may arrive as a Go slice or as a tagged JSON array value.
func valueInSet(rowValue queryir.Value, set any) bool {
	for _, candidate := range setValues(set) {
		if rowValue.Equal(candidate) {
			return true
		}
	}
	return false
}

func setValues(set any) []queryir.Value {
	switch s := set.(type) {
	case []queryir.Value:
		return s
	case []any:
		values := make([]queryir.Value, 0, len(s))
		for _, v := range s {
			values = append(values, queryir.ValueOf(v))
		}
		return values
	case queryir.Value:
		if s.Kind() == queryir.KindJSON {
			var items []any
			if err := json.Unmarshal(s.JSON(), &items); err != nil {
				return nil
			}
			values := make([]queryir.Value, 0, len(items))
			for _, v := range items {
				values = append(values, queryir.ValueOf(v))
			}
			return values
		}
		return []queryir.Value{s}
	default:
		return []queryir.Value{queryir.ValueOf(set)}
	}
}

// contextRefPattern matches {{field}} references in customSql templates.
var contextRefPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

func decideCustomSQL(ctx context.Context, template string, user UserContext, row queryir.Row, predicates PredicateCompiler) (Decision, error) {
	if predicates == nil {
		return DecisionContinue, fmt.Errorf("customSql rule requires a predicate compiler")
	}

	contextValues := make(map[string]queryir.Value)
	for _, match := range contextRefPattern.FindAllStringSubmatch(template, -1) {
		name := match[1]
		value, ok := user.Field(name)
		if !ok {
			return DecisionContinue, NewMissingContextErr(name, template)
		}
		contextValues[name] = value
	}

	predicate, err := predicates.CompilePredicate(ctx, template, contextValues)
	if err != nil {
		return DecisionContinue, fmt.Errorf("unable to compile custom sql predicate: %w", err)
	}
	matched, err := predicate.Evaluate(ctx, row)
	if err != nil {
		return DecisionContinue, fmt.Errorf("unable to evaluate custom sql predicate: %w", err)
	}
	if matched {
		return DecisionAllow, nil
	}
	return DecisionContinue, nil
}
