package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rowguard/rowguard/pkg/queryir"
)

func boolPtr(v bool) *bool { return &v }

func alice() UserContext {
	return UserContext{
		UserID: queryir.NumberValue(5),
		Role:   "user",
		Labels: []string{"beta"},
		Teams:  []string{"growth"},
	}
}

func guest() UserContext { return UserContext{} }

func TestEvaluateSimpleRules(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		rules []Rule
		user  UserContext
		want  bool
	}{
		{"public allows anyone", []Rule{{Allow: RulePublic}}, guest(), true},
		{"private denies anyone", []Rule{{Allow: RulePrivate}}, alice(), false},
		{"empty list defaults to deny", nil, alice(), false},
		{"role mismatch denies", []Rule{{Allow: RuleRole, Roles: []string{"admin"}}}, alice(), false},
		{
			"role match allows",
			[]Rule{{Allow: RuleRole, Roles: []string{"admin"}}},
			UserContext{UserID: queryir.NumberValue(1), Role: "admin"},
			true,
		},
		{"empty role set denies", []Rule{{Allow: RuleRole}}, alice(), false},
		{"auth allows authenticated", []Rule{{Allow: RuleAuth}}, alice(), true},
		{"auth falls through for guests", []Rule{{Allow: RuleAuth}}, guest(), false},
		{"guest allows guests", []Rule{{Allow: RuleGuest}}, guest(), true},
		{"guest falls through for authenticated", []Rule{{Allow: RuleGuest}}, alice(), false},
		{"labels intersect", []Rule{{Allow: RuleLabels, Labels: []string{"beta", "vip"}}}, alice(), true},
		{"labels disjoint", []Rule{{Allow: RuleLabels, Labels: []string{"vip"}}}, alice(), false},
		{"teams intersect", []Rule{{Allow: RuleTeams, Teams: []string{"growth"}}}, alice(), true},
		{"static true", []Rule{{Allow: RuleStatic, Value: boolPtr(true)}}, guest(), true},
		{"static false", []Rule{{Allow: RuleStatic, Value: boolPtr(false)}}, alice(), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(ctx, tc.rules, tc.user, nil, nil)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	ctx := context.Background()

	// The non-matching labels rule falls through; private then decides.
	rules := []Rule{
		{Allow: RuleLabels, Labels: []string{"vip"}},
		{Allow: RulePrivate},
		{Allow: RulePublic},
	}
	got, err := Evaluate(ctx, rules, alice(), nil, nil)
	require.NoError(t, err)
	require.False(t, got)

	// With a matching first rule, evaluation stops there.
	rules[0].Labels = []string{"beta"}
	got, err = Evaluate(ctx, rules, alice(), nil, nil)
	require.NoError(t, err)
	require.True(t, got)
}

func TestEvaluateAuthGuestAreComplementary(t *testing.T) {
	ctx := context.Background()
	rules := []Rule{{Allow: RuleAuth}, {Allow: RuleGuest}}

	got, err := Evaluate(ctx, rules, alice(), nil, nil)
	require.NoError(t, err)
	require.True(t, got)

	got, err = Evaluate(ctx, rules, guest(), nil, nil)
	require.NoError(t, err)
	require.True(t, got)
}

func TestEvaluateUnknownRuleKind(t *testing.T) {
	_, err := Evaluate(context.Background(), []Rule{{Allow: RuleKind("sorcery")}}, alice(), nil, nil)
	require.Error(t, err)
}

func TestEvaluateFieldCheck(t *testing.T) {
	ctx := context.Background()
	row := queryir.Row{
		"ownerId": queryir.NumberValue(5),
		"state":   queryir.StringValue("open"),
	}

	tests := []struct {
		name  string
		check FieldCheck
		user  UserContext
		want  bool
	}{
		{
			"context equality match",
			FieldCheck{Field: "ownerId", Operator: CheckEquals, ValueType: SourceUserContext, Value: "userId"},
			alice(),
			true,
		},
		{
			"context equality mismatch",
			FieldCheck{Field: "ownerId", Operator: CheckEquals, ValueType: SourceUserContext, Value: "userId"},
			UserContext{UserID: queryir.NumberValue(9)},
			false,
		},
		{
			"literal not-equals",
			FieldCheck{Field: "state", Operator: CheckNotEquals, ValueType: SourceLiteral, Value: "closed"},
			alice(),
			true,
		},
		{
			"literal in",
			FieldCheck{Field: "state", Operator: CheckIn, ValueType: SourceLiteral, Value: []any{"open", "review"}},
			alice(),
			true,
		},
		{
			"literal notIn",
			FieldCheck{Field: "state", Operator: CheckNotIn, ValueType: SourceLiteral, Value: []any{"open"}},
			alice(),
			false,
		},
		{
			"missing row field falls through",
			FieldCheck{Field: "absent", Operator: CheckEquals, ValueType: SourceLiteral, Value: 1},
			alice(),
			false,
		},
		{
			"missing context field falls through",
			FieldCheck{Field: "ownerId", Operator: CheckEquals, ValueType: SourceUserContext, Value: "department"},
			alice(),
			false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(ctx, []Rule{{Allow: RuleFieldCheck, FieldCheck: &tc.check}}, tc.user, row, nil)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

type stubPredicateCompiler struct {
	template string
	context  map[string]queryir.Value
	result   bool
}

func (s *stubPredicateCompiler) CompilePredicate(_ context.Context, template string, contextValues map[string]queryir.Value) (Predicate, error) {
	s.template = template
	s.context = contextValues
	return stubPredicate(s.result), nil
}

type stubPredicate bool

func (s stubPredicate) Evaluate(context.Context, queryir.Row) (bool, error) {
	return bool(s), nil
}

func TestEvaluateCustomSQL(t *testing.T) {
	ctx := context.Background()
	rules := []Rule{{Allow: RuleCustomSQL, SQL: "owner_id = {{userId}}"}}

	compiler := &stubPredicateCompiler{result: true}
	got, err := Evaluate(ctx, rules, alice(), queryir.Row{}, compiler)
	require.NoError(t, err)
	require.True(t, got)
	require.Equal(t, "owner_id = {{userId}}", compiler.template)
	require.Equal(t, queryir.NumberValue(5), compiler.context["userId"])
}

func TestEvaluateCustomSQLMissingContext(t *testing.T) {
	rules := []Rule{{Allow: RuleCustomSQL, SQL: "dept = {{department}}"}}

	_, err := Evaluate(context.Background(), rules, alice(), queryir.Row{}, &stubPredicateCompiler{})
	var missing MissingContextError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "department", missing.Field())
}
