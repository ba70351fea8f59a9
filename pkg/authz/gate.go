package authz

import (
	"context"
	"fmt"

	"github.com/rowguard/rowguard/internal/logging"
	"github.com/rowguard/rowguard/pkg/queryir"
)

// Gate orchestrates rule evaluation per table and operation. Table-level
// denial fails loud (an error); row-level fieldCheck denial fails quiet
// (fewer rows, no error). That asymmetry is deliberate.
type Gate struct {
	store      PermissionStore
	predicates PredicateCompiler
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithPredicateCompiler supplies the storage capability backing customSql
// rules. Without it, customSql rules fail evaluation.
func WithPredicateCompiler(pc PredicateCompiler) GateOption {
	return func(g *Gate) { g.predicates = pc }
}

// NewGate returns a gate backed by the given permission store.
func NewGate(store PermissionStore, opts ...GateOption) *Gate {
	g := &Gate{store: store}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FilterRows authorizes a read: it returns the rows the user may see, or an
// error for table-level denial. With a fieldCheck rule present, each row is
// kept iff the rules evaluate true for it; rows failing are silently
// omitted. Otherwise the rules are evaluated once without row context.
func (g *Gate) FilterRows(ctx context.Context, table string, operation Operation, user UserContext, rows []queryir.Row) ([]queryir.Row, error) {
	rules, err := g.rulesFor(ctx, table, operation)
	if err != nil {
		return nil, err
	}

	// An explicit empty rule list means "no restriction".
	if len(rules) == 0 {
		return rows, nil
	}

	if HasFieldCheck(rules) {
		kept := make([]queryir.Row, 0, len(rows))
		for _, row := range rows {
			allowed, err := Evaluate(ctx, rules, user, row, g.predicates)
			if err != nil {
				return nil, err
			}
			if allowed {
				kept = append(kept, row)
			}
		}
		logging.Ctx(ctx).Debug().
			Str("table", table).
			Str("operation", string(operation)).
			Int("in", len(rows)).
			Int("kept", len(kept)).
			Msg("row-level filter applied")
		return kept, nil
	}

	allowed, err := Evaluate(ctx, rules, user, nil, g.predicates)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, NewAccessDeniedErr(table, operation)
	}
	return rows, nil
}

// AuthorizeWrite authorizes a mutation payload before any write is issued.
// It returns the records that may be written: with fieldCheck rules,
// disallowed records are stripped from the payload; otherwise a Deny rejects
// the whole batch. The caller must only write what this returns.
func (g *Gate) AuthorizeWrite(ctx context.Context, table string, operation Operation, user UserContext, records []queryir.Row) ([]queryir.Row, error) {
	if operation == OperationSelect {
		return nil, fmt.Errorf("AuthorizeWrite called with a read operation")
	}

	rules, err := g.rulesFor(ctx, table, operation)
	if err != nil {
		return nil, err
	}

	if len(rules) == 0 {
		return records, nil
	}

	if HasFieldCheck(rules) {
		allowed := make([]queryir.Row, 0, len(records))
		for _, record := range records {
			ok, err := Evaluate(ctx, rules, user, record, g.predicates)
			if err != nil {
				return nil, err
			}
			if ok {
				allowed = append(allowed, record)
			}
		}
		logging.Ctx(ctx).Debug().
			Str("table", table).
			Str("operation", string(operation)).
			Int("in", len(records)).
			Int("allowed", len(allowed)).
			Msg("pre-write row filter applied")
		return allowed, nil
	}

	ok, err := Evaluate(ctx, rules, user, nil, g.predicates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewAccessDeniedErr(table, operation)
	}
	return records, nil
}

// rulesFor fetches the policy fresh from the store and resolves the entry
// for the operation. A missing table policy or missing operation entry is
// table-level denial.
func (g *Gate) rulesFor(ctx context.Context, table string, operation Operation) ([]Rule, error) {
	perms, found, err := g.store.GetRulesForTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch permissions for table %q: %w", table, err)
	}
	if !found || perms == nil {
		return nil, NewOperationNotAllowedErr(table, operation)
	}
	rules, present := perms.Rules[operation]
	if !present {
		return nil, NewOperationNotAllowedErr(table, operation)
	}
	return rules, nil
}
