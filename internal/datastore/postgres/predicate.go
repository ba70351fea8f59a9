package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rowguard/rowguard/pkg/authz"
	"github.com/rowguard/rowguard/pkg/queryir"
)

var contextRefPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// RowPredicateCompiler compiles customSql rule templates into per-row probes
// executed by postgres. Context references are bound as parameters, never
// interpolated into the SQL text.
type RowPredicateCompiler struct {
	pool  *pgxpool.Pool
	table string
}

func NewRowPredicateCompiler(pool *pgxpool.Pool, table string) *RowPredicateCompiler {
	return &RowPredicateCompiler{pool: pool, table: table}
}

func (rpc *RowPredicateCompiler) CompilePredicate(_ context.Context, template string, contextValues map[string]queryir.Value) (authz.Predicate, error) {
	var args []any
	predicate := contextRefPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := contextRefPattern.FindStringSubmatch(match)[1]
		value, ok := contextValues[name]
		if !ok {
			// The evaluator resolves references before compiling; an
			// unresolved one here is a programming error surfaced at
			// evaluation time via the malformed placeholder.
			return match
		}
		args = append(args, value.Native())
		return fmt.Sprintf("$%d", len(args)+1)
	})
	if strings.Contains(predicate, "{{") {
		return nil, fmt.Errorf("predicate template contains unresolved context references")
	}
	return &rowPredicate{pool: rpc.pool, table: rpc.table, predicate: predicate, args: args}, nil
}

type rowPredicate struct {
	pool      *pgxpool.Pool
	table     string
	predicate string
	args      []any
}

// Evaluate probes the predicate against the row's stored state, addressed by
// its id column. The first bind parameter is always the row id.
func (rp *rowPredicate) Evaluate(ctx context.Context, row queryir.Row) (bool, error) {
	id, ok := row["id"]
	if !ok {
		return false, fmt.Errorf("custom sql predicate requires rows with an id column")
	}
	sql := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1 AND (%s))", rp.table, rp.predicate)
	args := append([]any{id.Native()}, rp.args...)

	var matched bool
	if err := rp.pool.QueryRow(ctx, sql, args...).Scan(&matched); err != nil {
		return false, fmt.Errorf("unable to evaluate custom sql predicate: %w", err)
	}
	return matched, nil
}

var _ authz.PredicateCompiler = (*RowPredicateCompiler)(nil)
