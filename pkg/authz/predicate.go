package authz

import (
	"context"

	"github.com/rowguard/rowguard/pkg/queryir"
)

// Predicate is a compiled customSql predicate, executable against a row.
type Predicate interface {
	Evaluate(ctx context.Context, row queryir.Row) (bool, error)
}

// PredicateCompiler is the storage-collaborator capability that turns a
// customSql template plus resolved context values into an executable
// predicate. The evaluator never concatenates raw SQL text itself.
type PredicateCompiler interface {
	CompilePredicate(ctx context.Context, template string, contextValues map[string]queryir.Value) (Predicate, error)
}
