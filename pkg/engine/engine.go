// Package engine ties the pieces together for one request: validate the IR,
// consult the cache, compile and execute the plan, then pass the result
// through the authorization gate.
package engine

import (
	"context"
	"time"

	"github.com/rowguard/rowguard/internal/logging"
	"github.com/rowguard/rowguard/pkg/analyzer"
	"github.com/rowguard/rowguard/pkg/authz"
	"github.com/rowguard/rowguard/pkg/cache"
	"github.com/rowguard/rowguard/pkg/compiler"
	"github.com/rowguard/rowguard/pkg/queryir"
)

// Executor is the storage collaborator that runs compiled plans and issues
// authorized writes. Implementations suspend on I/O; nothing in this package
// blocks otherwise.
type Executor interface {
	ExecuteSelect(ctx context.Context, table string, plan *compiler.Plan) ([]queryir.Row, error)
	ExecuteWrite(ctx context.Context, table string, operation authz.Operation, records []queryir.Row) error
}

// Engine orchestrates one request end to end. It holds no per-request state
// and is safe for concurrent use.
type Engine struct {
	executor Executor
	gate     *authz.Gate
	cache    cache.Cache
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache enables result caching. Without it every query compiles and
// executes.
func WithCache(c cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// NewEngine returns an engine over the given executor and gate.
func NewEngine(executor Executor, gate *authz.Gate, opts ...Option) *Engine {
	e := &Engine{executor: executor, gate: gate}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query runs a read: validation, cache lookup, compilation, execution, and
// row-level authorization, in that order. A cache hit short-circuits
// compilation and execution but never authorization.
func (e *Engine) Query(ctx context.Context, table string, q *queryir.Query, user authz.UserContext) ([]queryir.Row, error) {
	if violations := analyzer.Validate(q, q.Validation); len(violations) > 0 {
		return nil, analyzer.NewValidationErr(violations)
	}

	var key string
	cacheable := e.cache != nil && cache.ShouldCache(q)
	if cacheable {
		derived, err := cache.KeyFor(q)
		if err != nil {
			// Cache failures are non-fatal; fall through to execution.
			logging.Ctx(ctx).Warn().Err(err).Msg("cache key derivation failed; skipping cache")
			cacheable = false
		} else {
			key = derived
			if rows, ok := e.cache.Get(key); ok {
				return e.gate.FilterRows(ctx, table, authz.OperationSelect, user, rows)
			}
		}
	}

	plan, err := compiler.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := e.executor.ExecuteSelect(ctx, table, plan)
	if err != nil {
		return nil, err
	}

	if cacheable {
		ttl := time.Duration(q.Cache.TTLSeconds) * time.Second
		e.cache.Set(key, rows, ttl, q.Cache.Tags)
	}

	return e.gate.FilterRows(ctx, table, authz.OperationSelect, user, rows)
}

// Mutate runs a write: the gate decides before any write is issued, either
// rejecting the whole batch or silently stripping records that fail a
// fieldCheck. The records actually written are returned.
func (e *Engine) Mutate(ctx context.Context, table string, operation authz.Operation, records []queryir.Row, user authz.UserContext) ([]queryir.Row, error) {
	allowed, err := e.gate.AuthorizeWrite(ctx, table, operation, user, records)
	if err != nil {
		return nil, err
	}
	if len(allowed) == 0 {
		return nil, nil
	}
	if err := e.executor.ExecuteWrite(ctx, table, operation, allowed); err != nil {
		return nil, err
	}
	if e.cache != nil {
		// Writes invalidate entries tagged with the table name.
		e.cache.InvalidateByTags([]string{table})
	}
	return allowed, nil
}
