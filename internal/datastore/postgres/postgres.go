// Package postgres implements the storage collaborators against postgres via
// pgx: plan execution and the permission store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rowguard/rowguard/internal/datastore"
	"github.com/rowguard/rowguard/pkg/authz"
	"github.com/rowguard/rowguard/pkg/compiler"
	"github.com/rowguard/rowguard/pkg/queryir"
)

const permissionsTable = "rowguard_table_permissions"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Datastore executes compiled plans and mutations against a postgres pool.
type Datastore struct {
	pool *pgxpool.Pool
}

// NewDatastore returns a datastore over an existing pool; the pool's
// lifecycle belongs to the caller.
func NewDatastore(pool *pgxpool.Pool) *Datastore {
	return &Datastore{pool: pool}
}

// ExecuteSelect renders and runs the compiled plan, returning typed rows.
func (ds *Datastore) ExecuteSelect(ctx context.Context, table string, plan *compiler.Plan) ([]queryir.Row, error) {
	applier := datastore.NewQueryApplier(table, sq.Dollar)
	builder, err := applier.Apply(plan)
	if err != nil {
		return nil, err
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("unable to render query: %w", err)
	}

	rows, err := ds.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var results []queryir.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("unable to read row: %w", err)
		}
		row := make(queryir.Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = queryir.ValueOf(values[i])
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// ExecuteWrite issues the mutation for records that already passed the
// authorization gate. Updates and deletes address records by their "id"
// column.
func (ds *Datastore) ExecuteWrite(ctx context.Context, table string, operation authz.Operation, records []queryir.Row) error {
	for _, record := range records {
		var err error
		switch operation {
		case authz.OperationInsert:
			err = ds.insert(ctx, table, record)
		case authz.OperationUpdate:
			err = ds.update(ctx, table, record)
		case authz.OperationDelete:
			err = ds.delete(ctx, table, record)
		default:
			return fmt.Errorf("unsupported write operation: %q", operation)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (ds *Datastore) insert(ctx context.Context, table string, record queryir.Row) error {
	columns := sortedColumns(record)
	values := make([]any, 0, len(columns))
	for _, col := range columns {
		values = append(values, record[col].Native())
	}
	sql, args, err := psql.Insert(table).Columns(columns...).Values(values...).ToSql()
	if err != nil {
		return fmt.Errorf("unable to render insert: %w", err)
	}
	_, err = ds.pool.Exec(ctx, sql, args...)
	return err
}

func (ds *Datastore) update(ctx context.Context, table string, record queryir.Row) error {
	id, ok := record["id"]
	if !ok {
		return fmt.Errorf("update record is missing its id column")
	}
	update := psql.Update(table)
	for _, col := range sortedColumns(record) {
		if col == "id" {
			continue
		}
		update = update.Set(col, record[col].Native())
	}
	sql, args, err := update.Where(sq.Eq{"id": id.Native()}).ToSql()
	if err != nil {
		return fmt.Errorf("unable to render update: %w", err)
	}
	_, err = ds.pool.Exec(ctx, sql, args...)
	return err
}

func (ds *Datastore) delete(ctx context.Context, table string, record queryir.Row) error {
	id, ok := record["id"]
	if !ok {
		return fmt.Errorf("delete record is missing its id column")
	}
	sql, args, err := psql.Delete(table).Where(sq.Eq{"id": id.Native()}).ToSql()
	if err != nil {
		return fmt.Errorf("unable to render delete: %w", err)
	}
	_, err = ds.pool.Exec(ctx, sql, args...)
	return err
}

func sortedColumns(record queryir.Row) []string {
	columns := make([]string, 0, len(record))
	for col := range record {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

// PermissionStore persists table policies in a single jsonb-backed table.
type PermissionStore struct {
	pool *pgxpool.Pool
}

func NewPermissionStore(pool *pgxpool.Pool) *PermissionStore {
	return &PermissionStore{pool: pool}
}

func (ps *PermissionStore) GetRulesForTable(ctx context.Context, table string) (*authz.TablePermissions, bool, error) {
	sql, args, err := psql.
		Select("permissions").
		From(permissionsTable).
		Where(sq.Eq{"table_name": table}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("unable to render permissions query: %w", err)
	}

	var raw []byte
	if err := ps.pool.QueryRow(ctx, sql, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("unable to fetch permissions: %w", err)
	}

	var perms authz.TablePermissions
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, false, fmt.Errorf("unable to decode permissions for table %q: %w", table, err)
	}
	perms.Table = table
	return &perms, true, nil
}

func (ps *PermissionStore) SetRulesForTable(ctx context.Context, perms *authz.TablePermissions) error {
	raw, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("unable to encode permissions for table %q: %w", perms.Table, err)
	}
	sql, args, err := psql.
		Insert(permissionsTable).
		Columns("table_name", "permissions").
		Values(perms.Table, raw).
		Suffix("ON CONFLICT (table_name) DO UPDATE SET permissions = EXCLUDED.permissions").
		ToSql()
	if err != nil {
		return fmt.Errorf("unable to render permissions upsert: %w", err)
	}
	_, err = ps.pool.Exec(ctx, sql, args...)
	return err
}

func (ps *PermissionStore) DeleteRulesForTable(ctx context.Context, table string) error {
	sql, args, err := psql.Delete(permissionsTable).Where(sq.Eq{"table_name": table}).ToSql()
	if err != nil {
		return fmt.Errorf("unable to render permissions delete: %w", err)
	}
	_, err = ps.pool.Exec(ctx, sql, args...)
	return err
}
