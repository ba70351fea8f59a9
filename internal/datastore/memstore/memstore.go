// Package memstore is an in-memory permission store backed by
// hashicorp/go-memdb, for embedding and tests.
package memstore

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"

	"github.com/rowguard/rowguard/pkg/authz"
)

const (
	errUnableToInstantiate = "unable to instantiate permission store: %w"

	tablePolicy = "policy"
	indexID     = "id"
)

type policyEntry struct {
	Table       string
	Permissions *authz.TablePermissions
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tablePolicy: {
			Name: tablePolicy,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:    indexID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Table"},
				},
			},
		},
	},
}

// Store implements authz.PermissionStore in memory.
type Store struct {
	db *memdb.MemDB
}

// New returns an empty in-memory permission store.
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf(errUnableToInstantiate, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) GetRulesForTable(_ context.Context, table string) (*authz.TablePermissions, bool, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tablePolicy, indexID, table)
	if err != nil {
		return nil, false, fmt.Errorf("unable to fetch policy for table %q: %w", table, err)
	}
	if raw == nil {
		return nil, false, nil
	}
	return raw.(*policyEntry).Permissions, true, nil
}

func (s *Store) SetRulesForTable(_ context.Context, perms *authz.TablePermissions) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tablePolicy, &policyEntry{Table: perms.Table, Permissions: perms}); err != nil {
		return fmt.Errorf("unable to store policy for table %q: %w", perms.Table, err)
	}
	txn.Commit()
	return nil
}

func (s *Store) DeleteRulesForTable(_ context.Context, table string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if _, err := txn.DeleteAll(tablePolicy, indexID, table); err != nil {
		return fmt.Errorf("unable to delete policy for table %q: %w", table, err)
	}
	txn.Commit()
	return nil
}

var _ authz.PermissionStore = (*Store)(nil)
