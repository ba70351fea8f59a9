package authz

import "context"

// PermissionStore is the collaborator persisting table policies. Policies
// are fetched fresh per authorization decision; this layer never caches
// them.
type PermissionStore interface {
	// GetRulesForTable returns the permissions for the table, and whether
	// any policy exists for it at all.
	GetRulesForTable(ctx context.Context, table string) (*TablePermissions, bool, error)

	// SetRulesForTable persists the permissions for perms.Table, replacing
	// any existing policy.
	SetRulesForTable(ctx context.Context, perms *TablePermissions) error

	// DeleteRulesForTable removes the table's policy entirely.
	DeleteRulesForTable(ctx context.Context, table string) error
}
