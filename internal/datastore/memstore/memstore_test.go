package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rowguard/rowguard/pkg/authz"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	perms := &authz.TablePermissions{
		Table: "documents",
		Rules: map[authz.Operation][]authz.Rule{
			authz.OperationSelect: {{Allow: authz.RulePublic}},
			authz.OperationUpdate: {{Allow: authz.RuleRole, Roles: []string{"admin"}}},
		},
	}
	require.NoError(t, store.SetRulesForTable(ctx, perms))

	got, found, err := store.GetRulesForTable(ctx, "documents")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, perms, got)
}

func TestStoreAbsentTable(t *testing.T) {
	store, err := New()
	require.NoError(t, err)

	got, found, err := store.GetRulesForTable(context.Background(), "nowhere")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, got)
}

func TestStoreOverwrite(t *testing.T) {
	store, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SetRulesForTable(ctx, &authz.TablePermissions{
		Table: "documents",
		Rules: map[authz.Operation][]authz.Rule{authz.OperationSelect: {{Allow: authz.RulePublic}}},
	}))
	require.NoError(t, store.SetRulesForTable(ctx, &authz.TablePermissions{
		Table: "documents",
		Rules: map[authz.Operation][]authz.Rule{authz.OperationSelect: {{Allow: authz.RulePrivate}}},
	}))

	got, found, err := store.GetRulesForTable(ctx, "documents")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, authz.RulePrivate, got.Rules[authz.OperationSelect][0].Allow)
}

func TestStoreDelete(t *testing.T) {
	store, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SetRulesForTable(ctx, &authz.TablePermissions{
		Table: "documents",
		Rules: map[authz.Operation][]authz.Rule{authz.OperationSelect: {}},
	}))
	require.NoError(t, store.DeleteRulesForTable(ctx, "documents"))

	_, found, err := store.GetRulesForTable(ctx, "documents")
	require.NoError(t, err)
	require.False(t, found)

	// Deleting an absent table is a no-op.
	require.NoError(t, store.DeleteRulesForTable(ctx, "documents"))
}
