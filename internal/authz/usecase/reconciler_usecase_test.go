package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwilger/authorizir/internal/authz/domain"
)

// sampleDeclarations mirrors a typical application seed: an edit permission
// implying read, an admin role above users, and a private collection inside
// docs.
func sampleDeclarations() *domain.Declarations {
	return &domain.Declarations{
		Permissions: []domain.PermissionDecl{
			{ID: "read", Description: "Read documents"},
			{ID: "edit", Description: "Edit documents", Implies: []string{"read"}},
		},
		Roles: []domain.RoleDecl{
			{ID: "users", Description: "All users"},
			{ID: "admin", Description: "Administrators", Implies: []string{"users"}},
		},
		Collections: []domain.CollectionDecl{
			{ID: "docs", Description: "Documents"},
			{ID: "private", Description: "Private documents", In: []string{"docs"}},
		},
		Rules: []domain.RuleDecl{
			{Action: domain.ActionGrant, Permission: "edit", On: "docs", To: "admin"},
			{Action: domain.ActionDeny, Permission: "read", On: "private", To: "users"},
		},
	}
}

func TestInit(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.reconciler.Init(ctx, sampleDeclarations()))

	// Suprema exist in all three hierarchies.
	for _, kind := range []domain.Kind{domain.KindSubject, domain.KindObject, domain.KindPermission} {
		supremum, err := engine.registry.Lookup(ctx, kind, domain.SupremumExtID)
		require.NoError(t, err)
		assert.True(t, supremum.IsSupremum())
	}

	// Roles exist as subjects and objects, marked static.
	for _, kind := range []domain.Kind{domain.KindSubject, domain.KindObject} {
		admin, err := engine.registry.Lookup(ctx, kind, "admin")
		require.NoError(t, err)
		assert.True(t, admin.Static)
	}

	// "admin implies users" wires users above admin.
	ancestors, err := engine.hierarchy.Ancestors(ctx, domain.KindSubject, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.SupremumExtID, "admin", "users"}, ancestors)

	// The collection nests under its parent.
	ancestors, err = engine.hierarchy.Ancestors(ctx, domain.KindObject, "private")
	require.NoError(t, err)
	assert.Contains(t, ancestors, "docs")

	// Declared rules decide as specified: admins edit docs, and the deny on
	// private wins for everyone under users.
	assert.Equal(t, domain.DecisionGranted, engine.decide(t, "admin", "docs", "edit"))
	assert.Equal(t, domain.DecisionGranted, engine.decide(t, "admin", "docs", "read"))
	assert.Equal(t, domain.DecisionDenied, engine.decide(t, "admin", "private", "read"))
	assert.Equal(t, domain.DecisionDenied, engine.decide(t, "users", "docs", "edit"))

	// The advisory lock wraps every phase.
	assert.Equal(t, 5, engine.locker.acquires)
	assert.Equal(t, 5, engine.locker.releases)
}

func TestInitIdempotent(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	decls := sampleDeclarations()
	require.NoError(t, engine.reconciler.Init(ctx, decls))

	entitiesBefore := countEntities(engine.store)
	edgesBefore := countEdges(engine.store)
	rulesBefore := len(engine.store.rules)

	require.NoError(t, engine.reconciler.Init(ctx, decls))

	assert.Equal(t, entitiesBefore, countEntities(engine.store))
	assert.Equal(t, edgesBefore, countEdges(engine.store))
	assert.Equal(t, rulesBefore, len(engine.store.rules))
}

func TestInitRemovesUndeclaredStaticState(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	decls := sampleDeclarations()
	decls.Roles = append(decls.Roles, domain.RoleDecl{ID: "editor", Description: "Editors", Implies: []string{"users"}})
	decls.Rules = append(decls.Rules, domain.RuleDecl{Action: domain.ActionGrant, Permission: "read", On: "docs", To: "editor"})
	require.NoError(t, engine.reconciler.Init(ctx, decls))

	// Dynamic additions: a user under editor with a dynamic rule of her own.
	require.NoError(t, engine.registry.Register(ctx, domain.KindSubject, "alice", "Alice"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "editor", "alice"))
	require.NoError(t, engine.rules.Grant(ctx, "alice", "docs", "edit"))

	// Reconcile again without the editor role.
	require.NoError(t, engine.reconciler.Init(ctx, sampleDeclarations()))

	// The static role is gone from both hierarchies.
	_, err := engine.registry.Lookup(ctx, domain.KindSubject, "editor")
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	_, err = engine.registry.Lookup(ctx, domain.KindObject, "editor")
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)

	// The dynamic entity and its dynamic rule survive.
	alice, err := engine.registry.Lookup(ctx, domain.KindSubject, "alice")
	require.NoError(t, err)
	assert.False(t, alice.Static)

	views, err := engine.rules.ListRules(ctx, domain.KindSubject, "alice")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "edit", views[0].Permission)
}

func TestInitPreservesDynamicEdges(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.reconciler.Init(ctx, sampleDeclarations()))

	require.NoError(t, engine.registry.Register(ctx, domain.KindSubject, "alice", "Alice"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "admin", "alice"))

	require.NoError(t, engine.reconciler.Init(ctx, sampleDeclarations()))

	parents, err := engine.hierarchy.Parents(ctx, domain.KindSubject, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.SupremumExtID, "admin"}, parents)
}

func TestInitReconcilesChangedEdges(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.reconciler.Init(ctx, sampleDeclarations()))

	// The declared static edge users -> admin is present.
	parents, err := engine.hierarchy.Parents(ctx, domain.KindSubject, "admin")
	require.NoError(t, err)
	assert.Contains(t, parents, "users")

	// Re-declare admin without the implication: the static edge goes away.
	decls := sampleDeclarations()
	decls.Roles[1].Implies = nil
	require.NoError(t, engine.reconciler.Init(ctx, decls))

	parents, err = engine.hierarchy.Parents(ctx, domain.KindSubject, "admin")
	require.NoError(t, err)
	assert.NotContains(t, parents, "users")
}

func TestInitRebuildsStaticRules(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.reconciler.Init(ctx, sampleDeclarations()))

	// Drop the declared grant; the next run restores it.
	decls := sampleDeclarations()
	decls.Rules = decls.Rules[1:]
	require.NoError(t, engine.reconciler.Init(ctx, decls))
	assert.Equal(t, domain.DecisionDenied, engine.decide(t, "admin", "docs", "edit"))

	require.NoError(t, engine.reconciler.Init(ctx, sampleDeclarations()))
	assert.Equal(t, domain.DecisionGranted, engine.decide(t, "admin", "docs", "edit"))
}

func countEntities(store *fakeStore) int {
	total := 0
	for _, byExt := range store.entities {
		total += len(byExt)
	}
	return total
}

func countEdges(store *fakeStore) int {
	total := 0
	for _, edges := range store.edges {
		total += len(edges)
	}
	return total
}
