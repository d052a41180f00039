package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwilger/authorizir/internal/authz/domain"
)

func TestDecideClosedWorldDefault(t *testing.T) {
	engine := newTestEngine(t)

	engine.registerBasics(t, "u1", "o1", "edit")

	assert.Equal(t, domain.DecisionDenied, engine.decide(t, "u1", "o1", "edit"))
}

func TestDecideGrantRevokeCycle(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	engine.registerBasics(t, "u1", "o1", "edit")

	require.NoError(t, engine.rules.Grant(ctx, "u1", "o1", "edit"))
	assert.Equal(t, domain.DecisionGranted, engine.decide(t, "u1", "o1", "edit"))

	err := engine.rules.Deny(ctx, "u1", "o1", "edit")
	assert.ErrorIs(t, err, domain.ErrConflictingRuleType)

	require.NoError(t, engine.rules.Revoke(ctx, "u1", "o1", "edit"))
	assert.Equal(t, domain.DecisionDenied, engine.decide(t, "u1", "o1", "edit"))
}

func TestDecideUnknownEndpoints(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	engine.registerBasics(t, "alice", "docs", "read")

	_, err := engine.decisions.Decide(ctx, "ghost", "docs", "read")
	assert.ErrorIs(t, err, domain.ErrInvalidSubject)

	_, err = engine.decisions.Decide(ctx, "alice", "ghost", "read")
	assert.ErrorIs(t, err, domain.ErrInvalidObject)

	_, err = engine.decisions.Decide(ctx, "alice", "docs", "ghost")
	assert.ErrorIs(t, err, domain.ErrInvalidPermission)
}

func TestDecideSubjectHierarchy(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	engine.registerBasics(t, "admin", "doc", "edit")
	require.NoError(t, engine.registry.Register(ctx, domain.KindSubject, "editor", "Editors"))
	require.NoError(t, engine.registry.Register(ctx, domain.KindSubject, "alice", "Alice"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "admin", "editor"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "editor", "alice"))

	require.NoError(t, engine.rules.Grant(ctx, "admin", "doc", "edit"))

	assert.Equal(t, domain.DecisionGranted, engine.decide(t, "alice", "doc", "edit"))
	assert.Equal(t, domain.DecisionGranted, engine.decide(t, "editor", "doc", "edit"))
}

func TestDecidePermissionImplication(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	// edit implies read: the edge runs from the stronger permission to the
	// weaker one.
	engine.registerBasics(t, "alice", "doc", "edit")
	require.NoError(t, engine.registry.Register(ctx, domain.KindPermission, "read", "Read"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindPermission, "edit", "read"))

	require.NoError(t, engine.rules.Grant(ctx, "alice", "doc", "edit"))

	assert.Equal(t, domain.DecisionGranted, engine.decide(t, "alice", "doc", "read"))

	// A grant of the weaker permission does not imply the stronger one.
	require.NoError(t, engine.registry.Register(ctx, domain.KindSubject, "bob", "Bob"))
	require.NoError(t, engine.rules.Grant(ctx, "bob", "doc", "read"))
	assert.Equal(t, domain.DecisionDenied, engine.decide(t, "bob", "doc", "edit"))
}

func TestDecideNegativePropagatesUpward(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	engine.registerBasics(t, "alice", "doc", "edit")
	require.NoError(t, engine.registry.Register(ctx, domain.KindPermission, "read", "Read"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindPermission, "edit", "read"))

	require.NoError(t, engine.rules.Grant(ctx, "alice", "doc", "edit"))
	require.NoError(t, engine.rules.Deny(ctx, "alice", "doc", "read"))

	// The deny on the implied permission vetoes the stronger one, and beats
	// the ancestor-level grant on the weaker one.
	assert.Equal(t, domain.DecisionDenied, engine.decide(t, "alice", "doc", "edit"))
	assert.Equal(t, domain.DecisionDenied, engine.decide(t, "alice", "doc", "read"))
}

func TestDecideObjectHierarchy(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	engine.registerBasics(t, "alice", "docs", "read")
	require.NoError(t, engine.registry.Register(ctx, domain.KindObject, "private", "Private"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindObject, "docs", "private"))

	require.NoError(t, engine.rules.Grant(ctx, "alice", "docs", "read"))
	require.NoError(t, engine.rules.Deny(ctx, "alice", "private", "read"))

	assert.Equal(t, domain.DecisionGranted, engine.decide(t, "alice", "docs", "read"))
	assert.Equal(t, domain.DecisionDenied, engine.decide(t, "alice", "private", "read"))
}

func TestDecideBlanketDenyThroughPermissionSupremum(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	engine.registerBasics(t, "alice", "docs", "edit")
	require.NoError(t, engine.rules.Grant(ctx, "alice", "docs", "edit"))
	assert.Equal(t, domain.DecisionGranted, engine.decide(t, "alice", "docs", "edit"))

	// A deny attached to the permission supremum vetoes every specific
	// permission, even ones it is not a descendant of.
	require.NoError(t, engine.rules.Deny(ctx, "alice", "docs", domain.SupremumExtID))
	assert.Equal(t, domain.DecisionDenied, engine.decide(t, "alice", "docs", "edit"))
}

func TestDecideBlanketGrantThroughSuprema(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	engine.registerBasics(t, "alice", "docs", "edit")

	// The suprema are ordinary rows: a grant on all three wildcards reaches
	// every triple through the ancestor sets.
	require.NoError(t, engine.rules.Grant(ctx, domain.SupremumExtID, domain.SupremumExtID, domain.SupremumExtID))
	assert.Equal(t, domain.DecisionGranted, engine.decide(t, "alice", "docs", "edit"))
}

func TestDecidePositiveMonotone(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	engine.registerBasics(t, "alice", "docs", "read")
	require.NoError(t, engine.registry.Register(ctx, domain.KindSubject, "bob", "Bob"))
	require.NoError(t, engine.rules.Grant(ctx, "alice", "docs", "read"))
	require.NoError(t, engine.decideAll(ctx))

	// Adding more positive rules never flips granted to denied.
	require.NoError(t, engine.rules.Grant(ctx, "bob", "docs", "read"))
	assert.Equal(t, domain.DecisionGranted, engine.decide(t, "alice", "docs", "read"))
}

// decideAll exercises Decide for every registered subject as a sanity pass.
func (e *testEngine) decideAll(ctx context.Context) error {
	for ext := range e.store.entities[domain.KindSubject] {
		if _, err := e.decisions.Decide(ctx, ext, "docs", "read"); err != nil {
			return err
		}
	}
	return nil
}

func TestEnforce(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	engine.registerBasics(t, "alice", "docs", "read")

	err := engine.decisions.Enforce(ctx, "alice", "docs", "read")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	require.NoError(t, engine.rules.Grant(ctx, "alice", "docs", "read"))
	assert.NoError(t, engine.decisions.Enforce(ctx, "alice", "docs", "read"))

	err = engine.decisions.Enforce(ctx, "ghost", "docs", "read")
	assert.ErrorIs(t, err, domain.ErrInvalidSubject)
}
