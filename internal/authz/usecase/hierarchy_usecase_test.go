package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwilger/authorizir/internal/authz/domain"
)

func registerSubjects(t *testing.T, engine *testEngine, extIDs ...string) {
	t.Helper()
	for _, ext := range extIDs {
		require.NoError(t, engine.registry.Register(context.Background(), domain.KindSubject, ext, "subject "+ext))
	}
}

func TestAddChild(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	registerSubjects(t, engine, "admins", "alice")

	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "admins", "alice"))

	ancestors, err := engine.hierarchy.Ancestors(ctx, domain.KindSubject, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.SupremumExtID, "admins", "alice"}, ancestors)

	children, err := engine.hierarchy.Children(ctx, domain.KindSubject, "admins")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, children)
}

func TestAddChildValidation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	registerSubjects(t, engine, "admins")

	t.Run("unknown parent", func(t *testing.T) {
		err := engine.hierarchy.AddChild(ctx, domain.KindSubject, "ghost", "admins")
		assert.ErrorIs(t, err, domain.ErrInvalidParent)
	})

	t.Run("unknown child", func(t *testing.T) {
		err := engine.hierarchy.AddChild(ctx, domain.KindSubject, "admins", "ghost")
		assert.ErrorIs(t, err, domain.ErrInvalidChild)
	})

	t.Run("blank parent", func(t *testing.T) {
		err := engine.hierarchy.AddChild(ctx, domain.KindSubject, "  ", "admins")
		assert.ErrorIs(t, err, domain.ErrInvalidParent)
	})
}

func TestAddChildCycles(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	registerSubjects(t, engine, "a", "b", "c")
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "a", "b"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "b", "c"))

	t.Run("self loop", func(t *testing.T) {
		err := engine.hierarchy.AddChild(ctx, domain.KindSubject, "a", "a")
		assert.ErrorIs(t, err, domain.ErrCyclicEdge)
	})

	t.Run("closing a path", func(t *testing.T) {
		err := engine.hierarchy.AddChild(ctx, domain.KindSubject, "c", "a")
		assert.ErrorIs(t, err, domain.ErrCyclicEdge)
	})

	t.Run("supremum as child", func(t *testing.T) {
		err := engine.hierarchy.AddChild(ctx, domain.KindSubject, "a", domain.SupremumExtID)
		assert.ErrorIs(t, err, domain.ErrCyclicEdge)
	})
}

func TestAddChildIdempotent(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	registerSubjects(t, engine, "admins", "alice")
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "admins", "alice"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "admins", "alice"))

	children, err := engine.hierarchy.Children(ctx, domain.KindSubject, "admins")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, children)
}

func TestRemoveChild(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	registerSubjects(t, engine, "admins", "alice")
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "admins", "alice"))
	require.NoError(t, engine.hierarchy.RemoveChild(ctx, domain.KindSubject, "admins", "alice"))

	children, err := engine.hierarchy.Children(ctx, domain.KindSubject, "admins")
	require.NoError(t, err)
	assert.Empty(t, children)

	// Removing again is a silent no-op.
	require.NoError(t, engine.hierarchy.RemoveChild(ctx, domain.KindSubject, "admins", "alice"))

	// Unknown endpoints are still rejected.
	err = engine.hierarchy.RemoveChild(ctx, domain.KindSubject, "ghost", "alice")
	assert.ErrorIs(t, err, domain.ErrInvalidParent)
}

func TestMembers(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	registerSubjects(t, engine, "admins", "editors", "alice", "bob")
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "admins", "editors"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "editors", "alice"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "editors", "bob"))

	members, err := engine.hierarchy.Members(ctx, domain.KindSubject, "admins")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "editors"}, members)

	members, err = engine.hierarchy.Members(ctx, domain.KindSubject, "alice")
	require.NoError(t, err)
	assert.Empty(t, members)

	_, err = engine.hierarchy.Members(ctx, domain.KindSubject, "ghost")
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestDiamondHierarchy(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	// a -> b, a -> c, b -> d, c -> d: removing one middle edge must keep d
	// reachable through the other arm.
	registerSubjects(t, engine, "a", "b", "c", "d")
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "a", "b"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "a", "c"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "b", "d"))
	require.NoError(t, engine.hierarchy.AddChild(ctx, domain.KindSubject, "c", "d"))

	require.NoError(t, engine.hierarchy.RemoveChild(ctx, domain.KindSubject, "b", "d"))

	ancestors, err := engine.hierarchy.Ancestors(ctx, domain.KindSubject, "d")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.SupremumExtID, "a", "c", "d"}, ancestors)
}
