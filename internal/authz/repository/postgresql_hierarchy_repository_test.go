package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/testutil"
)

// hierarchyFixture registers a set of subjects and returns their ids by name.
func hierarchyFixture(t *testing.T, db *sql.DB, names ...string) map[string]uuid.UUID {
	t.Helper()

	ids := make(map[string]uuid.UUID, len(names))
	for _, name := range names {
		ids[name] = testutil.CreateTestEntity(t, db, "postgres", "subjects", name, false)
	}
	return ids
}

func TestPostgreSQLHierarchyRepository_AddEdge(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLHierarchyRepository(db)
	ctx := context.Background()
	ids := hierarchyFixture(t, db, "a", "b", "c")

	inserted, err := repo.AddEdge(ctx, domain.KindSubject, ids["a"], ids["b"], false)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Re-adding reports not inserted and leaves the closure untouched.
	inserted, err = repo.AddEdge(ctx, domain.KindSubject, ids["a"], ids["b"], false)
	require.NoError(t, err)
	assert.False(t, inserted)

	var paths int
	err = db.QueryRow(
		"SELECT paths FROM subject_closure WHERE ancestor_id = $1 AND descendant_id = $2",
		ids["a"], ids["b"],
	).Scan(&paths)
	require.NoError(t, err)
	assert.Equal(t, 1, paths)

	// Transitivity: a -> b -> c records a as an ancestor of c.
	inserted, err = repo.AddEdge(ctx, domain.KindSubject, ids["b"], ids["c"], false)
	require.NoError(t, err)
	assert.True(t, inserted)

	reaches, err := repo.HasPath(ctx, domain.KindSubject, ids["a"], ids["c"])
	require.NoError(t, err)
	assert.True(t, reaches)
}

func TestPostgreSQLHierarchyRepository_StaticPromotion(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLHierarchyRepository(db)
	ctx := context.Background()
	ids := hierarchyFixture(t, db, "a", "b")

	_, err := repo.AddEdge(ctx, domain.KindSubject, ids["a"], ids["b"], false)
	require.NoError(t, err)

	// The reconciler re-adding the edge as static promotes it.
	_, err = repo.AddEdge(ctx, domain.KindSubject, ids["a"], ids["b"], true)
	require.NoError(t, err)

	parents, err := repo.StaticParents(ctx, domain.KindSubject, ids["b"])
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, parents)
}

func TestPostgreSQLHierarchyRepository_DiamondPaths(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLHierarchyRepository(db)
	ctx := context.Background()
	ids := hierarchyFixture(t, db, "a", "b", "c", "d")

	// a -> b -> d and a -> c -> d: two distinct paths from a to d.
	for _, edge := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}} {
		_, err := repo.AddEdge(ctx, domain.KindSubject, ids[edge[0]], ids[edge[1]], false)
		require.NoError(t, err)
	}

	var paths int
	err := db.QueryRow(
		"SELECT paths FROM subject_closure WHERE ancestor_id = $1 AND descendant_id = $2",
		ids["a"], ids["d"],
	).Scan(&paths)
	require.NoError(t, err)
	assert.Equal(t, 2, paths)

	// Removing one arm keeps d reachable through the other.
	require.NoError(t, repo.RemoveEdge(ctx, domain.KindSubject, ids["b"], ids["d"]))

	reaches, err := repo.HasPath(ctx, domain.KindSubject, ids["a"], ids["d"])
	require.NoError(t, err)
	assert.True(t, reaches)

	err = db.QueryRow(
		"SELECT paths FROM subject_closure WHERE ancestor_id = $1 AND descendant_id = $2",
		ids["a"], ids["d"],
	).Scan(&paths)
	require.NoError(t, err)
	assert.Equal(t, 1, paths)

	// Removing the second arm severs reachability entirely.
	require.NoError(t, repo.RemoveEdge(ctx, domain.KindSubject, ids["c"], ids["d"]))

	reaches, err = repo.HasPath(ctx, domain.KindSubject, ids["a"], ids["d"])
	require.NoError(t, err)
	assert.False(t, reaches)
}

func TestPostgreSQLHierarchyRepository_RemoveAbsentEdge(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLHierarchyRepository(db)
	ctx := context.Background()
	ids := hierarchyFixture(t, db, "a", "b")

	assert.NoError(t, repo.RemoveEdge(ctx, domain.KindSubject, ids["a"], ids["b"]))
}

func TestPostgreSQLHierarchyRepository_SetQueries(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLHierarchyRepository(db)
	ctx := context.Background()
	ids := hierarchyFixture(t, db, "root", "mid", "leaf", "other")

	for _, edge := range [][2]string{{"root", "mid"}, {"mid", "leaf"}} {
		_, err := repo.AddEdge(ctx, domain.KindSubject, ids[edge[0]], ids[edge[1]], false)
		require.NoError(t, err)
	}

	ancestors, err := repo.Ancestors(ctx, domain.KindSubject, ids["leaf"])
	require.NoError(t, err)
	assert.Equal(t, []string{"leaf", "mid", "root"}, ancestors)

	descendants, err := repo.Descendants(ctx, domain.KindSubject, ids["root"])
	require.NoError(t, err)
	assert.Equal(t, []string{"leaf", "mid", "root"}, descendants)

	parents, err := repo.Parents(ctx, domain.KindSubject, ids["mid"])
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, parents)

	children, err := repo.Children(ctx, domain.KindSubject, ids["mid"])
	require.NoError(t, err)
	assert.Equal(t, []string{"leaf"}, children)

	// A node with no edges is its own sole ancestor and descendant.
	ancestors, err = repo.Ancestors(ctx, domain.KindSubject, ids["other"])
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, ancestors)
}

func TestPostgreSQLHierarchyRepository_DetachAll(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLHierarchyRepository(db)
	ctx := context.Background()
	ids := hierarchyFixture(t, db, "top", "mid", "bottom")

	for _, edge := range [][2]string{{"top", "mid"}, {"mid", "bottom"}} {
		_, err := repo.AddEdge(ctx, domain.KindSubject, ids[edge[0]], ids[edge[1]], false)
		require.NoError(t, err)
	}

	require.NoError(t, repo.DetachAll(ctx, domain.KindSubject, ids["mid"]))

	// Paths through the detached node are gone; self rows remain.
	reaches, err := repo.HasPath(ctx, domain.KindSubject, ids["top"], ids["bottom"])
	require.NoError(t, err)
	assert.False(t, reaches)

	reaches, err = repo.HasPath(ctx, domain.KindSubject, ids["top"], ids["top"])
	require.NoError(t, err)
	assert.True(t, reaches)
}
