package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/database"

	apperrors "github.com/jwilger/authorizir/internal/errors"
)

// PostgreSQLHierarchyRepository maintains the parent/child edges and the
// transitive-closure index for one database. The closure rows carry a paths
// counter so diamond merges survive the removal of a single edge.
type PostgreSQLHierarchyRepository struct {
	db *sql.DB
}

// NewPostgreSQLHierarchyRepository creates a new PostgreSQLHierarchyRepository
func NewPostgreSQLHierarchyRepository(db *sql.DB) *PostgreSQLHierarchyRepository {
	return &PostgreSQLHierarchyRepository{
		db: db,
	}
}

// AddEdge inserts a parent -> child edge and folds it into the closure index.
// Returns false without touching the closure when the edge already exists; an
// existing dynamic edge is promoted to static when the reconciler re-adds it.
// Cycle checking is the caller's job (HasPath from child to parent).
func (r *PostgreSQLHierarchyRepository) AddEdge(ctx context.Context, kind domain.Kind, parentID, childID uuid.UUID, static bool) (bool, error) {
	querier := database.GetTx(ctx, r.db)
	edges := edgeTable(kind)
	closure := closureTable(kind)

	var existingStatic bool
	check := fmt.Sprintf(`SELECT static FROM %s WHERE parent_id = $1 AND child_id = $2`, edges)
	err := querier.QueryRowContext(ctx, check, parentID, childID).Scan(&existingStatic)
	switch {
	case err == nil:
		if static && !existingStatic {
			promote := fmt.Sprintf(`UPDATE %s SET static = TRUE WHERE parent_id = $1 AND child_id = $2`, edges)
			if _, err := querier.ExecContext(ctx, promote, parentID, childID); err != nil {
				return false, apperrors.Wrapf(err, "failed to promote %s edge to static", kind)
			}
		}
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, apperrors.Wrapf(err, "failed to check %s edge", kind)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (parent_id, child_id, static) VALUES ($1, $2, $3)`, edges)
	if _, err := querier.ExecContext(ctx, insert, parentID, childID, static); err != nil {
		return false, apperrors.Wrapf(err, "failed to insert %s edge", kind)
	}

	// Every (ancestor-of-parent, descendant-of-child) pair gains the product
	// of the path counts through the new edge; self rows make the parent and
	// child act as their own endpoints.
	fold := fmt.Sprintf(`INSERT INTO %s (ancestor_id, descendant_id, paths)
		SELECT a.ancestor_id, d.descendant_id, a.paths * d.paths
		FROM %s a
		JOIN %s d ON a.descendant_id = $1 AND d.ancestor_id = $2
		ON CONFLICT (ancestor_id, descendant_id)
		DO UPDATE SET paths = %s.paths + EXCLUDED.paths`, closure, closure, closure, closure)

	if _, err := querier.ExecContext(ctx, fold, parentID, childID); err != nil {
		return false, apperrors.Wrapf(err, "failed to extend %s closure", kind)
	}

	return true, nil
}

// RemoveEdge deletes a parent -> child edge and subtracts its contribution
// from the closure index. Removing an absent edge is a no-op.
func (r *PostgreSQLHierarchyRepository) RemoveEdge(ctx context.Context, kind domain.Kind, parentID, childID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)
	edges := edgeTable(kind)
	closure := closureTable(kind)

	del := fmt.Sprintf(`DELETE FROM %s WHERE parent_id = $1 AND child_id = $2`, edges)
	res, err := querier.ExecContext(ctx, del, parentID, childID)
	if err != nil {
		return apperrors.Wrapf(err, "failed to delete %s edge", kind)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return nil
	}

	// Paths ending at the parent and paths starting at the child cannot
	// themselves traverse the removed edge (the graph is acyclic), so their
	// counts are still valid for computing the edge's contribution.
	unfold := fmt.Sprintf(`UPDATE %s AS c
		SET paths = c.paths - a.paths * d.paths
		FROM %s a, %s d
		WHERE a.descendant_id = $1 AND d.ancestor_id = $2
		  AND c.ancestor_id = a.ancestor_id AND c.descendant_id = d.descendant_id`, closure, closure, closure)

	if _, err := querier.ExecContext(ctx, unfold, parentID, childID); err != nil {
		return apperrors.Wrapf(err, "failed to shrink %s closure", kind)
	}

	sweep := fmt.Sprintf(`DELETE FROM %s WHERE paths <= 0`, closure)
	if _, err := querier.ExecContext(ctx, sweep); err != nil {
		return apperrors.Wrapf(err, "failed to sweep %s closure", kind)
	}

	return nil
}

// HasPath reports whether descendant is reachable from ancestor via parent
// edges. A node always reaches itself.
func (r *PostgreSQLHierarchyRepository) HasPath(ctx context.Context, kind domain.Kind, ancestorID, descendantID uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`SELECT EXISTS (
			  SELECT 1 FROM %s WHERE ancestor_id = $1 AND descendant_id = $2)`, closureTable(kind))

	var exists bool
	if err := querier.QueryRowContext(ctx, query, ancestorID, descendantID).Scan(&exists); err != nil {
		return false, apperrors.Wrapf(err, "failed to check %s path", kind)
	}
	return exists, nil
}

// Ancestors returns the external ids of every node reachable from the given
// node via parent edges, including the node itself, ordered by external id.
func (r *PostgreSQLHierarchyRepository) Ancestors(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT e.ext_id
			  FROM %s c
			  JOIN %s e ON e.id = c.ancestor_id
			  WHERE c.descendant_id = $1
			  ORDER BY e.ext_id`, closureTable(kind), entityTable(kind))

	return r.queryExtIDs(ctx, kind, query, id)
}

// Descendants returns the external ids of every node reachable from the given
// node via child edges, including the node itself, ordered by external id.
func (r *PostgreSQLHierarchyRepository) Descendants(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT e.ext_id
			  FROM %s c
			  JOIN %s e ON e.id = c.descendant_id
			  WHERE c.ancestor_id = $1
			  ORDER BY e.ext_id`, closureTable(kind), entityTable(kind))

	return r.queryExtIDs(ctx, kind, query, id)
}

// Parents returns the external ids of the node's direct parents, ordered.
func (r *PostgreSQLHierarchyRepository) Parents(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT e.ext_id
			  FROM %s g
			  JOIN %s e ON e.id = g.parent_id
			  WHERE g.child_id = $1
			  ORDER BY e.ext_id`, edgeTable(kind), entityTable(kind))

	return r.queryExtIDs(ctx, kind, query, id)
}

// Children returns the external ids of the node's direct children, ordered.
func (r *PostgreSQLHierarchyRepository) Children(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT e.ext_id
			  FROM %s g
			  JOIN %s e ON e.id = g.child_id
			  WHERE g.parent_id = $1
			  ORDER BY e.ext_id`, edgeTable(kind), entityTable(kind))

	return r.queryExtIDs(ctx, kind, query, id)
}

// StaticParents returns the external ids of direct parents connected through
// reconciler-owned edges.
func (r *PostgreSQLHierarchyRepository) StaticParents(ctx context.Context, kind domain.Kind, childID uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT e.ext_id
			  FROM %s g
			  JOIN %s e ON e.id = g.parent_id
			  WHERE g.child_id = $1 AND g.static
			  ORDER BY e.ext_id`, edgeTable(kind), entityTable(kind))

	return r.queryExtIDs(ctx, kind, query, childID)
}

// StaticChildren returns the external ids of direct children connected
// through reconciler-owned edges.
func (r *PostgreSQLHierarchyRepository) StaticChildren(ctx context.Context, kind domain.Kind, parentID uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT e.ext_id
			  FROM %s g
			  JOIN %s e ON e.id = g.child_id
			  WHERE g.parent_id = $1 AND g.static
			  ORDER BY e.ext_id`, edgeTable(kind), entityTable(kind))

	return r.queryExtIDs(ctx, kind, query, parentID)
}

// DetachAll removes every edge incident to the node, repairing the closure
// for each. Used before deleting an entity so paths through it disappear.
func (r *PostgreSQLHierarchyRepository) DetachAll(ctx context.Context, kind domain.Kind, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`SELECT parent_id, child_id FROM %s WHERE parent_id = $1 OR child_id = $1`, edgeTable(kind))

	rows, err := querier.QueryContext(ctx, query, id)
	if err != nil {
		return apperrors.Wrapf(err, "failed to list %s edges for detach", kind)
	}

	type edge struct{ parent, child uuid.UUID }
	var edges []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.parent, &e.child); err != nil {
			rows.Close()
			return apperrors.Wrap(err, "failed to scan edge")
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return apperrors.Wrapf(err, "failed to iterate %s edges", kind)
	}
	rows.Close()

	for _, e := range edges {
		if err := r.RemoveEdge(ctx, kind, e.parent, e.child); err != nil {
			return err
		}
	}
	return nil
}

// queryExtIDs runs a single-column ext_id query and collects the results.
func (r *PostgreSQLHierarchyRepository) queryExtIDs(ctx context.Context, kind domain.Kind, query string, args ...any) ([]string, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to query %s hierarchy", kind)
	}
	defer rows.Close()

	var extIDs []string
	for rows.Next() {
		var extID string
		if err := rows.Scan(&extID); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan ext_id")
		}
		extIDs = append(extIDs, extID)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrapf(err, "failed to iterate %s hierarchy", kind)
	}

	return extIDs, nil
}
