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

// MySQLHierarchyRepository maintains the parent/child edges and the
// transitive-closure index for MySQL. Semantics match the PostgreSQL
// implementation; only the upsert and join syntax differ.
type MySQLHierarchyRepository struct {
	db *sql.DB
}

// NewMySQLHierarchyRepository creates a new MySQLHierarchyRepository
func NewMySQLHierarchyRepository(db *sql.DB) *MySQLHierarchyRepository {
	return &MySQLHierarchyRepository{
		db: db,
	}
}

// AddEdge inserts a parent -> child edge and folds it into the closure index.
// Returns false without touching the closure when the edge already exists; an
// existing dynamic edge is promoted to static when the reconciler re-adds it.
func (r *MySQLHierarchyRepository) AddEdge(ctx context.Context, kind domain.Kind, parentID, childID uuid.UUID, static bool) (bool, error) {
	querier := database.GetTx(ctx, r.db)
	edges := edgeTable(kind)
	closure := closureTable(kind)

	var existingStatic bool
	check := fmt.Sprintf(`SELECT static FROM %s WHERE parent_id = ? AND child_id = ?`, edges)
	err := querier.QueryRowContext(ctx, check, parentID, childID).Scan(&existingStatic)
	switch {
	case err == nil:
		if static && !existingStatic {
			promote := fmt.Sprintf(`UPDATE %s SET static = TRUE WHERE parent_id = ? AND child_id = ?`, edges)
			if _, err := querier.ExecContext(ctx, promote, parentID, childID); err != nil {
				return false, apperrors.Wrapf(err, "failed to promote %s edge to static", kind)
			}
		}
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, apperrors.Wrapf(err, "failed to check %s edge", kind)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (parent_id, child_id, static) VALUES (?, ?, ?)`, edges)
	if _, err := querier.ExecContext(ctx, insert, parentID, childID, static); err != nil {
		return false, apperrors.Wrapf(err, "failed to insert %s edge", kind)
	}

	// Every (ancestor-of-parent, descendant-of-child) pair gains the product
	// of the path counts through the new edge.
	fold := fmt.Sprintf(`INSERT INTO %s (ancestor_id, descendant_id, paths)
		SELECT * FROM (
			SELECT a.ancestor_id AS ancestor_id, d.descendant_id AS descendant_id, a.paths * d.paths AS paths
			FROM %s a
			JOIN %s d ON a.descendant_id = ? AND d.ancestor_id = ?
		) AS grown
		ON DUPLICATE KEY UPDATE paths = %s.paths + grown.paths`, closure, closure, closure, closure)

	if _, err := querier.ExecContext(ctx, fold, parentID, childID); err != nil {
		return false, apperrors.Wrapf(err, "failed to extend %s closure", kind)
	}

	return true, nil
}

// RemoveEdge deletes a parent -> child edge and subtracts its contribution
// from the closure index. Removing an absent edge is a no-op.
func (r *MySQLHierarchyRepository) RemoveEdge(ctx context.Context, kind domain.Kind, parentID, childID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)
	edges := edgeTable(kind)
	closure := closureTable(kind)

	del := fmt.Sprintf(`DELETE FROM %s WHERE parent_id = ? AND child_id = ?`, edges)
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
	// themselves traverse the removed edge, so their counts are still valid
	// for computing the edge's contribution.
	unfold := fmt.Sprintf(`UPDATE %s c
		JOIN %s a ON a.descendant_id = ?
		JOIN %s d ON d.ancestor_id = ?
		SET c.paths = c.paths - a.paths * d.paths
		WHERE c.ancestor_id = a.ancestor_id AND c.descendant_id = d.descendant_id`, closure, closure, closure)

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
func (r *MySQLHierarchyRepository) HasPath(ctx context.Context, kind domain.Kind, ancestorID, descendantID uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`SELECT EXISTS (
			  SELECT 1 FROM %s WHERE ancestor_id = ? AND descendant_id = ?)`, closureTable(kind))

	var exists bool
	if err := querier.QueryRowContext(ctx, query, ancestorID, descendantID).Scan(&exists); err != nil {
		return false, apperrors.Wrapf(err, "failed to check %s path", kind)
	}
	return exists, nil
}

// Ancestors returns the external ids of every node reachable from the given
// node via parent edges, including the node itself, ordered by external id.
func (r *MySQLHierarchyRepository) Ancestors(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT e.ext_id
			  FROM %s c
			  JOIN %s e ON e.id = c.ancestor_id
			  WHERE c.descendant_id = ?
			  ORDER BY e.ext_id`, closureTable(kind), entityTable(kind))

	return r.queryExtIDs(ctx, kind, query, id)
}

// Descendants returns the external ids of every node reachable from the given
// node via child edges, including the node itself, ordered by external id.
func (r *MySQLHierarchyRepository) Descendants(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT e.ext_id
			  FROM %s c
			  JOIN %s e ON e.id = c.descendant_id
			  WHERE c.ancestor_id = ?
			  ORDER BY e.ext_id`, closureTable(kind), entityTable(kind))

	return r.queryExtIDs(ctx, kind, query, id)
}

// Parents returns the external ids of the node's direct parents, ordered.
func (r *MySQLHierarchyRepository) Parents(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT e.ext_id
			  FROM %s g
			  JOIN %s e ON e.id = g.parent_id
			  WHERE g.child_id = ?
			  ORDER BY e.ext_id`, edgeTable(kind), entityTable(kind))

	return r.queryExtIDs(ctx, kind, query, id)
}

// Children returns the external ids of the node's direct children, ordered.
func (r *MySQLHierarchyRepository) Children(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT e.ext_id
			  FROM %s g
			  JOIN %s e ON e.id = g.child_id
			  WHERE g.parent_id = ?
			  ORDER BY e.ext_id`, edgeTable(kind), entityTable(kind))

	return r.queryExtIDs(ctx, kind, query, id)
}

// StaticParents returns the external ids of direct parents connected through
// reconciler-owned edges.
func (r *MySQLHierarchyRepository) StaticParents(ctx context.Context, kind domain.Kind, childID uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT e.ext_id
			  FROM %s g
			  JOIN %s e ON e.id = g.parent_id
			  WHERE g.child_id = ? AND g.static
			  ORDER BY e.ext_id`, edgeTable(kind), entityTable(kind))

	return r.queryExtIDs(ctx, kind, query, childID)
}

// StaticChildren returns the external ids of direct children connected
// through reconciler-owned edges.
func (r *MySQLHierarchyRepository) StaticChildren(ctx context.Context, kind domain.Kind, parentID uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT e.ext_id
			  FROM %s g
			  JOIN %s e ON e.id = g.child_id
			  WHERE g.parent_id = ? AND g.static
			  ORDER BY e.ext_id`, edgeTable(kind), entityTable(kind))

	return r.queryExtIDs(ctx, kind, query, parentID)
}

// DetachAll removes every edge incident to the node, repairing the closure
// for each. Used before deleting an entity so paths through it disappear.
func (r *MySQLHierarchyRepository) DetachAll(ctx context.Context, kind domain.Kind, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`SELECT parent_id, child_id FROM %s WHERE parent_id = ? OR child_id = ?`, edgeTable(kind))

	rows, err := querier.QueryContext(ctx, query, id, id)
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
func (r *MySQLHierarchyRepository) queryExtIDs(ctx context.Context, kind domain.Kind, query string, args ...any) ([]string, error) {
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
