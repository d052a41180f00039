package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/database"

	apperrors "github.com/jwilger/authorizir/internal/errors"
)

// ErrRuleNotFound indicates no rule exists for the queried triple.
var ErrRuleNotFound = apperrors.Wrap(apperrors.ErrNotFound, "rule not found")

// PostgreSQLRuleRepository handles access rule persistence for PostgreSQL
type PostgreSQLRuleRepository struct {
	db *sql.DB
}

// NewPostgreSQLRuleRepository creates a new PostgreSQLRuleRepository
func NewPostgreSQLRuleRepository(db *sql.DB) *PostgreSQLRuleRepository {
	return &PostgreSQLRuleRepository{
		db: db,
	}
}

// Get retrieves the rule for a triple, or ErrRuleNotFound.
func (r *PostgreSQLRuleRepository) Get(ctx context.Context, subjectID, objectID, permissionID uuid.UUID) (*domain.Rule, error) {
	var rule domain.Rule
	querier := database.GetTx(ctx, r.db)

	query := `SELECT subject_id, object_id, permission_id, sign, static, created_at
			  FROM rules WHERE subject_id = $1 AND object_id = $2 AND permission_id = $3`

	err := querier.QueryRowContext(ctx, query, subjectID, objectID, permissionID).Scan(
		&rule.SubjectID, &rule.ObjectID, &rule.PermissionID, &rule.Sign, &rule.Static, &rule.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get rule")
	}

	return &rule, nil
}

// Insert persists a new rule. The caller has already established that no rule
// exists for the triple.
func (r *PostgreSQLRuleRepository) Insert(ctx context.Context, rule *domain.Rule) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO rules (subject_id, object_id, permission_id, sign, static)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(ctx, query, rule.SubjectID, rule.ObjectID, rule.PermissionID, rule.Sign, rule.Static)
	if err != nil {
		return apperrors.Wrap(err, "failed to insert rule")
	}
	return nil
}

// Delete removes the rule matching the triple and sign. Absence is success.
func (r *PostgreSQLRuleRepository) Delete(ctx context.Context, subjectID, objectID, permissionID uuid.UUID, sign domain.Sign) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM rules
			  WHERE subject_id = $1 AND object_id = $2 AND permission_id = $3 AND sign = $4`

	if _, err := querier.ExecContext(ctx, query, subjectID, objectID, permissionID, sign); err != nil {
		return apperrors.Wrap(err, "failed to delete rule")
	}
	return nil
}

// DeleteStatic removes every reconciler-owned rule.
func (r *PostgreSQLRuleRepository) DeleteStatic(ctx context.Context) error {
	querier := database.GetTx(ctx, r.db)

	if _, err := querier.ExecContext(ctx, `DELETE FROM rules WHERE static`); err != nil {
		return apperrors.Wrap(err, "failed to delete static rules")
	}
	return nil
}

// ListBySubject returns every rule whose subject matches, with endpoints
// resolved to external ids, in deterministic order.
func (r *PostgreSQLRuleRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]domain.RuleView, error) {
	query := `SELECT s.ext_id, o.ext_id, p.ext_id, r.sign
			  FROM rules r
			  JOIN subjects s ON s.id = r.subject_id
			  JOIN objects o ON o.id = r.object_id
			  JOIN permissions p ON p.id = r.permission_id
			  WHERE r.subject_id = $1
			  ORDER BY s.ext_id, o.ext_id, p.ext_id, r.sign`

	return r.queryRuleViews(ctx, query, subjectID)
}

// ListByObject returns every rule whose object matches, with endpoints
// resolved to external ids, in deterministic order.
func (r *PostgreSQLRuleRepository) ListByObject(ctx context.Context, objectID uuid.UUID) ([]domain.RuleView, error) {
	query := `SELECT s.ext_id, o.ext_id, p.ext_id, r.sign
			  FROM rules r
			  JOIN subjects s ON s.id = r.subject_id
			  JOIN objects o ON o.id = r.object_id
			  JOIN permissions p ON p.id = r.permission_id
			  WHERE r.object_id = $1
			  ORDER BY s.ext_id, o.ext_id, p.ext_id, r.sign`

	return r.queryRuleViews(ctx, query, objectID)
}

// AnyNegative reports whether a negative rule applies to the query triple: a
// '-' rule whose subject is an ancestor of the subject, whose object is an
// ancestor of the object, and whose permission is implied by the query
// permission or is the permission supremum. The supremum arm makes a blanket
// deny veto every specific permission.
func (r *PostgreSQLRuleRepository) AnyNegative(ctx context.Context, subjectID, objectID, permissionID, permissionSupremumID uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT EXISTS (
			  SELECT 1 FROM rules r
			  JOIN subject_closure sc ON sc.ancestor_id = r.subject_id AND sc.descendant_id = $1
			  JOIN object_closure oc ON oc.ancestor_id = r.object_id AND oc.descendant_id = $2
			  WHERE r.sign = '-'
			    AND (r.permission_id = $4
			         OR EXISTS (
			             SELECT 1 FROM permission_closure pc
			             WHERE pc.ancestor_id = $3 AND pc.descendant_id = r.permission_id)))`

	var exists bool
	err := querier.QueryRowContext(ctx, query, subjectID, objectID, permissionID, permissionSupremumID).Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to evaluate negative rules")
	}
	return exists, nil
}

// AnyPositive reports whether a positive rule applies to the query triple: a
// '+' rule whose subject and object are ancestors of the query's, and whose
// permission is an ancestor of (stronger than or equal to) the query's.
func (r *PostgreSQLRuleRepository) AnyPositive(ctx context.Context, subjectID, objectID, permissionID uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT EXISTS (
			  SELECT 1 FROM rules r
			  JOIN subject_closure sc ON sc.ancestor_id = r.subject_id AND sc.descendant_id = $1
			  JOIN object_closure oc ON oc.ancestor_id = r.object_id AND oc.descendant_id = $2
			  JOIN permission_closure pc ON pc.ancestor_id = r.permission_id AND pc.descendant_id = $3
			  WHERE r.sign = '+')`

	var exists bool
	err := querier.QueryRowContext(ctx, query, subjectID, objectID, permissionID).Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to evaluate positive rules")
	}
	return exists, nil
}

// queryRuleViews runs a rule listing query and collects the result rows.
func (r *PostgreSQLRuleRepository) queryRuleViews(ctx context.Context, query string, args ...any) ([]domain.RuleView, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list rules")
	}
	defer rows.Close()

	var views []domain.RuleView
	for rows.Next() {
		var v domain.RuleView
		if err := rows.Scan(&v.Subject, &v.Object, &v.Permission, &v.Sign); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan rule")
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate rules")
	}

	return views, nil
}
