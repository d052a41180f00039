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

// PostgreSQLEntityRepository handles entity persistence for PostgreSQL
type PostgreSQLEntityRepository struct {
	db *sql.DB
}

// NewPostgreSQLEntityRepository creates a new PostgreSQLEntityRepository
func NewPostgreSQLEntityRepository(db *sql.DB) *PostgreSQLEntityRepository {
	return &PostgreSQLEntityRepository{
		db: db,
	}
}

// Upsert inserts an entity or, on external-id collision, updates description
// and static flag in place. The entity's ID is set to the persisted surrogate
// key either way, and the closure self row is ensured.
func (r *PostgreSQLEntityRepository) Upsert(ctx context.Context, kind domain.Kind, entity *domain.Entity) error {
	querier := database.GetTx(ctx, r.db)

	if entity.ID == uuid.Nil {
		entity.ID = uuid.Must(uuid.NewV7())
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, ext_id, description, static)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (ext_id) DO UPDATE
			  SET description = EXCLUDED.description, static = EXCLUDED.static, updated_at = NOW()
			  RETURNING id, created_at, updated_at`, entityTable(kind))

	err := querier.QueryRowContext(ctx, query, entity.ID, entity.ExtID, entity.Description, entity.Static).
		Scan(&entity.ID, &entity.CreatedAt, &entity.UpdatedAt)
	if err != nil {
		return apperrors.Wrapf(err, "failed to upsert %s", kind)
	}

	selfRow := fmt.Sprintf(`INSERT INTO %s (ancestor_id, descendant_id, paths)
			  VALUES ($1, $1, 1)
			  ON CONFLICT (ancestor_id, descendant_id) DO NOTHING`, closureTable(kind))

	if _, err := querier.ExecContext(ctx, selfRow, entity.ID); err != nil {
		return apperrors.Wrapf(err, "failed to seed %s closure self row", kind)
	}

	return nil
}

// GetByExtID retrieves an entity by its canonical external id
func (r *PostgreSQLEntityRepository) GetByExtID(ctx context.Context, kind domain.Kind, extID string) (*domain.Entity, error) {
	var entity domain.Entity
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`SELECT id, ext_id, description, static, created_at, updated_at
			  FROM %s WHERE ext_id = $1`, entityTable(kind))

	err := querier.QueryRowContext(ctx, query, extID).Scan(
		&entity.ID, &entity.ExtID, &entity.Description, &entity.Static, &entity.CreatedAt, &entity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, apperrors.Wrapf(err, "failed to get %s by ext_id", kind)
	}

	return &entity, nil
}

// Delete removes an entity row. Incident edges must already be detached so
// the closure index stays consistent; rules and remaining closure self rows
// go with the row via foreign keys.
func (r *PostgreSQLEntityRepository) Delete(ctx context.Context, kind domain.Kind, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, entityTable(kind))

	if _, err := querier.ExecContext(ctx, query, id); err != nil {
		return apperrors.Wrapf(err, "failed to delete %s", kind)
	}
	return nil
}

// ListStaticExtIDs returns the external ids of all reconciler-owned entities
// of a kind, excluding the supremum, ordered by external id.
func (r *PostgreSQLEntityRepository) ListStaticExtIDs(ctx context.Context, kind domain.Kind) ([]string, error) {
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`SELECT ext_id FROM %s WHERE static AND ext_id <> $1 ORDER BY ext_id`, entityTable(kind))

	rows, err := querier.QueryContext(ctx, query, domain.SupremumExtID)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to list static %s ext_ids", kind)
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
		return nil, apperrors.Wrapf(err, "failed to iterate static %s ext_ids", kind)
	}

	return extIDs, nil
}
