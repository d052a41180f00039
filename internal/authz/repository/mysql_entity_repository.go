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

// MySQLEntityRepository handles entity persistence for MySQL
type MySQLEntityRepository struct {
	db *sql.DB
}

// NewMySQLEntityRepository creates a new MySQLEntityRepository
func NewMySQLEntityRepository(db *sql.DB) *MySQLEntityRepository {
	return &MySQLEntityRepository{
		db: db,
	}
}

// Upsert inserts an entity or, on external-id collision, updates description
// and static flag in place. MySQL has no RETURNING, so the existing row is
// looked up first inside the surrounding transaction.
func (r *MySQLEntityRepository) Upsert(ctx context.Context, kind domain.Kind, entity *domain.Entity) error {
	querier := database.GetTx(ctx, r.db)
	table := entityTable(kind)

	var existingID uuid.UUID
	lookup := fmt.Sprintf(`SELECT id FROM %s WHERE ext_id = ?`, table)
	err := querier.QueryRowContext(ctx, lookup, entity.ExtID).Scan(&existingID)
	switch {
	case err == nil:
		entity.ID = existingID
		update := fmt.Sprintf(`UPDATE %s SET description = ?, static = ? WHERE id = ?`, table)
		if _, err := querier.ExecContext(ctx, update, entity.Description, entity.Static, entity.ID); err != nil {
			return apperrors.Wrapf(err, "failed to update %s", kind)
		}
	case errors.Is(err, sql.ErrNoRows):
		if entity.ID == uuid.Nil {
			entity.ID = uuid.Must(uuid.NewV7())
		}
		insert := fmt.Sprintf(`INSERT INTO %s (id, ext_id, description, static) VALUES (?, ?, ?, ?)`, table)
		if _, err := querier.ExecContext(ctx, insert, entity.ID, entity.ExtID, entity.Description, entity.Static); err != nil {
			return apperrors.Wrapf(err, "failed to insert %s", kind)
		}
	default:
		return apperrors.Wrapf(err, "failed to look up %s", kind)
	}

	selfRow := fmt.Sprintf(`INSERT IGNORE INTO %s (ancestor_id, descendant_id, paths) VALUES (?, ?, 1)`, closureTable(kind))
	if _, err := querier.ExecContext(ctx, selfRow, entity.ID, entity.ID); err != nil {
		return apperrors.Wrapf(err, "failed to seed %s closure self row", kind)
	}

	refresh := fmt.Sprintf(`SELECT created_at, updated_at FROM %s WHERE id = ?`, table)
	if err := querier.QueryRowContext(ctx, refresh, entity.ID).Scan(&entity.CreatedAt, &entity.UpdatedAt); err != nil {
		return apperrors.Wrapf(err, "failed to reload %s timestamps", kind)
	}

	return nil
}

// GetByExtID retrieves an entity by its canonical external id
func (r *MySQLEntityRepository) GetByExtID(ctx context.Context, kind domain.Kind, extID string) (*domain.Entity, error) {
	var entity domain.Entity
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`SELECT id, ext_id, description, static, created_at, updated_at
			  FROM %s WHERE ext_id = ?`, entityTable(kind))

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
// the closure index stays consistent.
func (r *MySQLEntityRepository) Delete(ctx context.Context, kind domain.Kind, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, entityTable(kind))

	if _, err := querier.ExecContext(ctx, query, id); err != nil {
		return apperrors.Wrapf(err, "failed to delete %s", kind)
	}
	return nil
}

// ListStaticExtIDs returns the external ids of all reconciler-owned entities
// of a kind, excluding the supremum, ordered by external id.
func (r *MySQLEntityRepository) ListStaticExtIDs(ctx context.Context, kind domain.Kind) ([]string, error) {
	querier := database.GetTx(ctx, r.db)

	query := fmt.Sprintf(`SELECT ext_id FROM %s WHERE static AND ext_id <> ? ORDER BY ext_id`, entityTable(kind))

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
