package usecase

import (
	"context"
	"log/slog"

	validation "github.com/jellydator/validation"

	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/database"
	"github.com/jwilger/authorizir/internal/ident"

	apperrors "github.com/jwilger/authorizir/internal/errors"
	appvalidation "github.com/jwilger/authorizir/internal/validation"
)

// RegistryUseCase handles entity registration and lookup across the three
// hierarchies. Rows created through the public surface are always dynamic;
// only the reconciler registers static rows.
type RegistryUseCase struct {
	txManager     database.TxManager
	entityRepo    EntityRepository
	hierarchyRepo HierarchyRepository
	logger        *slog.Logger
}

// NewRegistryUseCase creates a new RegistryUseCase
func NewRegistryUseCase(
	txManager database.TxManager,
	entityRepo EntityRepository,
	hierarchyRepo HierarchyRepository,
	logger *slog.Logger,
) *RegistryUseCase {
	return &RegistryUseCase{
		txManager:     txManager,
		entityRepo:    entityRepo,
		hierarchyRepo: hierarchyRepo,
		logger:        logger,
	}
}

// Register upserts a dynamic entity. The external id may be anything the
// identifier normalizer accepts. On collision the description is replaced and
// the row keeps its surrogate key.
func (uc *RegistryUseCase) Register(ctx context.Context, kind domain.Kind, extID any, description string) error {
	ext, err := ident.Normalize(extID)
	if err != nil {
		return err
	}

	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		return uc.register(ctx, kind, ext, description, false)
	})
}

// register is the transaction-scoped registration core shared with the
// reconciler, which runs it inside its own transactions with static = true.
func (uc *RegistryUseCase) register(ctx context.Context, kind domain.Kind, ext, description string, static bool) error {
	if ext == "" {
		return domain.ErrIDRequired
	}
	if err := validation.Validate(description, validation.Required, appvalidation.NotBlank); err != nil {
		return domain.ErrDescriptionRequired
	}

	supremum, err := uc.ensureSupremum(ctx, kind)
	if err != nil {
		return err
	}

	if ext == domain.SupremumExtID {
		// The supremum's description and ownership are fixed at bootstrap.
		return nil
	}

	entity := &domain.Entity{
		ExtID:       ext,
		Description: description,
		Static:      static,
	}
	if err := uc.entityRepo.Upsert(ctx, kind, entity); err != nil {
		return err
	}

	// A fresh node hangs off the supremum; a node that already reaches the
	// supremum through some parent keeps its existing wiring.
	reaches, err := uc.hierarchyRepo.HasPath(ctx, kind, supremum.ID, entity.ID)
	if err != nil {
		return err
	}
	if !reaches {
		if _, err := uc.hierarchyRepo.AddEdge(ctx, kind, supremum.ID, entity.ID, false); err != nil {
			return err
		}
	}

	uc.logger.Debug("entity registered",
		slog.String("kind", kind.String()),
		slog.String("ext_id", ext),
		slog.Bool("static", static),
	)

	return nil
}

// ensureSupremum upserts the supremum row for a kind and returns it.
func (uc *RegistryUseCase) ensureSupremum(ctx context.Context, kind domain.Kind) (*domain.Entity, error) {
	supremum, err := uc.entityRepo.GetByExtID(ctx, kind, domain.SupremumExtID)
	if err == nil {
		return supremum, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	supremum = &domain.Entity{
		ExtID:       domain.SupremumExtID,
		Description: domain.SupremumDescription,
		Static:      true,
	}
	if err := uc.entityRepo.Upsert(ctx, kind, supremum); err != nil {
		return nil, err
	}
	return supremum, nil
}

// Lookup resolves an entity by external id; "*" resolves to the supremum row.
func (uc *RegistryUseCase) Lookup(ctx context.Context, kind domain.Kind, extID any) (*domain.Entity, error) {
	ext, err := ident.Normalize(extID)
	if err != nil {
		return nil, err
	}
	if ext == "" {
		return nil, domain.ErrIDRequired
	}
	return uc.entityRepo.GetByExtID(ctx, kind, ext)
}

// Exists reports whether an entity with the given external id is registered.
func (uc *RegistryUseCase) Exists(ctx context.Context, kind domain.Kind, extID any) (bool, error) {
	_, err := uc.Lookup(ctx, kind, extID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Unregister deletes a dynamic entity together with its edges and rules.
// Static entities belong to the reconciler and the supremum is permanent.
func (uc *RegistryUseCase) Unregister(ctx context.Context, kind domain.Kind, extID any) error {
	ext, err := ident.Normalize(extID)
	if err != nil {
		return err
	}
	if ext == "" {
		return domain.ErrIDRequired
	}

	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		entity, err := uc.entityRepo.GetByExtID(ctx, kind, ext)
		if err != nil {
			return err
		}
		if entity.IsSupremum() {
			return domain.ErrSupremumImmutable
		}
		if entity.Static {
			return domain.ErrStaticEntity
		}
		return uc.remove(ctx, kind, entity)
	})
}

// remove detaches an entity from its hierarchy and deletes the row. Rules
// referencing it go with it via foreign keys.
func (uc *RegistryUseCase) remove(ctx context.Context, kind domain.Kind, entity *domain.Entity) error {
	if err := uc.hierarchyRepo.DetachAll(ctx, kind, entity.ID); err != nil {
		return err
	}
	if err := uc.entityRepo.Delete(ctx, kind, entity.ID); err != nil {
		return err
	}

	uc.logger.Debug("entity removed",
		slog.String("kind", kind.String()),
		slog.String("ext_id", entity.ExtID),
	)
	return nil
}
