package usecase

import (
	"context"
	"log/slog"

	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/database"
	"github.com/jwilger/authorizir/internal/ident"

	apperrors "github.com/jwilger/authorizir/internal/errors"
)

// HierarchyUseCase mutates and queries the three entity DAGs.
type HierarchyUseCase struct {
	txManager     database.TxManager
	entityRepo    EntityRepository
	hierarchyRepo HierarchyRepository
	logger        *slog.Logger
}

// NewHierarchyUseCase creates a new HierarchyUseCase
func NewHierarchyUseCase(
	txManager database.TxManager,
	entityRepo EntityRepository,
	hierarchyRepo HierarchyRepository,
	logger *slog.Logger,
) *HierarchyUseCase {
	return &HierarchyUseCase{
		txManager:     txManager,
		entityRepo:    entityRepo,
		hierarchyRepo: hierarchyRepo,
		logger:        logger,
	}
}

// AddChild inserts a dynamic parent -> child edge. Both endpoints must be
// registered and the edge must not create a cycle. Re-adding an existing
// edge succeeds silently.
func (uc *HierarchyUseCase) AddChild(ctx context.Context, kind domain.Kind, parent, child any) error {
	parentExt, childExt, err := normalizeEdge(parent, child)
	if err != nil {
		return err
	}

	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		return uc.addEdge(ctx, kind, parentExt, childExt, false)
	})
}

// addEdge is the transaction-scoped edge insertion shared with the reconciler.
func (uc *HierarchyUseCase) addEdge(ctx context.Context, kind domain.Kind, parentExt, childExt string, static bool) error {
	parentEntity, childEntity, err := uc.resolveEdge(ctx, kind, parentExt, childExt)
	if err != nil {
		return err
	}

	if parentEntity.ID == childEntity.ID {
		return domain.ErrCyclicEdge
	}

	// The edge parent -> child closes a cycle exactly when the child already
	// reaches the parent. The supremum reaches every registered node, so no
	// edge with the supremum as child can ever pass this check.
	cyclic, err := uc.hierarchyRepo.HasPath(ctx, kind, childEntity.ID, parentEntity.ID)
	if err != nil {
		return err
	}
	if cyclic {
		return domain.ErrCyclicEdge
	}

	inserted, err := uc.hierarchyRepo.AddEdge(ctx, kind, parentEntity.ID, childEntity.ID, static)
	if err != nil {
		return err
	}
	if inserted {
		uc.logger.Debug("edge added",
			slog.String("kind", kind.String()),
			slog.String("parent", parentExt),
			slog.String("child", childExt),
			slog.Bool("static", static),
		)
	}
	return nil
}

// RemoveChild deletes a parent -> child edge. Removing an absent edge
// succeeds silently; unknown endpoints are still rejected.
func (uc *HierarchyUseCase) RemoveChild(ctx context.Context, kind domain.Kind, parent, child any) error {
	parentExt, childExt, err := normalizeEdge(parent, child)
	if err != nil {
		return err
	}

	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		return uc.removeEdge(ctx, kind, parentExt, childExt)
	})
}

// removeEdge is the transaction-scoped edge removal shared with the reconciler.
func (uc *HierarchyUseCase) removeEdge(ctx context.Context, kind domain.Kind, parentExt, childExt string) error {
	parentEntity, childEntity, err := uc.resolveEdge(ctx, kind, parentExt, childExt)
	if err != nil {
		return err
	}
	return uc.hierarchyRepo.RemoveEdge(ctx, kind, parentEntity.ID, childEntity.ID)
}

// Ancestors returns the node and everything above it, ordered by external id.
func (uc *HierarchyUseCase) Ancestors(ctx context.Context, kind domain.Kind, extID any) ([]string, error) {
	entity, err := uc.resolveNode(ctx, kind, extID)
	if err != nil {
		return nil, err
	}
	return uc.hierarchyRepo.Ancestors(ctx, kind, entity.ID)
}

// Descendants returns the node and everything below it, ordered by external id.
func (uc *HierarchyUseCase) Descendants(ctx context.Context, kind domain.Kind, extID any) ([]string, error) {
	entity, err := uc.resolveNode(ctx, kind, extID)
	if err != nil {
		return nil, err
	}
	return uc.hierarchyRepo.Descendants(ctx, kind, entity.ID)
}

// Parents returns the node's direct parents, ordered by external id.
func (uc *HierarchyUseCase) Parents(ctx context.Context, kind domain.Kind, extID any) ([]string, error) {
	entity, err := uc.resolveNode(ctx, kind, extID)
	if err != nil {
		return nil, err
	}
	return uc.hierarchyRepo.Parents(ctx, kind, entity.ID)
}

// Children returns the node's direct children, ordered by external id.
func (uc *HierarchyUseCase) Children(ctx context.Context, kind domain.Kind, extID any) ([]string, error) {
	entity, err := uc.resolveNode(ctx, kind, extID)
	if err != nil {
		return nil, err
	}
	return uc.hierarchyRepo.Children(ctx, kind, entity.ID)
}

// Members returns the external ids of every descendant of the node,
// excluding the node itself, ordered by external id.
func (uc *HierarchyUseCase) Members(ctx context.Context, kind domain.Kind, extID any) ([]string, error) {
	entity, err := uc.resolveNode(ctx, kind, extID)
	if err != nil {
		return nil, err
	}

	descendants, err := uc.hierarchyRepo.Descendants(ctx, kind, entity.ID)
	if err != nil {
		return nil, err
	}

	members := make([]string, 0, len(descendants))
	for _, ext := range descendants {
		if ext != entity.ExtID {
			members = append(members, ext)
		}
	}
	return members, nil
}

// resolveNode normalizes and resolves a node id, surfacing ErrEntityNotFound
// for unknown ids.
func (uc *HierarchyUseCase) resolveNode(ctx context.Context, kind domain.Kind, extID any) (*domain.Entity, error) {
	ext, err := ident.Normalize(extID)
	if err != nil {
		return nil, err
	}
	if ext == "" {
		return nil, domain.ErrEntityNotFound
	}
	return uc.entityRepo.GetByExtID(ctx, kind, ext)
}

// resolveEdge resolves both edge endpoints, mapping missing rows to
// ErrInvalidParent and ErrInvalidChild respectively.
func (uc *HierarchyUseCase) resolveEdge(ctx context.Context, kind domain.Kind, parentExt, childExt string) (*domain.Entity, *domain.Entity, error) {
	if parentExt == "" {
		return nil, nil, domain.ErrInvalidParent
	}
	if childExt == "" {
		return nil, nil, domain.ErrInvalidChild
	}

	parentEntity, err := uc.entityRepo.GetByExtID(ctx, kind, parentExt)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, domain.ErrInvalidParent
		}
		return nil, nil, err
	}

	childEntity, err := uc.entityRepo.GetByExtID(ctx, kind, childExt)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, domain.ErrInvalidChild
		}
		return nil, nil, err
	}

	return parentEntity, childEntity, nil
}

// normalizeEdge normalizes both endpoints of an edge operation.
func normalizeEdge(parent, child any) (string, string, error) {
	parentExt, err := ident.Normalize(parent)
	if err != nil {
		return "", "", err
	}
	childExt, err := ident.Normalize(child)
	if err != nil {
		return "", "", err
	}
	return parentExt, childExt, nil
}
