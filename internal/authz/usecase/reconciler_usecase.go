package usecase

import (
	"context"
	"log/slog"

	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/database"
)

// AdvisoryLocker serializes reconciliation runs across engine instances
// sharing a database.
type AdvisoryLocker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// ReconcilerUseCase converges persisted static state to a declarative seed.
// Each phase runs in its own transaction under an advisory lock named from
// the engine identity, so concurrent deployments serialize their runs.
// Dynamic entities, edges, and rules are never touched.
type ReconcilerUseCase struct {
	txManager database.TxManager
	locker    AdvisoryLocker

	entityRepo    EntityRepository
	hierarchyRepo HierarchyRepository
	ruleRepo      RuleRepository

	registry  *RegistryUseCase
	hierarchy *HierarchyUseCase
	rules     *RuleUseCase

	logger *slog.Logger
}

// NewReconcilerUseCase creates a new ReconcilerUseCase
func NewReconcilerUseCase(
	txManager database.TxManager,
	locker AdvisoryLocker,
	entityRepo EntityRepository,
	hierarchyRepo HierarchyRepository,
	ruleRepo RuleRepository,
	registry *RegistryUseCase,
	hierarchy *HierarchyUseCase,
	rules *RuleUseCase,
	logger *slog.Logger,
) *ReconcilerUseCase {
	return &ReconcilerUseCase{
		txManager:     txManager,
		locker:        locker,
		entityRepo:    entityRepo,
		hierarchyRepo: hierarchyRepo,
		ruleRepo:      ruleRepo,
		registry:      registry,
		hierarchy:     hierarchy,
		rules:         rules,
		logger:        logger,
	}
}

// Init converges the database to the declarations. It is idempotent: running
// it twice with the same input changes nothing the second time.
func (uc *ReconcilerUseCase) Init(ctx context.Context, decls *domain.Declarations) error {
	uc.logger.Info("reconciliation starting",
		slog.Int("permissions", len(decls.Permissions)),
		slog.Int("roles", len(decls.Roles)),
		slog.Int("collections", len(decls.Collections)),
		slog.Int("rules", len(decls.Rules)),
	)

	phases := []struct {
		name string
		run  func(ctx context.Context, decls *domain.Declarations) error
	}{
		{"ensure suprema", uc.ensureSuprema},
		{"sweep orphans", uc.sweepOrphans},
		{"register entities", uc.registerEntities},
		{"rebuild rules", uc.rebuildRules},
		{"reconcile edges", uc.reconcileEdges},
	}

	for _, phase := range phases {
		err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
			if err := uc.locker.Acquire(ctx); err != nil {
				return err
			}
			defer func() {
				_ = uc.locker.Release(ctx)
			}()
			return phase.run(ctx, decls)
		})
		if err != nil {
			uc.logger.Error("reconciliation phase failed",
				slog.String("phase", phase.name),
				slog.Any("error", err),
			)
			return err
		}
		uc.logger.Debug("reconciliation phase complete", slog.String("phase", phase.name))
	}

	uc.logger.Info("reconciliation complete")
	return nil
}

// ensureSuprema makes sure each hierarchy has its supremum row.
func (uc *ReconcilerUseCase) ensureSuprema(ctx context.Context, _ *domain.Declarations) error {
	for _, kind := range []domain.Kind{domain.KindSubject, domain.KindObject, domain.KindPermission} {
		if _, err := uc.registry.ensureSupremum(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}

// sweepOrphans deletes static rules wholesale (they are rebuilt from the
// declarations) and static entities whose external id is no longer declared.
// Rules go first so entity deletion never violates foreign keys.
func (uc *ReconcilerUseCase) sweepOrphans(ctx context.Context, decls *domain.Declarations) error {
	if err := uc.ruleRepo.DeleteStatic(ctx); err != nil {
		return err
	}

	declared := declaredSets(decls)
	for _, kind := range []domain.Kind{domain.KindSubject, domain.KindObject, domain.KindPermission} {
		persisted, err := uc.entityRepo.ListStaticExtIDs(ctx, kind)
		if err != nil {
			return err
		}
		for _, ext := range persisted {
			if declared[kind][ext] {
				continue
			}
			entity, err := uc.entityRepo.GetByExtID(ctx, kind, ext)
			if err != nil {
				return err
			}
			if err := uc.registry.remove(ctx, kind, entity); err != nil {
				return err
			}
			uc.logger.Info("swept orphaned static entity",
				slog.String("kind", kind.String()),
				slog.String("ext_id", ext),
			)
		}
	}
	return nil
}

// registerEntities upserts every declared entity with static = true. Roles
// register as both subjects and objects under the same external id.
func (uc *ReconcilerUseCase) registerEntities(ctx context.Context, decls *domain.Declarations) error {
	for _, p := range decls.Permissions {
		if err := uc.registry.register(ctx, domain.KindPermission, p.ID, p.Description, true); err != nil {
			return err
		}
	}
	for _, r := range decls.Roles {
		if err := uc.registry.register(ctx, domain.KindSubject, r.ID, r.Description, true); err != nil {
			return err
		}
		if err := uc.registry.register(ctx, domain.KindObject, r.ID, r.Description, true); err != nil {
			return err
		}
	}
	for _, c := range decls.Collections {
		if err := uc.registry.register(ctx, domain.KindObject, c.ID, c.Description, true); err != nil {
			return err
		}
	}
	return nil
}

// rebuildRules re-creates every declared rule with static = true through the
// regular grant/deny path, so endpoint validation and conflict detection
// apply to declarations too.
func (uc *ReconcilerUseCase) rebuildRules(ctx context.Context, decls *domain.Declarations) error {
	for _, r := range decls.Rules {
		if err := uc.rules.putRule(ctx, r.To, r.On, r.Permission, r.Sign(), true); err != nil {
			return err
		}
	}
	return nil
}

// reconcileEdges diffs the declared static neighbor set of every declared
// entity against the persisted static edges: missing edges are added,
// undeclared static edges removed. Supremum edges are dynamic and therefore
// never part of the diff; dynamic edges pass through untouched.
func (uc *ReconcilerUseCase) reconcileEdges(ctx context.Context, decls *domain.Declarations) error {
	// Permissions declare downward: the declared entity is the parent and
	// its implications are the children.
	for _, p := range decls.Permissions {
		if err := uc.reconcileChildren(ctx, domain.KindPermission, p.ID, p.Implies); err != nil {
			return err
		}
	}

	// Roles declare upward in both the subject and object hierarchies:
	// "admin implies users" wires users -> admin.
	for _, r := range decls.Roles {
		for _, kind := range []domain.Kind{domain.KindSubject, domain.KindObject} {
			if err := uc.reconcileParents(ctx, kind, r.ID, r.Implies); err != nil {
				return err
			}
		}
	}

	// Collections declare upward in the object hierarchy.
	for _, c := range decls.Collections {
		if err := uc.reconcileParents(ctx, domain.KindObject, c.ID, c.In); err != nil {
			return err
		}
	}

	return nil
}

// reconcileParents converges the static parent set of a node.
func (uc *ReconcilerUseCase) reconcileParents(ctx context.Context, kind domain.Kind, ext string, declared []string) error {
	node, err := uc.entityRepo.GetByExtID(ctx, kind, ext)
	if err != nil {
		return err
	}

	current, err := uc.hierarchyRepo.StaticParents(ctx, kind, node.ID)
	if err != nil {
		return err
	}

	wanted := stringSet(declared)
	have := stringSet(current)

	for _, parent := range declared {
		if have[parent] {
			continue
		}
		if err := uc.hierarchy.addEdge(ctx, kind, parent, ext, true); err != nil {
			return err
		}
	}
	for _, parent := range current {
		if wanted[parent] {
			continue
		}
		if err := uc.hierarchy.removeEdge(ctx, kind, parent, ext); err != nil {
			return err
		}
	}
	return nil
}

// reconcileChildren converges the static child set of a node.
func (uc *ReconcilerUseCase) reconcileChildren(ctx context.Context, kind domain.Kind, ext string, declared []string) error {
	node, err := uc.entityRepo.GetByExtID(ctx, kind, ext)
	if err != nil {
		return err
	}

	current, err := uc.hierarchyRepo.StaticChildren(ctx, kind, node.ID)
	if err != nil {
		return err
	}

	wanted := stringSet(declared)
	have := stringSet(current)

	for _, child := range declared {
		if have[child] {
			continue
		}
		if err := uc.hierarchy.addEdge(ctx, kind, ext, child, true); err != nil {
			return err
		}
	}
	for _, child := range current {
		if wanted[child] {
			continue
		}
		if err := uc.hierarchy.removeEdge(ctx, kind, ext, child); err != nil {
			return err
		}
	}
	return nil
}

// declaredSets indexes the declared external ids per kind. Roles appear in
// both the subject and object sets; collections only in the object set.
func declaredSets(decls *domain.Declarations) map[domain.Kind]map[string]bool {
	sets := map[domain.Kind]map[string]bool{
		domain.KindSubject:    make(map[string]bool),
		domain.KindObject:     make(map[string]bool),
		domain.KindPermission: make(map[string]bool),
	}
	for _, p := range decls.Permissions {
		sets[domain.KindPermission][p.ID] = true
	}
	for _, r := range decls.Roles {
		sets[domain.KindSubject][r.ID] = true
		sets[domain.KindObject][r.ID] = true
	}
	for _, c := range decls.Collections {
		sets[domain.KindObject][c.ID] = true
	}
	return sets
}

// stringSet builds a membership set from a slice.
func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
