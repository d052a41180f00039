package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/database"

	apperrors "github.com/jwilger/authorizir/internal/errors"
)

// DecisionMetrics records authorization decision observability data.
type DecisionMetrics interface {
	RecordDecision(ctx context.Context, outcome string)
	RecordDuration(ctx context.Context, operation string, duration time.Duration, status string)
}

// DecisionUseCase answers authorization queries. Negative rules are evaluated
// first and win unconditionally over any reachable positive rule; a query no
// rule applies to is denied.
type DecisionUseCase struct {
	txManager  database.TxManager
	entityRepo EntityRepository
	ruleRepo   RuleRepository
	metrics    DecisionMetrics
	logger     *slog.Logger

	// suprema caches the surrogate keys of the supremum rows. They are
	// created once at bootstrap and never deleted, so the cache never
	// invalidates; singleflight collapses concurrent first lookups.
	suprema      map[domain.Kind]uuid.UUID
	supremaMu    sync.RWMutex
	supremaGroup singleflight.Group
}

// NewDecisionUseCase creates a new DecisionUseCase. metrics may be nil when
// metrics collection is disabled.
func NewDecisionUseCase(
	txManager database.TxManager,
	entityRepo EntityRepository,
	ruleRepo RuleRepository,
	metrics DecisionMetrics,
	logger *slog.Logger,
) *DecisionUseCase {
	return &DecisionUseCase{
		txManager:  txManager,
		entityRepo: entityRepo,
		ruleRepo:   ruleRepo,
		metrics:    metrics,
		logger:     logger,
		suprema:    make(map[domain.Kind]uuid.UUID),
	}
}

// Decide evaluates the query triple and returns the decision. Unknown
// endpoints surface as ErrInvalidSubject / ErrInvalidObject /
// ErrInvalidPermission.
func (uc *DecisionUseCase) Decide(ctx context.Context, subject, object, permission any) (domain.Decision, error) {
	start := time.Now()

	s, o, p, err := normalizeTriple(subject, object, permission)
	if err != nil {
		return domain.DecisionDenied, err
	}

	decision := domain.DecisionDenied
	// A single transaction gives the evaluation a consistent snapshot of the
	// closure tables and rules.
	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var evalErr error
		decision, evalErr = uc.evaluate(ctx, s, o, p)
		return evalErr
	})

	if uc.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		uc.metrics.RecordDuration(ctx, "decide", time.Since(start), status)
		if err == nil {
			uc.metrics.RecordDecision(ctx, decision.String())
		}
	}

	if err != nil {
		return domain.DecisionDenied, err
	}

	uc.logger.Debug("authorization decided",
		slog.String("subject", s),
		slog.String("object", o),
		slog.String("permission", p),
		slog.String("decision", decision.String()),
	)
	return decision, nil
}

// Enforce is the enforcement-point form of Decide: nil on granted,
// ErrAccessDenied on denied, ErrInvalid* on unknown endpoints.
func (uc *DecisionUseCase) Enforce(ctx context.Context, subject, object, permission any) error {
	decision, err := uc.Decide(ctx, subject, object, permission)
	if err != nil {
		return err
	}
	if !decision.Granted() {
		return domain.ErrAccessDenied
	}
	return nil
}

// evaluate runs the two closure-set existence checks inside the caller's
// transaction.
func (uc *DecisionUseCase) evaluate(ctx context.Context, subjectExt, objectExt, permissionExt string) (domain.Decision, error) {
	subject, object, permission, err := uc.resolveTriple(ctx, subjectExt, objectExt, permissionExt)
	if err != nil {
		return domain.DecisionDenied, err
	}

	permissionSupremumID, err := uc.supremumID(ctx, domain.KindPermission)
	if err != nil {
		return domain.DecisionDenied, err
	}

	// Negative first: any '-' rule on an ancestor subject and object whose
	// permission is implied by the query's, or is the permission supremum,
	// vetoes the query regardless of positive rules.
	denied, err := uc.ruleRepo.AnyNegative(ctx, subject.ID, object.ID, permission.ID, permissionSupremumID)
	if err != nil {
		return domain.DecisionDenied, err
	}
	if denied {
		return domain.DecisionDenied, nil
	}

	granted, err := uc.ruleRepo.AnyPositive(ctx, subject.ID, object.ID, permission.ID)
	if err != nil {
		return domain.DecisionDenied, err
	}
	if granted {
		return domain.DecisionGranted, nil
	}

	// Closed world: no applicable rule means denied.
	return domain.DecisionDenied, nil
}

// resolveTriple resolves the query endpoints with per-endpoint errors.
func (uc *DecisionUseCase) resolveTriple(ctx context.Context, subjectExt, objectExt, permissionExt string) (*domain.Entity, *domain.Entity, *domain.Entity, error) {
	if subjectExt == "" {
		return nil, nil, nil, domain.ErrInvalidSubject
	}
	if objectExt == "" {
		return nil, nil, nil, domain.ErrInvalidObject
	}
	if permissionExt == "" {
		return nil, nil, nil, domain.ErrInvalidPermission
	}

	subject, err := uc.entityRepo.GetByExtID(ctx, domain.KindSubject, subjectExt)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, nil, domain.ErrInvalidSubject
		}
		return nil, nil, nil, err
	}

	object, err := uc.entityRepo.GetByExtID(ctx, domain.KindObject, objectExt)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, nil, domain.ErrInvalidObject
		}
		return nil, nil, nil, err
	}

	permission, err := uc.entityRepo.GetByExtID(ctx, domain.KindPermission, permissionExt)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, nil, domain.ErrInvalidPermission
		}
		return nil, nil, nil, err
	}

	return subject, object, permission, nil
}

// supremumID resolves and caches the surrogate key of a kind's supremum.
func (uc *DecisionUseCase) supremumID(ctx context.Context, kind domain.Kind) (uuid.UUID, error) {
	uc.supremaMu.RLock()
	id, ok := uc.suprema[kind]
	uc.supremaMu.RUnlock()
	if ok {
		return id, nil
	}

	v, err, _ := uc.supremaGroup.Do(kind.String(), func() (any, error) {
		entity, err := uc.entityRepo.GetByExtID(ctx, kind, domain.SupremumExtID)
		if err != nil {
			return uuid.Nil, err
		}
		uc.supremaMu.Lock()
		uc.suprema[kind] = entity.ID
		uc.supremaMu.Unlock()
		return entity.ID, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}
