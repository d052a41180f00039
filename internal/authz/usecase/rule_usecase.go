package usecase

import (
	"context"
	"log/slog"

	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/database"
	"github.com/jwilger/authorizir/internal/ident"

	apperrors "github.com/jwilger/authorizir/internal/errors"
)

// RuleUseCase manages access rules. Rules created through the public surface
// are always dynamic; the reconciler rebuilds static rules through the same
// core with static = true.
type RuleUseCase struct {
	txManager  database.TxManager
	entityRepo EntityRepository
	ruleRepo   RuleRepository
	logger     *slog.Logger
}

// NewRuleUseCase creates a new RuleUseCase
func NewRuleUseCase(
	txManager database.TxManager,
	entityRepo EntityRepository,
	ruleRepo RuleRepository,
	logger *slog.Logger,
) *RuleUseCase {
	return &RuleUseCase{
		txManager:  txManager,
		entityRepo: entityRepo,
		ruleRepo:   ruleRepo,
		logger:     logger,
	}
}

// Grant records a positive rule for the triple. Granting an already granted
// triple succeeds silently; a denied triple fails with ErrConflictingRuleType.
func (uc *RuleUseCase) Grant(ctx context.Context, subject, object, permission any) error {
	return uc.put(ctx, subject, object, permission, domain.SignPositive)
}

// Deny records a negative rule for the triple. Denying an already denied
// triple succeeds silently; a granted triple fails with ErrConflictingRuleType.
func (uc *RuleUseCase) Deny(ctx context.Context, subject, object, permission any) error {
	return uc.put(ctx, subject, object, permission, domain.SignNegative)
}

// Revoke removes the positive rule for the triple, if any.
func (uc *RuleUseCase) Revoke(ctx context.Context, subject, object, permission any) error {
	return uc.drop(ctx, subject, object, permission, domain.SignPositive)
}

// Allow removes the negative rule for the triple, if any.
func (uc *RuleUseCase) Allow(ctx context.Context, subject, object, permission any) error {
	return uc.drop(ctx, subject, object, permission, domain.SignNegative)
}

func (uc *RuleUseCase) put(ctx context.Context, subject, object, permission any, sign domain.Sign) error {
	s, o, p, err := normalizeTriple(subject, object, permission)
	if err != nil {
		return err
	}

	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		return uc.putRule(ctx, s, o, p, sign, false)
	})
}

// putRule is the transaction-scoped rule insertion shared with the reconciler.
func (uc *RuleUseCase) putRule(ctx context.Context, subjectExt, objectExt, permissionExt string, sign domain.Sign, static bool) error {
	subject, object, permission, err := uc.resolveTriple(ctx, subjectExt, objectExt, permissionExt)
	if err != nil {
		return err
	}

	existing, err := uc.ruleRepo.Get(ctx, subject.ID, object.ID, permission.ID)
	switch {
	case err == nil:
		if existing.Sign == sign {
			return nil
		}
		return domain.ErrConflictingRuleType
	case !apperrors.Is(err, apperrors.ErrNotFound):
		return err
	}

	rule := &domain.Rule{
		SubjectID:    subject.ID,
		ObjectID:     object.ID,
		PermissionID: permission.ID,
		Sign:         sign,
		Static:       static,
	}
	if err := uc.ruleRepo.Insert(ctx, rule); err != nil {
		return err
	}

	uc.logger.Debug("rule recorded",
		slog.String("subject", subjectExt),
		slog.String("object", objectExt),
		slog.String("permission", permissionExt),
		slog.String("sign", string(sign)),
		slog.Bool("static", static),
	)
	return nil
}

func (uc *RuleUseCase) drop(ctx context.Context, subject, object, permission any, sign domain.Sign) error {
	s, o, p, err := normalizeTriple(subject, object, permission)
	if err != nil {
		return err
	}

	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		return uc.dropRule(ctx, s, o, p, sign)
	})
}

// dropRule removes exactly the matching (triple, sign) row; absence is success.
func (uc *RuleUseCase) dropRule(ctx context.Context, subjectExt, objectExt, permissionExt string, sign domain.Sign) error {
	subject, object, permission, err := uc.resolveTriple(ctx, subjectExt, objectExt, permissionExt)
	if err != nil {
		return err
	}
	return uc.ruleRepo.Delete(ctx, subject.ID, object.ID, permission.ID, sign)
}

// ListRules returns every rule in which the entity participates on the given
// side: as subject for KindSubject, as object for KindObject. Results are
// ordered by (subject, object, permission, sign).
func (uc *RuleUseCase) ListRules(ctx context.Context, kind domain.Kind, extID any) ([]domain.RuleView, error) {
	ext, err := ident.Normalize(extID)
	if err != nil {
		return nil, err
	}
	if ext == "" {
		return nil, domain.ErrEntityNotFound
	}

	switch kind {
	case domain.KindSubject:
		subject, err := uc.entityRepo.GetByExtID(ctx, domain.KindSubject, ext)
		if err != nil {
			return nil, err
		}
		return uc.ruleRepo.ListBySubject(ctx, subject.ID)
	case domain.KindObject:
		object, err := uc.entityRepo.GetByExtID(ctx, domain.KindObject, ext)
		if err != nil {
			return nil, err
		}
		return uc.ruleRepo.ListByObject(ctx, object.ID)
	default:
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "rules are listed by subject or object, not %s", kind)
	}
}

// resolveTriple resolves the three rule endpoints, mapping each missing row
// to its own error in subject, object, permission order.
func (uc *RuleUseCase) resolveTriple(ctx context.Context, subjectExt, objectExt, permissionExt string) (*domain.Entity, *domain.Entity, *domain.Entity, error) {
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

// normalizeTriple normalizes the three endpoints of a rule operation.
func normalizeTriple(subject, object, permission any) (string, string, string, error) {
	s, err := ident.Normalize(subject)
	if err != nil {
		return "", "", "", err
	}
	o, err := ident.Normalize(object)
	if err != nil {
		return "", "", "", err
	}
	p, err := ident.Normalize(permission)
	if err != nil {
		return "", "", "", err
	}
	return s, o, p, nil
}
