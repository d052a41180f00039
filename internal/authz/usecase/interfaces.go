// Package usecase implements the authorization engine's business logic:
// entity registration, hierarchy mutation, rule management, authorization
// decisions, and declaration reconciliation.
package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwilger/authorizir/internal/authz/domain"
)

// EntityRepository defines entity persistence operations.
type EntityRepository interface {
	Upsert(ctx context.Context, kind domain.Kind, entity *domain.Entity) error
	GetByExtID(ctx context.Context, kind domain.Kind, extID string) (*domain.Entity, error)
	Delete(ctx context.Context, kind domain.Kind, id uuid.UUID) error
	ListStaticExtIDs(ctx context.Context, kind domain.Kind) ([]string, error)
}

// HierarchyRepository defines edge and reachability-index operations.
type HierarchyRepository interface {
	AddEdge(ctx context.Context, kind domain.Kind, parentID, childID uuid.UUID, static bool) (bool, error)
	RemoveEdge(ctx context.Context, kind domain.Kind, parentID, childID uuid.UUID) error
	HasPath(ctx context.Context, kind domain.Kind, ancestorID, descendantID uuid.UUID) (bool, error)
	Ancestors(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error)
	Descendants(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error)
	Parents(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error)
	Children(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error)
	StaticParents(ctx context.Context, kind domain.Kind, childID uuid.UUID) ([]string, error)
	StaticChildren(ctx context.Context, kind domain.Kind, parentID uuid.UUID) ([]string, error)
	DetachAll(ctx context.Context, kind domain.Kind, id uuid.UUID) error
}

// RuleRepository defines access rule persistence operations.
type RuleRepository interface {
	Get(ctx context.Context, subjectID, objectID, permissionID uuid.UUID) (*domain.Rule, error)
	Insert(ctx context.Context, rule *domain.Rule) error
	Delete(ctx context.Context, subjectID, objectID, permissionID uuid.UUID, sign domain.Sign) error
	DeleteStatic(ctx context.Context) error
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]domain.RuleView, error)
	ListByObject(ctx context.Context, objectID uuid.UUID) ([]domain.RuleView, error)
	AnyNegative(ctx context.Context, subjectID, objectID, permissionID, permissionSupremumID uuid.UUID) (bool, error)
	AnyPositive(ctx context.Context, subjectID, objectID, permissionID uuid.UUID) (bool, error)
}
