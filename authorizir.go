// Package authorizir is a hierarchical authorization engine. It answers
// "may subject S perform permission P on object O?" over three independent
// DAGs of subjects, objects, and permissions, with explicit positive and
// negative rules that propagate through the hierarchies. A reachable
// negative rule always wins over any positive rule.
//
// The engine persists everything in PostgreSQL or MySQL and keeps no state
// in process beyond a cache of the supremum row ids, so any number of
// instances can share one database.
//
//	db, err := database.Connect(...)
//	engine, err := authorizir.New(db, "postgres")
//	if err := engine.Grant(ctx, "admins", "docs", "edit"); err != nil { ... }
//	decision, err := engine.Decide(ctx, "alice", "docs", "edit")
//
// Decide is the data form; Enforce is the enforcement form that returns
// ErrAccessDenied for denied queries, for use at application boundaries.
package authorizir

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/authz/repository"
	"github.com/jwilger/authorizir/internal/authz/seed"
	"github.com/jwilger/authorizir/internal/authz/usecase"
	"github.com/jwilger/authorizir/internal/database"
)

// Kind selects one of the three hierarchies.
type Kind = domain.Kind

// The three entity kinds.
const (
	KindSubject    = domain.KindSubject
	KindObject     = domain.KindObject
	KindPermission = domain.KindPermission
)

// Decision is the outcome of an authorization query.
type Decision = domain.Decision

// Decision outcomes.
const (
	Granted = domain.DecisionGranted
	Denied  = domain.DecisionDenied
)

// RuleView is a rule with endpoints resolved to external ids.
type RuleView = domain.RuleView

// Declarations is the declarative seed consumed by Init.
type Declarations = domain.Declarations

// The engine's error set. All are matchable with errors.Is through every
// operation that can return them.
var (
	ErrIDRequired          = domain.ErrIDRequired
	ErrDescriptionRequired = domain.ErrDescriptionRequired
	ErrInvalidSubject      = domain.ErrInvalidSubject
	ErrInvalidObject       = domain.ErrInvalidObject
	ErrInvalidPermission   = domain.ErrInvalidPermission
	ErrInvalidParent       = domain.ErrInvalidParent
	ErrInvalidChild        = domain.ErrInvalidChild
	ErrCyclicEdge          = domain.ErrCyclicEdge
	ErrConflictingRuleType = domain.ErrConflictingRuleType
	ErrNotFound            = domain.ErrEntityNotFound
	ErrAccessDenied        = domain.ErrAccessDenied
)

// Engine is the programmatic surface of the authorization engine.
type Engine struct {
	registry   *usecase.RegistryUseCase
	hierarchy  *usecase.HierarchyUseCase
	rules      *usecase.RuleUseCase
	decisions  *usecase.DecisionUseCase
	reconciler *usecase.ReconcilerUseCase
}

type engineOptions struct {
	logger   *slog.Logger
	metrics  usecase.DecisionMetrics
	engineID string
}

// Option configures the engine.
type Option func(*engineOptions)

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithMetrics records decision metrics through the given recorder.
func WithMetrics(m usecase.DecisionMetrics) Option {
	return func(o *engineOptions) { o.metrics = m }
}

// WithEngineID names this engine instance for the reconciliation advisory
// lock. Instances sharing a database should share an id.
func WithEngineID(id string) Option {
	return func(o *engineOptions) { o.engineID = id }
}

// New assembles an engine over an open database connection. driver is
// "postgres" or "mysql" and must match the connection.
func New(db *sql.DB, driver string, opts ...Option) (*Engine, error) {
	options := &engineOptions{
		logger:   slog.Default(),
		engineID: "authorizir",
	}
	for _, opt := range opts {
		opt(options)
	}

	var (
		entityRepo    usecase.EntityRepository
		hierarchyRepo usecase.HierarchyRepository
		ruleRepo      usecase.RuleRepository
	)
	switch driver {
	case "mysql":
		entityRepo = repository.NewMySQLEntityRepository(db)
		hierarchyRepo = repository.NewMySQLHierarchyRepository(db)
		ruleRepo = repository.NewMySQLRuleRepository(db)
	case "postgres":
		entityRepo = repository.NewPostgreSQLEntityRepository(db)
		hierarchyRepo = repository.NewPostgreSQLHierarchyRepository(db)
		ruleRepo = repository.NewPostgreSQLRuleRepository(db)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	txManager := database.NewTxManager(db)
	registry := usecase.NewRegistryUseCase(txManager, entityRepo, hierarchyRepo, options.logger)
	hierarchy := usecase.NewHierarchyUseCase(txManager, entityRepo, hierarchyRepo, options.logger)
	rules := usecase.NewRuleUseCase(txManager, entityRepo, ruleRepo, options.logger)
	decisions := usecase.NewDecisionUseCase(txManager, entityRepo, ruleRepo, options.metrics, options.logger)
	reconciler := usecase.NewReconcilerUseCase(
		txManager, database.NewAdvisoryLocker(db, driver, options.engineID),
		entityRepo, hierarchyRepo, ruleRepo,
		registry, hierarchy, rules,
		options.logger,
	)

	return &Engine{
		registry:   registry,
		hierarchy:  hierarchy,
		rules:      rules,
		decisions:  decisions,
		reconciler: reconciler,
	}, nil
}

// RegisterSubject registers or updates a dynamic subject.
func (e *Engine) RegisterSubject(ctx context.Context, id any, description string) error {
	return e.registry.Register(ctx, domain.KindSubject, id, description)
}

// RegisterObject registers or updates a dynamic object.
func (e *Engine) RegisterObject(ctx context.Context, id any, description string) error {
	return e.registry.Register(ctx, domain.KindObject, id, description)
}

// RegisterPermission registers or updates a dynamic permission.
func (e *Engine) RegisterPermission(ctx context.Context, id any, description string) error {
	return e.registry.Register(ctx, domain.KindPermission, id, description)
}

// Unregister deletes a dynamic entity, its edges, and its rules. Static
// entities and the supremum are refused.
func (e *Engine) Unregister(ctx context.Context, kind Kind, id any) error {
	return e.registry.Unregister(ctx, kind, id)
}

// Exists reports whether an entity is registered under the kind.
func (e *Engine) Exists(ctx context.Context, kind Kind, id any) (bool, error) {
	return e.registry.Exists(ctx, kind, id)
}

// Grant records a positive rule for the triple.
func (e *Engine) Grant(ctx context.Context, subject, object, permission any) error {
	return e.rules.Grant(ctx, subject, object, permission)
}

// Deny records a negative rule for the triple.
func (e *Engine) Deny(ctx context.Context, subject, object, permission any) error {
	return e.rules.Deny(ctx, subject, object, permission)
}

// Revoke removes the positive rule for the triple, if any.
func (e *Engine) Revoke(ctx context.Context, subject, object, permission any) error {
	return e.rules.Revoke(ctx, subject, object, permission)
}

// Allow removes the negative rule for the triple, if any.
func (e *Engine) Allow(ctx context.Context, subject, object, permission any) error {
	return e.rules.Allow(ctx, subject, object, permission)
}

// AddChild adds a parent -> child edge to the kind's hierarchy.
func (e *Engine) AddChild(ctx context.Context, kind Kind, parent, child any) error {
	return e.hierarchy.AddChild(ctx, kind, parent, child)
}

// RemoveChild removes a parent -> child edge from the kind's hierarchy.
func (e *Engine) RemoveChild(ctx context.Context, kind Kind, parent, child any) error {
	return e.hierarchy.RemoveChild(ctx, kind, parent, child)
}

// Members returns the descendants of a node, excluding the node itself,
// ordered by external id.
func (e *Engine) Members(ctx context.Context, kind Kind, id any) ([]string, error) {
	return e.hierarchy.Members(ctx, kind, id)
}

// Ancestors returns the node and everything above it, ordered by external id.
func (e *Engine) Ancestors(ctx context.Context, kind Kind, id any) ([]string, error) {
	return e.hierarchy.Ancestors(ctx, kind, id)
}

// Descendants returns the node and everything below it, ordered by external id.
func (e *Engine) Descendants(ctx context.Context, kind Kind, id any) ([]string, error) {
	return e.hierarchy.Descendants(ctx, kind, id)
}

// Parents returns the node's direct parents, ordered by external id.
func (e *Engine) Parents(ctx context.Context, kind Kind, id any) ([]string, error) {
	return e.hierarchy.Parents(ctx, kind, id)
}

// Children returns the node's direct children, ordered by external id.
func (e *Engine) Children(ctx context.Context, kind Kind, id any) ([]string, error) {
	return e.hierarchy.Children(ctx, kind, id)
}

// ListRules returns the rules the entity participates in on the given side
// (KindSubject or KindObject), in deterministic order.
func (e *Engine) ListRules(ctx context.Context, kind Kind, id any) ([]RuleView, error) {
	return e.rules.ListRules(ctx, kind, id)
}

// Decide evaluates the query triple. Unknown endpoints surface as
// ErrInvalid* errors; otherwise the result is Granted or Denied.
func (e *Engine) Decide(ctx context.Context, subject, object, permission any) (Decision, error) {
	return e.decisions.Decide(ctx, subject, object, permission)
}

// Enforce is the enforcement form of Decide: nil on granted, ErrAccessDenied
// on denied.
func (e *Engine) Enforce(ctx context.Context, subject, object, permission any) error {
	return e.decisions.Enforce(ctx, subject, object, permission)
}

// Init converges persisted static state to the declarations. Dynamic
// entities, edges, and rules are preserved.
func (e *Engine) Init(ctx context.Context, decls *Declarations) error {
	return e.reconciler.Init(ctx, decls)
}

// LoadDeclarations reads and validates a YAML declaration file for Init.
func LoadDeclarations(path string) (*Declarations, error) {
	return seed.Load(path)
}
