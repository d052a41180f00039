package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jwilger/authorizir/internal/authz/domain"
)

// testEngine wires every use case over one shared fake store.
type testEngine struct {
	store  *fakeStore
	locker *fakeLocker

	registry   *RegistryUseCase
	hierarchy  *HierarchyUseCase
	rules      *RuleUseCase
	decisions  *DecisionUseCase
	reconciler *ReconcilerUseCase
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	store := newFakeStore()
	locker := &fakeLocker{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	txManager := fakeTxManager{}

	registry := NewRegistryUseCase(txManager, store, store, logger)
	hierarchy := NewHierarchyUseCase(txManager, store, store, logger)
	rules := NewRuleUseCase(txManager, store, fakeRuleStore{store}, logger)
	decisions := NewDecisionUseCase(txManager, store, fakeRuleStore{store}, nil, logger)
	reconciler := NewReconcilerUseCase(txManager, locker, store, store, fakeRuleStore{store}, registry, hierarchy, rules, logger)

	return &testEngine{
		store:      store,
		locker:     locker,
		registry:   registry,
		hierarchy:  hierarchy,
		rules:      rules,
		decisions:  decisions,
		reconciler: reconciler,
	}
}

// registerBasics registers one subject, object, and permission.
func (e *testEngine) registerBasics(t *testing.T, subject, object, permission string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.registry.Register(ctx, domain.KindSubject, subject, "subject "+subject))
	require.NoError(t, e.registry.Register(ctx, domain.KindObject, object, "object "+object))
	require.NoError(t, e.registry.Register(ctx, domain.KindPermission, permission, "permission "+permission))
}

// decide is a shorthand for a decision with failure on error.
func (e *testEngine) decide(t *testing.T, subject, object, permission string) domain.Decision {
	t.Helper()

	decision, err := e.decisions.Decide(context.Background(), subject, object, permission)
	require.NoError(t, err)
	return decision
}
