package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/authz/repository"
)

// fakeTxManager runs the function directly; the fakes below have no
// transactional state to isolate.
type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeLocker satisfies AdvisoryLocker without a backend.
type fakeLocker struct {
	acquires int
	releases int
}

func (l *fakeLocker) Acquire(ctx context.Context) error { l.acquires++; return nil }
func (l *fakeLocker) Release(ctx context.Context) error { l.releases++; return nil }

type edgeKey struct {
	parent uuid.UUID
	child  uuid.UUID
}

type tripleKey struct {
	subject    uuid.UUID
	object     uuid.UUID
	permission uuid.UUID
}

// fakeStore is an in-memory implementation of the three repository
// interfaces. Reachability is computed by graph walk instead of a closure
// index; semantics match the SQL implementations.
type fakeStore struct {
	entities map[domain.Kind]map[string]*domain.Entity
	edges    map[domain.Kind]map[edgeKey]bool // value: static flag
	rules    map[tripleKey]*domain.Rule
}

func newFakeStore() *fakeStore {
	s := &fakeStore{
		entities: make(map[domain.Kind]map[string]*domain.Entity),
		edges:    make(map[domain.Kind]map[edgeKey]bool),
		rules:    make(map[tripleKey]*domain.Rule),
	}
	for _, kind := range []domain.Kind{domain.KindSubject, domain.KindObject, domain.KindPermission} {
		s.entities[kind] = make(map[string]*domain.Entity)
		s.edges[kind] = make(map[edgeKey]bool)
	}
	return s
}

func (s *fakeStore) byID(kind domain.Kind, id uuid.UUID) *domain.Entity {
	for _, e := range s.entities[kind] {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// --- EntityRepository ---

func (s *fakeStore) Upsert(ctx context.Context, kind domain.Kind, entity *domain.Entity) error {
	if existing, ok := s.entities[kind][entity.ExtID]; ok {
		existing.Description = entity.Description
		existing.Static = entity.Static
		existing.UpdatedAt = existing.UpdatedAt.Add(time.Second)
		*entity = *existing
		return nil
	}
	if entity.ID == uuid.Nil {
		entity.ID = uuid.Must(uuid.NewV7())
	}
	now := time.Now()
	entity.CreatedAt = now
	entity.UpdatedAt = now
	stored := *entity
	s.entities[kind][entity.ExtID] = &stored
	return nil
}

func (s *fakeStore) GetByExtID(ctx context.Context, kind domain.Kind, extID string) (*domain.Entity, error) {
	entity, ok := s.entities[kind][extID]
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	clone := *entity
	return &clone, nil
}

func (s *fakeStore) Delete(ctx context.Context, kind domain.Kind, id uuid.UUID) error {
	entity := s.byID(kind, id)
	if entity == nil {
		return nil
	}
	delete(s.entities[kind], entity.ExtID)

	// Cascade rules the way the schema's foreign keys do.
	for key := range s.rules {
		switch kind {
		case domain.KindSubject:
			if key.subject == id {
				delete(s.rules, key)
			}
		case domain.KindObject:
			if key.object == id {
				delete(s.rules, key)
			}
		case domain.KindPermission:
			if key.permission == id {
				delete(s.rules, key)
			}
		}
	}
	for key := range s.edges[kind] {
		if key.parent == id || key.child == id {
			delete(s.edges[kind], key)
		}
	}
	return nil
}

func (s *fakeStore) ListStaticExtIDs(ctx context.Context, kind domain.Kind) ([]string, error) {
	var extIDs []string
	for ext, e := range s.entities[kind] {
		if e.Static && ext != domain.SupremumExtID {
			extIDs = append(extIDs, ext)
		}
	}
	sort.Strings(extIDs)
	return extIDs, nil
}

// --- HierarchyRepository ---

func (s *fakeStore) AddEdge(ctx context.Context, kind domain.Kind, parentID, childID uuid.UUID, static bool) (bool, error) {
	key := edgeKey{parent: parentID, child: childID}
	if existingStatic, ok := s.edges[kind][key]; ok {
		if static && !existingStatic {
			s.edges[kind][key] = true
		}
		return false, nil
	}
	s.edges[kind][key] = static
	return true, nil
}

func (s *fakeStore) RemoveEdge(ctx context.Context, kind domain.Kind, parentID, childID uuid.UUID) error {
	delete(s.edges[kind], edgeKey{parent: parentID, child: childID})
	return nil
}

func (s *fakeStore) HasPath(ctx context.Context, kind domain.Kind, ancestorID, descendantID uuid.UUID) (bool, error) {
	return s.reaches(kind, ancestorID, descendantID), nil
}

// reaches walks child edges from ancestor looking for descendant.
func (s *fakeStore) reaches(kind domain.Kind, ancestorID, descendantID uuid.UUID) bool {
	if ancestorID == descendantID {
		return true
	}
	seen := map[uuid.UUID]bool{ancestorID: true}
	frontier := []uuid.UUID{ancestorID}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for key := range s.edges[kind] {
			if key.parent != current || seen[key.child] {
				continue
			}
			if key.child == descendantID {
				return true
			}
			seen[key.child] = true
			frontier = append(frontier, key.child)
		}
	}
	return false
}

func (s *fakeStore) Ancestors(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error) {
	var extIDs []string
	for ext, e := range s.entities[kind] {
		if s.reaches(kind, e.ID, id) {
			extIDs = append(extIDs, ext)
		}
	}
	sort.Strings(extIDs)
	return extIDs, nil
}

func (s *fakeStore) Descendants(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error) {
	var extIDs []string
	for ext, e := range s.entities[kind] {
		if s.reaches(kind, id, e.ID) {
			extIDs = append(extIDs, ext)
		}
	}
	sort.Strings(extIDs)
	return extIDs, nil
}

func (s *fakeStore) Parents(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error) {
	return s.neighbors(kind, id, false, false)
}

func (s *fakeStore) Children(ctx context.Context, kind domain.Kind, id uuid.UUID) ([]string, error) {
	return s.neighbors(kind, id, true, false)
}

func (s *fakeStore) StaticParents(ctx context.Context, kind domain.Kind, childID uuid.UUID) ([]string, error) {
	return s.neighbors(kind, childID, false, true)
}

func (s *fakeStore) StaticChildren(ctx context.Context, kind domain.Kind, parentID uuid.UUID) ([]string, error) {
	return s.neighbors(kind, parentID, true, true)
}

func (s *fakeStore) neighbors(kind domain.Kind, id uuid.UUID, children, staticOnly bool) ([]string, error) {
	var extIDs []string
	for key, static := range s.edges[kind] {
		if staticOnly && !static {
			continue
		}
		var neighbor uuid.UUID
		if children && key.parent == id {
			neighbor = key.child
		} else if !children && key.child == id {
			neighbor = key.parent
		} else {
			continue
		}
		if e := s.byID(kind, neighbor); e != nil {
			extIDs = append(extIDs, e.ExtID)
		}
	}
	sort.Strings(extIDs)
	return extIDs, nil
}

func (s *fakeStore) DetachAll(ctx context.Context, kind domain.Kind, id uuid.UUID) error {
	for key := range s.edges[kind] {
		if key.parent == id || key.child == id {
			delete(s.edges[kind], key)
		}
	}
	return nil
}

// --- RuleRepository ---

func (s *fakeStore) Get(ctx context.Context, subjectID, objectID, permissionID uuid.UUID) (*domain.Rule, error) {
	rule, ok := s.rules[tripleKey{subjectID, objectID, permissionID}]
	if !ok {
		return nil, repository.ErrRuleNotFound
	}
	clone := *rule
	return &clone, nil
}

func (s *fakeStore) Insert(ctx context.Context, rule *domain.Rule) error {
	stored := *rule
	stored.CreatedAt = time.Now()
	s.rules[tripleKey{rule.SubjectID, rule.ObjectID, rule.PermissionID}] = &stored
	return nil
}

func (s *fakeStore) deleteRule(ctx context.Context, subjectID, objectID, permissionID uuid.UUID, sign domain.Sign) error {
	key := tripleKey{subjectID, objectID, permissionID}
	if rule, ok := s.rules[key]; ok && rule.Sign == sign {
		delete(s.rules, key)
	}
	return nil
}

// fakeRuleStore adapts fakeStore to RuleRepository. It exists because
// EntityRepository and RuleRepository both declare a Delete method with
// different signatures, and fakeStore backs both in these tests.
type fakeRuleStore struct {
	*fakeStore
}

func (s fakeRuleStore) Delete(ctx context.Context, subjectID, objectID, permissionID uuid.UUID, sign domain.Sign) error {
	return s.fakeStore.deleteRule(ctx, subjectID, objectID, permissionID, sign)
}

func (s *fakeStore) DeleteStatic(ctx context.Context) error {
	for key, rule := range s.rules {
		if rule.Static {
			delete(s.rules, key)
		}
	}
	return nil
}

func (s *fakeStore) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]domain.RuleView, error) {
	return s.listRules(func(r *domain.Rule) bool { return r.SubjectID == subjectID })
}

func (s *fakeStore) ListByObject(ctx context.Context, objectID uuid.UUID) ([]domain.RuleView, error) {
	return s.listRules(func(r *domain.Rule) bool { return r.ObjectID == objectID })
}

func (s *fakeStore) listRules(match func(*domain.Rule) bool) ([]domain.RuleView, error) {
	var views []domain.RuleView
	for _, rule := range s.rules {
		if !match(rule) {
			continue
		}
		views = append(views, domain.RuleView{
			Subject:    s.byID(domain.KindSubject, rule.SubjectID).ExtID,
			Object:     s.byID(domain.KindObject, rule.ObjectID).ExtID,
			Permission: s.byID(domain.KindPermission, rule.PermissionID).ExtID,
			Sign:       rule.Sign,
		})
	}
	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Object != b.Object {
			return a.Object < b.Object
		}
		if a.Permission != b.Permission {
			return a.Permission < b.Permission
		}
		return a.Sign < b.Sign
	})
	return views, nil
}

func (s *fakeStore) AnyNegative(ctx context.Context, subjectID, objectID, permissionID, permissionSupremumID uuid.UUID) (bool, error) {
	for _, rule := range s.rules {
		if rule.Sign != domain.SignNegative {
			continue
		}
		if !s.reaches(domain.KindSubject, rule.SubjectID, subjectID) {
			continue
		}
		if !s.reaches(domain.KindObject, rule.ObjectID, objectID) {
			continue
		}
		if rule.PermissionID == permissionSupremumID ||
			s.reaches(domain.KindPermission, permissionID, rule.PermissionID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) AnyPositive(ctx context.Context, subjectID, objectID, permissionID uuid.UUID) (bool, error) {
	for _, rule := range s.rules {
		if rule.Sign != domain.SignPositive {
			continue
		}
		if s.reaches(domain.KindSubject, rule.SubjectID, subjectID) &&
			s.reaches(domain.KindObject, rule.ObjectID, objectID) &&
			s.reaches(domain.KindPermission, rule.PermissionID, permissionID) {
			return true, nil
		}
	}
	return false, nil
}
