package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwilger/authorizir/internal/errors"
)

// Sign is the polarity of an access rule.
type Sign string

// Rule signs. A positive rule grants, a negative rule denies; for any query
// a reachable negative rule wins unconditionally.
const (
	SignPositive Sign = "+"
	SignNegative Sign = "-"
)

// Valid reports whether s is a known sign.
func (s Sign) Valid() bool {
	return s == SignPositive || s == SignNegative
}

// Rule is an access rule row. The (subject, object, permission) triple is
// unique; at most one sign exists per triple at any moment.
type Rule struct {
	SubjectID    uuid.UUID
	ObjectID     uuid.UUID
	PermissionID uuid.UUID
	Sign         Sign
	// Static marks rules owned by the declaration reconciler.
	Static    bool
	CreatedAt time.Time
}

// RuleView is a rule with its endpoints resolved to external ids, as returned
// by rule listings.
type RuleView struct {
	Subject    string `json:"subject"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
	Sign       Sign   `json:"sign"`
}

// Domain-specific errors for rule and hierarchy operations.
var (
	// ErrInvalidSubject indicates the subject endpoint is not registered.
	ErrInvalidSubject = errors.Wrap(errors.ErrInvalidInput, "invalid subject")

	// ErrInvalidObject indicates the object endpoint is not registered.
	ErrInvalidObject = errors.Wrap(errors.ErrInvalidInput, "invalid object")

	// ErrInvalidPermission indicates the permission endpoint is not registered.
	ErrInvalidPermission = errors.Wrap(errors.ErrInvalidInput, "invalid permission")

	// ErrInvalidParent indicates the parent endpoint of an edge is not registered.
	ErrInvalidParent = errors.Wrap(errors.ErrInvalidInput, "invalid parent")

	// ErrInvalidChild indicates the child endpoint of an edge is not registered.
	ErrInvalidChild = errors.Wrap(errors.ErrInvalidInput, "invalid child")

	// ErrCyclicEdge indicates the edge would create a cycle in its hierarchy.
	ErrCyclicEdge = errors.Wrap(errors.ErrConflict, "edge would create a cycle")

	// ErrConflictingRuleType indicates a rule with the opposite sign already
	// exists for the triple.
	ErrConflictingRuleType = errors.Wrap(errors.ErrConflict, "conflicting rule type")

	// ErrAccessDenied is returned by the enforcement surface when the decision
	// is denied.
	ErrAccessDenied = errors.Wrap(errors.ErrForbidden, "access denied")
)
