package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwilger/authorizir/internal/errors"
)

// SupremumExtID is the reserved external id of the top node of each hierarchy.
// The supremum is an ancestor of every node of its kind and is never deleted.
const SupremumExtID = "*"

// SupremumDescription labels the supremum rows created at bootstrap.
const SupremumDescription = "Hierarchy supremum"

// Entity is a subject, object, or permission row. The same structure backs
// all three kinds; Kind is carried by the call, not the row.
type Entity struct {
	// ID is the opaque surrogate key assigned on insert.
	ID uuid.UUID
	// ExtID is the caller-visible canonical external id, unique within the kind.
	ExtID string
	// Description is the human-readable label, never empty.
	Description string
	// Static marks rows owned by the declaration reconciler. Dynamic rows
	// (static = false) are created through the runtime API and survive
	// reconciliation untouched.
	Static    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsSupremum reports whether the entity is the supremum of its hierarchy.
func (e *Entity) IsSupremum() bool {
	return e.ExtID == SupremumExtID
}

// Domain-specific errors for entity operations.
var (
	// ErrIDRequired indicates a blank or whitespace-only external id.
	ErrIDRequired = errors.Wrap(errors.ErrInvalidInput, "id is required")

	// ErrDescriptionRequired indicates a blank or whitespace-only description.
	ErrDescriptionRequired = errors.Wrap(errors.ErrInvalidInput, "description is required")

	// ErrEntityNotFound indicates the requested entity does not exist in its kind.
	ErrEntityNotFound = errors.Wrap(errors.ErrNotFound, "entity not found")

	// ErrStaticEntity indicates an attempt to delete a reconciler-owned row
	// through the runtime API.
	ErrStaticEntity = errors.Wrap(errors.ErrForbidden, "entity is owned by the declaration reconciler")

	// ErrSupremumImmutable indicates an attempt to delete a supremum row.
	ErrSupremumImmutable = errors.Wrap(errors.ErrForbidden, "the supremum cannot be deleted")
)
