package dto

import (
	"time"

	"github.com/jwilger/authorizir/internal/authz/domain"
)

// EntityResponse is the representation of a registered entity.
type EntityResponse struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Static      bool      `json:"static"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToEntityResponse converts a domain entity to its response shape.
func ToEntityResponse(entity *domain.Entity) EntityResponse {
	return EntityResponse{
		ID:          entity.ExtID,
		Description: entity.Description,
		Static:      entity.Static,
		CreatedAt:   entity.CreatedAt,
		UpdatedAt:   entity.UpdatedAt,
	}
}

// DecisionResponse carries an authorization decision. Decisions are data, not
// errors: a denied query is still a 200.
type DecisionResponse struct {
	Decision string `json:"decision"`
}

// RulesResponse carries an ordered rule listing.
type RulesResponse struct {
	Rules []domain.RuleView `json:"rules"`
}

// MembersResponse carries the ordered descendant listing of a node.
type MembersResponse struct {
	Members []string `json:"members"`
}
