// Package dto defines the HTTP request and response shapes for the
// authorization API.
package dto

import (
	validation "github.com/jellydator/validation"

	appvalidation "github.com/jwilger/authorizir/internal/validation"
)

// RegisterEntityRequest is the body of entity registration calls. Blank ids
// and descriptions are rejected by the registry with the engine's own error
// codes, so only structural checks happen here.
type RegisterEntityRequest struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// EdgeRequest is the body of hierarchy child add calls.
type EdgeRequest struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

// Validate checks the edge request structure.
func (r EdgeRequest) Validate() error {
	return appvalidation.WrapValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Parent, validation.Required.Error("parent is required")),
		validation.Field(&r.Child, validation.Required.Error("child is required")),
	))
}

// RuleRequest is the body of grant/deny/revoke/allow calls.
type RuleRequest struct {
	Subject    string `json:"subject"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

// Validate checks the rule request structure.
func (r RuleRequest) Validate() error {
	return appvalidation.WrapValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Subject, validation.Required.Error("subject is required")),
		validation.Field(&r.Object, validation.Required.Error("object is required")),
		validation.Field(&r.Permission, validation.Required.Error("permission is required")),
	))
}
