// Package seed loads declaration files consumed by the reconciler. The file
// is YAML with four optional sections: permissions, roles, collections, and
// rules.
package seed

import (
	"fmt"
	"os"

	validation "github.com/jellydator/validation"
	"gopkg.in/yaml.v3"

	"github.com/jwilger/authorizir/internal/authz/domain"

	appvalidation "github.com/jwilger/authorizir/internal/validation"
)

// Load reads and validates a declaration file.
func Load(path string) (*domain.Declarations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates declaration YAML.
func Parse(data []byte) (*domain.Declarations, error) {
	var decls domain.Declarations
	if err := yaml.Unmarshal(data, &decls); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := Validate(&decls); err != nil {
		return nil, err
	}
	return &decls, nil
}

// Validate checks the structural rules of a declaration set: every entry
// needs an id and description, rule actions must be grant or deny, and rule
// endpoints must be present.
func Validate(decls *domain.Declarations) error {
	for i, p := range decls.Permissions {
		if err := validateEntityDecl(p.ID, p.Description); err != nil {
			return appvalidation.WrapValidationError(fmt.Errorf("permissions[%d]: %w", i, err))
		}
	}
	for i, r := range decls.Roles {
		if err := validateEntityDecl(r.ID, r.Description); err != nil {
			return appvalidation.WrapValidationError(fmt.Errorf("roles[%d]: %w", i, err))
		}
	}
	for i, c := range decls.Collections {
		if err := validateEntityDecl(c.ID, c.Description); err != nil {
			return appvalidation.WrapValidationError(fmt.Errorf("collections[%d]: %w", i, err))
		}
	}
	for i, r := range decls.Rules {
		err := validation.Errors{
			"action": validation.Validate(r.Action, validation.Required,
				validation.In(domain.ActionGrant, domain.ActionDeny)),
			"permission": validation.Validate(r.Permission, validation.Required, appvalidation.NotBlank),
			"on":         validation.Validate(r.On, validation.Required, appvalidation.NotBlank),
			"to":         validation.Validate(r.To, validation.Required, appvalidation.NotBlank),
		}.Filter()
		if err != nil {
			return appvalidation.WrapValidationError(fmt.Errorf("rules[%d]: %w", i, err))
		}
	}
	return nil
}

// validateEntityDecl checks the common id/description pair of a declaration.
func validateEntityDecl(id, description string) error {
	return validation.Errors{
		"id":          validation.Validate(id, validation.Required, appvalidation.NotBlank),
		"description": validation.Validate(description, validation.Required, appvalidation.NotBlank),
	}.Filter()
}
