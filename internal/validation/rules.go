// Package validation provides custom validation rules for the application.
package validation

import (
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/jwilger/authorizir/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// RuleSign validates that a string is a recognized rule sign.
var RuleSign = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == "+" || s == "-"
	},
	validation.NewError("validation_rule_sign", "must be '+' or '-'"),
)

// EntityKind validates that a string names one of the three entity kinds,
// in singular or plural spelling.
var EntityKind = validation.NewStringRuleWithError(
	func(s string) bool {
		switch s {
		case "subject", "subjects", "object", "objects",
			"permission", "permissions", "privilege", "privileges":
			return true
		}
		return false
	},
	validation.NewError("validation_entity_kind", "must be a subject, object, or permission kind"),
)
