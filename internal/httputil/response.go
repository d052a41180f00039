// Package httputil provides HTTP utility functions for request and response handling.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwilger/authorizir/internal/authz/domain"

	apperrors "github.com/jwilger/authorizir/internal/errors"
)

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// errorCode maps a domain error to the closed set of API error codes. The
// most specific errors are matched first; the base sentinels catch whatever
// the domain layer did not name.
func errorCode(err error) (int, string) {
	switch {
	case apperrors.Is(err, domain.ErrIDRequired):
		return http.StatusUnprocessableEntity, "id_is_required"
	case apperrors.Is(err, domain.ErrDescriptionRequired):
		return http.StatusUnprocessableEntity, "description_is_required"
	case apperrors.Is(err, domain.ErrInvalidSubject):
		return http.StatusUnprocessableEntity, "invalid_subject"
	case apperrors.Is(err, domain.ErrInvalidObject):
		return http.StatusUnprocessableEntity, "invalid_object"
	case apperrors.Is(err, domain.ErrInvalidPermission):
		return http.StatusUnprocessableEntity, "invalid_permission"
	case apperrors.Is(err, domain.ErrInvalidParent):
		return http.StatusUnprocessableEntity, "invalid_parent"
	case apperrors.Is(err, domain.ErrInvalidChild):
		return http.StatusUnprocessableEntity, "invalid_child"
	case apperrors.Is(err, domain.ErrCyclicEdge):
		return http.StatusConflict, "cyclic_edge"
	case apperrors.Is(err, domain.ErrConflictingRuleType):
		return http.StatusConflict, "conflicting_rule_type"
	case apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case apperrors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case apperrors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// HandleErrorGin maps domain errors to HTTP status codes and returns a JSON
// response. Errors outside the closed domain set are reported as opaque
// internal errors; the details only go to the log.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	statusCode, code := errorCode(err)

	response := ErrorResponse{Error: code}
	if statusCode != http.StatusInternalServerError {
		response.Message = err.Error()
	} else {
		response.Message = "An internal error occurred"
	}

	if logger != nil {
		logger.Error("request failed",
			slog.Int("status_code", statusCode),
			slog.String("error_code", code),
			slog.Any("error", err),
		)
	}

	c.JSON(statusCode, response)
}

// HandleBadRequestGin writes a 400 Bad Request response for malformed JSON or parameters.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("bad request", slog.Any("error", err))
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "bad_request",
		Message: err.Error(),
	})
}

// HandleValidationErrorGin writes a 422 Unprocessable Entity response for validation errors.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("validation failed", slog.Any("error", err))
	}

	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	})
}
