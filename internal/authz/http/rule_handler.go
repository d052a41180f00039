package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/authz/http/dto"
	"github.com/jwilger/authorizir/internal/httputil"

	apperrors "github.com/jwilger/authorizir/internal/errors"
)

// Rules defines the rule operations the rule handler needs.
type Rules interface {
	Grant(ctx context.Context, subject, object, permission any) error
	Deny(ctx context.Context, subject, object, permission any) error
	Revoke(ctx context.Context, subject, object, permission any) error
	Allow(ctx context.Context, subject, object, permission any) error
	ListRules(ctx context.Context, kind domain.Kind, extID any) ([]domain.RuleView, error)
}

// RuleHandler handles access rule requests.
type RuleHandler struct {
	rules  Rules
	logger *slog.Logger
}

// NewRuleHandler creates a new RuleHandler
func NewRuleHandler(rules Rules, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{
		rules:  rules,
		logger: logger,
	}
}

// Grant handles POST /v1/rules/grant
func (h *RuleHandler) Grant(c *gin.Context) {
	h.mutate(c, h.rules.Grant)
}

// Deny handles POST /v1/rules/deny
func (h *RuleHandler) Deny(c *gin.Context) {
	h.mutate(c, h.rules.Deny)
}

// Revoke handles POST /v1/rules/revoke
func (h *RuleHandler) Revoke(c *gin.Context) {
	h.mutate(c, h.rules.Revoke)
}

// Allow handles POST /v1/rules/allow
func (h *RuleHandler) Allow(c *gin.Context) {
	h.mutate(c, h.rules.Allow)
}

// mutate runs one of the four rule mutations with a shared request shape.
func (h *RuleHandler) mutate(c *gin.Context, op func(ctx context.Context, s, o, p any) error) {
	var req dto.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	if err := op(c.Request.Context(), req.Subject, req.Object, req.Permission); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// List handles GET /v1/rules?kind=subject|object&id=...
func (h *RuleHandler) List(c *gin.Context) {
	kind, ok := domain.ParseKind(c.Query("kind"))
	if !ok || kind == domain.KindPermission {
		httputil.HandleErrorGin(c,
			apperrors.Wrap(apperrors.ErrInvalidInput, "kind must be subject or object"), h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	rules, err := h.rules.ListRules(c.Request.Context(), kind, c.Query("id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	// The listing is fully ordered, so slicing keeps pagination stable.
	if offset > len(rules) {
		offset = len(rules)
	}
	end := offset + limit
	if end > len(rules) {
		end = len(rules)
	}

	c.JSON(http.StatusOK, dto.RulesResponse{Rules: rules[offset:end]})
}
