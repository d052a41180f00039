// Package http provides HTTP handlers for the authorization API.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/authz/http/dto"
	"github.com/jwilger/authorizir/internal/httputil"
)

// Registry defines the registration operations the entity handler needs.
type Registry interface {
	Register(ctx context.Context, kind domain.Kind, extID any, description string) error
	Lookup(ctx context.Context, kind domain.Kind, extID any) (*domain.Entity, error)
	Unregister(ctx context.Context, kind domain.Kind, extID any) error
}

// EntityHandler handles entity registration requests for one kind. The same
// handler backs /v1/subjects, /v1/objects, and /v1/permissions.
type EntityHandler struct {
	registry Registry
	kind     domain.Kind
	logger   *slog.Logger
}

// NewEntityHandler creates a new EntityHandler for a kind.
func NewEntityHandler(registry Registry, kind domain.Kind, logger *slog.Logger) *EntityHandler {
	return &EntityHandler{
		registry: registry,
		kind:     kind,
		logger:   logger,
	}
}

// Register handles POST /v1/{kind}s
func (h *EntityHandler) Register(c *gin.Context) {
	var req dto.RegisterEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := h.registry.Register(c.Request.Context(), h.kind, req.ID, req.Description); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	entity, err := h.registry.Lookup(c.Request.Context(), h.kind, req.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.ToEntityResponse(entity))
}

// Get handles GET /v1/{kind}s/:id
func (h *EntityHandler) Get(c *gin.Context) {
	entity, err := h.registry.Lookup(c.Request.Context(), h.kind, c.Param("id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ToEntityResponse(entity))
}

// Unregister handles DELETE /v1/{kind}s/:id. Only dynamic entities can be
// deleted; reconciler-owned rows and the supremum are refused.
func (h *EntityHandler) Unregister(c *gin.Context) {
	if err := h.registry.Unregister(c.Request.Context(), h.kind, c.Param("id")); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
