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

// Hierarchy defines the DAG operations the hierarchy handler needs.
type Hierarchy interface {
	AddChild(ctx context.Context, kind domain.Kind, parent, child any) error
	RemoveChild(ctx context.Context, kind domain.Kind, parent, child any) error
	Members(ctx context.Context, kind domain.Kind, extID any) ([]string, error)
}

// HierarchyHandler handles hierarchy mutation and membership requests.
type HierarchyHandler struct {
	hierarchy Hierarchy
	logger    *slog.Logger
}

// NewHierarchyHandler creates a new HierarchyHandler
func NewHierarchyHandler(hierarchy Hierarchy, logger *slog.Logger) *HierarchyHandler {
	return &HierarchyHandler{
		hierarchy: hierarchy,
		logger:    logger,
	}
}

// AddChild handles POST /v1/hierarchy/:kind/children
func (h *HierarchyHandler) AddChild(c *gin.Context) {
	kind, ok := parseKindParam(c)
	if !ok {
		h.rejectKind(c)
		return
	}

	var req dto.EdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	if err := h.hierarchy.AddChild(c.Request.Context(), kind, req.Parent, req.Child); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// RemoveChild handles DELETE /v1/hierarchy/:kind/children?parent=...&child=...
func (h *HierarchyHandler) RemoveChild(c *gin.Context) {
	kind, ok := parseKindParam(c)
	if !ok {
		h.rejectKind(c)
		return
	}

	req := dto.EdgeRequest{
		Parent: c.Query("parent"),
		Child:  c.Query("child"),
	}
	if err := req.Validate(); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	if err := h.hierarchy.RemoveChild(c.Request.Context(), kind, req.Parent, req.Child); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// Members handles GET /v1/members/:kind/:id
func (h *HierarchyHandler) Members(c *gin.Context) {
	kind, ok := parseKindParam(c)
	if !ok {
		h.rejectKind(c)
		return
	}

	members, err := h.hierarchy.Members(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MembersResponse{Members: members})
}

// parseKindParam resolves the :kind path parameter.
func parseKindParam(c *gin.Context) (domain.Kind, bool) {
	return domain.ParseKind(c.Param("kind"))
}

func (h *HierarchyHandler) rejectKind(c *gin.Context) {
	httputil.HandleErrorGin(c,
		apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown entity kind %q", c.Param("kind")), h.logger)
}
