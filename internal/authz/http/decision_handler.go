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

// Decider answers authorization queries for the decision handler.
type Decider interface {
	Decide(ctx context.Context, subject, object, permission any) (domain.Decision, error)
}

// DecisionHandler handles authorization query requests.
type DecisionHandler struct {
	decider Decider
	logger  *slog.Logger
}

// NewDecisionHandler creates a new DecisionHandler
func NewDecisionHandler(decider Decider, logger *slog.Logger) *DecisionHandler {
	return &DecisionHandler{
		decider: decider,
		logger:  logger,
	}
}

// Authorize handles GET /v1/authorize?subject=...&object=...&permission=...
// A denied decision is a successful response; only unknown endpoints and
// backend failures produce error statuses.
func (h *DecisionHandler) Authorize(c *gin.Context) {
	decision, err := h.decider.Decide(
		c.Request.Context(),
		c.Query("subject"),
		c.Query("object"),
		c.Query("permission"),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.DecisionResponse{Decision: decision.String()})
}
