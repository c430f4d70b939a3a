package qualification

import (
	"context"
	"net/http"

	clcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/qualification"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/labstack/echo/v4"
)

type Evaluator interface {
	Evaluate(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (models.Outcome, error)
	Explain(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (models.Outcome, error)
}

// EvaluateRequest lets the host send the record's system fields along with the evaluation.
type EvaluateRequest struct {
	Record              map[string]any `json:"record"`
	PreviouslyQualified *bool          `json:"previously_qualified"`
	Explain             bool           `json:"explain"`
}

type Response struct {
	Outcome    models.Outcome    `json:"outcome"`
	Transition models.Transition `json:"transition,omitempty"`
}

type Handler struct {
	evaluator Evaluator
}

func NewHandler(evaluator Evaluator) *Handler {
	return &Handler{evaluator: evaluator}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/:kind/records/:entity_id/qualification", h.Evaluate)
	g.POST("/:kind/records/:entity_id/qualification", h.EvaluateRecord)
}

// Evaluate runs the tenant's active rules against a record. ?explain=true evaluates every
// rule instead of stopping at the first failure, and ?previously_qualified adds the transition.
// System-field rules see an absent operand; use EvaluateRecord to supply them.
func (h *Handler) Evaluate(c echo.Context) error {
	explain, err := utils.OptionalBoolQuery(c, "explain")
	if err != nil {
		return err
	}
	previouslyQualified, err := utils.OptionalBoolQuery(c, "previously_qualified")
	if err != nil {
		return err
	}

	return h.evaluate(c, EvaluateRequest{
		PreviouslyQualified: previouslyQualified,
		Explain:             explain != nil && *explain,
	})
}

// EvaluateRecord evaluates with the record document sent in the body.
func (h *Handler) EvaluateRecord(c echo.Context) error {
	req, err := utils.BindRequest[EvaluateRequest](c)
	if err != nil {
		return err
	}
	return h.evaluate(c, req)
}

func (h *Handler) evaluate(c echo.Context, req EvaluateRequest) error {
	ctx := c.Request().Context()

	kind, err := utils.EntityKindParam(c, "kind")
	if err != nil {
		return err
	}
	if req.Record != nil {
		ctx = qualification.WithRecord(ctx, req.Record)
	}

	evaluate := h.evaluator.Evaluate
	if req.Explain {
		evaluate = h.evaluator.Explain
	}

	outcome, err := evaluate(ctx, clcontext.GetTenantID(ctx), kind, c.Param("entity_id"))
	if err != nil {
		return err
	}

	response := Response{Outcome: outcome}
	if req.PreviouslyQualified != nil {
		response.Transition = outcome.TransitionFrom(*req.PreviouslyQualified)
	}

	return c.JSON(http.StatusOK, response)
}
