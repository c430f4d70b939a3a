package rules

import (
	"context"
	"net/http"

	clcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/labstack/echo/v4"
)

type Service interface {
	Create(ctx context.Context, tenantID string, req models.CreateQualificationRuleRequest) (models.QualificationRule, error)
	Update(ctx context.Context, tenantID, id string, req models.UpdateQualificationRuleRequest) (models.QualificationRule, error)
	Get(ctx context.Context, tenantID, id string) (models.QualificationRule, error)
	List(ctx context.Context, tenantID string) ([]models.QualificationRule, error)
	SetActive(ctx context.Context, tenantID, id string, active bool) (models.QualificationRule, error)
	Delete(ctx context.Context, tenantID, id string) error
	Audit(ctx context.Context, tenantID string) ([]models.RuleIssue, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Register registers qualification rule routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.ListRules)
	g.POST("", h.CreateRule)
	g.GET("/audit", h.AuditRules)
	g.GET("/:id", h.GetRule)
	g.PUT("/:id", h.UpdateRule)
	g.PATCH("/:id/active", h.SetRuleActive)
	g.DELETE("/:id", h.DeleteRule)
}

// ListRules lists rules of every entity kind, optionally narrowed with ?entity_kind.
func (h *Handler) ListRules(c echo.Context) error {
	ctx := c.Request().Context()

	rules, err := h.service.List(ctx, clcontext.GetTenantID(ctx))
	if err != nil {
		return err
	}

	if raw := c.QueryParam("entity_kind"); raw != "" {
		kind, err := models.ParseEntityKind(raw)
		if err != nil {
			return err
		}
		filtered := []models.QualificationRule{}
		for _, rule := range rules {
			if rule.EntityKind == kind {
				filtered = append(filtered, rule)
			}
		}
		rules = filtered
	}

	return c.JSON(http.StatusOK, rules)
}

func (h *Handler) CreateRule(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[models.CreateQualificationRuleRequest](c)
	if err != nil {
		return err
	}

	rule, err := h.service.Create(ctx, clcontext.GetTenantID(ctx), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, rule)
}

func (h *Handler) GetRule(c echo.Context) error {
	ctx := c.Request().Context()

	rule, err := h.service.Get(ctx, clcontext.GetTenantID(ctx), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rule)
}

func (h *Handler) UpdateRule(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[models.UpdateQualificationRuleRequest](c)
	if err != nil {
		return err
	}

	rule, err := h.service.Update(ctx, clcontext.GetTenantID(ctx), c.Param("id"), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rule)
}

func (h *Handler) SetRuleActive(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[models.SetRuleActiveRequest](c)
	if err != nil {
		return err
	}

	rule, err := h.service.SetActive(ctx, clcontext.GetTenantID(ctx), c.Param("id"), req.Active)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rule)
}

func (h *Handler) DeleteRule(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.service.Delete(ctx, clcontext.GetTenantID(ctx), c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// AuditRules reports active rules that point at deleted, deactivated or unknown fields.
func (h *Handler) AuditRules(c echo.Context) error {
	ctx := c.Request().Context()

	issues, err := h.service.Audit(ctx, clcontext.GetTenantID(ctx))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, issues)
}
