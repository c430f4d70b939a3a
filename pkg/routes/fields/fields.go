package fields

import (
	"context"
	"net/http"

	clcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/labstack/echo/v4"
)

type Service interface {
	Create(ctx context.Context, tenantID string, req models.CreateFieldDefinitionRequest) (models.FieldDefinition, error)
	Update(ctx context.Context, tenantID, id string, req models.UpdateFieldDefinitionRequest) (models.FieldDefinition, error)
	Deactivate(ctx context.Context, tenantID, id string) error
	Get(ctx context.Context, tenantID, id string) (models.FieldDefinition, error)
	List(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldDefinition, error)
	ListAll(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldDefinition, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Register registers field definition routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/:kind/fields", h.ListFields)
	g.POST("/:kind/fields", h.CreateField)
	g.GET("/:kind/fields/:id", h.GetField)
	g.PATCH("/:kind/fields/:id", h.UpdateField)
	g.DELETE("/:kind/fields/:id", h.DeactivateField)
}

// ListFields lists the active custom fields of an entity kind. ?include_inactive=true
// also returns deactivated ones.
func (h *Handler) ListFields(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := clcontext.GetTenantID(ctx)

	kind, err := utils.EntityKindParam(c, "kind")
	if err != nil {
		return err
	}
	includeInactive, err := utils.OptionalBoolQuery(c, "include_inactive")
	if err != nil {
		return err
	}

	var definitions []models.FieldDefinition
	if includeInactive != nil && *includeInactive {
		definitions, err = h.service.ListAll(ctx, tenantID, kind)
	} else {
		definitions, err = h.service.List(ctx, tenantID, kind)
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, definitions)
}

func (h *Handler) CreateField(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := clcontext.GetTenantID(ctx)

	kind, err := utils.EntityKindParam(c, "kind")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.CreateFieldDefinitionRequest](c)
	if err != nil {
		return err
	}
	req.EntityKind = kind.String()

	definition, err := h.service.Create(ctx, tenantID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, definition)
}

func (h *Handler) GetField(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := clcontext.GetTenantID(ctx)

	definition, err := h.service.Get(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, definition)
}

func (h *Handler) UpdateField(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := clcontext.GetTenantID(ctx)

	req, err := utils.BindRequest[models.UpdateFieldDefinitionRequest](c)
	if err != nil {
		return err
	}

	definition, err := h.service.Update(ctx, tenantID, c.Param("id"), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, definition)
}

// DeactivateField soft deletes a custom field. Its stored values are kept.
func (h *Handler) DeactivateField(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := clcontext.GetTenantID(ctx)

	if err := h.service.Deactivate(ctx, tenantID, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
