package values

import (
	"context"
	"net/http"

	clcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/labstack/echo/v4"
)

type Service interface {
	Set(ctx context.Context, tenantID string, kind models.EntityKind, entityID, fieldDefinitionID string, req models.SetValueRequest) (*models.TypedValue, error)
	SetMany(ctx context.Context, tenantID string, kind models.EntityKind, entityID string, req models.SetValuesRequest) (models.SetValuesResult, error)
	GetRecord(ctx context.Context, tenantID string, kind models.EntityKind, entityID, locale string) (models.Record, error)
	Delete(ctx context.Context, tenantID string, kind models.EntityKind, entityID, fieldDefinitionID string) error
	DeleteEntity(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (int64, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Register registers custom value routes of a record
func (h *Handler) Register(g *echo.Group) {
	g.GET("/:kind/records/:entity_id/values", h.GetRecord)
	g.PUT("/:kind/records/:entity_id/values", h.SetValues)
	g.DELETE("/:kind/records/:entity_id/values", h.DeleteRecord)
	g.PUT("/:kind/records/:entity_id/values/:field_id", h.SetValue)
	g.DELETE("/:kind/records/:entity_id/values/:field_id", h.DeleteValue)
}

// GetRecord renders every active custom field of the record in the request locale.
func (h *Handler) GetRecord(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := utils.EntityKindParam(c, "kind")
	if err != nil {
		return err
	}

	record, err := h.service.GetRecord(ctx, clcontext.GetTenantID(ctx), kind, c.Param("entity_id"), clcontext.GetLocale(ctx))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, record)
}

// SetValues writes many fields at once. Without allow_partial a single bad field rejects the batch.
func (h *Handler) SetValues(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := utils.EntityKindParam(c, "kind")
	if err != nil {
		return err
	}
	req, err := utils.BindRequest[models.SetValuesRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.SetMany(ctx, clcontext.GetTenantID(ctx), kind, c.Param("entity_id"), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) SetValue(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := utils.EntityKindParam(c, "kind")
	if err != nil {
		return err
	}
	req, err := utils.BindRequest[models.SetValueRequest](c)
	if err != nil {
		return err
	}

	value, err := h.service.Set(ctx, clcontext.GetTenantID(ctx), kind, c.Param("entity_id"), c.Param("field_id"), req)
	if err != nil {
		return err
	}
	if value == nil {
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusOK, value)
}

func (h *Handler) DeleteValue(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := utils.EntityKindParam(c, "kind")
	if err != nil {
		return err
	}

	if err := h.service.Delete(ctx, clcontext.GetTenantID(ctx), kind, c.Param("entity_id"), c.Param("field_id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// DeleteRecord removes every custom value of a record, used when the record itself is deleted.
func (h *Handler) DeleteRecord(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := utils.EntityKindParam(c, "kind")
	if err != nil {
		return err
	}

	deleted, err := h.service.DeleteEntity(ctx, clcontext.GetTenantID(ctx), kind, c.Param("entity_id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]int64{"deleted": deleted})
}
