package overlays

import (
	"context"
	"net/http"

	clcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/labstack/echo/v4"
)

// Service manages tenant configuration of system fields.
type Service interface {
	SetOverlay(ctx context.Context, tenantID string, kind models.EntityKind, fieldKey string, req models.SetFieldOverlayRequest) (models.FieldOverlay, error)
	ListOverlays(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldOverlay, error)
	ClearOverlay(ctx context.Context, tenantID string, kind models.EntityKind, fieldKey string) error
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/:kind/overlays", h.ListOverlays)
	g.PUT("/:kind/overlays/:key", h.SetOverlay)
	g.DELETE("/:kind/overlays/:key", h.ClearOverlay)
}

func (h *Handler) ListOverlays(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := utils.EntityKindParam(c, "kind")
	if err != nil {
		return err
	}

	overlays, err := h.service.ListOverlays(ctx, clcontext.GetTenantID(ctx), kind)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, overlays)
}

func (h *Handler) SetOverlay(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := utils.EntityKindParam(c, "kind")
	if err != nil {
		return err
	}
	req, err := utils.BindRequest[models.SetFieldOverlayRequest](c)
	if err != nil {
		return err
	}

	overlay, err := h.service.SetOverlay(ctx, clcontext.GetTenantID(ctx), kind, c.Param("key"), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, overlay)
}

// ClearOverlay restores the compiled-in label, placeholder and requiredness of a system field.
func (h *Handler) ClearOverlay(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := utils.EntityKindParam(c, "kind")
	if err != nil {
		return err
	}

	if err := h.service.ClearOverlay(ctx, clcontext.GetTenantID(ctx), kind, c.Param("key")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
