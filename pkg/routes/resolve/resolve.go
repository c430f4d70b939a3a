package resolve

import (
	"context"
	"net/http"

	clcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/resolver"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/labstack/echo/v4"
)

type FieldSetSource interface {
	ForTenant(ctx context.Context, tenantID string, kind models.EntityKind) (*resolver.FieldSet, error)
}

type Handler struct {
	fields FieldSetSource
}

func NewHandler(fields FieldSetSource) *Handler {
	return &Handler{fields: fields}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/:kind/resolve", h.Resolve)
}

// Resolve returns label, placeholder and requiredness for the requested keys in the
// request locale. Without ?keys every system and custom key of the kind is resolved.
func (h *Handler) Resolve(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := utils.EntityKindParam(c, "kind")
	if err != nil {
		return err
	}

	set, err := h.fields.ForTenant(ctx, clcontext.GetTenantID(ctx), kind)
	if err != nil {
		return err
	}

	keys := utils.ListQuery(c, "keys")
	if len(keys) == 0 {
		keys = set.Keys()
	}

	resolved := make([]models.ResolvedField, 0, len(keys))
	for _, key := range keys {
		resolved = append(resolved, set.Resolve(key))
	}

	return c.JSON(http.StatusOK, resolved)
}
