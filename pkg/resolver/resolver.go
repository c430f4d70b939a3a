// Package resolver answers how a field key should be labelled, whether it is
// required and what placeholder it shows. Lookups go tenant configuration first,
// then the compiled-in system field table, then the caller's fallback.
package resolver

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"
	clcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type OverlayRepository interface {
	List(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldOverlay, error)
	Upsert(ctx context.Context, overlay models.FieldOverlay) (models.FieldOverlay, error)
	Delete(ctx context.Context, tenantID string, kind models.EntityKind, fieldKey string) error
}

// DefinitionSource lists a tenant's active custom field definitions.
type DefinitionSource interface {
	List(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldDefinition, error)
}

type Resolver struct {
	catalog     *Catalog
	overlays    OverlayRepository
	definitions DefinitionSource
	logger      ectologger.Logger
}

func NewResolver(catalog *Catalog, overlays OverlayRepository, definitions DefinitionSource, logger ectologger.Logger) *Resolver {
	return &Resolver{
		catalog:     catalog,
		overlays:    overlays,
		definitions: definitions,
		logger:      logger,
	}
}

func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// ForTenant loads the tenant configuration of an entity kind once so that many
// keys can be resolved without further reads.
func (r *Resolver) ForTenant(ctx context.Context, tenantID string, kind models.EntityKind) (*FieldSet, error) {
	ctx, span := tracing.StartSpan(ctx, "Resolver.ForTenant")
	defer span.End()

	overlays, err := r.overlays.List(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}
	definitions, err := r.definitions.List(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}

	return NewFieldSet(r.catalog, kind, clcontext.GetLocale(ctx), overlays, definitions), nil
}

// SetOverlay stores tenant configuration for a system field.
func (r *Resolver) SetOverlay(ctx context.Context, tenantID string, kind models.EntityKind, fieldKey string, req models.SetFieldOverlayRequest) (models.FieldOverlay, error) {
	ctx, span := tracing.StartSpan(ctx, "Resolver.SetOverlay")
	defer span.End()

	field, ok := r.catalog.Lookup(kind, fieldKey)
	if !ok {
		return models.FieldOverlay{}, errors.NewValidationError("field_key", "'%s' is not a system field of %s", fieldKey, kind)
	}
	if field.Mandatory && req.Required != nil && !*req.Required {
		return models.FieldOverlay{}, errors.NewSystemFieldError(fieldKey, "made optional")
	}

	overlay := models.FieldOverlay{
		TenantID:    tenantID,
		EntityKind:  kind,
		FieldKey:    fieldKey,
		Label:       trimmed(req.Label),
		Placeholder: trimmed(req.Placeholder),
		Required:    req.Required,
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"entity_kind": kind,
		"field_key":   fieldKey,
	}).Info("Setting field overlay")

	return r.overlays.Upsert(ctx, overlay)
}

func (r *Resolver) ListOverlays(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldOverlay, error) {
	ctx, span := tracing.StartSpan(ctx, "Resolver.ListOverlays")
	defer span.End()

	return r.overlays.List(ctx, tenantID, kind)
}

func (r *Resolver) ClearOverlay(ctx context.Context, tenantID string, kind models.EntityKind, fieldKey string) error {
	ctx, span := tracing.StartSpan(ctx, "Resolver.ClearOverlay")
	defer span.End()

	if _, ok := r.catalog.Lookup(kind, fieldKey); !ok {
		return errors.NewValidationError("field_key", "'%s' is not a system field of %s", fieldKey, kind)
	}
	return r.overlays.Delete(ctx, tenantID, kind, fieldKey)
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	t := strings.TrimSpace(*value)
	if t == "" {
		return nil
	}
	return &t
}
