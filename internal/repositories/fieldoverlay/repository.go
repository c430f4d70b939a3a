package fieldoverlay

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type Repository struct {
	db     database.DB
	logger ectologger.Logger
	now    func() time.Time
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (r *Repository) List(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldOverlay, error) {
	ctx, span := tracing.StartSpan(ctx, "FieldOverlayRepository.List", tracing.TenantAttr(tenantID))
	defer span.End()

	sb := fieldOverlayStruct.SelectFrom(fieldOverlayTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_kind", string(kind)),
	)
	sb.OrderBy("field_key")

	query, args := sb.Build()

	var rows []FieldOverlayRow
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":   tenantID,
			"entity_kind": kind,
		}).Error("error listing field overlays")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing field overlays")
	}

	overlays := make([]models.FieldOverlay, 0, len(rows))
	for i := range rows {
		overlays = append(overlays, ToFieldOverlay(&rows[i]))
	}
	return overlays, nil
}

// Upsert writes the overlay of a (tenant, kind, key) and reads back the stored row,
// which keeps its original id and created_at when it already existed.
func (r *Repository) Upsert(ctx context.Context, overlay models.FieldOverlay) (models.FieldOverlay, error) {
	ctx, span := tracing.StartSpan(ctx, "FieldOverlayRepository.Upsert", tracing.TenantAttr(overlay.TenantID))
	defer span.End()

	now := r.now().UTC()
	overlay.CreatedAt = now
	overlay.UpdatedAt = now

	row := FromFieldOverlay(overlay)
	ib := fieldOverlayStruct.InsertInto(fieldOverlayTable, row)
	ub := ib.OnConflict("tenant_id", "entity_kind", "field_key")
	ub.Set(
		ub.Assign("label", database.Excluded("label")),
		ub.Assign("placeholder", database.Excluded("placeholder")),
		ub.Assign("required", database.Excluded("required")),
		ub.Assign("updated_at", now),
	)

	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return models.FieldOverlay{}, err
	}
	defer tx.Rollback(ctx)

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   overlay.TenantID,
		"entity_kind": overlay.EntityKind,
		"field_key":   overlay.FieldKey,
	})

	log.Info("Upserting field overlay")
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("error upserting field overlay")
		return models.FieldOverlay{}, httperror.NewHTTPError(http.StatusInternalServerError, "error upserting field overlay")
	}

	sb := fieldOverlayStruct.SelectFrom(fieldOverlayTable)
	sb.Where(
		sb.Equal("tenant_id", overlay.TenantID),
		sb.Equal("entity_kind", string(overlay.EntityKind)),
		sb.Equal("field_key", overlay.FieldKey),
	)
	query, args = sb.Build()

	var stored FieldOverlayRow
	if err = tx.GetContext(ctx, &stored, query, args...); err != nil {
		log.WithError(err).Error("error reading upserted field overlay")
		return models.FieldOverlay{}, httperror.NewHTTPError(http.StatusInternalServerError, "error upserting field overlay")
	}

	if err = tx.Commit(ctx); err != nil {
		return models.FieldOverlay{}, err
	}
	return ToFieldOverlay(&stored), nil
}

// Delete removes an overlay so the key falls back to its defaults.
func (r *Repository) Delete(ctx context.Context, tenantID string, kind models.EntityKind, fieldKey string) error {
	ctx, span := tracing.StartSpan(ctx, "FieldOverlayRepository.Delete", tracing.TenantAttr(tenantID))
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(fieldOverlayTable)
	db.Where(
		db.Equal("tenant_id", tenantID),
		db.Equal("entity_kind", string(kind)),
		db.Equal("field_key", fieldKey),
	)

	query, args := db.Build()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"entity_kind": kind,
		"field_key":   fieldKey,
	})

	result, err := r.db.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		log.WithError(err).Error("error deleting field overlay")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error deleting field overlay")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		log.Warn("Field overlay not found")
		return httperror.NewHTTPError(http.StatusNotFound, "field overlay not found")
	}
	return nil
}
