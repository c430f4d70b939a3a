package typedvalue

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

type TypedValueRepository interface {
	UpsertMany(ctx context.Context, values []models.TypedValue) ([]models.TypedValue, error)
	GetAll(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (map[string]models.TypedValue, error)
	Delete(ctx context.Context, tenantID, fieldDefinitionID string, kind models.EntityKind, entityID string) error
	DeleteEntity(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (int64, error)
}

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

// UpsertMany writes every slot in one statement. Each conflicting slot has all five
// value columns replaced, so a retyped write never leaves a stale column behind.
// The returned values carry the id and created_at of the row that holds each slot.
func (r *Repository) UpsertMany(ctx context.Context, values []models.TypedValue) ([]models.TypedValue, error) {
	ctx, span := tracing.StartSpan(ctx, "TypedValueRepository.UpsertMany")
	defer span.End()

	if len(values) == 0 {
		return values, nil
	}

	now := r.now().UTC()
	rows := make([]any, 0, len(values))
	for _, value := range values {
		if value.CreatedAt.IsZero() {
			value.CreatedAt = now
		}
		value.UpdatedAt = now
		rows = append(rows, FromTypedValue(value))
	}

	ib := typedValueStruct.InsertInto(typedValueTable, rows...)
	ub := ib.OnConflict("field_definition_id", "entity_kind", "entity_id")
	ub.Set(
		ub.Assign("text_value", database.Excluded("text_value")),
		ub.Assign("number_value", database.Excluded("number_value")),
		ub.Assign("date_value", database.Excluded("date_value")),
		ub.Assign("boolean_value", database.Excluded("boolean_value")),
		ub.Assign("json_value", database.Excluded("json_value")),
		ub.Assign("updated_at", now),
	)
	ib.Returning("id", "field_definition_id", "created_at")

	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   values[0].TenantID,
		"entity_kind": values[0].EntityKind,
		"entity_id":   values[0].EntityID,
		"count":       len(values),
	})

	log.Info("Upserting typed values")
	stored := []storedSlot{}
	if err = tx.SelectContext(ctx, &stored, query, args...); err != nil {
		log.WithError(err).Error("error upserting typed values")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error upserting typed values")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	slots := make(map[string]storedSlot, len(stored))
	for _, slot := range stored {
		slots[slot.FieldDefinitionID] = slot
	}

	written := make([]models.TypedValue, 0, len(values))
	for _, value := range values {
		if slot, ok := slots[value.FieldDefinitionID]; ok {
			value.ID = slot.ID
			value.CreatedAt = slot.CreatedAt
		}
		value.UpdatedAt = now
		written = append(written, value)
	}
	return written, nil
}

type storedSlot struct {
	ID                string    `db:"id"`
	FieldDefinitionID string    `db:"field_definition_id"`
	CreatedAt         time.Time `db:"created_at"`
}

// GetAll returns the record's value slots keyed by field definition id.
func (r *Repository) GetAll(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (map[string]models.TypedValue, error) {
	ctx, span := tracing.StartSpan(ctx, "TypedValueRepository.GetAll", tracing.TenantAttr(tenantID))
	defer span.End()

	sb := typedValueStruct.SelectFrom(typedValueTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_kind", string(kind)),
		sb.Equal("entity_id", entityID),
	)

	query, args := sb.Build()

	var rows []TypedValueRow
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":   tenantID,
			"entity_kind": kind,
			"entity_id":   entityID,
		}).Error("error getting typed values")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error getting typed values")
	}

	values := make(map[string]models.TypedValue, len(rows))
	for i := range rows {
		value := ToTypedValue(&rows[i])
		values[value.FieldDefinitionID] = value
	}
	return values, nil
}

// Delete removes one slot. Removing a slot that does not exist is not an error.
func (r *Repository) Delete(ctx context.Context, tenantID, fieldDefinitionID string, kind models.EntityKind, entityID string) error {
	ctx, span := tracing.StartSpan(ctx, "TypedValueRepository.Delete", tracing.TenantAttr(tenantID))
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(typedValueTable)
	db.Where(
		db.Equal("tenant_id", tenantID),
		db.Equal("field_definition_id", fieldDefinitionID),
		db.Equal("entity_kind", string(kind)),
		db.Equal("entity_id", entityID),
	)

	query, args := db.Build()

	if _, err := r.db.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":           tenantID,
			"field_definition_id": fieldDefinitionID,
			"entity_kind":         kind,
			"entity_id":           entityID,
		}).Error("error deleting typed value")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error deleting typed value")
	}
	return nil
}

// DeleteEntity removes every slot of a record, for hard deletes of the owning record.
func (r *Repository) DeleteEntity(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "TypedValueRepository.DeleteEntity", tracing.TenantAttr(tenantID))
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(typedValueTable)
	db.Where(
		db.Equal("tenant_id", tenantID),
		db.Equal("entity_kind", string(kind)),
		db.Equal("entity_id", entityID),
	)

	query, args := db.Build()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"entity_kind": kind,
		"entity_id":   entityID,
	})

	result, err := r.db.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		log.WithError(err).Error("error deleting record values")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "error deleting record values")
	}
	affected, _ := result.RowsAffected()
	log.WithField("deleted", affected).Info("Deleted record values")
	return affected, nil
}
