package fielddefinition

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/database"
	clerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/lib/pq"
)

// uniqueViolation is the postgres error code raised by the (tenant, kind, slug) index.
const uniqueViolation = "23505"

type FieldDefinitionRepository interface {
	Upsert(ctx context.Context, definition models.FieldDefinition) (models.FieldDefinition, error)
	Get(ctx context.Context, tenantID, id string) (models.FieldDefinition, error)
	GetByIDs(ctx context.Context, tenantID string, ids []string) (map[string]models.FieldDefinition, error)
	List(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldDefinition, error)
	ListAll(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldDefinition, error)
	SlugExists(ctx context.Context, tenantID string, kind models.EntityKind, slug string) (bool, error)
	Deactivate(ctx context.Context, tenantID, id string) error
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

// Upsert inserts or replaces a definition by id. slug, entity_kind and declared_type
// are never rewritten on conflict.
func (r *Repository) Upsert(ctx context.Context, definition models.FieldDefinition) (models.FieldDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "FieldDefinitionRepository.Upsert", tracing.TenantAttr(definition.TenantID))
	defer span.End()

	now := r.now().UTC()
	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = now
	}
	definition.UpdatedAt = now

	row := FromFieldDefinition(definition)
	ib := fieldDefinitionStruct.InsertInto(fieldDefinitionTable, row)
	ub := ib.OnConflict("id")
	ub.Set(
		ub.Assign("name", database.Excluded("name")),
		ub.Assign("description", database.Excluded("description")),
		ub.Assign("required", database.Excluded("required")),
		ub.Assign("default_value", database.Excluded("default_value")),
		ub.Assign("placeholder", database.Excluded("placeholder")),
		ub.Assign("options", database.Excluded("options")),
		ub.Assign("display_order", database.Excluded("display_order")),
		ub.Assign("active", database.Excluded("active")),
		ub.Assign("validation_rules", database.Excluded("validation_rules")),
		ub.Assign("deleted_at", database.Excluded("deleted_at")),
		ub.Assign("updated_at", now),
	)

	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return models.FieldDefinition{}, err
	}
	defer tx.Rollback(ctx)

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":          definition.ID,
		"tenant_id":   definition.TenantID,
		"entity_kind": definition.EntityKind,
		"slug":        definition.Slug,
	})

	log.Info("Upserting field definition")
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			log.Warn("Field definition slug already exists")
			return models.FieldDefinition{}, clerrors.NewValidationError("name", "a field with slug %q already exists", definition.Slug)
		}
		log.WithError(err).Error("error upserting field definition")
		return models.FieldDefinition{}, httperror.NewHTTPError(http.StatusInternalServerError, "error upserting field definition")
	}

	if err = tx.Commit(ctx); err != nil {
		return models.FieldDefinition{}, err
	}

	return definition, nil
}

// Get returns a definition that has not been deleted.
func (r *Repository) Get(ctx context.Context, tenantID, id string) (models.FieldDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "FieldDefinitionRepository.Get", tracing.TenantAttr(tenantID))
	defer span.End()

	sb := fieldDefinitionStruct.SelectFrom(fieldDefinitionTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	var row FieldDefinitionRow
	err := r.db.Querier(ctx).GetContext(ctx, &row, query, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			r.logger.WithContext(ctx).WithFields(map[string]any{
				"id":        id,
				"tenant_id": tenantID,
			}).Warn("Field definition not found")
			return models.FieldDefinition{}, httperror.NewHTTPError(http.StatusNotFound, "field definition not found")
		}

		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":        id,
			"tenant_id": tenantID,
		}).Error("error getting field definition")
		return models.FieldDefinition{}, httperror.NewHTTPError(http.StatusInternalServerError, "error getting field definition")
	}

	return ToFieldDefinition(&row), nil
}

// GetByIDs returns the requested definitions in any state, deleted and inactive included.
func (r *Repository) GetByIDs(ctx context.Context, tenantID string, ids []string) (map[string]models.FieldDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "FieldDefinitionRepository.GetByIDs", tracing.TenantAttr(tenantID))
	defer span.End()

	result := map[string]models.FieldDefinition{}
	if len(ids) == 0 {
		return result, nil
	}

	in := make([]any, 0, len(ids))
	for _, id := range ids {
		in = append(in, id)
	}

	sb := fieldDefinitionStruct.SelectFrom(fieldDefinitionTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", in...),
	)

	query, args := sb.Build()

	var rows []FieldDefinitionRow
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": tenantID,
			"ids":       ids,
		}).Error("error getting field definitions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error getting field definitions")
	}

	for i := range rows {
		definition := ToFieldDefinition(&rows[i])
		result[definition.ID] = definition
	}
	return result, nil
}

// List returns the active definitions of a kind, system fields first then by display order.
func (r *Repository) List(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "FieldDefinitionRepository.List", tracing.TenantAttr(tenantID))
	defer span.End()

	return r.list(ctx, tenantID, kind, true)
}

// ListAll is List including inactive definitions, for administration screens.
func (r *Repository) ListAll(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "FieldDefinitionRepository.ListAll", tracing.TenantAttr(tenantID))
	defer span.End()

	return r.list(ctx, tenantID, kind, false)
}

func (r *Repository) list(ctx context.Context, tenantID string, kind models.EntityKind, activeOnly bool) ([]models.FieldDefinition, error) {
	sb := fieldDefinitionStruct.SelectFrom(fieldDefinitionTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_kind", string(kind)),
		sb.IsNull("deleted_at"),
	)
	if activeOnly {
		sb.Where(sb.Equal("active", true))
	}
	sb.OrderBy("is_system DESC", "display_order", "name")

	query, args := sb.Build()

	var rows []FieldDefinitionRow
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":   tenantID,
			"entity_kind": kind,
		}).Error("error listing field definitions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "error listing field definitions")
	}

	definitions := make([]models.FieldDefinition, 0, len(rows))
	for i := range rows {
		definitions = append(definitions, ToFieldDefinition(&rows[i]))
	}
	return definitions, nil
}

// SlugExists reports whether a live definition of the kind already uses slug.
func (r *Repository) SlugExists(ctx context.Context, tenantID string, kind models.EntityKind, slug string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "FieldDefinitionRepository.SlugExists", tracing.TenantAttr(tenantID))
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)").From(fieldDefinitionTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_kind", string(kind)),
		sb.Equal("slug", slug),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	var count int
	if err := r.db.Querier(ctx).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":   tenantID,
			"entity_kind": kind,
			"slug":        slug,
		}).Error("error checking field definition slug")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "error checking field definition slug")
	}
	return count > 0, nil
}

// Deactivate soft deletes a definition. Its values are kept.
func (r *Repository) Deactivate(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "FieldDefinitionRepository.Deactivate", tracing.TenantAttr(tenantID))
	defer span.End()

	now := r.now().UTC()
	ub := database.NewUpdateBuilder()
	ub.Update(fieldDefinitionTable)
	ub.Set(
		ub.Assign("active", false),
		ub.Assign("deleted_at", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(
		ub.Equal("tenant_id", tenantID),
		ub.Equal("id", id),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
	})

	log.Info("Deactivating field definition")
	result, err := r.db.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		log.WithError(err).Error("error deactivating field definition")
		return httperror.NewHTTPError(http.StatusInternalServerError, "error deactivating field definition")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		log.Warn("Field definition not found")
		return httperror.NewHTTPError(http.StatusNotFound, "field definition not found")
	}
	return nil
}
