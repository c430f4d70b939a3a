package typedvalue

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/internal/repositories/typedvalue"
	clcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/resolver"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/values"
	"github.com/google/uuid"
)

// DefinitionSource is satisfied by the field definition service.
type DefinitionSource interface {
	GetByIDs(ctx context.Context, tenantID string, ids []string) (map[string]models.FieldDefinition, error)
	List(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldDefinition, error)
}

type FieldSetSource interface {
	ForTenant(ctx context.Context, tenantID string, kind models.EntityKind) (*resolver.FieldSet, error)
}

// Transactor is satisfied by database.DB. Writes and deletes of one save share a transaction.
type Transactor interface {
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error)
}

type Service struct {
	logger      ectologger.Logger
	repo        typedvalue.TypedValueRepository
	definitions DefinitionSource
	fields      FieldSetSource
	db          Transactor
	emitter     events.Emitter
	now         func() time.Time
}

func NewService(repo typedvalue.TypedValueRepository, definitions DefinitionSource, fields FieldSetSource, db Transactor, emitter events.Emitter, logger ectologger.Logger) *Service {
	if emitter == nil {
		emitter = events.Noop{}
	}
	return &Service{
		logger:      logger,
		repo:        repo,
		definitions: definitions,
		fields:      fields,
		db:          db,
		emitter:     emitter,
		now:         time.Now,
	}
}

// Set coerces raw input for one field and writes it into the field's single legal
// column. Empty input clears the slot. The written value is nil when the slot was cleared.
func (s *Service) Set(ctx context.Context, tenantID string, kind models.EntityKind, entityID, fieldDefinitionID string, req models.SetValueRequest) (*models.TypedValue, error) {
	ctx, span := tracing.StartSpan(ctx, "typedvalue.Set", tracing.TenantAttr(tenantID))
	defer span.End()

	result, err := s.SetMany(ctx, tenantID, kind, entityID, models.SetValuesRequest{
		Values:              map[string]any{fieldDefinitionID: req.Value},
		PreviouslyQualified: req.PreviouslyQualified,
	})
	if err != nil {
		if fieldErrors, ok := errors.AsFieldErrors(err); ok {
			if fieldErr, ok := fieldErrors.Errors[fieldDefinitionID]; ok {
				return nil, fieldErr
			}
		}
		return nil, err
	}

	if len(result.Written) == 0 {
		return nil, nil
	}
	return &result.Written[0], nil
}

// SetMany saves a record's form. Every field is coerced on its own and failures are
// collected per field. Nothing is written when a field fails unless AllowPartial is
// set, in which case the valid fields are written and the failures still returned.
func (s *Service) SetMany(ctx context.Context, tenantID string, kind models.EntityKind, entityID string, req models.SetValuesRequest) (models.SetValuesResult, error) {
	ctx, span := tracing.StartSpan(ctx, "typedvalue.SetMany", tracing.TenantAttr(tenantID))
	defer span.End()

	result := models.SetValuesResult{Written: []models.TypedValue{}, Cleared: []string{}}

	if err := s.validateRecord(tenantID, kind, entityID); err != nil {
		return result, err
	}
	if len(req.Values) == 0 {
		return result, errors.NewValidationError("values", "at least one value is required")
	}

	ids := make([]string, 0, len(req.Values))
	for id := range req.Values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	definitions, err := s.definitions.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return result, err
	}

	now := s.now().UTC()
	fieldErrors := errors.NewFieldErrors()
	writes := []models.TypedValue{}
	clears := []string{}

	for _, id := range ids {
		definition, err := s.usableDefinition(definitions, id, kind)
		if err != nil {
			fieldErrors.Add(id, err)
			continue
		}

		stored, err := values.FromInputFor(definition, req.Values[id])
		if err != nil {
			metrics.RecordCoercionFailure(definition.DeclaredType.String())
			fieldErrors.Add(id, err)
			continue
		}

		if stored == nil {
			if definition.Required {
				fieldErrors.Add(id, errors.NewValidationError(definition.Key(), "%s is required", definition.Name))
				continue
			}
			clears = append(clears, id)
			continue
		}

		value := models.TypedValue{
			ID:                uuid.New().String(),
			TenantID:          tenantID,
			FieldDefinitionID: id,
			EntityKind:        kind,
			EntityID:          entityID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		value.SetStored(stored)
		writes = append(writes, value)
	}

	if fieldErrors.Len() > 0 {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"entity_kind":   kind,
			"entity_id":     entityID,
			"failed_fields": fieldErrors.Len(),
			"allow_partial": req.AllowPartial,
		}).Warn("rejected values on save")

		if !req.AllowPartial {
			return result, fieldErrors
		}
	}

	written, err := s.write(ctx, tenantID, kind, entityID, writes, clears)
	if err != nil {
		return result, err
	}

	result.Written = written
	result.Cleared = clears

	changed := append(make([]string, 0, len(writes)+len(clears)), clears...)
	for _, value := range writes {
		changed = append(changed, value.FieldDefinitionID)
	}
	if len(changed) > 0 {
		sort.Strings(changed)
		s.emitChanged(ctx, tenantID, kind, entityID, changed, req.PreviouslyQualified, req.Record)
	}

	return result, fieldErrors.ErrorOrNil()
}

func (s *Service) write(ctx context.Context, tenantID string, kind models.EntityKind, entityID string, writes []models.TypedValue, clears []string) ([]models.TypedValue, error) {
	if len(writes) == 0 && len(clears) == 0 {
		return writes, nil
	}

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	written, err := s.repo.UpsertMany(ctx, writes)
	if err != nil {
		return nil, err
	}
	for _, id := range clears {
		if err := s.repo.Delete(ctx, tenantID, id, kind, entityID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	for range writes {
		metrics.RecordValueWrite(kind.String(), "set")
	}
	for range clears {
		metrics.RecordValueWrite(kind.String(), "delete")
	}
	return written, nil
}

// GetAll returns the stored slots of a record keyed by field definition id.
func (s *Service) GetAll(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (map[string]models.TypedValue, error) {
	ctx, span := tracing.StartSpan(ctx, "typedvalue.GetAll", tracing.TenantAttr(tenantID))
	defer span.End()

	if err := s.validateRecord(tenantID, kind, entityID); err != nil {
		return nil, err
	}
	return s.repo.GetAll(ctx, tenantID, kind, entityID)
}

// GetRecord hydrates every active custom field of a record with its label, canonical
// value and display string in the given locale. Fields without a value are included
// with a nil value.
func (s *Service) GetRecord(ctx context.Context, tenantID string, kind models.EntityKind, entityID, locale string) (models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "typedvalue.GetRecord", tracing.TenantAttr(tenantID))
	defer span.End()

	if locale == "" {
		locale = clcontext.GetLocale(ctx)
	}
	ctx = clcontext.SetLocale(ctx, locale)

	stored, err := s.GetAll(ctx, tenantID, kind, entityID)
	if err != nil {
		return models.Record{}, err
	}

	definitions, err := s.definitions.List(ctx, tenantID, kind)
	if err != nil {
		return models.Record{}, err
	}

	fieldSet, err := s.fields.ForTenant(ctx, tenantID, kind)
	if err != nil {
		return models.Record{}, err
	}

	record := models.Record{
		EntityKind: kind,
		EntityID:   entityID,
		Locale:     locale,
		Fields:     make([]models.RecordField, 0, len(definitions)),
	}

	for _, definition := range definitions {
		if !definition.IsUsable() {
			continue
		}

		field := models.RecordField{
			FieldDefinitionID: definition.ID,
			Key:               definition.Key(),
			Label:             fieldSet.LabelFor(definition.Key(), definition.Name),
			DeclaredType:      definition.DeclaredType,
			Required:          fieldSet.IsRequired(definition.Key(), definition.Required),
		}

		if value, ok := stored[definition.ID]; ok {
			canonical := values.FromTypedValue(definition.DeclaredType, &value)
			if !canonical.IsAbsent() {
				field.Value = canonical.Interface()
				field.Display = values.DisplayString(definition.DeclaredType, value.Stored(), locale)
			}
		}

		record.Fields = append(record.Fields, field)
	}

	return record, nil
}

// Delete removes one slot. Removing a slot that does not exist is not an error.
func (s *Service) Delete(ctx context.Context, tenantID string, kind models.EntityKind, entityID, fieldDefinitionID string) error {
	ctx, span := tracing.StartSpan(ctx, "typedvalue.Delete", tracing.TenantAttr(tenantID))
	defer span.End()

	if err := s.validateRecord(tenantID, kind, entityID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, tenantID, fieldDefinitionID, kind, entityID); err != nil {
		return err
	}
	metrics.RecordValueWrite(kind.String(), "delete")

	s.emitChanged(ctx, tenantID, kind, entityID, []string{fieldDefinitionID}, nil, nil)
	return nil
}

// DeleteEntity removes every slot of a record. Hosts call it when they hard-delete the record.
func (s *Service) DeleteEntity(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "typedvalue.DeleteEntity", tracing.TenantAttr(tenantID))
	defer span.End()

	if err := s.validateRecord(tenantID, kind, entityID); err != nil {
		return 0, err
	}

	removed, err := s.repo.DeleteEntity(ctx, tenantID, kind, entityID)
	if err != nil {
		return 0, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_kind": kind,
		"entity_id":   entityID,
		"removed":     removed,
	}).Info("removed record values")
	return removed, nil
}

func (s *Service) validateRecord(tenantID string, kind models.EntityKind, entityID string) error {
	if tenantID == "" {
		return errors.NewValidationError("tenant_id", "tenant_id is required")
	}
	if !kind.IsValid() {
		return errors.NewValidationError("entity_kind", "unknown entity kind '%s'", kind)
	}
	if strings.TrimSpace(entityID) == "" {
		return errors.NewValidationError("entity_id", "entity_id is required")
	}
	return nil
}

// usableDefinition rejects values for definitions that are gone, inactive or that belong
// to another entity kind.
func (s *Service) usableDefinition(definitions map[string]models.FieldDefinition, id string, kind models.EntityKind) (models.FieldDefinition, error) {
	definition, ok := definitions[id]
	switch {
	case !ok:
		return definition, &errors.UnresolvedReferenceError{FieldDefinitionID: id, Reason: "field definition does not exist"}
	case definition.DeletedAt != nil:
		return definition, &errors.UnresolvedReferenceError{FieldDefinitionID: id, Reason: "field definition was deleted"}
	case !definition.Active:
		return definition, &errors.UnresolvedReferenceError{FieldDefinitionID: id, Reason: "field definition is inactive"}
	case definition.EntityKind != kind:
		return definition, errors.NewValidationError("entity_kind", "field %s belongs to %s, not %s", definition.Key(), definition.EntityKind, kind)
	}
	return definition, nil
}

func (s *Service) emitChanged(ctx context.Context, tenantID string, kind models.EntityKind, entityID string, fieldIDs []string, previouslyQualified *bool, record map[string]any) {
	event := models.ValuesChangedEvent{
		TenantID:            tenantID,
		EntityKind:          kind,
		EntityID:            entityID,
		FieldDefinitionIDs:  fieldIDs,
		PreviouslyQualified: previouslyQualified,
		Record:              record,
		RequestID:           clcontext.GetRequestID(ctx),
		ChangedAt:           s.now().UTC(),
	}
	// The values are already committed; a lost event only delays re-evaluation.
	if err := s.emitter.EmitValuesChanged(ctx, event); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("values saved but change event was not published")
	}
}
