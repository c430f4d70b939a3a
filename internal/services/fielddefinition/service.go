package fielddefinition

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/internal/repositories/fielddefinition"
	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/slug"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/values"
	"github.com/google/uuid"
)

type Service struct {
	logger ectologger.Logger
	repo   fielddefinition.FieldDefinitionRepository
	cache  cache.DefinitionCache
	now    func() time.Time
}

func NewService(repo fielddefinition.FieldDefinitionRepository, definitionCache cache.DefinitionCache, logger ectologger.Logger) *Service {
	if definitionCache == nil {
		definitionCache = cache.Noop{}
	}
	return &Service{
		logger: logger,
		repo:   repo,
		cache:  definitionCache,
		now:    time.Now,
	}
}

// Create adds a tenant field. The slug is derived from the name and must be free
// among the active definitions of the same entity kind.
func (s *Service) Create(ctx context.Context, tenantID string, req models.CreateFieldDefinitionRequest) (models.FieldDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "fielddefinition.Create", tracing.TenantAttr(tenantID))
	defer span.End()

	if tenantID == "" {
		return models.FieldDefinition{}, errors.NewValidationError("tenant_id", "tenant_id is required")
	}

	kind, err := models.ParseEntityKind(req.EntityKind)
	if err != nil {
		return models.FieldDefinition{}, err
	}

	declaredType, err := models.ParseDeclaredType(req.DeclaredType)
	if err != nil {
		return models.FieldDefinition{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.FieldDefinition{}, errors.NewValidationError("name", "name is required")
	}

	fieldSlug := slug.Make(name)
	if fieldSlug == "" {
		return models.FieldDefinition{}, errors.NewValidationError("name", "name '%s' has no characters usable in a slug", name)
	}

	now := s.now().UTC()
	definition := models.FieldDefinition{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		EntityKind:      kind,
		Slug:            fieldSlug,
		Name:            name,
		Description:     strings.TrimSpace(req.Description),
		DeclaredType:    declaredType,
		Required:        req.Required,
		Placeholder:     req.Placeholder,
		ValidationRules: req.ValidationRules,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.DisplayOrder != nil {
		definition.DisplayOrder = *req.DisplayOrder
	}

	definition.Options, err = cleanOptions(declaredType, req.Options)
	if err != nil {
		return models.FieldDefinition{}, err
	}

	if err := s.validate(&definition, req.DefaultValue); err != nil {
		return models.FieldDefinition{}, err
	}

	exists, err := s.repo.SlugExists(ctx, tenantID, kind, fieldSlug)
	if err != nil {
		return models.FieldDefinition{}, err
	}
	if exists {
		return models.FieldDefinition{}, errors.NewValidationError("name", "a field with slug '%s' already exists for %s", fieldSlug, kind)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            definition.ID,
		"slug":          definition.Slug,
		"entity_kind":   definition.EntityKind,
		"declared_type": definition.DeclaredType,
		"tenant_id":     tenantID,
	}).Info("creating field definition")

	created, err := s.repo.Upsert(ctx, definition)
	if err != nil {
		return models.FieldDefinition{}, err
	}

	s.cache.Invalidate(ctx, tenantID, kind)
	return created, nil
}

// Update applies a partial update. Retyping or deactivating a system field fails with
// SystemFieldError; changing the type or slug of any other field fails with
// ImmutableFieldError. Nothing is written when a check fails.
func (s *Service) Update(ctx context.Context, tenantID, id string, req models.UpdateFieldDefinitionRequest) (models.FieldDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "fielddefinition.Update", tracing.TenantAttr(tenantID))
	defer span.End()

	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return models.FieldDefinition{}, err
	}

	retyped := req.DeclaredType != nil && !strings.EqualFold(strings.TrimSpace(*req.DeclaredType), existing.DeclaredType.String())
	reslugged := req.Slug != nil && strings.TrimSpace(*req.Slug) != existing.Slug

	if existing.IsSystem {
		if retyped {
			return models.FieldDefinition{}, errors.NewSystemFieldError(id, "retype")
		}
		if req.Active != nil && !*req.Active {
			return models.FieldDefinition{}, errors.NewSystemFieldError(id, "deactivate")
		}
	}
	if retyped {
		return models.FieldDefinition{}, errors.NewImmutableFieldError(id, "declared_type")
	}
	if reslugged {
		return models.FieldDefinition{}, errors.NewImmutableFieldError(id, "slug")
	}

	updated := existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return models.FieldDefinition{}, errors.NewValidationError("name", "name cannot be empty")
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Required != nil {
		updated.Required = *req.Required
	}
	if req.Placeholder != nil {
		updated.Placeholder = req.Placeholder
	}
	if req.DisplayOrder != nil {
		updated.DisplayOrder = *req.DisplayOrder
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if req.ValidationRules != nil {
		updated.ValidationRules = req.ValidationRules
	}
	if req.Options != nil {
		updated.Options, err = cleanOptions(updated.DeclaredType, req.Options)
		if err != nil {
			return models.FieldDefinition{}, err
		}
	}

	defaultValue := updated.DefaultValue
	if req.DefaultValue != nil {
		defaultValue = req.DefaultValue
	}
	if err := s.validate(&updated, defaultValue); err != nil {
		return models.FieldDefinition{}, err
	}
	updated.UpdatedAt = s.now().UTC()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"slug":      updated.Slug,
		"tenant_id": tenantID,
	}).Info("updating field definition")

	saved, err := s.repo.Upsert(ctx, updated)
	if err != nil {
		return models.FieldDefinition{}, err
	}

	s.cache.Invalidate(ctx, tenantID, saved.EntityKind)
	return saved, nil
}

// Deactivate soft-deletes a definition. Its stored values are kept.
func (s *Service) Deactivate(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "fielddefinition.Deactivate", tracing.TenantAttr(tenantID))
	defer span.End()

	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return errors.NewSystemFieldError(id, "delete")
	}

	if err := s.repo.Deactivate(ctx, tenantID, id); err != nil {
		return err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"slug":      existing.Slug,
		"tenant_id": tenantID,
	}).Info("deactivated field definition")

	s.cache.Invalidate(ctx, tenantID, existing.EntityKind)
	return nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (models.FieldDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "fielddefinition.Get", tracing.TenantAttr(tenantID))
	defer span.End()

	return s.repo.Get(ctx, tenantID, id)
}

// List returns the active definitions of an entity kind, system fields first and
// then by display order. Results are served from the definition cache when possible.
func (s *Service) List(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "fielddefinition.List", tracing.TenantAttr(tenantID))
	defer span.End()

	definitions, generation, ok := s.cache.Get(ctx, tenantID, kind)
	if ok {
		return definitions, nil
	}

	definitions, err := s.repo.List(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, tenantID, kind, generation, definitions)
	return definitions, nil
}

// ListAll includes inactive definitions for administration screens.
func (s *Service) ListAll(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "fielddefinition.ListAll", tracing.TenantAttr(tenantID))
	defer span.End()

	return s.repo.ListAll(ctx, tenantID, kind)
}

func (s *Service) GetByIDs(ctx context.Context, tenantID string, ids []string) (map[string]models.FieldDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "fielddefinition.GetByIDs", tracing.TenantAttr(tenantID))
	defer span.End()

	return s.repo.GetByIDs(ctx, tenantID, ids)
}

// validate checks the validation rules and default value of a definition and stores the
// default in canonical input form.
func (s *Service) validate(definition *models.FieldDefinition, defaultValue *string) error {
	if _, err := values.ParseValidationRules(definition.ValidationRules); err != nil {
		return err
	}

	definition.DefaultValue = nil
	if defaultValue == nil || strings.TrimSpace(*defaultValue) == "" {
		return nil
	}
	if _, err := values.FromInputFor(*definition, *defaultValue); err != nil {
		return errors.NewValidationError("default_value", "default value does not fit the field: %s", err)
	}
	trimmed := strings.TrimSpace(*defaultValue)
	definition.DefaultValue = &trimmed
	return nil
}

// cleanOptions trims options, drops blanks and case-insensitive duplicates, and keeps
// the first spelling in order. Non-select types carry no options.
func cleanOptions(declaredType models.DeclaredType, options []string) ([]string, error) {
	if !declaredType.RequiresOptions() {
		return nil, nil
	}

	cleaned := make([]string, 0, len(options))
	seen := make([]string, 0, len(options))
	for _, option := range options {
		option = strings.TrimSpace(option)
		folded := strings.ToLower(option)
		if option == "" || ectolinq.Contains(seen, folded) {
			continue
		}
		seen = append(seen, folded)
		cleaned = append(cleaned, option)
	}

	if len(cleaned) == 0 {
		return nil, errors.NewValidationError("options", "%s fields need at least one option", declaredType)
	}
	return cleaned, nil
}
