package qualificationrule

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/internal/repositories/qualificationrule"
	clcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/qualification"
	"github.com/Ramsey-B/clover/pkg/resolver"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/google/uuid"
)

// DefinitionSource is satisfied by the field definition service.
type DefinitionSource interface {
	GetByIDs(ctx context.Context, tenantID string, ids []string) (map[string]models.FieldDefinition, error)
	List(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.FieldDefinition, error)
}

type Service struct {
	logger      ectologger.Logger
	repo        qualificationrule.QualificationRuleRepository
	definitions DefinitionSource
	catalog     *resolver.Catalog
	now         func() time.Time
}

func NewService(repo qualificationrule.QualificationRuleRepository, definitions DefinitionSource, catalog *resolver.Catalog, logger ectologger.Logger) *Service {
	return &Service{
		logger:      logger,
		repo:        repo,
		definitions: definitions,
		catalog:     catalog,
		now:         time.Now,
	}
}

// Create validates and stores a rule. A comparison operator needs at least one
// comparison value and is_empty/is_not_empty take none, so no saved rule has an
// undefined comparison.
func (s *Service) Create(ctx context.Context, tenantID string, req models.CreateQualificationRuleRequest) (models.QualificationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "qualificationrule.Create", tracing.TenantAttr(tenantID))
	defer span.End()

	if tenantID == "" {
		return models.QualificationRule{}, errors.NewValidationError("tenant_id", "tenant_id is required")
	}

	kind := models.EntityKindContact
	if strings.TrimSpace(req.EntityKind) != "" {
		parsed, err := models.ParseEntityKind(req.EntityKind)
		if err != nil {
			return models.QualificationRule{}, err
		}
		kind = parsed
	}

	now := s.now().UTC()
	rule := models.QualificationRule{
		ID:               uuid.New().String(),
		TenantID:         tenantID,
		EntityKind:       kind,
		Name:             strings.TrimSpace(req.Name),
		Description:      strings.TrimSpace(req.Description),
		FieldReference:   req.FieldReference,
		FieldKey:         req.FieldKey,
		Operator:         models.Operator(strings.ToLower(strings.TrimSpace(req.Operator))),
		ComparisonValue:  req.ComparisonValue,
		ComparisonValues: req.ComparisonValues,
		Active:           true,
		UpdatedBy:        clcontext.GetUserID(ctx),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if req.DisplayOrder != nil {
		rule.DisplayOrder = *req.DisplayOrder
	}

	if err := s.prepare(ctx, &rule); err != nil {
		return models.QualificationRule{}, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"id":          rule.ID,
		"name":        rule.Name,
		"entity_kind": rule.EntityKind,
		"operator":    rule.Operator,
		"tenant_id":   tenantID,
	}).Info("creating qualification rule")

	return s.repo.Upsert(ctx, rule)
}

// Update replaces the editable parts of a rule. The entity kind and active flag keep
// their stored values.
func (s *Service) Update(ctx context.Context, tenantID, id string, req models.UpdateQualificationRuleRequest) (models.QualificationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "qualificationrule.Update", tracing.TenantAttr(tenantID))
	defer span.End()

	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return models.QualificationRule{}, err
	}

	rule := existing
	rule.Name = strings.TrimSpace(req.Name)
	rule.Description = strings.TrimSpace(req.Description)
	rule.FieldReference = req.FieldReference
	rule.FieldKey = req.FieldKey
	rule.Operator = models.Operator(strings.ToLower(strings.TrimSpace(req.Operator)))
	rule.ComparisonValue = req.ComparisonValue
	rule.ComparisonValues = req.ComparisonValues
	if req.DisplayOrder != nil {
		rule.DisplayOrder = *req.DisplayOrder
	}
	rule.UpdatedBy = clcontext.GetUserID(ctx)
	rule.UpdatedAt = s.now().UTC()

	if err := s.prepare(ctx, &rule); err != nil {
		return models.QualificationRule{}, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"operator":  rule.Operator,
		"tenant_id": tenantID,
	}).Info("updating qualification rule")

	return s.repo.Upsert(ctx, rule)
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (models.QualificationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "qualificationrule.Get", tracing.TenantAttr(tenantID))
	defer span.End()

	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) List(ctx context.Context, tenantID string) ([]models.QualificationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "qualificationrule.List", tracing.TenantAttr(tenantID))
	defer span.End()

	return s.repo.List(ctx, tenantID)
}

// ListActive returns the active rules in display order.
func (s *Service) ListActive(ctx context.Context, tenantID string) ([]models.QualificationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "qualificationrule.ListActive", tracing.TenantAttr(tenantID))
	defer span.End()

	return s.repo.ListActive(ctx, tenantID)
}

// SetActive toggles a rule. Activating re-checks the field reference, since the field
// may have been deactivated while the rule was off.
func (s *Service) SetActive(ctx context.Context, tenantID, id string, active bool) (models.QualificationRule, error) {
	ctx, span := tracing.StartSpan(ctx, "qualificationrule.SetActive", tracing.TenantAttr(tenantID))
	defer span.End()

	rule, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return models.QualificationRule{}, err
	}

	if active && !rule.Active {
		if err := s.prepare(ctx, &rule); err != nil {
			return models.QualificationRule{}, err
		}
	}

	actor := clcontext.GetUserID(ctx)
	if err := s.repo.SetActive(ctx, tenantID, id, active, actor); err != nil {
		return models.QualificationRule{}, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"active":    active,
		"tenant_id": tenantID,
		"user_id":   actor,
	}).Info("toggled qualification rule")

	rule.Active = active
	rule.UpdatedBy = actor
	rule.UpdatedAt = s.now().UTC()
	return rule, nil
}

// Delete removes a rule for good.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "qualificationrule.Delete", tracing.TenantAttr(tenantID))
	defer span.End()

	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        id,
		"tenant_id": tenantID,
		"user_id":   clcontext.GetUserID(ctx),
	}).Info("deleted qualification rule")
	return nil
}

// Audit lists active rules whose field no longer resolves. The evaluator treats their
// operand as absent, so such rules can never pass.
func (s *Service) Audit(ctx context.Context, tenantID string) ([]models.RuleIssue, error) {
	ctx, span := tracing.StartSpan(ctx, "qualificationrule.Audit", tracing.TenantAttr(tenantID))
	defer span.End()

	rules, err := s.repo.ListActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	ids := []string{}
	for _, rule := range rules {
		if rule.FieldReference != nil && *rule.FieldReference != "" {
			ids = append(ids, *rule.FieldReference)
		}
	}
	definitions, err := s.definitions.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	issues := []models.RuleIssue{}
	for _, rule := range rules {
		var problem error
		var declaredType models.DeclaredType
		if rule.FieldReference != nil && *rule.FieldReference != "" {
			var definition models.FieldDefinition
			definition, problem = referencedDefinition(definitions, rule.EntityKind, *rule.FieldReference)
			declaredType = definition.DeclaredType
		} else if rule.FieldKey != nil && *rule.FieldKey != "" {
			field, ok := s.catalog.Lookup(rule.EntityKind, *rule.FieldKey)
			if !ok {
				problem = errors.NewValidationError("field_key", "'%s' is not a system field of %s", *rule.FieldKey, rule.EntityKind)
			}
			declaredType = field.DeclaredType
		} else {
			problem = errors.NewValidationError("field_reference", "rule references no field")
		}
		if problem == nil && rule.Operator.IsSearch() && !declaredType.IsSearchable() {
			problem = errors.NewValidationError("operator", "%s cannot search %s values", rule.Operator, declaredType)
		}
		if problem == nil {
			continue
		}

		issue := models.RuleIssue{
			RuleID:     rule.ID,
			RuleName:   rule.Name,
			EntityKind: rule.EntityKind,
			Problem:    problem.Error(),
		}
		if rule.FieldReference != nil {
			issue.FieldDefinitionID = *rule.FieldReference
		}
		if rule.FieldKey != nil {
			issue.FieldKey = *rule.FieldKey
		}
		issues = append(issues, issue)
	}

	if len(issues) > 0 {
		s.logger.WithContext(ctx).WithField("issues", len(issues)).Warn("active qualification rules that cannot evaluate")
	}
	return issues, nil
}

// prepare validates a rule and normalizes its field reference and comparison values.
func (s *Service) prepare(ctx context.Context, rule *models.QualificationRule) error {
	if rule.Name == "" {
		return errors.NewValidationError("name", "name is required")
	}
	if !rule.Operator.IsValid() {
		return errors.NewValidationError("operator", "unknown operator '%s'", rule.Operator)
	}

	declaredType, options, err := s.resolveField(ctx, rule)
	if err != nil {
		return err
	}

	if rule.Operator.IsOrdering() && !declaredType.IsOrderable() {
		return errors.NewValidationError("operator", "%s cannot order %s values", rule.Operator, declaredType)
	}

	return normalizeComparisons(rule, declaredType, options)
}

// resolveField checks that the rule names exactly one live field of its entity kind. A
// custom_<slug> field key is turned into a reference to the definition's id.
func (s *Service) resolveField(ctx context.Context, rule *models.QualificationRule) (models.DeclaredType, []string, error) {
	reference := trimmedOrNil(rule.FieldReference)
	key := trimmedOrNil(rule.FieldKey)

	switch {
	case reference != nil && key != nil:
		return "", nil, errors.NewValidationError("field_reference", "set either field_reference or field_key, not both")
	case reference == nil && key == nil:
		return "", nil, errors.NewValidationError("field_reference", "field_reference or field_key is required")
	}

	if key != nil {
		if slug, ok := models.ParseCustomKey(*key); ok {
			definitions, err := s.definitions.List(ctx, rule.TenantID, rule.EntityKind)
			if err != nil {
				return "", nil, err
			}
			for _, definition := range definitions {
				if definition.Slug == slug {
					rule.FieldReference = &definition.ID
					rule.FieldKey = nil
					return definition.DeclaredType, definition.Options, nil
				}
			}
			return "", nil, errors.NewValidationError("field_key", "no active field '%s' for %s", *key, rule.EntityKind)
		}

		field, ok := s.catalog.Lookup(rule.EntityKind, *key)
		if !ok {
			return "", nil, errors.NewValidationError("field_key", "'%s' is not a system field of %s", *key, rule.EntityKind)
		}
		rule.FieldKey = key
		rule.FieldReference = nil
		return field.DeclaredType, nil, nil
	}

	definitions, err := s.definitions.GetByIDs(ctx, rule.TenantID, []string{*reference})
	if err != nil {
		return "", nil, err
	}
	definition, err := referencedDefinition(definitions, rule.EntityKind, *reference)
	if err != nil {
		return "", nil, errors.NewValidationError("field_reference", "%s", err)
	}
	rule.FieldReference = reference
	rule.FieldKey = nil
	return definition.DeclaredType, definition.Options, nil
}

func referencedDefinition(definitions map[string]models.FieldDefinition, kind models.EntityKind, id string) (models.FieldDefinition, error) {
	definition, ok := definitions[id]
	switch {
	case !ok:
		return definition, &errors.UnresolvedReferenceError{FieldDefinitionID: id, Reason: "field definition does not exist"}
	case definition.DeletedAt != nil:
		return definition, &errors.UnresolvedReferenceError{FieldDefinitionID: id, Reason: "field definition was deleted"}
	case !definition.Active:
		return definition, &errors.UnresolvedReferenceError{FieldDefinitionID: id, Reason: "field definition is inactive"}
	case definition.EntityKind != kind:
		return definition, &errors.UnresolvedReferenceError{FieldDefinitionID: id, Reason: "field definition belongs to " + definition.EntityKind.String()}
	}
	return definition, nil
}

// normalizeComparisons enforces the comparison presence rules, checks every value
// coerces through the field's type and rewrites select values to the option spelling.
// Substring matches on a single select are free text.
func normalizeComparisons(rule *models.QualificationRule, declaredType models.DeclaredType, options []string) error {
	single := trimmedOrNil(rule.ComparisonValue)
	many := []string{}
	for _, value := range rule.ComparisonValues {
		if value = strings.TrimSpace(value); value != "" {
			many = append(many, value)
		}
	}

	if !rule.Operator.TakesComparison() {
		if single != nil || len(many) > 0 {
			return errors.NewValidationError("comparison_value", "%s takes no comparison value", rule.Operator)
		}
		rule.ComparisonValue = nil
		rule.ComparisonValues = nil
		return nil
	}

	if single == nil && len(many) == 0 {
		return errors.NewValidationError("comparison_value", "%s needs a comparison value", rule.Operator)
	}
	if rule.Operator.IsOrdering() && (len(many) > 1 || (single != nil && len(many) > 0)) {
		return errors.NewValidationError("comparison_values", "%s compares against a single value", rule.Operator)
	}

	substring := rule.Operator.IsSearch()
	if substring && !declaredType.IsSearchable() {
		return errors.NewValidationError("operator", "%s cannot search %s values", rule.Operator, declaredType)
	}
	if declaredType.RequiresOptions() && len(options) > 0 && (declaredType.IsList() || !substring) {
		var err error
		if single != nil {
			var option string
			if option, err = matchOption(options, *single); err != nil {
				return err
			}
			single = &option
		}
		for i, value := range many {
			if many[i], err = matchOption(options, value); err != nil {
				return err
			}
		}
	}

	rule.ComparisonValue = single
	rule.ComparisonValues = many

	if _, rejected := qualification.Comparisons(rule.Operator, declaredType, rule.Comparisons()); len(rejected) > 0 {
		return errors.NewValidationError("comparison_value", "'%s' is not a valid %s value", rejected[0], declaredType)
	}
	return nil
}

func matchOption(options []string, value string) (string, error) {
	for _, option := range options {
		if strings.EqualFold(strings.TrimSpace(option), value) {
			return option, nil
		}
	}
	return "", errors.NewValidationError("comparison_value", "'%s' is not one of the field options", value)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	t := strings.TrimSpace(*value)
	if t == "" {
		return nil
	}
	return &t
}
