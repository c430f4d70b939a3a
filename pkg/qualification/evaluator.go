// Package qualification decides whether a record satisfies every active
// qualification rule of its tenant.
package qualification

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expressions"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/resolver"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/values"
)

type RuleSource interface {
	ListActive(ctx context.Context, tenantID string) ([]models.QualificationRule, error)
}

// DefinitionSource returns definitions by id whatever their state, so that
// inactive and deleted references can be told apart from live ones.
type DefinitionSource interface {
	GetByIDs(ctx context.Context, tenantID string, ids []string) (map[string]models.FieldDefinition, error)
}

type ValueSource interface {
	GetAll(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (map[string]models.TypedValue, error)
}

// SystemFieldSource returns the host's document of a record. System field
// operands are read from it with the field's path.
type SystemFieldSource interface {
	GetRecord(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (map[string]any, error)
}

type Evaluator struct {
	rules       RuleSource
	definitions DefinitionSource
	values      ValueSource
	system      SystemFieldSource
	catalog     *resolver.Catalog
	expressions *expressions.Evaluator
	logger      ectologger.Logger
	now         func() time.Time
}

// NewEvaluator builds an evaluator. system may be nil, in which case rules on
// system fields see an absent operand.
func NewEvaluator(rules RuleSource, definitions DefinitionSource, values ValueSource, system SystemFieldSource, catalog *resolver.Catalog, logger ectologger.Logger) *Evaluator {
	return &Evaluator{
		rules:       rules,
		definitions: definitions,
		values:      values,
		system:      system,
		catalog:     catalog,
		expressions: expressions.NewEvaluator(),
		logger:      logger,
		now:         time.Now,
	}
}

// Evaluate ANDs the active rules of the record's kind in display order and stops at
// the first failing rule. No active rules yields NOT_APPLICABLE.
func (e *Evaluator) Evaluate(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (models.Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "Evaluator.Evaluate", tracing.TenantAttr(tenantID))
	defer span.End()

	return e.run(ctx, tenantID, kind, entityID, true)
}

// Explain evaluates every rule without stopping and reports each result. The
// overall result always matches Evaluate.
func (e *Evaluator) Explain(ctx context.Context, tenantID string, kind models.EntityKind, entityID string) (models.Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "Evaluator.Explain", tracing.TenantAttr(tenantID))
	defer span.End()

	return e.run(ctx, tenantID, kind, entityID, false)
}

func (e *Evaluator) run(ctx context.Context, tenantID string, kind models.EntityKind, entityID string, shortCircuit bool) (models.Outcome, error) {
	start := e.now()
	outcome := models.Outcome{
		TenantID:   tenantID,
		EntityKind: kind,
		EntityID:   entityID,
	}

	rules, err := e.activeRules(ctx, tenantID, kind)
	if err != nil {
		return outcome, err
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"entity_kind": kind,
		"entity_id":   entityID,
		"rule_count":  len(rules),
	})

	if len(rules) == 0 {
		outcome.Result = models.ResultNotApplicable
		outcome.EvaluatedAt = e.now().UTC()
		metrics.RecordEvaluation(kind.String(), string(outcome.Result), time.Since(start).Seconds())
		log.Debug("No active qualification rules")
		return outcome, nil
	}

	operands := newOperandResolver(e, tenantID, kind, entityID, rules)

	outcome.Result = models.ResultQualified
	for _, rule := range rules {
		operand, warning, err := operands.resolve(ctx, rule)
		if err != nil {
			return outcome, err
		}

		comparisons, rejected := e.comparisons(rule, operands.declaredType(rule))
		if len(rejected) > 0 && warning == "" {
			warning = fmt.Sprintf("rule %s: comparison values %v do not fit the field type", rule.ID, rejected)
		}
		if warning != "" {
			outcome.Warnings = append(outcome.Warnings, warning)
		}

		passed := Apply(rule.Operator, operand, comparisons)
		outcome.EvaluatedRules++

		if !shortCircuit {
			outcome.Rules = append(outcome.Rules, models.RuleResult{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Passed:   passed,
				Operand:  operand.Interface(),
				Warning:  warning,
			})
		}

		if !passed && outcome.Result == models.ResultQualified {
			outcome.Result = models.ResultNotQualified
			outcome.FailedRuleID = rule.ID
			if shortCircuit {
				break
			}
		}
	}

	outcome.EvaluatedAt = e.now().UTC()
	metrics.RecordEvaluation(kind.String(), string(outcome.Result), time.Since(start).Seconds())

	log.WithFields(map[string]any{
		"result":          outcome.Result,
		"evaluated_rules": outcome.EvaluatedRules,
		"failed_rule_id":  outcome.FailedRuleID,
		"warnings":        len(outcome.Warnings),
	}).Info("Evaluated qualification")

	return outcome, nil
}

func (e *Evaluator) activeRules(ctx context.Context, tenantID string, kind models.EntityKind) ([]models.QualificationRule, error) {
	all, err := e.rules.ListActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	rules := make([]models.QualificationRule, 0, len(all))
	for _, rule := range all {
		ruleKind := rule.EntityKind
		if ruleKind == "" {
			ruleKind = models.EntityKindContact
		}
		if rule.Active && ruleKind == kind {
			rules = append(rules, rule)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].DisplayOrder < rules[j].DisplayOrder
	})
	return rules, nil
}

func (e *Evaluator) comparisons(rule models.QualificationRule, declaredType models.DeclaredType) ([]values.CanonicalValue, []string) {
	if !rule.Operator.TakesComparison() {
		return nil, nil
	}
	return Comparisons(rule.Operator, declaredType, rule.Comparisons())
}

// operandResolver loads definitions, values and the system document at most once per evaluation.
type operandResolver struct {
	evaluator    *Evaluator
	tenantID     string
	kind         models.EntityKind
	entityID     string
	referenceIDs []string

	definitions map[string]models.FieldDefinition
	values      map[string]models.TypedValue
	document    map[string]any
	loadedDefs  bool
	loadedVals  bool
	loadedDoc   bool
}

func newOperandResolver(e *Evaluator, tenantID string, kind models.EntityKind, entityID string, rules []models.QualificationRule) *operandResolver {
	ids := []string{}
	for _, rule := range rules {
		if rule.FieldReference != nil && *rule.FieldReference != "" {
			ids = append(ids, *rule.FieldReference)
		}
	}
	return &operandResolver{evaluator: e, tenantID: tenantID, kind: kind, entityID: entityID, referenceIDs: ids}
}

// declaredType is the type comparison values are coerced through. Unresolved
// references fall back to short text.
func (o *operandResolver) declaredType(rule models.QualificationRule) models.DeclaredType {
	if rule.FieldReference != nil {
		if definition, ok := o.definitions[*rule.FieldReference]; ok {
			return definition.DeclaredType
		}
	} else if rule.FieldKey != nil {
		if field, ok := o.evaluator.catalog.Lookup(o.kind, *rule.FieldKey); ok {
			return field.DeclaredType
		}
	}
	return models.DeclaredTypeShortText
}

// resolve returns the canonical operand of a rule. Missing or inactive references
// come back as an absent operand with a warning; only infrastructure failures are errors.
func (o *operandResolver) resolve(ctx context.Context, rule models.QualificationRule) (values.CanonicalValue, string, error) {
	switch {
	case rule.FieldReference != nil && *rule.FieldReference != "":
		return o.resolveCustom(ctx, rule)
	case rule.FieldKey != nil && *rule.FieldKey != "":
		return o.resolveSystem(ctx, rule)
	default:
		return values.None(), o.unresolved(ctx, &errors.UnresolvedReferenceError{RuleID: rule.ID, Reason: "rule references no field"}), nil
	}
}

func (o *operandResolver) resolveCustom(ctx context.Context, rule models.QualificationRule) (values.CanonicalValue, string, error) {
	if err := o.loadDefinitions(ctx); err != nil {
		return values.None(), "", err
	}

	id := *rule.FieldReference
	definition, ok := o.definitions[id]
	switch {
	case !ok:
		return values.None(), o.unresolved(ctx, &errors.UnresolvedReferenceError{RuleID: rule.ID, FieldDefinitionID: id, Reason: "definition does not exist"}), nil
	case definition.DeletedAt != nil:
		return values.None(), o.unresolved(ctx, &errors.UnresolvedReferenceError{RuleID: rule.ID, FieldDefinitionID: id, Reason: "definition was deleted"}), nil
	case !definition.Active:
		return values.None(), o.unresolved(ctx, &errors.UnresolvedReferenceError{RuleID: rule.ID, FieldDefinitionID: id, Reason: "definition is inactive"}), nil
	case definition.EntityKind != o.kind:
		return values.None(), o.unresolved(ctx, &errors.UnresolvedReferenceError{RuleID: rule.ID, FieldDefinitionID: id, Reason: fmt.Sprintf("definition belongs to %s", definition.EntityKind)}), nil
	}

	if !o.loadedVals {
		loaded, err := o.evaluator.values.GetAll(ctx, o.tenantID, o.kind, o.entityID)
		if err != nil {
			return values.None(), "", err
		}
		o.values = loaded
		o.loadedVals = true
	}

	value, ok := o.values[id]
	if !ok {
		return values.None(), "", nil
	}
	return values.FromTypedValue(definition.DeclaredType, &value), "", nil
}

func (o *operandResolver) resolveSystem(ctx context.Context, rule models.QualificationRule) (values.CanonicalValue, string, error) {
	key := *rule.FieldKey
	field, ok := o.evaluator.catalog.Lookup(o.kind, key)
	if !ok {
		return values.None(), o.unresolved(ctx, &errors.UnresolvedReferenceError{RuleID: rule.ID, FieldKey: key, Reason: fmt.Sprintf("not a system field of %s", o.kind)}), nil
	}
	if o.evaluator.system == nil {
		return values.None(), o.unresolved(ctx, &errors.UnresolvedReferenceError{RuleID: rule.ID, FieldKey: key, Reason: "system fields are not available"}), nil
	}

	if !o.loadedDoc {
		document, err := o.evaluator.system.GetRecord(ctx, o.tenantID, o.kind, o.entityID)
		if err != nil {
			return values.None(), "", err
		}
		o.document = document
		o.loadedDoc = true
	}
	if o.document == nil {
		return values.None(), "", nil
	}

	raw, found, err := o.evaluator.expressions.Lookup(field.Path, o.document)
	if err != nil {
		return values.None(), o.unresolved(ctx, &errors.UnresolvedReferenceError{RuleID: rule.ID, FieldKey: key, Reason: err.Error()}), nil
	}
	if !found {
		return values.None(), "", nil
	}

	canonical, err := values.Canonicalize(field.DeclaredType, raw)
	if err != nil {
		o.evaluator.logger.WithContext(ctx).WithError(err).WithField("field_key", key).Warn("System field value does not fit its type")
		return values.None(), fmt.Sprintf("rule %s: system field %s holds a value that does not fit %s", rule.ID, key, field.DeclaredType), nil
	}
	return canonical, "", nil
}

// loadDefinitions fetches every definition the evaluation's rules reference in one read.
func (o *operandResolver) loadDefinitions(ctx context.Context) error {
	if o.loadedDefs {
		return nil
	}
	definitions, err := o.evaluator.definitions.GetByIDs(ctx, o.tenantID, o.referenceIDs)
	if err != nil {
		return err
	}
	o.definitions = definitions
	o.loadedDefs = true
	return nil
}

func (o *operandResolver) unresolved(ctx context.Context, err *errors.UnresolvedReferenceError) string {
	metrics.RecordUnresolvedReference(o.kind.String())
	o.evaluator.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":           o.tenantID,
		"entity_kind":         o.kind,
		"rule_id":             err.RuleID,
		"field_definition_id": err.FieldDefinitionID,
		"field_key":           err.FieldKey,
	}).Warn(err.Error())
	return err.Error()
}
