package qualification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tenantID = "tenant-1"
	entityID = "contact-1"
)

type fakeRules struct {
	rules []models.QualificationRule
	err   error
}

func (f *fakeRules) ListActive(_ context.Context, _ string) ([]models.QualificationRule, error) {
	return f.rules, f.err
}

type fakeDefinitions map[string]models.FieldDefinition

func (f fakeDefinitions) GetByIDs(_ context.Context, _ string, ids []string) (map[string]models.FieldDefinition, error) {
	result := map[string]models.FieldDefinition{}
	for _, id := range ids {
		if definition, ok := f[id]; ok {
			result[id] = definition
		}
	}
	return result, nil
}

type fakeValues struct {
	values map[string]models.TypedValue
	calls  int
}

func (f *fakeValues) GetAll(_ context.Context, _ string, _ models.EntityKind, _ string) (map[string]models.TypedValue, error) {
	f.calls++
	return f.values, nil
}

type fakeSystem map[string]any

func (f fakeSystem) GetRecord(_ context.Context, _ string, _ models.EntityKind, _ string) (map[string]any, error) {
	return f, nil
}

func ptr[T any](v T) *T {
	return &v
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func catalog(t *testing.T) *resolver.Catalog {
	c, err := resolver.DefaultCatalog()
	require.NoError(t, err)
	return c
}

var emailDomain = models.FieldDefinition{
	ID:           "def-domain",
	TenantID:     tenantID,
	EntityKind:   models.EntityKindContact,
	Slug:         "email-domain",
	Name:         "Email domain",
	DeclaredType: models.DeclaredTypeSingleSelect,
	Options:      []string{"gmail.com", "hotmail.com"},
	Active:       true,
}

var budget = models.FieldDefinition{
	ID:           "def-budget",
	TenantID:     tenantID,
	EntityKind:   models.EntityKindContact,
	Slug:         "budget",
	Name:         "Budget",
	DeclaredType: models.DeclaredTypeDecimal,
	Active:       true,
}

func textValue(definitionID, text string) models.TypedValue {
	value := models.TypedValue{FieldDefinitionID: definitionID, EntityKind: models.EntityKindContact, EntityID: entityID}
	value.SetStored(models.TextValue(text))
	return value
}

func numberValue(definitionID string, n float64) models.TypedValue {
	value := models.TypedValue{FieldDefinitionID: definitionID, EntityKind: models.EntityKindContact, EntityID: entityID}
	value.SetStored(models.NumberValue(n))
	return value
}

func domainRule(id string, order int) models.QualificationRule {
	return models.QualificationRule{
		ID:              id,
		TenantID:        tenantID,
		EntityKind:      models.EntityKindContact,
		Name:            "Uses gmail",
		FieldReference:  ptr(emailDomain.ID),
		Operator:        models.OperatorEquals,
		ComparisonValue: ptr("gmail.com"),
		Active:          true,
		DisplayOrder:    order,
	}
}

func budgetRule(id string, order int, min string) models.QualificationRule {
	return models.QualificationRule{
		ID:              id,
		TenantID:        tenantID,
		EntityKind:      models.EntityKindContact,
		Name:            "Has budget",
		FieldReference:  ptr(budget.ID),
		Operator:        models.OperatorGreaterOrEqual,
		ComparisonValue: ptr(min),
		Active:          true,
		DisplayOrder:    order,
	}
}

func newEvaluator(t *testing.T, rules []models.QualificationRule, vals map[string]models.TypedValue, system SystemFieldSource) (*Evaluator, *fakeValues) {
	valueSource := &fakeValues{values: vals}
	definitions := fakeDefinitions{emailDomain.ID: emailDomain, budget.ID: budget}
	e := NewEvaluator(&fakeRules{rules: rules}, definitions, valueSource, system, catalog(t), testLogger())
	e.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return e, valueSource
}

func TestEvaluate_Scenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("matching select value qualifies", func(t *testing.T) {
		e, _ := newEvaluator(t, []models.QualificationRule{domainRule("r1", 0)}, map[string]models.TypedValue{
			emailDomain.ID: textValue(emailDomain.ID, "gmail.com"),
		}, nil)

		outcome, err := e.Evaluate(ctx, tenantID, models.EntityKindContact, entityID)
		require.NoError(t, err)
		assert.Equal(t, models.ResultQualified, outcome.Result)
		assert.Equal(t, 1, outcome.EvaluatedRules)
		assert.Empty(t, outcome.Warnings)
		assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), outcome.EvaluatedAt)
	})

	t.Run("unset field does not qualify", func(t *testing.T) {
		e, _ := newEvaluator(t, []models.QualificationRule{domainRule("r1", 0)}, map[string]models.TypedValue{}, nil)

		outcome, err := e.Evaluate(ctx, tenantID, models.EntityKindContact, entityID)
		require.NoError(t, err)
		assert.Equal(t, models.ResultNotQualified, outcome.Result)
		assert.Equal(t, "r1", outcome.FailedRuleID)
	})

	t.Run("all rules must pass", func(t *testing.T) {
		e, _ := newEvaluator(t, []models.QualificationRule{domainRule("r1", 0), budgetRule("r2", 1, "5000")}, map[string]models.TypedValue{
			emailDomain.ID: textValue(emailDomain.ID, "gmail.com"),
			budget.ID:      numberValue(budget.ID, 1000),
		}, nil)

		outcome, err := e.Evaluate(ctx, tenantID, models.EntityKindContact, entityID)
		require.NoError(t, err)
		assert.Equal(t, models.ResultNotQualified, outcome.Result)
		assert.Equal(t, "r2", outcome.FailedRuleID)
		assert.Equal(t, 2, outcome.EvaluatedRules)
	})

	t.Run("no active rules is not applicable", func(t *testing.T) {
		inactive := domainRule("r1", 0)
		inactive.Active = false
		e, values := newEvaluator(t, []models.QualificationRule{inactive}, map[string]models.TypedValue{
			emailDomain.ID: textValue(emailDomain.ID, "gmail.com"),
		}, nil)

		outcome, err := e.Evaluate(ctx, tenantID, models.EntityKindContact, entityID)
		require.NoError(t, err)
		assert.Equal(t, models.ResultNotApplicable, outcome.Result)
		assert.Zero(t, outcome.EvaluatedRules)
		assert.Zero(t, values.calls)
	})

	t.Run("is_empty accepts an empty string", func(t *testing.T) {
		rule := domainRule("r1", 0)
		rule.Operator = models.OperatorIsEmpty
		rule.ComparisonValue = nil
		e, _ := newEvaluator(t, []models.QualificationRule{rule}, map[string]models.TypedValue{
			emailDomain.ID: textValue(emailDomain.ID, ""),
		}, nil)

		outcome, err := e.Evaluate(ctx, tenantID, models.EntityKindContact, entityID)
		require.NoError(t, err)
		assert.Equal(t, models.ResultQualified, outcome.Result)
	})

	t.Run("rules of other kinds are ignored", func(t *testing.T) {
		rule := domainRule("r1", 0)
		rule.EntityKind = models.EntityKindCompany
		e, _ := newEvaluator(t, []models.QualificationRule{rule}, nil, nil)

		outcome, err := e.Evaluate(ctx, tenantID, models.EntityKindContact, entityID)
		require.NoError(t, err)
		assert.Equal(t, models.ResultNotApplicable, outcome.Result)
	})
}

func TestEvaluate_DecimalComparisonUsesDeclaredType(t *testing.T) {
	e, _ := newEvaluator(t, []models.QualificationRule{budgetRule("r1", 0, "1.500,00")}, map[string]models.TypedValue{
		budget.ID: numberValue(budget.ID, 1500),
	}, nil)

	outcome, err := e.Evaluate(context.Background(), tenantID, models.EntityKindContact, entityID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultQualified, outcome.Result)
}

// Rules saved before substring operators were limited to text and lists must not
// qualify through a number that can never contain anything.
func TestEvaluate_SubstringOperatorOnNumberNeverQualifies(t *testing.T) {
	for _, operator := range []models.Operator{models.OperatorContains, models.OperatorNotContains} {
		t.Run(string(operator), func(t *testing.T) {
			rule := budgetRule("r1", 1, "15")
			rule.Operator = operator
			e, _ := newEvaluator(t, []models.QualificationRule{rule}, map[string]models.TypedValue{
				budget.ID: numberValue(budget.ID, 15),
			}, nil)

			outcome, err := e.Evaluate(context.Background(), tenantID, models.EntityKindContact, entityID)
			require.NoError(t, err)
			assert.Equal(t, models.ResultNotQualified, outcome.Result)
		})
	}
}

func TestEvaluate_UnresolvedReferencesNeverQualify(t *testing.T) {
	deleted := budget
	deleted.ID = "def-deleted"
	deleted.DeletedAt = ptr(time.Now())
	inactive := budget
	inactive.ID = "def-inactive"
	inactive.Active = false
	company := budget
	company.ID = "def-company"
	company.EntityKind = models.EntityKindCompany

	tests := []struct {
		name string
		rule models.QualificationRule
	}{
		{"missing definition", models.QualificationRule{ID: "r1", FieldReference: ptr("def-missing"), Operator: models.OperatorIsNotEmpty, Active: true}},
		{"deleted definition", models.QualificationRule{ID: "r1", FieldReference: ptr(deleted.ID), Operator: models.OperatorIsNotEmpty, Active: true}},
		{"inactive definition", models.QualificationRule{ID: "r1", FieldReference: ptr(inactive.ID), Operator: models.OperatorIsNotEmpty, Active: true}},
		{"other entity kind", models.QualificationRule{ID: "r1", FieldReference: ptr(company.ID), Operator: models.OperatorIsNotEmpty, Active: true}},
		{"unknown system field", models.QualificationRule{ID: "r1", FieldKey: ptr("shoe_size"), Operator: models.OperatorIsNotEmpty, Active: true}},
		{"no field at all", models.QualificationRule{ID: "r1", Operator: models.OperatorIsNotEmpty, Active: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valueSource := &fakeValues{values: map[string]models.TypedValue{
				deleted.ID:  numberValue(deleted.ID, 1),
				inactive.ID: numberValue(inactive.ID, 1),
				company.ID:  numberValue(company.ID, 1),
			}}
			definitions := fakeDefinitions{deleted.ID: deleted, inactive.ID: inactive, company.ID: company}
			e := NewEvaluator(&fakeRules{rules: []models.QualificationRule{tt.rule}}, definitions, valueSource, fakeSystem{}, catalog(t), testLogger())

			outcome, err := e.Evaluate(context.Background(), tenantID, models.EntityKindContact, entityID)
			require.NoError(t, err)
			assert.Equal(t, models.ResultNotQualified, outcome.Result)
			require.Len(t, outcome.Warnings, 1)
		})
	}
}

func TestEvaluate_SystemFields(t *testing.T) {
	document := fakeSystem{
		"email":      "ana@gmail.com",
		"address":    map[string]any{"city": "Campinas"},
		"lead_score": float64(72),
		"tags":       []any{"vip"},
	}

	rules := []models.QualificationRule{
		{ID: "r1", Active: true, DisplayOrder: 0, FieldKey: ptr("email"), Operator: models.OperatorContains, ComparisonValue: ptr("@gmail.com")},
		{ID: "r2", Active: true, DisplayOrder: 1, FieldKey: ptr("city"), Operator: models.OperatorEquals, ComparisonValues: []string{"Campinas", "Sorocaba"}},
		{ID: "r3", Active: true, DisplayOrder: 2, FieldKey: ptr("lead_score"), Operator: models.OperatorGreaterThan, ComparisonValue: ptr("50")},
		{ID: "r4", Active: true, DisplayOrder: 3, FieldKey: ptr("tags"), Operator: models.OperatorContains, ComparisonValue: ptr("vip")},
		{ID: "r5", Active: true, DisplayOrder: 4, FieldKey: ptr("job_title"), Operator: models.OperatorIsEmpty},
	}

	e, _ := newEvaluator(t, rules, nil, document)
	outcome, err := e.Evaluate(context.Background(), tenantID, models.EntityKindContact, entityID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultQualified, outcome.Result)
	assert.Equal(t, 5, outcome.EvaluatedRules)

	t.Run("without a source system operands are absent", func(t *testing.T) {
		e, _ := newEvaluator(t, rules[:1], nil, nil)
		outcome, err := e.Evaluate(context.Background(), tenantID, models.EntityKindContact, entityID)
		require.NoError(t, err)
		assert.Equal(t, models.ResultNotQualified, outcome.Result)
		assert.Len(t, outcome.Warnings, 1)
	})
}

func TestEvaluate_RuleSourceErrorPropagates(t *testing.T) {
	e := NewEvaluator(&fakeRules{err: errors.New("db down")}, fakeDefinitions{}, &fakeValues{}, nil, catalog(t), testLogger())
	_, err := e.Evaluate(context.Background(), tenantID, models.EntityKindContact, entityID)
	assert.Error(t, err)
}

// Short-circuit evaluation gives the same result as evaluating every rule, in any order.
func TestEvaluate_ShortCircuitMatchesFullEvaluation(t *testing.T) {
	records := []map[string]models.TypedValue{
		{},
		{emailDomain.ID: textValue(emailDomain.ID, "gmail.com")},
		{budget.ID: numberValue(budget.ID, 9000)},
		{emailDomain.ID: textValue(emailDomain.ID, "gmail.com"), budget.ID: numberValue(budget.ID, 9000)},
		{emailDomain.ID: textValue(emailDomain.ID, "hotmail.com"), budget.ID: numberValue(budget.ID, 10)},
	}

	emptyCheck := models.QualificationRule{ID: "r3", Active: true, FieldReference: ptr(budget.ID), Operator: models.OperatorIsNotEmpty}
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}}

	for i, record := range records {
		var results []models.QualificationResult
		for _, order := range orders {
			rules := []models.QualificationRule{domainRule("r1", order[0]), budgetRule("r2", order[1], "5000"), emptyCheck}
			rules[2].DisplayOrder = order[2]

			e, _ := newEvaluator(t, rules, record, nil)
			short, err := e.Evaluate(context.Background(), tenantID, models.EntityKindContact, entityID)
			require.NoError(t, err)
			full, err := e.Explain(context.Background(), tenantID, models.EntityKindContact, entityID)
			require.NoError(t, err)

			allPassed := true
			for _, result := range full.Rules {
				allPassed = allPassed && result.Passed
			}
			require.Len(t, full.Rules, 3)
			assert.Equal(t, short.Result, full.Result, "record %d order %v", i, order)
			assert.Equal(t, allPassed, short.Result == models.ResultQualified, "record %d order %v", i, order)
			results = append(results, short.Result)
		}
		for _, result := range results {
			assert.Equal(t, results[0], result, "record %d", i)
		}
	}
}

func TestEvaluate_ContextRecords(t *testing.T) {
	rules := []models.QualificationRule{
		{ID: "r1", Active: true, FieldKey: ptr("city"), Operator: models.OperatorEquals, ComparisonValue: ptr("Campinas")},
	}
	e, _ := newEvaluator(t, rules, nil, ContextRecords{})

	ctx := WithRecord(context.Background(), map[string]any{"address": map[string]any{"city": "Campinas"}})
	outcome, err := e.Evaluate(ctx, tenantID, models.EntityKindContact, entityID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultQualified, outcome.Result)
	assert.Empty(t, outcome.Warnings)

	outcome, err = e.Evaluate(context.Background(), tenantID, models.EntityKindContact, entityID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultNotQualified, outcome.Result, "no document means an absent operand")
	assert.Empty(t, outcome.Warnings)
}
