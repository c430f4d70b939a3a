package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityKind(t *testing.T) {
	for raw, want := range map[string]EntityKind{
		"contato":      EntityKindContact,
		" Contact ":    EntityKindContact,
		"company":      EntityKindCompany,
		"oportunidade": EntityKindOpportunity,
	} {
		kind, err := ParseEntityKind(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, kind)
	}

	_, err := ParseEntityKind("invoice")
	assert.True(t, errors.IsValidationError(err))
}

func TestDeclaredType(t *testing.T) {
	tests := []struct {
		declaredType    DeclaredType
		column          StorageColumn
		orderable       bool
		requiresOptions bool
	}{
		{DeclaredTypeShortText, ColumnText, false, false},
		{DeclaredTypeLongText, ColumnText, false, false},
		{DeclaredTypeInteger, ColumnNumber, true, false},
		{DeclaredTypeDecimal, ColumnNumber, true, false},
		{DeclaredTypeDate, ColumnDate, true, false},
		{DeclaredTypeDateTime, ColumnDate, true, false},
		{DeclaredTypeBoolean, ColumnBoolean, false, false},
		{DeclaredTypeSingleSelect, ColumnText, false, true},
		{DeclaredTypeMultiSelect, ColumnJSON, false, true},
		{DeclaredTypeEmail, ColumnText, false, false},
		{DeclaredTypePhone, ColumnText, false, false},
		{DeclaredTypeURL, ColumnText, false, false},
		{DeclaredTypeTaxIDIndividual, ColumnText, false, false},
		{DeclaredTypeTaxIDBusiness, ColumnText, false, false},
	}
	require.Len(t, tests, len(DeclaredTypes))

	for _, tt := range tests {
		t.Run(string(tt.declaredType), func(t *testing.T) {
			assert.True(t, tt.declaredType.IsValid())
			assert.Equal(t, tt.column, tt.declaredType.StorageColumn())
			assert.Equal(t, tt.orderable, tt.declaredType.IsOrderable())
			assert.Equal(t, tt.requiresOptions, tt.declaredType.RequiresOptions())
		})
	}

	_, err := ParseDeclaredType("currency")
	assert.True(t, errors.IsValidationError(err))
}

func TestTypedValue_SetStoredKeepsOneSlot(t *testing.T) {
	stored := []StoredValue{
		TextValue("hello"),
		NumberValue(42.5),
		DateValue(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		BoolValue(true),
		ListValue{"a", "b"},
		nil,
	}

	value := TypedValue{}
	for _, s := range stored {
		value.SetStored(s)
		columns := value.PopulatedColumns()
		if s == nil {
			assert.Empty(t, columns)
			assert.Nil(t, value.Stored())
			continue
		}
		require.Len(t, columns, 1)
		assert.Equal(t, s.Column(), columns[0])
		assert.Equal(t, s, value.Stored())
	}
}

func TestTypedValue_StoredLegacyJSON(t *testing.T) {
	value := TypedValue{JSONValue: json.RawMessage(`"gmail.com | hotmail.com"`)}
	assert.Equal(t, TextValue("gmail.com | hotmail.com"), value.Stored())

	value = TypedValue{JSONValue: json.RawMessage(`null`)}
	assert.Nil(t, value.Stored())
}

func TestFieldDefinition_Key(t *testing.T) {
	definition := FieldDefinition{Slug: "email-domain"}
	assert.Equal(t, "custom_email-domain", definition.Key())

	slug, ok := ParseCustomKey(definition.Key())
	assert.True(t, ok)
	assert.Equal(t, "email-domain", slug)

	_, ok = ParseCustomKey("email")
	assert.False(t, ok)
	_, ok = ParseCustomKey("custom_")
	assert.False(t, ok)
}

func TestQualificationRule_Comparisons(t *testing.T) {
	value := "gmail.com"
	rule := QualificationRule{ComparisonValue: &value, ComparisonValues: []string{"hotmail.com"}}
	assert.Equal(t, []string{"gmail.com", "hotmail.com"}, rule.Comparisons())
	assert.Empty(t, QualificationRule{}.Comparisons())

	assert.False(t, OperatorIsEmpty.TakesComparison())
	assert.True(t, OperatorGreaterOrEqual.IsOrdering())
	assert.False(t, OperatorContains.IsOrdering())
}

func TestOutcome_TransitionFrom(t *testing.T) {
	tests := []struct {
		result   QualificationResult
		previous bool
		want     Transition
	}{
		{ResultQualified, false, TransitionQualified},
		{ResultQualified, true, TransitionNone},
		{ResultNotQualified, true, TransitionDisqualified},
		{ResultNotQualified, false, TransitionNone},
		{ResultNotApplicable, true, TransitionNone},
		{ResultNotApplicable, false, TransitionNone},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome{Result: tt.result}.TransitionFrom(tt.previous), "%s from %v", tt.result, tt.previous)
	}
}
