package models

import (
	"time"

	"github.com/Gobusters/ectolinq"
)

type Operator string

const (
	OperatorEquals         Operator = "equals"
	OperatorNotEquals      Operator = "not_equals"
	OperatorContains       Operator = "contains"
	OperatorNotContains    Operator = "not_contains"
	OperatorGreaterThan    Operator = "greater_than"
	OperatorLessThan       Operator = "less_than"
	OperatorGreaterOrEqual Operator = "greater_or_equal"
	OperatorLessOrEqual    Operator = "less_or_equal"
	OperatorIsEmpty        Operator = "is_empty"
	OperatorIsNotEmpty     Operator = "is_not_empty"
)

var Operators = []Operator{
	OperatorEquals,
	OperatorNotEquals,
	OperatorContains,
	OperatorNotContains,
	OperatorGreaterThan,
	OperatorLessThan,
	OperatorGreaterOrEqual,
	OperatorLessOrEqual,
	OperatorIsEmpty,
	OperatorIsNotEmpty,
}

func (o Operator) IsValid() bool {
	return ectolinq.Contains(Operators, o)
}

// TakesComparison reports whether the operator compares against a value.
func (o Operator) TakesComparison() bool {
	return o != OperatorIsEmpty && o != OperatorIsNotEmpty
}

// IsSearch reports whether the operator is contains or not_contains.
func (o Operator) IsSearch() bool {
	return o == OperatorContains || o == OperatorNotContains
}

func (o Operator) IsOrdering() bool {
	switch o {
	case OperatorGreaterThan, OperatorLessThan, OperatorGreaterOrEqual, OperatorLessOrEqual:
		return true
	default:
		return false
	}
}

// QualificationRule references either a field definition (FieldReference) or a
// system field by name (FieldKey).
type QualificationRule struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenant_id"`
	EntityKind       EntityKind `json:"entity_kind"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	FieldReference   *string    `json:"field_reference,omitempty"`
	FieldKey         *string    `json:"field_key,omitempty"`
	Operator         Operator   `json:"operator"`
	ComparisonValue  *string    `json:"comparison_value,omitempty"`
	ComparisonValues []string   `json:"comparison_values,omitempty"`
	Active           bool       `json:"active"`
	DisplayOrder     int        `json:"display_order"`
	// UpdatedBy is the user that last changed the rule, empty for service callers
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comparisons returns the rule's comparison values, the single value first.
func (r QualificationRule) Comparisons() []string {
	comparisons := []string{}
	if r.ComparisonValue != nil {
		comparisons = append(comparisons, *r.ComparisonValue)
	}
	return append(comparisons, r.ComparisonValues...)
}

type CreateQualificationRuleRequest struct {
	EntityKind       string   `json:"entity_kind"`
	Name             string   `json:"name" validate:"required,max=255"`
	Description      string   `json:"description" validate:"omitempty,max=2000"`
	FieldReference   *string  `json:"field_reference"`
	FieldKey         *string  `json:"field_key"`
	Operator         string   `json:"operator" validate:"required"`
	ComparisonValue  *string  `json:"comparison_value"`
	ComparisonValues []string `json:"comparison_values"`
	Active           *bool    `json:"active"`
	DisplayOrder     *int     `json:"display_order" validate:"omitempty,min=0"`
}

// UpdateQualificationRuleRequest replaces the editable parts of a rule.
type UpdateQualificationRuleRequest struct {
	Name             string   `json:"name" validate:"required,max=255"`
	Description      string   `json:"description" validate:"omitempty,max=2000"`
	FieldReference   *string  `json:"field_reference"`
	FieldKey         *string  `json:"field_key"`
	Operator         string   `json:"operator" validate:"required"`
	ComparisonValue  *string  `json:"comparison_value"`
	ComparisonValues []string `json:"comparison_values"`
	DisplayOrder     *int     `json:"display_order" validate:"omitempty,min=0"`
}

type SetRuleActiveRequest struct {
	Active bool `json:"active"`
}

// RuleIssue reports a saved rule whose field reference no longer resolves.
type RuleIssue struct {
	RuleID            string     `json:"rule_id"`
	RuleName          string     `json:"rule_name"`
	EntityKind        EntityKind `json:"entity_kind"`
	FieldDefinitionID string     `json:"field_definition_id,omitempty"`
	FieldKey          string     `json:"field_key,omitempty"`
	Problem           string     `json:"problem"`
}
