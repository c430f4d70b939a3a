package models

import (
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/clover/pkg/errors"
)

// DeclaredType is the type a tenant gives a custom field. It decides the storage
// column, the coercion rules and which operators can order the value.
type DeclaredType string

const (
	DeclaredTypeShortText       DeclaredType = "short_text"
	DeclaredTypeLongText        DeclaredType = "long_text"
	DeclaredTypeInteger         DeclaredType = "integer"
	DeclaredTypeDecimal         DeclaredType = "decimal"
	DeclaredTypeDate            DeclaredType = "date"
	DeclaredTypeDateTime        DeclaredType = "datetime"
	DeclaredTypeBoolean         DeclaredType = "boolean"
	DeclaredTypeSingleSelect    DeclaredType = "single_select"
	DeclaredTypeMultiSelect     DeclaredType = "multi_select"
	DeclaredTypeEmail           DeclaredType = "email"
	DeclaredTypePhone           DeclaredType = "phone"
	DeclaredTypeURL             DeclaredType = "url"
	DeclaredTypeTaxIDIndividual DeclaredType = "tax_id_individual"
	DeclaredTypeTaxIDBusiness   DeclaredType = "tax_id_business"
)

var DeclaredTypes = []DeclaredType{
	DeclaredTypeShortText,
	DeclaredTypeLongText,
	DeclaredTypeInteger,
	DeclaredTypeDecimal,
	DeclaredTypeDate,
	DeclaredTypeDateTime,
	DeclaredTypeBoolean,
	DeclaredTypeSingleSelect,
	DeclaredTypeMultiSelect,
	DeclaredTypeEmail,
	DeclaredTypePhone,
	DeclaredTypeURL,
	DeclaredTypeTaxIDIndividual,
	DeclaredTypeTaxIDBusiness,
}

// StorageColumn names the typed column of typed_values that holds a value.
type StorageColumn string

const (
	ColumnNone    StorageColumn = ""
	ColumnText    StorageColumn = "text_value"
	ColumnNumber  StorageColumn = "number_value"
	ColumnDate    StorageColumn = "date_value"
	ColumnBoolean StorageColumn = "boolean_value"
	ColumnJSON    StorageColumn = "json_value"
)

func (t DeclaredType) IsValid() bool {
	return ectolinq.Contains(DeclaredTypes, t)
}

func (t DeclaredType) String() string {
	return string(t)
}

func (t DeclaredType) RequiresOptions() bool {
	return t == DeclaredTypeSingleSelect || t == DeclaredTypeMultiSelect
}

func (t DeclaredType) StorageColumn() StorageColumn {
	switch t {
	case DeclaredTypeInteger, DeclaredTypeDecimal:
		return ColumnNumber
	case DeclaredTypeDate, DeclaredTypeDateTime:
		return ColumnDate
	case DeclaredTypeBoolean:
		return ColumnBoolean
	case DeclaredTypeMultiSelect:
		return ColumnJSON
	default:
		return ColumnText
	}
}

// IsOrderable reports whether greater_than and friends can apply to values of this type.
func (t DeclaredType) IsOrderable() bool {
	switch t.StorageColumn() {
	case ColumnNumber, ColumnDate:
		return true
	default:
		return false
	}
}

// IsSearchable reports whether contains and not_contains apply: text holds substrings
// and lists hold members.
func (t DeclaredType) IsSearchable() bool {
	switch t.StorageColumn() {
	case ColumnText, ColumnJSON:
		return true
	default:
		return false
	}
}

func (t DeclaredType) IsList() bool {
	return t.StorageColumn() == ColumnJSON
}

func ParseDeclaredType(raw string) (DeclaredType, error) {
	declaredType := DeclaredType(strings.ToLower(strings.TrimSpace(raw)))
	if !declaredType.IsValid() {
		return "", errors.NewValidationError("declared_type", "unknown declared type '%s'", raw)
	}
	return declaredType, nil
}
