package models

import (
	"encoding/json"
	"time"
)

// TypedValue is one value slot of a field on a record. At most one of the typed
// columns is set; all nil means "no value".
type TypedValue struct {
	ID                string          `json:"id"`
	TenantID          string          `json:"tenant_id"`
	FieldDefinitionID string          `json:"field_definition_id"`
	EntityKind        EntityKind      `json:"entity_kind"`
	EntityID          string          `json:"entity_id"`
	TextValue         *string         `json:"text_value"`
	NumberValue       *float64        `json:"number_value"`
	DateValue         *time.Time      `json:"date_value"`
	BooleanValue      *bool           `json:"boolean_value"`
	JSONValue         json.RawMessage `json:"json_value"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// SetStored writes the value into its column and clears every other column.
func (v *TypedValue) SetStored(stored StoredValue) {
	v.TextValue = nil
	v.NumberValue = nil
	v.DateValue = nil
	v.BooleanValue = nil
	v.JSONValue = nil

	switch s := stored.(type) {
	case TextValue:
		text := string(s)
		v.TextValue = &text
	case NumberValue:
		number := float64(s)
		v.NumberValue = &number
	case DateValue:
		date := s.Time()
		v.DateValue = &date
	case BoolValue:
		b := bool(s)
		v.BooleanValue = &b
	case ListValue:
		items := []string(s)
		if items == nil {
			items = []string{}
		}
		raw, _ := json.Marshal(items)
		v.JSONValue = raw
	}
}

// Stored reads the populated column back. A JSON column holding something other than
// a string array (a legacy delimited string, for instance) is returned as TextValue.
func (v TypedValue) Stored() StoredValue {
	switch {
	case v.TextValue != nil:
		return TextValue(*v.TextValue)
	case v.NumberValue != nil:
		return NumberValue(*v.NumberValue)
	case v.DateValue != nil:
		return DateValue(*v.DateValue)
	case v.BooleanValue != nil:
		return BoolValue(*v.BooleanValue)
	case len(v.JSONValue) > 0 && string(v.JSONValue) != "null":
		var items []string
		if err := json.Unmarshal(v.JSONValue, &items); err == nil {
			return ListValue(items)
		}
		var text string
		if err := json.Unmarshal(v.JSONValue, &text); err == nil {
			return TextValue(text)
		}
		return TextValue(string(v.JSONValue))
	default:
		return nil
	}
}

// PopulatedColumns lists the typed columns holding a value.
func (v TypedValue) PopulatedColumns() []StorageColumn {
	columns := []StorageColumn{}
	if v.TextValue != nil {
		columns = append(columns, ColumnText)
	}
	if v.NumberValue != nil {
		columns = append(columns, ColumnNumber)
	}
	if v.DateValue != nil {
		columns = append(columns, ColumnDate)
	}
	if v.BooleanValue != nil {
		columns = append(columns, ColumnBoolean)
	}
	if len(v.JSONValue) > 0 && string(v.JSONValue) != "null" {
		columns = append(columns, ColumnJSON)
	}
	return columns
}

// SetValuesRequest carries raw form input keyed by field definition id.
type SetValuesRequest struct {
	Values       map[string]any `json:"values" validate:"required"`
	AllowPartial bool           `json:"allow_partial"`
	// PreviouslyQualified is the host's current qualification flag of the record,
	// passed through to the change event so the worker can report a transition.
	PreviouslyQualified *bool `json:"previously_qualified"`
	// Record is the host's current document of the record, forwarded with the change
	// event so the worker can evaluate system-field rules.
	Record map[string]any `json:"record"`
}

type SetValueRequest struct {
	Value               any   `json:"value"`
	PreviouslyQualified *bool `json:"previously_qualified"`
}

// SetValuesResult reports which slots a save wrote and which it cleared.
type SetValuesResult struct {
	Written []TypedValue `json:"written"`
	Cleared []string     `json:"cleared"`
}

// RecordField is the hydrated view of one custom field on a record.
type RecordField struct {
	FieldDefinitionID string       `json:"field_definition_id"`
	Key               string       `json:"key"`
	Label             string       `json:"label"`
	DeclaredType      DeclaredType `json:"declared_type"`
	Required          bool         `json:"required"`
	Value             any          `json:"value"`
	Display           string       `json:"display"`
}

type Record struct {
	EntityKind EntityKind    `json:"entity_kind"`
	EntityID   string        `json:"entity_id"`
	Locale     string        `json:"locale"`
	Fields     []RecordField `json:"fields"`
}
