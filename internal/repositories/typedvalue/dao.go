package typedvalue

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

const (
	typedValueTable = "typed_values"
)

var typedValueStruct = database.NewStruct(new(TypedValueRow))

// TypedValueRow mirrors typed_values. At most one of the value columns is non-null.
type TypedValueRow struct {
	ID                sql.NullString                  `db:"id"`
	TenantID          sql.NullString                  `db:"tenant_id"`
	FieldDefinitionID sql.NullString                  `db:"field_definition_id"`
	EntityKind        sql.NullString                  `db:"entity_kind"`
	EntityID          sql.NullString                  `db:"entity_id"`
	TextValue         sql.NullString                  `db:"text_value"`
	NumberValue       sql.NullFloat64                 `db:"number_value"`
	DateValue         sql.NullTime                    `db:"date_value"`
	BooleanValue      sql.NullBool                    `db:"boolean_value"`
	JSONValue         database.JSONB[json.RawMessage] `db:"json_value"`
	CreatedTS         sql.NullTime                    `db:"created_at"`
	UpdatedTS         sql.NullTime                    `db:"updated_at"`
}

func FromTypedValue(value models.TypedValue) *TypedValueRow {
	row := &TypedValueRow{
		ID:                sql.NullString{String: value.ID, Valid: value.ID != ""},
		TenantID:          sql.NullString{String: value.TenantID, Valid: value.TenantID != ""},
		FieldDefinitionID: sql.NullString{String: value.FieldDefinitionID, Valid: value.FieldDefinitionID != ""},
		EntityKind:        sql.NullString{String: string(value.EntityKind), Valid: value.EntityKind != ""},
		EntityID:          sql.NullString{String: value.EntityID, Valid: value.EntityID != ""},
		CreatedTS:         sql.NullTime{Time: value.CreatedAt, Valid: value.CreatedAt != time.Time{}},
		UpdatedTS:         sql.NullTime{Time: value.UpdatedAt, Valid: value.UpdatedAt != time.Time{}},
	}
	if value.TextValue != nil {
		row.TextValue = sql.NullString{String: *value.TextValue, Valid: true}
	}
	if value.NumberValue != nil {
		row.NumberValue = sql.NullFloat64{Float64: *value.NumberValue, Valid: true}
	}
	if value.DateValue != nil {
		row.DateValue = sql.NullTime{Time: *value.DateValue, Valid: true}
	}
	if value.BooleanValue != nil {
		row.BooleanValue = sql.NullBool{Bool: *value.BooleanValue, Valid: true}
	}
	if len(value.JSONValue) > 0 {
		row.JSONValue = database.NewJSONB(value.JSONValue)
	}
	return row
}

func ToTypedValue(row *TypedValueRow) models.TypedValue {
	value := models.TypedValue{
		ID:                row.ID.String,
		TenantID:          row.TenantID.String,
		FieldDefinitionID: row.FieldDefinitionID.String,
		EntityKind:        models.EntityKind(row.EntityKind.String),
		EntityID:          row.EntityID.String,
		CreatedAt:         row.CreatedTS.Time,
		UpdatedAt:         row.UpdatedTS.Time,
	}
	if row.TextValue.Valid {
		value.TextValue = &row.TextValue.String
	}
	if row.NumberValue.Valid {
		value.NumberValue = &row.NumberValue.Float64
	}
	if row.DateValue.Valid {
		date := row.DateValue.Time
		value.DateValue = &date
	}
	if row.BooleanValue.Valid {
		value.BooleanValue = &row.BooleanValue.Bool
	}
	if row.JSONValue.Valid {
		value.JSONValue = row.JSONValue.Data
	}
	return value
}
