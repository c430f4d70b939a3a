package fielddefinition

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/lib/pq"
)

const (
	fieldDefinitionTable = "field_definitions"
)

var fieldDefinitionStruct = database.NewStruct(new(FieldDefinitionRow))

type FieldDefinitionRow struct {
	ID              sql.NullString                 `db:"id"`
	TenantID        sql.NullString                 `db:"tenant_id"`
	EntityKind      sql.NullString                 `db:"entity_kind"`
	Slug            sql.NullString                 `db:"slug"`
	Name            sql.NullString                 `db:"name"`
	Description     sql.NullString                 `db:"description"`
	DeclaredType    sql.NullString                 `db:"declared_type"`
	Required        sql.NullBool                   `db:"required"`
	DefaultValue    sql.NullString                 `db:"default_value"`
	Placeholder     sql.NullString                 `db:"placeholder"`
	Options         pq.StringArray                 `db:"options"`
	DisplayOrder    sql.NullInt64                  `db:"display_order"`
	IsSystem        sql.NullBool                   `db:"is_system"`
	Active          sql.NullBool                   `db:"active"`
	ValidationRules database.JSONB[map[string]any] `db:"validation_rules"`
	CreatedTS       sql.NullTime                   `db:"created_at"`
	UpdatedTS       sql.NullTime                   `db:"updated_at"`
	DeletedTS       sql.NullTime                   `db:"deleted_at"`
}

func FromFieldDefinition(definition models.FieldDefinition) *FieldDefinitionRow {
	row := &FieldDefinitionRow{
		ID:              sql.NullString{String: definition.ID, Valid: definition.ID != ""},
		TenantID:        sql.NullString{String: definition.TenantID, Valid: definition.TenantID != ""},
		EntityKind:      sql.NullString{String: string(definition.EntityKind), Valid: definition.EntityKind != ""},
		Slug:            sql.NullString{String: definition.Slug, Valid: definition.Slug != ""},
		Name:            sql.NullString{String: definition.Name, Valid: definition.Name != ""},
		Description:     sql.NullString{String: definition.Description, Valid: definition.Description != ""},
		DeclaredType:    sql.NullString{String: string(definition.DeclaredType), Valid: definition.DeclaredType != ""},
		Required:        sql.NullBool{Bool: definition.Required, Valid: true},
		Options:         pq.StringArray(definition.Options),
		DisplayOrder:    sql.NullInt64{Int64: int64(definition.DisplayOrder), Valid: true},
		IsSystem:        sql.NullBool{Bool: definition.IsSystem, Valid: true},
		Active:          sql.NullBool{Bool: definition.Active, Valid: true},
		ValidationRules: database.JSONB[map[string]any]{Data: definition.ValidationRules, Valid: len(definition.ValidationRules) > 0},
		CreatedTS:       sql.NullTime{Time: definition.CreatedAt, Valid: definition.CreatedAt != time.Time{}},
		UpdatedTS:       sql.NullTime{Time: definition.UpdatedAt, Valid: definition.UpdatedAt != time.Time{}},
	}
	if definition.DefaultValue != nil {
		row.DefaultValue = sql.NullString{String: *definition.DefaultValue, Valid: true}
	}
	if definition.Placeholder != nil {
		row.Placeholder = sql.NullString{String: *definition.Placeholder, Valid: true}
	}
	if definition.DeletedAt != nil {
		row.DeletedTS = sql.NullTime{Time: *definition.DeletedAt, Valid: true}
	}
	if row.Options == nil {
		row.Options = pq.StringArray{}
	}
	return row
}

func ToFieldDefinition(row *FieldDefinitionRow) models.FieldDefinition {
	definition := models.FieldDefinition{
		ID:              row.ID.String,
		TenantID:        row.TenantID.String,
		EntityKind:      models.EntityKind(row.EntityKind.String),
		Slug:            row.Slug.String,
		Name:            row.Name.String,
		Description:     row.Description.String,
		DeclaredType:    models.DeclaredType(row.DeclaredType.String),
		Required:        row.Required.Bool,
		Options:         []string(row.Options),
		DisplayOrder:    int(row.DisplayOrder.Int64),
		IsSystem:        row.IsSystem.Bool,
		Active:          row.Active.Bool,
		ValidationRules: row.ValidationRules.Data,
		CreatedAt:       row.CreatedTS.Time,
		UpdatedAt:       row.UpdatedTS.Time,
	}
	if row.DefaultValue.Valid {
		definition.DefaultValue = &row.DefaultValue.String
	}
	if row.Placeholder.Valid {
		definition.Placeholder = &row.Placeholder.String
	}
	if row.DeletedTS.Valid {
		deleted := row.DeletedTS.Time
		definition.DeletedAt = &deleted
	}
	return definition
}
