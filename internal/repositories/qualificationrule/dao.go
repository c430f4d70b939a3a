package qualificationrule

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/lib/pq"
)

const (
	qualificationRuleTable = "qualification_rules"
)

var qualificationRuleStruct = database.NewStruct(new(QualificationRuleRow))

type QualificationRuleRow struct {
	ID               sql.NullString `db:"id"`
	TenantID         sql.NullString `db:"tenant_id"`
	EntityKind       sql.NullString `db:"entity_kind"`
	Name             sql.NullString `db:"name"`
	Description      sql.NullString `db:"description"`
	FieldReference   sql.NullString `db:"field_reference"`
	FieldKey         sql.NullString `db:"field_key"`
	Operator         sql.NullString `db:"operator"`
	ComparisonValue  sql.NullString `db:"comparison_value"`
	ComparisonValues pq.StringArray `db:"comparison_values"`
	Active           sql.NullBool   `db:"active"`
	DisplayOrder     sql.NullInt64  `db:"display_order"`
	UpdatedBy        sql.NullString `db:"updated_by"`
	CreatedTS        sql.NullTime   `db:"created_at"`
	UpdatedTS        sql.NullTime   `db:"updated_at"`
}

func FromQualificationRule(rule models.QualificationRule) *QualificationRuleRow {
	row := &QualificationRuleRow{
		ID:               sql.NullString{String: rule.ID, Valid: rule.ID != ""},
		TenantID:         sql.NullString{String: rule.TenantID, Valid: rule.TenantID != ""},
		EntityKind:       sql.NullString{String: string(rule.EntityKind), Valid: rule.EntityKind != ""},
		Name:             sql.NullString{String: rule.Name, Valid: rule.Name != ""},
		Description:      sql.NullString{String: rule.Description, Valid: rule.Description != ""},
		Operator:         sql.NullString{String: string(rule.Operator), Valid: rule.Operator != ""},
		ComparisonValues: pq.StringArray(rule.ComparisonValues),
		Active:           sql.NullBool{Bool: rule.Active, Valid: true},
		DisplayOrder:     sql.NullInt64{Int64: int64(rule.DisplayOrder), Valid: true},
		UpdatedBy:        sql.NullString{String: rule.UpdatedBy, Valid: rule.UpdatedBy != ""},
		CreatedTS:        sql.NullTime{Time: rule.CreatedAt, Valid: rule.CreatedAt != time.Time{}},
		UpdatedTS:        sql.NullTime{Time: rule.UpdatedAt, Valid: rule.UpdatedAt != time.Time{}},
	}
	if rule.FieldReference != nil {
		row.FieldReference = sql.NullString{String: *rule.FieldReference, Valid: true}
	}
	if rule.FieldKey != nil {
		row.FieldKey = sql.NullString{String: *rule.FieldKey, Valid: true}
	}
	if rule.ComparisonValue != nil {
		row.ComparisonValue = sql.NullString{String: *rule.ComparisonValue, Valid: true}
	}
	if row.ComparisonValues == nil {
		row.ComparisonValues = pq.StringArray{}
	}
	return row
}

func ToQualificationRule(row *QualificationRuleRow) models.QualificationRule {
	rule := models.QualificationRule{
		ID:               row.ID.String,
		TenantID:         row.TenantID.String,
		EntityKind:       models.EntityKind(row.EntityKind.String),
		Name:             row.Name.String,
		Description:      row.Description.String,
		Operator:         models.Operator(row.Operator.String),
		ComparisonValues: []string(row.ComparisonValues),
		Active:           row.Active.Bool,
		DisplayOrder:     int(row.DisplayOrder.Int64),
		UpdatedBy:        row.UpdatedBy.String,
		CreatedAt:        row.CreatedTS.Time,
		UpdatedAt:        row.UpdatedTS.Time,
	}
	if rule.EntityKind == "" {
		rule.EntityKind = models.EntityKindContact
	}
	if row.FieldReference.Valid {
		rule.FieldReference = &row.FieldReference.String
	}
	if row.FieldKey.Valid {
		rule.FieldKey = &row.FieldKey.String
	}
	if row.ComparisonValue.Valid {
		rule.ComparisonValue = &row.ComparisonValue.String
	}
	return rule
}
