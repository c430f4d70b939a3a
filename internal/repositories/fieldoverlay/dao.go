package fieldoverlay

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

const (
	fieldOverlayTable = "field_overlays"
)

var fieldOverlayStruct = database.NewStruct(new(FieldOverlayRow))

type FieldOverlayRow struct {
	ID          sql.NullString `db:"id"`
	TenantID    sql.NullString `db:"tenant_id"`
	EntityKind  sql.NullString `db:"entity_kind"`
	FieldKey    sql.NullString `db:"field_key"`
	Label       sql.NullString `db:"label"`
	Placeholder sql.NullString `db:"placeholder"`
	Required    sql.NullBool   `db:"required"`
	CreatedTS   sql.NullTime   `db:"created_at"`
	UpdatedTS   sql.NullTime   `db:"updated_at"`
}

func FromFieldOverlay(overlay models.FieldOverlay) *FieldOverlayRow {
	row := &FieldOverlayRow{
		ID:         sql.NullString{String: overlay.ID, Valid: overlay.ID != ""},
		TenantID:   sql.NullString{String: overlay.TenantID, Valid: overlay.TenantID != ""},
		EntityKind: sql.NullString{String: string(overlay.EntityKind), Valid: overlay.EntityKind != ""},
		FieldKey:   sql.NullString{String: overlay.FieldKey, Valid: overlay.FieldKey != ""},
		CreatedTS:  sql.NullTime{Time: overlay.CreatedAt, Valid: overlay.CreatedAt != time.Time{}},
		UpdatedTS:  sql.NullTime{Time: overlay.UpdatedAt, Valid: overlay.UpdatedAt != time.Time{}},
	}
	if overlay.Label != nil {
		row.Label = sql.NullString{String: *overlay.Label, Valid: true}
	}
	if overlay.Placeholder != nil {
		row.Placeholder = sql.NullString{String: *overlay.Placeholder, Valid: true}
	}
	if overlay.Required != nil {
		row.Required = sql.NullBool{Bool: *overlay.Required, Valid: true}
	}
	return row
}

func ToFieldOverlay(row *FieldOverlayRow) models.FieldOverlay {
	overlay := models.FieldOverlay{
		ID:         row.ID.String,
		TenantID:   row.TenantID.String,
		EntityKind: models.EntityKind(row.EntityKind.String),
		FieldKey:   row.FieldKey.String,
		CreatedAt:  row.CreatedTS.Time,
		UpdatedAt:  row.UpdatedTS.Time,
	}
	if row.Label.Valid {
		overlay.Label = &row.Label.String
	}
	if row.Placeholder.Valid {
		overlay.Placeholder = &row.Placeholder.String
	}
	if row.Required.Valid {
		overlay.Required = &row.Required.Bool
	}
	return overlay
}
