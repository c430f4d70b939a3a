package models

import "time"

// FieldOverlay is a tenant's configuration of a system field. Only presentation
// properties can be overlaid; type, column and identity stay compiled in.
type FieldOverlay struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	EntityKind  EntityKind `json:"entity_kind"`
	FieldKey    string     `json:"field_key"`
	Label       *string    `json:"label,omitempty"`
	Placeholder *string    `json:"placeholder,omitempty"`
	Required    *bool      `json:"required,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type SetFieldOverlayRequest struct {
	Label       *string `json:"label" validate:"omitempty,max=255"`
	Placeholder *string `json:"placeholder" validate:"omitempty,max=255"`
	Required    *bool   `json:"required"`
}

// ResolvedField is the outcome of resolving a field key for display.
type ResolvedField struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder"`
	Required    bool   `json:"required"`
	IsSystem    bool   `json:"is_system"`
}
