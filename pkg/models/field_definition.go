package models

import (
	"strings"
	"time"
)

// CustomKeyPrefix marks field keys that address a tenant-defined field rather than a system field.
const CustomKeyPrefix = "custom_"

type FieldDefinition struct {
	ID              string         `json:"id"`
	TenantID        string         `json:"tenant_id"`
	EntityKind      EntityKind     `json:"entity_kind"`
	Slug            string         `json:"slug"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	DeclaredType    DeclaredType   `json:"declared_type"`
	Required        bool           `json:"required"`
	DefaultValue    *string        `json:"default_value,omitempty"`
	Placeholder     *string        `json:"placeholder,omitempty"`
	Options         []string       `json:"options,omitempty"`
	DisplayOrder    int            `json:"display_order"`
	IsSystem        bool           `json:"is_system"`
	Active          bool           `json:"active"`
	ValidationRules map[string]any `json:"validation_rules,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       *time.Time     `json:"deleted_at,omitempty"`
}

// Key is the field key the resolver and rules use for this definition.
func (d FieldDefinition) Key() string {
	return CustomKeyPrefix + d.Slug
}

// IsUsable reports whether values and rules may still resolve against the definition.
func (d FieldDefinition) IsUsable() bool {
	return d.Active && d.DeletedAt == nil
}

// ParseCustomKey returns the slug of a custom_<slug> key.
func ParseCustomKey(key string) (string, bool) {
	if !strings.HasPrefix(key, CustomKeyPrefix) {
		return "", false
	}
	slug := strings.TrimPrefix(key, CustomKeyPrefix)
	return slug, slug != ""
}

type CreateFieldDefinitionRequest struct {
	EntityKind      string         `json:"entity_kind" validate:"required"`
	Name            string         `json:"name" validate:"required,max=255"`
	Description     string         `json:"description" validate:"omitempty,max=2000"`
	DeclaredType    string         `json:"declared_type" validate:"required"`
	Required        bool           `json:"required"`
	DefaultValue    *string        `json:"default_value"`
	Placeholder     *string        `json:"placeholder" validate:"omitempty,max=255"`
	Options         []string       `json:"options" validate:"omitempty,dive,max=255"`
	DisplayOrder    *int           `json:"display_order" validate:"omitempty,min=0"`
	ValidationRules map[string]any `json:"validation_rules"`
}

// UpdateFieldDefinitionRequest is a partial update. Nil fields are left unchanged.
// DeclaredType and Slug are accepted only so that attempts to change them can be rejected.
type UpdateFieldDefinitionRequest struct {
	Name            *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Description     *string        `json:"description" validate:"omitempty,max=2000"`
	DeclaredType    *string        `json:"declared_type"`
	Slug            *string        `json:"slug"`
	Required        *bool          `json:"required"`
	DefaultValue    *string        `json:"default_value"`
	Placeholder     *string        `json:"placeholder" validate:"omitempty,max=255"`
	Options         []string       `json:"options" validate:"omitempty,dive,max=255"`
	DisplayOrder    *int           `json:"display_order" validate:"omitempty,min=0"`
	Active          *bool          `json:"active"`
	ValidationRules map[string]any `json:"validation_rules"`
}
