package resolver

import (
	"github.com/Ramsey-B/clover/pkg/models"
)

// FieldSet resolves field keys of one tenant and entity kind.
type FieldSet struct {
	catalog     *Catalog
	kind        models.EntityKind
	locale      string
	overlays    map[string]models.FieldOverlay
	definitions map[string]models.FieldDefinition
	customKeys  []string
}

func NewFieldSet(catalog *Catalog, kind models.EntityKind, locale string, overlays []models.FieldOverlay, definitions []models.FieldDefinition) *FieldSet {
	set := &FieldSet{
		catalog:     catalog,
		kind:        kind,
		locale:      locale,
		overlays:    make(map[string]models.FieldOverlay, len(overlays)),
		definitions: make(map[string]models.FieldDefinition, len(definitions)),
	}
	for _, overlay := range overlays {
		if overlay.EntityKind == kind {
			set.overlays[overlay.FieldKey] = overlay
		}
	}
	for _, definition := range definitions {
		if definition.EntityKind == kind && definition.IsUsable() {
			set.definitions[definition.Key()] = definition
			set.customKeys = append(set.customKeys, definition.Key())
		}
	}
	return set
}

// Definition returns the active custom definition behind a custom_<slug> key.
func (s *FieldSet) Definition(key string) (models.FieldDefinition, bool) {
	definition, ok := s.definitions[key]
	return definition, ok
}

func (s *FieldSet) SystemField(key string) (SystemField, bool) {
	return s.catalog.Lookup(s.kind, key)
}

func (s *FieldSet) LabelFor(key, fallback string) string {
	if definition, ok := s.Definition(key); ok {
		return definition.Name
	}
	if overlay, ok := s.overlays[key]; ok && overlay.Label != nil {
		return *overlay.Label
	}
	if field, ok := s.SystemField(key); ok {
		if label := field.Label(s.locale); label != "" {
			return label
		}
	}
	return fallback
}

// IsRequired never reports a mandatory system field as optional.
func (s *FieldSet) IsRequired(key string, fallback bool) bool {
	if definition, ok := s.Definition(key); ok {
		return definition.Required
	}
	field, isSystem := s.SystemField(key)
	if isSystem && field.Mandatory {
		return true
	}
	if overlay, ok := s.overlays[key]; ok && overlay.Required != nil {
		return *overlay.Required
	}
	if isSystem {
		return field.Required
	}
	return fallback
}

func (s *FieldSet) PlaceholderFor(key, fallback string) string {
	if definition, ok := s.Definition(key); ok && definition.Placeholder != nil {
		return *definition.Placeholder
	}
	if overlay, ok := s.overlays[key]; ok && overlay.Placeholder != nil {
		return *overlay.Placeholder
	}
	if field, ok := s.SystemField(key); ok {
		if placeholder := field.Placeholder(s.locale); placeholder != "" {
			return placeholder
		}
	}
	return fallback
}

// Resolve returns everything known about a key. Unknown keys resolve to the key itself.
func (s *FieldSet) Resolve(key string) models.ResolvedField {
	_, isSystem := s.SystemField(key)
	return models.ResolvedField{
		Key:         key,
		Label:       s.LabelFor(key, key),
		Placeholder: s.PlaceholderFor(key, ""),
		Required:    s.IsRequired(key, false),
		IsSystem:    isSystem,
	}
}

// Keys lists system keys in catalog order followed by custom keys in display order.
func (s *FieldSet) Keys() []string {
	keys := []string{}
	for _, field := range s.catalog.Fields(s.kind) {
		keys = append(keys, field.Key)
	}
	return append(keys, s.customKeys...)
}
