package resolver

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/Ramsey-B/clover/pkg/models"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed system_fields.yaml
var systemFieldsYAML []byte

// SystemField is a compiled-in field of an entity kind.
type SystemField struct {
	Key          string              `yaml:"key"`
	DeclaredType models.DeclaredType `yaml:"type"`
	// Path is the JMESPath of the field inside the record document
	Path string `yaml:"path"`
	// Required is the default a tenant overlay may change
	Required bool `yaml:"required"`
	// Mandatory fields are always required whatever the overlay says
	Mandatory    bool              `yaml:"mandatory"`
	Labels       map[string]string `yaml:"labels"`
	Placeholders map[string]string `yaml:"placeholders"`
}

// Label returns the default label for a locale, falling back to portuguese.
func (f SystemField) Label(locale string) string {
	return localized(f.Labels, locale)
}

func (f SystemField) Placeholder(locale string) string {
	return localized(f.Placeholders, locale)
}

// Catalog is the table of system fields per entity kind.
type Catalog struct {
	ordered map[models.EntityKind][]SystemField
	byKey   map[models.EntityKind]map[string]SystemField
}

var (
	defaultCatalog     *Catalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

// DefaultCatalog parses the embedded system field table once.
func DefaultCatalog() (*Catalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = ParseCatalog(systemFieldsYAML)
	})
	return defaultCatalog, defaultCatalogErr
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var raw map[string][]SystemField
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse system fields: %w", err)
	}

	catalog := &Catalog{
		ordered: make(map[models.EntityKind][]SystemField),
		byKey:   make(map[models.EntityKind]map[string]SystemField),
	}
	for kindName, fields := range raw {
		kind := models.EntityKind(kindName)
		if !kind.IsValid() {
			return nil, fmt.Errorf("system fields: unknown entity kind '%s'", kindName)
		}
		catalog.byKey[kind] = make(map[string]SystemField, len(fields))
		for _, field := range fields {
			if !field.DeclaredType.IsValid() {
				return nil, fmt.Errorf("system field %s.%s: unknown type '%s'", kind, field.Key, field.DeclaredType)
			}
			if _, dup := catalog.byKey[kind][field.Key]; dup {
				return nil, fmt.Errorf("system field %s.%s is declared twice", kind, field.Key)
			}
			if field.Path == "" {
				field.Path = field.Key
			}
			if field.Mandatory {
				field.Required = true
			}
			catalog.byKey[kind][field.Key] = field
			catalog.ordered[kind] = append(catalog.ordered[kind], field)
		}
	}
	return catalog, nil
}

func (c *Catalog) Lookup(kind models.EntityKind, key string) (SystemField, bool) {
	field, ok := c.byKey[kind][key]
	return field, ok
}

// Fields returns the system fields of a kind in declaration order.
func (c *Catalog) Fields(kind models.EntityKind) []SystemField {
	return c.ordered[kind]
}

func localized(values map[string]string, locale string) string {
	if len(values) == 0 {
		return ""
	}
	if value, ok := values[locale]; ok {
		return value
	}
	if tag, err := language.Parse(locale); err == nil {
		base, _ := tag.Base()
		if value, ok := values[base.String()]; ok {
			return value
		}
	}
	return values["pt"]
}
