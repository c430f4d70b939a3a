package models

import (
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/clover/pkg/errors"
)

// EntityKind is the fixed record type a custom field attaches to.
type EntityKind string

const (
	EntityKindContact     EntityKind = "contato"
	EntityKindCompany     EntityKind = "empresa"
	EntityKindOpportunity EntityKind = "oportunidade"
)

var EntityKinds = []EntityKind{EntityKindContact, EntityKindCompany, EntityKindOpportunity}

var entityKindAliases = map[string]EntityKind{
	"contact":     EntityKindContact,
	"person":      EntityKindContact,
	"company":     EntityKindCompany,
	"opportunity": EntityKindOpportunity,
	"deal":        EntityKindOpportunity,
}

func (k EntityKind) IsValid() bool {
	return ectolinq.Contains(EntityKinds, k)
}

func (k EntityKind) String() string {
	return string(k)
}

// ParseEntityKind accepts the stored names and their english aliases.
func ParseEntityKind(raw string) (EntityKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if kind := EntityKind(normalized); kind.IsValid() {
		return kind, nil
	}
	if kind, ok := entityKindAliases[normalized]; ok {
		return kind, nil
	}
	return "", errors.NewValidationError("entity_kind", "unknown entity kind '%s'", raw)
}
