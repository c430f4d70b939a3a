package values

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// LegacyListSeparator splits list values saved before lists were stored as JSON arrays.
// It is only read, never written.
const LegacyListSeparator = "|"

// ToCanonical converts a stored value into the comparable form for its declared type.
// Text found where the declared type expects another column is parsed leniently so
// rows written by older clients still compare correctly.
func ToCanonical(declaredType models.DeclaredType, stored models.StoredValue) CanonicalValue {
	switch s := stored.(type) {
	case nil:
		return None()
	case models.TextValue:
		return textToCanonical(declaredType, string(s))
	case models.NumberValue:
		return NumberOf(float64(s))
	case models.DateValue:
		return DateOf(s.Time().UTC())
	case models.BoolValue:
		return BoolOf(bool(s))
	case models.ListValue:
		items := []string(s)
		if items == nil {
			items = []string{}
		}
		return ListOf(items)
	default:
		return None()
	}
}

// FromTypedValue canonicalizes a value row. A nil row is an absent value.
func FromTypedValue(declaredType models.DeclaredType, value *models.TypedValue) CanonicalValue {
	if value == nil {
		return None()
	}
	return ToCanonical(declaredType, value.Stored())
}

func textToCanonical(declaredType models.DeclaredType, text string) CanonicalValue {
	switch declaredType.StorageColumn() {
	case models.ColumnJSON:
		return ListOf(splitLegacyList(text))
	case models.ColumnNumber:
		if n, ok := parseNumber(text); ok {
			return NumberOf(n)
		}
	case models.ColumnDate:
		layouts := dateLayouts
		if declaredType == models.DeclaredTypeDateTime {
			layouts = dateTimeLayouts
		}
		for _, layout := range layouts {
			if parsed, err := time.Parse(layout, strings.TrimSpace(text)); err == nil {
				return DateOf(parsed.UTC())
			}
		}
	case models.ColumnBoolean:
		if b, err := toBool(declaredType, text); err == nil {
			return BoolOf(b)
		}
	}
	return StringOf(text)
}

func splitLegacyList(text string) []string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") {
		var items []string
		if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
			return dedupe(items)
		}
	}
	return dedupe(strings.Split(trimmed, LegacyListSeparator))
}
