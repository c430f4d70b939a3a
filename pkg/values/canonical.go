package values

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"
)

// Kind is the comparable shape of a canonical value.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindNumber
	KindDate
	KindBoolean
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBoolean:
		return "boolean"
	case KindList:
		return "list"
	default:
		return "none"
	}
}

// CanonicalValue is what display and rule evaluation work with. Only the field
// matching Kind is meaningful; KindNone means the value is absent.
type CanonicalValue struct {
	Kind   Kind
	String string
	Number float64
	Date   time.Time
	Bool   bool
	List   []string
}

func None() CanonicalValue                 { return CanonicalValue{Kind: KindNone} }
func StringOf(s string) CanonicalValue     { return CanonicalValue{Kind: KindString, String: s} }
func NumberOf(n float64) CanonicalValue    { return CanonicalValue{Kind: KindNumber, Number: n} }
func DateOf(d time.Time) CanonicalValue    { return CanonicalValue{Kind: KindDate, Date: d} }
func BoolOf(b bool) CanonicalValue         { return CanonicalValue{Kind: KindBoolean, Bool: b} }
func ListOf(items []string) CanonicalValue { return CanonicalValue{Kind: KindList, List: items} }

func (c CanonicalValue) IsAbsent() bool {
	return c.Kind == KindNone
}

// IsEmpty is true for an absent value, an empty string or an empty list.
func (c CanonicalValue) IsEmpty() bool {
	switch c.Kind {
	case KindNone:
		return true
	case KindString:
		return strings.TrimSpace(c.String) == ""
	case KindList:
		return len(c.List) == 0
	default:
		return false
	}
}

// Equal compares two canonical values of the same kind. Strings compare case-sensitively.
func (c CanonicalValue) Equal(other CanonicalValue) bool {
	if c.Kind != other.Kind {
		return false
	}
	switch c.Kind {
	case KindNone:
		return true
	case KindString:
		return c.String == other.String
	case KindNumber:
		return c.Number == other.Number
	case KindDate:
		return c.Date.Equal(other.Date)
	case KindBoolean:
		return c.Bool == other.Bool
	case KindList:
		if len(c.List) != len(other.List) {
			return false
		}
		for i := range c.List {
			if c.List[i] != other.List[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders numbers and dates. ok is false when either side is not orderable
// or the kinds differ.
func (c CanonicalValue) Compare(other CanonicalValue) (result int, ok bool) {
	if c.Kind != other.Kind {
		return 0, false
	}
	switch c.Kind {
	case KindNumber:
		switch {
		case c.Number < other.Number:
			return -1, true
		case c.Number > other.Number:
			return 1, true
		default:
			return 0, true
		}
	case KindDate:
		return c.Date.Compare(other.Date), true
	default:
		return 0, false
	}
}

// Contains is substring match for strings and membership for lists.
func (c CanonicalValue) Contains(needle CanonicalValue) bool {
	switch c.Kind {
	case KindString:
		if needle.Kind != KindString {
			return false
		}
		return strings.Contains(c.String, needle.String)
	case KindList:
		switch needle.Kind {
		case KindString:
			return ectolinq.Contains(c.List, needle.String)
		case KindList:
			if len(needle.List) == 0 {
				return false
			}
			for _, item := range needle.List {
				if !ectolinq.Contains(c.List, item) {
					return false
				}
			}
			return true
		}
	}
	return false
}

// Interface returns a JSON friendly representation.
func (c CanonicalValue) Interface() any {
	switch c.Kind {
	case KindString:
		return c.String
	case KindNumber:
		return c.Number
	case KindDate:
		return c.Date
	case KindBoolean:
		return c.Bool
	case KindList:
		return c.List
	default:
		return nil
	}
}

func (c CanonicalValue) GoString() string {
	switch c.Kind {
	case KindNone:
		return "none"
	case KindNumber:
		return "number(" + strconv.FormatFloat(c.Number, 'f', -1, 64) + ")"
	case KindDate:
		return "date(" + c.Date.Format(time.RFC3339) + ")"
	default:
		return fmt.Sprintf("%s(%v)", c.Kind, c.Interface())
	}
}
