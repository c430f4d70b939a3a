package values

import (
	"encoding/json"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// ValidationRules are the optional constraints a tenant attaches to a field definition.
//
//	{"normalizers": ["trim", "lowercase"], "max_length": 80, "pattern": "^[A-Z]{2}$", "min": 0}
type ValidationRules struct {
	Normalizers []string `json:"normalizers,omitempty"`
	MinLength   *int     `json:"min_length,omitempty"`
	MaxLength   *int     `json:"max_length,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	MinItems    *int     `json:"min_items,omitempty"`
	MaxItems    *int     `json:"max_items,omitempty"`

	pattern *regexp.Regexp
}

// ParseValidationRules decodes and checks the rules map of a definition.
func ParseValidationRules(raw map[string]any) (ValidationRules, error) {
	var rules ValidationRules
	if len(raw) == 0 {
		return rules, nil
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return rules, errors.NewValidationError("validation_rules", "cannot encode validation rules: %s", err)
	}
	if err := json.Unmarshal(encoded, &rules); err != nil {
		return rules, errors.NewValidationError("validation_rules", "malformed validation rules: %s", err)
	}

	for _, name := range rules.Normalizers {
		if _, ok := normalizers.Get(name); !ok {
			return rules, errors.NewValidationError("validation_rules", "unknown normalizer '%s'", name)
		}
	}
	if rules.Pattern != "" {
		compiled, err := regexp.Compile(rules.Pattern)
		if err != nil {
			return rules, errors.NewValidationError("validation_rules", "invalid pattern: %s", err)
		}
		rules.pattern = compiled
	}
	if rules.Min != nil && rules.Max != nil && *rules.Min > *rules.Max {
		return rules, errors.NewValidationError("validation_rules", "min is greater than max")
	}
	if rules.MinLength != nil && rules.MaxLength != nil && *rules.MinLength > *rules.MaxLength {
		return rules, errors.NewValidationError("validation_rules", "min_length is greater than max_length")
	}
	return rules, nil
}

// Check validates a coerced value against the rules.
func (r ValidationRules) Check(definition models.FieldDefinition, stored models.StoredValue) error {
	violation := func(format string, args ...any) error {
		return errors.NewValidationError(definition.ID, "%s: %s", definition.Name, fmt.Sprintf(format, args...))
	}

	switch s := stored.(type) {
	case models.TextValue:
		length := utf8.RuneCountInString(string(s))
		if r.MinLength != nil && length < *r.MinLength {
			return violation("must have at least %d characters", *r.MinLength)
		}
		if r.MaxLength != nil && length > *r.MaxLength {
			return violation("must have at most %d characters", *r.MaxLength)
		}
		if r.pattern != nil && !r.pattern.MatchString(string(s)) {
			return violation("does not match the expected format")
		}
	case models.NumberValue:
		if r.Min != nil && float64(s) < *r.Min {
			return violation("must be at least %v", *r.Min)
		}
		if r.Max != nil && float64(s) > *r.Max {
			return violation("must be at most %v", *r.Max)
		}
	case models.ListValue:
		if r.MinItems != nil && len(s) < *r.MinItems {
			return violation("select at least %d options", *r.MinItems)
		}
		if r.MaxItems != nil && len(s) > *r.MaxItems {
			return violation("select at most %d options", *r.MaxItems)
		}
	}
	return nil
}
