// Package values converts between raw input, the typed storage representation and
// the canonical comparable form used by display and qualification.
package values

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/utils"
)

const (
	ShortTextMaxLength = 255
	LongTextMaxLength  = 65535
	// Largest integer a float64 represents exactly
	maxSafeInteger = 1 << 53
)

var thousandsGrouped = regexp.MustCompile(`^[+-]?[1-9][0-9]{0,2}\.[0-9]{3}$`)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	time.RFC3339,
	time.RFC3339Nano,
}

var dateTimeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02",
	"02/01/2006",
}

var trueWords = []string{"true", "1", "yes", "y", "sim", "s", "on", "verdadeiro"}
var falseWords = []string{"false", "0", "no", "n", "não", "nao", "off", "falso"}

// FromInput coerces raw user input into the stored form for a declared type.
// Empty input (nil, blank string, empty list) yields a nil StoredValue.
func FromInput(declaredType models.DeclaredType, raw any) (models.StoredValue, error) {
	if isBlank(raw) {
		return nil, nil
	}

	stored, err := parse(declaredType, raw)
	if err != nil {
		return nil, err
	}

	switch declaredType {
	case models.DeclaredTypeShortText:
		if utf8.RuneCountInString(string(stored.(models.TextValue))) > ShortTextMaxLength {
			return nil, errors.NewTypeCoercionError(declaredType.String(), truncate(raw), "longer than %d characters", ShortTextMaxLength)
		}
	case models.DeclaredTypeLongText:
		if utf8.RuneCountInString(string(stored.(models.TextValue))) > LongTextMaxLength {
			return nil, errors.NewTypeCoercionError(declaredType.String(), truncate(raw), "longer than %d characters", LongTextMaxLength)
		}
	case models.DeclaredTypeEmail:
		if err := utils.ValidateValue(string(stored.(models.TextValue)), "email"); err != nil {
			return nil, errors.NewTypeCoercionError(declaredType.String(), raw, "not a valid email address")
		}
	case models.DeclaredTypeURL:
		if err := utils.ValidateValue(string(stored.(models.TextValue)), "url"); err != nil {
			return nil, errors.NewTypeCoercionError(declaredType.String(), raw, "not a valid url")
		}
	}

	return stored, nil
}

// FromInputFor coerces input for a specific definition: text normalizers from its
// validation rules run first, select values must match its options, and the
// remaining validation rules are checked against the result.
func FromInputFor(definition models.FieldDefinition, raw any) (models.StoredValue, error) {
	rules, err := ParseValidationRules(definition.ValidationRules)
	if err != nil {
		return nil, err
	}

	if text, ok := raw.(string); ok && len(rules.Normalizers) > 0 {
		raw = normalizers.ApplyChain(text, rules.Normalizers...)
	}

	stored, err := FromInput(definition.DeclaredType, raw)
	if err != nil {
		return nil, withField(err, definition.ID)
	}
	if stored == nil {
		return nil, nil
	}

	if definition.DeclaredType.RequiresOptions() && len(definition.Options) > 0 {
		stored, err = matchOptions(definition, stored)
		if err != nil {
			return nil, err
		}
	}

	if err := rules.Check(definition, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// Canonicalize converts raw input straight to its canonical form without the
// definition constraints FromInput enforces. Rule comparison values go through here.
func Canonicalize(declaredType models.DeclaredType, raw any) (CanonicalValue, error) {
	if isBlank(raw) {
		return None(), nil
	}
	stored, err := parse(declaredType, raw)
	if err != nil {
		return None(), err
	}
	return ToCanonical(declaredType, stored), nil
}

func parse(declaredType models.DeclaredType, raw any) (models.StoredValue, error) {
	switch declaredType {
	case models.DeclaredTypeShortText, models.DeclaredTypeLongText, models.DeclaredTypeSingleSelect:
		text, err := toText(declaredType, raw)
		if err != nil {
			return nil, err
		}
		return models.TextValue(text), nil
	case models.DeclaredTypeInteger:
		n, err := toNumber(declaredType, raw)
		if err != nil {
			return nil, err
		}
		if n != math.Trunc(n) || math.Abs(n) > maxSafeInteger {
			return nil, errors.NewTypeCoercionError(declaredType.String(), raw, "not a whole number")
		}
		return models.NumberValue(n), nil
	case models.DeclaredTypeDecimal:
		n, err := toNumber(declaredType, raw)
		if err != nil {
			return nil, err
		}
		return models.NumberValue(n), nil
	case models.DeclaredTypeDate:
		d, err := toTime(declaredType, raw, dateLayouts)
		if err != nil {
			return nil, err
		}
		y, m, day := d.Date()
		return models.DateValue(time.Date(y, m, day, 0, 0, 0, 0, time.UTC)), nil
	case models.DeclaredTypeDateTime:
		d, err := toTime(declaredType, raw, dateTimeLayouts)
		if err != nil {
			return nil, err
		}
		return models.DateValue(d.UTC().Truncate(time.Second)), nil
	case models.DeclaredTypeBoolean:
		b, err := toBool(declaredType, raw)
		if err != nil {
			return nil, err
		}
		return models.BoolValue(b), nil
	case models.DeclaredTypeMultiSelect:
		items, err := toList(declaredType, raw)
		if err != nil {
			return nil, err
		}
		return models.ListValue(items), nil
	case models.DeclaredTypeEmail:
		text, err := toText(declaredType, raw)
		if err != nil {
			return nil, err
		}
		return models.TextValue(normalizers.NormalizeEmail(text)), nil
	case models.DeclaredTypeURL:
		text, err := toText(declaredType, raw)
		if err != nil {
			return nil, err
		}
		return models.TextValue(normalizeURL(text)), nil
	case models.DeclaredTypePhone:
		text, err := toText(declaredType, raw)
		if err != nil {
			return nil, err
		}
		phone := normalizers.NormalizePhone(text)
		digits := len(strings.TrimPrefix(phone, "+"))
		if digits < 8 || digits > 15 || strings.IndexFunc(text, unicode.IsLetter) >= 0 {
			return nil, errors.NewTypeCoercionError(declaredType.String(), raw, "phone numbers have 8 to 15 digits")
		}
		return models.TextValue(phone), nil
	case models.DeclaredTypeTaxIDIndividual:
		text, err := toText(declaredType, raw)
		if err != nil {
			return nil, err
		}
		cpf := normalizers.NormalizeCPF(text)
		if cpf == "" {
			return nil, errors.NewTypeCoercionError(declaredType.String(), raw, "invalid CPF")
		}
		return models.TextValue(cpf), nil
	case models.DeclaredTypeTaxIDBusiness:
		text, err := toText(declaredType, raw)
		if err != nil {
			return nil, err
		}
		cnpj := normalizers.NormalizeCNPJ(text)
		if cnpj == "" {
			return nil, errors.NewTypeCoercionError(declaredType.String(), raw, "invalid CNPJ")
		}
		return models.TextValue(cnpj), nil
	default:
		return nil, errors.NewTypeCoercionError(declaredType.String(), raw, "unknown declared type")
	}
}

func matchOptions(definition models.FieldDefinition, stored models.StoredValue) (models.StoredValue, error) {
	match := func(input string) (string, bool) {
		for _, option := range definition.Options {
			if strings.EqualFold(strings.TrimSpace(option), strings.TrimSpace(input)) {
				return option, true
			}
		}
		return "", false
	}

	switch s := stored.(type) {
	case models.TextValue:
		option, ok := match(string(s))
		if !ok {
			return nil, errors.NewTypeCoercionError(definition.DeclaredType.String(), string(s), "not one of the field options").ForField(definition.ID)
		}
		return models.TextValue(option), nil
	case models.ListValue:
		matched := make([]string, 0, len(s))
		for _, item := range s {
			option, ok := match(item)
			if !ok {
				return nil, errors.NewTypeCoercionError(definition.DeclaredType.String(), item, "not one of the field options").ForField(definition.ID)
			}
			matched = append(matched, option)
		}
		return models.ListValue(dedupe(matched)), nil
	default:
		return stored, nil
	}
}

func toText(declaredType models.DeclaredType, raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int, int32, int64:
		return fmt.Sprintf("%d", v), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", errors.NewTypeCoercionError(declaredType.String(), raw, "expected text")
	}
}

func toNumber(declaredType models.DeclaredType, raw any) (float64, error) {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, errors.NewTypeCoercionError(declaredType.String(), raw, "not a number")
		}
		n = parsed
	case string:
		parsed, ok := parseNumber(v)
		if !ok {
			return 0, errors.NewTypeCoercionError(declaredType.String(), raw, "not a number")
		}
		n = parsed
	default:
		return 0, errors.NewTypeCoercionError(declaredType.String(), raw, "not a number")
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, errors.NewTypeCoercionError(declaredType.String(), raw, "not a finite number")
	}
	return n, nil
}

// parseNumber accepts "1234.5", "1,5", "1.234,56" and "1,234.56". With both
// separators present the last one is the decimal separator. A lone comma is always
// decimal. A lone dot is decimal except in the pt-BR grouping shape: one to three
// leading digits without a leading zero, then exactly three digits ("1.000" is 1000,
// "0.125" and "1234.567" stay fractional).
func parseNumber(s string) (float64, bool) {
	s = strings.NewReplacer(" ", "", "_", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1 || thousandsGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func toTime(declaredType models.DeclaredType, raw any, layouts []string) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range layouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, errors.NewTypeCoercionError(declaredType.String(), raw, "unrecognized date format")
	default:
		return time.Time{}, errors.NewTypeCoercionError(declaredType.String(), raw, "expected a date")
	}
}

func toBool(declaredType models.DeclaredType, raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		if v == 1 || v == 0 {
			return v == 1, nil
		}
	case int:
		if v == 1 || v == 0 {
			return v == 1, nil
		}
	case string:
		word := strings.ToLower(strings.TrimSpace(v))
		for _, t := range trueWords {
			if word == t {
				return true, nil
			}
		}
		for _, f := range falseWords {
			if word == f {
				return false, nil
			}
		}
	}
	return false, errors.NewTypeCoercionError(declaredType.String(), raw, "expected yes or no")
}

// toList accepts a slice, a JSON array string or a comma separated string.
func toList(declaredType models.DeclaredType, raw any) ([]string, error) {
	var items []string
	switch v := raw.(type) {
	case []string:
		items = v
	case []any:
		for _, item := range v {
			text, err := toText(declaredType, item)
			if err != nil {
				return nil, err
			}
			items = append(items, text)
		}
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "[") {
			if err := json.Unmarshal([]byte(s), &items); err != nil {
				return nil, errors.NewTypeCoercionError(declaredType.String(), raw, "malformed list")
			}
		} else {
			items = strings.Split(s, ",")
		}
	default:
		return nil, errors.NewTypeCoercionError(declaredType.String(), raw, "expected a list")
	}
	return dedupe(items), nil
}

// dedupe trims items, drops blanks and keeps the first occurrence of each.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		result = append(result, item)
	}
	return result
}

func normalizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if parsed, err := url.Parse(s); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		return s
	}
	return "https://" + s
}

func isBlank(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(dedupe(v)) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

func truncate(raw any) string {
	s := fmt.Sprintf("%v", raw)
	if utf8.RuneCountInString(s) <= 40 {
		return s
	}
	return string([]rune(s)[:40]) + "..."
}

func withField(err error, fieldDefinitionID string) error {
	if coercion, ok := err.(*errors.TypeCoercionError); ok {
		return coercion.ForField(fieldDefinitionID)
	}
	return err
}
