// Package normalizers provides named string normalizers applied to text input
// before it is coerced and stored.
package normalizers

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("uppercase", Uppercase)
	Register("trim", Trim)
	Register("collapse_whitespace", CollapseWhitespace)
	Register("fold_accents", FoldAccents)
	Register("nphone", NormalizePhone)
	Register("nemail", NormalizeEmail)
	Register("nname", NormalizeName)
	Register("digits_only", DigitsOnly)
	Register("alphanumeric", Alphanumeric)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value. Unknown names leave the value untouched.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

func Lowercase(s string) string {
	return strings.ToLower(s)
}

func Uppercase(s string) string {
	return strings.ToUpper(s)
}

func Trim(s string) string {
	return strings.TrimSpace(s)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// CollapseWhitespace trims and replaces whitespace runs with a single space
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// FoldAccents strips combining marks, turning "Região São João" into "Regiao Sao Joao"
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// NormalizePhone keeps digits and a leading plus sign
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	prefix := ""
	if strings.HasPrefix(s, "+") {
		prefix = "+"
	}
	return prefix + DigitsOnly(s)
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeName lowercases, drops punctuation and collapses whitespace
func NormalizeName(s string) string {
	s = strings.ToLower(s)

	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) {
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// NormalizeCPF returns the 11 digits of a valid CPF, or "" when the check digits fail.
func NormalizeCPF(s string) string {
	digits := DigitsOnly(s)
	if len(digits) != 11 || allSame(digits) {
		return ""
	}
	if checkDigit(digits[:9], 10) != digits[9] || checkDigit(digits[:10], 11) != digits[10] {
		return ""
	}
	return digits
}

// NormalizeCNPJ returns the 14 digits of a valid CNPJ, or "" when the check digits fail.
func NormalizeCNPJ(s string) string {
	digits := DigitsOnly(s)
	if len(digits) != 14 || allSame(digits) {
		return ""
	}
	first := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	second := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	if weightedCheckDigit(digits[:12], first) != digits[12] || weightedCheckDigit(digits[:13], second) != digits[13] {
		return ""
	}
	return digits
}

// checkDigit computes a CPF verifier using descending weights starting at startWeight.
func checkDigit(digits string, startWeight int) byte {
	weights := make([]int, len(digits))
	for i := range weights {
		weights[i] = startWeight - i
	}
	return weightedCheckDigit(digits, weights)
}

func weightedCheckDigit(digits string, weights []int) byte {
	sum := 0
	for i, d := range digits {
		sum += int(d-'0') * weights[i]
	}
	rest := sum % 11
	if rest < 2 {
		return '0'
	}
	return byte('0' + 11 - rest)
}

func allSame(digits string) bool {
	return strings.Count(digits, digits[:1]) == len(digits)
}
