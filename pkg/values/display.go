package values

import (
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DisplayString renders a stored value for people reading it in the given locale.
// Unknown locales render as pt-BR.
func DisplayString(declaredType models.DeclaredType, stored models.StoredValue, locale string) string {
	canonical := ToCanonical(declaredType, stored)
	if canonical.IsAbsent() {
		return ""
	}

	tag := parseLocale(locale)
	portuguese := isPortuguese(tag)

	switch canonical.Kind {
	case KindNumber:
		printer := message.NewPrinter(tag)
		if declaredType == models.DeclaredTypeInteger {
			return printer.Sprint(number.Decimal(canonical.Number, number.MaxFractionDigits(0)))
		}
		return printer.Sprint(number.Decimal(canonical.Number, number.MaxFractionDigits(6)))
	case KindDate:
		return formatDate(declaredType, canonical.Date, portuguese)
	case KindBoolean:
		return formatBool(canonical.Bool, portuguese)
	case KindList:
		return strings.Join(canonical.List, ", ")
	}

	text := canonical.String
	switch declaredType {
	case models.DeclaredTypeTaxIDIndividual:
		return mask(text, "###.###.###-##")
	case models.DeclaredTypeTaxIDBusiness:
		return mask(text, "##.###.###/####-##")
	case models.DeclaredTypePhone:
		return formatPhone(text)
	}
	return text
}

func parseLocale(locale string) language.Tag {
	if locale == "" {
		return language.BrazilianPortuguese
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.BrazilianPortuguese
	}
	return tag
}

func isPortuguese(tag language.Tag) bool {
	base, _ := tag.Base()
	return base.String() == "pt"
}

func formatDate(declaredType models.DeclaredType, d time.Time, portuguese bool) string {
	layout := "01/02/2006"
	if portuguese {
		layout = "02/01/2006"
	}
	if declaredType == models.DeclaredTypeDateTime {
		layout += " 15:04"
	}
	return d.Format(layout)
}

func formatBool(b bool, portuguese bool) string {
	switch {
	case b && portuguese:
		return "Sim"
	case b:
		return "Yes"
	case portuguese:
		return "Não"
	default:
		return "No"
	}
}

// mask fills # placeholders with digits. Values that do not have exactly as many
// digits as the pattern are returned unchanged.
func mask(digits, pattern string) string {
	if len(digits) != strings.Count(pattern, "#") {
		return digits
	}
	var b strings.Builder
	i := 0
	for _, r := range pattern {
		if r == '#' {
			b.WriteByte(digits[i])
			i++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// formatPhone masks Brazilian numbers with area code, leaving others as stored.
func formatPhone(phone string) string {
	digits := strings.TrimPrefix(phone, "+")
	if strings.HasPrefix(phone, "+55") {
		digits = strings.TrimPrefix(digits, "55")
	} else if strings.HasPrefix(phone, "+") {
		return phone
	}
	switch len(digits) {
	case 11:
		return mask(digits, "(##) #####-####")
	case 10:
		return mask(digits, "(##) ####-####")
	default:
		return phone
	}
}
