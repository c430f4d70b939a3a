// Package slug derives key-safe identifiers from field display names.
package slug

import (
	"strings"

	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// Make lowercases, folds accents to ASCII and joins alphanumeric runs with hyphens.
// "Domínio do E-mail" becomes "dominio-do-e-mail".
func Make(name string) string {
	folded := strings.ToLower(normalizers.FoldAccents(name))

	var b strings.Builder
	pendingHyphen := false
	for _, r := range folded {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingHyphen = b.Len() > 0
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsValid reports whether s is already in slug form.
func IsValid(s string) bool {
	return s != "" && Make(s) == s
}
