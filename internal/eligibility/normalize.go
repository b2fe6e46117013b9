package eligibility

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks after NFD decomposition, so "José" and
// "Jose" normalise to the same form.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeName lowercases, strips diacritics, and collapses whitespace.
func normalizeName(name string) string {
	cleaned, _, err := transform.String(stripMarks, name)
	if err != nil {
		cleaned = name
	}
	return strings.Join(strings.Fields(strings.ToLower(cleaned)), " ")
}

// normalizePhone keeps only digits.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// phonesMatch accepts exact digit equality, or equality of the last 8 digits
// to tolerate country-code formatting differences.
func phonesMatch(a, b string) bool {
	da, db := normalizePhone(a), normalizePhone(b)
	if da == "" || db == "" {
		return false
	}
	if da == db {
		return true
	}
	if len(da) >= 8 && len(db) >= 8 {
		return da[len(da)-8:] == db[len(db)-8:]
	}
	return false
}
