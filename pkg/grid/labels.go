package grid

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// LabelFormatter turns an upstream category key into a display label.
type LabelFormatter func(category string) string

// countryNames translates zone codes seen in import/export breakdowns.
var countryNames = map[string]string{
	"ES": "Spain",
	"FR": "France",
	"MA": "Morocco",
	"PT": "Portugal",
}

// FormatLabel is the default LabelFormatter. Known zone codes are translated,
// fully upper-case keys (acronyms) are kept, anything else is capitalised.
func FormatLabel(category string) string {
	if name, ok := countryNames[category]; ok {
		return name
	}
	if isUpper(category) {
		return category
	}
	if category == "" {
		return category
	}
	lower := strings.ToLower(category)
	r, size := utf8.DecodeRuneInString(lower)
	return string(unicode.ToUpper(r)) + lower[size:]
}

func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
