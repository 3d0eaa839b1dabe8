// Package normalize maps free-text entity labels to comparison keys.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// localeUpper lowers the Turkish capitals that generic lower-casing gets wrong
// (İ would otherwise become "i" plus a combining dot). All four I forms fold
// to a plain "i": whether I lowers to i or ı depends on the writer's locale,
// which a spreadsheet cell does not carry.
var localeUpper = strings.NewReplacer(
	"İ", "i",
	"I", "i",
	"ı", "i",
	"Ş", "ş",
	"Ğ", "ğ",
	"Ü", "ü",
	"Ö", "ö",
	"Ç", "ç",
)

// Key returns the comparison key for an entity name: lower-cased, with runs of
// whitespace collapsed to one space and surrounding whitespace trimmed.
// Two names denote the same entity iff their keys are equal.
func Key(text string) string {
	if text == "" {
		return ""
	}
	lowered := cases.Lower(language.Und).String(localeUpper.Replace(text))
	return strings.Join(strings.Fields(lowered), " ")
}

// Same reports whether a and b normalize to the same key.
func Same(a, b string) bool {
	return Key(a) == Key(b)
}
