package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FoldName normalizes a product name for prefix search. Turkish casing rules
// apply, so "I" folds to "ı" and "İ" folds to "i".
func FoldName(name string) string {
	return cases.Lower(language.Turkish).String(strings.TrimSpace(name))
}
