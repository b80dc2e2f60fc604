// internal/assert/match.go
package assert

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeText applies NFC and collapses runs of whitespace to one space
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// TextMatches compares rendered text the way locators do: whole-string
// equality when exact, otherwise a case-insensitive substring match.
func TextMatches(actual, expected string, exact bool) bool {
	a, e := NormalizeText(actual), NormalizeText(expected)
	if exact {
		return a == e
	}
	return strings.Contains(folder.String(a), folder.String(e))
}
