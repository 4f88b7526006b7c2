// Package textnorm normalises names before they are compared: file names
// against workshop keywords, and references against each other.
package textnorm

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold returns s in NFC form with case folded. Workbook names come from
// several operating systems, so composed and decomposed accents must compare equal.
func Fold(s string) string {
	// A Caser carries state and is not shared.
	return cases.Fold().String(norm.NFC.String(s))
}

// Key trims and folds s.
func Key(s string) string {
	return Fold(strings.TrimSpace(s))
}

// Tokens splits the folded form of s on whitespace.
func Tokens(s string) []string {
	return strings.Fields(Fold(s))
}
