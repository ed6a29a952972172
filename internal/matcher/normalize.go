// Package matcher maps freeform Canvas course names onto the fixed list of
// sheet tab names.
package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinTokenLength is the shortest token kept by AlnumTokens.
const MinTokenLength = 3

// fold case-folds s. Casers are stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// foldASCIIish case-folds s and drops combining marks so accented letters
// compare equal to their base letter.
func foldASCIIish(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(stripMarks, fold(s))
	if err != nil {
		return fold(s)
	}
	return result
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// NormalizeSpacing collapses whitespace runs to one space, trims and case-folds.
func NormalizeSpacing(s string) string {
	return fold(strings.Join(strings.Fields(s), " "))
}

// CompactName case-folds s and removes all whitespace.
func CompactName(s string) string {
	return fold(strings.Join(strings.Fields(s), ""))
}

// CompactAlnum case-folds s and strips every rune that is not a letter or digit.
func CompactAlnum(s string) string {
	folded := foldASCIIish(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if isAlnum(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// alnumFields splits the folded form of s on every run of non-alphanumerics.
func alnumFields(s string) []string {
	return strings.FieldsFunc(foldASCIIish(s), func(r rune) bool { return !isAlnum(r) })
}

// AlnumTokens returns the alphanumeric tokens of s longer than two runes.
func AlnumTokens(s string) []string {
	fields := alnumFields(s)
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len([]rune(field)) >= MinTokenLength {
			tokens = append(tokens, field)
		}
	}
	return tokens
}
