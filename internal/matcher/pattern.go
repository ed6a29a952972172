package matcher

import (
	"strings"

	"github.com/noah-isme/assignment-sync/internal/models"
)

// TabSeparator splits a tab name into its code and title halves.
const TabSeparator = " - "

// BuildPatterns precomputes one pattern per tab name, preserving order.
// Duplicate names yield duplicate patterns.
func BuildPatterns(tabNames []string) []models.TabPattern {
	patterns := make([]models.TabPattern, 0, len(tabNames))
	for _, name := range tabNames {
		patterns = append(patterns, BuildPattern(name))
	}
	return patterns
}

// BuildPattern derives the matching fingerprint of a single tab name.
func BuildPattern(tabName string) models.TabPattern {
	codeSource, titleSource := tabName, tabName
	if left, right, found := strings.Cut(tabName, TabSeparator); found && right != "" {
		codeSource, titleSource = left, right
	}

	return models.TabPattern{
		TabName:       tabName,
		CodeFragment:  CompactAlnum(codeSource),
		TitleFragment: CompactAlnum(titleSource),
		TitleTokens:   uniqueTokens(AlnumTokens(titleSource)),
		CourseNumber:  courseNumber(codeSource),
	}
}

// FilterPatterns keeps the patterns whose tab name is in tabNames, in pattern order.
func FilterPatterns(patterns []models.TabPattern, tabNames []string) []models.TabPattern {
	wanted := make(map[string]struct{}, len(tabNames))
	for _, name := range tabNames {
		wanted[name] = struct{}{}
	}
	filtered := make([]models.TabPattern, 0, len(tabNames))
	for _, pattern := range patterns {
		if _, ok := wanted[pattern.TabName]; ok {
			filtered = append(filtered, pattern)
		}
	}
	return filtered
}

// courseNumber returns the first token of the code source made of exactly four digits.
func courseNumber(codeSource string) string {
	for _, field := range alnumFields(codeSource) {
		if len(field) == 4 && isASCIIDigits(field) {
			return field
		}
	}
	return ""
}

func isASCIIDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		unique = append(unique, token)
	}
	return unique
}
