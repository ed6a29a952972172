package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/noah-isme/assignment-sync/internal/models"
)

// Weights holds the scoring constants. They are heuristics and must not be
// tuned without a labelled corpus of course names.
type Weights struct {
	Code           int
	Title          int
	Number         int
	TokenPair      int
	TokenSingle    int
	Threshold      int
	MinTitleLength int
}

// DefaultWeights are the production scoring constants.
var DefaultWeights = Weights{
	Code:           4,
	Title:          3,
	Number:         1,
	TokenPair:      2,
	TokenSingle:    1,
	Threshold:      3,
	MinTitleLength: 8,
}

// Matcher scores course names against a fixed, precomputed set of tab patterns.
// It holds no mutable state and is safe for concurrent use.
type Matcher struct {
	patterns []models.TabPattern
	weights  Weights
}

// New builds a matcher over patterns with the default weights.
func New(patterns []models.TabPattern) *Matcher {
	return NewWithWeights(patterns, DefaultWeights)
}

// NewWithWeights builds a matcher with explicit weights.
func NewWithWeights(patterns []models.TabPattern, weights Weights) *Matcher {
	copied := make([]models.TabPattern, len(patterns))
	copy(copied, patterns)
	return &Matcher{patterns: copied, weights: weights}
}

// Patterns returns the matcher's patterns in order.
func (m *Matcher) Patterns() []models.TabPattern {
	out := make([]models.TabPattern, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// Match returns the best-scoring tab for courseName, or false when no tab
// reaches the threshold. The first pattern to reach the best score wins ties.
func (m *Matcher) Match(courseName string) (string, bool) {
	compact, tokens := courseSignals(courseName)

	bestScore := 0
	bestTab := ""
	for _, pattern := range m.patterns {
		score := m.score(pattern, compact, tokens).Score
		if score > bestScore {
			bestScore = score
			bestTab = pattern.TabName
		}
	}

	if bestScore < m.weights.Threshold {
		return "", false
	}
	return bestTab, true
}

// Explain scores courseName against every pattern and reports the breakdown.
func (m *Matcher) Explain(courseName string) models.MatchExplanation {
	compact, tokens := courseSignals(courseName)

	explanation := models.MatchExplanation{
		CourseName: courseName,
		Scores:     make([]models.PatternScore, 0, len(m.patterns)),
		Threshold:  m.weights.Threshold,
	}
	for _, pattern := range m.patterns {
		scored := m.score(pattern, compact, tokens)
		explanation.Scores = append(explanation.Scores, scored)
		if scored.Score > explanation.BestScore {
			explanation.BestScore = scored.Score
			explanation.BestTab = pattern.TabName
		}
	}
	explanation.Matched = explanation.BestScore >= m.weights.Threshold
	if !explanation.Matched {
		explanation.BestTab = ""
	}
	return explanation
}

// Match is a convenience wrapper using DefaultWeights.
func Match(courseName string, patterns []models.TabPattern) (string, bool) {
	return New(patterns).Match(courseName)
}

func courseSignals(courseName string) (string, map[string]struct{}) {
	tokens := make(map[string]struct{})
	for _, token := range AlnumTokens(courseName) {
		tokens[token] = struct{}{}
	}
	return CompactAlnum(courseName), tokens
}

func (m *Matcher) score(pattern models.TabPattern, compact string, tokens map[string]struct{}) models.PatternScore {
	result := models.PatternScore{TabName: pattern.TabName}

	if pattern.CodeFragment != "" && strings.Contains(compact, pattern.CodeFragment) {
		result.CodeHit = true
		result.Score += m.weights.Code
	}
	if utf8.RuneCountInString(pattern.TitleFragment) >= m.weights.MinTitleLength && strings.Contains(compact, pattern.TitleFragment) {
		result.TitleHit = true
		result.Score += m.weights.Title
	}
	if pattern.CourseNumber != "" && strings.Contains(compact, pattern.CourseNumber) {
		result.NumberHit = true
		result.Score += m.weights.Number
	}

	for _, token := range pattern.TitleTokens {
		if _, ok := tokens[token]; ok {
			result.TokenOverlap++
		}
	}
	switch {
	case result.TokenOverlap >= 2:
		result.Score += m.weights.TokenPair
	case result.TokenOverlap == 1:
		result.Score += m.weights.TokenSingle
	}

	return result
}
