package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchCodeFragment(t *testing.T) {
	patterns := BuildPatterns([]string{"CS 1050 - Intro to Programming", "MATH 1500 - Calculus I"})

	tab, ok := Match("CS1050-001 Intro Programming Fall 2024", patterns)
	require.True(t, ok)
	assert.Equal(t, "CS 1050 - Intro to Programming", tab)

	explanation := New(patterns).Explain("CS1050-001 Intro Programming Fall 2024")
	assert.Equal(t, 7, explanation.BestScore)
	assert.True(t, explanation.Scores[0].CodeHit)
	assert.True(t, explanation.Scores[0].NumberHit)
	assert.Equal(t, 2, explanation.Scores[0].TokenOverlap)
}

func TestMatchCourseNumberAloneIsTooWeak(t *testing.T) {
	patterns := BuildPatterns([]string{"MATH 1050 - Algebra"})

	_, ok := Match("HIST 1050 American History", patterns)
	assert.False(t, ok)

	explanation := New(patterns).Explain("HIST 1050 American History")
	assert.Equal(t, 1, explanation.BestScore)
	assert.False(t, explanation.Matched)
	assert.Empty(t, explanation.BestTab)
}

func TestMatchSingleTokenOverlapIsTooWeak(t *testing.T) {
	patterns := BuildPatterns([]string{"PHYS 2750 - Modern Physics"})

	_, ok := Match("Physics of Music", patterns)
	assert.False(t, ok)
}

func TestMatchNumberAndTokenBelowThreshold(t *testing.T) {
	patterns := BuildPatterns([]string{"PHYS 2750 - Modern Physics"})

	explanation := New(patterns).Explain("Physics 2750 Lab")
	assert.Equal(t, 2, explanation.BestScore)
	assert.False(t, explanation.Matched)
}

func TestMatchTitleFragment(t *testing.T) {
	patterns := BuildPatterns([]string{"CHEM 2100 - Organic Chemistry"})

	tab, ok := Match("Organic Chemistry (Spring)", patterns)
	require.True(t, ok)
	assert.Equal(t, "CHEM 2100 - Organic Chemistry", tab)
}

func TestMatchShortTitleFragmentIgnored(t *testing.T) {
	patterns := BuildPatterns([]string{"ART 1 - Drawing"})

	explanation := New(patterns).Explain("Drawing Studio")
	assert.False(t, explanation.Scores[0].TitleHit)
	assert.Equal(t, 1, explanation.BestScore)
}

func TestMatchTieKeepsFirstPattern(t *testing.T) {
	forward := BuildPatterns([]string{"CS 1050 - Intro", "CS 1050 - Intro Lab"})
	tab, ok := Match("CS 1050 Intro", forward)
	require.True(t, ok)
	assert.Equal(t, "CS 1050 - Intro", tab)

	reversed := BuildPatterns([]string{"CS 1050 - Intro Lab", "CS 1050 - Intro"})
	tab, ok = Match("CS 1050 Intro", reversed)
	require.True(t, ok)
	assert.Equal(t, "CS 1050 - Intro Lab", tab)
}

func TestMatchIsDeterministic(t *testing.T) {
	m := New(BuildPatterns([]string{"CS 1050 - Intro", "CS 1050 - Intro Lab", "MATH 1500 - Calculus I"}))

	first, firstOK := m.Match("CS 1050 Intro")
	for i := 0; i < 50; i++ {
		tab, ok := m.Match("CS 1050 Intro")
		assert.Equal(t, firstOK, ok)
		assert.Equal(t, first, tab)
	}
}

func TestMatchOnlyReturnsKnownTabs(t *testing.T) {
	tabs := []string{"CS 1050 - Intro to Programming", "MATH 1500 - Calculus I", "Biology Lab", "ENGL 1100 - Composition"}
	known := make(map[string]struct{}, len(tabs))
	for _, tab := range tabs {
		known[tab] = struct{}{}
	}
	m := New(BuildPatterns(tabs))

	courses := []string{
		"CS1050-001 Intro Programming Fall 2024",
		"MATH 1500 Calculus I - Section 3",
		"Biology Lab (Online)",
		"ENGL 1100 Composition",
		"Underwater Basket Weaving",
		"",
	}
	for _, course := range courses {
		tab, ok := m.Match(course)
		if !ok {
			assert.Empty(t, tab)
			continue
		}
		_, present := known[tab]
		assert.True(t, present, "course %q matched unknown tab %q", course, tab)
	}
}

func TestMatchWithoutPatterns(t *testing.T) {
	_, ok := Match("CS 1050", nil)
	assert.False(t, ok)
}

func TestMatcherCopiesPatterns(t *testing.T) {
	patterns := BuildPatterns([]string{"CS 1050 - Intro"})
	m := New(patterns)
	patterns[0].TabName = "mutated"

	assert.Equal(t, "CS 1050 - Intro", m.Patterns()[0].TabName)
}
