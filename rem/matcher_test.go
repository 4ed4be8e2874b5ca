package rem

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		pattern string
		kind    patternKind
		text    string
		negated bool
	}{
		{"font-size", kindExact, "font-size", false},
		{"!padding", kindExact, "padding", true},
		{"*margin*", kindContain, "margin", false},
		{"!*font*", kindContain, "font", true},
		{"border*", kindStartWith, "border", false},
		{"!border*", kindStartWith, "border", true},
		{"*y", kindEndWith, "y", false},
		{"!*y", kindEndWith, "y", true},
		{"*", kindAll, "", false},
		{"**", kindIgnored, "", false},
		{"!*", kindIgnored, "", true},
		{"a*b", kindIgnored, "", false},
		{"", kindIgnored, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			kind, text, negated := classify(tt.pattern)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.text, text)
			assert.Equal(t, tt.negated, negated)
		})
	}
}

func TestPropMatcherPartitions(t *testing.T) {
	m := NewPropMatcher([]string{"font-size", "*margin*", "!padding", "!border*", "*", "!*y", "!*font*"})

	assert.True(t, m.all)
	assert.Equal(t, []string{"font-size"}, m.positive.exact)
	assert.Equal(t, []string{"margin"}, m.positive.contain)
	assert.Empty(t, m.positive.startWith)
	assert.Empty(t, m.positive.endWith)
	assert.Equal(t, []string{"padding"}, m.negative.exact)
	assert.Equal(t, []string{"font"}, m.negative.contain)
	assert.Equal(t, []string{"border"}, m.negative.startWith)
	assert.Equal(t, []string{"y"}, m.negative.endWith)
}

func TestPropMatcher(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		include  []string
		exclude  []string
	}{
		{
			name:    "empty list includes all",
			include: []string{"font-size", "margin", "x"},
		},
		{
			name:     "exact",
			patterns: []string{"margin"},
			include:  []string{"margin"},
			exclude:  []string{"margin-left", "Margin", "padding"},
		},
		{
			name:     "mixed shapes",
			patterns: []string{"*font*", "margin*", "!margin-left", "*-right", "pad"},
			include:  []string{"font-size", "margin", "margin-top", "padding-right"},
			exclude:  []string{"margin-left", "padding", "pad-x"},
		},
		{
			name:     "wildcard with negations",
			patterns: []string{"*", "!margin-left", "!*padding*", "!font*"},
			include:  []string{"margin", "border", "line-height"},
			exclude:  []string{"margin-left", "padding", "padding-right", "font-size"},
		},
		{
			name:     "negation wins over positive",
			patterns: []string{"margin", "!margin"},
			exclude:  []string{"margin"},
		},
		{
			name:     "only negations include nothing",
			patterns: []string{"!margin"},
			exclude:  []string{"margin", "padding"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewPropMatcher(tt.patterns)
			for _, name := range tt.include {
				assert.True(t, m.Match(name), "expected %q to be included", name)
			}
			for _, name := range tt.exclude {
				assert.False(t, m.Match(name), "expected %q to be excluded", name)
			}
		})
	}
}

func TestSelectorMatcher(t *testing.T) {
	tests := []struct {
		name     string
		patterns []SelectorPattern
		match    []string
		noMatch  []string
	}{
		{
			name:    "empty list matches nothing",
			noMatch: []string{"body", ".rule"},
		},
		{
			name:     "literal is substring",
			patterns: []SelectorPattern{Literal(".rule2")},
			match:    []string{".rule2", "div .rule2 > p"},
			noMatch:  []string{".rule", ".RULE2"},
		},
		{
			name:     "special characters are literal",
			patterns: []SelectorPattern{Literal("body$")},
			match:    []string{".class-body$"},
			noMatch:  []string{"body", ".simple-class"},
		},
		{
			name:     "regular expression",
			patterns: []SelectorPattern{Match(regexp.MustCompile(`^body$`))},
			match:    []string{"body"},
			noMatch:  []string{".class-body", "body p"},
		},
		{
			name:     "function predicate",
			patterns: []SelectorPattern{Match(PredicateFunc(func(s string) bool { return len(s) > 10 }))},
			match:    []string{".a-very-long-selector"},
			noMatch:  []string{".short"},
		},
		{
			name:     "wildcard shapes",
			patterns: []SelectorPattern{Literal(".ignore-*"), Literal("*-legacy")},
			match:    []string{".ignore-me", "div.box-legacy"},
			noMatch:  []string{"div .ignore-me", ".legacy-box"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSelectorMatcher(tt.patterns)
			for _, sel := range tt.match {
				assert.True(t, m.Match(sel), "expected %q to match", sel)
			}
			for _, sel := range tt.noMatch {
				assert.False(t, m.Match(sel), "expected %q not to match", sel)
			}
		})
	}
}

func TestSelectorPatternString(t *testing.T) {
	assert.Equal(t, ".rule", Literal(".rule").String())
	assert.Equal(t, "/^body$/", Match(regexp.MustCompile(`^body$`)).String())
	assert.Equal(t, "<predicate>", Match(PredicateFunc(func(string) bool { return true })).String())
}
