package rem

import (
	"strings"
)

// Predicate matches a name verbatim. *regexp.Regexp satisfies it.
type Predicate interface {
	MatchString(s string) bool
}

// PredicateFunc adapts an ordinary function to Predicate.
type PredicateFunc func(string) bool

func (f PredicateFunc) MatchString(s string) bool {
	return f(s)
}

// SelectorPattern is an entry of the selector black list: either a literal
// pattern or a predicate.
type SelectorPattern struct {
	Literal   string
	Predicate Predicate
}

// Literal makes a pattern entry from text.
func Literal(pattern string) SelectorPattern {
	return SelectorPattern{Literal: pattern}
}

// Match makes an entry from a predicate.
func Match(p Predicate) SelectorPattern {
	return SelectorPattern{Predicate: p}
}

func (p SelectorPattern) String() string {
	if p.Predicate != nil {
		if s, ok := p.Predicate.(interface{ String() string }); ok {
			return "/" + s.String() + "/"
		}
		return "<predicate>"
	}
	return p.Literal
}

type patternKind int

const (
	kindIgnored patternKind = iota
	kindAll
	kindExact
	kindContain
	kindStartWith
	kindEndWith
)

// classify determines shape of a pattern. Shapes not listed (like "a*b",
// "**" or "!*") are ignored.
func classify(pattern string) (kind patternKind, text string, negated bool) {
	if pattern == "*" {
		return kindAll, "", false
	}
	body, negated := strings.CutPrefix(pattern, "!")
	lead := strings.HasPrefix(body, "*")
	trail := len(body) > 1 && strings.HasSuffix(body, "*")

	switch {
	case lead && trail && len(body) > 2:
		return kindContain, body[1 : len(body)-1], negated
	case lead && !trail && len(body) > 1 && !strings.Contains(body[1:], "*"):
		return kindEndWith, body[1:], negated
	case !lead && trail && !strings.Contains(body[:len(body)-1], "*"):
		return kindStartWith, body[:len(body)-1], negated
	case body != "" && !strings.Contains(body, "*"):
		return kindExact, body, negated
	}
	return kindIgnored, "", negated
}

// patternSet keeps pattern texts partitioned by shape.
type patternSet struct {
	exact     []string
	contain   []string
	startWith []string
	endWith   []string
}

func (ps *patternSet) add(kind patternKind, text string) {
	switch kind {
	case kindExact:
		ps.exact = append(ps.exact, text)
	case kindContain:
		ps.contain = append(ps.contain, text)
	case kindStartWith:
		ps.startWith = append(ps.startWith, text)
	case kindEndWith:
		ps.endWith = append(ps.endWith, text)
	}
}

func (ps *patternSet) match(name string, plainContains bool) bool {
	for _, s := range ps.exact {
		if name == s || plainContains && strings.Contains(name, s) {
			return true
		}
	}
	for _, s := range ps.contain {
		if strings.Contains(name, s) {
			return true
		}
	}
	for _, s := range ps.startWith {
		if strings.HasPrefix(name, s) {
			return true
		}
	}
	for _, s := range ps.endWith {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// ListMatcher classifies names against a pattern list. It is built once and
// never changes.
//
// A name matches when it matches any positive pattern (or the list holds the
// "*" sentinel) and does not match any "!" pattern. Comparison is case
// sensitive.
type ListMatcher struct {
	all        bool
	positive   patternSet
	negative   patternSet
	predicates []Predicate
	// plain patterns ("name") match anywhere in the name instead of the
	// whole name, the way selector black lists always worked
	plainContains bool
}

// NewPropMatcher builds matcher for property names. Empty list includes every
// property.
func NewPropMatcher(patterns []string) *ListMatcher {
	m := &ListMatcher{all: len(patterns) == 0}
	for _, p := range patterns {
		m.addLiteral(p)
	}
	return m
}

// NewSelectorMatcher builds matcher for selector black list. Empty list
// matches no selector. Literal entries without wildcards match when they occur
// anywhere in the selector text, predicates are applied to the whole selector
// text.
func NewSelectorMatcher(patterns []SelectorPattern) *ListMatcher {
	m := &ListMatcher{plainContains: true}
	for _, p := range patterns {
		if p.Predicate != nil {
			m.predicates = append(m.predicates, p.Predicate)
			continue
		}
		m.addLiteral(p.Literal)
	}
	return m
}

func (m *ListMatcher) addLiteral(pattern string) {
	kind, text, negated := classify(pattern)
	switch {
	case kind == kindAll:
		m.all = true
	case negated:
		m.negative.add(kind, text)
	default:
		m.positive.add(kind, text)
	}
}

// Match reports whether name is covered by the list.
func (m *ListMatcher) Match(name string) bool {
	return m.included(name) && !m.negative.match(name, false)
}

func (m *ListMatcher) included(name string) bool {
	if m.all || m.positive.match(name, m.plainContains) {
		return true
	}
	for _, p := range m.predicates {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}
