package css

import (
	"fmt"
	"io"
	"strings"

	"rpx2rem/utils/debug"
)

// Declaration is a single "property: value" pair. Value keeps the source text
// (including any "!important" suffix) with whitespace runs collapsed.
type Declaration struct {
	Property string
	Value    string
}

// Rule represents a style rule: selector text plus ordered declarations.
// Items holds rules and at-rules nested in the rule block.
type Rule struct {
	Selector     string        // Raw selector text, grouped selectors are kept together
	Declarations []Declaration // Source order, duplicates allowed
	Items        []Item
}

// AtRule represents an @-rule. Statement at-rules (@import, @charset) have
// Block == false. Block at-rules hold either nested items (@media, @supports)
// or declarations (@font-face, @page).
type AtRule struct {
	Name         string // Lower case, without leading "@"
	Params       string // Prelude text, e.g. "(min-width: 500rpx)"
	Block        bool
	Items        []Item
	Declarations []Declaration
	Raw          string // Verbatim block content parser has no grammar for
}

// Item is a single stylesheet node. Exactly one of Rule or AtRule is non-nil.
type Item struct {
	Rule   *Rule
	AtRule *AtRule
}

// Stylesheet represents a parsed CSS stylesheet.
type Stylesheet struct {
	Items    []Item   // All top-level items in source order
	Warnings []string // Constructs parser could not keep
}

// InsertDeclaration returns list with d inserted right after index i.
func InsertDeclaration(list []Declaration, i int, d Declaration) []Declaration {
	if i < 0 || i >= len(list) {
		return append(list, d)
	}
	list = append(list, Declaration{})
	copy(list[i+2:], list[i+1:])
	list[i+1] = d
	return list
}

// HasDeclaration reports whether list contains property with exactly this value.
func HasDeclaration(list []Declaration, property, value string) bool {
	for _, d := range list {
		if d.Property == property && d.Value == value {
			return true
		}
	}
	return false
}

// WalkRules calls fn for every style rule in source order, descending into
// block at-rules and nested rules. Parent is visited before its children.
func (s *Stylesheet) WalkRules(fn func(*Rule)) {
	walkItems(s.Items, func(item *Item) {
		if item.Rule != nil {
			fn(item.Rule)
		}
	})
}

// WalkAtRules calls fn for every at-rule with the given name (case
// insensitive) in source order, including nested ones. Empty name matches all
// at-rules.
func (s *Stylesheet) WalkAtRules(name string, fn func(*AtRule)) {
	name = strings.TrimPrefix(strings.ToLower(name), "@")
	walkItems(s.Items, func(item *Item) {
		if item.AtRule != nil && (name == "" || item.AtRule.Name == name) {
			fn(item.AtRule)
		}
	})
}

// WalkDeclarationBlocks calls fn for every block at-rule holding declarations
// directly, like @font-face or @page.
func (s *Stylesheet) WalkDeclarationBlocks(fn func(*AtRule)) {
	s.WalkAtRules("", func(ar *AtRule) {
		if ar.Block && len(ar.Declarations) > 0 {
			fn(ar)
		}
	})
}

func walkItems(items []Item, fn func(*Item)) {
	for i := range items {
		item := &items[i]
		fn(item)
		switch {
		case item.Rule != nil:
			walkItems(item.Rule.Items, fn)
		case item.AtRule != nil:
			walkItems(item.AtRule.Items, fn)
		}
	}
}

// RulesBySelector returns all rules (nested ones included) with the given
// selector text.
func (s *Stylesheet) RulesBySelector(selector string) []*Rule {
	var matches []*Rule
	s.WalkRules(func(r *Rule) {
		if r.Selector == selector {
			matches = append(matches, r)
		}
	})
	return matches
}

// printer writes CSS text keeping track of the byte count and the first error.
type printer struct {
	w   io.Writer
	n   int64
	err error
}

func (p *printer) printf(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}
	var n int
	if depth > 0 {
		n, p.err = io.WriteString(p.w, strings.Repeat("  ", depth))
		p.n += int64(n)
		if p.err != nil {
			return
		}
	}
	n, p.err = fmt.Fprintf(p.w, format, args...)
	p.n += int64(n)
}

// WriteTo writes the stylesheet to w in source order, implementing io.WriterTo.
// Declaration order is preserved.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	p := &printer{w: w}
	p.items(0, s.Items)
	return p.n, p.err
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

func (p *printer) items(depth int, items []Item) {
	for i, item := range items {
		switch {
		case item.Rule != nil:
			p.rule(depth, item.Rule)
		case item.AtRule != nil:
			p.atRule(depth, item.AtRule)
		}
		// Blank line between items (except after last)
		if i < len(items)-1 {
			p.printf(0, "\n")
		}
	}
}

func (p *printer) rule(depth int, rule *Rule) {
	p.printf(depth, "%s {\n", rule.Selector)
	p.declarations(depth+1, rule.Declarations)
	if len(rule.Declarations) > 0 && len(rule.Items) > 0 {
		p.printf(0, "\n")
	}
	p.items(depth+1, rule.Items)
	p.printf(depth, "}\n")
}

func (p *printer) declarations(depth int, list []Declaration) {
	for _, d := range list {
		p.printf(depth, "%s: %s;\n", d.Property, d.Value)
	}
}

func (p *printer) atRule(depth int, ar *AtRule) {
	prelude := "@" + ar.Name
	if ar.Params != "" {
		prelude += " " + ar.Params
	}
	if !ar.Block {
		p.printf(depth, "%s;\n", prelude)
		return
	}
	p.printf(depth, "%s {\n", prelude)
	p.declarations(depth+1, ar.Declarations)
	if len(ar.Declarations) > 0 && len(ar.Items) > 0 {
		p.printf(0, "\n")
	}
	p.items(depth+1, ar.Items)
	if raw := strings.TrimSpace(ar.Raw); raw != "" {
		p.printf(depth+1, "%s\n", raw)
	}
	p.printf(depth, "}\n")
}

// DebugTree returns indented textual representation of the stylesheet
// structure for troubleshooting.
func (s *Stylesheet) DebugTree() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "stylesheet (%d items)", len(s.Items))
	debugItems(tw, 1, s.Items)
	for _, w := range s.Warnings {
		tw.Field(1, "warning", w)
	}
	return tw.String()
}

func debugItems(tw *debug.TreeWriter, depth int, items []Item) {
	for _, item := range items {
		switch {
		case item.Rule != nil:
			tw.Field(depth, "rule", item.Rule.Selector)
			debugDeclarations(tw, depth+1, item.Rule.Declarations)
			debugItems(tw, depth+1, item.Rule.Items)
		case item.AtRule != nil:
			tw.Field(depth, "@"+item.AtRule.Name, item.AtRule.Params)
			debugDeclarations(tw, depth+1, item.AtRule.Declarations)
			debugItems(tw, depth+1, item.AtRule.Items)
			if item.AtRule.Raw != "" {
				tw.Field(depth+1, "raw", item.AtRule.Raw)
			}
		}
	}
}

func debugDeclarations(tw *debug.TreeWriter, depth int, list []Declaration) {
	for _, d := range list {
		tw.Field(depth, d.Property, d.Value)
	}
}
