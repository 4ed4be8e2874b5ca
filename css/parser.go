package css

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser parses CSS stylesheets into an editable tree.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Stylesheet. Parsing never fails: constructs
// which cannot be represented are reported in Stylesheet.Warnings.
// The optional source parameter identifies what's being parsed (for debug logging).
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	sheet := &Stylesheet{
		Items:    make([]Item, 0),
		Warnings: make([]string, 0),
	}

	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	s := &stream{tokens: p.tokenize(data, sheet)}
	sheet.Items = p.parseStylesheet(s, sheet)
	return sheet
}

// tokenize runs the lexer over the whole input. Whitespace and comment tokens
// are kept so that text can be rebuilt from the source.
func (p *Parser) tokenize(data []byte, sheet *Stylesheet) []css.Token {
	l := css.NewLexer(parse.NewInput(bytes.NewReader(data)))
	tokens := make([]css.Token, 0, len(data)/4)
	for {
		tt, text := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				p.log.Debug("CSS lexer error", zap.Error(err))
				sheet.Warnings = append(sheet.Warnings, "parse error: "+err.Error())
			}
			return tokens
		}
		tokens = append(tokens, css.Token{TokenType: tt, Data: text})
	}
}

// stream is a cursor over lexer tokens.
type stream struct {
	tokens []css.Token
	pos    int
}

func (s *stream) eof() bool {
	return s.pos >= len(s.tokens)
}

func (s *stream) peek() css.TokenType {
	if s.eof() {
		return css.ErrorToken
	}
	return s.tokens[s.pos].TokenType
}

// skip moves past whitespace, comments and the given extra token types.
func (s *stream) skip(extra ...css.TokenType) {
	for !s.eof() {
		tt := s.peek()
		if tt != css.WhitespaceToken && tt != css.CommentToken && !slices.Contains(extra, tt) {
			return
		}
		s.pos++
	}
}

// until returns the index of the first token of the given types found at
// nesting level 0, or len(tokens) when there is none. Braces nest when
// inCustom is set, custom property values may hold balanced blocks.
func (s *stream) until(inCustom bool, stop ...css.TokenType) int {
	level := 0
	for i := s.pos; i < len(s.tokens); i++ {
		tt := s.tokens[i].TokenType
		if level == 0 && slices.Contains(stop, tt) {
			return i
		}
		switch tt {
		case css.LeftParenthesisToken, css.LeftBracketToken, css.FunctionToken:
			level++
		case css.RightParenthesisToken, css.RightBracketToken:
			if level > 0 {
				level--
			}
		case css.LeftBraceToken:
			if inCustom {
				level++
			}
		case css.RightBraceToken:
			if inCustom && level > 0 {
				level--
			}
		}
	}
	return len(s.tokens)
}

// parseStylesheet collects top-level rules and at-rules until end of input.
func (p *Parser) parseStylesheet(s *stream, sheet *Stylesheet) []Item {
	items := make([]Item, 0)
	for {
		s.skip(css.CDOToken, css.CDCToken)
		switch s.peek() {
		case css.ErrorToken:
			return items

		case css.AtKeywordToken:
			items = append(items, Item{AtRule: p.parseAtRule(s, sheet)})

		case css.RightBraceToken, css.SemicolonToken:
			sheet.Warnings = append(sheet.Warnings, "unexpected '"+string(s.tokens[s.pos].Data)+"' at top level")
			s.pos++

		default:
			if rule := p.parseRule(s, sheet); rule != nil {
				items = append(items, Item{Rule: rule})
			}
		}
	}
}

// parseRule parses selector and block of a style rule. Prelude without a
// block is reported and dropped.
func (p *Parser) parseRule(s *stream, sheet *Stylesheet) *Rule {
	end := s.until(false, css.LeftBraceToken, css.SemicolonToken, css.RightBraceToken)
	selector := joinTokens(s.tokens[s.pos:end])
	s.pos = end
	if s.peek() != css.LeftBraceToken {
		sheet.Warnings = append(sheet.Warnings, "selector without a block: "+selector)
		if s.peek() == css.SemicolonToken {
			s.pos++
		}
		return nil
	}
	s.pos++

	rule := &Rule{Selector: selector}
	b := p.parseBlock(s, sheet, selector)
	rule.Declarations, rule.Items = b.decls, b.items
	if b.raw != "" {
		sheet.Warnings = append(sheet.Warnings, "invalid declaration in "+selector+": "+b.raw)
	}
	return rule
}

// parseAtRule parses statement at-rules up to ";" and block at-rules with
// their content.
func (p *Parser) parseAtRule(s *stream, sheet *Stylesheet) *AtRule {
	ar := &AtRule{Name: atRuleName(s.tokens[s.pos].Data)}
	s.pos++

	end := s.until(false, css.LeftBraceToken, css.SemicolonToken, css.RightBraceToken)
	ar.Params = joinTokens(s.tokens[s.pos:end])
	s.pos = end

	switch s.peek() {
	case css.SemicolonToken:
		s.pos++
	case css.LeftBraceToken:
		s.pos++
		ar.Block = true
		b := p.parseBlock(s, sheet, "@"+ar.Name)
		ar.Declarations, ar.Items, ar.Raw = b.decls, b.items, b.raw
		p.log.Debug("Parsed @-rule block", zap.String("rule", ar.Name), zap.String("params", ar.Params),
			zap.Int("items", len(ar.Items)), zap.Int("declarations", len(ar.Declarations)))
	}
	return ar
}

type block struct {
	decls []Declaration
	items []Item
	raw   string
}

// parseBlock parses block content after "{" up to and including the matching
// "}". Entries ending in "{" are nested rules, everything else ending in ";"
// or "}" is a declaration. Entries which are not declarations are returned
// verbatim in raw.
func (p *Parser) parseBlock(s *stream, sheet *Stylesheet, owner string) block {
	b := block{decls: make([]Declaration, 0)}
	var raw []string

	for {
		s.skip(css.SemicolonToken)
		switch s.peek() {
		case css.ErrorToken:
			sheet.Warnings = append(sheet.Warnings, "unclosed block: "+owner)
			b.raw = strings.Join(raw, " ")
			return b

		case css.RightBraceToken:
			s.pos++
			b.raw = strings.Join(raw, " ")
			return b

		case css.AtKeywordToken:
			b.items = append(b.items, Item{AtRule: p.parseAtRule(s, sheet)})
			continue
		}

		custom := s.peek() == css.CustomPropertyNameToken
		stop := []css.TokenType{css.SemicolonToken, css.RightBraceToken}
		if !custom {
			stop = append(stop, css.LeftBraceToken)
		}
		end := s.until(custom, stop...)
		if end < len(s.tokens) && s.tokens[end].TokenType == css.LeftBraceToken {
			p.log.Debug("Nested rule", zap.String("owner", owner))
			if rule := p.parseRule(s, sheet); rule != nil {
				b.items = append(b.items, Item{Rule: rule})
			}
			continue
		}

		entry := s.tokens[s.pos:end]
		s.pos = end
		d, ok := declaration(entry, custom)
		switch {
		case !ok:
			if text := strings.TrimSpace(rawText(entry)); text != "" {
				raw = append(raw, text+";")
			}
		case d.Property != "" && d.Value != "":
			b.decls = append(b.decls, d)
		}
	}
}

// declaration splits entry tokens on the first colon at nesting level 0 and
// reports false when there is none. Custom property values are kept verbatim.
func declaration(entry []css.Token, custom bool) (Declaration, bool) {
	s := &stream{tokens: entry}
	colon := s.until(false, css.ColonToken)
	if colon == len(entry) {
		return Declaration{}, false
	}

	d := Declaration{Property: joinTokens(entry[:colon])}
	if custom {
		d.Value = strings.TrimSpace(rawText(entry[colon+1:]))
	} else {
		d.Property = strings.ToLower(d.Property)
		d.Value = joinTokens(entry[colon+1:])
	}
	return d, true
}

// atRuleName normalizes "@MEDIA" to "media".
func atRuleName(data []byte) string {
	return strings.ToLower(strings.TrimPrefix(string(data), "@"))
}

// joinTokens rebuilds source text from tokens collapsing whitespace and
// comment runs into a single space and trimming both ends.
func joinTokens(tokens []css.Token) string {
	var (
		sb    strings.Builder
		space bool
	)
	for _, t := range tokens {
		if t.TokenType == css.WhitespaceToken || t.TokenType == css.CommentToken {
			space = sb.Len() > 0
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.Write(t.Data)
	}
	return sb.String()
}

// rawText rebuilds source text exactly as it was.
func rawText(tokens []css.Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.Write(t.Data)
	}
	return sb.String()
}
