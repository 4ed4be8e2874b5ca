package rem

import (
	"iter"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Occurrence is a "number + unit" literal found in a value.
type Occurrence struct {
	Start     int     // offset of the first byte of the number (sign included)
	End       int     // offset right after the unit
	Number    string  // numeric text, e.g. "-.5"
	Magnitude float64 // parsed signed value of Number
}

type scanState int

const (
	stateNormal scanState = iota
	stateSingleQuote
	stateDoubleQuote
	stateURLArgs
)

// Scan returns all literals made of a number immediately followed by unit in
// value, left to right. Unit comparison is case sensitive and the unit must not
// be followed by another letter. Quoted strings and url(...) arguments are
// never looked into. Sequence may be iterated any number of times.
func Scan(value, unit string) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		if unit == "" {
			return
		}
		s := &scanner{value: value, unit: unit}
		for {
			occ, ok := s.next()
			if !ok || !yield(occ) {
				return
			}
		}
	}
}

type scanner struct {
	value string
	unit  string
	pos   int
	state scanState
	quote byte // quote opened inside url(...) arguments
}

func (s *scanner) next() (Occurrence, bool) {
	for s.pos < len(s.value) {
		c := s.value[s.pos]
		switch s.state {
		case stateSingleQuote:
			if c == '\'' {
				s.state = stateNormal
			}
			s.pos++
		case stateDoubleQuote:
			if c == '"' {
				s.state = stateNormal
			}
			s.pos++
		case stateURLArgs:
			switch {
			case s.quote != 0:
				if c == s.quote {
					s.quote = 0
				}
			case c == '"' || c == '\'':
				s.quote = c
			case c == ')':
				s.state = stateNormal
			}
			s.pos++
		default:
			if occ, ok := s.normal(c); ok {
				return occ, true
			}
		}
	}
	return Occurrence{}, false
}

func (s *scanner) normal(c byte) (Occurrence, bool) {
	switch {
	case c == '\'':
		s.state = stateSingleQuote
		s.pos++
	case c == '"':
		s.state = stateDoubleQuote
		s.pos++
	case startsNumber(s.value[s.pos:]):
		return s.number()
	case isNameStart(c) || c == '-' || c == '#':
		start := s.pos
		s.pos++
		for s.pos < len(s.value) && isNameChar(s.value[s.pos]) {
			s.pos++
		}
		if s.pos < len(s.value) && s.value[s.pos] == '(' {
			if strings.EqualFold(s.value[start:s.pos], "url") {
				s.state = stateURLArgs
			}
			s.pos++
		}
	default:
		s.pos++
	}
	return Occurrence{}, false
}

// number consumes numeric literal at current position and reports it when
// unit follows.
func (s *scanner) number() (Occurrence, bool) {
	start, i := s.pos, s.pos
	if s.value[i] == '+' || s.value[i] == '-' {
		i++
	}
	for i < len(s.value) && isDigit(s.value[i]) {
		i++
	}
	if i+1 < len(s.value) && s.value[i] == '.' && isDigit(s.value[i+1]) {
		i++
		for i < len(s.value) && isDigit(s.value[i]) {
			i++
		}
	}
	s.pos = i

	if !strings.HasPrefix(s.value[i:], s.unit) {
		return Occurrence{}, false
	}
	end := i + len(s.unit)
	if r, _ := utf8.DecodeRuneInString(s.value[end:]); r != utf8.RuneError && unicode.IsLetter(r) {
		// longer identifier, like "rpxs", will be consumed as a name
		return Occurrence{}, false
	}
	mag, err := strconv.ParseFloat(s.value[start:i], 64)
	if err != nil {
		return Occurrence{}, false
	}
	s.pos = end
	return Occurrence{Start: start, End: end, Number: s.value[start:i], Magnitude: mag}, true
}

// startsNumber checks for [+-]?digit or [+-]?.digit
func startsNumber(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if s != "" && s[0] == '.' {
		s = s[1:]
	}
	return s != "" && isDigit(s[0])
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isNameStart(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_' || c >= utf8.RuneSelf
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDigit(c) || c == '-'
}
