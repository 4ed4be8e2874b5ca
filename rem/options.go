package rem

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

// Canonical option names.
const (
	OptRootValue         = "rootValue"
	OptUnitPrecision     = "unitPrecision"
	OptPropList          = "propList"
	OptSelectorBlackList = "selectorBlackList"
	OptReplace           = "replace"
	OptMediaQuery        = "mediaQuery"
	OptMinPixelValue     = "minPixelValue"
	OptInputUnit         = "inputUnit"
	OptOutputUnit        = "outputUnit"
)

// Defaults.
const (
	DefaultRootValue     = 16
	DefaultUnitPrecision = 5
	DefaultInputUnit     = "rpx"
	DefaultOutputUnit    = "rem"
)

// legacyAliases maps old option spellings to canonical names. Canonical name
// always wins, among legacy spellings of the same option the earlier one wins.
var legacyAliases = []struct {
	legacy    string
	canonical string
}{
	{"root_value", OptRootValue},
	{"unit_precision", OptUnitPrecision},
	{"propWhiteList", OptPropList},
	{"prop_white_list", OptPropList},
	{"selector_black_list", OptSelectorBlackList},
	{"media_query", OptMediaQuery},
}

// Config is a resolved transform configuration. It must not be changed once
// a Transformer has been built from it.
type Config struct {
	RootValue         float64
	UnitPrecision     int
	MinPixelValue     float64
	Replace           bool
	MediaQuery        bool
	PropList          []string
	SelectorBlackList []SelectorPattern
	InputUnit         string
	OutputUnit        string
}

// Defaults returns configuration used when no options are given.
func Defaults() *Config {
	return &Config{
		RootValue:     DefaultRootValue,
		UnitPrecision: DefaultUnitPrecision,
		Replace:       true,
		PropList:      []string{"*"},
		InputUnit:     DefaultInputUnit,
		OutputUnit:    DefaultOutputUnit,
	}
}

// Validate checks ranges of all fields and reports every problem found.
func (c *Config) Validate() (err error) {
	if !(c.RootValue > 0) || math.IsInf(c.RootValue, 0) {
		err = multierr.Append(err, fmt.Errorf("option %q: must be a positive number, got %v", OptRootValue, c.RootValue))
	}
	if c.UnitPrecision < 0 {
		err = multierr.Append(err, fmt.Errorf("option %q: must not be negative, got %d", OptUnitPrecision, c.UnitPrecision))
	}
	if !(c.MinPixelValue >= 0) {
		err = multierr.Append(err, fmt.Errorf("option %q: must not be negative, got %v", OptMinPixelValue, c.MinPixelValue))
	}
	if !isUnit(c.InputUnit) {
		err = multierr.Append(err, fmt.Errorf("option %q: must be a non-empty sequence of letters, got %q", OptInputUnit, c.InputUnit))
	}
	if !isUnit(c.OutputUnit) {
		err = multierr.Append(err, fmt.Errorf("option %q: must be a non-empty sequence of letters, got %q", OptOutputUnit, c.OutputUnit))
	}
	for i, p := range c.SelectorBlackList {
		if p.Predicate == nil && p.Literal == "" {
			err = multierr.Append(err, fmt.Errorf("option %q: entry %d is empty", OptSelectorBlackList, i))
		}
	}
	return err
}

func isUnit(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}

// Options are user supplied settings keyed by option name, as they come from
// a configuration file or a host program. Both canonical and legacy names are
// accepted.
type Options map[string]any

// Canonical returns options with legacy names mapped to canonical ones.
func (o Options) Canonical() Options {
	out := make(Options, len(o))
	for k, v := range o {
		if !isLegacy(k) {
			out[k] = v
		}
	}
	for _, a := range legacyAliases {
		if v, ok := o[a.legacy]; ok {
			if _, taken := out[a.canonical]; !taken {
				out[a.canonical] = v
			}
		}
	}
	return out
}

func isLegacy(name string) bool {
	return slices.ContainsFunc(legacyAliases, func(a struct{ legacy, canonical string }) bool {
		return a.legacy == name
	})
}

// Resolve builds validated configuration from options. Absent options get
// default values. Errors name every offending option.
func Resolve(opts Options) (*Config, error) {
	cfg := Defaults()

	var err error
	for name, v := range opts.Canonical() {
		if e := set(cfg, name, v); e != nil {
			err = multierr.Append(err, e)
		}
	}
	if err != nil {
		return nil, sortErrors(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sortErrors orders combined errors so the message does not depend on map
// iteration order.
func sortErrors(err error) error {
	errs := multierr.Errors(err)
	slices.SortFunc(errs, func(a, b error) int {
		return strings.Compare(a.Error(), b.Error())
	})
	return multierr.Combine(errs...)
}

func set(cfg *Config, name string, v any) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("option %q: %w", name, err)
		}
	}()

	switch name {
	case OptRootValue:
		cfg.RootValue, err = toFloat(v)
	case OptUnitPrecision:
		cfg.UnitPrecision, err = toInt(v)
	case OptMinPixelValue:
		cfg.MinPixelValue, err = toFloat(v)
	case OptReplace:
		cfg.Replace, err = toBool(v)
	case OptMediaQuery:
		cfg.MediaQuery, err = toBool(v)
	case OptPropList:
		cfg.PropList, err = toStrings(v)
	case OptSelectorBlackList:
		cfg.SelectorBlackList, err = toSelectorPatterns(v)
	case OptInputUnit:
		cfg.InputUnit, err = toString(v)
	case OptOutputUnit:
		cfg.OutputUnit, err = toString(v)
	default:
		err = errors.New("unknown option")
	}
	return err
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		// JSON numbers
		if n == math.Trunc(n) && math.Abs(n) < 1<<31 {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("expected integer, got %T(%v)", v, v)
}

func toBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("expected boolean, got %T", v)
}

func toString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("expected string, got %T", v)
}

func toStrings(v any) ([]string, error) {
	switch l := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return slices.Clone(l), nil
	case []any:
		out := make([]string, 0, len(l))
		for i, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("entry %d: expected string, got %T", i, e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected list of strings, got %T", v)
}

func toSelectorPatterns(v any) ([]SelectorPattern, error) {
	switch l := v.(type) {
	case nil:
		return []SelectorPattern{}, nil
	case []SelectorPattern:
		return slices.Clone(l), nil
	case []string:
		out := make([]SelectorPattern, 0, len(l))
		for i, s := range l {
			p, err := selectorPattern(s)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			out = append(out, p)
		}
		return out, nil
	case []*regexp.Regexp:
		out := make([]SelectorPattern, 0, len(l))
		for _, re := range l {
			out = append(out, Match(re))
		}
		return out, nil
	case []any:
		out := make([]SelectorPattern, 0, len(l))
		for i, e := range l {
			var (
				p   SelectorPattern
				err error
			)
			switch x := e.(type) {
			case string:
				p, err = selectorPattern(x)
			case SelectorPattern:
				p = x
			case Predicate:
				p = Match(x)
			case func(string) bool:
				p = Match(PredicateFunc(x))
			default:
				err = fmt.Errorf("expected string or predicate, got %T", e)
			}
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			out = append(out, p)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected list of selector patterns, got %T", v)
}

// selectorPattern makes a pattern from text. Text enclosed in slashes, like
// "/^body$/", is a regular expression, so configuration files can express
// what host programs pass as *regexp.Regexp.
func selectorPattern(s string) (SelectorPattern, error) {
	if len(s) > 2 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") {
		re, err := regexp.Compile(s[1 : len(s)-1])
		if err != nil {
			return SelectorPattern{}, fmt.Errorf("bad regular expression %q: %w", s, err)
		}
		return Match(re), nil
	}
	return Literal(s), nil
}
