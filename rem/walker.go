package rem

import (
	"fmt"

	"go.uber.org/zap"

	"rpx2rem/css"
)

// Stats describes what a single pass did.
type Stats struct {
	Rules        int // style rules visited
	Skipped      int // rules excluded by selector black list
	Replaced     int // declarations rewritten in place
	Appended     int // declarations inserted after originals
	MediaQueries int // @media conditions rewritten
}

// Changed reports whether pass modified stylesheet.
func (s Stats) Changed() bool {
	return s.Replaced+s.Appended+s.MediaQueries > 0
}

// Transformer performs conversion passes over stylesheets.
type Transformer struct {
	cfg       *Config
	props     *ListMatcher
	selectors *ListMatcher
	conv      Converter
	log       *zap.Logger
}

// New creates transformer for validated configuration. Nil configuration means
// defaults.
func New(cfg *Config, log *zap.Logger) (*Transformer, error) {
	if cfg == nil {
		cfg = Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bad transform configuration: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Transformer{
		cfg:       cfg,
		props:     NewPropMatcher(cfg.PropList),
		selectors: NewSelectorMatcher(cfg.SelectorBlackList),
		conv: Converter{
			RootValue:     cfg.RootValue,
			UnitPrecision: cfg.UnitPrecision,
			MinPixelValue: cfg.MinPixelValue,
			Unit:          cfg.OutputUnit,
		},
		log: log.Named("rem"),
	}, nil
}

// Config returns configuration transformer was built with.
func (t *Transformer) Config() *Config {
	return t.cfg
}

// Apply converts stylesheet in place. It never fails: values it cannot
// interpret are left as they are.
func (t *Transformer) Apply(sheet *css.Stylesheet) Stats {
	var st Stats
	if sheet == nil {
		return st
	}

	sheet.WalkRules(func(r *css.Rule) {
		st.Rules++
		if t.selectors.Match(r.Selector) {
			st.Skipped++
			t.log.Debug("Rule skipped", zap.String("selector", r.Selector))
			return
		}
		t.declarations(&r.Declarations, r.Selector, &st)
	})

	sheet.WalkDeclarationBlocks(func(ar *css.AtRule) {
		t.declarations(&ar.Declarations, "@"+ar.Name, &st)
	})

	if t.cfg.MediaQuery {
		sheet.WalkAtRules("media", func(ar *css.AtRule) {
			out, converted, zeros := t.conv.ConvertValue(ar.Params, t.cfg.InputUnit)
			if converted+zeros == 0 || out == ar.Params {
				return
			}
			t.log.Debug("Media query converted", zap.String("from", ar.Params), zap.String("to", out))
			ar.Params = out
			st.MediaQueries++
		})
	}

	t.log.Debug("Stylesheet converted",
		zap.Int("rules", st.Rules), zap.Int("skipped", st.Skipped),
		zap.Int("replaced", st.Replaced), zap.Int("appended", st.Appended),
		zap.Int("media", st.MediaQueries))
	return st
}

// declarations processes single declaration block. Appended declarations are
// never processed again in the same pass.
func (t *Transformer) declarations(list *[]css.Declaration, owner string, st *Stats) {
	for i := 0; i < len(*list); i++ {
		d := (*list)[i]
		if !t.props.Match(d.Property) {
			continue
		}
		value, converted, zeros := t.conv.ConvertValue(d.Value, t.cfg.InputUnit)
		if converted+zeros == 0 || value == d.Value {
			continue
		}
		if css.HasDeclaration(*list, d.Property, value) {
			continue
		}
		if t.cfg.Replace {
			(*list)[i].Value = value
			st.Replaced++
		} else {
			if converted == 0 {
				// only zeros, and 0rpx is the same as 0
				continue
			}
			*list = css.InsertDeclaration(*list, i, css.Declaration{Property: d.Property, Value: value})
			i++
			st.Appended++
		}
		t.log.Debug("Declaration converted",
			zap.String("owner", owner), zap.String("property", d.Property),
			zap.String("from", d.Value), zap.String("to", value))
	}
}
