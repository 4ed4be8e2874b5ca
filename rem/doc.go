// Package rem converts a pixel-like unit (rpx by default) found in stylesheet
// values into a root-relative unit (rem by default).
//
// The transform works on an already parsed css.Stylesheet and mutates it in
// place. It consists of:
//
//   - ListMatcher: decides whether a property or selector name is covered by
//     a pattern list ("name", "*name", "name*", "*name*", "*" and "!" negated
//     forms)
//   - Scan: finds "number + unit" literals in a value, never looking inside
//     quoted strings or url(...) arguments
//   - Converter: turns a magnitude into output text (root value, precision,
//     minimum magnitude)
//   - Transformer: walks rules and declarations, replacing values in place or
//     appending converted copies, and optionally rewrites @media conditions
//
// # Usage
//
//	cfg, err := rem.Resolve(rem.Options{"rootValue": 16, "propList": []string{"*", "!border*"}})
//	if err != nil {
//	    return err
//	}
//	t, err := rem.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	sheet := css.NewParser(logger).Parse(data)
//	stats := t.Apply(sheet)
//
// A Transformer only holds immutable state and may be reused for any number of
// stylesheets. A single pass is synchronous and deterministic, running it
// again on its own output changes nothing.
package rem
