package convert

import (
	cli "github.com/urfave/cli/v3"

	"rpx2rem/rem"
)

// StylesheetFlags returns command line flags overriding transform and input
// options from configuration. Only flags explicitly set take effect.
func StylesheetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{Name: "root-value", Aliases: []string{"rv"}, Value: rem.DefaultRootValue,
			Usage: "root element font `SIZE` in pixels, input unit is half a pixel"},
		&cli.IntFlag{Name: "unit-precision", Aliases: []string{"up"}, Value: rem.DefaultUnitPrecision,
			Usage: "`DIGITS` after decimal point in converted values"},
		&cli.FloatFlag{Name: "min-pixel-value", Aliases: []string{"mpv"},
			Usage: "leave values with magnitude below `SIZE` alone"},
		&cli.StringSliceFlag{Name: "prop-list", Aliases: []string{"pl"},
			Usage: "`PATTERN` of properties to convert (name, *name, name*, *name*, *, negated with !)"},
		&cli.StringSliceFlag{Name: "selector-black-list", Aliases: []string{"sbl"},
			Usage: "`PATTERN` of selectors to ignore, /regexp/ is a regular expression"},
		&cli.BoolFlag{Name: "replace", Value: true,
			Usage: "replace values in place, otherwise add converted declarations after originals"},
		&cli.BoolFlag{Name: "media-query", Aliases: []string{"mq"}, Usage: "convert @media conditions"},
		&cli.StringFlag{Name: "input-unit", Value: rem.DefaultInputUnit, Usage: "`UNIT` to convert from"},
		&cli.StringFlag{Name: "output-unit", Value: rem.DefaultOutputUnit, Usage: "`UNIT` to convert to"},
		&cli.StringFlag{Name: "charset",
			Usage: "force `ENCODING` for stylesheets without byte order mark and for non UTF-8 file names in archives (see IANA.org for character set names)"},
	}
}

// StdinArgs prepares command line for cli parsing. Parser stops at the first
// bare "-" and discards every argument after it, so flag parsing is terminated
// with "--" right before it and the rest of the arguments reach the action.
// Command lines already holding "--" are returned unchanged.
func StdinArgs(args []string) []string {
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--":
			return args
		case stdio:
			out := make([]string, 0, len(args)+1)
			out = append(out, args[:i]...)
			out = append(out, "--")
			return append(out, args[i:]...)
		}
	}
	return args
}
