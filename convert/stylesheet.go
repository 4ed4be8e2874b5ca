package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"rpx2rem/css"
	"rpx2rem/rem"
	"rpx2rem/state"
)

// loadStylesheet decodes stylesheet data to UTF-8 and parses it. When data had
// to be re-encoded any @charset rule is updated to match.
func loadStylesheet(data []byte, src string, env *state.LocalEnv, parser *css.Parser, log *zap.Logger) (*css.Stylesheet, error) {
	text, recoded, err := decodeStylesheet(data, env.CodePage)
	if err != nil {
		return nil, err
	}

	sheet := parser.Parse(text, src)
	for _, w := range sheet.Warnings {
		log.Warn("Stylesheet problem", zap.String("source", src), zap.String("warning", w))
	}
	if recoded {
		sheet.WalkAtRules("charset", func(ar *css.AtRule) {
			ar.Params = `"UTF-8"`
		})
	}
	return sheet, nil
}

// processStylesheet converts single stylesheet read from r. "src" is part of
// the source path (always including file name) relative to what was walked.
// "dst" is destination directory.
func (c *converter) processStylesheet(ctx context.Context, r io.Reader, src, dst string) (rerr error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		outputName string
		stats      rem.Stats
	)

	c.log.Info("Conversion starting", zap.String("from", src))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			c.log.Error("Conversion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("conversion panic: %v", r)
		} else if rerr == nil {
			c.log.Info("Conversion completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName),
				zap.Int("rules", stats.Rules), zap.Int("skipped", stats.Skipped),
				zap.Int("replaced", stats.Replaced), zap.Int("appended", stats.Appended), zap.Int("media", stats.MediaQueries))
		}
	}(time.Now())

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("unable to read stylesheet: %w", err)
	}
	c.env.Rpt.StoreData(filepath.ToSlash(filepath.Join("source", src)), data)

	sheet, err := loadStylesheet(data, src, c.env, c.parser, c.log)
	if err != nil {
		return fmt.Errorf("unable to load stylesheet (%s): %w", src, err)
	}
	stats = c.tr.Apply(sheet)

	outputName = buildOutputPath(src, dst, c.env)

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !c.env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		c.log.Warn("Overwriting existing file", zap.String("file", outputName))
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := writeStylesheet(outputName, sheet); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}

	// Store conversion result for debugging
	c.env.Rpt.Store(filepath.ToSlash(filepath.Join("result", src)), outputName)
	return nil
}

// processStream converts stylesheet from r and prints result to w.
func (c *converter) processStream(ctx context.Context, r io.Reader, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("unable to read stylesheet: %w", err)
	}
	c.env.Rpt.StoreData("source/stdin.css", data)

	sheet, err := loadStylesheet(data, "STDIN", c.env, c.parser, c.log)
	if err != nil {
		return fmt.Errorf("unable to load stylesheet: %w", err)
	}
	stats := c.tr.Apply(sheet)

	var buf bytes.Buffer
	if _, err := sheet.WriteTo(&buf); err != nil {
		return err
	}
	c.env.Rpt.StoreData("result/stdout.css", buf.Bytes())

	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	c.log.Debug("Conversion completed", zap.Int("replaced", stats.Replaced), zap.Int("appended", stats.Appended))
	return nil
}

func writeStylesheet(name string, sheet *css.Stylesheet) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	_, err = sheet.WriteTo(f)
	return err
}
