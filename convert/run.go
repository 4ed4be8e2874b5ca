package convert

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"rpx2rem/archive"
	"rpx2rem/css"
	"rpx2rem/rem"
	"rpx2rem/state"
)

// stdio names standard input as source and standard output as destination.
const stdio = "-"

// converter keeps what is shared by all stylesheets processed in a single run.
type converter struct {
	env    *state.LocalEnv
	tr     *rem.Transformer
	parser *css.Parser
	filter *fileFilter
	log    *zap.Logger
}

func newConverter(env *state.LocalEnv, log *zap.Logger) (*converter, error) {
	tr, err := rem.New(env.Transform, log)
	if err != nil {
		return nil, err
	}
	var include, exclude []string
	if env.Cfg != nil {
		include, exclude = env.Cfg.Input.Include, env.Cfg.Input.Exclude
	}
	filter, err := newFileFilter(include, exclude)
	if err != nil {
		return nil, err
	}
	return &converter{
		env:    env,
		tr:     tr,
		parser: css.NewParser(log),
		filter: filter,
		log:    log,
	}, nil
}

// transformOverrides collects transform options explicitly set on command line.
func transformOverrides(cmd *cli.Command) rem.Options {
	opts := rem.Options{}
	if cmd.IsSet("root-value") {
		opts[rem.OptRootValue] = cmd.Float("root-value")
	}
	if cmd.IsSet("unit-precision") {
		opts[rem.OptUnitPrecision] = cmd.Int("unit-precision")
	}
	if cmd.IsSet("min-pixel-value") {
		opts[rem.OptMinPixelValue] = cmd.Float("min-pixel-value")
	}
	if cmd.IsSet("prop-list") {
		opts[rem.OptPropList] = cmd.StringSlice("prop-list")
	}
	if cmd.IsSet("selector-black-list") {
		opts[rem.OptSelectorBlackList] = cmd.StringSlice("selector-black-list")
	}
	if cmd.IsSet("replace") {
		opts[rem.OptReplace] = cmd.Bool("replace")
	}
	if cmd.IsSet("media-query") {
		opts[rem.OptMediaQuery] = cmd.Bool("media-query")
	}
	if cmd.IsSet("input-unit") {
		opts[rem.OptInputUnit] = cmd.String("input-unit")
	}
	if cmd.IsSet("output-unit") {
		opts[rem.OptOutputUnit] = cmd.String("output-unit")
	}
	return opts
}

// prepareEnv fills conversion related parts of environment from command line
// and configuration, command line wins.
func prepareEnv(cmd *cli.Command, env *state.LocalEnv, log *zap.Logger) (err error) {
	if env.Transform, err = env.Cfg.TransformConfig(transformOverrides(cmd)); err != nil {
		return fmt.Errorf("bad conversion options: %w", err)
	}

	env.NoDirs, env.Overwrite = env.Cfg.Output.NoDirs, env.Cfg.Output.Overwrite
	if cmd.IsSet("nodirs") {
		env.NoDirs = cmd.Bool("nodirs")
	}
	if cmd.IsSet("overwrite") {
		env.Overwrite = cmd.Bool("overwrite")
	}

	// Stylesheets without byte order mark and @charset rule are expected to
	// be UTF-8, old ones may need code page to be forced. The same code page
	// is used for non UTF-8 file names in archives.
	cp := env.Cfg.Input.Charset
	if cmd.IsSet("charset") {
		cp = cmd.String("charset")
	}
	env.CodePage = nil
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully decoding stylesheets", zap.String("charset", n))
		}
	}
	return nil
}

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src != stdio {
		if src, err = filepath.Abs(src); err != nil {
			return err
		}
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 && src != stdio {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if len(dst) > 0 && dst != stdio {
		if dst, err = filepath.Abs(dst); err != nil {
			return err
		}
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	if err := prepareEnv(cmd, env, log); err != nil {
		return err
	}

	c, err := newConverter(env, log)
	if err != nil {
		return err
	}

	if src == stdio {
		if len(dst) > 0 && dst != stdio {
			return errors.New("standard input can only be converted to standard output")
		}
		return c.processStream(ctx, os.Stdin, os.Stdout)
	}
	if dst == stdio {
		return errors.New("only standard input can be converted to standard output")
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return c.process(ctx, src, dst)
}

// process determines the input type (directory, archive with optional path
// inside, or single file) and processes it accordingly.
func (c *converter) process(ctx context.Context, src, dst string) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := c.processDir(ctx, head, dst); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := c.processArchive(ctx, head, filepath.ToSlash(tail), "", dst); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		if len(tail) != 0 {
			return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}
		// file named explicitly is processed regardless of include patterns
		file, err := os.Open(head)
		if err != nil {
			return fmt.Errorf("unable to open stylesheet: %w", err)
		}
		defer file.Close()
		if err := c.processStylesheet(ctx, file, filepath.Base(head), dst); err != nil {
			c.log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
		}
		break
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree and processes stylesheets selected by
// filter and archives in natural order of their relative paths.
func (c *converter) processDir(ctx context.Context, dir, dst string) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			c.log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			c.log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slices.SortStableFunc(paths, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			c.log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}

		isArchive, err := isArchiveFile(path)
		if err != nil {
			// checking format - but cannot open target file
			c.log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		if isArchive {
			count++
			if err := c.processArchive(ctx, path, "", filepath.Dir(rel), dst); err != nil {
				c.log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			continue
		}

		if !c.filter.match(rel) {
			c.log.Debug("Skipping file, not selected", zap.String("file", path))
			continue
		}
		count++
		if err := c.processFile(ctx, path, rel, dst); err != nil {
			c.log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
	}
	return nil
}

func (c *converter) processFile(ctx context.Context, path, src, dst string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return c.processStylesheet(ctx, file, src, dst)
}

// processArchive walks all files inside archive, finds stylesheets under
// "pathIn" and processes them. Output keeps structure relative to "pathIn"
// under "pathOut".
func (c *converter) processArchive(ctx context.Context, path, pathIn, pathOut, dst string) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			c.log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	return archive.Walk(ctx, path, pathIn, c.filter.match, func(arc, name string, f *zip.File) error {
		count++

		if c.env.CodePage != nil && f.NonUTF8 {
			// forcing zip file name encoding
			if n, err := c.env.CodePage.NewDecoder().String(name); err == nil {
				name = n
			} else {
				cp, _ := ianaindex.IANA.Name(c.env.CodePage)
				c.log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", cp), zap.String("path", name), zap.Error(err))
			}
		}

		r, err := f.Open()
		if err != nil {
			c.log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		if err := c.processStylesheet(ctx, r, filepath.Join(pathOut, filepath.FromSlash(name)), dst); err != nil {
			c.log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.Name), zap.Error(err))
		}
		return nil
	})
}

// readSource returns content of stylesheet named by src, "-" means standard
// input.
func readSource(src string, stdin io.Reader) ([]byte, error) {
	if src == stdio {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(src)
}
