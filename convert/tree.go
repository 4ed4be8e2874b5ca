package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"rpx2rem/css"
	"rpx2rem/rem"
	"rpx2rem/state"
)

// Tree prints structure of parsed stylesheet, optionally after conversion.
func Tree(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("tree")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many sources", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	if err := prepareEnv(cmd, env, log); err != nil {
		return err
	}
	return printTree(src, cmd.Bool("converted"), env, os.Stdin, os.Stdout, log)
}

func printTree(src string, converted bool, env *state.LocalEnv, stdin io.Reader, w io.Writer, log *zap.Logger) error {
	data, err := readSource(src, stdin)
	if err != nil {
		return fmt.Errorf("unable to read stylesheet: %w", err)
	}

	sheet, err := loadStylesheet(data, src, env, css.NewParser(log), log)
	if err != nil {
		return fmt.Errorf("unable to load stylesheet (%s): %w", src, err)
	}

	if converted {
		tr, err := rem.New(env.Transform, log)
		if err != nil {
			return err
		}
		st := tr.Apply(sheet)
		log.Debug("Stylesheet converted", zap.Int("replaced", st.Replaced), zap.Int("appended", st.Appended))
	}

	if _, err := io.WriteString(w, sheet.DebugTree()); err != nil {
		return fmt.Errorf("unable to write tree: %w", err)
	}
	return nil
}
