package convert

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/encoding/charmap"

	"rpx2rem/config"
	"rpx2rem/state"
)

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	if env.Transform, err = cfg.TransformConfig(nil); err != nil {
		t.Fatalf("transform config: %v", err)
	}
	return ctx, env
}

func setupConverter(t *testing.T) (context.Context, *converter) {
	t.Helper()
	ctx, env := setupTestEnv(t)
	c, err := newConverter(env, env.Log)
	if err != nil {
		t.Fatalf("newConverter: %v", err)
	}
	return ctx, c
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func assertExists(t *testing.T, path string, want bool) {
	t.Helper()
	_, err := os.Stat(path)
	if got := err == nil; got != want {
		t.Errorf("%s exists = %v, want %v", path, got, want)
	}
}

func TestProcess_NonExistentPath(t *testing.T) {
	ctx, c := setupConverter(t)

	err := c.process(ctx, "/nonexistent/path/file.css", t.TempDir())
	if err == nil {
		t.Fatal("Expected error for non-existent path, got nil")
	}
	if !strings.Contains(err.Error(), "input source was not found") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, c := setupConverter(t)
	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	tmpDir := t.TempDir()
	if err := c.process(cancelCtx, tmpDir, tmpDir); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestProcess_DirectoryWithTail(t *testing.T) {
	ctx, c := setupConverter(t)
	tmpDir := t.TempDir()

	err := c.process(ctx, filepath.Join(tmpDir, "missing", "app.css"), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "input source was not found") {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestProcess_SingleFile(t *testing.T) {
	ctx, c := setupConverter(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()

	// explicitly named file is converted even if include patterns do not select it
	src := filepath.Join(srcDir, "styles", "theme.less")
	writeFile(t, src, ".a { width: 64rpx; border: 1px solid red; }")

	if err := c.process(ctx, src, dstDir); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	got := readFile(t, filepath.Join(dstDir, "theme.less"))
	if !strings.Contains(got, "width: 2rem;") {
		t.Errorf("Output not converted:\n%s", got)
	}
	if !strings.Contains(got, "border: 1px solid red;") {
		t.Errorf("Unrelated declaration changed:\n%s", got)
	}
}

func TestProcess_Directory(t *testing.T) {
	ctx, c := setupConverter(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()

	writeFile(t, filepath.Join(srcDir, "app.wxss"), ".page { padding: 32rpx; }")
	writeFile(t, filepath.Join(srcDir, "pages", "index", "index.css"), ".title { font-size: 48rpx; }")
	writeFile(t, filepath.Join(srcDir, "pages", "index", "index.js"), "console.log(1)")

	if err := c.process(ctx, srcDir, dstDir); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	if got := readFile(t, filepath.Join(dstDir, "app.wxss")); !strings.Contains(got, "padding: 1rem;") {
		t.Errorf("app.wxss not converted:\n%s", got)
	}
	if got := readFile(t, filepath.Join(dstDir, "pages", "index", "index.css")); !strings.Contains(got, "font-size: 1.5rem;") {
		t.Errorf("index.css not converted:\n%s", got)
	}
	assertExists(t, filepath.Join(dstDir, "pages", "index", "index.js"), false)
}

func TestProcess_DirectoryExclude(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Input.Exclude = []string{"vendor/**"}
	env.NoDirs = true
	c, err := newConverter(env, env.Log)
	if err != nil {
		t.Fatalf("newConverter: %v", err)
	}
	srcDir, dstDir := t.TempDir(), t.TempDir()

	writeFile(t, filepath.Join(srcDir, "src", "main.css"), ".a { margin: 16rpx; }")
	writeFile(t, filepath.Join(srcDir, "vendor", "lib.css"), ".b { margin: 16rpx; }")

	if err := c.process(ctx, srcDir, dstDir); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	if got := readFile(t, filepath.Join(dstDir, "main.css")); !strings.Contains(got, "margin: 0.5rem;") {
		t.Errorf("main.css not converted:\n%s", got)
	}
	assertExists(t, filepath.Join(dstDir, "lib.css"), false)
	assertExists(t, filepath.Join(dstDir, "src"), false)
}

func TestProcess_Archive(t *testing.T) {
	ctx, c := setupConverter(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()

	arc := filepath.Join(srcDir, "styles.zip")
	writeZip(t, arc, map[string]string{
		"styles/a.css":     ".a { width: 32rpx; }",
		"styles/sub/b.css": ".b { width: 64rpx; }",
		"other/c.css":      ".c { width: 96rpx; }",
		"styles/logo.png":  "not really an image",
	})

	t.Run("path inside archive", func(t *testing.T) {
		dst := filepath.Join(dstDir, "dir")
		if err := c.process(ctx, filepath.Join(arc, "styles"), dst); err != nil {
			t.Fatalf("process() error = %v", err)
		}
		if got := readFile(t, filepath.Join(dst, "a.css")); !strings.Contains(got, "width: 1rem;") {
			t.Errorf("a.css not converted:\n%s", got)
		}
		if got := readFile(t, filepath.Join(dst, "sub", "b.css")); !strings.Contains(got, "width: 2rem;") {
			t.Errorf("b.css not converted:\n%s", got)
		}
		assertExists(t, filepath.Join(dst, "c.css"), false)
		assertExists(t, filepath.Join(dst, "logo.png"), false)
	})

	t.Run("single file inside archive", func(t *testing.T) {
		dst := filepath.Join(dstDir, "file")
		if err := c.process(ctx, filepath.Join(arc, "other", "c.css"), dst); err != nil {
			t.Fatalf("process() error = %v", err)
		}
		if got := readFile(t, filepath.Join(dst, "c.css")); !strings.Contains(got, "width: 3rem;") {
			t.Errorf("c.css not converted:\n%s", got)
		}
	})

	t.Run("whole archive", func(t *testing.T) {
		dst := filepath.Join(dstDir, "all")
		if err := c.process(ctx, arc, dst); err != nil {
			t.Fatalf("process() error = %v", err)
		}
		assertExists(t, filepath.Join(dst, "styles", "a.css"), true)
		assertExists(t, filepath.Join(dst, "styles", "sub", "b.css"), true)
		assertExists(t, filepath.Join(dst, "other", "c.css"), true)
	})
}

func TestProcess_ArchiveInDirectory(t *testing.T) {
	ctx, c := setupConverter(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()

	if err := os.MkdirAll(filepath.Join(srcDir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	writeZip(t, filepath.Join(srcDir, "nested", "pack.zip"), map[string]string{"a.css": ".a { width: 32rpx; }"})

	if err := c.process(ctx, srcDir, dstDir); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dstDir, "nested", "a.css")); !strings.Contains(got, "width: 1rem;") {
		t.Errorf("a.css not converted:\n%s", got)
	}
}

func TestProcess_Overwrite(t *testing.T) {
	ctx, c := setupConverter(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()

	src := filepath.Join(srcDir, "app.css")
	dst := filepath.Join(dstDir, "app.css")
	writeFile(t, src, ".a { width: 32rpx; }")
	writeFile(t, dst, "existing")

	// per file failures are logged, processing does not fail
	if err := c.process(ctx, src, dstDir); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readFile(t, dst); got != "existing" {
		t.Errorf("Existing file was changed without overwrite:\n%s", got)
	}

	c.env.Overwrite = true
	if err := c.process(ctx, src, dstDir); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readFile(t, dst); !strings.Contains(got, "width: 1rem;") {
		t.Errorf("Existing file was not overwritten:\n%s", got)
	}
}

func TestProcess_Suffix(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Output.Suffix = ".rem"
	c, err := newConverter(env, env.Log)
	if err != nil {
		t.Fatalf("newConverter: %v", err)
	}
	dir := t.TempDir()

	// output next to source
	src := filepath.Join(dir, "app.css")
	writeFile(t, src, ".a { width: 32rpx; }")
	if err := c.process(ctx, src, dir); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dir, "app.rem.css")); !strings.Contains(got, "width: 1rem;") {
		t.Errorf("app.rem.css not converted:\n%s", got)
	}
	if got := readFile(t, src); got != ".a { width: 32rpx; }" {
		t.Errorf("Source changed:\n%s", got)
	}
}

func TestProcess_Charset(t *testing.T) {
	ctx, c := setupConverter(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()

	data, err := charmap.Windows1251.NewEncoder().String(`@charset "windows-1251"; .a::after { content: "ж"; width: 32rpx; }`)
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(srcDir, "legacy.css")
	writeFile(t, src, data)

	if err := c.process(ctx, src, dstDir); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readFile(t, filepath.Join(dstDir, "legacy.css"))
	if !strings.Contains(got, `@charset "UTF-8";`) {
		t.Errorf("Charset rule not updated:\n%s", got)
	}
	if !strings.Contains(got, `"ж"`) || !strings.Contains(got, "width: 1rem;") {
		t.Errorf("Unexpected output:\n%s", got)
	}
}

func TestProcessStream(t *testing.T) {
	ctx, c := setupConverter(t)

	var out bytes.Buffer
	if err := c.processStream(ctx, strings.NewReader(".a { margin: 0rpx 16rpx; }"), &out); err != nil {
		t.Fatalf("processStream() error = %v", err)
	}
	if got := out.String(); !strings.Contains(got, "margin: 0 0.5rem;") {
		t.Errorf("Unexpected output:\n%s", got)
	}
}

func testCommand() *cli.Command {
	return &cli.Command{
		Name: "convert",
		Flags: append(StylesheetFlags(),
			&cli.BoolFlag{Name: "nodirs"},
			&cli.BoolFlag{Name: "overwrite"},
		),
		Action: Run,
	}
}

func TestRun(t *testing.T) {
	ctx, env := setupTestEnv(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(srcDir, "pages", "app.css"), ".a { width: 32rpx; } @media (min-width: 320rpx) { .b { height: 16rpx; } }")

	args := []string{"convert", "--root-value", "16", "--media-query", "--nodirs", srcDir, dstDir}
	if err := testCommand().Run(ctx, args); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := readFile(t, filepath.Join(dstDir, "app.css"))
	for _, want := range []string{"width: 1rem;", "(min-width: 10rem)", "height: 0.5rem;"} {
		if !strings.Contains(got, want) {
			t.Errorf("Output does not contain %q:\n%s", want, got)
		}
	}
	if env.Transform.RootValue != 16 || !env.Transform.MediaQuery || !env.NoDirs {
		t.Errorf("Command line not applied: %+v, nodirs %v", env.Transform, env.NoDirs)
	}
}

func TestRun_AppendMode(t *testing.T) {
	ctx, _ := setupTestEnv(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(srcDir, "app.css"), ".a { width: 32rpx; height: 32rpx; }")

	args := []string{"convert", "--replace=false", "--prop-list", "width", srcDir, dstDir}
	if err := testCommand().Run(ctx, args); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := readFile(t, filepath.Join(dstDir, "app.css"))
	want := ".a {\n  width: 32rpx;\n  width: 1rem;\n  height: 32rpx;\n}\n"
	if got != want {
		t.Errorf("Run() output = %q, want %q", got, want)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no source", []string{"convert"}, "no input source"},
		{"bad option", []string{"convert", "--input-unit", "1x", "src"}, "inputUnit"},
		{"stdin to file", []string{"convert", "-", "out"}, "standard input can only be converted"},
		{"stdin to file after flags", []string{"convert", "--nodirs", "-", "out"}, "standard input can only be converted"},
		{"file to stdout", []string{"convert", "src", "-"}, "only standard input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := setupTestEnv(t)
			err := testCommand().Run(ctx, StdinArgs(tt.args))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Run() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestStdinArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"no stdin", []string{"app", "convert", "src", "dst"}, []string{"app", "convert", "src", "dst"}},
		{"stdin", []string{"app", "convert", "-"}, []string{"app", "convert", "--", "-"}},
		{"stdin with destination", []string{"app", "-d", "convert", "-", "out"}, []string{"app", "-d", "convert", "--", "-", "out"}},
		{"stdout", []string{"app", "convert", "src", "-"}, []string{"app", "convert", "src", "--", "-"}},
		{"already terminated", []string{"app", "convert", "--", "-", "out"}, []string{"app", "convert", "--", "-", "out"}},
		{"program name only", []string{"-"}, []string{"-"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StdinArgs(tt.args); !slices.Equal(got, tt.want) {
				t.Errorf("StdinArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRun_StdinKeepsDestination(t *testing.T) {
	var got []string
	cmd := testCommand()
	cmd.Action = func(_ context.Context, cmd *cli.Command) error {
		got = cmd.Args().Slice()
		return nil
	}
	ctx, _ := setupTestEnv(t)
	if err := cmd.Run(ctx, StdinArgs([]string{"convert", "--nodirs", "-", "out"})); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !slices.Equal(got, []string{"-", "out"}) {
		t.Errorf("Args() = %q, want both arguments", got)
	}
}

func TestPrintTree(t *testing.T) {
	_, env := setupTestEnv(t)
	src := filepath.Join(t.TempDir(), "app.css")
	writeFile(t, src, ".a { width: 32rpx; }")

	var raw, converted bytes.Buffer
	if err := printTree(src, false, env, nil, &raw, env.Log); err != nil {
		t.Fatalf("printTree() error = %v", err)
	}
	if err := printTree(src, true, env, nil, &converted, env.Log); err != nil {
		t.Fatalf("printTree() error = %v", err)
	}

	if !strings.Contains(raw.String(), `rule: ".a"`) || !strings.Contains(raw.String(), `width: "32rpx"`) {
		t.Errorf("Unexpected tree:\n%s", raw.String())
	}
	if !strings.Contains(converted.String(), `width: "1rem"`) {
		t.Errorf("Unexpected converted tree:\n%s", converted.String())
	}
}

func TestPrintTree_Stdin(t *testing.T) {
	_, env := setupTestEnv(t)

	var out bytes.Buffer
	if err := printTree("-", true, env, strings.NewReader("@font-face { size-adjust: 64rpx; }"), &out, env.Log); err != nil {
		t.Fatalf("printTree() error = %v", err)
	}
	if !strings.Contains(out.String(), `size-adjust: "2rem"`) {
		t.Errorf("Unexpected tree:\n%s", out.String())
	}
}

func TestPrintTree_Missing(t *testing.T) {
	_, env := setupTestEnv(t)
	if err := printTree(filepath.Join(t.TempDir(), "none.css"), false, env, nil, &bytes.Buffer{}, env.Log); err == nil {
		t.Error("Expected error for missing file")
	}
}
