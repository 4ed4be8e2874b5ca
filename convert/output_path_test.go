package convert

import (
	"path/filepath"
	"testing"

	"rpx2rem/config"
	"rpx2rem/state"
)

func setupTestEnvForOutputPath(t *testing.T, noDirs, transliterate bool, suffix string) *state.LocalEnv {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Output.Suffix = suffix
	cfg.Output.Transliterate = transliterate
	return &state.LocalEnv{Cfg: cfg, NoDirs: noDirs}
}

func TestBuildOutputPath(t *testing.T) {
	tests := []struct {
		name          string
		src           string
		noDirs        bool
		transliterate bool
		suffix        string
		want          string
	}{
		{
			name:   "no dirs",
			src:    filepath.Join("pages", "index", "app.css"),
			noDirs: true,
			want:   filepath.Join("/output", "app.css"),
		},
		{
			name: "with dirs",
			src:  filepath.Join("pages", "index", "app.css"),
			want: filepath.Join("/output", "pages", "index", "app.css"),
		},
		{
			name: "base name only",
			src:  "app.wxss",
			want: filepath.Join("/output", "app.wxss"),
		},
		{
			name:   "suffix before extension",
			src:    filepath.Join("pages", "app.css"),
			suffix: ".rem",
			want:   filepath.Join("/output", "pages", "app.rem.css"),
		},
		{
			name:   "suffix without extension",
			src:    "styles",
			suffix: "-converted",
			want:   filepath.Join("/output", "styles-converted"),
		},
		{
			name: "hidden file is not produced",
			src:  ".theme.css",
			want: filepath.Join("/output", "theme.css"),
		},
		{
			name:          "transliterated",
			src:           filepath.Join("My Pages", "Main Theme.css"),
			transliterate: true,
			suffix:        ".rem",
			want:          filepath.Join("/output", "My Pages", "main-theme.rem.css"),
		},
		{
			name: "nothing left of name",
			src:  "..css",
			want: filepath.Join("/output", "_bad_file_name_.css"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForOutputPath(t, tt.noDirs, tt.transliterate, tt.suffix)
			if got := buildOutputPath(tt.src, "/output", env); got != tt.want {
				t.Errorf("buildOutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildOutputPath_NoConfig(t *testing.T) {
	env := &state.LocalEnv{NoDirs: true}
	want := filepath.Join("/output", "app.css")
	if got := buildOutputPath(filepath.Join("a", "app.css"), "/output", env); got != want {
		t.Errorf("buildOutputPath() = %q, want %q", got, want)
	}
}
