package convert

import (
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"

	"rpx2rem/config"
	"rpx2rem/state"
)

// buildOutputPath returns output file path for stylesheet. "src" is path of
// the source relative to what was walked (just a base name for a single file),
// "dst" is destination directory. Source directory structure is kept unless
// NoDirs is requested. Configured suffix goes before extension, only base
// name is transliterated.
func buildOutputPath(src, dst string, env *state.LocalEnv) string {
	return filepath.Join(determineOutputDir(src, dst, env), buildFileName(src, env))
}

func determineOutputDir(src, dst string, env *state.LocalEnv) string {
	if env.NoDirs {
		return dst
	}
	return filepath.Join(dst, filepath.Dir(src))
}

func buildFileName(src string, env *state.LocalEnv) string {
	ext := filepath.Ext(src)
	baseName := strings.TrimSuffix(filepath.Base(src), ext)

	var suffix string
	if env.Cfg != nil {
		suffix = env.Cfg.Output.Suffix
		if env.Cfg.Output.Transliterate {
			baseName = slug.Make(baseName)
		}
	}
	return config.CleanFileName(baseName+suffix) + ext
}
