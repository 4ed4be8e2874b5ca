// Package misc keeps build time information about the program.
package misc

import (
	"os"
	"path/filepath"
	"strings"
)

// Set with -ldflags "-X rpx2rem/misc.version=... -X rpx2rem/misc.gitHash=..."
var (
	version = "dev"
	gitHash = "unknown"
	appName = "rpx2rem"
)

// GetVersion returns program version.
func GetVersion() string {
	return version
}

// GetGitHash returns git hash program was built from.
func GetGitHash() string {
	return gitHash
}

// GetAppName returns short program name suitable for file names.
func GetAppName() string {
	if len(appName) != 0 {
		return appName
	}
	return strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))
}
