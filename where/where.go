// Package where implements a cross-platform resolver for application-specific filesystem paths.
package where

import (
	"os"
	"path/filepath"

	"github.com/kitsune-cli/kitsune/constant"
	"github.com/kitsune-cli/kitsune/filesystem"
	"github.com/samber/lo"
)

// EnvConfigPath is the environment variable identifier used to override the default configuration directory.
const EnvConfigPath = "KITSUNE_CONFIG_PATH"

func ensureDir(path string) string {
	lo.Must0(filesystem.API().MkdirAll(path, os.ModePerm))
	return path
}

// Config resolves the absolute path to the primary application configuration directory.
// The path can be overridden with the KITSUNE_CONFIG_PATH environment variable.
func Config() string {
	if custom, ok := os.LookupEnv(EnvConfigPath); ok {
		return ensureDir(custom)
	}

	base := lo.Must(os.UserConfigDir())
	return ensureDir(filepath.Join(base, constant.Kitsune))
}

// Cache resolves the absolute path to the application's persistent cache directory.
func Cache() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = filepath.Join(".", "cache")
	}
	return ensureDir(filepath.Join(base, constant.Kitsune))
}

// Logs resolves the directory used for diagnostic logs.
func Logs() string {
	return ensureDir(filepath.Join(Config(), "logs"))
}

// Progress resolves the file backing the default watch progress store.
func Progress() string {
	return filepath.Join(Config(), "progress.json")
}

// Bookmarks resolves the file backing the default bookmark store.
func Bookmarks() string {
	return filepath.Join(Config(), "bookmarks.json")
}

// Database resolves the SQLite database used by the sqlite progress backend.
func Database() string {
	return filepath.Join(Config(), "kitsune.db")
}

// Skips resolves the cache file for skip windows fetched from AniSkip.
func Skips() string {
	return filepath.Join(Cache(), "skips.json")
}

// Temp resolves a volatile directory for transient artifacts such as player IPC sockets.
func Temp() string {
	return ensureDir(filepath.Join(os.TempDir(), constant.Kitsune))
}
