// Package xdgpaths resolves XDG base directory paths, falling back to
// the standard defaults when the environment variable is unset.
package xdgpaths

import (
	"os"
	"path/filepath"
)

// ConfigHome returns $XDG_CONFIG_HOME, or ~/.config if unset.
func ConfigHome() string {
	return orFallback("XDG_CONFIG_HOME", filepath.Join(homeDir(), ".config"))
}

// DataHome returns $XDG_DATA_HOME, or ~/.local/share if unset.
func DataHome() string {
	return orFallback("XDG_DATA_HOME", filepath.Join(homeDir(), ".local", "share"))
}

// StateHome returns $XDG_STATE_HOME, or ~/.local/state if unset.
func StateHome() string {
	return orFallback("XDG_STATE_HOME", filepath.Join(homeDir(), ".local", "state"))
}

// DataDirs returns the $XDG_DATA_DIRS search path, split on the OS list
// separator, falling back to the standard default of
// /usr/local/share:/usr/share if unset or empty.
func DataDirs() []string {
	dirs := os.Getenv("XDG_DATA_DIRS")
	if dirs == "" {
		dirs = "/usr/local/share:/usr/share"
	}
	return filepath.SplitList(dirs)
}

func orFallback(envVar, fallback string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return dir
	}
	return fallback
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
