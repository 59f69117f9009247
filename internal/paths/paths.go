// Package paths provides path resolution utilities.
package paths

import (
	"os"
	"path/filepath"
)

const (
	// DatabaseFile is the registry database name inside a storage directory.
	DatabaseFile = "registry.db"

	configDirName  = ".authprx"
	configFileName = "config.yaml"
)

// ResolveStoragePath resolves the registry database file from user input.
//
// Input normalization:
//   - "" -> "auth_proxy/registry.db"
//   - "/var/lib/authprx" (existing directory) -> "/var/lib/authprx/registry.db"
//   - "/var/lib/authprx/" (trailing separator) -> "/var/lib/authprx/registry.db"
//   - "/var/lib/authprx/api.db" -> "/var/lib/authprx/api.db"
func ResolveStoragePath(path string) string {
	if path == "" {
		return filepath.Join("auth_proxy", DatabaseFile)
	}
	if os.IsPathSeparator(path[len(path)-1]) {
		return filepath.Join(filepath.Clean(path), DatabaseFile)
	}
	path = filepath.Clean(path)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, DatabaseFile)
	}
	return path
}

// LocalConfigPath is the project config file, relative to the working directory.
func LocalConfigPath() string {
	return filepath.Join(configDirName, configFileName)
}

// UserConfigPath returns ~/.config/authprx/config.yaml, or "" when the home
// directory is unavailable.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "authprx", configFileName)
}

// FindConfig returns the first existing config file in lookup order:
// explicit, then LocalConfigPath, then UserConfigPath. An explicit path is
// returned even when it does not exist so the caller can report it.
func FindConfig(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	for _, candidate := range []string{LocalConfigPath(), UserConfigPath()} {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}
