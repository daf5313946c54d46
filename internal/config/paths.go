package config

import (
	"os"
	"path/filepath"
)

const (
	// DirName is the per-workspace and per-user state directory.
	DirName = ".remarkfmt"

	// EnvSettings overrides the host settings file.
	EnvSettings = "REMARKFMT_SETTINGS"
	// EnvPluginPath overrides the user plugin directory.
	EnvPluginPath = "REMARKFMT_PLUGIN_PATH"
)

// FindWorkspaceRoot walks up from the working directory to the first
// directory holding .remarkfmt, .git or go.mod. It returns the working
// directory when none is found.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		for _, marker := range []string{DirName, ".git", "go.mod"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return originalDir, nil
}

// HostSettingsPaths lists the host settings files in lookup order: the
// REMARKFMT_SETTINGS override, the workspace settings file, then the user
// settings file.
func HostSettingsPaths(root string) []string {
	var paths []string
	if p := os.Getenv(EnvSettings); p != "" {
		paths = append(paths, p)
	}
	if root != "" {
		paths = append(paths, filepath.Join(root, DirName, "settings.json"))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "remarkfmt", "settings.json"))
	}
	return paths
}

// WorkspacePluginDir is where project-local script plugins live.
func WorkspacePluginDir(root string) string {
	return filepath.Join(root, DirName, "plugins")
}

// UserPluginDir is the user-wide plugin directory, the equivalent of a
// global package install location.
func UserPluginDir() string {
	if p := os.Getenv(EnvPluginPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "remarkfmt", "plugins")
}
