package config

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/bmatcuk/doublestar"

	"remarkfmt/internal/logging"
)

// ConfigPattern matches project configuration files anywhere in the workspace.
const ConfigPattern = "**/*remarkrc*"

// ExcludePatterns are directories never searched for configuration.
var ExcludePatterns = []string{
	"**/node_modules/**",
	"**/vendor/**",
	"**/.git/**",
}

var errFound = errors.New("found")

// Discover walks root in lexical order and returns the first file matching
// ConfigPattern, or "" if there is none. Unreadable directories are skipped.
func Discover(ctx context.Context, root string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logging.ConfigDebug("Skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := doublestar.Match(ConfigPattern, rel); ok {
			found = path
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", err
	}
	return found, nil
}

func excluded(rel string) bool {
	for _, pattern := range ExcludePatterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
