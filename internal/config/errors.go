package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when a configuration parses but has the wrong shape.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidPlugin is returned for a plugins entry that is neither a name nor a pair.
	ErrInvalidPlugin = errors.New("invalid plugin entry")
	// ErrNoScriptEvaluator is returned when a Go configuration is found but no
	// sandbox was configured to evaluate it.
	ErrNoScriptEvaluator = errors.New("no script evaluator configured")
)

// ConfigError reports a configuration file that could not be read or parsed.
type ConfigError struct {
	Kind SourceKind
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	var what string
	switch e.Kind {
	case SourceScript:
		what = "Error reading Go config"
	case SourceHost:
		what = "Error reading host settings"
	default:
		what = "Error reading JSON/YAML config"
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", what, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", what, e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
