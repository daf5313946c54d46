// Package config locates and parses the remark configuration for a workspace.
//
// A project configuration is the first file under the workspace root whose
// name contains "remarkrc". It is either structured text (JSON or YAML) or a
// Go script evaluated by the script sandbox. When no project file exists, or
// it is empty, the "remark.format" entry of the host settings file is used.
// The two are never merged.
package config

import (
	"context"
	"fmt"
	"sort"

	"remarkfmt/internal/logging"
)

// SourceKind identifies where a Configuration came from.
type SourceKind int

const (
	SourceHost SourceKind = iota
	SourceStructured
	SourceScript
)

func (k SourceKind) String() string {
	switch k {
	case SourceHost:
		return "host"
	case SourceStructured:
		return "structured"
	case SourceScript:
		return "script"
	default:
		return fmt.Sprintf("source(%d)", int(k))
	}
}

// PluginSpec is a declared plugin: a bare name, or a name with settings.
type PluginSpec struct {
	Name        string
	Settings    any
	HasSettings bool
}

// MarshalYAML renders bare specs as their name and pairs as a two-element list.
func (p PluginSpec) MarshalYAML() (interface{}, error) {
	if !p.HasSettings {
		return p.Name, nil
	}
	return []interface{}{p.Name, p.Settings}, nil
}

// Configuration is the effective remark configuration for one invocation.
type Configuration struct {
	Plugins []PluginSpec
	// Rules are the global stringify settings.
	Rules map[string]any
	// Raw is the whole parsed object. Top-level keys named after a plugin
	// supply that plugin's settings.
	Raw map[string]any
	// LegacyPlugins is set when plugins was declared as a name -> settings map.
	LegacyPlugins map[string]any
	Source        SourceKind
	Path          string
}

// MarshalYAML renders the configuration for display.
func (c *Configuration) MarshalYAML() (interface{}, error) {
	out := struct {
		Source  string         `yaml:"source"`
		Path    string         `yaml:"path,omitempty"`
		Plugins []PluginSpec   `yaml:"plugins"`
		Rules   map[string]any `yaml:"rules,omitempty"`
	}{
		Source:  c.Source.String(),
		Path:    c.Path,
		Plugins: c.Plugins,
		Rules:   c.Rules,
	}
	if out.Plugins == nil {
		out.Plugins = []PluginSpec{}
	}
	return out, nil
}

// ScriptEvaluator evaluates a Go script configuration and returns the value
// of its Config function.
type ScriptEvaluator interface {
	EvalConfig(ctx context.Context, path string) (map[string]interface{}, error)
}

// Loader loads the configuration for a workspace. It caches nothing; every
// Load reads from disk again.
type Loader struct {
	// Root is the workspace root. Empty means no workspace is open and only
	// host settings are consulted.
	Root string
	// Scripts evaluates .go configuration files.
	Scripts ScriptEvaluator
	// HostPaths overrides the host settings search list.
	HostPaths []string
}

// NewLoader creates a loader for the workspace at root.
func NewLoader(root string, scripts ScriptEvaluator) *Loader {
	return &Loader{Root: root, Scripts: scripts}
}

// Load returns the effective configuration.
func (l *Loader) Load(ctx context.Context) (*Configuration, error) {
	timer := logging.StartTimer(logging.CategoryConfig, "config load")
	defer timer.Stop()

	if l.Root != "" {
		path, err := Discover(ctx, l.Root)
		if err != nil {
			return nil, err
		}
		if path != "" {
			logging.Config("Found project configuration: %s", path)
			cfg, err := load(ctx, l.sourceFor(path))
			if err != nil {
				return nil, err
			}
			if cfg != nil {
				return cfg, nil
			}
			logging.ConfigWarn("Project configuration %s is empty, using host settings", path)
		}
	}

	hostPaths := l.HostPaths
	if hostPaths == nil {
		hostPaths = HostSettingsPaths(l.Root)
	}
	cfg, err := load(ctx, &HostSetting{Paths: hostPaths})
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Configuration{Source: SourceHost}
	}
	if cfg.Plugins == nil {
		cfg.Plugins = []PluginSpec{}
	}
	if cfg.Rules == nil {
		cfg.Rules = map[string]any{}
	}
	return cfg, nil
}

func (l *Loader) sourceFor(path string) ConfigSource {
	if isScript(path) {
		return &ScriptModule{File: path, Eval: l.Scripts}
	}
	return &StructuredFile{File: path}
}

// load reads a source and builds a Configuration. It returns nil for a
// source that yields an empty object.
func load(ctx context.Context, src ConfigSource) (*Configuration, error) {
	doc, err := src.Read(ctx)
	if err != nil {
		return nil, err
	}
	if len(doc.Values) == 0 {
		return nil, nil
	}

	cfg := &Configuration{
		Raw:    doc.Values,
		Source: src.Kind(),
		Path:   src.Path(),
	}
	rulesKey := "settings"
	if src.Kind() == SourceHost {
		rulesKey = "rules"
	}
	if rules, ok := doc.Values[rulesKey]; ok && rules != nil {
		m, ok := rules.(map[string]any)
		if !ok {
			return nil, &ConfigError{Kind: src.Kind(), Path: src.Path(),
				Err: fmt.Errorf("%w: %q must be an object", ErrInvalidConfig, rulesKey)}
		}
		cfg.Rules = m
	}

	plugins, err := parsePlugins(doc.Values["plugins"], doc.PluginOrder)
	if err != nil {
		return nil, &ConfigError{Kind: src.Kind(), Path: src.Path(), Err: err}
	}
	cfg.Plugins = plugins
	if legacy, ok := doc.Values["plugins"].(map[string]any); ok {
		cfg.LegacyPlugins = legacy
	}

	logging.ConfigDebug("Loaded %s configuration with %d plugins", cfg.Source, len(cfg.Plugins))
	return cfg, nil
}

// parsePlugins accepts either a list of names and [name, settings] pairs or
// a legacy name -> settings map. order gives the map's key order as written;
// keys missing from it are appended in sorted order.
func parsePlugins(v any, order []string) ([]PluginSpec, error) {
	switch list := v.(type) {
	case nil:
		return []PluginSpec{}, nil
	case []any:
		specs := make([]PluginSpec, 0, len(list))
		for i, item := range list {
			spec, err := parsePluginEntry(item)
			if err != nil {
				return nil, fmt.Errorf("plugins[%d]: %w", i, err)
			}
			specs = append(specs, spec)
		}
		return specs, nil
	case map[string]any:
		names := make([]string, 0, len(list))
		seen := make(map[string]bool, len(list))
		for _, name := range order {
			if _, ok := list[name]; ok && !seen[name] {
				names = append(names, name)
				seen[name] = true
			}
		}
		var rest []string
		for name := range list {
			if !seen[name] {
				rest = append(rest, name)
			}
		}
		sort.Strings(rest)
		names = append(names, rest...)

		specs := make([]PluginSpec, len(names))
		for i, name := range names {
			specs[i] = PluginSpec{Name: name}
		}
		return specs, nil
	default:
		return nil, fmt.Errorf("%w: plugins must be a list or an object", ErrInvalidConfig)
	}
}

func parsePluginEntry(item any) (PluginSpec, error) {
	switch e := item.(type) {
	case string:
		if e == "" {
			return PluginSpec{}, fmt.Errorf("%w: empty plugin name", ErrInvalidPlugin)
		}
		return PluginSpec{Name: e}, nil
	case []any:
		if len(e) == 0 {
			return PluginSpec{}, fmt.Errorf("%w: empty plugin pair", ErrInvalidPlugin)
		}
		name, ok := e[0].(string)
		if !ok || name == "" {
			return PluginSpec{}, fmt.Errorf("%w: plugin name must be a string, got %v", ErrInvalidPlugin, e[0])
		}
		spec := PluginSpec{Name: name}
		if len(e) > 1 {
			spec.Settings = e[1]
			spec.HasSettings = true
		}
		return spec, nil
	default:
		return PluginSpec{}, fmt.Errorf("%w: unsupported entry %v", ErrInvalidPlugin, item)
	}
}
