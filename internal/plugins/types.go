// Package plugins turns declared plugin names into attachable packages.
//
// A plugin named "toc" is the package "remark-toc". Packages are looked up in
// the workspace plugin directory, then the user plugin directory, then the
// registry of bundled plugins, which plays the part of a global install.
//
//	PluginSpec → Resolver.Resolve() → ResolvedPlugin → format.Assemble()
package plugins

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"remarkfmt/internal/remark"
)

// PackagePrefix is prepended to a plugin name to form its package name.
const PackagePrefix = "remark-"

// CanonicalName returns the package name for a declared plugin name.
func CanonicalName(name string) string {
	return PackagePrefix + name
}

// Origin records where a plugin package was found.
type Origin string

const (
	OriginWorkspace Origin = "workspace"
	OriginUser      Origin = "user"
	OriginBundled   Origin = "bundled"
)

// Property describes a single plugin setting.
type Property struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// SettingsSchema defines the settings a plugin accepts.
type SettingsSchema struct {
	Properties map[string]Property `json:"properties" yaml:"properties"`
}

// Check validates settings against the schema. Absent settings are valid.
func (s *SettingsSchema) Check(settings any) error {
	if s == nil || settings == nil {
		return nil
	}
	m, ok := settings.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: expected an object, got %T", ErrInvalidSettings, settings)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		prop, ok := s.Properties[key]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
		}
		if err := prop.check(key, m[key]); err != nil {
			return err
		}
	}
	return nil
}

func (p Property) check(key string, v any) error {
	if v == nil {
		return nil
	}
	ok := true
	switch p.Type {
	case "string":
		_, ok = v.(string)
	case "boolean":
		_, ok = v.(bool)
	case "integer":
		switch n := v.(type) {
		case int, int64:
		case float64:
			ok = n == math.Trunc(n)
		default:
			ok = false
		}
	case "number":
		switch v.(type) {
		case int, int64, float64:
		default:
			ok = false
		}
	case "array":
		_, ok = v.([]any)
	case "object":
		_, ok = v.(map[string]any)
	}
	if !ok {
		return fmt.Errorf("%w: %s must be of type %s, got %v", ErrInvalidSettings, key, p.Type, v)
	}

	if len(p.Enum) == 0 {
		return nil
	}
	for _, allowed := range p.Enum {
		if fmt.Sprint(allowed) == fmt.Sprint(v) {
			return nil
		}
	}
	choices := make([]string, len(p.Enum))
	for i, e := range p.Enum {
		choices[i] = fmt.Sprint(e)
	}
	return fmt.Errorf("%w: %s must be one of [%s], got %v", ErrInvalidSettings, key, strings.Join(choices, ", "), v)
}

// Plugin is an attachable plugin package.
type Plugin struct {
	// Name is the declared name, without the package prefix.
	Name string

	// Description explains what the plugin does.
	Description string

	// Schema validates settings before attaching. Nil accepts anything.
	Schema *SettingsSchema

	// Attacher wires the plugin into a processor.
	Attacher remark.Attacher

	// Origin and Path record where the package was found.
	Origin Origin
	Path   string
}

// Validate checks if the plugin definition is valid.
func (p *Plugin) Validate() error {
	if p.Name == "" {
		return ErrPluginNameEmpty
	}
	if p.Attacher == nil {
		return ErrAttacherNil
	}
	return nil
}

// PackageName returns the canonical package name.
func (p *Plugin) PackageName() string {
	return CanonicalName(p.Name)
}

// Attach implements remark.Attacher, checking settings against the schema first.
func (p *Plugin) Attach(proc *remark.Processor, settings any) error {
	if err := p.Schema.Check(settings); err != nil {
		return err
	}
	return p.Attacher.Attach(proc, settings)
}

// failedPackage stands in for a package that was found but could not be
// loaded. It fails when attached.
func failedPackage(name string, origin Origin, path string, err error) *Plugin {
	return &Plugin{
		Name:   name,
		Origin: origin,
		Path:   path,
		Attacher: remark.AttacherFunc(func(*remark.Processor, any) error {
			return fmt.Errorf("cannot load %s: %w", path, err)
		}),
	}
}
