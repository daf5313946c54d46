package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// HostSettingsKey is the host settings entry holding the remark configuration.
const HostSettingsKey = "remark.format"

// Document is the parsed content of a configuration source.
type Document struct {
	Values map[string]any
	// PluginOrder lists the keys of a legacy plugins map in document order.
	PluginOrder []string
}

// ConfigSource is one place a configuration can be read from.
type ConfigSource interface {
	Kind() SourceKind
	Path() string
	Read(ctx context.Context) (*Document, error)
}

// StructuredFile is a JSON or YAML project file. JSON is tried first.
type StructuredFile struct {
	File string
}

func (s *StructuredFile) Kind() SourceKind { return SourceStructured }
func (s *StructuredFile) Path() string     { return s.File }

func (s *StructuredFile) Read(ctx context.Context) (*Document, error) {
	data, err := os.ReadFile(s.File)
	if err != nil {
		return nil, &ConfigError{Kind: SourceStructured, Path: s.File, Err: err}
	}

	var values map[string]any
	if jsonErr := json.Unmarshal(data, &values); jsonErr == nil {
		return &Document{Values: values, PluginOrder: jsonKeyOrder(data, "plugins")}, nil
	} else if yamlErr := yaml.Unmarshal(data, &values); yamlErr != nil {
		return nil, &ConfigError{Kind: SourceStructured, Path: s.File, Err: errors.Join(jsonErr, yamlErr)}
	}
	return &Document{Values: values, PluginOrder: yamlKeyOrder(data, "plugins")}, nil
}

// ScriptModule is a Go script whose Config function returns the configuration.
type ScriptModule struct {
	File string
	Eval ScriptEvaluator
}

func (s *ScriptModule) Kind() SourceKind { return SourceScript }
func (s *ScriptModule) Path() string     { return s.File }

func (s *ScriptModule) Read(ctx context.Context) (*Document, error) {
	if s.Eval == nil {
		return nil, &ConfigError{Kind: SourceScript, Path: s.File, Err: ErrNoScriptEvaluator}
	}
	values, err := s.Eval.EvalConfig(ctx, s.File)
	if err != nil {
		return nil, &ConfigError{Kind: SourceScript, Path: s.File, Err: err}
	}
	values, err = normalize(values)
	if err != nil {
		return nil, &ConfigError{Kind: SourceScript, Path: s.File, Err: err}
	}
	return &Document{Values: values}, nil
}

// normalize gives a script's value the shape a JSON file decodes to, so
// []string or map[string]string read the same as []any and map[string]any.
func normalize(values map[string]any) (map[string]any, error) {
	if values == nil {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return out, nil
}

// HostSetting reads the "remark.format" entry of the first existing host
// settings file.
type HostSetting struct {
	Paths []string
	found string
}

func (s *HostSetting) Kind() SourceKind { return SourceHost }
func (s *HostSetting) Path() string     { return s.found }

func (s *HostSetting) Read(ctx context.Context) (*Document, error) {
	for _, path := range s.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &ConfigError{Kind: SourceHost, Path: path, Err: err}
		}
		s.found = path

		var settings map[string]json.RawMessage
		if err := json.Unmarshal(data, &settings); err != nil {
			return nil, &ConfigError{Kind: SourceHost, Path: path, Err: err}
		}
		raw, ok := settings[HostSettingsKey]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return &Document{}, nil
		}
		var values map[string]any
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, &ConfigError{Kind: SourceHost, Path: path,
				Err: fmt.Errorf("%w: %q must be an object: %v", ErrInvalidConfig, HostSettingsKey, err)}
		}
		return &Document{Values: values, PluginOrder: jsonKeyOrder(raw, "plugins")}, nil
	}
	return &Document{}, nil
}

func isScript(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".go")
}

// jsonKeyOrder returns the keys of the object at data[key] in document order.
func jsonKeyOrder(data []byte, key string) []string {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		name, _ := tok.(string)
		if name != key {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil
			}
			continue
		}
		if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
			return nil
		}
		var keys []string
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return keys
			}
			if k, ok := tok.(string); ok {
				keys = append(keys, k)
			}
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return keys
			}
		}
		return keys
	}
	return nil
}

// yamlKeyOrder returns the keys of the mapping at data[key] in document order.
func yamlKeyOrder(data []byte, key string) []string {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != key {
			continue
		}
		m := root.Content[i+1]
		if m.Kind != yaml.MappingNode {
			return nil
		}
		keys := make([]string, 0, len(m.Content)/2)
		for j := 0; j+1 < len(m.Content); j += 2 {
			keys = append(keys, m.Content[j].Value)
		}
		return keys
	}
	return nil
}
