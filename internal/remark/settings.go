package remark

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidRule is returned when a rule setting has an unsupported value.
var ErrInvalidRule = errors.New("invalid rule")

// Rules are the global stringify settings applied to every document.
type Rules struct {
	Bullet              byte   // "-", "*" or "+"
	BulletOrdered       byte   // "." or ")"
	Emphasis            byte   // "_" or "*"
	Strong              byte   // "*" or "_"
	Fence               byte   // "`" or "~"
	Fences              bool   // always fence code blocks
	Rule                byte   // "*", "-" or "_"
	RuleRepetition      int    // at least 3
	RuleSpaces          bool   // "* * *" instead of "***"
	Setext              bool   // setext headings for levels 1 and 2
	CloseAtx            bool   // "# Title #"
	ListItemIndent      string // "1", "tab" or "mixed"
	IncrementListMarker bool
	TablePipeAlign      bool
	Break               string // "backslash" or "spaces"
}

// DefaultRules returns the stringify defaults.
func DefaultRules() Rules {
	return Rules{
		Bullet:              '-',
		BulletOrdered:       '.',
		Emphasis:            '_',
		Strong:              '*',
		Fence:               '`',
		Rule:                '*',
		RuleRepetition:      3,
		ListItemIndent:      "1",
		IncrementListMarker: true,
		TablePipeAlign:      true,
		Break:               "backslash",
	}
}

// ParseRules overlays a settings map on DefaultRules. Unknown keys are ignored
// so plugin-specific entries can share the map.
func ParseRules(settings map[string]any) (Rules, error) {
	r := DefaultRules()
	if len(settings) == 0 {
		return r, nil
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := settings[key]
		var err error
		switch key {
		case "bullet":
			r.Bullet, err = charSetting(key, v, "-*+")
		case "bulletOrdered":
			r.BulletOrdered, err = charSetting(key, v, ".)")
		case "emphasis":
			r.Emphasis, err = charSetting(key, v, "_*")
		case "strong":
			r.Strong, err = charSetting(key, v, "*_")
		case "fence":
			r.Fence, err = charSetting(key, v, "`~")
		case "fences":
			r.Fences, err = boolSetting(key, v)
		case "rule":
			r.Rule, err = charSetting(key, v, "*-_")
		case "ruleRepetition":
			r.RuleRepetition, err = intSetting(key, v)
			if err == nil && r.RuleRepetition < 3 {
				err = fmt.Errorf("%w: ruleRepetition must be >= 3, got %d", ErrInvalidRule, r.RuleRepetition)
			}
		case "ruleSpaces":
			r.RuleSpaces, err = boolSetting(key, v)
		case "setext":
			r.Setext, err = boolSetting(key, v)
		case "closeAtx":
			r.CloseAtx, err = boolSetting(key, v)
		case "listItemIndent":
			r.ListItemIndent, err = listItemIndentSetting(v)
		case "incrementListMarker":
			r.IncrementListMarker, err = boolSetting(key, v)
		case "tablePipeAlign":
			r.TablePipeAlign, err = boolSetting(key, v)
		case "break":
			r.Break, err = stringSetting(key, v, "backslash", "spaces")
		}
		if err != nil {
			return r, err
		}
	}
	return r, nil
}

func charSetting(key string, v any, allowed string) (byte, error) {
	s, ok := v.(string)
	if !ok || len(s) != 1 || !strings.Contains(allowed, s) {
		return 0, fmt.Errorf("%w: %s must be one of %q, got %v", ErrInvalidRule, key, strings.Split(allowed, ""), v)
	}
	return s[0], nil
}

func boolSetting(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean, got %v", ErrInvalidRule, key, v)
	}
	return b, nil
}

func intSetting(key string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidRule, key, v)
}

func stringSetting(key string, v any, allowed ...string) (string, error) {
	s, ok := v.(string)
	if ok {
		for _, a := range allowed {
			if s == a {
				return s, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s must be one of %q, got %v", ErrInvalidRule, key, allowed, v)
}

func listItemIndentSetting(v any) (string, error) {
	if n, err := intSetting("listItemIndent", v); err == nil && n == 1 {
		return "1", nil
	}
	return stringSetting("listItemIndent", v, "1", "tab", "mixed")
}
