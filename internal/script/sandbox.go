// Package script evaluates Go configuration files and script plugins with the
// yaegi interpreter. Scripts may only import a whitelist of pure stdlib
// packages: no filesystem, network or process access.
package script

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"remarkfmt/internal/logging"
)

var (
	// ErrForbiddenImport is returned when a script imports a package outside
	// the whitelist.
	ErrForbiddenImport = errors.New("forbidden import")
	// ErrMissingSymbol is returned when a script lacks the expected entry point.
	ErrMissingSymbol = errors.New("missing symbol")
	// ErrBadSignature is returned when the entry point has the wrong type.
	ErrBadSignature = errors.New("incorrect signature")
)

// ConfigFunc is the entry point of a configuration script.
const ConfigFunc = "Config"

// PluginFunc is the entry point of a script plugin.
const PluginFunc = "New"

// Sandbox evaluates scripts in a fresh interpreter per call.
type Sandbox struct {
	allowedPackages map[string]bool
	// Timeout bounds each script call. Zero means no limit beyond the caller's context.
	// The interpreter cannot preempt a running function: a call that times out
	// or is canceled returns at once, but its goroutine keeps running until the
	// script itself returns.
	Timeout time.Duration
}

// NewSandbox creates a sandbox with the default import whitelist.
func NewSandbox() *Sandbox {
	return &Sandbox{
		allowedPackages: map[string]bool{
			"bytes":           true,
			"encoding/base64": true,
			"encoding/json":   true,
			"errors":          true,
			"fmt":             true,
			"math":            true,
			"path":            true,
			"regexp":          true,
			"sort":            true,
			"strconv":         true,
			"strings":         true,
			"text/template":   true,
			"time":            true,
			"unicode":         true,
			"unicode/utf8":    true,
		},
	}
}

// Allow adds packages to the import whitelist.
func (s *Sandbox) Allow(pkgs ...string) {
	for _, p := range pkgs {
		s.allowedPackages[p] = true
	}
}

// EvalConfig evaluates the script at path and returns the result of its
// Config function:
//
//	func Config() map[string]interface{}
func (s *Sandbox) EvalConfig(ctx context.Context, path string) (map[string]interface{}, error) {
	timer := logging.StartTimer(logging.CategoryScript, "eval config "+path)
	defer timer.StopWithThreshold(time.Second)

	v, err := s.load(path, ConfigFunc)
	if err != nil {
		return nil, err
	}
	fn, ok := v.(func() map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s must be func() map[string]interface{}", ErrBadSignature, ConfigFunc)
	}

	var out map[string]interface{}
	err = s.call(ctx, func() error {
		out = fn()
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.Script("Evaluated %s (%d key(s))", path, len(out))
	return out, nil
}

// load reads and evaluates the script at path and returns the named symbol.
func (s *Sandbox) load(path, symbol string) (interface{}, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	pkg, err := s.validate(path, src)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}
	if _, err := i.Eval(string(src)); err != nil {
		return nil, fmt.Errorf("code evaluation failed: %w", err)
	}

	v, err := i.Eval(pkg + "." + symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrMissingSymbol, symbol, err)
	}
	logging.ScriptDebug("Loaded %s.%s from %s", pkg, symbol, path)
	return v.Interface(), nil
}

// validate parses the script header and checks its imports against the
// whitelist. It returns the package name.
func (s *Sandbox) validate(path string, src []byte) (string, error) {
	f, err := parser.ParseFile(token.NewFileSet(), path, src, parser.ImportsOnly)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}

	var forbidden []string
	for _, imp := range f.Imports {
		pkg, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return "", fmt.Errorf("parse %s: bad import %s", path, imp.Path.Value)
		}
		if !s.allowedPackages[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return "", fmt.Errorf("%w: %v (allowed: %v)", ErrForbiddenImport, forbidden, s.allowed())
	}
	return f.Name.Name, nil
}

// call runs fn under the context and the sandbox timeout. Panics inside the
// script become errors.
func (s *Sandbox) call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("script execution interrupted: %w", err)
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	// Buffered so an abandoned call can still finish and exit.
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("script panic: %v", r)
			}
		}()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("script execution interrupted: %w", ctx.Err())
	}
}

func (s *Sandbox) allowed() []string {
	pkgs := make([]string, 0, len(s.allowedPackages))
	for pkg := range s.allowedPackages {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}
