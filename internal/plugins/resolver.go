package plugins

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"remarkfmt/internal/config"
	"remarkfmt/internal/logging"
	"remarkfmt/internal/script"
)

// ResolvedPlugin is the outcome of looking up one declared plugin. Package is
// nil when no search location provides it.
type ResolvedPlugin struct {
	Name        string
	Package     *Plugin
	Settings    any
	HasSettings bool
	// Location is the file the package was loaded from, or "bundled".
	Location string
}

// ScriptLoader loads script plugins from disk.
type ScriptLoader interface {
	LoadPlugin(ctx context.Context, path string) (*script.Plugin, error)
}

// Resolver looks up plugin packages for one workspace. Results are never
// cached between calls.
type Resolver struct {
	Root     string
	UserDir  string
	Registry *Registry
	Scripts  ScriptLoader
}

// NewResolver creates a resolver rooted at the workspace root.
func NewResolver(root string, registry *Registry, scripts ScriptLoader) *Resolver {
	return &Resolver{
		Root:     root,
		UserDir:  config.UserPluginDir(),
		Registry: registry,
		Scripts:  scripts,
	}
}

type candidate struct {
	path   string
	origin Origin
}

// SearchPaths lists the files that may provide the named plugin, in order.
func (r *Resolver) SearchPaths(name string) []string {
	cands := r.candidates(name)
	paths := make([]string, len(cands))
	for i, c := range cands {
		paths[i] = c.path
	}
	return paths
}

func (r *Resolver) candidates(name string) []candidate {
	pkg := CanonicalName(name)
	var out []candidate
	if r.Root != "" {
		dir := config.WorkspacePluginDir(r.Root)
		out = append(out,
			candidate{filepath.Join(dir, pkg+".go"), OriginWorkspace},
			candidate{filepath.Join(dir, pkg, "plugin.go"), OriginWorkspace},
		)
	}
	if r.UserDir != "" {
		out = append(out,
			candidate{filepath.Join(r.UserDir, pkg+".go"), OriginUser},
			candidate{filepath.Join(r.UserDir, pkg, "plugin.go"), OriginUser},
		)
	}
	return out
}

// Resolve looks up every spec concurrently. The result has one entry per
// spec in input order. The only error is cancellation of ctx.
func (r *Resolver) Resolve(ctx context.Context, specs []config.PluginSpec) ([]ResolvedPlugin, error) {
	timer := logging.StartTimer(logging.CategoryPlugins, "resolve plugins")
	defer timer.Stop()

	out := make([]ResolvedPlugin, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			rp, err := r.resolveOne(gctx, spec)
			if err != nil {
				return err
			}
			out[i] = rp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) resolveOne(ctx context.Context, spec config.PluginSpec) (ResolvedPlugin, error) {
	rp := ResolvedPlugin{Name: spec.Name}
	if err := ctx.Err(); err != nil {
		return rp, err
	}
	if spec.HasSettings {
		rp.Settings = spec.Settings
		rp.HasSettings = true
	}

	for _, c := range r.candidates(spec.Name) {
		if _, err := os.Stat(c.path); err != nil {
			continue
		}
		rp.Location = c.path
		rp.Package = r.load(ctx, spec.Name, c)
		logging.Plugins("Resolved %s to %s", CanonicalName(spec.Name), c.path)
		return rp, nil
	}

	if r.Registry != nil {
		if p := r.Registry.Get(spec.Name); p != nil {
			rp.Package = p
			rp.Location = string(OriginBundled)
			logging.PluginsDebug("Resolved %s to bundled plugin", CanonicalName(spec.Name))
			return rp, nil
		}
	}

	logging.PluginsWarn("Plugin %s not found", CanonicalName(spec.Name))
	return rp, nil
}

func (r *Resolver) load(ctx context.Context, name string, c candidate) *Plugin {
	if r.Scripts == nil {
		return failedPackage(name, c.origin, c.path, ErrNoScriptLoader)
	}
	sp, err := r.Scripts.LoadPlugin(ctx, c.path)
	if err != nil {
		logging.PluginsWarn("Failed to load %s: %v", c.path, err)
		return failedPackage(name, c.origin, c.path, err)
	}
	return &Plugin{
		Name:        name,
		Description: "script plugin " + c.path,
		Attacher:    sp,
		Origin:      c.origin,
		Path:        c.path,
	}
}
