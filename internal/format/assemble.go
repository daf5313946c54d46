// Package format runs one formatting invocation: load the configuration,
// resolve plugins, assemble the pipeline and process a span of a document.
//
//	Loader.Load → Resolver.Resolve → Assemble → Processor.Process → Result | Failure
//
// Every invocation builds its pipeline from scratch. Nothing is cached.
package format

import (
	"remarkfmt/internal/config"
	"remarkfmt/internal/logging"
	"remarkfmt/internal/plugins"
	"remarkfmt/internal/remark"
)

// Assemble builds a processor from the configuration rules and the resolved
// plugins in order. Plugins that are missing or fail to attach are reported
// and skipped; the processor holds every plugin that attached.
func Assemble(cfg *config.Configuration, resolved []plugins.ResolvedPlugin) (*remark.Processor, []PipelineError) {
	proc := remark.New(cfg.Rules)
	var errs []PipelineError

	for _, rp := range resolved {
		if rp.Package == nil {
			errs = append(errs, PipelineError{Name: rp.Name, Err: plugins.ErrPackageNotFound})
			continue
		}

		settings, ok := effectiveSettings(cfg, rp)
		var err error
		if ok {
			err = proc.Use(rp.Name, rp.Package, settings)
		} else {
			err = proc.Use(rp.Name, rp.Package)
		}
		if err != nil {
			logging.PipelineError("Plugin %s failed to attach: %v", rp.Name, err)
			errs = append(errs, PipelineError{Name: rp.Name, Err: err})
			continue
		}
		logging.PipelineDebug("Attached %s from %s", plugins.CanonicalName(rp.Name), rp.Location)
	}

	if len(errs) > 0 {
		logging.Get(logging.CategoryPipeline).Warn("%d plugin(s) could not be attached", len(errs))
	} else {
		logging.Pipeline("Assembled pipeline with %d plugin(s)", len(resolved))
	}
	return proc, errs
}

// effectiveSettings picks the settings for a plugin: its own pair settings,
// then a top-level key of the same name, then the legacy plugins map. A bare
// true only switches the plugin on and leaves it with its defaults.
func effectiveSettings(cfg *config.Configuration, rp plugins.ResolvedPlugin) (any, bool) {
	if rp.HasSettings {
		return rp.Settings, true
	}
	if v, ok := cfg.Raw[rp.Name]; ok && v != nil {
		return v, v != true
	}
	if v, ok := cfg.LegacyPlugins[rp.Name]; ok && v != nil {
		return v, v != true
	}
	return nil, false
}
