package format

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"

	"remarkfmt/internal/config"
	"remarkfmt/internal/editor"
	"remarkfmt/internal/logging"
	"remarkfmt/internal/plugins"
	"remarkfmt/internal/plugins/bundled"
	"remarkfmt/internal/remark"
	"remarkfmt/internal/script"
)

// ConfigLoader produces the configuration for one invocation.
type ConfigLoader interface {
	Load(ctx context.Context) (*config.Configuration, error)
}

// PluginResolver looks up packages for declared plugins, in order.
type PluginResolver interface {
	Resolve(ctx context.Context, specs []config.PluginSpec) ([]plugins.ResolvedPlugin, error)
}

// Result is a successful invocation: Content replaces the text in Range.
type Result struct {
	Content string
	Range   editor.Range
	// Messages holds diagnostics that did not amount to a failure.
	Messages []*remark.Message
}

// Runner performs formatting invocations. A Runner holds no per-invocation
// state and may be used concurrently.
type Runner struct {
	Config   ConfigLoader
	Resolver PluginResolver
}

// NewRunner wires a runner for the workspace at root with the bundled
// plugins and a script sandbox for Go configs and plugins.
func NewRunner(root string) *Runner {
	sandbox := script.NewSandbox()
	return &Runner{
		Config:   config.NewLoader(root, sandbox),
		Resolver: plugins.NewResolver(root, bundled.NewRegistry(), sandbox),
	}
}

// Run formats rng of doc, or the whole document when rng is nil. Every
// failure is returned as a *Failure except cancellation of ctx.
func (r *Runner) Run(ctx context.Context, doc editor.Document, rng *editor.Range) (*Result, error) {
	id := uuid.NewString()
	log := logging.WithRequestID(logging.CategoryFormat, id)
	timer := logging.StartTimer(logging.CategoryFormat, "format "+doc.URI())
	defer timer.Stop()

	cfg, err := r.Config.Load(ctx)
	if err != nil {
		return nil, r.fail(ctx, log, err)
	}
	log.Debug("Configuration from %s %s: %d plugin(s)", cfg.Source, cfg.Path, len(cfg.Plugins))

	resolved, err := r.resolve(ctx, cfg.Plugins)
	if err != nil {
		return nil, r.fail(ctx, log, err)
	}

	proc, errs := Assemble(cfg, resolved)
	if len(errs) > 0 {
		log.Warn("Pipeline not executed: %d error(s)", len(errs))
		return nil, pipelineFailure(errs)
	}

	var span editor.Range
	var text string
	if rng == nil {
		last := doc.LineAt(doc.LineCount() - 1)
		span = editor.NewRange(0, 0, last.Number, utf8.RuneCountInString(last.Text))
		text = doc.Text()
	} else {
		span = *rng
		text = doc.GetText(span)
	}

	file, err := proc.Process(ctx, text)
	if err != nil {
		return nil, r.fail(ctx, log, err)
	}
	if len(file.Messages) > 0 && hasErrorText(file.Messages) {
		log.Warn("Processing reported %d diagnostic(s) with errors", len(file.Messages))
		return nil, diagnosticFailure(file.Messages)
	}
	for _, m := range file.Messages {
		log.Info("%s", m.String())
	}

	log.Debug("Formatted %s (%s)", doc.URI(), span)
	return &Result{Content: file.Contents, Range: span, Messages: file.Messages}, nil
}

// resolve skips the resolver entirely when nothing is declared.
func (r *Runner) resolve(ctx context.Context, specs []config.PluginSpec) ([]plugins.ResolvedPlugin, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	if r.Resolver == nil {
		out := make([]plugins.ResolvedPlugin, len(specs))
		for i, s := range specs {
			out[i] = plugins.ResolvedPlugin{Name: s.Name, Settings: s.Settings, HasSettings: s.HasSettings}
		}
		return out, nil
	}
	return r.Resolver.Resolve(ctx, specs)
}

func (r *Runner) fail(ctx context.Context, log *logging.Logger, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		log.Warn("Configuration error: %v", err)
	} else {
		log.Error("Invocation failed: %v", err)
	}
	return causeFailure(err)
}
