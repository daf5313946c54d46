package format

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remarkfmt/internal/config"
	"remarkfmt/internal/editor"
	"remarkfmt/internal/plugins"
	"remarkfmt/internal/plugins/bundled"
	"remarkfmt/internal/remark"
)

type staticLoader struct {
	cfg *config.Configuration
	err error
}

func (l staticLoader) Load(context.Context) (*config.Configuration, error) {
	return l.cfg, l.err
}

type countingResolver struct {
	registry *plugins.Registry
	calls    atomic.Int32
}

func (r *countingResolver) Resolve(ctx context.Context, specs []config.PluginSpec) ([]plugins.ResolvedPlugin, error) {
	r.calls.Add(1)
	res := &plugins.Resolver{Registry: r.registry}
	return res.Resolve(ctx, specs)
}

// recorder is a plugin that remembers the settings it was attached with and
// whether its transformer ran.
type recorder struct {
	settings []any
	ran      atomic.Bool
}

func (rec *recorder) plugin(name string) *plugins.Plugin {
	return &plugins.Plugin{
		Name: name,
		Attacher: remark.AttacherFunc(func(proc *remark.Processor, settings any) error {
			rec.settings = append(rec.settings, settings)
			proc.AddTransformer(func(context.Context, *remark.Tree, *remark.VFile) error {
				rec.ran.Store(true)
				return nil
			})
			return nil
		}),
	}
}

func warnPlugin(name, reason string) *plugins.Plugin {
	return &plugins.Plugin{
		Name: name,
		Attacher: remark.AttacherFunc(func(proc *remark.Processor, _ any) error {
			proc.AddTransformer(func(_ context.Context, tree *remark.Tree, file *remark.VFile) error {
				file.Message(reason, remark.Location{}, name)
				return nil
			})
			return nil
		}),
	}
}

func newRunner(cfg *config.Configuration, ps ...*plugins.Plugin) (*Runner, *countingResolver) {
	reg := plugins.NewRegistry()
	for _, p := range ps {
		reg.MustRegister(p)
	}
	res := &countingResolver{registry: reg}
	return &Runner{Config: staticLoader{cfg: cfg}, Resolver: res}, res
}

func cfgWith(plugins []config.PluginSpec, rules map[string]any) *config.Configuration {
	if rules == nil {
		rules = map[string]any{}
	}
	return &config.Configuration{Plugins: plugins, Rules: rules, Raw: map[string]any{}}
}

func doc(text string) *editor.TextDocument {
	return editor.NewTextDocument("README.md", text)
}

func failureOf(t *testing.T, err error) *Failure {
	t.Helper()
	var f *Failure
	require.True(t, errors.As(err, &f), "want *Failure, got %T: %v", err, err)
	require.NotEmpty(t, f.Message)
	return f
}

func TestAssemble_OrderAndSettingsPrecedence(t *testing.T) {
	a, b, c, d := &recorder{}, &recorder{}, &recorder{}, &recorder{}
	cfg := &config.Configuration{
		Rules: map[string]any{},
		Raw: map[string]any{
			"a": map[string]any{"from": "raw"},
			"b": map[string]any{"from": "raw"},
		},
		LegacyPlugins: map[string]any{
			"a": map[string]any{"from": "legacy"},
			"b": map[string]any{"from": "legacy"},
			"c": map[string]any{"from": "legacy"},
		},
	}
	resolved := []plugins.ResolvedPlugin{
		{Name: "a", Package: a.plugin("a"), Settings: map[string]any{"from": "pair"}, HasSettings: true},
		{Name: "b", Package: b.plugin("b")},
		{Name: "c", Package: c.plugin("c")},
		{Name: "d", Package: d.plugin("d")},
	}

	proc, errs := Assemble(cfg, resolved)
	require.Empty(t, errs)
	assert.Equal(t, []string{"a", "b", "c", "d"}, proc.Plugins())

	assert.Equal(t, []any{map[string]any{"from": "pair"}}, a.settings)
	assert.Equal(t, []any{map[string]any{"from": "raw"}}, b.settings)
	assert.Equal(t, []any{map[string]any{"from": "legacy"}}, c.settings)
	assert.Equal(t, []any{nil}, d.settings)
}

func TestAssemble_PairWithNilSettingsWins(t *testing.T) {
	a := &recorder{}
	cfg := cfgWith(nil, nil)
	cfg.Raw["a"] = map[string]any{"from": "raw"}

	_, errs := Assemble(cfg, []plugins.ResolvedPlugin{
		{Name: "a", Package: a.plugin("a"), HasSettings: true},
	})
	require.Empty(t, errs)
	assert.Equal(t, []any{nil}, a.settings)
}

func TestAssemble_LegacyTrueUsesDefaults(t *testing.T) {
	rec := &recorder{}
	cfg := cfgWith(nil, nil)
	cfg.LegacyPlugins = map[string]any{"toc": true, "rec": true}

	proc, errs := Assemble(cfg, []plugins.ResolvedPlugin{
		{Name: "toc", Package: bundled.TOCPlugin()},
		{Name: "rec", Package: rec.plugin("rec")},
	})
	require.Empty(t, errs)
	assert.Equal(t, []any{nil}, rec.settings)

	file, err := proc.Process(context.Background(), "# Doc\n\n## Contents\n\n## Usage\n")
	require.NoError(t, err)
	assert.Equal(t, "# Doc\n\n## Contents\n\n- [Usage](#usage)\n\n## Usage\n", file.Contents)
}

func TestAssemble_CollectsErrorsAndContinues(t *testing.T) {
	ok := &recorder{}
	failing := &plugins.Plugin{
		Name: "bad",
		Attacher: remark.AttacherFunc(func(*remark.Processor, any) error {
			return errors.New("malformed settings")
		}),
	}
	panicking := &plugins.Plugin{
		Name: "boom",
		Attacher: remark.AttacherFunc(func(*remark.Processor, any) error {
			panic("kaboom")
		}),
	}

	proc, errs := Assemble(cfgWith(nil, nil), []plugins.ResolvedPlugin{
		{Name: "missing"},
		{Name: "bad", Package: failing},
		{Name: "boom", Package: panicking},
		{Name: "ok", Package: ok.plugin("ok")},
	})

	require.Len(t, errs, 3)
	assert.Equal(t, "missing", errs[0].Name)
	assert.True(t, errs[0].NotFound())
	assert.ErrorIs(t, errs[0], plugins.ErrPackageNotFound)
	assert.Equal(t, "[bad]: malformed settings", errs[1].Error())
	assert.False(t, errs[1].NotFound())
	assert.Equal(t, "[boom]: kaboom", errs[2].Error())
	assert.Equal(t, []string{"ok"}, proc.Plugins())
}

func TestRun_NoPluginsSkipsResolver(t *testing.T) {
	r, res := newRunner(cfgWith([]config.PluginSpec{}, nil))
	result, err := r.Run(context.Background(), doc("# Title\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n", result.Content)
	assert.Equal(t, int32(0), res.calls.Load())
}

func TestRun_BulletRule(t *testing.T) {
	r, _ := newRunner(cfgWith(nil, map[string]any{"bullet": "*"}))
	d := doc("- a\n- b\n")

	result, err := r.Run(context.Background(), d, nil)
	require.NoError(t, err)
	assert.Equal(t, "* a\n* b\n", result.Content)
	assert.Equal(t, editor.NewRange(0, 0, 2, 0), result.Range)
}

func TestRun_MissingPackageShortCircuits(t *testing.T) {
	cfg := cfgWith([]config.PluginSpec{{Name: "toc"}}, nil)
	r, res := newRunner(cfg)
	input := "-   a\n"

	result, err := r.Run(context.Background(), doc(input), nil)
	assert.Nil(t, result)
	f := failureOf(t, err)
	assert.Equal(t, int32(1), res.calls.Load())
	assert.Contains(t, f.Message, "remark-toc")
	assert.Contains(t, f.Message, "Install")
	assert.True(t, strings.HasPrefix(f.Message, "Error: [toc]: package not found."), f.Message)
	require.Len(t, f.Pipeline, 1)
}

func TestRun_ShortCircuitNeverExecutes(t *testing.T) {
	rec := &recorder{}
	cfg := cfgWith([]config.PluginSpec{{Name: "rec"}, {Name: "gone"}}, nil)
	r, _ := newRunner(cfg, rec.plugin("rec"))

	_, err := r.Run(context.Background(), doc("text\n"), nil)
	f := failureOf(t, err)
	assert.Len(t, rec.settings, 1, "the found plugin is still attached")
	assert.False(t, rec.ran.Load(), "the pipeline must not run")
	assert.Equal(t, 1, strings.Count(f.Message, "\n"))
}

func TestRun_FailureMessageOneLinePerError(t *testing.T) {
	bad := &plugins.Plugin{
		Name: "bad",
		Attacher: remark.AttacherFunc(func(*remark.Processor, any) error {
			return errors.New("bad option")
		}),
	}
	cfg := cfgWith([]config.PluginSpec{{Name: "x"}, {Name: "bad"}}, nil)
	r, _ := newRunner(cfg, bad)

	_, err := r.Run(context.Background(), doc("text\n"), nil)
	f := failureOf(t, err)
	lines := strings.Split(strings.TrimSuffix(f.Message, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Error: [x]: package not found. Install remark-x"))
	assert.Equal(t, "[bad]: bad option", lines[1])
}

func TestRun_WarningsDoNotFail(t *testing.T) {
	cfg := cfgWith([]config.PluginSpec{{Name: "warn"}}, nil)
	r, _ := newRunner(cfg, warnPlugin("warn", "Consider a shorter title"))

	result, err := r.Run(context.Background(), doc("# Title\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n", result.Content)
	require.Len(t, result.Messages, 1)
}

func TestRun_ErrorSubstringFailsWithAllDiagnostics(t *testing.T) {
	cfg := cfgWith([]config.PluginSpec{{Name: "first"}, {Name: "second"}}, nil)
	r, _ := newRunner(cfg,
		warnPlugin("first", "just a note"),
		warnPlugin("second", "Found an ERROR here"),
	)

	result, err := r.Run(context.Background(), doc("text\n"), nil)
	assert.Nil(t, result)
	f := failureOf(t, err)
	assert.Equal(t, "1:1: warning: just a note [first]\n1:1: warning: Found an ERROR here [second]\n", f.Message)
	assert.Len(t, f.Diagnostics, 2)
}

func TestRun_Idempotent(t *testing.T) {
	r, _ := newRunner(cfgWith(nil, nil))
	clean := "# Title\n\nSome _text_ and **bold**.\n\n- one\n- two\n\n```go\nx := 1\n```\n"

	for i := 0; i < 2; i++ {
		result, err := r.Run(context.Background(), doc(clean), nil)
		require.NoError(t, err)
		assert.Equal(t, clean, result.Content, "pass %d", i+1)
	}
}

func TestRun_Range(t *testing.T) {
	r, _ := newRunner(cfgWith(nil, map[string]any{"bullet": "+"}))
	d := doc("# Title\n\n* a\n* b\n\nafter\n")
	rng := editor.NewRange(2, 0, 4, 0)

	result, err := r.Run(context.Background(), d, &rng)
	require.NoError(t, err)
	assert.Equal(t, rng, result.Range)
	assert.Equal(t, "+ a\n+ b\n", result.Content)

	text, err := editor.ApplyEdits(d, []editor.TextEdit{editor.Replace(result.Range, result.Content)})
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\n+ a\n+ b\n\nafter\n", text)
}

func TestRun_ConfigErrorIsFailure(t *testing.T) {
	cfgErr := &config.ConfigError{Kind: config.SourceStructured, Path: ".remarkrc", Err: errors.New("bad")}
	r := &Runner{Config: staticLoader{err: cfgErr}}

	_, err := r.Run(context.Background(), doc("x\n"), nil)
	f := failureOf(t, err)
	assert.Contains(t, f.Message, "Error reading JSON/YAML config")
	var target *config.ConfigError
	assert.ErrorAs(t, err, &target)
}

func TestRun_InvalidRulesIsFailure(t *testing.T) {
	r, _ := newRunner(cfgWith(nil, map[string]any{"bullet": "x"}))
	_, err := r.Run(context.Background(), doc("- a\n"), nil)
	f := failureOf(t, err)
	assert.Contains(t, f.Message, "invalid settings")
	assert.ErrorIs(t, err, remark.ErrInvalidRule)
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, _ := newRunner(cfgWith([]config.PluginSpec{{Name: "x"}}, nil))

	_, err := r.Run(ctx, doc("x\n"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	var f *Failure
	assert.False(t, errors.As(err, &f))
}

func TestRun_NilResolverTreatsPluginsAsMissing(t *testing.T) {
	r := &Runner{Config: staticLoader{cfg: cfgWith([]config.PluginSpec{{Name: "toc"}}, nil)}}
	_, err := r.Run(context.Background(), doc("x\n"), nil)
	f := failureOf(t, err)
	assert.Contains(t, f.Message, "remark-toc")
}

// isolate points every user-level lookup at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv(config.EnvSettings, "")
	t.Setenv(config.EnvPluginPath, filepath.Join(home, "plugins"))
}

func TestNewRunner_Workspace(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	rc := `{"plugins": ["toc", ["emoji", {"mode": "unicode"}]], "settings": {"bullet": "*"}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, ".remarkrc.json"), []byte(rc), 0o644))

	input := "# Doc\n\n## Contents\n\n## Usage :tada:\n\n## API\n"
	result, err := NewRunner(root).Run(context.Background(), doc(input), nil)
	require.NoError(t, err)

	// toc runs before emoji, so the entry keeps the text it saw.
	want := "# Doc\n\n## Contents\n\n* [Usage](#usage)\n* [API](#api)\n\n## Usage 🎉\n\n## API\n"
	if diff := cmp.Diff(want, result.Content); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRunner_HostSettings(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	settings := filepath.Join(root, config.DirName, "settings.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(settings), 0o755))
	host := `{"remark.format": {"plugins": ["lint"], "rules": {"bullet": "+"}}}`
	require.NoError(t, os.WriteFile(settings, []byte(host), 0o644))

	result, err := NewRunner(root).Run(context.Background(), doc("# A\n\n- x\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "# A\n\n+ x\n", result.Content)
}

func TestNewRunner_WorkspaceScriptPlugin(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	pluginPath := filepath.Join(root, config.DirName, "plugins", "remark-upper.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(pluginPath), 0o755))
	src := `package upper

import "strings"

func New(settings interface{}) (func(string) (string, error), error) {
	return func(doc string) (string, error) { return strings.ToUpper(doc), nil }, nil
}
`
	require.NoError(t, os.WriteFile(pluginPath, []byte(src), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".remarkrc.yml"), []byte("plugins:\n  - upper\n"), 0o644))

	result, err := NewRunner(root).Run(context.Background(), doc("hello\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "HELLO\n", result.Content)
}

func TestNewRunner_TOCScenarioWithoutPackage(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".remarkrc"), []byte(`{"plugins": ["nope"], "settings": {}}`), 0o644))

	_, err := NewRunner(root).Run(context.Background(), doc("- a\n"), nil)
	f := failureOf(t, err)
	assert.Contains(t, f.Message, "remark-nope")
}
