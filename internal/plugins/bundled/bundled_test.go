package bundled

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remarkfmt/internal/plugins"
	"remarkfmt/internal/remark"
)

func process(t *testing.T, input string, uses ...func(*remark.Processor) error) *remark.VFile {
	t.Helper()
	proc := remark.New(nil)
	for _, use := range uses {
		require.NoError(t, use(proc))
	}
	file, err := proc.Process(context.Background(), input)
	require.NoError(t, err)
	return file
}

func with(p *plugins.Plugin, settings ...any) func(*remark.Processor) error {
	return func(proc *remark.Processor) error {
		return proc.Use(p.Name, p, settings...)
	}
}

func messages(file *remark.VFile) []string {
	out := make([]string, len(file.Messages))
	for i, m := range file.Messages {
		out[i] = m.String()
	}
	return out
}

func TestRegisterAll(t *testing.T) {
	reg := plugins.NewRegistry()
	require.NoError(t, RegisterAll(reg))
	assert.Equal(t, []string{"emoji", "frontmatter", "gfm", "lint", "toc"}, reg.Names())
	for _, p := range reg.All() {
		assert.Equal(t, plugins.OriginBundled, p.Origin)
		assert.NotEmpty(t, p.Description)
	}

	assert.Error(t, RegisterAll(reg), "registering twice must fail")
	assert.Equal(t, 5, NewRegistry().Count())
}

const tocInput = `# Doc

## Contents

old entry

## Install

### Usage

## API
`

func TestTOC(t *testing.T) {
	file := process(t, tocInput, with(TOCPlugin()))
	want := `# Doc

## Contents

- [Install](#install)
  - [Usage](#usage)
- [API](#api)

## Install

### Usage

## API
`
	assert.Equal(t, want, file.Contents)

	again := process(t, file.Contents, with(TOCPlugin()))
	assert.Equal(t, want, again.Contents)
}

func TestTOC_KeepsDefinitions(t *testing.T) {
	input := "# Doc\n\n## Contents\n\n- [Old](#old)\n\n[ref]: /r\n\n## Usage\n\nSee [ref].\n"
	want := "# Doc\n\n## Contents\n\n- [Usage](#usage)\n\n[ref]: /r\n\n## Usage\n\nSee [ref].\n"

	file := process(t, input, with(TOCPlugin()))
	assert.Equal(t, want, file.Contents)
}

func TestTOC_Settings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		settings map[string]any
		want     string
	}{
		{
			name:     "max depth",
			input:    tocInput,
			settings: map[string]any{"maxDepth": float64(2)},
			want:     "# Doc\n\n## Contents\n\n- [Install](#install)\n- [API](#api)\n\n## Install\n\n### Usage\n\n## API\n",
		},
		{
			name:     "loose",
			input:    tocInput,
			settings: map[string]any{"tight": false},
			want:     "# Doc\n\n## Contents\n\n- [Install](#install)\n\n  - [Usage](#usage)\n\n- [API](#api)\n\n## Install\n\n### Usage\n\n## API\n",
		},
		{
			name:     "ordered",
			input:    "## TOC\n\n## A\n\n## B\n",
			settings: map[string]any{"ordered": true},
			want:     "## TOC\n\n1. [A](#a)\n2. [B](#b)\n\n## A\n\n## B\n",
		},
		{
			name:     "custom heading",
			input:    "# Overview\n\n## One\n",
			settings: map[string]any{"heading": "overview"},
			want:     "# Overview\n\n- [One](#one)\n\n## One\n",
		},
		{
			name:  "slugs",
			input: "## Table of Contents\n\n## Hello, World!\n\n## Intro\n\n## Intro\n",
			want:  "## Table of Contents\n\n- [Hello, World!](#hello-world)\n- [Intro](#intro)\n- [Intro](#intro-1)\n\n## Hello, World!\n\n## Intro\n\n## Intro\n",
		},
		{
			name:  "no matching heading",
			input: "# Title\n\ntext\n",
			want:  "# Title\n\ntext\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var settings []any
			if tt.settings != nil {
				settings = append(settings, tt.settings)
			}
			file := process(t, tt.input, with(TOCPlugin(), settings...))
			assert.Equal(t, tt.want, file.Contents)
		})
	}
}

func TestTOC_InvalidSettings(t *testing.T) {
	proc := remark.New(nil)
	p := TOCPlugin()

	err := proc.Use("toc", p, map[string]any{"heading": "("})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid heading expression")

	err = proc.Use("toc", p, map[string]any{"maxDepth": 9})
	require.Error(t, err)

	err = proc.Use("toc", p, map[string]any{"depth": 2})
	assert.ErrorIs(t, err, plugins.ErrUnknownSetting)
	assert.Empty(t, proc.Plugins())
}

func TestSlugger(t *testing.T) {
	s := newSlugger()
	assert.Equal(t, "getting-started", s.slug("Getting Started"))
	assert.Equal(t, "getting-started-1", s.slug("Getting Started"))
	assert.Equal(t, "getting-started-2", s.slug("getting started"))
	assert.Equal(t, "api_v2--notes", s.slug("API_v2 & Notes"))
	assert.Equal(t, "café", s.slug("Café"))
}

func TestEmoji(t *testing.T) {
	tests := []struct {
		name     string
		settings any
		input    string
		want     string
	}{
		{name: "unicode by default", input: "Ship it :tada:\n", want: "Ship it 🎉\n"},
		{name: "unknown shortcode kept", input: "a :not_an_emoji: b\n", want: "a :not_an_emoji: b\n"},
		{name: "colon text kept", input: "Note: this\n", want: "Note: this\n"},
		{
			name:     "shortcode normalizes alias",
			settings: map[string]any{"mode": "shortcode"},
			input:    ":thumbsup: and :+1:\n",
			want:     ":+1: and :+1:\n",
		},
		{
			name:     "custom",
			settings: map[string]any{"custom": map[string]any{"shipit": "🚀"}},
			input:    "go :shipit:\n",
			want:     "go 🚀\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var settings []any
			if tt.settings != nil {
				settings = append(settings, tt.settings)
			}
			file := process(t, tt.input, with(EmojiPlugin(), settings...))
			assert.Equal(t, tt.want, file.Contents)
		})
	}

	err := remark.New(nil).Use("emoji", EmojiPlugin(), map[string]any{"mode": "html"})
	assert.ErrorIs(t, err, plugins.ErrInvalidSettings)
}

func TestGFM(t *testing.T) {
	input := "- [x] done\n- [ ] todo\n\n~~gone~~\n\n|a|b|\n|-|-|\n|1|2|\n"
	file := process(t, input, with(GFMPlugin()))
	assert.Equal(t, "- [x] done\n- [ ] todo\n\n~~gone~~\n\n| a   | b   |\n| --- | --- |\n| 1   | 2   |\n", file.Contents)

	file = process(t, "~~gone~~\n", with(GFMPlugin(), map[string]any{"strikethrough": false}))
	assert.Equal(t, "~~gone~~\n", file.Contents)
}

func TestFrontmatter(t *testing.T) {
	input := "---\ntitle: Hello\ntags: [a, b]\n---\n# Heading\n"
	file := process(t, input, with(FrontmatterPlugin()))
	assert.Equal(t, "---\ntitle: Hello\ntags: [a, b]\n---\n\n# Heading\n", file.Contents)
	assert.Empty(t, file.Messages)

	file = process(t, input, with(FrontmatterPlugin(), map[string]any{"required": []any{"title", "date"}}))
	require.Len(t, file.Messages, 1)
	assert.Contains(t, file.Messages[0].String(), "Missing front matter field `date`")
	assert.Equal(t, remark.SeverityWarning, file.Messages[0].Severity)
	assert.Equal(t, "frontmatter", file.Messages[0].Source)
	assert.Equal(t, "required", file.Messages[0].RuleID)
}

func TestFrontmatter_InvalidYAML(t *testing.T) {
	file := process(t, "---\ntitle: [unclosed\n---\ntext\n", with(FrontmatterPlugin()))
	require.Len(t, file.Messages, 1)
	m := file.Messages[0]
	assert.Equal(t, remark.SeverityError, m.Severity)
	assert.True(t, strings.HasPrefix(m.String(), "1:1-3:4: error: Invalid YAML front matter"), m.String())
	assert.True(t, file.HasErrors())
}

func TestFrontmatter_Missing(t *testing.T) {
	file := process(t, "text\n", with(FrontmatterPlugin()))
	assert.Empty(t, file.Messages)

	file = process(t, "text\n", with(FrontmatterPlugin(), map[string]any{"required": []any{"title"}}))
	assert.Equal(t, []string{"1:1: warning: Missing front matter [frontmatter:missing]"}, messages(file))
}

const lintInput = `# One

### Skipped

## Same

## same

# Two

[empty]()
`

func TestLint(t *testing.T) {
	file := process(t, lintInput, with(LintPlugin()))
	assert.Equal(t, lintInput, file.Contents, "lint never rewrites the document")

	var rules []string
	for _, m := range file.Messages {
		assert.Equal(t, remark.SeverityWarning, m.Severity)
		assert.Equal(t, "lint", m.Source)
		rules = append(rules, m.RuleID)
	}
	assert.ElementsMatch(t, []string{
		RuleNoEmptyURL,
		RuleHeadingIncrement,
		RuleNoDuplicateHeadings,
		RuleNoMultipleTopLevel,
	}, rules)
	assert.False(t, file.HasErrors())

	for _, m := range messages(file) {
		if strings.Contains(m, RuleNoDuplicateHeadings) {
			assert.Equal(t, "7:4-7:8: warning: Don't use headings with similar content (5:4) [lint:no-duplicate-headings]", m)
		}
	}
}

func TestLint_SeverityAndDisable(t *testing.T) {
	settings := map[string]any{
		"severity": "error",
		"disable":  []any{RuleNoEmptyURL, RuleNoMultipleTopLevel, RuleNoDuplicateHeadings},
	}
	file := process(t, lintInput, with(LintPlugin(), settings))
	assert.Equal(t, []string{
		"3:5-3:12: error: Heading levels should increment by one level at a time, expected 2 [lint:heading-increment]",
	}, messages(file))
	assert.True(t, file.HasErrors())

	err := remark.New(nil).Use("lint", LintPlugin(), map[string]any{"disable": []any{"no-such-rule"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-rule")
}

func TestLint_Clean(t *testing.T) {
	file := process(t, "# A\n\n## B\n\n### C\n\n[ok](https://example.com)\n", with(LintPlugin()))
	assert.Empty(t, file.Messages)
}
