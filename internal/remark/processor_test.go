package remark

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
)

func process(t *testing.T, p *Processor, input string) string {
	t.Helper()
	file, err := p.Process(context.Background(), input)
	require.NoError(t, err)
	return file.Contents
}

func TestProcess_BulletSetting(t *testing.T) {
	p := New(map[string]any{"bullet": "*"})
	assert.Equal(t, "* a\n* b\n", process(t, p, "- a\n- b\n"))

	p = New(nil)
	assert.Equal(t, "- a\n- b\n", process(t, p, "* a\n* b\n"))
}

func TestProcess_Stringify(t *testing.T) {
	tests := []struct {
		name  string
		rules map[string]any
		in    string
		want  string
	}{
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: "\n\n  \n", want: ""},
		{name: "setext to atx", in: "Title\n=====\n\nSub\n---\n", want: "# Title\n\n## Sub\n"},
		{name: "atx to setext", rules: map[string]any{"setext": true}, in: "# Title\n", want: "Title\n=====\n"},
		{name: "close atx", rules: map[string]any{"closeAtx": true}, in: "### Deep\n", want: "### Deep ###\n"},
		{name: "emphasis", in: "*a* and __b__\n", want: "_a_ and **b**\n"},
		{name: "intraword emphasis", in: "foo*bar*baz\n", want: "foo*bar*baz\n"},
		{name: "escapes kept", in: "a \\* b \\_c\\_\n", want: "a \\* b \\_c\\_\n"},
		{name: "thematic break", in: "a\n\n___\n\nb\n", want: "a\n\n***\n\nb\n"},
		{name: "spaced rule", rules: map[string]any{"rule": "-", "ruleSpaces": true, "ruleRepetition": 4}, in: "***\n", want: "- - - -\n"},
		{name: "fence normalized", in: "~~~go\nx := 1\n~~~\n", want: "```go\nx := 1\n```\n"},
		{name: "fence grows", in: "````\n```\n````\n", want: "````\n```\n````\n"},
		{name: "indented code", in: "    code\n", want: "    code\n"},
		{name: "fences forced", rules: map[string]any{"fences": true}, in: "    code\n", want: "```\ncode\n```\n"},
		{name: "ordered list", in: "1) a\n1) b\n", want: "1. a\n2. b\n"},
		{name: "ordered list keeps start", in: "3. a\n4. b\n", want: "3. a\n4. b\n"},
		{name: "no increment", rules: map[string]any{"incrementListMarker": false}, in: "1. a\n2. b\n", want: "1. a\n1. b\n"},
		{name: "loose list", in: "- a\n\n- b\n", want: "- a\n\n- b\n"},
		{name: "nested list", in: "* a\n  * b\n", want: "- a\n  - b\n"},
		{name: "tab indent", rules: map[string]any{"listItemIndent": "tab"}, in: "- a\n  b\n", want: "-   a\n    b\n"},
		{name: "adjacent lists", in: "- a\n- b\n\n* c\n", want: "- a\n- b\n\n* c\n"},
		{name: "blockquote", in: "> a\n>\n> b\n", want: "> a\n>\n> b\n"},
		{name: "hard break", in: "a  \nb\n", want: "a\\\nb\n"},
		{name: "space break", rules: map[string]any{"break": "spaces"}, in: "a\\\nb\n", want: "a  \nb\n"},
		{name: "soft break", in: "a\nb\n", want: "a\nb\n"},
		{name: "link", in: "[x](http://a.com \"t\")\n", want: "[x](http://a.com \"t\")\n"},
		{name: "reference link", in: "[x][r]\n\n[r]: /u\n", want: "[x][r]\n\n[r]: /u\n"},
		{name: "collapsed and shortcut references", in: "[d][] and [d]\n\n[d]: /u\n", want: "[d][] and [d]\n\n[d]: /u\n"},
		{name: "image reference", in: "![logo][l]\n\n[l]: logo.png\n", want: "![logo][l]\n\n[l]: logo.png\n"},
		{name: "unused definition", in: "Text.\n\n[unused]: https://example.com \"Title\"\n", want: "Text.\n\n[unused]: https://example.com \"Title\"\n"},
		{name: "definition opening a paragraph", in: "[a]: /a\nText [a]\n", want: "[a]: /a\n\nText [a]\n"},
		{name: "definitions between blocks", in: "# T\n\n[a]: /a\n[b]: /b\n\nSee [a] and [b].\n", want: "# T\n\n[a]: /a\n[b]: /b\n\nSee [a] and [b].\n"},
		{name: "image", in: "![alt](a.png)\n", want: "![alt](a.png)\n"},
		{name: "autolink", in: "<https://example.com>\n", want: "<https://example.com>\n"},
		{name: "code span", in: "use `` a`b `` here\n", want: "use ``a`b`` here\n"},
		{name: "html block", in: "<div>\nhi\n</div>\n", want: "<div>\nhi\n</div>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := process(t, New(tt.rules), tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, process(t, New(tt.rules), got), "not idempotent")
		})
	}
}

func TestProcess_GFMTable(t *testing.T) {
	p := New(nil)
	require.NoError(t, p.Use("gfm", AttacherFunc(func(p *Processor, _ any) error {
		p.AddExtension(extension.GFM)
		return nil
	})))

	in := "|a|b|\n|-|:-:|\n|ccc|d|\n"
	want := "| a   |  b  |\n| --- | :-: |\n| ccc |  d  |\n"
	got := process(t, p, in)
	assert.Equal(t, want, got)
	assert.Equal(t, want, process(t, p, got))

	piped := "| a | b |\n|---|---|\n| x | `c \\| d` |\n"
	want = "| a   | b        |\n| --- | -------- |\n| x   | `c \\| d` |\n"
	got = process(t, p, piped)
	assert.Equal(t, want, got, "escaped pipe in a code span must stay escaped")
	assert.Equal(t, want, process(t, p, got))

	assert.Equal(t, "- [x] done\n- [ ] todo\n", process(t, p, "* [x] done\n* [ ] todo\n"))
	assert.Equal(t, "~~gone~~\n", process(t, p, "~~gone~~\n"))
}

func TestProcess_Frontmatter(t *testing.T) {
	p := New(nil)
	p.EnableFrontmatter()

	in := "---\ntitle: x\n---\n* a\n"
	want := "---\ntitle: x\n---\n\n- a\n"
	assert.Equal(t, want, process(t, p, in))
	assert.Equal(t, want, process(t, p, want))
	assert.Equal(t, "---\ntitle: x\n---\n", process(t, p, "---\ntitle: x\n---\n"))
}

func TestProcess_InvalidRules(t *testing.T) {
	_, err := New(map[string]any{"bullet": "x"}).Process(context.Background(), "- a\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.Contains(t, err.Error(), "invalid settings")
}

func TestProcess_TransformersRunInOrder(t *testing.T) {
	var order []string
	p := New(nil)
	for _, name := range []string{"first", "second"} {
		name := name
		require.NoError(t, p.Use(name, AttacherFunc(func(p *Processor, _ any) error {
			p.AddTransformer(func(_ context.Context, tree *Tree, file *VFile) error {
				order = append(order, name)
				return nil
			})
			return nil
		})))
	}
	process(t, p, "x\n")
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, []string{"first", "second"}, p.Plugins())
}

func TestProcess_TransformerErrorNamesPlugin(t *testing.T) {
	p := New(nil)
	require.NoError(t, p.Use("broken", AttacherFunc(func(p *Processor, _ any) error {
		p.AddTransformer(func(context.Context, *Tree, *VFile) error {
			return errors.New("bad tree")
		})
		return nil
	})))
	_, err := p.Process(context.Background(), "x\n")
	require.Error(t, err)
	assert.Equal(t, "broken: bad tree", err.Error())
}

func TestProcess_MessagesCarryLocation(t *testing.T) {
	p := New(nil)
	require.NoError(t, p.Use("headings", AttacherFunc(func(p *Processor, _ any) error {
		p.AddTransformer(func(_ context.Context, tree *Tree, file *VFile) error {
			return ast.Walk(tree.Root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
				if h, ok := n.(*ast.Heading); ok && entering {
					file.Message("heading found", tree.Locate(h), "headings:found")
				}
				return ast.WalkContinue, nil
			})
		})
		return nil
	})))

	file, err := p.Process(context.Background(), "intro\n\n## Usage\n")
	require.NoError(t, err)
	require.Len(t, file.Messages, 1)
	m := file.Messages[0]
	assert.Equal(t, Point{Line: 3, Column: 4}, m.Location.Start)
	assert.Equal(t, "3:4-3:9: warning: heading found [headings:found]", m.String())
	assert.False(t, file.HasErrors())
}

func TestUse_RollsBackOnError(t *testing.T) {
	p := New(nil)
	err := p.Use("half", AttacherFunc(func(p *Processor, _ any) error {
		p.AddTransformer(func(context.Context, *Tree, *VFile) error { return nil })
		p.EnableFrontmatter()
		return errors.New("missing option")
	}))
	require.EqualError(t, err, "missing option")
	assert.Empty(t, p.transformers)
	assert.False(t, p.frontmatter)
	assert.Empty(t, p.Plugins())
}

func TestUse_RecoversPanic(t *testing.T) {
	p := New(nil)
	err := p.Use("panicky", AttacherFunc(func(p *Processor, _ any) error {
		p.AddTextTransformer(func(_ context.Context, doc string, _ *VFile) (string, error) { return doc, nil })
		panic("boom")
	}))
	require.EqualError(t, err, "boom")
	assert.Empty(t, p.textTransformers)
	assert.Equal(t, "a\n", process(t, p, "a\n"))
}

func TestUse_PassesSettings(t *testing.T) {
	var got []any
	a := AttacherFunc(func(_ *Processor, settings any) error {
		got = append(got, settings)
		return nil
	})
	p := New(nil)
	require.NoError(t, p.Use("a", a))
	require.NoError(t, p.Use("b", a, map[string]any{"heading": "toc"}))
	assert.Equal(t, []any{nil, map[string]any{"heading": "toc"}}, got)
}

func TestProcess_TextTransformer(t *testing.T) {
	p := New(nil)
	require.NoError(t, p.Use("upper", AttacherFunc(func(p *Processor, _ any) error {
		p.AddTextTransformer(func(_ context.Context, doc string, _ *VFile) (string, error) {
			return doc + "\n<!-- end -->\n", nil
		})
		return nil
	})))
	assert.Equal(t, "a\n\n<!-- end -->\n", process(t, p, "a"))
}

func TestProcess_Canceled(t *testing.T) {
	p := New(nil)
	require.NoError(t, p.Use("noop", AttacherFunc(func(p *Processor, _ any) error {
		p.AddTransformer(func(context.Context, *Tree, *VFile) error { return nil })
		return nil
	})))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Process(ctx, "a\n")
	assert.ErrorIs(t, err, context.Canceled)
}
