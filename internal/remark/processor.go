// Package remark is the Markdown processing pipeline: goldmark parses the
// input, registered transformers rewrite the tree in order, and the tree is
// stringified back to Markdown under the configured Rules.
//
// Plugins contribute to a Processor through Use. A plugin may add goldmark
// extensions or parser options, tree transformers, text transformers and
// front matter handling.
package remark

import (
	"context"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// Attacher wires a plugin into a processor. settings is nil when the plugin
// was declared without settings.
type Attacher interface {
	Attach(p *Processor, settings any) error
}

// AttacherFunc adapts a function to Attacher.
type AttacherFunc func(p *Processor, settings any) error

// Attach implements Attacher.
func (f AttacherFunc) Attach(p *Processor, settings any) error { return f(p, settings) }

// Tree is the parsed document handed to transformers.
type Tree struct {
	Root        ast.Node
	Source      []byte
	Frontmatter string

	file   *VFile
	offset int
}

// Locate returns the input location of n, or a zero Location if n carries no
// source position.
func (t *Tree) Locate(n ast.Node) Location {
	start, stop, ok := nodeSpan(n)
	if !ok {
		return Location{}
	}
	return t.file.LocationOf(start+t.offset, stop+t.offset)
}

// Transformer rewrites the tree. Diagnostics go to file.
type Transformer func(ctx context.Context, tree *Tree, file *VFile) error

// TextTransformer rewrites the stringified document.
type TextTransformer func(ctx context.Context, doc string, file *VFile) (string, error)

type namedTransformer struct {
	plugin string
	fn     Transformer
}

type namedTextTransformer struct {
	plugin string
	fn     TextTransformer
}

// Processor is an ordered set of transforms plus global rule settings.
// It is built once per invocation and is not safe for concurrent Use.
type Processor struct {
	rules map[string]any

	extensions       []goldmark.Extender
	parserOptions    []parser.Option
	transformers     []namedTransformer
	textTransformers []namedTextTransformer
	frontmatter      bool

	current  string
	attached []string
}

// New creates a processor whose stringify stage uses the given rule settings.
// Rules are validated when the processor runs.
func New(rules map[string]any) *Processor {
	return &Processor{rules: rules}
}

// Plugins returns the names of successfully attached plugins in order.
func (p *Processor) Plugins() []string {
	out := make([]string, len(p.attached))
	copy(out, p.attached)
	return out
}

// Use attaches a plugin. A failed or panicking attacher leaves the processor
// exactly as it was before the call.
func (p *Processor) Use(name string, a Attacher, settings ...any) (err error) {
	var s any
	if len(settings) > 0 {
		s = settings[0]
	}

	snapshot := p.snapshot()
	p.current = name
	defer func() {
		p.current = ""
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
		if err != nil {
			p.restore(snapshot)
			return
		}
		p.attached = append(p.attached, name)
	}()

	return a.Attach(p, s)
}

type processorSnapshot struct {
	extensions, parserOptions, transformers, textTransformers int
	frontmatter                                               bool
}

func (p *Processor) snapshot() processorSnapshot {
	return processorSnapshot{
		extensions:       len(p.extensions),
		parserOptions:    len(p.parserOptions),
		transformers:     len(p.transformers),
		textTransformers: len(p.textTransformers),
		frontmatter:      p.frontmatter,
	}
}

func (p *Processor) restore(s processorSnapshot) {
	p.extensions = p.extensions[:s.extensions]
	p.parserOptions = p.parserOptions[:s.parserOptions]
	p.transformers = p.transformers[:s.transformers]
	p.textTransformers = p.textTransformers[:s.textTransformers]
	p.frontmatter = s.frontmatter
}

// AddExtension registers a goldmark extension with the parser.
func (p *Processor) AddExtension(ext goldmark.Extender) {
	p.extensions = append(p.extensions, ext)
}

// AddParserOptions registers goldmark parser options.
func (p *Processor) AddParserOptions(opts ...parser.Option) {
	p.parserOptions = append(p.parserOptions, opts...)
}

// AddTransformer appends a tree transformer.
func (p *Processor) AddTransformer(fn Transformer) {
	p.transformers = append(p.transformers, namedTransformer{plugin: p.current, fn: fn})
}

// AddTextTransformer appends a transformer over the stringified output.
func (p *Processor) AddTextTransformer(fn TextTransformer) {
	p.textTransformers = append(p.textTransformers, namedTextTransformer{plugin: p.current, fn: fn})
}

// EnableFrontmatter makes the processor split a leading YAML block off the
// input before parsing and put it back unchanged.
func (p *Processor) EnableFrontmatter() {
	p.frontmatter = true
}

// Process runs the pipeline once over input.
func (p *Processor) Process(ctx context.Context, input string) (*VFile, error) {
	rules, err := ParseRules(p.rules)
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	file := NewVFile("", input)
	body, fm := input, ""
	if p.frontmatter {
		fm, body = SplitFrontmatter(input)
	}

	md := goldmark.New(
		goldmark.WithParser(newParser()),
		goldmark.WithExtensions(p.extensions...),
		goldmark.WithParserOptions(p.parserOptions...),
	)
	source := []byte(body)
	root := md.Parser().Parse(text.NewReader(source))

	tree := &Tree{Root: root, Source: source, Frontmatter: fm, file: file, offset: len(fm)}
	for _, t := range p.transformers {
		if err := ctx.Err(); err != nil {
			return file, err
		}
		if err := t.fn(ctx, tree, file); err != nil {
			return file, fmt.Errorf("%s: %w", t.plugin, err)
		}
	}

	out, err := Stringify(tree.Root, tree.Source, rules)
	if err != nil {
		return file, err
	}

	for _, t := range p.textTransformers {
		if err := ctx.Err(); err != nil {
			return file, err
		}
		out, err = t.fn(ctx, out, file)
		if err != nil {
			return file, fmt.Errorf("%s: %w", t.plugin, err)
		}
	}

	file.Contents = joinFrontmatter(tree.Frontmatter, out)
	return file, nil
}

// nodeSpan finds the byte span of the source covered by n.
func nodeSpan(n ast.Node) (int, int, bool) {
	start, ok := firstOffset(n)
	if !ok {
		return 0, 0, false
	}
	stop, ok := lastOffset(n)
	if !ok || stop < start {
		stop = start
	}
	return start, stop, true
}

func firstOffset(n ast.Node) (int, bool) {
	if t, ok := n.(*ast.Text); ok {
		return t.Segment.Start, true
	}
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		return n.Lines().At(0).Start, true
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if off, ok := firstOffset(c); ok {
			return off, true
		}
	}
	return 0, false
}

func lastOffset(n ast.Node) (int, bool) {
	if t, ok := n.(*ast.Text); ok {
		return t.Segment.Stop, true
	}
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		return n.Lines().At(n.Lines().Len() - 1).Stop, true
	}
	for c := n.LastChild(); c != nil; c = c.PreviousSibling() {
		if off, ok := lastOffset(c); ok {
			return off, true
		}
	}
	return 0, false
}
