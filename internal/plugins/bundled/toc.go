package bundled

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/yuin/goldmark/ast"

	"remarkfmt/internal/logging"
	"remarkfmt/internal/plugins"
	"remarkfmt/internal/remark"
)

const defaultTOCHeading = "(table[ -]of[ -])?contents?|toc"

// TOCPlugin returns the table of contents plugin. It looks for a heading
// whose text matches the heading expression and replaces everything up to
// the next heading with a list linking to the headings that follow.
func TOCPlugin() *plugins.Plugin {
	return &plugins.Plugin{
		Name:        "toc",
		Description: "Generate a table of contents under a matching heading",
		Attacher:    remark.AttacherFunc(attachTOC),
		Schema: &plugins.SettingsSchema{
			Properties: map[string]plugins.Property{
				"heading": {
					Type:        "string",
					Description: "Case-insensitive expression matched against the whole heading text",
					Default:     defaultTOCHeading,
				},
				"maxDepth": {
					Type:        "integer",
					Description: "Deepest heading level to include",
					Default:     6,
				},
				"tight": {
					Type:        "boolean",
					Description: "Render the list without blank lines between items",
					Default:     true,
				},
				"ordered": {
					Type:        "boolean",
					Description: "Render an ordered list",
					Default:     false,
				},
			},
		},
	}
}

type tocOptions struct {
	heading  *regexp.Regexp
	maxDepth int
	tight    bool
	ordered  bool
}

func attachTOC(proc *remark.Processor, settings any) error {
	m := settingsMap(settings)
	pattern := stringSetting(m, "heading", defaultTOCHeading)
	re, err := regexp.Compile("(?i)^(?:" + pattern + ")$")
	if err != nil {
		return fmt.Errorf("invalid heading expression %q: %w", pattern, err)
	}
	opts := tocOptions{
		heading:  re,
		maxDepth: intSetting(m, "maxDepth", 6),
		tight:    boolSetting(m, "tight", true),
		ordered:  boolSetting(m, "ordered", false),
	}
	if opts.maxDepth < 1 || opts.maxDepth > 6 {
		return fmt.Errorf("maxDepth must be between 1 and 6, got %d", opts.maxDepth)
	}

	proc.AddTransformer(func(_ context.Context, tree *remark.Tree, _ *remark.VFile) error {
		insertTOC(tree, opts)
		return nil
	})
	return nil
}

type tocEntry struct {
	level int
	text  string
	slug  string
}

func insertTOC(tree *remark.Tree, opts tocOptions) {
	root := tree.Root
	slugs := newSlugger()

	var target *ast.Heading
	var entries []tocEntry
	for c := root.FirstChild(); c != nil; c = c.NextSibling() {
		h, ok := c.(*ast.Heading)
		if !ok {
			continue
		}
		text := strings.TrimSpace(plainText(h, tree.Source))
		slug := slugs.slug(text)
		if target == nil {
			if opts.heading.MatchString(text) {
				target = h
			}
			continue
		}
		if h.Level <= opts.maxDepth {
			entries = append(entries, tocEntry{level: h.Level, text: text, slug: slug})
		}
	}
	if target == nil {
		return
	}

	// Drop the previous table, everything between the heading and the next one
	// except link definitions.
	for n := target.NextSibling(); n != nil; {
		if _, ok := n.(*ast.Heading); ok {
			break
		}
		next := n.NextSibling()
		if _, ok := n.(*remark.Definitions); !ok {
			root.RemoveChild(root, n)
		}
		n = next
	}

	if len(entries) == 0 {
		return
	}
	root.InsertAfter(root, target, buildTOC(entries, opts))
	logging.PluginsDebug("toc: %d entries", len(entries))
}

func buildTOC(entries []tocEntry, opts tocOptions) *ast.List {
	base := entries[0].level
	for _, e := range entries {
		if e.level < base {
			base = e.level
		}
	}

	top := newTOCList(opts)
	stack := []*ast.List{top}
	for _, e := range entries {
		depth := e.level - base
		for len(stack)-1 > depth {
			stack = stack[:len(stack)-1]
		}
		for len(stack)-1 < depth {
			parent := stack[len(stack)-1]
			item := parent.LastChild()
			if item == nil {
				item = ast.NewListItem(2)
				parent.AppendChild(parent, item)
			}
			sub := newTOCList(opts)
			item.AppendChild(item, sub)
			stack = append(stack, sub)
		}

		link := ast.NewLink()
		link.Destination = []byte("#" + e.slug)
		link.AppendChild(link, ast.NewString([]byte(e.text)))

		var block ast.Node = ast.NewTextBlock()
		if !opts.tight {
			block = ast.NewParagraph()
		}
		block.AppendChild(block, link)

		item := ast.NewListItem(2)
		item.AppendChild(item, block)
		list := stack[len(stack)-1]
		list.AppendChild(list, item)
	}
	return top
}

func newTOCList(opts tocOptions) *ast.List {
	marker := byte('-')
	if opts.ordered {
		marker = '.'
	}
	l := ast.NewList(marker)
	l.IsTight = opts.tight
	if opts.ordered {
		l.Start = 1
	}
	return l
}

// slugger builds GitHub style heading anchors, numbering repeats.
type slugger struct {
	seen map[string]int
}

func newSlugger() *slugger {
	return &slugger{seen: make(map[string]int)}
}

func (s *slugger) slug(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r == ' ':
			b.WriteByte('-')
		case r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r):
			b.WriteRune(r)
		}
	}
	base := b.String()
	slug := base
	if n, ok := s.seen[base]; ok {
		for {
			n++
			slug = base + "-" + strconv.Itoa(n)
			if _, taken := s.seen[slug]; !taken {
				break
			}
		}
		s.seen[base] = n
	}
	s.seen[slug] = 0
	return slug
}
