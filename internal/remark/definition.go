package remark

import (
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindDefinitions is the node kind of Definitions.
var KindDefinitions = ast.NewNodeKind("Definitions")

// Definitions holds consecutive link reference definitions. goldmark only
// records definitions in the parse context, so they are kept in the tree to
// be written back where they were.
type Definitions struct {
	ast.BaseBlock
}

// Kind implements ast.Node.
func (n *Definitions) Kind() ast.NodeKind { return KindDefinitions }

// IsRaw implements ast.Node.
func (n *Definitions) IsRaw() bool { return true }

// Dump implements ast.Node.
func (n *Definitions) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

// definitionKeeper wraps goldmark's link reference paragraph transformer and
// records the lines it consumes as a Definitions node. Definitions are only
// ever taken from the start of a paragraph.
type definitionKeeper struct{}

func (definitionKeeper) Transform(node *ast.Paragraph, reader text.Reader, pc parser.Context) {
	parent := node.Parent()
	prev := node.PreviousSibling()
	before := node.Lines().Len()
	lines := append([]text.Segment(nil), node.Lines().Sliced(0, before)...)

	parser.LinkReferenceParagraphTransformer.Transform(node, reader, pc)

	def := &Definitions{}
	if node.Parent() == nil {
		// Only definitions: goldmark left an empty text block in its place.
		placeholder := parent.FirstChild()
		if prev != nil {
			placeholder = prev.NextSibling()
		}
		def.Lines().AppendAll(lines)
		def.SetBlankPreviousLines(node.HasBlankPreviousLines())
		if placeholder != nil {
			parent.ReplaceChild(parent, placeholder, def)
		} else {
			parent.AppendChild(parent, def)
		}
		return
	}

	removed := before - node.Lines().Len()
	if removed <= 0 {
		return
	}
	def.Lines().AppendAll(lines[:removed])
	def.SetBlankPreviousLines(node.HasBlankPreviousLines())
	parent.InsertBefore(parent, node, def)
}

// newParser is goldmark's default parser with link reference definitions
// kept in the tree.
func newParser() parser.Parser {
	return parser.NewParser(
		parser.WithBlockParsers(parser.DefaultBlockParsers()...),
		parser.WithInlineParsers(parser.DefaultInlineParsers()...),
		parser.WithParagraphTransformers(util.Prioritized(definitionKeeper{}, 100)),
	)
}
