package remark

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
)

// Stringify serializes a goldmark tree back to Markdown. Inline text is
// emitted from its source segments so escapes survive unchanged; block
// structure and markers follow rules.
func Stringify(root ast.Node, source []byte, rules Rules) (string, error) {
	s := &stringifier{src: source, rules: rules}
	out := s.children(root, "\n\n")
	if s.err != nil {
		return "", s.err
	}
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return "", nil
	}
	return out + "\n", nil
}

type stringifier struct {
	src   []byte
	rules Rules
	err   error

	// inTable is set while table cells are rendered; pipes must stay escaped.
	inTable bool
}

func (s *stringifier) fail(n ast.Node) {
	if s.err == nil {
		s.err = fmt.Errorf("remark: cannot stringify %s node", n.Kind())
	}
}

// children renders the block children of parent joined by sep.
func (s *stringifier) children(parent ast.Node, sep string) string {
	parts := make([]string, 0, parent.ChildCount())
	var prev ast.Node
	alternate := false
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		// Two adjacent lists of the same kind would merge once their markers
		// are normalized, so every other one uses the alternate marker.
		if list, ok := c.(*ast.List); ok {
			if pl, ok := prev.(*ast.List); ok && pl.IsOrdered() == list.IsOrdered() {
				alternate = !alternate
			} else {
				alternate = false
			}
		}
		parts = append(parts, s.block(c, prev, alternate))
		prev = c
	}
	return strings.Join(parts, sep)
}

func (s *stringifier) block(n, prev ast.Node, alternate bool) string {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return s.inlines(n)
	case *ast.Heading:
		return s.heading(n)
	case *ast.ThematicBreak:
		return s.thematicBreak()
	case *ast.CodeBlock:
		_, afterList := prev.(*ast.List)
		firstInItem := prev == nil && isListItem(n.Parent())
		return s.codeBlock(n, s.rules.Fences || afterList || firstInItem)
	case *ast.FencedCodeBlock:
		return s.fencedCodeBlock(n)
	case *ast.Blockquote:
		return prefixLines(s.children(n, "\n\n"), "> ", ">")
	case *ast.List:
		return s.list(n, alternate)
	case *ast.HTMLBlock:
		return s.htmlBlock(n)
	case *extast.Table:
		return s.table(n)
	case *Definitions:
		return s.definitions(n)
	default:
		if n.HasChildren() {
			return s.children(n, "\n\n")
		}
		s.fail(n)
		return ""
	}
}

func isListItem(n ast.Node) bool {
	_, ok := n.(*ast.ListItem)
	return ok
}

func (s *stringifier) heading(n *ast.Heading) string {
	content := s.inlines(n)
	if s.rules.Setext && n.Level <= 2 && content != "" {
		underline := byte('=')
		if n.Level == 2 {
			underline = '-'
		}
		width := 3
		for _, line := range strings.Split(content, "\n") {
			if w := runewidth.StringWidth(line); w > width {
				width = w
			}
		}
		return content + "\n" + strings.Repeat(string(underline), width)
	}

	content = strings.ReplaceAll(content, "\n", " ")
	hashes := strings.Repeat("#", n.Level)
	if content == "" {
		return hashes
	}
	if s.rules.CloseAtx {
		return hashes + " " + content + " " + hashes
	}
	return hashes + " " + content
}

func (s *stringifier) thematicBreak() string {
	c := string(s.rules.Rule)
	if s.rules.RuleSpaces {
		return strings.TrimSpace(strings.Repeat(c+" ", s.rules.RuleRepetition))
	}
	return strings.Repeat(c, s.rules.RuleRepetition)
}

func (s *stringifier) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(s.src))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *stringifier) codeBlock(n *ast.CodeBlock, fenced bool) string {
	content := s.lines(n)
	if fenced {
		return s.fence(content, "")
	}
	return prefixLines(content, "    ", "")
}

func (s *stringifier) fencedCodeBlock(n *ast.FencedCodeBlock) string {
	var info string
	if n.Info != nil {
		info = string(n.Info.Segment.Value(s.src))
	}
	return s.fence(s.lines(n), info)
}

func (s *stringifier) fence(content, info string) string {
	char := s.rules.Fence
	if char == '`' && strings.Contains(info, "`") {
		char = '~'
	}
	size := 3
	if run := longestRun(content, char) + 1; run > size {
		size = run
	}
	marker := strings.Repeat(string(char), size)
	if content == "" {
		return marker + info + "\n" + marker
	}
	return marker + info + "\n" + content + "\n" + marker
}

func (s *stringifier) htmlBlock(n *ast.HTMLBlock) string {
	out := s.lines(n)
	if n.HasClosure() {
		closure := strings.TrimRight(string(n.ClosureLine.Value(s.src)), "\n")
		if out == "" {
			return closure
		}
		return out + "\n" + closure
	}
	return out
}

func (s *stringifier) list(l *ast.List, alternate bool) string {
	bullet := s.rules.Bullet
	delim := s.rules.BulletOrdered
	if alternate {
		bullet = otherBullet(bullet)
		delim = otherDelimiter(delim)
	}

	sep := "\n\n"
	if l.IsTight {
		sep = "\n"
	}

	items := make([]string, 0, l.ChildCount())
	i := 0
	for c := l.FirstChild(); c != nil; c = c.NextSibling() {
		marker := string(bullet)
		if l.IsOrdered() {
			num := l.Start
			if s.rules.IncrementListMarker {
				num += i
			}
			marker = strconv.Itoa(num) + string(delim)
		}
		items = append(items, s.listItem(c, marker, l.IsTight))
		i++
	}
	return strings.Join(items, sep)
}

func (s *stringifier) listItem(item ast.Node, marker string, tight bool) string {
	sep := "\n\n"
	if tight {
		sep = "\n"
	}
	content := s.children(item, sep)
	if content == "" {
		return marker
	}

	width := len(marker) + 1
	switch s.rules.ListItemIndent {
	case "tab":
		width = tabStop(width)
	case "mixed":
		if !tight {
			width = tabStop(width)
		}
	}

	first := marker + strings.Repeat(" ", width-len(marker))
	rest := strings.Repeat(" ", width)
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		switch {
		case i == 0:
			lines[i] = first + line
		case line == "":
		default:
			lines[i] = rest + line
		}
	}
	return strings.Join(lines, "\n")
}

func (s *stringifier) definitions(n *Definitions) string {
	lines := n.Lines()
	out := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out = append(out, strings.TrimRight(string(seg.Value(s.src)), " \t\r\n"))
	}
	return strings.Join(out, "\n")
}

func (s *stringifier) table(t *extast.Table) string {
	s.inTable = true
	defer func() { s.inTable = false }()

	var rows [][]string
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		var cells []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, strings.ReplaceAll(s.inlines(c), "\n", " "))
		}
		rows = append(rows, cells)
	}

	columns := len(t.Alignments)
	for _, row := range rows {
		if len(row) > columns {
			columns = len(row)
		}
	}
	widths := make([]int, columns)
	for i := range widths {
		widths[i] = 3
	}
	if s.rules.TablePipeAlign {
		for _, row := range rows {
			for i, cell := range row {
				if w := runewidth.StringWidth(cell); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	align := func(i int) extast.Alignment {
		if i < len(t.Alignments) {
			return t.Alignments[i]
		}
		return extast.AlignNone
	}

	var out []string
	for ri, row := range rows {
		cells := make([]string, columns)
		for i := range cells {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = s.padCell(cell, widths[i], align(i))
		}
		out = append(out, "| "+strings.Join(cells, " | ")+" |")

		if ri == 0 {
			delims := make([]string, columns)
			for i := range delims {
				delims[i] = alignmentRow(widths[i], align(i))
			}
			out = append(out, "| "+strings.Join(delims, " | ")+" |")
		}
	}
	return strings.Join(out, "\n")
}

func (s *stringifier) padCell(cell string, width int, a extast.Alignment) string {
	if !s.rules.TablePipeAlign {
		return cell
	}
	gap := width - runewidth.StringWidth(cell)
	if gap <= 0 {
		return cell
	}
	switch a {
	case extast.AlignRight:
		return strings.Repeat(" ", gap) + cell
	case extast.AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + cell + strings.Repeat(" ", gap-left)
	default:
		return cell + strings.Repeat(" ", gap)
	}
}

func alignmentRow(width int, a extast.Alignment) string {
	switch a {
	case extast.AlignLeft:
		return ":" + strings.Repeat("-", width-1)
	case extast.AlignRight:
		return strings.Repeat("-", width-1) + ":"
	case extast.AlignCenter:
		return ":" + strings.Repeat("-", width-2) + ":"
	default:
		return strings.Repeat("-", width)
	}
}

func (s *stringifier) inlines(parent ast.Node) string {
	var b strings.Builder
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		s.inline(&b, c)
	}
	return b.String()
}

func (s *stringifier) inline(b *strings.Builder, n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(s.src))
		switch {
		case n.HardLineBreak():
			if s.rules.Break == "spaces" {
				b.WriteString("  \n")
			} else {
				b.WriteString("\\\n")
			}
		case n.SoftLineBreak():
			b.WriteByte('\n')
		}
	case *ast.String:
		b.Write(n.Value)
	case *ast.CodeSpan:
		b.WriteString(s.codeSpan(n))
	case *ast.Emphasis:
		marker, count := s.rules.Emphasis, 1
		if n.Level >= 2 {
			marker, count = s.rules.Strong, 2
		}
		if marker == '_' && s.intraword(b, n) {
			marker = '*'
		}
		m := strings.Repeat(string(marker), count)
		b.WriteString(m)
		b.WriteString(s.inlines(n))
		b.WriteString(m)
	case *ast.Link:
		b.WriteString("[")
		b.WriteString(s.inlines(n))
		s.linkEnd(b, n, n.Destination, n.Title)
	case *ast.Image:
		b.WriteString("![")
		b.WriteString(s.inlines(n))
		s.linkEnd(b, n, n.Destination, n.Title)
	case *ast.AutoLink:
		label := n.Label(s.src)
		if n.AutoLinkType == ast.AutoLinkURL && !bytes.Contains(label, []byte("://")) {
			b.Write(label)
			return
		}
		b.WriteByte('<')
		b.Write(label)
		b.WriteByte('>')
	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(s.src))
		}
	case *extast.Strikethrough:
		b.WriteString("~~")
		b.WriteString(s.inlines(n))
		b.WriteString("~~")
	case *extast.TaskCheckBox:
		if n.IsChecked {
			b.WriteString("[x] ")
		} else {
			b.WriteString("[ ] ")
		}
	default:
		if n.HasChildren() {
			b.WriteString(s.inlines(n))
			return
		}
		s.fail(n)
	}
}

func (s *stringifier) codeSpan(n *ast.CodeSpan) string {
	var content strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			content.Write(t.Segment.Value(s.src))
		case *ast.String:
			content.Write(t.Value)
		}
	}
	code := strings.ReplaceAll(content.String(), "\n", " ")
	if s.inTable {
		code = strings.ReplaceAll(strings.ReplaceAll(code, `\|`, "|"), "|", `\|`)
	}
	fence := strings.Repeat("`", longestRun(code, '`')+1)
	pad := strings.HasPrefix(code, "`") || strings.HasSuffix(code, "`") ||
		(len(code) > 1 && code[0] == ' ' && code[len(code)-1] == ' ' && strings.TrimSpace(code) != "")
	if pad {
		return fence + " " + code + " " + fence
	}
	return fence + code + fence
}

// linkEnd closes a link or image label. Links written against a reference
// definition keep their reference; the rest get an inline destination.
func (s *stringifier) linkEnd(b *strings.Builder, n ast.Node, dest, title []byte) {
	if ref, ok := s.reference(n); ok {
		b.WriteString("]")
		b.WriteString(ref)
		return
	}
	b.WriteString("](")
	b.WriteString(linkTarget(dest, title))
	b.WriteString(")")
}

// reference returns how the source referred to a definition after the label
// of n: "[label]" for a full reference, "[]" for a collapsed one and "" for a
// shortcut. ok is false for inline links and for nodes without source text.
func (s *stringifier) reference(n ast.Node) (ref string, ok bool) {
	i, found := lastOffset(n)
	if !found {
		return "", false
	}
	for i < len(s.src) && strings.IndexByte("*_`~ \t", s.src[i]) >= 0 {
		i++
	}
	if i >= len(s.src) || s.src[i] != ']' {
		return "", false
	}
	i++
	if i >= len(s.src) || s.src[i] != '[' {
		return "", i >= len(s.src) || s.src[i] != '('
	}
	end := bytes.IndexByte(s.src[i:], ']')
	if end < 0 {
		return "", false
	}
	return string(s.src[i : i+end+1]), true
}

// intraword reports whether an emphasis node touches word characters on
// either side, where "_" would not open or close emphasis.
func (s *stringifier) intraword(b *strings.Builder, n ast.Node) bool {
	written := b.String()
	if r, _ := utf8.DecodeLastRuneInString(written); written != "" && isWordRune(r) {
		return true
	}
	if t, ok := n.NextSibling().(*ast.Text); ok {
		v := t.Segment.Value(s.src)
		if r, _ := utf8.DecodeRune(v); len(v) > 0 && isWordRune(r) {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func linkTarget(dest, title []byte) string {
	d := string(dest)
	if strings.ContainsAny(d, " \t") || !balancedParens(d) {
		d = "<" + d + ">"
	}
	if len(title) == 0 {
		return d
	}
	t := string(title)
	switch {
	case !strings.Contains(t, `"`):
		return d + ` "` + t + `"`
	case !strings.Contains(t, "'"):
		return d + " '" + t + "'"
	default:
		return d + " (" + t + ")"
	}
}

func balancedParens(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func longestRun(s string, c byte) int {
	longest, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}

func prefixLines(content, prefix, emptyPrefix string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = emptyPrefix
		} else {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func tabStop(width int) int {
	return (width + 3) / 4 * 4
}

func otherBullet(c byte) byte {
	if c == '-' {
		return '*'
	}
	return '-'
}

func otherDelimiter(c byte) byte {
	if c == '.' {
		return ')'
	}
	return '.'
}
