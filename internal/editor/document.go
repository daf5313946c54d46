// Package editor models the small part of an editor host that formatting needs:
// positions and ranges over a text buffer, documents, edits and an output channel.
//
// Positions are zero-based. Character offsets count runes within a line.
package editor

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Position is a zero-based line/character location in a document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p comes strictly before other.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Character < other.Character
}

// Range is a contiguous span of a document. End is exclusive.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// NewRange builds a range from zero-based coordinates.
func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startChar},
		End:   Position{Line: endLine, Character: endChar},
	}
}

// IsEmpty reports whether the range covers no text.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// String renders the range with one-based coordinates, e.g. "1:1-3:4".
func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.Start.Line+1, r.Start.Character+1, r.End.Line+1, r.End.Character+1)
}

// ParseRange parses the one-based "L:C-L:C" form produced by Range.String.
// A bare "L-L" selects whole lines: from the start of the first line to the
// start of the line after the last one.
func ParseRange(s string) (Range, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("invalid range %q: want L:C-L:C", s)
	}
	start, startWhole, err := parsePosition(parts[0])
	if err != nil {
		return Range{}, fmt.Errorf("invalid range start %q: %w", parts[0], err)
	}
	end, endWhole, err := parsePosition(parts[1])
	if err != nil {
		return Range{}, fmt.Errorf("invalid range end %q: %w", parts[1], err)
	}
	if startWhole && endWhole {
		end = Position{Line: end.Line + 1}
	}
	if end.Before(start) {
		return Range{}, fmt.Errorf("invalid range %q: end before start", s)
	}
	return Range{Start: start, End: end}, nil
}

func parsePosition(s string) (Position, bool, error) {
	line, col, hasCol := strings.Cut(s, ":")
	l, err := strconv.Atoi(line)
	if err != nil || l < 1 {
		return Position{}, false, fmt.Errorf("bad line %q", line)
	}
	if !hasCol {
		return Position{Line: l - 1}, true, nil
	}
	c, err := strconv.Atoi(col)
	if err != nil || c < 1 {
		return Position{}, false, fmt.Errorf("bad column %q", col)
	}
	return Position{Line: l - 1, Character: c - 1}, false, nil
}

// Line is a single document line without its terminator.
type Line struct {
	Number int
	Text   string
}

// Document is the read side of a text buffer.
type Document interface {
	URI() string
	LanguageID() string
	LineCount() int
	LineAt(line int) Line
	Text() string
	GetText(r Range) string
}

// TextDocument is an in-memory Document. Lines are split on "\n"; a trailing
// "\r" is treated as part of the terminator.
type TextDocument struct {
	uri        string
	text       string
	lineStarts []int
	version    int
}

// NewTextDocument creates a document for the given URI (usually a file path).
func NewTextDocument(uri, text string) *TextDocument {
	d := &TextDocument{uri: uri}
	d.setText(text)
	return d
}

func (d *TextDocument) setText(text string) {
	d.text = text
	d.lineStarts = d.lineStarts[:0]
	d.lineStarts = append(d.lineStarts, 0)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			d.lineStarts = append(d.lineStarts, i+1)
		}
	}
	d.version++
}

// URI returns the document identifier.
func (d *TextDocument) URI() string { return d.uri }

// Version increments every time the text changes.
func (d *TextDocument) Version() int { return d.version }

// LanguageID derives the language from the file extension.
func (d *TextDocument) LanguageID() string {
	switch strings.ToLower(filepath.Ext(d.uri)) {
	case ".md", ".markdown", ".mdown", ".mkd", ".mkdn":
		return "markdown"
	default:
		return "plaintext"
	}
}

// Text returns the full document text.
func (d *TextDocument) Text() string { return d.text }

// LineCount returns the number of lines. A document ending in a newline has
// an empty last line.
func (d *TextDocument) LineCount() int { return len(d.lineStarts) }

// LineAt returns the given line. Out of range lines are clamped.
func (d *TextDocument) LineAt(line int) Line {
	line = clamp(line, 0, len(d.lineStarts)-1)
	start := d.lineStarts[line]
	end := len(d.text)
	if line+1 < len(d.lineStarts) {
		end = d.lineStarts[line+1] - 1
	}
	text := d.text[start:end]
	text = strings.TrimSuffix(text, "\r")
	return Line{Number: line, Text: text}
}

// FullRange spans from the document start to the end of the last line.
func (d *TextDocument) FullRange() Range {
	last := d.LineAt(d.LineCount() - 1)
	return NewRange(0, 0, last.Number, utf8.RuneCountInString(last.Text))
}

// OffsetAt converts a position into a byte offset, clamping to the document.
func (d *TextDocument) OffsetAt(p Position) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(d.lineStarts) {
		return len(d.text)
	}
	line := d.LineAt(p.Line)
	offset := d.lineStarts[p.Line]
	chars := 0
	for i := range line.Text {
		if chars >= p.Character {
			return offset + i
		}
		chars++
	}
	return offset + len(line.Text)
}

// PositionAt converts a byte offset into a position.
func (d *TextDocument) PositionAt(offset int) Position {
	offset = clamp(offset, 0, len(d.text))
	line := 0
	for line+1 < len(d.lineStarts) && d.lineStarts[line+1] <= offset {
		line++
	}
	start := d.lineStarts[line]
	return Position{Line: line, Character: utf8.RuneCountInString(d.text[start:offset])}
}

// Validate clamps a range to the document bounds.
func (d *TextDocument) Validate(r Range) Range {
	return Range{
		Start: d.PositionAt(d.OffsetAt(r.Start)),
		End:   d.PositionAt(d.OffsetAt(r.End)),
	}
}

// GetText returns the text covered by r.
func (d *TextDocument) GetText(r Range) string {
	start, end := d.OffsetAt(r.Start), d.OffsetAt(r.End)
	if end < start {
		start, end = end, start
	}
	return d.text[start:end]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
