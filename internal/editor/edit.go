package editor

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// ErrOverlappingEdits is returned when two edits touch the same span.
var ErrOverlappingEdits = errors.New("overlapping edits")

// TextEdit replaces the text in Range with NewText.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// Replace builds a TextEdit.
func Replace(r Range, text string) TextEdit {
	return TextEdit{Range: r, NewText: text}
}

// ApplyEdits returns the document text with edits applied. Edits are given in
// document coordinates and must not overlap.
func ApplyEdits(d *TextDocument, edits []TextEdit) (string, error) {
	type span struct {
		start, end int
		text       string
	}
	spans := make([]span, 0, len(edits))
	for _, e := range edits {
		start, end := d.OffsetAt(e.Range.Start), d.OffsetAt(e.Range.End)
		if end < start {
			start, end = end, start
		}
		spans = append(spans, span{start: start, end: end, text: e.NewText})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	text := d.Text()
	last := 0
	for i, s := range spans {
		if i > 0 && s.start < spans[i-1].end {
			return "", fmt.Errorf("%w at offset %d", ErrOverlappingEdits, s.start)
		}
		b.WriteString(text[last:s.start])
		b.WriteString(s.text)
		last = s.end
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// EditBuilder collects edits for a single Editor.Edit call.
type EditBuilder struct {
	edits []TextEdit
}

// Replace queues a replacement.
func (b *EditBuilder) Replace(r Range, text string) {
	b.edits = append(b.edits, Replace(r, text))
}

// Editor owns a document and applies edits to it. Saving writes the document
// back to its URI when Path is set.
type Editor struct {
	mu       sync.Mutex
	Document *TextDocument
	Path     string
}

// OpenFile loads a file into an Editor.
func OpenFile(path string) (*Editor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &Editor{Document: NewTextDocument(path, string(data)), Path: path}, nil
}

// Edit runs fn to collect edits and applies them atomically.
func (e *Editor) Edit(fn func(*EditBuilder)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := &EditBuilder{}
	fn(b)
	if len(b.edits) == 0 {
		return nil
	}
	text, err := ApplyEdits(e.Document, b.edits)
	if err != nil {
		return err
	}
	e.Document.setText(text)
	return nil
}

// Save writes the document to Path.
func (e *Editor) Save() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Path == "" {
		return errors.New("editor has no backing file")
	}
	info, err := os.Stat(e.Path)
	mode := os.FileMode(0644)
	if err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(e.Path, []byte(e.Document.Text()), mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.Path, err)
	}
	return nil
}
