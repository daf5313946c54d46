// Package extension is the editor-facing surface of remarkfmt: a command that
// reformats a whole document, a provider that formats a range on demand, and
// a watcher that formats Markdown files when they are saved.
//
// Failures never produce edits. They are written to the output channel,
// replacing whatever the channel showed before.
package extension

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"remarkfmt/internal/editor"
	"remarkfmt/internal/format"
	"remarkfmt/internal/logging"
)

// OutputName is the name of the output channel failures are reported to.
const OutputName = "Remark"

const outputHeader = "[Remark]"

// ErrUnsupportedDocument is returned for documents that are not Markdown.
var ErrUnsupportedDocument = errors.New("document is not markdown")

// Formatter runs one formatting invocation.
type Formatter interface {
	Run(ctx context.Context, doc editor.Document, rng *editor.Range) (*format.Result, error)
}

// Extension ties a formatter to an output channel.
type Extension struct {
	formatter Formatter
	output    editor.OutputChannel

	// reports are serialized so a report is never interleaved with another;
	// the last one to finish is what the channel shows.
	mu     sync.Mutex
	styled bool
	header lipgloss.Style
}

// Option configures an Extension.
type Option func(*Extension)

// WithStyledHeader renders the output header with terminal styling.
func WithStyledHeader(styled bool) Option {
	return func(e *Extension) { e.styled = styled }
}

// New creates an extension reporting to output.
func New(formatter Formatter, output editor.OutputChannel, opts ...Option) *Extension {
	e := &Extension{
		formatter: formatter,
		output:    output,
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supports reports whether doc is a Markdown document.
func Supports(doc editor.Document) bool {
	return doc.LanguageID() == "markdown"
}

// Reformat formats the whole document held by ed and replaces its text.
func (e *Extension) Reformat(ctx context.Context, ed *editor.Editor) error {
	result, err := e.formatter.Run(ctx, ed.Document, nil)
	if err != nil {
		e.report(err)
		return err
	}
	return ed.Edit(func(b *editor.EditBuilder) {
		b.Replace(result.Range, result.Content)
	})
}

// ProvideRangeFormattingEdits formats rng of doc and returns the single edit
// replacing it.
func (e *Extension) ProvideRangeFormattingEdits(ctx context.Context, doc editor.Document, rng editor.Range) ([]editor.TextEdit, error) {
	if !Supports(doc) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, doc.URI())
	}
	result, err := e.formatter.Run(ctx, doc, &rng)
	if err != nil {
		e.report(err)
		return nil, err
	}
	return []editor.TextEdit{editor.Replace(rng, result.Content)}, nil
}

func (e *Extension) report(err error) {
	if errors.Is(err, context.Canceled) {
		logging.Get(logging.CategoryFormat).Debug("Invocation canceled")
		return
	}
	msg := err.Error()
	var f *format.Failure
	if errors.As(err, &f) {
		msg = f.Message
	}
	e.showOutput(msg)
}

// showOutput clears the channel and writes the header and msg.
func (e *Extension) showOutput(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	header := outputHeader
	if e.styled {
		header = e.header.Render(outputHeader)
	}
	e.output.Clear()
	e.output.AppendLine(header)
	e.output.Append(msg)
	e.output.Show()
}
