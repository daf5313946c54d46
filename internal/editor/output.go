package editor

import (
	"bytes"
	"io"
	"sync"
)

// OutputChannel is a named log surface that is rewritten as a whole.
type OutputChannel interface {
	Name() string
	Clear()
	Append(text string)
	AppendLine(text string)
	Show()
}

// WriterChannel buffers appended text and flushes it to a writer on Show.
// Every Show writes the full buffer, so a Clear/Append/Show cycle replaces
// what the channel last displayed.
type WriterChannel struct {
	name string

	mu  sync.Mutex
	out io.Writer
	buf bytes.Buffer

	last string
}

// NewOutputChannel creates a channel writing to w.
func NewOutputChannel(name string, w io.Writer) *WriterChannel {
	return &WriterChannel{name: name, out: w}
}

// Name returns the channel name.
func (c *WriterChannel) Name() string { return c.name }

// Clear drops buffered content.
func (c *WriterChannel) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Reset()
}

// Append adds text without a trailing newline.
func (c *WriterChannel) Append(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.WriteString(text)
}

// AppendLine adds text followed by a newline.
func (c *WriterChannel) AppendLine(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.WriteString(text)
	c.buf.WriteByte('\n')
}

// Show flushes the buffer to the writer and remembers it as the displayed content.
func (c *WriterChannel) Show() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = c.buf.String()
	if c.out != nil {
		_, _ = io.WriteString(c.out, c.last)
		if n := len(c.last); n > 0 && c.last[n-1] != '\n' {
			_, _ = io.WriteString(c.out, "\n")
		}
	}
}

// Displayed returns what the last Show made visible.
func (c *WriterChannel) Displayed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
