package remark

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Point is a one-based line/column location in the processed text.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Location is a span between two points. A zero Location means "unknown".
type Location struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// String renders "L:C-L:C", or "1:1" for an unknown location.
func (l Location) String() string {
	if l.Start.Line == 0 {
		return "1:1"
	}
	if l.End.Line == 0 || l.End == l.Start {
		return fmt.Sprintf("%d:%d", l.Start.Line, l.Start.Column)
	}
	return fmt.Sprintf("%d:%d-%d:%d", l.Start.Line, l.Start.Column, l.End.Line, l.End.Column)
}

// Message is a diagnostic attached to a VFile.
type Message struct {
	Reason   string   `json:"reason"`
	Location Location `json:"location"`
	Severity Severity `json:"severity"`
	Source   string   `json:"source,omitempty"`
	RuleID   string   `json:"ruleId,omitempty"`
}

// String formats the message as "L:C-L:C: severity: reason [source:rule]".
func (m *Message) String() string {
	var b strings.Builder
	b.WriteString(m.Location.String())
	b.WriteString(": ")
	b.WriteString(m.Severity.String())
	b.WriteString(": ")
	b.WriteString(m.Reason)
	if m.Source != "" || m.RuleID != "" {
		b.WriteString(" [")
		b.WriteString(m.Source)
		if m.RuleID != "" {
			if m.Source != "" {
				b.WriteByte(':')
			}
			b.WriteString(m.RuleID)
		}
		b.WriteByte(']')
	}
	return b.String()
}

// VFile carries the text through the pipeline together with diagnostics.
type VFile struct {
	Path     string
	Contents string
	Messages []*Message
	Data     map[string]any

	lineStarts []int
	input      string
}

// NewVFile wraps input text.
func NewVFile(path, input string) *VFile {
	f := &VFile{Path: path, input: input, Data: make(map[string]any)}
	f.lineStarts = append(f.lineStarts, 0)
	for i := 0; i < len(input); i++ {
		if input[i] == '\n' {
			f.lineStarts = append(f.lineStarts, i+1)
		}
	}
	return f
}

// PointAt converts a byte offset of the input into a Point.
func (f *VFile) PointAt(offset int) Point {
	if offset < 0 {
		offset = 0
	}
	if offset > len(f.input) {
		offset = len(f.input)
	}
	line := 0
	lo, hi := 0, len(f.lineStarts)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if f.lineStarts[mid] <= offset {
			line = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	col := utf8.RuneCountInString(f.input[f.lineStarts[line]:offset])
	return Point{Line: line + 1, Column: col + 1}
}

// LocationOf converts a byte span of the input into a Location.
func (f *VFile) LocationOf(start, stop int) Location {
	return Location{Start: f.PointAt(start), End: f.PointAt(stop)}
}

func (f *VFile) add(sev Severity, reason string, loc Location, origin string) *Message {
	m := &Message{Reason: reason, Location: loc, Severity: sev}
	if origin != "" {
		src, rule, ok := strings.Cut(origin, ":")
		if ok {
			m.Source, m.RuleID = src, rule
		} else {
			m.Source = origin
		}
	}
	f.Messages = append(f.Messages, m)
	return m
}

// Info records an informational message. origin is "source" or "source:rule".
func (f *VFile) Info(reason string, loc Location, origin string) *Message {
	return f.add(SeverityInfo, reason, loc, origin)
}

// Message records a warning.
func (f *VFile) Message(reason string, loc Location, origin string) *Message {
	return f.add(SeverityWarning, reason, loc, origin)
}

// Fail records an error. Processing continues; callers decide what an error means.
func (f *VFile) Fail(reason string, loc Location, origin string) *Message {
	return f.add(SeverityError, reason, loc, origin)
}

// HasErrors reports whether any message has error severity.
func (f *VFile) HasErrors() bool {
	for _, m := range f.Messages {
		if m.Severity == SeverityError {
			return true
		}
	}
	return false
}
