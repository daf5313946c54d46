package format

import (
	"errors"
	"fmt"
	"strings"

	"remarkfmt/internal/plugins"
	"remarkfmt/internal/remark"
)

// PipelineError records one plugin that could not join the pipeline.
type PipelineError struct {
	Name string
	Err  error
}

func (e PipelineError) Error() string {
	return fmt.Sprintf("[%s]: %v", e.Name, e.Err)
}

func (e PipelineError) Unwrap() error { return e.Err }

// NotFound reports whether the plugin package was missing.
func (e PipelineError) NotFound() bool {
	return errors.Is(e.Err, plugins.ErrPackageNotFound)
}

// Failure is the single aggregated outcome of a failed invocation. Message
// is what the user sees, one line per underlying problem.
type Failure struct {
	Message string

	// At most one of these is set, naming the stage that failed.
	Pipeline    []PipelineError
	Diagnostics []*remark.Message
	Cause       error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Cause }

func pipelineFailure(errs []PipelineError) *Failure {
	var b strings.Builder
	for _, e := range errs {
		if e.NotFound() {
			pkg := plugins.CanonicalName(e.Name)
			fmt.Fprintf(&b, "Error: [%s]: %v. Install %s as .remarkfmt/plugins/%s.go in the workspace or in the user plugin directory.\n",
				e.Name, e.Err, pkg, pkg)
			continue
		}
		b.WriteString(e.Error())
		b.WriteByte('\n')
	}
	return &Failure{Message: b.String(), Pipeline: errs}
}

func diagnosticFailure(msgs []*remark.Message) *Failure {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.String())
		b.WriteByte('\n')
	}
	return &Failure{Message: b.String(), Diagnostics: msgs}
}

func causeFailure(err error) *Failure {
	return &Failure{Message: err.Error() + "\n", Cause: err}
}

// hasErrorText reports whether any diagnostic mentions "error" in any case.
func hasErrorText(msgs []*remark.Message) bool {
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.String()), "error") {
			return true
		}
	}
	return false
}
