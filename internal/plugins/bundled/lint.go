package bundled

import (
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark/ast"

	"remarkfmt/internal/plugins"
	"remarkfmt/internal/remark"
)

// Lint rule identifiers.
const (
	RuleHeadingIncrement    = "heading-increment"
	RuleNoDuplicateHeadings = "no-duplicate-headings"
	RuleNoMultipleTopLevel  = "no-multiple-toplevel-headings"
	RuleNoEmptyURL          = "no-empty-url"
	lintSource              = "lint"
	lintSeverityWarning     = "warning"
	lintSeverityError       = "error"
)

// LintPlugin returns the lint plugin. It never changes the document; it
// reports findings as messages of the configured severity.
func LintPlugin() *plugins.Plugin {
	return &plugins.Plugin{
		Name:        "lint",
		Description: "Check heading structure and links",
		Attacher:    remark.AttacherFunc(attachLint),
		Schema: &plugins.SettingsSchema{
			Properties: map[string]plugins.Property{
				"severity": {
					Type:        "string",
					Description: "Severity of every finding",
					Default:     lintSeverityWarning,
					Enum:        []any{lintSeverityWarning, lintSeverityError},
				},
				"disable": {
					Type:        "array",
					Description: "Rule identifiers to skip",
				},
			},
		},
	}
}

type linter struct {
	tree     *remark.Tree
	file     *remark.VFile
	severity string
	disabled map[string]bool
}

func attachLint(proc *remark.Processor, settings any) error {
	m := settingsMap(settings)
	severity := stringSetting(m, "severity", lintSeverityWarning)
	disabled := make(map[string]bool)
	for _, rule := range stringsSetting(m, "disable") {
		switch rule {
		case RuleHeadingIncrement, RuleNoDuplicateHeadings, RuleNoMultipleTopLevel, RuleNoEmptyURL:
			disabled[rule] = true
		default:
			return fmt.Errorf("unknown lint rule %q", rule)
		}
	}

	proc.AddTransformer(func(ctx context.Context, tree *remark.Tree, file *remark.VFile) error {
		l := &linter{tree: tree, file: file, severity: severity, disabled: disabled}
		return l.run(ctx)
	})
	return nil
}

func (l *linter) report(n ast.Node, rule, reason string) {
	if l.disabled[rule] {
		return
	}
	origin := lintSource + ":" + rule
	loc := l.tree.Locate(n)
	if l.severity == lintSeverityError {
		l.file.Fail(reason, loc, origin)
		return
	}
	l.file.Message(reason, loc, origin)
}

func (l *linter) position(n ast.Node) string {
	p := l.tree.Locate(n).Start
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

func (l *linter) run(ctx context.Context) error {
	var headings []*ast.Heading
	err := ast.Walk(l.tree.Root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if err := ctx.Err(); err != nil {
			return ast.WalkStop, err
		}
		switch n := n.(type) {
		case *ast.Heading:
			headings = append(headings, n)
		case *ast.Link:
			if len(n.Destination) == 0 {
				l.report(n, RuleNoEmptyURL, "Don't use links without URL")
			}
		case *ast.Image:
			if len(n.Destination) == 0 {
				l.report(n, RuleNoEmptyURL, "Don't use images without URL")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return err
	}

	l.checkHeadings(headings)
	return nil
}

func (l *linter) checkHeadings(headings []*ast.Heading) {
	seen := make(map[string]*ast.Heading)
	var firstTop *ast.Heading
	prev := 0
	for _, h := range headings {
		if prev > 0 && h.Level > prev+1 {
			l.report(h, RuleHeadingIncrement,
				fmt.Sprintf("Heading levels should increment by one level at a time, expected %d", prev+1))
		}
		prev = h.Level

		if h.Level == 1 {
			if firstTop != nil {
				l.report(h, RuleNoMultipleTopLevel,
					fmt.Sprintf("Don't use multiple top level headings (%s)", l.position(firstTop)))
			} else {
				firstTop = h
			}
		}

		key := strings.ToLower(strings.Join(strings.Fields(plainText(h, l.tree.Source)), " "))
		if key == "" {
			continue
		}
		if first, ok := seen[key]; ok {
			l.report(h, RuleNoDuplicateHeadings,
				fmt.Sprintf("Don't use headings with similar content (%s)", l.position(first)))
			continue
		}
		seen[key] = h
	}
}
