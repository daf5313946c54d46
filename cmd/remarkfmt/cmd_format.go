package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"remarkfmt/internal/editor"
	"remarkfmt/internal/extension"
)

var (
	formatRange string
	formatWrite bool
	formatCheck bool
	formatJobs  int
)

var (
	errFormatFailed    = errors.New("formatting failed")
	errNeedsFormatting = errors.New("files are not formatted")
)

// formatCmd formats files or stdin
var formatCmd = &cobra.Command{
	Use:   "format [FILE...]",
	Short: "Format Markdown files, or stdin when no file is given",
	Long: `Formats each FILE through the workspace pipeline.

Without --write or --check the formatted text is printed to stdout. --range
limits formatting to a span of a single file, given as L:C-L:C (one-based) or
L-L for whole lines.

Failures are reported under a [Remark] header on stderr and leave the file
untouched.`,
	RunE: runFormat,
}

func init() {
	formatCmd.Flags().StringVarP(&formatRange, "range", "r", "", "Only format this span (L:C-L:C or L-L)")
	formatCmd.Flags().BoolVar(&formatWrite, "write", false, "Write the result back to each file")
	formatCmd.Flags().BoolVar(&formatCheck, "check", false, "List files that are not formatted and fail if there are any")
	formatCmd.Flags().IntVarP(&formatJobs, "jobs", "j", runtime.NumCPU(), "Files formatted in parallel")
	formatCmd.MarkFlagsMutuallyExclusive("write", "check")
}

type fileResult struct {
	path    string
	text    string
	changed bool
	err     error
	// reported is set when the failure already went to the output channel.
	reported bool
}

func runFormat(cmd *cobra.Command, args []string) error {
	if formatWrite && formatCheck {
		return errors.New("--write and --check cannot be combined")
	}

	var rng *editor.Range
	if formatRange != "" {
		if len(args) > 1 {
			return errors.New("--range needs exactly one file")
		}
		r, err := editor.ParseRange(formatRange)
		if err != nil {
			return err
		}
		rng = &r
	}

	ctx, cancel := commandContext()
	defer cancel()

	ext, err := newExtension(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return formatStdin(ctx, cmd, ext, rng)
	}

	results := make([]fileResult, len(args))
	g, gctx := errgroup.WithContext(ctx)
	if formatJobs > 0 {
		g.SetLimit(formatJobs)
	}
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			results[i] = formatFile(gctx, ext, path, rng)
			return nil
		})
	}
	_ = g.Wait()

	out := cmd.OutOrStdout()
	failed, unformatted := 0, 0
	for _, r := range results {
		if r.err != nil {
			failed++
			if !r.reported {
				fmt.Fprintln(cmd.ErrOrStderr(), r.err)
			}
			logger.Debug("Format failed", zap.String("file", r.path), zap.Error(r.err))
			continue
		}
		switch {
		case formatCheck:
			if r.changed {
				unformatted++
				fmt.Fprintln(out, r.path)
			}
		case formatWrite:
			if r.changed {
				logger.Info("Formatted", zap.String("file", r.path))
			}
		default:
			fmt.Fprint(out, r.text)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d file(s)", errFormatFailed, failed, len(results))
	}
	if unformatted > 0 {
		return fmt.Errorf("%w: %d file(s)", errNeedsFormatting, unformatted)
	}
	return nil
}

func formatStdin(ctx context.Context, cmd *cobra.Command, ext *extension.Extension, rng *editor.Range) error {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	ed := &editor.Editor{Document: editor.NewTextDocument("stdin.md", string(data))}
	if err := apply(ctx, ext, ed, rng); err != nil {
		return errFormatFailed
	}
	text := ed.Document.Text()
	if formatCheck && text != string(data) {
		return errNeedsFormatting
	}
	if !formatCheck {
		fmt.Fprint(cmd.OutOrStdout(), text)
	}
	return nil
}

func formatFile(ctx context.Context, ext *extension.Extension, path string, rng *editor.Range) fileResult {
	ed, err := editor.OpenFile(path)
	if err != nil {
		return fileResult{path: path, err: err}
	}
	original := ed.Document.Text()
	if err := apply(ctx, ext, ed, rng); err != nil {
		reported := !errors.Is(err, extension.ErrUnsupportedDocument) && !errors.Is(err, context.Canceled)
		return fileResult{path: path, err: err, reported: reported}
	}

	text := ed.Document.Text()
	res := fileResult{path: path, text: text, changed: text != original}
	if formatWrite && res.changed {
		if err := ed.Save(); err != nil {
			res.err = err
		}
	}
	return res
}

// apply formats the whole document with the reformat command, or rng through
// the range provider.
func apply(ctx context.Context, ext *extension.Extension, ed *editor.Editor, rng *editor.Range) error {
	if rng == nil {
		return ext.Reformat(ctx, ed)
	}
	edits, err := ext.ProvideRangeFormattingEdits(ctx, ed.Document, ed.Document.Validate(*rng))
	if err != nil {
		return err
	}
	return ed.Edit(func(b *editor.EditBuilder) {
		for _, e := range edits {
			b.Replace(e.Range, e.NewText)
		}
	})
}
