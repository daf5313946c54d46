package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"remarkfmt/internal/editor"
)

var (
	previewStyle string
	previewWidth int
	previewRaw   bool
)

// previewCmd formats a file and renders the result for the terminal
var previewCmd = &cobra.Command{
	Use:   "preview FILE",
	Short: "Format a Markdown file and render the result in the terminal",
	Long: `Formats FILE without writing it back and renders the formatted Markdown.
With --raw the formatted Markdown is printed as is.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewStyle, "style", "auto", "Render style (auto, dark, light, notty, or a style file)")
	previewCmd.Flags().IntVar(&previewWidth, "width", 80, "Word wrap width")
	previewCmd.Flags().BoolVar(&previewRaw, "raw", false, "Print the formatted Markdown without rendering")
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	ext, err := newExtension(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ed, err := editor.OpenFile(args[0])
	if err != nil {
		return err
	}
	if err := ext.Reformat(ctx, ed); err != nil {
		return errFormatFailed
	}

	text := ed.Document.Text()
	if previewRaw {
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	}

	style := glamour.WithAutoStyle()
	if previewStyle != "auto" {
		style = glamour.WithStylePath(previewStyle)
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(previewWidth))
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := renderer.Render(text)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", args[0], err)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
