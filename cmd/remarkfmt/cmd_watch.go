package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"remarkfmt/internal/extension"
)

var watchDebounce time.Duration

// watchCmd formats Markdown files as they are saved
var watchCmd = &cobra.Command{
	Use:   "watch [DIR]",
	Short: "Format Markdown files under DIR whenever they are saved",
	Long: `Watches DIR (default: the workspace root) and its subdirectories and formats
each Markdown file once it has been quiet for the debounce interval.

Runs until interrupted or until --timeout elapses.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", extension.DefaultDebounce, "Quiet period before a saved file is formatted")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	dir := root
	if len(args) == 1 {
		if dir, err = filepath.Abs(args[0]); err != nil {
			return err
		}
	}

	ctx, cancel := commandContext()
	defer cancel()

	ext, err := newExtension(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	sw, err := extension.NewSaveWatcher(dir, ext, watchDebounce)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := sw.Start(ctx); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	defer sw.Stop()

	logger.Info("Watching", zap.String("dir", dir), zap.Duration("debounce", watchDebounce))
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", dir)

	select {
	case <-ctx.Done():
	case <-sw.Done():
	}

	stats := sw.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "Saved: %d, formatted: %d, unchanged: %d, failed: %d\n",
		stats.FilesSaved, stats.Formatted, stats.Unchanged, stats.Failures)
	return nil
}
