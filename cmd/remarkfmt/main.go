package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"remarkfmt/internal/config"
	"remarkfmt/internal/editor"
	"remarkfmt/internal/extension"
	"remarkfmt/internal/format"
	"remarkfmt/internal/logging"
)

var (
	// Global flags
	verbose   bool
	workspace string
	timeout   time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "remarkfmt",
	Short: "Format Markdown with a configurable remark pipeline",
	Long: `remarkfmt formats Markdown documents through a pipeline assembled from the
workspace configuration (.remarkrc, .remarkrc.json, .remarkrc.yml, .remarkrc.go)
or, when there is none, the "remark.format" host settings.

Plugins named in the configuration are looked up as remark-<name> in
.remarkfmt/plugins, then in the user plugin directory, then among the
bundled plugins.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		root, err := workspaceRoot()
		if err != nil {
			return err
		}
		if err := logging.Initialize(root); err != nil {
			logger.Warn("File logging disabled", zap.Error(err))
		}
		logging.Boot("remarkfmt %s in %s", cmd.Name(), root)
		logging.BootDebug("verbose=%v timeout=%s", verbose, timeout)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: detected from the current directory)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Abort after this long (0 means no limit)")

	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// workspaceRoot returns the --workspace flag or the detected workspace root.
func workspaceRoot() (string, error) {
	if workspace != "" {
		return filepath.Abs(workspace)
	}
	return config.FindWorkspaceRoot()
}

// commandContext returns a context cancelled by SIGINT/SIGTERM and --timeout.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// newExtension wires the runner for the workspace to an output channel on w.
func newExtension(w io.Writer) (*extension.Extension, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	out := editor.NewOutputChannel(extension.OutputName, w)
	return extension.New(format.NewRunner(root), out, extension.WithStyledHeader(isTerminal(w))), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
