package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"remarkfmt/internal/config"
	"remarkfmt/internal/plugins"
	"remarkfmt/internal/plugins/bundled"
	"remarkfmt/internal/script"
)

// pluginsCmd groups plugin inspection commands
var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Inspect bundled and configured plugins",
}

var pluginsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the bundled plugins and their settings",
	Args:  cobra.NoArgs,
	RunE:  runPluginsList,
}

var pluginsResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show where each configured plugin would be loaded from",
	Args:  cobra.NoArgs,
	RunE:  runPluginsResolve,
}

func init() {
	pluginsCmd.AddCommand(pluginsListCmd)
	pluginsCmd.AddCommand(pluginsResolveCmd)
}

func runPluginsList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, p := range bundled.NewRegistry().All() {
		fmt.Fprintf(out, "%s (%s)\n  %s\n", p.Name, p.PackageName(), p.Description)
		if p.Schema == nil {
			continue
		}
		keys := make([]string, 0, len(p.Schema.Properties))
		for k := range p.Schema.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			prop := p.Schema.Properties[k]
			line := fmt.Sprintf("    %s %s", k, prop.Type)
			if prop.Default != nil {
				line += fmt.Sprintf(" = %v", prop.Default)
			}
			fmt.Fprintf(out, "%s: %s\n", line, prop.Description)
		}
	}
	return nil
}

func runPluginsResolve(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	sandbox := script.NewSandbox()
	cfg, err := config.NewLoader(root, sandbox).Load(ctx)
	if err != nil {
		return err
	}
	resolver := plugins.NewResolver(root, bundled.NewRegistry(), sandbox)
	resolved, err := resolver.Resolve(ctx, cfg.Plugins)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resolved) == 0 {
		fmt.Fprintf(out, "No plugins configured (%s configuration)\n", cfg.Source)
		return nil
	}
	missing := 0
	for _, rp := range resolved {
		if rp.Package == nil {
			missing++
			fmt.Fprintf(out, "%s: not found\n  searched: %s, bundled\n", rp.Name,
				strings.Join(resolver.SearchPaths(rp.Name), ", "))
			continue
		}
		fmt.Fprintf(out, "%s: %s (%s)\n", rp.Name, rp.Location, rp.Package.Origin)
	}
	if missing > 0 {
		return fmt.Errorf("%d plugin(s) not found", missing)
	}
	return nil
}
