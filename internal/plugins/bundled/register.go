package bundled

import (
	"remarkfmt/internal/plugins"
)

// RegisterAll registers all bundled plugins with the given registry.
func RegisterAll(registry *plugins.Registry) error {
	all := []*plugins.Plugin{
		TOCPlugin(),
		EmojiPlugin(),
		GFMPlugin(),
		FrontmatterPlugin(),
		LintPlugin(),
	}

	for _, p := range all {
		if err := registry.Register(p); err != nil {
			return err
		}
	}

	return nil
}

// NewRegistry returns a registry holding every bundled plugin.
func NewRegistry() *plugins.Registry {
	reg := plugins.NewRegistry()
	if err := RegisterAll(reg); err != nil {
		panic(err)
	}
	return reg
}
