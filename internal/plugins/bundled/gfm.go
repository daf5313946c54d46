package bundled

import (
	"github.com/yuin/goldmark/extension"

	"remarkfmt/internal/plugins"
	"remarkfmt/internal/remark"
)

// GFMPlugin returns the GitHub Flavored Markdown plugin.
func GFMPlugin() *plugins.Plugin {
	return &plugins.Plugin{
		Name:        "gfm",
		Description: "Support tables, strikethrough, task lists and autolinks",
		Schema: &plugins.SettingsSchema{
			Properties: map[string]plugins.Property{
				"tables":        {Type: "boolean", Default: true},
				"strikethrough": {Type: "boolean", Default: true},
				"tasklists":     {Type: "boolean", Default: true},
				"autolinks":     {Type: "boolean", Default: true},
			},
		},
		Attacher: remark.AttacherFunc(func(proc *remark.Processor, settings any) error {
			m := settingsMap(settings)
			if boolSetting(m, "tables", true) {
				proc.AddExtension(extension.Table)
			}
			if boolSetting(m, "strikethrough", true) {
				proc.AddExtension(extension.Strikethrough)
			}
			if boolSetting(m, "tasklists", true) {
				proc.AddExtension(extension.TaskList)
			}
			if boolSetting(m, "autolinks", true) {
				proc.AddExtension(extension.Linkify)
			}
			return nil
		}),
	}
}
