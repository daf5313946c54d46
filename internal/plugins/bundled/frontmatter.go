package bundled

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"remarkfmt/internal/plugins"
	"remarkfmt/internal/remark"
)

// FrontmatterPlugin returns the front matter plugin. The YAML block at the
// top of a document is kept byte for byte and checked to be a mapping that
// carries every required key.
func FrontmatterPlugin() *plugins.Plugin {
	return &plugins.Plugin{
		Name:        "frontmatter",
		Description: "Preserve and validate YAML front matter",
		Attacher:    remark.AttacherFunc(attachFrontmatter),
		Schema: &plugins.SettingsSchema{
			Properties: map[string]plugins.Property{
				"required": {
					Type:        "array",
					Description: "Keys every front matter block must define",
				},
			},
		},
	}
}

func attachFrontmatter(proc *remark.Processor, settings any) error {
	required := stringsSetting(settingsMap(settings), "required")
	proc.EnableFrontmatter()
	proc.AddTransformer(func(_ context.Context, tree *remark.Tree, file *remark.VFile) error {
		checkFrontmatter(tree.Frontmatter, required, file)
		return nil
	})
	return nil
}

func checkFrontmatter(fm string, required []string, file *remark.VFile) {
	if fm == "" {
		if len(required) > 0 {
			file.Message("Missing front matter", remark.Location{}, "frontmatter:missing")
		}
		return
	}
	loc := file.LocationOf(0, len(strings.TrimRight(fm, "\n")))

	var values map[string]any
	if err := yaml.Unmarshal([]byte(remark.FrontmatterContent(fm)), &values); err != nil {
		file.Fail(fmt.Sprintf("Invalid YAML front matter: %v", err), loc, "frontmatter:yaml")
		return
	}
	for _, key := range required {
		if _, ok := values[key]; !ok {
			file.Message(fmt.Sprintf("Missing front matter field `%s`", key), loc, "frontmatter:required")
		}
	}
}
