package bundled

import (
	"context"
	"sort"

	emoji "github.com/yuin/goldmark-emoji"
	east "github.com/yuin/goldmark-emoji/ast"
	"github.com/yuin/goldmark-emoji/definition"
	"github.com/yuin/goldmark/ast"

	"remarkfmt/internal/plugins"
	"remarkfmt/internal/remark"
)

const (
	emojiModeUnicode   = "unicode"
	emojiModeShortcode = "shortcode"
)

// EmojiPlugin returns the emoji plugin. In unicode mode, known gemoji
// shortcodes such as :tada: are replaced by the character they name. In
// shortcode mode they are kept but aliases are normalized, so :thumbsup:
// becomes :+1:.
func EmojiPlugin() *plugins.Plugin {
	return &plugins.Plugin{
		Name:        "emoji",
		Description: "Replace or normalize gemoji shortcodes",
		Attacher:    remark.AttacherFunc(attachEmoji),
		Schema: &plugins.SettingsSchema{
			Properties: map[string]plugins.Property{
				"mode": {
					Type:        "string",
					Description: "What known shortcodes become",
					Default:     emojiModeUnicode,
					Enum:        []any{emojiModeUnicode, emojiModeShortcode},
				},
				"custom": {
					Type:        "object",
					Description: "Extra shortcodes mapped to their replacement text",
				},
			},
		},
	}
}

func attachEmoji(proc *remark.Processor, settings any) error {
	m := settingsMap(settings)
	mode := stringSetting(m, "mode", emojiModeUnicode)

	custom, _ := m["custom"].(map[string]any)
	names := make([]string, 0, len(custom))
	for name := range custom {
		names = append(names, name)
	}
	sort.Strings(names)
	extra := make([]definition.Emoji, 0, len(names))
	for _, name := range names {
		value, _ := custom[name].(string)
		extra = append(extra, definition.NewEmoji(name, []rune(value), name))
	}

	defs := definition.Github(definition.WithEmojis(extra...))
	proc.AddExtension(emoji.New(emoji.WithEmojis(defs)))
	proc.AddTransformer(func(_ context.Context, tree *remark.Tree, _ *remark.VFile) error {
		replaceEmoji(tree.Root, mode)
		return nil
	})
	return nil
}

func replaceEmoji(root ast.Node, mode string) {
	var found []*east.Emoji
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if e, ok := n.(*east.Emoji); ok && entering {
			found = append(found, e)
		}
		return ast.WalkContinue, nil
	})

	for _, e := range found {
		text := ":" + string(e.ShortName) + ":"
		switch {
		case mode == emojiModeUnicode && e.Value.IsUnicode():
			text = string(e.Value.Unicode)
		case mode == emojiModeShortcode && len(e.Value.ShortNames) > 0:
			text = ":" + e.Value.ShortNames[0] + ":"
		}
		parent := e.Parent()
		parent.ReplaceChild(parent, e, ast.NewString([]byte(text)))
	}
}
