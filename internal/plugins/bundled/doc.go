// Package bundled provides the plugins that ship with remarkfmt.
//
// They are registered into the plugin registry and resolved when no
// workspace or user plugin of the same name exists.
//
// Plugins:
//   - toc: generate a table of contents under a matching heading
//   - emoji: replace gemoji shortcodes with unicode, or normalize them
//   - gfm: tables, strikethrough, task lists and autolinks
//   - frontmatter: keep and validate YAML front matter
//   - lint: heading and link checks reported as messages
package bundled
