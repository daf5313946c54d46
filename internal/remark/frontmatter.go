package remark

import "strings"

// SplitFrontmatter splits a leading YAML block delimited by "---" lines off
// input. The closing fence may also be "...". fm includes both fences and
// the newline after the closing one; it is empty when input has no block.
func SplitFrontmatter(input string) (fm, body string) {
	first, rest, ok := strings.Cut(input, "\n")
	if !ok || strings.TrimRight(first, " \t\r") != "---" {
		return "", input
	}

	offset := len(first) + 1
	for rest != "" {
		line, next, more := strings.Cut(rest, "\n")
		trimmed := strings.TrimRight(line, " \t\r")
		end := offset + len(line)
		if more {
			end++
		}
		if trimmed == "---" || trimmed == "..." {
			return input[:end], input[end:]
		}
		offset = end
		rest = next
	}
	return "", input
}

// joinFrontmatter puts a front matter block back in front of the formatted
// body, separated by a blank line.
func joinFrontmatter(fm, body string) string {
	if fm == "" {
		return body
	}
	if !strings.HasSuffix(fm, "\n") {
		fm += "\n"
	}
	if body == "" {
		return fm
	}
	return fm + "\n" + body
}

// FrontmatterContent returns the YAML between the fences of fm.
func FrontmatterContent(fm string) string {
	if fm == "" {
		return ""
	}
	_, inner, _ := strings.Cut(fm, "\n")
	inner = strings.TrimRight(inner, "\n")
	if i := strings.LastIndexByte(inner, '\n'); i >= 0 {
		return inner[:i+1]
	}
	return ""
}
