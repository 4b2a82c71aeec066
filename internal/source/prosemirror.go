package source

import (
	"encoding/json"
	"fmt"
	"strings"
)

// pmNode is a ProseMirror document node. Manual notes arrive in this format
// from the capture app's editor.
type pmNode struct {
	Type    string         `json:"type"`
	Text    string         `json:"text"`
	Content []pmNode       `json:"content"`
	Marks   []pmMark       `json:"marks"`
	Attrs   map[string]any `json:"attrs"`
}

type pmMark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs"`
}

func parseProseMirror(data []byte) (pmNode, bool) {
	var node pmNode
	if err := json.Unmarshal(data, &node); err != nil {
		return pmNode{}, false
	}
	return node, node.Type == "doc"
}

// ProseMirrorToMarkdown renders a ProseMirror document as Markdown.
// Unknown node types pass their content through unchanged.
func ProseMirrorToMarkdown(doc pmNode) string {
	out := renderNode(doc, "")
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(out)
}

func renderNode(node pmNode, listContext string) string {
	if node.Text != "" {
		return applyMarks(node.Text, node.Marks)
	}

	childContext := listContext
	switch node.Type {
	case "bulletList":
		childContext = "bullet"
	case "orderedList":
		childContext = "ordered"
	}

	var sb strings.Builder
	for _, child := range node.Content {
		sb.WriteString(renderNode(child, childContext))
	}
	content := sb.String()

	switch node.Type {
	case "doc", "bulletList", "orderedList":
		return content
	case "paragraph":
		if strings.TrimSpace(content) == "" {
			return ""
		}
		if listContext != "" {
			return content
		}
		return content + "\n\n"
	case "heading":
		if strings.TrimSpace(content) == "" {
			return ""
		}
		level := intAttr(node.Attrs, "level", 1)
		return strings.Repeat("#", level) + " " + content + "\n\n"
	case "listItem":
		if listContext == "ordered" {
			return "1. " + strings.TrimSpace(content) + "\n"
		}
		return "- " + strings.TrimSpace(content) + "\n"
	case "codeBlock":
		lang, _ := node.Attrs["language"].(string)
		return "```" + lang + "\n" + content + "\n```\n\n"
	case "blockquote":
		lines := strings.Split(strings.TrimSpace(content), "\n")
		for i, line := range lines {
			lines[i] = "> " + line
		}
		return strings.Join(lines, "\n") + "\n\n"
	case "hardBreak":
		return "\n"
	case "horizontalRule":
		return "---\n\n"
	default:
		return content
	}
}

func applyMarks(text string, marks []pmMark) string {
	for _, mark := range marks {
		switch mark.Type {
		case "bold":
			text = "**" + text + "**"
		case "italic":
			text = "*" + text + "*"
		case "code":
			text = "`" + text + "`"
		case "link":
			href, _ := mark.Attrs["href"].(string)
			text = fmt.Sprintf("[%s](%s)", text, href)
		}
	}
	return text
}

func intAttr(attrs map[string]any, key string, fallback int) int {
	v, ok := attrs[key]
	if !ok {
		return fallback
	}
	f, ok := v.(float64)
	if !ok {
		return fallback
	}
	return int(f)
}
