// Package parser reads knowledge documents: optional YAML frontmatter
// followed by paragraphs separated by blank lines.
package parser

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document represents a parsed knowledge document.
type Document struct {
	// Frontmatter metadata (from YAML)
	Frontmatter map[string]any

	// Title extracted from frontmatter or first h1
	Title string

	// Body after frontmatter, trimmed
	Body string
}

var h1Regex = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// ParseDocument splits off YAML frontmatter when present. Invalid YAML is
// ignored and the frontmatter treated as empty.
func ParseDocument(content string) *Document {
	doc := &Document{
		Frontmatter: make(map[string]any),
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	remaining := content
	if strings.HasPrefix(content, "---\n") {
		endIdx := strings.Index(content[4:], "\n---")
		if endIdx > 0 {
			frontmatterYAML := content[4 : 4+endIdx]
			remaining = strings.TrimPrefix(content[4+endIdx+4:], "\n")

			if err := yaml.Unmarshal([]byte(frontmatterYAML), &doc.Frontmatter); err != nil {
				doc.Frontmatter = make(map[string]any)
			}
		}
	}

	doc.Body = strings.TrimSpace(remaining)
	doc.Title = extractTitle(doc.Frontmatter, doc.Body)
	return doc
}

// Paragraphs returns the body split on blank lines, trimmed, without empties.
func (d *Document) Paragraphs() []string {
	return SplitParagraphs(d.Body)
}

// GetFrontmatterString extracts a string from frontmatter.
func (d *Document) GetFrontmatterString(key string) string {
	if v, ok := d.Frontmatter[key].(string); ok {
		return v
	}
	return ""
}

// SplitParagraphs splits text on "\n\n" boundaries.
func SplitParagraphs(text string) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}

	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}

func extractTitle(fm map[string]any, content string) string {
	if title, ok := fm["title"].(string); ok && title != "" {
		return title
	}
	if match := h1Regex.FindStringSubmatch(content); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}
