package parser

import (
	"regexp"
	"strings"

	"github.com/docvector/docvector/pkg/textutil"
)

// MarkdownParser decodes markdown documents. Content stays in markdown
// form so the semantic chunker can use its heading structure.
type MarkdownParser struct{}

// NewMarkdownParser creates a markdown parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

var (
	atxHeading      = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*\s*$`)
	setextUnderline = regexp.MustCompile(`^(=+|-{2,})\s*$`)
)

func (p *MarkdownParser) Parse(data []byte, sourceURL string) (*ParsedDocument, error) {
	content := string(data)

	meta := make(map[string]interface{})
	if sourceURL != "" {
		meta["url"] = sourceURL
	}

	return &ParsedDocument{
		Content:  textutil.CleanText(content),
		Title:    markdownTitle(content),
		Language: "en",
		Metadata: meta,
	}, nil
}

// markdownTitle returns the text of the first heading: either an ATX
// ("# Title") or a setext heading (text underlined with = or -).
func markdownTitle(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := atxHeading.FindStringSubmatch(trimmed); m != nil {
			return strings.TrimSpace(m[1])
		}
		if i+1 < len(lines) && setextUnderline.MatchString(strings.TrimSpace(lines[i+1])) {
			return trimmed
		}
		// First non-blank line is body text, not a heading.
		return ""
	}
	return ""
}
