package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/docvector/docvector/pkg/textutil"
)

// TextParser is the fallback for unknown formats: raw UTF-8 decode with
// invalid bytes replaced.
type TextParser struct{}

// NewTextParser creates a plain-text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Parse(data []byte, sourceURL string) (*ParsedDocument, error) {
	content := string(data)
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "�")
	}

	meta := make(map[string]interface{})
	if sourceURL != "" {
		meta["url"] = sourceURL
	}

	return &ParsedDocument{
		Content:  textutil.CleanText(content),
		Language: "en",
		Metadata: meta,
	}, nil
}
