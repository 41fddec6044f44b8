package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownTitle(t *testing.T) {
	doc, err := NewMarkdownParser().Parse([]byte("# Document Title\n\nContent."), "")
	require.NoError(t, err)
	assert.Equal(t, "Document Title", doc.Title)
	assert.Equal(t, "en", doc.Language)
	assert.Contains(t, doc.Content, "Content.")
}

func TestMarkdownSetextTitle(t *testing.T) {
	doc, err := NewMarkdownParser().Parse([]byte("Underlined Title\n================\n\nBody."), "")
	require.NoError(t, err)
	assert.Equal(t, "Underlined Title", doc.Title)
}

func TestMarkdownNoHeading(t *testing.T) {
	doc, err := NewMarkdownParser().Parse([]byte("Just a paragraph without any heading."), "")
	require.NoError(t, err)
	assert.Empty(t, doc.Title)
}

func TestMarkdownClosedATXHeading(t *testing.T) {
	doc, err := NewMarkdownParser().Parse([]byte("## Closed Heading ##\n\ntext"), "")
	require.NoError(t, err)
	assert.Equal(t, "Closed Heading", doc.Title)
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()

	assert.IsType(t, &HTMLParser{}, r.ParserFor("text/html; charset=utf-8", ""))
	assert.IsType(t, &MarkdownParser{}, r.ParserFor("text/markdown", ""))
	assert.IsType(t, &MarkdownParser{}, r.ParserFor("", "https://example.com/guide.md?v=2"))
	assert.IsType(t, &HTMLParser{}, r.ParserFor("", "/docs/index.html"))
	assert.IsType(t, &TextParser{}, r.ParserFor("application/octet-stream", "notes.txt"))
}

func TestTextParserInvalidUTF8(t *testing.T) {
	doc, err := NewTextParser().Parse([]byte{0x68, 0x69, 0xff, 0xfe}, "")
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "hi")
}
