// Package parser turns fetched documents (HTML, Markdown, plain text)
// into normalized text plus title, language, and metadata.
package parser

import (
	"mime"
	"path"
	"strings"
)

// ParsedDocument is the output of every parser.
type ParsedDocument struct {
	Content  string                 `json:"content"`
	Title    string                 `json:"title"`
	Language string                 `json:"language"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Parser extracts a ParsedDocument from raw bytes. sourceURL is recorded
// in metadata and may be empty for filesystem sources.
type Parser interface {
	Parse(data []byte, sourceURL string) (*ParsedDocument, error)
}

// Registry dispatches to a parser by MIME type or file extension,
// falling back to the plain-text parser.
type Registry struct {
	html     Parser
	markdown Parser
	text     Parser
}

// NewRegistry creates a registry with the built-in parsers.
func NewRegistry() *Registry {
	return &Registry{
		html:     NewHTMLParser(),
		markdown: NewMarkdownParser(),
		text:     NewTextParser(),
	}
}

// ParserFor selects a parser for the given content type and URL/path.
// Either argument may be empty.
func (r *Registry) ParserFor(contentType, urlOrPath string) Parser {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			contentType = mt
		}
		switch {
		case strings.Contains(contentType, "html"):
			return r.html
		case strings.Contains(contentType, "markdown"):
			return r.markdown
		case contentType == "text/plain":
			// Extension may still identify markdown served as text/plain.
		}
	}

	switch strings.ToLower(path.Ext(strippedPath(urlOrPath))) {
	case ".html", ".htm", ".xhtml":
		return r.html
	case ".md", ".markdown", ".mdown":
		return r.markdown
	}

	return r.text
}

// Parse dispatches and parses in one step.
func (r *Registry) Parse(data []byte, contentType, urlOrPath string) (*ParsedDocument, error) {
	return r.ParserFor(contentType, urlOrPath).Parse(data, urlOrPath)
}

// strippedPath removes query and fragment from a URL so the extension
// check sees the path only.
func strippedPath(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}

// normalizeLanguage collapses region subtags: "en-US" -> "en".
func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(strings.ToLower(lang))
	if lang == "" {
		return "en"
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
