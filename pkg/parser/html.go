package parser

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/docvector/docvector/pkg/textutil"
)

// strippedTags are removed from the tree before any text extraction.
var strippedTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Aside:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Form:     true,
	atom.Button:   true,
	atom.Input:    true,
	atom.Svg:      true,
	atom.Canvas:   true,
	atom.Video:    true,
	atom.Audio:    true,
}

// contentSelectors is the priority order for locating main content.
// The first matching element whose trimmed text is at least
// minMainContentLen characters wins.
var contentSelectors = []selector{
	{tag: atom.Article},
	{tag: atom.Main},
	{attr: "role", value: "main"},
	{attr: "id", value: "content"},
	{attr: "id", value: "main-content"},
	{class: "content"},
	{class: "article"},
	{class: "post"},
	{class: "documentation"},
	{class: "docs"},
}

const minMainContentLen = 200

// HTMLParser extracts main content, title, language, and meta tags
// from HTML documents.
type HTMLParser struct{}

// NewHTMLParser creates an HTML parser.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

func (p *HTMLParser) Parse(data []byte, sourceURL string) (*ParsedDocument, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	stripTags(root)

	meta := collectMeta(root)
	if sourceURL != "" {
		meta["url"] = sourceURL
	}

	doc := &ParsedDocument{
		Title:    extractTitle(root, meta),
		Language: extractLanguage(root, meta),
		Metadata: meta,
	}

	main := findMainContent(root)
	if main == nil {
		main = findFirst(root, atom.Body)
	}
	if main == nil {
		main = root
	}
	doc.Content = textutil.CleanText(nodeText(main))

	return doc, nil
}

// selector matches by tag, by attribute value, or by class token.
type selector struct {
	tag   atom.Atom
	attr  string
	value string
	class string
}

func (s selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != 0 {
		return n.DataAtom == s.tag
	}
	if s.attr != "" {
		return strings.EqualFold(attrValue(n, s.attr), s.value)
	}
	if s.class != "" {
		for _, token := range strings.Fields(attrValue(n, "class")) {
			if strings.EqualFold(token, s.class) {
				return true
			}
		}
	}
	return false
}

func findMainContent(root *html.Node) *html.Node {
	for _, sel := range contentSelectors {
		var found *html.Node
		walk(root, func(n *html.Node) bool {
			if found == nil && sel.matches(n) {
				if len(strings.TrimSpace(nodeText(n))) >= minMainContentLen {
					found = n
					return false
				}
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func extractTitle(root *html.Node, meta map[string]interface{}) string {
	if n := findFirst(root, atom.Title); n != nil {
		if title := strings.TrimSpace(nodeText(n)); title != "" {
			return title
		}
	}
	if n := findFirst(root, atom.H1); n != nil {
		if title := strings.TrimSpace(nodeText(n)); title != "" {
			return title
		}
	}
	if og, ok := meta["og:title"].(string); ok && og != "" {
		return og
	}
	return ""
}

func extractLanguage(root *html.Node, meta map[string]interface{}) string {
	if n := findFirst(root, atom.Html); n != nil {
		if lang := attrValue(n, "lang"); lang != "" {
			return normalizeLanguage(lang)
		}
	}
	if cl, ok := meta["content-language"].(string); ok && cl != "" {
		return normalizeLanguage(cl)
	}
	return "en"
}

// collectMeta gathers open-graph, twitter, and standard meta tags.
func collectMeta(root *html.Node) map[string]interface{} {
	meta := make(map[string]interface{})
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Meta {
			return true
		}
		content := attrValue(n, "content")
		if content == "" {
			return true
		}

		if prop := strings.ToLower(attrValue(n, "property")); prop != "" {
			if strings.HasPrefix(prop, "og:") || strings.HasPrefix(prop, "twitter:") {
				meta[prop] = content
			}
			return true
		}
		if name := strings.ToLower(attrValue(n, "name")); name != "" {
			switch name {
			case "description", "keywords", "author":
				meta[name] = content
			default:
				if strings.HasPrefix(name, "twitter:") {
					meta[name] = content
				}
			}
			return true
		}
		if eq := strings.ToLower(attrValue(n, "http-equiv")); eq == "content-language" {
			meta["content-language"] = content
		}
		return true
	})
	return meta
}

// stripTags removes unwanted elements from the tree in place.
func stripTags(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && strippedTags[c.DataAtom] {
			n.RemoveChild(c)
			continue
		}
		stripTags(c)
	}
}

// blockTags force line breaks around their text content.
var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Pre: true, atom.Tr: true,
	atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Section: true,
	atom.Blockquote: true, atom.Dd: true, atom.Dt: true, atom.Hr: true,
}

// nodeText returns the concatenated text of a subtree with newlines
// around block-level elements.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		block := n.Type == html.ElementNode && blockTags[n.DataAtom]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	visit(n)
	return b.String()
}

// walk visits every node depth-first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func findFirst(root *html.Node, tag atom.Atom) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			found = n
			return false
		}
		return true
	})
	return found
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
