// Package extraction pulls code snippets out of HTML and Markdown
// documents and scores their quality for reranking.
package extraction

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// minSnippetChars is the minimum number of non-whitespace characters a
// snippet must contain.
const minSnippetChars = 10

// CodeSnippet is one extracted code block with its surrounding context.
type CodeSnippet struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
	// Context is the nearest preceding heading or paragraph
	Context          string        `json:"context,omitempty"`
	ContextIsHeading bool          `json:"context_is_heading,omitempty"`
	Scores           QualityScores `json:"scores"`
}

// languageClasses match highlighter class tokens like "language-go",
// "lang-python", "hljs-rust".
var languageClasses = regexp.MustCompile(`^(?:language|lang|hljs)-([A-Za-z0-9_+#-]+)$`)

// ExtractFromHTML extracts code from <pre><code> blocks and
// <script type="text/plain"> islands.
func ExtractFromHTML(data []byte) []CodeSnippet {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	var snippets []CodeSnippet
	var lastHeading, lastParagraph string

	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				lastHeading = strings.TrimSpace(textOf(n))
			case atom.P:
				lastParagraph = strings.TrimSpace(textOf(n))
			case atom.Pre:
				if snippet := snippetFromPre(n, lastHeading, lastParagraph); snippet != nil {
					snippets = append(snippets, *snippet)
				}
				return
			case atom.Script:
				if strings.EqualFold(nodeAttr(n, "type"), "text/plain") {
					code := textOf(n)
					if snippet := buildSnippet(code, classLanguage(n), lastHeading, lastParagraph); snippet != nil {
						snippets = append(snippets, *snippet)
					}
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)

	return snippets
}

func snippetFromPre(pre *html.Node, heading, paragraph string) *CodeSnippet {
	lang := classLanguage(pre)
	code := ""

	// Prefer an inner <code> element; fall back to the raw <pre> text.
	var codeNode *html.Node
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Code {
			codeNode = c
			break
		}
	}
	if codeNode != nil {
		code = textOf(codeNode)
		if lang == "" {
			lang = classLanguage(codeNode)
		}
	} else {
		code = textOf(pre)
	}

	return buildSnippet(code, lang, heading, paragraph)
}

func buildSnippet(code, lang, heading, paragraph string) *CodeSnippet {
	code = strings.Trim(code, "\n")
	if nonWhitespaceLen(code) < minSnippetChars {
		return nil
	}

	context := paragraph
	isHeading := false
	if heading != "" {
		context = heading
		isHeading = true
	}

	s := &CodeSnippet{
		Code:             code,
		Language:         lang,
		Context:          context,
		ContextIsHeading: isHeading,
	}
	s.Scores = ScoreSnippet(s)
	return s
}

func classLanguage(n *html.Node) string {
	for _, token := range strings.Fields(nodeAttr(n, "class")) {
		if m := languageClasses.FindStringSubmatch(token); m != nil {
			return strings.ToLower(m[1])
		}
	}
	return ""
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

func nonWhitespaceLen(s string) int {
	count := 0
	for _, r := range s {
		if !strings.ContainsRune(" \t\n\r\v\f", r) {
			count++
		}
	}
	return count
}

var fencePattern = regexp.MustCompile("(?ms)^```([A-Za-z0-9_+#-]*)[ \t]*\n(.*?)^```[ \t]*$")

// markdownContextChars is roughly how much preceding text is captured
// as context for a markdown code block.
const markdownContextChars = 200

// ExtractFromMarkdown extracts fenced and 4-space-indented code blocks.
func ExtractFromMarkdown(text string) []CodeSnippet {
	var snippets []CodeSnippet
	covered := make([]bool, len(text))

	for _, m := range fencePattern.FindAllStringSubmatchIndex(text, -1) {
		lang := strings.ToLower(text[m[2]:m[3]])
		code := text[m[4]:m[5]]
		for i := m[0]; i < m[1]; i++ {
			covered[i] = true
		}

		heading, paragraph := markdownContext(text[:m[0]])
		if snippet := buildSnippet(code, lang, heading, paragraph); snippet != nil {
			snippets = append(snippets, *snippet)
		}
	}

	snippets = append(snippets, indentedBlocks(text, covered)...)
	return snippets
}

// indentedBlocks finds runs of lines indented by at least four spaces
// (or a tab) outside fenced regions.
func indentedBlocks(text string, covered []bool) []CodeSnippet {
	var snippets []CodeSnippet
	lines := strings.Split(text, "\n")

	var block []string
	blockStart := -1
	offset := 0
	flush := func() {
		if len(block) == 0 {
			return
		}
		code := strings.Join(block, "\n")
		heading, paragraph := markdownContext(text[:blockStart])
		if snippet := buildSnippet(code, "", heading, paragraph); snippet != nil {
			snippets = append(snippets, *snippet)
		}
		block = nil
		blockStart = -1
	}

	for _, line := range lines {
		lineCovered := offset < len(covered) && covered[offset]
		indented := strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t")
		blank := strings.TrimSpace(line) == ""

		switch {
		case lineCovered:
			flush()
		case indented:
			if blockStart < 0 {
				blockStart = offset
			}
			block = append(block, strings.TrimPrefix(strings.TrimPrefix(line, "    "), "\t"))
		case blank && len(block) > 0:
			// Blank lines inside an indented block are kept.
			block = append(block, "")
		default:
			flush()
		}
		offset += len(line) + 1
	}
	flush()

	// Trim trailing blank lines kept speculatively.
	for i := range snippets {
		snippets[i].Code = strings.Trim(snippets[i].Code, "\n")
	}
	return snippets
}

var markdownHeading = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)

// markdownContext returns the nearest preceding heading and the tail of
// the preceding prose, looking back about markdownContextChars.
func markdownContext(before string) (heading, paragraph string) {
	if ms := markdownHeading.FindAllStringSubmatch(before, -1); len(ms) > 0 {
		heading = strings.TrimSpace(ms[len(ms)-1][1])
	}

	window := before
	if len(window) > markdownContextChars {
		window = window[len(window)-markdownContextChars:]
	}
	paragraphs := strings.Split(strings.TrimSpace(window), "\n\n")
	for i := len(paragraphs) - 1; i >= 0; i-- {
		p := strings.TrimSpace(paragraphs[i])
		if p != "" && !strings.HasPrefix(p, "#") {
			paragraph = p
			break
		}
	}
	return heading, paragraph
}
