package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFromHTMLPreCode(t *testing.T) {
	input := `<html><body>
		<h2>Install the client</h2>
		<p>Run this command first.</p>
		<pre><code class="language-python">import requests

def fetch(url):
    # simple wrapper
    return requests.get(url)</code></pre>
	</body></html>`

	snippets := ExtractFromHTML([]byte(input))
	require.Len(t, snippets, 1)

	s := snippets[0]
	assert.Equal(t, "python", s.Language)
	assert.Contains(t, s.Code, "import requests")
	assert.Equal(t, "Install the client", s.Context)
	assert.True(t, s.ContextIsHeading)
}

func TestExtractFromHTMLRejectsShort(t *testing.T) {
	input := `<html><body><pre><code>x = 1</code></pre></body></html>`
	assert.Empty(t, ExtractFromHTML([]byte(input)))
}

func TestExtractFromHTMLLanguageFromPreClass(t *testing.T) {
	input := `<html><body><pre class="hljs-go"><code>fmt.Println("hello world")</code></pre></body></html>`
	snippets := ExtractFromHTML([]byte(input))
	require.Len(t, snippets, 1)
	assert.Equal(t, "go", snippets[0].Language)
}

func TestExtractFromMarkdownFenced(t *testing.T) {
	input := "# Setup\n\nInstall it like this:\n\n```bash\npip install docvector-client\n```\n"

	snippets := ExtractFromMarkdown(input)
	require.Len(t, snippets, 1)

	s := snippets[0]
	assert.Equal(t, "bash", s.Language)
	assert.Contains(t, s.Code, "pip install")
	assert.Equal(t, "Setup", s.Context)
	assert.True(t, s.ContextIsHeading)
}

func TestExtractFromMarkdownIndented(t *testing.T) {
	input := "Some prose before the block.\n\n    first_line = compute()\n    second_line = store(first_line)\n\nAfter."

	snippets := ExtractFromMarkdown(input)
	require.Len(t, snippets, 1)
	assert.Contains(t, snippets[0].Code, "first_line = compute()")
	assert.Contains(t, snippets[0].Code, "second_line")
}

func TestExtractFromMarkdownIgnoresFencedInsideIndentScan(t *testing.T) {
	input := "```\n    indented inside fence stays fenced\n```\n"
	snippets := ExtractFromMarkdown(input)
	require.Len(t, snippets, 1)
	assert.Contains(t, snippets[0].Code, "indented inside fence")
}

func TestScoreCodeQuality(t *testing.T) {
	s := &CodeSnippet{Code: `import os

def main():
    # entry point
    value = os.getenv("HOME")
    print(value)
`}
	scores := ScoreSnippet(s)
	// imports + declaration + comment + 5-50 lines + balanced brackets
	assert.InDelta(t, 1.0, scores.CodeQuality, 1e-9)
}

func TestScoreMetadata(t *testing.T) {
	s := &CodeSnippet{
		Code:             "some code body here",
		Language:         "go",
		Context:          "Usage",
		ContextIsHeading: true,
	}
	scores := ScoreSnippet(s)
	assert.InDelta(t, 1.0, scores.Metadata, 1e-9)

	bare := &CodeSnippet{Code: "some code body here"}
	assert.InDelta(t, 0.0, ScoreSnippet(bare).Metadata, 1e-9)
}

func TestScoreInitialization(t *testing.T) {
	s := &CodeSnippet{
		Code:    "import app\n\nif __name__ == \"__main__\":\n    client = Client()\n    client.run()",
		Context: "Getting started with setup",
	}
	scores := ScoreSnippet(s)
	assert.InDelta(t, 1.0, scores.Initialization, 1e-9)
}

func TestScoresBounded(t *testing.T) {
	snippets := ExtractFromMarkdown("```go\nfunc main() { fmt.Println(\"x\") }\n```")
	require.Len(t, snippets, 1)

	sc := snippets[0].Scores
	for _, v := range []float64{sc.CodeQuality, sc.Formatting, sc.Metadata, sc.Initialization} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestDetectTopics(t *testing.T) {
	topics := DetectTopics("Run pip install foo, then set the API key in your .env file")
	assert.Contains(t, topics, "installation")
	assert.Contains(t, topics, "configuration")
	assert.Contains(t, topics, "authentication")

	assert.Empty(t, DetectTopics("completely unrelated prose about weather"))
}

func TestBuildEnrichment(t *testing.T) {
	assert.Equal(t, "Guide > Install", BuildEnrichment("Guide", "Install"))
	assert.Equal(t, "Guide", BuildEnrichment("Guide", "Guide"))
	assert.Equal(t, "Install", BuildEnrichment("", "Install"))
	assert.Equal(t, "", BuildEnrichment("", ""))
}
