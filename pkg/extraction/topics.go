package extraction

import (
	"sort"
	"strings"
)

// topicKeywords maps a topic tag to the keywords that signal it.
var topicKeywords = map[string][]string{
	"installation":    {"install", "pip install", "npm install", "go get", "brew install", "download"},
	"configuration":   {"config", "configuration", "settings", "environment variable", ".env", "yaml"},
	"authentication":  {"auth", "token", "api key", "credential", "oauth", "login"},
	"api":             {"endpoint", "request", "response", "rest", "graphql", "http"},
	"deployment":      {"deploy", "docker", "kubernetes", "production", "container"},
	"testing":         {"test", "assert", "mock", "coverage", "fixture"},
	"troubleshooting": {"error", "troubleshoot", "debug", "fix", "issue", "problem"},
	"quickstart":      {"quickstart", "quick start", "getting started", "tutorial", "example"},
	"migration":       {"migrate", "migration", "upgrade", "breaking change"},
}

// DetectTopics returns the sorted topic tags whose keywords appear in
// the text.
func DetectTopics(text string) []string {
	lower := strings.ToLower(text)

	var topics []string
	for topic, keywords := range topicKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				topics = append(topics, topic)
				break
			}
		}
	}
	sort.Strings(topics)
	return topics
}

// BuildEnrichment produces the contextual prefix stored alongside a
// chunk: document title and nearest section heading, when present.
func BuildEnrichment(docTitle, sectionHeading string) string {
	var parts []string
	if t := strings.TrimSpace(docTitle); t != "" {
		parts = append(parts, t)
	}
	if h := strings.TrimSpace(sectionHeading); h != "" && h != docTitle {
		parts = append(parts, h)
	}
	return strings.Join(parts, " > ")
}
