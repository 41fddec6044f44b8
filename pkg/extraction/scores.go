package extraction

import (
	"regexp"
	"strings"
)

// QualityScores are the four additive content-quality heuristics, each
// in [0, 1]. Signals contribute about 0.2 each, capped at 1.
type QualityScores struct {
	CodeQuality    float64 `json:"code_quality"`
	Formatting     float64 `json:"formatting"`
	Metadata       float64 `json:"metadata"`
	Initialization float64 `json:"initialization"`
}

const signalWeight = 0.2

var (
	importLine = regexp.MustCompile(`(?m)^\s*(import\s|from\s+\S+\s+import\s|#include\s|require\s*\(|use\s+\S+::|using\s)`)
	declLine   = regexp.MustCompile(`(?m)^\s*(def\s|class\s|func\s|function\s|fn\s|public\s|private\s|static\s)`)
	comment    = regexp.MustCompile(`(?m)(^\s*#[^!]|//|/\*|"""|'''|^\s*--\s)`)
	operators  = regexp.MustCompile(`\s(=|==|!=|<=|>=|\+=|-=|:=|=>|->)\s`)

	setupKeywords   = regexp.MustCompile(`(?i)(install|setup|set up|configure|configuration|initiali[sz]e|getting started|quick\s?start|before you begin)`)
	mainGuard       = regexp.MustCompile(`__name__\s*==\s*['"]__main__['"]`)
	constructorCall = regexp.MustCompile(`(\bNew[A-Z]\w*\s*\(|\bnew\s+[A-Z]\w*\s*\(|=\s*[A-Z]\w*\s*\()`)
)

// ScoreSnippet computes all four quality scores for a snippet.
func ScoreSnippet(s *CodeSnippet) QualityScores {
	return QualityScores{
		CodeQuality:    codeQualityScore(s.Code),
		Formatting:     formattingScore(s.Code),
		Metadata:       metadataScore(s),
		Initialization: initializationScore(s),
	}
}

// codeQualityScore rewards structural completeness: imports, a
// declaration, comments, a readable length, bracketed structure.
func codeQualityScore(code string) float64 {
	score := 0.0
	if importLine.MatchString(code) {
		score += signalWeight
	}
	if declLine.MatchString(code) {
		score += signalWeight
	}
	if comment.MatchString(code) {
		score += signalWeight
	}
	lines := strings.Count(code, "\n") + 1
	if lines >= 5 && lines <= 50 {
		score += signalWeight
	}
	if balancedStructure(code) {
		score += signalWeight
	}
	return cap1(score)
}

// formattingScore rewards consistent indentation, bounded line length,
// spaced operators, and blank-line paragraphing.
func formattingScore(code string) float64 {
	score := 0.0
	if consistentIndent(code) {
		score += signalWeight
	}

	maxLine := 0
	for _, line := range strings.Split(code, "\n") {
		if len(line) > maxLine {
			maxLine = len(line)
		}
	}
	switch {
	case maxLine <= 100:
		score += signalWeight
	case maxLine <= 120:
		score += signalWeight / 2
	}

	if operators.MatchString(code) {
		score += signalWeight
	}
	if strings.Contains(code, "\n\n") {
		score += signalWeight
	}
	return cap1(score)
}

// metadataScore rewards a detected language and meaningful surrounding
// context.
func metadataScore(s *CodeSnippet) float64 {
	score := 0.0
	if s.Language != "" {
		score += 2 * signalWeight
	}
	if strings.TrimSpace(s.Context) != "" {
		score += 2 * signalWeight
	}
	if s.ContextIsHeading {
		score += signalWeight
	}
	return cap1(score)
}

// initializationScore rewards snippets that show how to set something
// up: install keywords, entrypoint guards, constructors, imports.
func initializationScore(s *CodeSnippet) float64 {
	score := 0.0
	if setupKeywords.MatchString(s.Context) || setupKeywords.MatchString(s.Code) {
		score += 2 * signalWeight
	}
	if mainGuard.MatchString(s.Code) {
		score += signalWeight
	}
	if constructorCall.MatchString(s.Code) {
		score += signalWeight
	}
	if importLine.MatchString(s.Code) {
		score += signalWeight
	}
	return cap1(score)
}

// balancedStructure checks that braces, brackets, and parens pair up.
func balancedStructure(code string) bool {
	pairs := []struct{ open, close rune }{
		{'{', '}'}, {'(', ')'}, {'[', ']'},
	}
	found := false
	for _, p := range pairs {
		open := strings.Count(code, string(p.open))
		closed := strings.Count(code, string(p.close))
		if open != closed {
			return false
		}
		if open > 0 {
			found = true
		}
	}
	return found
}

// consistentIndent checks that all indented lines share one indent
// style (tabs or a repeated space unit).
func consistentIndent(code string) bool {
	unit := 0
	sawTab := false
	sawSpace := false
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "\t") {
			sawTab = true
			continue
		}
		n := 0
		for _, r := range line {
			if r != ' ' {
				break
			}
			n++
		}
		if n == 0 {
			continue
		}
		sawSpace = true
		if unit == 0 {
			unit = n
		}
		if n%unit != 0 {
			return false
		}
	}
	return !(sawTab && sawSpace)
}

func cap1(score float64) float64 {
	if score > 1 {
		return 1
	}
	return score
}
