package chunking

import (
	"regexp"
)

// SemanticChunker splits text at heading boundaries and blank-line runs,
// then greedily packs consecutive sections into chunks of at most Size
// characters. Sections larger than Size are hard-split.
type SemanticChunker struct {
	config ChunkerConfig
}

// NewSemanticChunker creates a new semantic chunker
func NewSemanticChunker(config ChunkerConfig) *SemanticChunker {
	return &SemanticChunker{
		config: config,
	}
}

var headingLine = regexp.MustCompile(`^#{1,6}\s`)

// section is a rune span [start, end) of the original text.
type section struct {
	start int
	end   int
}

// Chunk splits content into semantically bounded chunks
func (sc *SemanticChunker) Chunk(content string) ([]Chunk, error) {
	runes := []rune(content)
	lo, hi := trimBounds(runes)
	if lo >= hi {
		return []Chunk{}, nil
	}

	sections := splitSections(runes, lo, hi)
	size := sc.config.Size

	var chunks []Chunk
	emit := func(start, end int) {
		chunks = append(chunks, Chunk{
			Content:   string(runes[start:end]),
			Index:     len(chunks),
			StartChar: start,
			EndChar:   end,
			Metadata: map[string]interface{}{
				"strategy": "semantic",
			},
		})
	}

	groupStart := -1
	groupEnd := -1
	flush := func() {
		if groupStart >= 0 {
			emit(groupStart, groupEnd)
			groupStart, groupEnd = -1, -1
		}
	}

	for _, s := range sections {
		if s.end-s.start > size {
			// Oversize section: never packed, hard-split on its own.
			flush()
			for pos := s.start; pos < s.end; pos += size {
				end := pos + size
				if end > s.end {
					end = s.end
				}
				emit(pos, end)
			}
			continue
		}

		if groupStart >= 0 && s.end-groupStart > size {
			flush()
		}
		if groupStart < 0 {
			groupStart = s.start
		}
		groupEnd = s.end
	}
	flush()

	return chunks, nil
}

// GetConfig returns the chunker configuration
func (sc *SemanticChunker) GetConfig() ChunkerConfig {
	return sc.config
}

// splitSections returns the spans of text between heading starts and
// blank-line runs within [lo, hi). Spans are trimmed of surrounding
// whitespace and never empty.
func splitSections(runes []rune, lo, hi int) []section {
	var sections []section

	secStart := lo
	i := lo
	flush := func(end int) {
		s, e := secStart, end
		for s < e && isSpace(runes[s]) {
			s++
		}
		for e > s && isSpace(runes[e-1]) {
			e--
		}
		if e > s {
			sections = append(sections, section{start: s, end: e})
		}
	}

	for i < hi {
		if runes[i] == '\n' {
			// Blank-line run: current line ended, peek at what follows.
			j := i + 1
			blank := false
			lastNL := i
			for j < hi && (runes[j] == '\n' || runes[j] == '\r' || runes[j] == ' ' || runes[j] == '\t') {
				if runes[j] == '\n' {
					blank = true
					lastNL = j
				}
				j++
			}
			nextLine := i + 1
			for nextLine < hi && (runes[nextLine] == '\r') {
				nextLine++
			}
			if blank {
				flush(i)
				// Resume right after the final newline so the next
				// line keeps its leading indentation.
				secStart = lastNL + 1
				i = lastNL + 1
				continue
			}
			// Single newline: check whether the next line is a heading.
			if nextLine < hi && isHeadingAt(runes, nextLine, hi) {
				flush(i)
				secStart = nextLine
				i = nextLine
				continue
			}
			i++
			continue
		}
		i++
	}
	flush(hi)

	return sections
}

// isHeadingAt reports whether a markdown heading starts at rune offset pos.
func isHeadingAt(runes []rune, pos, hi int) bool {
	end := pos
	for end < hi && runes[end] != '\n' && end-pos < 8 {
		end++
	}
	return headingLine.MatchString(string(runes[pos:end]))
}
