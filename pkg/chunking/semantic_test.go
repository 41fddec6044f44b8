package chunking

import (
	"strings"
	"testing"
)

func TestSemanticSplitsOnHeadings(t *testing.T) {
	chunker := NewSemanticChunker(ChunkerConfig{
		Strategy: "semantic", Size: 40,
	})

	text := "# Install\nRun the installer binary now.\n# Usage\nCall the function with args."
	chunks, err := chunker.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %#v", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[0].Content, "# Install") {
		t.Errorf("chunk 0 = %q", chunks[0].Content)
	}
	if !strings.HasPrefix(chunks[1].Content, "# Usage") {
		t.Errorf("chunk 1 = %q", chunks[1].Content)
	}
}

func TestSemanticPacksSmallSections(t *testing.T) {
	chunker := NewSemanticChunker(ChunkerConfig{
		Strategy: "semantic", Size: 200,
	})

	text := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."
	chunks, err := chunker.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected small sections packed into 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "Second paragraph.") {
		t.Errorf("packed chunk missing middle section: %q", chunks[0].Content)
	}
}

func TestSemanticHardSplitsOversizeSection(t *testing.T) {
	chunker := NewSemanticChunker(ChunkerConfig{
		Strategy: "semantic", Size: 50,
	})

	text := strings.Repeat("x", 120)
	chunks, err := chunker.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 hard-split chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Content) > 50 {
			t.Errorf("chunk %d length %d exceeds size", i, len(c.Content))
		}
	}
}

func TestSemanticDenseIndicesAndSpans(t *testing.T) {
	chunker := NewSemanticChunker(ChunkerConfig{
		Strategy: "semantic", Size: 30,
	})

	text := "## A\nalpha text body\n\nbeta paragraph body\n\n## B\ngamma section body text"
	chunks, err := chunker.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}

	runes := []rune(text)
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.EndChar < c.StartChar || c.StartChar < 0 || c.EndChar > len(runes) {
			t.Errorf("chunk %d has bad span [%d, %d)", i, c.StartChar, c.EndChar)
		}
		if string(runes[c.StartChar:c.EndChar]) != c.Content {
			t.Errorf("chunk %d content does not match its span", i)
		}
	}
	// Semantic spans never overlap.
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartChar < chunks[i-1].EndChar {
			t.Errorf("chunks %d and %d overlap", i-1, i)
		}
	}
}

func TestSemanticEmptyInput(t *testing.T) {
	chunker := NewSemanticChunker(ChunkerConfig{Strategy: "semantic", Size: 100})
	chunks, err := chunker.Chunk("\n\n   \n")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}
