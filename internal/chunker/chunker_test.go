package chunker

import (
	"strings"
	"testing"

	"github.com/dgallion1/docstruct/internal/doctree"
)

func section(label string, paras ...string) *doctree.Node {
	return &doctree.Node{Label: label, Heading: label, BodyText: paras}
}

func TestChunkDocument_SmallSectionFitsOneChunk(t *testing.T) {
	doc := &doctree.Document{
		Title:    "Small",
		Children: []*doctree.Node{section("Section 1", strings.Repeat("word ", 200))},
	}

	cfg := Config{
		ChunkSize:    1500,
		ChunkOverlap: 200,
		MinChunk:     50,
	}
	chunks := ChunkDocument(doc, cfg)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Index != 0 {
		t.Errorf("expected index 0, got %d", chunks[0].Index)
	}
	if chunks[0].Tokens != EstimateTokens(chunks[0].Text) {
		t.Errorf("expected token count %d, got %d", EstimateTokens(chunks[0].Text), chunks[0].Tokens)
	}
}

func TestChunkDocument_LargeSectionRequiresSplitting(t *testing.T) {
	// ~3000 words -> ~3990 tokens at 1.33 tokens/word.
	largeText := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 300)

	doc := &doctree.Document{
		Title:    "Large",
		Children: []*doctree.Node{section("Big Section", largeText)},
	}

	cfg := Config{
		ChunkSize:    500,
		ChunkOverlap: 50,
		MinChunk:     10,
	}
	chunks := ChunkDocument(doc, cfg)

	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks for large text, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, c.Index)
		}
		// Sentence boundaries allow slight overflows.
		if c.Tokens > cfg.ChunkSize*2 {
			t.Errorf("chunk %d: %d tokens exceeds 2x target %d", i, c.Tokens, cfg.ChunkSize)
		}
	}
}

func TestChunkDocument_PacksParagraphsWithOverlap(t *testing.T) {
	para := strings.Repeat("alpha ", 100) // 133 tokens
	doc := &doctree.Document{
		Children: []*doctree.Node{section("A", para, para, para, para)},
	}

	chunks := ChunkDocument(doc, Config{ChunkSize: 300, ChunkOverlap: 20, MinChunk: 1})

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "\n\n") {
		t.Error("expected paragraphs joined by a blank line")
	}
	// The second chunk opens with the overlap from the first.
	if chunks[1].Tokens <= 2*EstimateTokens(para) {
		t.Errorf("expected overlap in second chunk, got %d tokens", chunks[1].Tokens)
	}
}

func TestChunkDocument_BreadcrumbPropagation(t *testing.T) {
	leaf := section("Section 1.1", strings.Repeat("content ", 200))
	leaf.Page = 7
	doc := &doctree.Document{
		Title: "Doc",
		Children: []*doctree.Node{{
			Label:    "Chapter 1",
			Children: []*doctree.Node{leaf},
		}},
	}

	chunks := ChunkDocument(doc, Config{ChunkSize: 2000, ChunkOverlap: 100, MinChunk: 10})

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	bc := chunks[0].Breadcrumb
	want := []string{"Chapter 1", "Section 1.1"}
	if len(bc) != len(want) {
		t.Fatalf("expected breadcrumb %v, got %v", want, bc)
	}
	for i := range want {
		if bc[i] != want[i] {
			t.Errorf("breadcrumb[%d]: expected %q, got %q", i, want[i], bc[i])
		}
	}
	if chunks[0].Page != 7 {
		t.Errorf("expected page 7, got %d", chunks[0].Page)
	}
}

func TestChunkDocument_BreadcrumbIsolation(t *testing.T) {
	doc := &doctree.Document{
		Title: "Doc",
		Children: []*doctree.Node{
			section("A", strings.Repeat("alpha ", 200)),
			section("B", strings.Repeat("beta ", 200)),
		},
	}

	chunks := ChunkDocument(doc, Config{ChunkSize: 2000, ChunkOverlap: 100, MinChunk: 10})

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0].Breadcrumb) != 1 || chunks[0].Breadcrumb[0] != "A" {
		t.Errorf("chunk 0 breadcrumb: expected [A], got %v", chunks[0].Breadcrumb)
	}
	if len(chunks[1].Breadcrumb) != 1 || chunks[1].Breadcrumb[0] != "B" {
		t.Errorf("chunk 1 breadcrumb: expected [B], got %v", chunks[1].Breadcrumb)
	}
}

func TestChunkDocument_PreambleFirst(t *testing.T) {
	doc := &doctree.Document{
		PreambleText: []string{strings.Repeat("cover ", 50)},
		Children:     []*doctree.Node{section("A", strings.Repeat("alpha ", 50))},
	}

	chunks := ChunkDocument(doc, Config{MinChunk: 1})

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0].Breadcrumb) != 0 || !strings.HasPrefix(chunks[0].Text, "cover") {
		t.Errorf("expected preamble chunk first, got %+v", chunks[0])
	}
}

func TestChunkDocument_MinChunkFiltering(t *testing.T) {
	doc := &doctree.Document{
		Title:    "Tiny",
		Children: []*doctree.Node{section("Short", "Hi")},
	}

	chunks := ChunkDocument(doc, Config{ChunkSize: 1500, ChunkOverlap: 200, MinChunk: 100})

	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks (below MinChunk), got %d", len(chunks))
	}
}

func TestChunkDocument_EmptyDocument(t *testing.T) {
	chunks := ChunkDocument(&doctree.Document{Title: "Empty"}, DefaultConfig())
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks, got %d", len(chunks))
	}
}

func TestChunkDocument_DefaultConfigFallback(t *testing.T) {
	doc := &doctree.Document{
		Children: []*doctree.Node{section("", strings.Repeat("word ", 200))},
	}
	chunks := ChunkDocument(doc, Config{})
	if len(chunks) < 1 {
		t.Errorf("expected at least 1 chunk with zero config (defaults applied), got %d", len(chunks))
	}
}

func TestChunkDocument_ContainerWithoutText(t *testing.T) {
	doc := &doctree.Document{
		Title: "Doc",
		Children: []*doctree.Node{{
			Label:    "Container",
			Children: []*doctree.Node{section("Leaf", strings.Repeat("leaf content ", 100))},
		}},
	}

	chunks := ChunkDocument(doc, Config{ChunkSize: 2000, ChunkOverlap: 100, MinChunk: 10})

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	want := []string{"Container", "Leaf"}
	bc := chunks[0].Breadcrumb
	if len(bc) != len(want) || bc[0] != want[0] || bc[1] != want[1] {
		t.Errorf("expected breadcrumb %v, got %v", want, bc)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one two three", 3},
		{strings.Repeat("w ", 100), 133},
	}
	for _, tc := range tests {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}
