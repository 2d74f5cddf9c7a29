// Package chunker cuts an assembled document tree into retrieval-sized
// chunks that never cross a section boundary.
package chunker

import (
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int // Target chunk size in tokens.
	ChunkOverlap int // Overlap between consecutive chunks in tokens.
	MinChunk     int // Minimum chunk size to emit.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1500,
		ChunkOverlap: 200,
		MinChunk:     100,
	}
}

// Chunk is a piece of one section's body text.
type Chunk struct {
	Index      int      `json:"index"`
	Breadcrumb []string `json:"breadcrumb"`
	Heading    string   `json:"heading,omitempty"`
	Page       int      `json:"page,omitempty"`
	Tokens     int      `json:"tokens"`
	Text       string   `json:"text"`
}

// ChunkDocument walks the assembled tree and produces structure-aware
// chunks in document order. The preamble, if any, comes first with an
// empty breadcrumb.
func ChunkDocument(doc *doctree.Document, cfg Config) []Chunk {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1500
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.MinChunk <= 0 {
		cfg.MinChunk = 100
	}

	var chunks []Chunk
	emit := func(paras []string, bc []string, heading string, page int) {
		for _, part := range splitParagraphs(paras, cfg.ChunkSize, cfg.ChunkOverlap) {
			tokens := EstimateTokens(part)
			if tokens < cfg.MinChunk {
				continue
			}
			chunks = append(chunks, Chunk{
				Index:      len(chunks),
				Breadcrumb: copyBreadcrumb(bc),
				Heading:    heading,
				Page:       page,
				Tokens:     tokens,
				Text:       part,
			})
		}
	}

	emit(doc.PreambleText, nil, "", 0)
	doc.Walk(func(n *doctree.Node, path []*doctree.Node) {
		emit(n.BodyText, doctree.Breadcrumb(append(path[:len(path):len(path)], n)), n.Heading, n.Page)
	})
	return chunks
}

// splitParagraphs packs paragraphs into chunks of approximately
// targetTokens. A paragraph over the target is cut at sentence ends and
// packed the same way.
func splitParagraphs(paragraphs []string, targetTokens, overlapTokens int) []string {
	var result []string
	var pending []string
	flush := func() {
		if len(pending) > 0 {
			result = append(result, pack(pending, "\n\n", targetTokens, overlapTokens)...)
			pending = nil
		}
	}
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		switch {
		case para == "":
		case EstimateTokens(para) > targetTokens:
			flush()
			result = append(result, pack(splitSentences(para), " ", targetTokens, overlapTokens)...)
		default:
			pending = append(pending, para)
		}
	}
	flush()
	return result
}

// pack greedily joins units with sep until the next one would pass
// targetTokens. Each new chunk starts with the last overlapTokens of the
// previous one.
func pack(units []string, sep string, targetTokens, overlapTokens int) []string {
	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, u := range units {
		tokens := EstimateTokens(u)
		if currentTokens+tokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			overlap := getOverlapText(current.String(), overlapTokens)
			current.Reset()
			current.WriteString(overlap)
			currentTokens = EstimateTokens(overlap)
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(u)
		currentTokens += tokens
	}
	if currentTokens > 0 {
		result = append(result, current.String())
	}
	return result
}

// splitSentences cuts after '.', '!' or '?' followed by a space.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		if strings.IndexByte(".!?", text[i]) >= 0 && text[i+1] == ' ' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// getOverlapText extracts the last N tokens worth of text for overlap.
func getOverlapText(text string, targetTokens int) string {
	words := strings.Fields(text)
	// Approximate: 1.33 tokens per word.
	targetWords := int(float64(targetTokens) / 1.33)
	if targetWords <= 0 || len(words) <= targetWords {
		return ""
	}
	return strings.Join(words[len(words)-targetWords:], " ")
}

func copyBreadcrumb(bc []string) []string {
	if len(bc) == 0 {
		return []string{}
	}
	out := make([]string, len(bc))
	copy(out, bc)
	return out
}
