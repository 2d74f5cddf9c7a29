// Package serialize writes a finished document tree as JSON, text or
// retrieval chunks.
package serialize

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docstruct/internal/chunker"
	"github.com/dgallion1/docstruct/internal/doctree"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	// FormatChunks writes one JSON object per retrieval chunk per line.
	FormatChunks Format = "chunks"
)

// ParseFormat validates a format name. Empty selects JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatText, "txt":
		return FormatText, nil
	case FormatChunks, "jsonl":
		return FormatChunks, nil
	}
	return "", fmt.Errorf("unknown output format %q (want json, text or chunks)", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatChunks:
		return "application/x-ndjson"
	}
	return "application/json"
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatText:
		return ".txt"
	case FormatChunks:
		return ".jsonl"
	}
	return ".json"
}

type jsonDocument struct {
	Title    string           `json:"title"`
	Sources  []doctree.Source `json:"sources"`
	Preamble []string         `json:"preamble"`
	Nodes    []jsonNode       `json:"nodes"`
}

type jsonNode struct {
	Level    int        `json:"level"`
	Label    string     `json:"label"`
	Number   int        `json:"number,omitempty"`
	Title    string     `json:"title"`
	Page     int        `json:"page,omitempty"`
	BodyText []string   `json:"body_text"`
	Children []jsonNode `json:"children"`
}

func toJSON(nodes []*doctree.Node) []jsonNode {
	out := make([]jsonNode, 0, len(nodes))
	for _, n := range nodes {
		body := n.BodyText
		if body == nil {
			body = []string{}
		}
		out = append(out, jsonNode{
			Level:    n.Level,
			Label:    n.Label,
			Number:   n.Number,
			Title:    n.Title,
			Page:     n.Page,
			BodyText: body,
			Children: toJSON(n.Children),
		})
	}
	return out
}

// Write encodes doc to w in document order. Chunk metadata is not written.
func Write(w io.Writer, doc *doctree.Document, f Format) error {
	switch f {
	case FormatJSON, "":
		return writeJSON(w, doc)
	case FormatText:
		return writeText(w, doc)
	case FormatChunks:
		return writeChunks(w, doc, chunker.DefaultConfig())
	}
	return fmt.Errorf("unknown output format %q", f)
}

func writeChunks(w io.Writer, doc *doctree.Document, cfg chunker.Config) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, c := range chunker.ChunkDocument(doc, cfg) {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode chunk %d: %w", c.Index, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, doc *doctree.Document) error {
	out := jsonDocument{
		Title:    doc.Title,
		Sources:  doc.Sources,
		Preamble: doc.PreambleText,
		Nodes:    toJSON(doc.Children),
	}
	if out.Sources == nil {
		out.Sources = []doctree.Source{}
	}
	if out.Preamble == nil {
		out.Preamble = []string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func writeText(w io.Writer, doc *doctree.Document) error {
	bw := bufio.NewWriter(w)
	for _, p := range doc.PreambleText {
		fmt.Fprintf(bw, "%s\n\n", p)
	}
	doc.Walk(func(n *doctree.Node, _ []*doctree.Node) {
		fmt.Fprintf(bw, "%s %s\n\n", strings.Repeat("#", n.Level+1), headingLine(n))
		for _, p := range n.BodyText {
			fmt.Fprintf(bw, "%s\n\n", p)
		}
	})
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write text: %w", err)
	}
	return nil
}

func headingLine(n *doctree.Node) string {
	if n.Heading != "" {
		return n.Heading
	}
	switch {
	case n.Label != "" && n.Title != "":
		return n.Label + " " + n.Title
	case n.Label != "":
		return n.Label
	}
	return n.Title
}
