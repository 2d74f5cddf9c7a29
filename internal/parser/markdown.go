package parser

import (
	"bytes"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Heading markers
// carry no level information here: "## Chapter 3" is still classified by
// its text.
type MarkdownParser struct {
	f *filter
}

func NewMarkdownParser(opts Options) (*MarkdownParser, error) {
	f, err := newFilter(opts)
	if err != nil {
		return nil, err
	}
	return &MarkdownParser{f: f}, nil
}

func (p *MarkdownParser) Parse(r io.Reader, name string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	root := goldmark.New(goldmark.WithExtensions(extension.Table)).Parser().Parse(text.NewReader(src))

	d := &Document{Name: name, Title: baseTitle(name)}
	d.walk = func(yield func(Node) bool) {
		walkMarkdown(root, src, p.f, yield)
	}
	return d, nil
}

// walkMarkdown yields one node per text block. Returns false once the
// consumer stops.
func walkMarkdown(n ast.Node, src []byte, f *filter, yield func(Node) bool) bool {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock, ast.KindThematicBreak, extast.KindTable:
			continue
		case ast.KindParagraph, ast.KindHeading, ast.KindTextBlock:
			raw := inlineText(c, src)
			t, ok := f.accept(raw, 0)
			if !ok {
				continue
			}
			if !yield(Node{Text: t, Tag: markdownTag(c)}) {
				return false
			}
		default:
			// Lists and blockquotes are containers.
			if !walkMarkdown(c, src, f, yield) {
				return false
			}
		}
	}
	return true
}

// inlineText gets the text content of a goldmark block's inline children.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(inlineText(c, src))
		}
	}
	return buf.String()
}

func markdownTag(n ast.Node) string {
	if h, ok := n.(*ast.Heading); ok {
		return "h" + string(rune('0'+h.Level))
	}
	return "p"
}
