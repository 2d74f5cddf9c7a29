package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXParser yields one node per body paragraph. Tables are skipped.
type DOCXParser struct {
	f *filter
}

func NewDOCXParser(opts Options) (*DOCXParser, error) {
	f, err := newFilter(opts)
	if err != nil {
		return nil, err
	}
	return &DOCXParser{f: f}, nil
}

func (p *DOCXParser) Parse(r io.Reader, name string) (*Document, error) {
	// go-docx needs a ReaderAt+size.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var paras []string
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		paras = append(paras, docxParagraphText(para))
	}

	d := &Document{Name: name, Title: baseTitle(name)}
	d.walk = func(yield func(Node) bool) {
		for _, raw := range paras {
			t, ok := p.f.accept(raw, 0)
			if !ok {
				continue
			}
			if !yield(Node{Text: t, Tag: "p"}) {
				return
			}
		}
	}
	return d, nil
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			switch t := rc.(type) {
			case *docx.Text:
				buf.WriteString(t.Text)
			case *docx.Tab:
				buf.WriteByte(' ')
			}
		}
	}
	return buf.String()
}
