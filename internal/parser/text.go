package parser

import (
	"bufio"
	"bytes"
	"io"
)

// TextParser yields one node per non-blank line, matching how converters
// emit one line per PDF text line.
type TextParser struct {
	f *filter
}

func NewTextParser(opts Options) (*TextParser, error) {
	f, err := newFilter(opts)
	if err != nil {
		return nil, err
	}
	return &TextParser{f: f}, nil
}

func (p *TextParser) Parse(r io.Reader, name string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	d := &Document{Name: name, Title: baseTitle(name)}
	d.walk = func(yield func(Node) bool) {
		scanner := bufio.NewScanner(bytes.NewReader(src))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		page := 1
		for scanner.Scan() {
			line := scanner.Text()
			// Form feeds separate pages in pdftotext output.
			for len(line) > 0 && line[0] == '\f' {
				page++
				line = line[1:]
			}
			t, ok := p.f.accept(line, page)
			if !ok {
				continue
			}
			if !yield(Node{Text: t, Page: page}) {
				return
			}
		}
	}
	return d, nil
}
