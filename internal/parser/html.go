package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// noiseSelector is removed before the walk; none of it is document text.
const noiseSelector = "script, style, noscript, head, template"

// blockTags flush pending inline text on entry and exit.
var blockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "dl": true, "dt": true, "dd": true,
	"blockquote": true, "pre": true, "div": true, "section": true, "article": true,
	"header": true, "footer": true, "nav": true, "aside": true, "main": true,
	"address": true, "body": true, "hr": true,
}

// HTMLParser extracts text nodes from converter output.
type HTMLParser struct {
	f *filter
}

// NewHTMLParser compiles opts into a parser.
func NewHTMLParser(opts Options) (*HTMLParser, error) {
	f, err := newFilter(opts)
	if err != nil {
		return nil, err
	}
	return &HTMLParser{f: f}, nil
}

func (p *HTMLParser) Parse(r io.Reader, name string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := Normalize(doc.Find("title").First().Text())
	if title == "" {
		title = baseTitle(name)
	}
	doc.Find(noiseSelector).Remove()

	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}
	var start *html.Node
	if len(root.Nodes) > 0 {
		start = root.Nodes[0]
	}

	d := &Document{Name: name, Title: title}
	if start == nil {
		return d, nil
	}
	d.walk = func(yield func(Node) bool) {
		w := &htmlWalker{f: p.f, yield: yield}
		w.walk(start, "", 0)
		w.flush()
	}
	return d, nil
}

// htmlWalker accumulates inline text until a block boundary.
type htmlWalker struct {
	f     *filter
	yield func(Node) bool

	pending strings.Builder
	tag     string
	page    int
	stopped bool
}

func (w *htmlWalker) walk(n *html.Node, block string, page int) {
	if w.stopped {
		return
	}
	switch n.Type {
	case html.TextNode:
		if w.pending.Len() == 0 {
			w.tag, w.page = block, page
		}
		w.pending.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if w.f.skip[tag] {
			return
		}
		if v, ok := attr(n, "data-page-number"); ok {
			if pn, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				page = pn
			}
		}
		if tag == "br" {
			w.flush()
			return
		}
		if blockTags[tag] {
			w.flush()
			block = tag
			defer w.flush()
		}
	}
	for c := n.FirstChild; c != nil && !w.stopped; c = c.NextSibling {
		w.walk(c, block, page)
	}
}

func (w *htmlWalker) flush() {
	if w.stopped || w.pending.Len() == 0 {
		return
	}
	raw := w.pending.String()
	w.pending.Reset()
	text, ok := w.f.accept(raw, w.page)
	if !ok {
		return
	}
	if !w.yield(Node{Text: text, Tag: w.tag, Page: w.page}) {
		w.stopped = true
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
