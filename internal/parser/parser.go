package parser

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
)

// Node is one text-bearing unit in document order.
type Node struct {
	Text string
	Tag  string // nearest block element, "" when unknown
	Page int    // 0 when the source carries no page marker
}

// Document is a parsed input. Nodes re-walks the parsed source on every
// call, so the sequence can be ranged over more than once.
type Document struct {
	Name  string
	Title string
	Chunk ChunkInfo

	walk func(yield func(Node) bool)
}

// Nodes returns the filtered, normalized node stream.
func (d *Document) Nodes() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		if d.walk == nil {
			return
		}
		d.walk(yield)
	}
}

// Parser turns raw bytes into a Document.
type Parser interface {
	Parse(r io.Reader, name string) (*Document, error)
}

// Drop reasons passed to Options.OnDrop.
const (
	DropMalformed = "malformed"
	DropNoise     = "noise"
)

// DefaultSkipTags are elements whose whole subtree never yields text.
var DefaultSkipTags = []string{"img", "table", "figure", "figcaption", "caption", "svg", "picture", "canvas", "math"}

// DefaultDropPatterns match running page numbers and converter placeholders.
var DefaultDropPatterns = []string{
	`^\d{1,4}$`,
	`^Page \d+( of \d+)?$`,
	`^\[Image\]$`,
}

// Options configures node filtering. Zero values select the defaults.
type Options struct {
	SkipTags     []string
	DropPatterns []string
	Log          *slog.Logger

	// OnDrop is called once per dropped node with DropMalformed or DropNoise.
	OnDrop func(reason string)
}

// filter is the compiled form of Options shared by all parsers.
type filter struct {
	skip   map[string]bool
	drop   []*regexp.Regexp
	log    *slog.Logger
	onDrop func(string)
}

func newFilter(opts Options) (*filter, error) {
	f := &filter{
		skip:   make(map[string]bool),
		log:    opts.Log,
		onDrop: opts.OnDrop,
	}
	if f.log == nil {
		f.log = slog.New(slog.DiscardHandler)
	}
	tags := opts.SkipTags
	if len(tags) == 0 {
		tags = DefaultSkipTags
	}
	for _, t := range tags {
		f.skip[strings.ToLower(strings.TrimSpace(t))] = true
	}
	patterns := opts.DropPatterns
	if patterns == nil {
		patterns = DefaultDropPatterns
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("drop pattern %q: %w", p, err)
		}
		f.drop = append(f.drop, re)
	}
	return f, nil
}

// accept normalizes raw and reports whether it survives filtering.
func (f *filter) accept(raw string, page int) (string, bool) {
	if err := checkText(raw, page); err != nil {
		f.log.Warn("dropping malformed node", "error", err)
		f.dropped(DropMalformed)
		return "", false
	}
	text := Normalize(raw)
	if text == "" {
		return "", false
	}
	for _, re := range f.drop {
		if re.MatchString(text) {
			f.log.Debug("dropping noise node", "text", text, "page", page)
			f.dropped(DropNoise)
			return "", false
		}
	}
	return text, true
}

func (f *filter) dropped(reason string) {
	if f.onDrop != nil {
		f.onDrop(reason)
	}
}

// ForFile returns the parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".html", ".htm":
		return NewHTMLParser(opts)
	case ".md", ".markdown":
		return NewMarkdownParser(opts)
	case ".docx":
		return NewDOCXParser(opts)
	case ".txt":
		return NewTextParser(opts)
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension can be extracted.
func IsSupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm", ".md", ".markdown", ".docx", ".txt":
		return true
	}
	return false
}

func baseTitle(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
