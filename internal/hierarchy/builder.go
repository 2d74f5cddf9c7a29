// Package hierarchy rebuilds the heading tree from a classified node stream.
package hierarchy

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/heading"
)

var (
	// ErrNoHeadingsFound means the input held text but no recognized heading.
	ErrNoHeadingsFound = errors.New("no headings found")
	// ErrEmptyDocument means the input produced no nodes at all.
	ErrEmptyDocument = errors.New("document has no text")
	// ErrFinished is returned when a finished builder is fed again.
	ErrFinished = errors.New("hierarchy: builder already finished")
)

// Options configures a Builder.
type Options struct {
	// MaxDepth caps the number of simultaneously open nodes. 0 means no cap;
	// 1 makes every heading a top-level sibling.
	MaxDepth int
	Title    string
	Log      *slog.Logger
}

// Builder is the parse state of one run: the open-node stack plus the
// document root. It survives chunk boundaries and is sealed by Finish.
type Builder struct {
	opts     Options
	log      *slog.Logger
	doc      *doctree.Document
	stack    []*doctree.Node
	headings int
	chunk    int
	finished bool
}

// New creates an empty builder.
func New(opts Options) *Builder {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}
	return &Builder{
		opts: opts,
		log:  log,
		doc:  &doctree.Document{Title: opts.Title},
	}
}

// NextChunk records the start of another input. The open stack is left
// untouched so a section continues across the boundary.
func (b *Builder) NextChunk(src doctree.Source) error {
	if b.finished {
		return ErrFinished
	}
	b.chunk = len(b.doc.Sources)
	b.doc.Sources = append(b.doc.Sources, src)
	b.log.Debug("chunk started", "name", src.Name, "open", len(b.stack))
	return nil
}

// Heading opens a node for a classified heading. Open nodes at the same or
// a deeper level are closed first. A skipped level produces no placeholder:
// the node becomes a child of whatever ancestor is still open.
func (b *Builder) Heading(m heading.Match, text string, page int) error {
	if b.finished {
		return ErrFinished
	}
	for len(b.stack) > 0 && b.top().Level >= m.Level {
		b.pop()
	}
	if b.opts.MaxDepth > 0 {
		for len(b.stack) >= b.opts.MaxDepth {
			b.pop()
		}
	}

	n := &doctree.Node{
		Level:   m.Level,
		Label:   m.Label,
		Number:  m.Number,
		Numbers: m.Numbers,
		Title:   m.Title,
		Heading: text,
		Pattern: m.Pattern,
		Page:    page,
		Chunk:   b.chunk,
	}
	if len(b.stack) == 0 {
		b.doc.Children = append(b.doc.Children, n)
	} else if err := b.top().AddChild(n); err != nil {
		return fmt.Errorf("attach %q: %w", m.Label, err)
	}
	b.stack = append(b.stack, n)
	b.headings++
	return nil
}

// Text appends a body fragment to the innermost open node, or to the
// preamble before the first heading.
func (b *Builder) Text(fragment string) error {
	if b.finished {
		return ErrFinished
	}
	if len(b.stack) == 0 {
		b.doc.Preamble = append(b.doc.Preamble, fragment)
		return nil
	}
	return b.top().AddFragment(fragment)
}

// Headings returns the number of headings accepted so far.
func (b *Builder) Headings() int { return b.headings }

// Depth returns the number of open nodes.
func (b *Builder) Depth() int { return len(b.stack) }

// Finish seals every open node, deepest first, and returns the document.
// A run that saw no node returns ErrEmptyDocument; one that saw text but no
// heading returns ErrNoHeadingsFound.
func (b *Builder) Finish() (*doctree.Document, error) {
	if b.finished {
		return nil, ErrFinished
	}
	for len(b.stack) > 0 {
		b.pop()
	}
	b.finished = true
	if b.headings == 0 && len(b.doc.Preamble) == 0 {
		return nil, ErrEmptyDocument
	}
	if b.headings == 0 {
		return nil, fmt.Errorf("%w (%d preamble fragments)", ErrNoHeadingsFound, len(b.doc.Preamble))
	}
	return b.doc, nil
}

func (b *Builder) top() *doctree.Node { return b.stack[len(b.stack)-1] }

func (b *Builder) pop() {
	n := b.top()
	n.Seal()
	b.stack = b.stack[:len(b.stack)-1]
}
