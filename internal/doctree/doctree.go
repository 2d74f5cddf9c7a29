package doctree

import "errors"

// ErrSealed is returned when a closed node is mutated.
var ErrSealed = errors.New("doctree: node is sealed")

// Document is the root of an extracted document. It is owned by the run
// that built it; every top-level node is owned by the document.
type Document struct {
	Title        string   // Document title (from <title> or the first input name)
	Sources      []Source // Input files in processing order
	Preamble     []string // Fragments seen before the first heading
	PreambleText []string // Assembled preamble paragraphs
	Children     []*Node  // Top-level sections
}

// Source describes one input file (a whole document or one page-range chunk).
type Source struct {
	Name      string `json:"name"`
	Index     int    `json:"index,omitempty"`
	StartPage int    `json:"start_page,omitempty"`
	EndPage   int    `json:"end_page,omitempty"`
}

// Node is a recursive section in the document tree.
type Node struct {
	Level   int    // 0 = volume, 1 = part, 2 = chapter/section, 3, 4 deeper
	Label   string // Label token, e.g. "Chapter 3" or "1.2.3"
	Number  int    // Normalized number of the label (last dotted part), 0 if none
	Numbers []int  // All numbering parts, e.g. [1 2 3]
	Title   string // Text after the label
	Heading string // Full normalized heading text
	Pattern string // Name of the heading pattern that matched
	Page    int    // Source page (0 if unknown)
	Chunk   int    // Index of the input the heading came from

	RawFragments []string // Fragments owned directly by this node
	BodyText     []string // Assembled paragraphs
	Children     []*Node  // Subsections

	sealed bool
}

// AddFragment appends a raw fragment.
func (n *Node) AddFragment(s string) error {
	if n.sealed {
		return ErrSealed
	}
	n.RawFragments = append(n.RawFragments, s)
	return nil
}

// AddChild appends a child node.
func (n *Node) AddChild(c *Node) error {
	if n.sealed {
		return ErrSealed
	}
	n.Children = append(n.Children, c)
	return nil
}

// Seal freezes fragments and children. BodyText stays writable: it is
// derived from the frozen fragments after the subtree closes.
func (n *Node) Seal() { n.sealed = true }

// Sealed reports whether Seal has been called.
func (n *Node) Sealed() bool { return n.sealed }

// Breadcrumb labels for a path of nodes, e.g. ["Part 1", "1.2", "1.2.3"].
func Breadcrumb(path []*Node) []string {
	if len(path) == 0 {
		return nil
	}
	out := make([]string, 0, len(path))
	for _, n := range path {
		if n.Label != "" {
			out = append(out, n.Label)
		} else {
			out = append(out, n.Heading)
		}
	}
	return out
}

// Walk visits every node depth-first in document order. path holds the
// ancestors of n, outermost first.
func (d *Document) Walk(fn func(n *Node, path []*Node)) {
	var visit func(nodes []*Node, path []*Node)
	visit = func(nodes []*Node, path []*Node) {
		for _, n := range nodes {
			fn(n, path)
			visit(n.Children, append(path[:len(path):len(path)], n))
		}
	}
	visit(d.Children, nil)
}

// Count returns the number of nodes below the root.
func (d *Document) Count() int {
	count := 0
	d.Walk(func(*Node, []*Node) { count++ })
	return count
}
