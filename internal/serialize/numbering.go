package serialize

import (
	"log/slog"
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// Gap is a numbering irregularity between two siblings.
type Gap struct {
	Parent   string // breadcrumb of the parent, empty for top level
	Pattern  string
	Previous *doctree.Node
	Next     *doctree.Node
}

// CheckNumbering logs siblings of the same pattern whose numbers do not
// follow each other. Dotted numbers are compared within the same leading
// parts, so 1.9 followed by 2.1 restarts the count. The tree is never
// reordered.
func CheckNumbering(doc *doctree.Document, log *slog.Logger) []Gap {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	var gaps []Gap
	check := func(parent string, siblings []*doctree.Node) {
		last := map[string]*doctree.Node{}
		for _, n := range siblings {
			if n.Number == 0 {
				continue
			}
			if prev, ok := last[n.Pattern]; ok && samePrefix(prev, n) && n.Number != prev.Number+1 {
				gaps = append(gaps, Gap{Parent: parent, Pattern: n.Pattern, Previous: prev, Next: n})
				log.Warn("non-consecutive numbering",
					"parent", parent,
					"pattern", n.Pattern,
					"previous", prev.Label,
					"next", n.Label,
				)
			}
			last[n.Pattern] = n
		}
	}

	check("", doc.Children)
	doc.Walk(func(n *doctree.Node, path []*doctree.Node) {
		if len(n.Children) == 0 {
			return
		}
		check(strings.Join(append(doctree.Breadcrumb(path), labelOf(n)), " > "), n.Children)
	})
	return gaps
}

// samePrefix reports whether two dotted numbers share every part but the last.
func samePrefix(a, b *doctree.Node) bool {
	pa, pb := prefix(a.Numbers), prefix(b.Numbers)
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		if pa[i] != pb[i] {
			return false
		}
	}
	return true
}

func prefix(nums []int) []int {
	if len(nums) <= 1 {
		return nil
	}
	return nums[:len(nums)-1]
}

func labelOf(n *doctree.Node) string {
	if n.Label != "" {
		return n.Label
	}
	return n.Heading
}
