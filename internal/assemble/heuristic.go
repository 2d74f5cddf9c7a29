// Package assemble turns a node's raw fragments into paragraphs.
package assemble

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docstruct/internal/merge"
)

// DefaultMinLength is the rune count under which two neighbouring fragments
// are treated as page furniture and never split.
const DefaultMinLength = 12

// Heuristic joins fragments on sentence boundaries without any external
// service.
type Heuristic struct {
	MinLength int
}

var (
	abbrevRe   = regexp.MustCompile(`(?i)(?:^|[\s(])(?:e\.g|i\.e|etc|cf|vs)\.$`)
	listItemRe = regexp.MustCompile(`^\(?(?:\d{1,3}|[a-zA-Z]|[ivxlcdmIVXLCDM]{1,6})\)\s`)
)

const (
	closers = `"')]}»”’`
	openers = `"'([{«“‘`
)

// Assemble groups fragments into paragraphs. A single fragment is returned
// unchanged.
func (h Heuristic) Assemble(fragments []string) []string {
	if len(fragments) == 0 {
		return nil
	}
	if len(fragments) == 1 {
		return []string{fragments[0]}
	}

	var out []string
	cur := []string{fragments[0]}
	for _, f := range fragments[1:] {
		if h.breaksBefore(cur[len(cur)-1], f) {
			out = append(out, merge.Join(cur))
			cur = cur[:0]
		}
		cur = append(cur, f)
	}
	return append(out, merge.Join(cur))
}

// breaksBefore reports whether next starts a new paragraph after prev.
func (h Heuristic) breaksBefore(prev, next string) bool {
	minLen := h.MinLength
	if minLen < 0 {
		minLen = 0
	}
	if utf8.RuneCountInString(prev) < minLen && utf8.RuneCountInString(next) < minLen {
		return false
	}
	if listItemRe.MatchString(next) {
		return true
	}
	if !endsSentence(prev) || abbrevRe.MatchString(prev) {
		return false
	}
	return startsSentence(next)
}

func endsSentence(s string) bool {
	s = strings.TrimRight(strings.TrimSpace(s), closers)
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return r == '.' || r == '!' || r == '?'
}

func startsSentence(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	if strings.ContainsRune(openers, r) {
		return true
	}
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}
