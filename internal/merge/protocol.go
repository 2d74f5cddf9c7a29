package merge

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// group is one paragraph in a provider answer.
type group struct {
	ParagraphIndex int   `json:"paragraph_index"`
	ChunkIndices   []int `json:"chunk_indices"`
}

var (
	codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	arrayRe     = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)
)

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// ParseGroups decodes a chunk_indices answer for n fragments. The groups,
// read in order, must list every index 0..n-1 exactly once and ascending,
// so the paragraphs preserve fragment order and drop nothing.
func ParseGroups(content string, n int) ([][]int, error) {
	text := stripCodeBlock(content)
	var groups []group
	if err := json.Unmarshal([]byte(text), &groups); err != nil {
		// Models sometimes wrap the array in prose.
		m := arrayRe.FindString(text)
		if m == "" {
			return nil, fmt.Errorf("%w: decode: %v (raw: %s)", ErrMalformedResponse, err, truncate(text, 200))
		}
		if err := json.Unmarshal([]byte(m), &groups); err != nil {
			return nil, fmt.Errorf("%w: decode: %v (raw: %s)", ErrMalformedResponse, err, truncate(text, 200))
		}
	}

	out := make([][]int, 0, len(groups))
	next := 0
	for i, g := range groups {
		if len(g.ChunkIndices) == 0 {
			continue
		}
		for _, idx := range g.ChunkIndices {
			if idx < 0 || idx >= n {
				return nil, fmt.Errorf("%w: group %d: index %d out of range 0..%d", ErrMalformedResponse, i, idx, n-1)
			}
			if idx != next {
				return nil, fmt.Errorf("%w: group %d: index %d out of order, want %d", ErrMalformedResponse, i, idx, next)
			}
			next++
		}
		out = append(out, g.ChunkIndices)
	}
	if next != n {
		return nil, fmt.Errorf("%w: %d of %d fragments covered", ErrMalformedResponse, next, n)
	}
	return out, nil
}

// Apply joins fragments according to groups.
func Apply(fragments []string, groups [][]int) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		parts := make([]string, 0, len(g))
		for _, idx := range g {
			parts = append(parts, fragments[idx])
		}
		out = append(out, Join(parts))
	}
	return out
}

// Join concatenates fragments of one paragraph with single spaces. A
// fragment ending in letter+hyphen is a wrapped word and joins without a
// space, keeping the hyphen.
func Join(parts []string) string {
	var sb strings.Builder
	for i, p := range parts {
		if i > 0 && !hyphenWrapped(parts[i-1]) {
			sb.WriteByte(' ')
		}
		sb.WriteString(p)
	}
	return sb.String()
}

func hyphenWrapped(s string) bool {
	if !strings.HasSuffix(s, "-") || len(s) < 2 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:len(s)-1])
	return unicode.IsLetter(r)
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

var quotaRe = regexp.MustCompile(`(?i)insufficient_quota|quota exceeded|exceeded your current quota|credit balance|billing`)

func quotaExhausted(msg string) bool { return quotaRe.MatchString(msg) }
