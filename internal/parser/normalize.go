package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MalformedMarkupError describes a node whose text cannot be trusted.
type MalformedMarkupError struct {
	Page   int
	Reason string
	Text   string
}

func (e *MalformedMarkupError) Error() string {
	snippet := e.Text
	if len(snippet) > 60 {
		cut := 60
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut] + "..."
	}
	return fmt.Sprintf("malformed markup on page %d: %s: %q", e.Page, e.Reason, snippet)
}

// tagLikeRe finds markup that leaked into text content, e.g. "<p class=".
var tagLikeRe = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(?:\s+[a-zA-Z_:][-a-zA-Z0-9_:.]*\s*=|\s*/?>)`)

func checkText(raw string, page int) error {
	if !utf8.ValidString(raw) {
		return &MalformedMarkupError{Page: page, Reason: "invalid UTF-8", Text: strings.ToValidUTF8(raw, "\ufffd")}
	}
	if tagLikeRe.MatchString(raw) {
		return &MalformedMarkupError{Page: page, Reason: "tag-like text", Text: raw}
	}
	return nil
}

var invisible = strings.NewReplacer(
	"\u00ad", "", // soft hyphen
	"\u200b", "",
	"\ufeff", "",
)

// Normalize applies NFKC (folds ligatures and NBSP), removes invisible
// characters, collapses whitespace runs and trims.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = invisible.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
