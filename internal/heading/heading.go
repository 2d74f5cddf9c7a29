package heading

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Hierarchy levels. Chapter and Section share level 2.
const (
	LevelVolume        = 0
	LevelPart          = 1
	LevelChapter       = 2
	LevelSubsection    = 3
	LevelSubSubsection = 4

	MaxLevel = LevelSubSubsection
)

// PatternSpec is the declarative form of a heading rule, as it appears in
// config files.
type PatternSpec struct {
	Name    string `yaml:"name" json:"name"`
	Pattern string `yaml:"pattern" json:"pattern"`
	Level   int    `yaml:"level" json:"level"`

	// NumberingDepth derives the level from the number of dotted parts in
	// the num group: Level + (parts - MinParts), capped at MaxLevel.
	NumberingDepth bool `yaml:"numberingDepth,omitempty" json:"numberingDepth,omitempty"`
	MinParts       int  `yaml:"minParts,omitempty" json:"minParts,omitempty"`

	// MaxLength rejects node texts longer than this many runes (0 = no limit).
	MaxLength int `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
}

// Match is a classified heading.
type Match struct {
	Level   int
	Label   string
	Number  int
	Numbers []int
	Title   string
	Pattern string

	// Ambiguous is set when a lower-priority pattern at a different level
	// also matched. Alternatives names those patterns.
	Ambiguous    bool
	Alternatives []string
}

type pattern struct {
	spec  PatternSpec
	re    *regexp.Regexp
	label int
	num   int
	title int
}

// Classifier evaluates a priority-ordered pattern table.
type Classifier struct {
	patterns []pattern
	log      *slog.Logger
}

// Compile builds a classifier from specs. An empty list selects
// DefaultPatterns. Every expression is anchored so that only a whole node
// text can match.
func Compile(specs []PatternSpec, log *slog.Logger) (*Classifier, error) {
	if len(specs) == 0 {
		specs = DefaultPatterns()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	c := &Classifier{log: log}
	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("heading pattern %d: name is required", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("heading pattern %q: duplicate name", s.Name)
		}
		seen[s.Name] = true
		if s.Level < 0 || s.Level > MaxLevel {
			return nil, fmt.Errorf("heading pattern %q: level %d out of range 0..%d", s.Name, s.Level, MaxLevel)
		}
		re, err := regexp.Compile(`^(?:` + s.Pattern + `)$`)
		if err != nil {
			return nil, fmt.Errorf("heading pattern %q: %w", s.Name, err)
		}
		p := pattern{
			spec:  s,
			re:    re,
			label: re.SubexpIndex("label"),
			num:   re.SubexpIndex("num"),
			title: re.SubexpIndex("title"),
		}
		if p.label < 0 {
			return nil, fmt.Errorf("heading pattern %q: missing (?P<label>...) group", s.Name)
		}
		if s.NumberingDepth && p.num < 0 {
			return nil, fmt.Errorf("heading pattern %q: numberingDepth needs a (?P<num>...) group", s.Name)
		}
		if p.spec.MinParts <= 0 {
			p.spec.MinParts = 1
		}
		c.patterns = append(c.patterns, p)
	}
	return c, nil
}

// Specs returns the active table in priority order.
func (c *Classifier) Specs() []PatternSpec {
	out := make([]PatternSpec, len(c.patterns))
	for i, p := range c.patterns {
		out[i] = p.spec
	}
	return out
}

// Classify reports whether text is a heading. text should already be
// whitespace-normalized; partial-line matches never count.
func (c *Classifier) Classify(text string) (Match, bool) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return Match{}, false
	}
	runes := utf8.RuneCountInString(text)

	var best Match
	found := false
	for _, p := range c.patterns {
		if p.spec.MaxLength > 0 && runes > p.spec.MaxLength {
			continue
		}
		m, ok := p.match(text)
		if !ok {
			continue
		}
		if !found {
			best = m
			found = true
			continue
		}
		if m.Level != best.Level {
			best.Ambiguous = true
			best.Alternatives = append(best.Alternatives, m.Pattern)
		}
	}
	if found && best.Ambiguous {
		c.log.Warn("ambiguous heading level",
			"text", text,
			"pattern", best.Pattern,
			"level", best.Level,
			"alternatives", best.Alternatives,
		)
	}
	return best, found
}

func (p pattern) match(text string) (Match, bool) {
	sub := p.re.FindStringSubmatch(text)
	if sub == nil {
		return Match{}, false
	}
	m := Match{
		Level:   p.spec.Level,
		Label:   strings.TrimSpace(sub[p.label]),
		Pattern: p.spec.Name,
	}
	if p.title >= 0 {
		m.Title = strings.TrimSpace(sub[p.title])
	}
	if p.num >= 0 && sub[p.num] != "" {
		nums, ok := ParseNumber(sub[p.num])
		if !ok {
			return Match{}, false
		}
		m.Numbers = nums
		m.Number = nums[len(nums)-1]
	}
	if p.spec.NumberingDepth && len(m.Numbers) > 0 {
		lvl := p.spec.Level + len(m.Numbers) - p.spec.MinParts
		if lvl < p.spec.Level {
			lvl = p.spec.Level
		}
		if lvl > MaxLevel {
			lvl = MaxLevel
		}
		m.Level = lvl
	}
	return m, true
}
