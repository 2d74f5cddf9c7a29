package heading

// titleSuffix accepts "Part 1", "Part 1.", "Part 1 General", "PART I - GENERAL".
const titleSuffix = `(?:\s*[-.:–—]?\s+(?P<title>.+)|\.)?`

// DefaultPatterns is the built-in table, most specific first.
func DefaultPatterns() []PatternSpec {
	return []PatternSpec{
		{
			Name:      "volume",
			Level:     LevelVolume,
			Pattern:   `(?i)(?P<label>vol(?:ume|\.)?\s*(?P<num>[ivxlcdm]+|\d+))` + titleSuffix,
			MaxLength: 120,
		},
		{
			Name:      "division",
			Level:     LevelVolume,
			Pattern:   `(?i)(?P<label>division\s+(?P<num>[ivxlcdm]+|[a-z]|\d+))` + titleSuffix,
			MaxLength: 120,
		},
		{
			Name:      "part",
			Level:     LevelPart,
			Pattern:   `(?i)(?P<label>part\s+(?P<num>[ivxlcdm]+|[a-z]|\d+))` + titleSuffix,
			MaxLength: 120,
		},
		{
			Name:      "chapter",
			Level:     LevelChapter,
			Pattern:   `(?i)(?P<label>chapter\s+(?P<num>[ivxlcdm]+|\d+))` + titleSuffix,
			MaxLength: 120,
		},
		{
			Name:           "section",
			Level:          LevelChapter,
			Pattern:        `(?i)(?P<label>sect(?:ion|\.)\s*(?P<num>\d+(?:\.\d+)*))` + titleSuffix,
			NumberingDepth: true,
			MinParts:       1,
			MaxLength:      120,
		},
		{
			Name:           "paragraph-sign",
			Level:          LevelChapter,
			Pattern:        `(?P<label>§{1,2}\s*(?P<num>\d+(?:\.\d+)*))` + titleSuffix,
			NumberingDepth: true,
			MinParts:       1,
			MaxLength:      120,
		},
		{
			Name:           "article",
			Level:          LevelChapter,
			Pattern:        `(?i)(?P<label>art(?:icle|\.)\s*(?P<num>\d+(?:\.\d+)*))` + titleSuffix,
			NumberingDepth: true,
			MinParts:       1,
			MaxLength:      120,
		},
		{
			Name:           "numbered",
			Level:          LevelChapter,
			Pattern:        `(?P<label>(?P<num>\d+(?:\.\d+){1,3}))(?:\.?\s+(?P<title>\p{L}.*)|\.)?`,
			NumberingDepth: true,
			MinParts:       2,
			MaxLength:      120,
		},
	}
}
