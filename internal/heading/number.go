package heading

import (
	"regexp"
	"strconv"
	"strings"
)

var romanRe = regexp.MustCompile(`^M{0,3}(CM|CD|D?C{0,3})(XC|XL|L?X{0,3})(IX|IV|V?I{0,3})$`)

var romanValues = map[byte]int{'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000}

// ParseNumber normalizes a label number into its integer parts:
// "12" -> [12], "IV" -> [4], "B" -> [2], "4.2" -> [4 2].
//
// Single letters other than I, V and X are read as alphabet positions, so
// "Division C" is 3 rather than 100.
func ParseNumber(s string) ([]int, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, ok := parsePart(p)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func parsePart(p string) (int, bool) {
	if p == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(p); err == nil {
		if n < 0 {
			return 0, false
		}
		return n, true
	}
	up := strings.ToUpper(p)
	if len(up) == 1 && up[0] >= 'A' && up[0] <= 'Z' {
		switch up[0] {
		case 'I', 'V', 'X':
		default:
			return int(up[0]-'A') + 1, true
		}
	}
	return romanToInt(up)
}

func romanToInt(s string) (int, bool) {
	if s == "" || !romanRe.MatchString(s) {
		return 0, false
	}
	total := 0
	for i := 0; i < len(s); i++ {
		v := romanValues[s[i]]
		if i+1 < len(s) && v < romanValues[s[i+1]] {
			total -= v
		} else {
			total += v
		}
	}
	return total, true
}
