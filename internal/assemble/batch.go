package assemble

// Batches splits fragments into order-preserving groups of at most
// maxChars bytes and maxFragments items. A fragment larger than maxChars
// gets a batch of its own. Zero or negative limits are unbounded.
func Batches(fragments []string, maxChars, maxFragments int) [][]string {
	var out [][]string
	var cur []string
	size := 0
	for _, f := range fragments {
		full := len(cur) > 0 &&
			((maxChars > 0 && size+len(f) > maxChars) ||
				(maxFragments > 0 && len(cur) >= maxFragments))
		if full {
			out = append(out, cur)
			cur, size = nil, 0
		}
		cur = append(cur, f)
		size += len(f)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
