package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// ChunkInfo is the page range encoded in a chunk file name.
type ChunkInfo struct {
	Path      string
	Name      string
	Index     int
	StartPage int
	EndPage   int
}

var chunkNameRe = regexp.MustCompile(`^part_(\d+)_(\d+)_to_(\d+)\.html?$`)

// ParseChunkName reads part_<n>_<start>_to_<end>.html.
func ParseChunkName(path string) (ChunkInfo, error) {
	name := filepath.Base(path)
	m := chunkNameRe.FindStringSubmatch(name)
	if m == nil {
		return ChunkInfo{}, fmt.Errorf("chunk name %q does not encode a page range", name)
	}
	idx, _ := strconv.Atoi(m[1])
	start, _ := strconv.Atoi(m[2])
	end, _ := strconv.Atoi(m[3])
	if end < start {
		return ChunkInfo{}, fmt.Errorf("chunk name %q: end page %d before start page %d", name, end, start)
	}
	return ChunkInfo{Path: path, Name: name, Index: idx, StartPage: start, EndPage: end}, nil
}

// SortChunks orders chunk paths by start page, then index. The input order
// (typically filesystem order) is ignored.
func SortChunks(paths []string) ([]ChunkInfo, error) {
	chunks := make([]ChunkInfo, 0, len(paths))
	for _, p := range paths {
		c, err := ParseChunkName(p)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].StartPage != chunks[j].StartPage {
			return chunks[i].StartPage < chunks[j].StartPage
		}
		return chunks[i].Index < chunks[j].Index
	})
	return chunks, nil
}

// ChunkName formats the name ParseChunkName reads.
func ChunkName(index, startPage, endPage int) string {
	return fmt.Sprintf("part_%d_%d_to_%d.html", index, startPage, endPage)
}
