package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docstruct/internal/assemble"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/hierarchy"
	"github.com/dgallion1/docstruct/internal/merge"
	"github.com/dgallion1/docstruct/internal/serialize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func htmlDoc(title string, body ...string) []byte {
	return []byte("<html><head><title>" + title + "</title></head><body>" + strings.Join(body, "\n") + "</body></html>")
}

func newExtractor(t *testing.T, cfg config.Config, m merge.Merger) *Extractor {
	t.Helper()
	e, err := NewExtractor(cfg, m, nil)
	require.NoError(t, err)
	return e
}

func labels(nodes []*doctree.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Label)
	}
	return out
}

func TestRun_PartChapterScenario(t *testing.T) {
	data := htmlDoc("Code",
		`<h1>PART I</h1>`,
		`<h2>Chapter 1</h2>`,
		`<p>some text</p>`,
		`<table><tr><td>cell text</td></tr></table>`,
		`<p>12</p>`,
		`<h1>PART II</h1>`,
	)
	e := newExtractor(t, config.Default(), nil)

	res, err := e.Run(context.Background(), []Input{{Name: "code.html", Data: data}}, RunOptions{})
	require.NoError(t, err)

	doc := res.Document
	assert.Equal(t, "Code", doc.Title)
	assert.Equal(t, []string{"PART I", "PART II"}, labels(doc.Children))
	require.Len(t, doc.Children[0].Children, 1)
	ch := doc.Children[0].Children[0]
	assert.Equal(t, "Chapter 1", ch.Label)
	assert.Equal(t, []string{"some text"}, ch.BodyText)
	assert.Empty(t, doc.Children[1].Children)
	assert.Equal(t, 3, res.Headings)
	assert.Equal(t, 1, res.Dropped, "page number dropped")

	var buf bytes.Buffer
	require.NoError(t, serialize.Write(&buf, doc, serialize.FormatJSON))
	assert.NotContains(t, buf.String(), "cell text")
}

func TestRun_ChunkSplitMatchesUnsplit(t *testing.T) {
	head := []string{`<h1>PART I</h1>`, `<h2>Chapter 1</h2>`, `<p>The quick brown fox</p>`}
	tail := []string{
		`<p>jumps over the lazy dog.</p>`,
		`<p>Another paragraph starts here.</p>`,
		`<h1>PART II</h1>`,
		`<p>Closing text.</p>`,
	}
	e := newExtractor(t, config.Default(), nil)

	whole, err := e.Run(context.Background(), []Input{{
		Name: "doc.html",
		Data: htmlDoc("Doc", append(append([]string{}, head...), tail...)...),
	}}, RunOptions{})
	require.NoError(t, err)

	// Inputs deliberately out of page order.
	split, err := e.Run(context.Background(), []Input{
		{Name: "part_2_11_to_20.html", Data: htmlDoc("Doc", tail...)},
		{Name: "part_1_1_to_10.html", Data: htmlDoc("Doc", head...)},
	}, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, treeJSON(t, whole.Document), treeJSON(t, split.Document))
	require.Len(t, split.Document.Sources, 2)
	assert.Equal(t, 1, split.Document.Sources[0].StartPage)
	assert.Equal(t, []string{"The quick brown fox jumps over the lazy dog.", "Another paragraph starts here."},
		split.Document.Children[0].Children[0].BodyText)
}

// treeJSON serializes doc without its source list.
func treeJSON(t *testing.T, doc *doctree.Document) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, serialize.Write(&buf, doc, serialize.FormatJSON))
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	delete(m, "sources")
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return string(out)
}

func TestRun_NoHeadings(t *testing.T) {
	e := newExtractor(t, config.Default(), nil)

	_, err := e.Run(context.Background(), []Input{{Name: "a.html", Data: htmlDoc("A", `<p>just prose</p>`)}}, RunOptions{})
	assert.ErrorIs(t, err, hierarchy.ErrNoHeadingsFound)
	assert.NotErrorIs(t, err, hierarchy.ErrEmptyDocument)

	_, err = e.Run(context.Background(), []Input{{Name: "e.html", Data: []byte(`<html><body></body></html>`)}}, RunOptions{})
	assert.ErrorIs(t, err, hierarchy.ErrEmptyDocument)
	assert.NotErrorIs(t, err, hierarchy.ErrNoHeadingsFound)

	res, err := e.Run(context.Background(), []Input{{Name: "b.html", Data: htmlDoc("B", `<p>Chapter 1</p>`, `<p>prose</p>`)}}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Headings)
}

func TestRun_FlatAndDepthOverride(t *testing.T) {
	data := htmlDoc("D", `<p>Part 1</p>`, `<p>Chapter 1</p>`, `<p>1.1 Scope</p>`, `<p>text</p>`)
	e := newExtractor(t, config.Default(), nil)

	res, err := e.Run(context.Background(), []Input{{Name: "d.html", Data: data}}, RunOptions{MaxDepth: 1})
	require.NoError(t, err)
	assert.Len(t, res.Document.Children, 3)
	for _, n := range res.Document.Children {
		assert.Empty(t, n.Children)
	}
}

func TestRun_Markdown(t *testing.T) {
	md := "# Chapter 1\n\nFirst line of text\ncontinues here.\n\n## 1.1 Scope\n\nScope text.\n"
	e := newExtractor(t, config.Default(), nil)

	res, err := e.Run(context.Background(), []Input{{Name: "notes.md", Data: []byte(md)}}, RunOptions{Title: "Notes"})
	require.NoError(t, err)
	assert.Equal(t, "Notes", res.Document.Title)
	require.Len(t, res.Document.Children, 1)
	assert.Equal(t, "Chapter 1", res.Document.Children[0].Label)
	require.Len(t, res.Document.Children[0].Children, 1)
	assert.Equal(t, []string{"Scope text."}, res.Document.Children[0].Children[0].BodyText)
}

func TestRun_InputErrors(t *testing.T) {
	e := newExtractor(t, config.Default(), nil)
	ctx := context.Background()

	_, err := e.Run(ctx, nil, RunOptions{})
	assert.ErrorIs(t, err, ErrNoInputs)

	_, err = e.Run(ctx, []Input{{Name: "a.html", Data: []byte("x")}, {Name: "b.html", Data: []byte("y")}}, RunOptions{})
	assert.ErrorContains(t, err, "page-range chunks")

	_, err = e.Run(ctx, []Input{{Name: "sheet.xlsx", Data: []byte("x")}}, RunOptions{})
	assert.Error(t, err)

	_, err = e.Run(ctx, []Input{{Name: "a.html", Data: htmlDoc("A", "<p>Part 1</p>")}}, RunOptions{Mode: assemble.ModeExternal})
	assert.Error(t, err, "external mode without provider")
}

type fakeMerger struct {
	err error
}

func (f fakeMerger) Name() string { return "fake/model" }

func (f fakeMerger) Merge(_ context.Context, req merge.Request) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []string{strings.ToUpper(strings.Join(req.Fragments, " "))}, nil
}

func TestRun_ExternalMode(t *testing.T) {
	cfg := config.Default()
	cfg.MergeMode = "external"
	data := htmlDoc("E", `<p>Part 1</p>`, `<p>alpha</p>`, `<p>beta</p>`)

	res, err := newExtractor(t, cfg, fakeMerger{}).Run(context.Background(), []Input{{Name: "e.html", Data: data}}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ALPHA BETA"}, res.Document.Children[0].BodyText)
	assert.Equal(t, 1, res.Assembly.Batches)

	// A per-run override still allows the heuristic.
	res, err = newExtractor(t, cfg, fakeMerger{}).Run(context.Background(), []Input{{Name: "e.html", Data: data}}, RunOptions{Mode: assemble.ModeHeuristic})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha beta"}, res.Document.Children[0].BodyText)
}

func TestRun_ExternalFatalAborts(t *testing.T) {
	cfg := config.Default()
	cfg.MergeMode = "external"
	e := newExtractor(t, cfg, fakeMerger{err: &merge.FatalError{Provider: "fake", StatusCode: 401, Message: "bad key"}})

	_, err := e.Run(context.Background(), []Input{{Name: "e.html", Data: htmlDoc("E", `<p>Part 1</p>`, `<p>alpha</p>`, `<p>beta</p>`)}}, RunOptions{})
	require.Error(t, err)
	assert.True(t, merge.IsFatal(err))
}

func TestNewExtractor_ExternalNeedsMerger(t *testing.T) {
	cfg := config.Default()
	cfg.MergeMode = "external"
	_, err := NewExtractor(cfg, nil, nil)
	assert.Error(t, err)
}

func TestInputsFromPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"part_2_11_to_20.html", "part_1_1_to_10.html", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	single := filepath.Join(dir, "notes.txt")

	inputs, err := InputsFromPaths([]string{dir})
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	inputs, err = InputsFromPaths([]string{single})
	require.NoError(t, err)
	assert.Equal(t, []Input{{Name: "notes.txt", Path: single}}, inputs)

	_, err = InputsFromPaths([]string{filepath.Join(dir, "missing.html")})
	assert.Error(t, err)

	ordered, chunks, err := orderInputs([]Input{{Name: "part_2_11_to_20.html"}, {Name: "part_1_1_to_10.html"}})
	require.NoError(t, err)
	assert.Equal(t, "part_1_1_to_10.html", ordered[0].Name)
	assert.Equal(t, 11, chunks[1].StartPage)
}

func TestRun_ReadsFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("Chapter 1\nBody line.\n"), 0o644))

	var progress []int
	res, err := newExtractor(t, config.Default(), nil).Run(context.Background(),
		[]Input{{Name: "doc.txt", Path: path}},
		RunOptions{Progress: func(done, total int) { progress = append(progress, done, total) }})
	require.NoError(t, err)
	assert.Equal(t, "doc", res.Document.Title)
	assert.Equal(t, []int{1, 1}, progress)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a.PDF"))
	assert.True(t, IsSupported("a.html"))
	assert.False(t, IsSupported("a.csv"))
}
