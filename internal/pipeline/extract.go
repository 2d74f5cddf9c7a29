package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docstruct/internal/assemble"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/convert"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/heading"
	"github.com/dgallion1/docstruct/internal/hierarchy"
	"github.com/dgallion1/docstruct/internal/merge"
	"github.com/dgallion1/docstruct/internal/metrics"
	"github.com/dgallion1/docstruct/internal/parser"
	"github.com/dgallion1/docstruct/internal/serialize"
)

// ErrNoInputs is returned by Run when there is nothing to read.
var ErrNoInputs = errors.New("no input files")

// Input is one file handed to a run. Data is read from Path when nil.
type Input struct {
	Name string
	Path string
	Data []byte
}

// InputsFromPaths turns command-line arguments into inputs. A directory
// expands to the chunk files it contains.
func InputsFromPaths(args []string) ([]Input, error) {
	var inputs []Input
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, Input{Name: filepath.Base(arg), Path: arg})
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "part_*.htm*"))
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%s: no part_<n>_<start>_to_<end>.html files", arg)
		}
		for _, m := range matches {
			inputs = append(inputs, Input{Name: filepath.Base(m), Path: m})
		}
	}
	return inputs, nil
}

// RunOptions adjusts a single run.
type RunOptions struct {
	Title    string
	Mode     assemble.Mode // "" uses the configured mode
	MaxDepth int           // > 0 overrides the configured depth

	// Progress is called after each input is parsed.
	Progress func(done, total int)
}

// Result is a finished run.
type Result struct {
	Document *doctree.Document
	Headings int
	Dropped  int
	Assembly assemble.Report
	Gaps     []serialize.Gap
	Duration time.Duration
}

// Extractor runs the parse, classify, build and assemble stages.
type Extractor struct {
	parseOpts  parser.Options
	classifier *heading.Classifier
	converter  *convert.Converter
	heuristic  *assemble.Assembler
	external   *assemble.Assembler
	mode       assemble.Mode
	maxDepth   int
	log        *slog.Logger
}

// NewExtractor builds an extractor from cfg. merger may be nil, in which
// case only heuristic assembly is available.
func NewExtractor(cfg config.Config, merger merge.Merger, log *slog.Logger) (*Extractor, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	mode, err := assemble.ParseMode(cfg.MergeMode)
	if err != nil {
		return nil, err
	}
	classifier, err := heading.Compile(cfg.Headings, log)
	if err != nil {
		return nil, err
	}

	asmOpts := assemble.Options{
		Mode:          assemble.ModeHeuristic,
		Heuristic:     assemble.Heuristic{MinLength: cfg.MinFragmentLength},
		MaxChars:      cfg.MaxBatchChars,
		MaxFragments:  cfg.MaxBatchFragments,
		MaxConcurrent: cfg.MaxConcurrentMerge,
		MaxRetries:    cfg.MaxRetries,
		Language:      cfg.Language,
		Style:         cfg.Style,
		Log:           log,
	}
	if cfg.MaxRetries == 0 {
		asmOpts.MaxRetries = -1
	}
	heuristic, err := assemble.New(asmOpts)
	if err != nil {
		return nil, err
	}

	e := &Extractor{
		parseOpts: parser.Options{
			SkipTags:     cfg.SkipTags,
			DropPatterns: cfg.DropPatterns,
			Log:          log,
		},
		classifier: classifier,
		converter:  convert.New(convert.Options{Pdftotext: cfg.PDFFallbackPdftotext, Log: log}),
		heuristic:  heuristic,
		mode:       mode,
		maxDepth:   cfg.MaxDepth,
		log:        log,
	}
	if merger != nil {
		asmOpts.Mode = assemble.ModeExternal
		asmOpts.Merger = merger
		if e.external, err = assemble.New(asmOpts); err != nil {
			return nil, err
		}
	}
	if mode == assemble.ModeExternal && e.external == nil {
		return nil, errors.New("external merge mode needs a merge provider")
	}
	return e, nil
}

// Run processes inputs in page order and returns the assembled tree.
// ErrEmptyDocument, ErrNoHeadingsFound and merge.FatalError abort the run.
func (e *Extractor) Run(ctx context.Context, inputs []Input, opts RunOptions) (res *Result, err error) {
	start := time.Now()
	defer func() { metrics.Run(time.Since(start), err) }()

	asm, err := e.assembler(opts.Mode)
	if err != nil {
		return nil, err
	}
	ordered, chunks, err := orderInputs(inputs)
	if err != nil {
		return nil, err
	}

	depth := e.maxDepth
	if opts.MaxDepth > 0 {
		depth = opts.MaxDepth
	}
	dropped := 0
	popts := e.parseOpts
	popts.OnDrop = func(reason string) {
		dropped++
		metrics.Dropped(reason)
	}

	b := hierarchy.New(hierarchy.Options{MaxDepth: depth, Title: opts.Title, Log: e.log})
	title := opts.Title
	for i, in := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := chunks[i]
		if err := b.NextChunk(doctree.Source{Name: c.Name, Index: c.Index, StartPage: c.StartPage, EndPage: c.EndPage}); err != nil {
			return nil, err
		}
		pdoc, err := e.parse(in, popts)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", in.Name, err)
		}
		if title == "" {
			title = pdoc.Title
		}
		if err := e.feed(b, pdoc); err != nil {
			return nil, fmt.Errorf("build %s: %w", in.Name, err)
		}
		e.log.Debug("input processed", "name", in.Name, "headings", b.Headings(), "open", b.Depth())
		if opts.Progress != nil {
			opts.Progress(i+1, len(ordered))
		}
	}

	doc, err := b.Finish()
	if err != nil {
		return nil, err
	}
	if doc.Title == "" {
		doc.Title = title
	}

	report, err := asm.Assemble(ctx, doc)
	if err != nil {
		return nil, err
	}
	if report.Fallbacks > 0 {
		metrics.MergeFallbacks.Add(float64(report.Fallbacks))
	}

	return &Result{
		Document: doc,
		Headings: b.Headings(),
		Dropped:  dropped,
		Assembly: report,
		Gaps:     serialize.CheckNumbering(doc, e.log),
		Duration: time.Since(start),
	}, nil
}

func (e *Extractor) assembler(mode assemble.Mode) (*assemble.Assembler, error) {
	if mode == "" {
		mode = e.mode
	}
	switch mode {
	case assemble.ModeHeuristic:
		return e.heuristic, nil
	case assemble.ModeExternal:
		if e.external == nil {
			return nil, errors.New("external merge mode needs a merge provider")
		}
		return e.external, nil
	}
	return nil, fmt.Errorf("unknown merge mode %q", mode)
}

func (e *Extractor) feed(b *hierarchy.Builder, pdoc *parser.Document) error {
	for n := range pdoc.Nodes() {
		if m, ok := e.classifier.Classify(n.Text); ok {
			metrics.Heading(m.Level)
			if err := b.Heading(m, n.Text, n.Page); err != nil {
				return err
			}
			continue
		}
		if err := b.Text(n.Text); err != nil {
			return err
		}
	}
	return nil
}

// parse reads one input. PDFs are converted to page-marked HTML first.
func (e *Extractor) parse(in Input, opts parser.Options) (*parser.Document, error) {
	data := in.Data
	if data == nil {
		var err error
		if data, err = os.ReadFile(in.Path); err != nil {
			return nil, err
		}
	}

	name := in.Name
	if ext := filepath.Ext(name); strings.EqualFold(ext, ".pdf") {
		pages, err := e.converter.PagesFrom(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		name = strings.TrimSuffix(name, ext) + ".html"
		var buf bytes.Buffer
		if err := convert.WriteHTML(&buf, strings.TrimSuffix(filepath.Base(in.Name), ext), pages); err != nil {
			return nil, err
		}
		data = buf.Bytes()
	}

	p, err := parser.ForFile(name, opts)
	if err != nil {
		return nil, err
	}
	return p.Parse(bytes.NewReader(data), name)
}

// IsSupported reports whether Run accepts a file name.
func IsSupported(name string) bool {
	return parser.IsSupportedExtension(name) || strings.EqualFold(filepath.Ext(name), ".pdf")
}

// orderInputs sorts chunk files by their encoded page range. A single input
// needs no chunk name; several inputs must all carry one.
func orderInputs(inputs []Input) ([]Input, []parser.ChunkInfo, error) {
	switch len(inputs) {
	case 0:
		return nil, nil, ErrNoInputs
	case 1:
		info, err := parser.ParseChunkName(inputs[0].Name)
		if err != nil {
			info = parser.ChunkInfo{Path: inputs[0].Path, Name: filepath.Base(inputs[0].Name)}
		}
		return inputs, []parser.ChunkInfo{info}, nil
	}

	byName := make(map[string]Input, len(inputs))
	names := make([]string, 0, len(inputs))
	for _, in := range inputs {
		name := filepath.Base(in.Name)
		if _, dup := byName[name]; dup {
			return nil, nil, fmt.Errorf("duplicate input %s", name)
		}
		byName[name] = in
		names = append(names, name)
	}
	chunks, err := parser.SortChunks(names)
	if err != nil {
		return nil, nil, fmt.Errorf("multiple inputs must be page-range chunks: %w", err)
	}
	ordered := make([]Input, len(chunks))
	for i, c := range chunks {
		ordered[i] = byName[c.Name]
	}
	return ordered, chunks, nil
}
