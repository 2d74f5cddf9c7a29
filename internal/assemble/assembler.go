package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/merge"
)

// Mode selects how fragments become paragraphs.
type Mode string

const (
	ModeHeuristic Mode = "heuristic"
	ModeExternal  Mode = "external"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeHeuristic, ModeExternal:
		return Mode(s), nil
	case "":
		return ModeHeuristic, nil
	}
	return "", fmt.Errorf("unknown merge mode %q (want heuristic or external)", s)
}

// Options configures an Assembler. Zero values select defaults.
type Options struct {
	Mode      Mode
	Merger    merge.Merger
	Heuristic Heuristic

	MaxChars      int // per batch, default 6000
	MaxFragments  int // per batch, default 15
	MaxConcurrent int // in-flight merge calls, default 5
	MaxRetries    int // retries of a transient failure, default MaxRetries
	Backoff       func(attempt int) time.Duration

	Language string
	Style    string
	Log      *slog.Logger
}

// Report summarizes one Assemble call.
type Report struct {
	Nodes     int // nodes (and preamble) with fragments
	Batches   int // merge requests issued
	Fallbacks int // nodes that fell back to the heuristic
}

// Assembler fills BodyText for every sealed node of a document.
type Assembler struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options) (*Assembler, error) {
	if opts.Mode == "" {
		opts.Mode = ModeHeuristic
	}
	if opts.Mode == ModeExternal && opts.Merger == nil {
		return nil, errors.New("assemble: external mode needs a merger")
	}
	if opts.Heuristic.MinLength == 0 {
		opts.Heuristic.MinLength = DefaultMinLength
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 6000
	}
	if opts.MaxFragments <= 0 {
		opts.MaxFragments = 15
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = MaxRetries
	}
	if opts.Backoff == nil {
		opts.Backoff = Backoff
	}
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Assembler{opts: opts, log: log}, nil
}

// target is one fragment list and where its paragraphs go.
type target struct {
	fragments  []string
	breadcrumb []string
	out        *[]string
}

func collectTargets(doc *doctree.Document) []target {
	var targets []target
	if len(doc.Preamble) > 0 {
		targets = append(targets, target{fragments: doc.Preamble, out: &doc.PreambleText})
	}
	doc.Walk(func(n *doctree.Node, path []*doctree.Node) {
		if len(n.RawFragments) == 0 {
			return
		}
		crumb := append(doctree.Breadcrumb(path), labelOf(n))
		targets = append(targets, target{fragments: n.RawFragments, breadcrumb: crumb, out: &n.BodyText})
	})
	return targets
}

func labelOf(n *doctree.Node) string {
	if n.Label != "" {
		return n.Label
	}
	return n.Heading
}

// Assemble writes BodyText on every node with fragments and PreambleText on
// the document. A FatalError from the merger aborts and is returned; any
// other merge failure falls back to the heuristic for that node.
func (a *Assembler) Assemble(ctx context.Context, doc *doctree.Document) (Report, error) {
	targets := collectTargets(doc)
	report := Report{Nodes: len(targets)}

	if a.opts.Mode == ModeHeuristic {
		for _, t := range targets {
			*t.out = a.opts.Heuristic.Assemble(t.fragments)
		}
		return report, nil
	}
	return a.external(ctx, doc.Title, targets, report)
}

type batchJob struct {
	target int
	slot   int
	req    merge.Request
}

type batchResult struct {
	target int
	slot   int
	paras  []string
	err    error
}

func (a *Assembler) external(ctx context.Context, title string, targets []target, report Report) (Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([][][]string, len(targets))
	var jobs []batchJob
	for ti, t := range targets {
		batches := Batches(t.fragments, a.opts.MaxChars, a.opts.MaxFragments)
		slots[ti] = make([][]string, len(batches))
		for bi, b := range batches {
			jobs = append(jobs, batchJob{
				target: ti,
				slot:   bi,
				req: merge.Request{
					Fragments:  b,
					Language:   a.opts.Language,
					Style:      a.opts.Style,
					Title:      title,
					Breadcrumb: t.breadcrumb,
				},
			})
		}
	}

	results := make(chan batchResult, len(jobs))
	sem := make(chan struct{}, a.opts.MaxConcurrent)
	launched := 0

launch:
	for _, j := range jobs {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break launch
		}
		launched++
		go func(j batchJob) {
			defer func() { <-sem }()
			paras, err := a.mergeWithRetry(ctx, j.req)
			results <- batchResult{target: j.target, slot: j.slot, paras: paras, err: err}
		}(j)
	}
	report.Batches = launched

	// Collect merge results.
	failed := make([]error, len(targets))
	var fatal error
	for range launched {
		r := <-results
		switch {
		case r.err == nil:
			slots[r.target][r.slot] = r.paras
		case merge.IsFatal(r.err):
			if fatal == nil {
				fatal = r.err
				cancel()
			}
		default:
			if failed[r.target] == nil {
				failed[r.target] = r.err
			}
		}
	}
	if fatal != nil {
		return report, fmt.Errorf("merge aborted: %w", fatal)
	}
	if launched < len(jobs) || ctx.Err() != nil {
		return report, context.Cause(ctx)
	}

	for ti, t := range targets {
		if failed[ti] != nil {
			a.log.Warn("merge failed, using heuristic",
				"section", t.breadcrumb,
				"fragments", len(t.fragments),
				"error", failed[ti],
			)
			report.Fallbacks++
			*t.out = a.opts.Heuristic.Assemble(t.fragments)
			continue
		}
		var paras []string
		for _, s := range slots[ti] {
			paras = append(paras, s...)
		}
		*t.out = paras
	}
	return report, nil
}

func (a *Assembler) mergeWithRetry(ctx context.Context, req merge.Request) ([]string, error) {
	for attempt := 0; ; attempt++ {
		paras, err := a.opts.Merger.Merge(ctx, req)
		if err == nil {
			return paras, nil
		}
		if !merge.IsTransient(err) || attempt >= a.opts.MaxRetries {
			return nil, err
		}
		a.log.Warn("transient merge error", "section", req.Breadcrumb, "attempt", attempt, "error", err)
		select {
		case <-time.After(a.opts.Backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
