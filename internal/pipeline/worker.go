package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docstruct/internal/hierarchy"
	"github.com/dgallion1/docstruct/internal/merge"
)

// Runner runs one extraction. *Extractor implements it.
type Runner interface {
	Run(ctx context.Context, inputs []Input, opts RunOptions) (*Result, error)
}

// Worker processes a single extraction job.
type Worker struct {
	runner Runner
	log    *slog.Logger
}

func NewWorker(runner Runner, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Worker{runner: runner, log: log}
}

// Process runs the extraction for a job and records the outcome on it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "files", len(job.Filenames))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.setCancel(cancel)
	defer job.setCancel(nil)

	job.SetStatus(StatusParsing, "parsing")
	res, err := w.runner.Run(ctx, job.Inputs(), RunOptions{
		Title:    job.Title,
		Mode:     job.Mode,
		MaxDepth: job.MaxDepth,
		Progress: func(done, total int) {
			job.SetInputsProcessed(done, total)
			if done == total {
				job.SetStatus(StatusAssembling, "assembling")
			}
		},
	})
	if err != nil {
		job.ReleaseInputs()
		job.AddError(err.Error())
		switch {
		case errors.Is(err, context.Canceled):
			log.Info("job canceled")
			job.SetStatus(StatusCanceled, "canceled")
		case errors.Is(err, hierarchy.ErrNoHeadingsFound), errors.Is(err, hierarchy.ErrEmptyDocument):
			log.Warn("no structure recovered", "error", err)
			job.SetStatus(StatusFailed, "parsing")
		case merge.IsFatal(err):
			log.Error("merge provider rejected the run", "error", err)
			job.SetStatus(StatusFailed, "assembling")
		default:
			log.Error("extraction failed", "error", err)
			job.SetStatus(StatusFailed, "extracting")
		}
		return
	}

	job.SetResult(res)
	log.Info("extraction complete",
		"headings", res.Headings,
		"nodes", res.Document.Count(),
		"dropped", res.Dropped,
		"merge_batches", res.Assembly.Batches,
		"fallbacks", res.Assembly.Fallbacks,
		"duration", res.Duration,
	)
	if res.Assembly.Fallbacks > 0 {
		job.AddError(fmt.Sprintf("%d sections assembled heuristically after merge failures", res.Assembly.Fallbacks))
		job.SetStatus(StatusPartial, "done")
		return
	}
	job.SetStatus(StatusCompleted, "done")
}
