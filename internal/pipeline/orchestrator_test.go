package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/docstruct/internal/assemble"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/hierarchy"
	"github.com/dgallion1/docstruct/internal/merge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runFunc func(ctx context.Context, inputs []Input, opts RunOptions) (*Result, error)

func (f runFunc) Run(ctx context.Context, inputs []Input, opts RunOptions) (*Result, error) {
	return f(ctx, inputs, opts)
}

func okResult(fallbacks int) *Result {
	return &Result{
		Document: &doctree.Document{Title: "Doc", Children: []*doctree.Node{{Level: 1, Label: "Part 1"}}},
		Headings: 1,
		Assembly: assemble.Report{Nodes: 1, Batches: 1, Fallbacks: fallbacks},
	}
}

func testConfig(workers, queue int) config.Config {
	cfg := config.Default()
	cfg.WorkerCount = workers
	cfg.MaxQueueSize = queue
	return cfg
}

func startOrchestrator(t *testing.T, cfg config.Config, r Runner) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(cfg, r, nil)
	o.Start(context.Background())
	t.Cleanup(o.Stop)
	return o
}

func waitDone(t *testing.T, job *Job) JobSnapshot {
	t.Helper()
	require.Eventually(t, func() bool { return job.Snapshot().Status.Done() }, 2*time.Second, 5*time.Millisecond)
	return job.Snapshot()
}

func TestWorker_Outcomes(t *testing.T) {
	tests := []struct {
		name   string
		res    *Result
		err    error
		status JobStatus
		phase  string
		errors int
	}{
		{name: "completed", res: okResult(0), status: StatusCompleted, phase: "done"},
		{name: "partial", res: okResult(2), status: StatusPartial, phase: "done", errors: 1},
		{name: "no headings", err: hierarchy.ErrNoHeadingsFound, status: StatusFailed, phase: "parsing", errors: 1},
		{name: "empty document", err: hierarchy.ErrEmptyDocument, status: StatusFailed, phase: "parsing", errors: 1},
		{name: "fatal merge", err: &merge.FatalError{Provider: "p", StatusCode: 401}, status: StatusFailed, phase: "assembling", errors: 1},
		{name: "other", err: errors.New("boom"), status: StatusFailed, phase: "extracting", errors: 1},
		{name: "canceled", err: context.Canceled, status: StatusCanceled, phase: "canceled", errors: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWorker(runFunc(func(_ context.Context, inputs []Input, opts RunOptions) (*Result, error) {
				opts.Progress(len(inputs), len(inputs))
				return tc.res, tc.err
			}), nil)
			job := NewJob([]Input{{Name: "a.html", Data: []byte("x")}}, "", "", 0)

			w.Process(context.Background(), job)

			snap := job.Snapshot()
			assert.Equal(t, tc.status, snap.Status)
			assert.Equal(t, tc.phase, snap.Phase)
			assert.Len(t, snap.Progress.Errors, tc.errors)
			assert.Equal(t, 1, snap.Progress.InputsProcessed)
			assert.Nil(t, job.Inputs())
			assert.Equal(t, tc.res != nil, job.Result() != nil)
		})
	}
}

func TestWorker_PassesJobOptions(t *testing.T) {
	var got RunOptions
	w := NewWorker(runFunc(func(_ context.Context, _ []Input, opts RunOptions) (*Result, error) {
		got = opts
		return okResult(0), nil
	}), nil)
	job := NewJob([]Input{{Name: "a.html"}}, "Title", assemble.ModeExternal, 2)

	w.Process(context.Background(), job)

	assert.Equal(t, "Title", got.Title)
	assert.Equal(t, assemble.ModeExternal, got.Mode)
	assert.Equal(t, 2, got.MaxDepth)
}

func TestOrchestrator_SubmitRuns(t *testing.T) {
	o := startOrchestrator(t, testConfig(2, 4), runFunc(func(context.Context, []Input, RunOptions) (*Result, error) {
		return okResult(0), nil
	}))

	job := NewJob([]Input{{Name: "a.html", Data: []byte("x")}}, "", "", 0)
	require.NoError(t, o.Submit(job))

	snap := waitDone(t, job)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, "Doc", snap.Title)
	assert.Same(t, job, o.GetJob(job.ID))
	assert.Len(t, o.ListJobs(), 1)
}

func TestOrchestrator_QueueFull(t *testing.T) {
	o := NewOrchestrator(testConfig(0, 1), runFunc(func(context.Context, []Input, RunOptions) (*Result, error) {
		return okResult(0), nil
	}), nil)

	first := NewJob([]Input{{Name: "a.html"}}, "", "", 0)
	second := NewJob([]Input{{Name: "b.html"}}, "", "", 0)
	require.NoError(t, o.Submit(first))
	assert.Error(t, o.Submit(second))

	snap := second.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "queue_full", snap.Phase)
	assert.Equal(t, 1, o.QueueDepth())
}

func TestOrchestrator_DeleteRunningJob(t *testing.T) {
	started := make(chan struct{})
	finished := make(chan error, 1)
	o := startOrchestrator(t, testConfig(1, 1), runFunc(func(ctx context.Context, _ []Input, _ RunOptions) (*Result, error) {
		close(started)
		<-ctx.Done()
		finished <- ctx.Err()
		return nil, ctx.Err()
	}))

	job := NewJob([]Input{{Name: "a.html"}}, "", "", 0)
	require.NoError(t, o.Submit(job))
	<-started

	assert.True(t, o.DeleteJob(job.ID))
	assert.Nil(t, o.GetJob(job.ID))
	assert.False(t, o.DeleteJob(job.ID))

	select {
	case err := <-finished:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("running job was not canceled")
	}
	assert.Equal(t, StatusCanceled, waitDone(t, job).Status)
}

func TestOrchestrator_DeletedQueuedJobIsSkipped(t *testing.T) {
	o := NewOrchestrator(testConfig(1, 2), runFunc(func(context.Context, []Input, RunOptions) (*Result, error) {
		t.Error("deleted job must not run")
		return okResult(0), nil
	}), nil)

	job := NewJob([]Input{{Name: "a.html"}}, "", "", 0)
	require.NoError(t, o.Submit(job))
	require.True(t, o.DeleteJob(job.ID))

	o.Start(context.Background())
	require.Eventually(t, func() bool { return o.QueueDepth() == 0 }, time.Second, 5*time.Millisecond)
	o.Stop()

	assert.Equal(t, StatusCanceled, job.Snapshot().Status)
}
