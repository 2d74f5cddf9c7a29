package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/metrics"
)

// Orchestrator runs extraction jobs on a bounded worker pool.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	runner Runner
	log    *slog.Logger
	cfg    config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, runner Runner, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		runner: runner,
		log:    log,
		cfg:    cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.runner, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					metrics.JobsQueued.Set(float64(len(o.queue)))
					if job.Snapshot().Status != StatusQueued {
						continue
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		metrics.JobsQueued.Set(float64(len(o.queue)))
		return nil
	default:
		job.ReleaseInputs()
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// ListJobs returns all known jobs, newest first.
func (o *Orchestrator) ListJobs() []*Job {
	return o.jobs.List()
}

// DeleteJob cancels a job if it is still queued or running and forgets it.
func (o *Orchestrator) DeleteJob(id string) bool {
	job := o.jobs.Get(id)
	if job == nil {
		return false
	}
	if !job.Snapshot().Status.Done() {
		job.Cancel()
		job.ReleaseInputs()
		job.SetStatus(StatusCanceled, "deleted")
	}
	return o.jobs.Delete(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
