package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/docstruct/internal/assemble"
	"github.com/google/uuid"
)

// JobStatus represents the state of an extraction job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusAssembling JobStatus = "assembling"
	StatusCompleted  JobStatus = "completed"
	StatusPartial    JobStatus = "partial"
	StatusFailed     JobStatus = "failed"
	StatusCanceled   JobStatus = "canceled"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Job tracks the state of a single extraction.
type Job struct {
	mu sync.Mutex

	ID string `json:"job_id"`

	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Filenames []string  `json:"filenames"`
	Title     string    `json:"title"`

	Mode     assemble.Mode `json:"merge,omitempty"`
	MaxDepth int           `json:"max_depth,omitempty"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	inputs []Input
	result *Result
	cancel context.CancelFunc
	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalInputs     int      `json:"total_inputs"`
	InputsProcessed int      `json:"inputs_processed"`
	Headings        int      `json:"headings"`
	Dropped         int      `json:"dropped_nodes"`
	MergeBatches    int      `json:"merge_batches"`
	Fallbacks       int      `json:"merge_fallbacks"`
	Errors          []string `json:"errors"`
}

// NewJob creates a queued job for inputs.
func NewJob(inputs []Input, title string, mode assemble.Mode, maxDepth int) *Job {
	now := time.Now()
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Name
	}
	return &Job{
		ID:          uuid.NewString(),
		Status:      StatusQueued,
		Phase:       "queued",
		Filenames:   names,
		Title:       title,
		Mode:        mode,
		MaxDepth:    maxDepth,
		Progress:    Progress{TotalInputs: len(inputs)},
		ContentHash: inputsHash(inputs),
		CreatedAt:   now,
		UpdatedAt:   now,
		inputs:      inputs,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Delete removes a job and reports whether it existed.
func (s *JobStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	return ok
}

// List returns all jobs, newest first.
func (s *JobStore) List() []*Job {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].createdAt().After(jobs[b].createdAt())
	})
	return jobs
}

// Cleanup removes finished jobs that have not changed within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Done() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) createdAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.CreatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetInputsProcessed records parse progress.
func (j *Job) SetInputsProcessed(done, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.InputsProcessed = done
	j.Progress.TotalInputs = total
	j.UpdatedAt = time.Now()
}

// SetResult stores the finished run and releases the input bytes.
func (j *Job) SetResult(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.inputs = nil
	j.Progress.Headings = res.Headings
	j.Progress.Dropped = res.Dropped
	j.Progress.MergeBatches = res.Assembly.Batches
	j.Progress.Fallbacks = res.Assembly.Fallbacks
	if j.Title == "" && res.Document != nil {
		j.Title = res.Document.Title
	}
	j.UpdatedAt = time.Now()
}

// Result returns the finished run, or nil.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Inputs returns the files to process.
func (j *Job) Inputs() []Input {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inputs
}

// ReleaseInputs drops the input bytes.
func (j *Job) ReleaseInputs() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inputs = nil
}

func (j *Job) setCancel(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = cancel
}

// Cancel stops a running job. It is a no-op for jobs that have not started
// or have finished.
func (j *Job) Cancel() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string        `json:"job_id"`
	Status      JobStatus     `json:"status"`
	Phase       string        `json:"phase"`
	Filenames   []string      `json:"filenames"`
	Title       string        `json:"title"`
	Mode        assemble.Mode `json:"merge,omitempty"`
	MaxDepth    int           `json:"max_depth,omitempty"`
	Progress    Progress      `json:"progress"`
	ContentHash string        `json:"content_hash,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	progress := j.Progress
	progress.Errors = append([]string{}, errs...)
	return JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filenames:   append([]string{}, j.Filenames...),
		Title:       j.Title,
		Mode:        j.Mode,
		MaxDepth:    j.MaxDepth,
		Progress:    progress,
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// inputsHash hashes input names and bytes in order.
func inputsHash(inputs []Input) string {
	h := sha256.New()
	for _, in := range inputs {
		h.Write([]byte(in.Name))
		h.Write([]byte{0})
		h.Write(in.Data)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
