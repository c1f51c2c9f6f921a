// Package worker runs a bounded pool of indexing jobs concurrently,
// the same "background indexer with progress tracking" role
// internal/async/indexer.go plays for the teacher, generalized from one
// long-running background job to many short-lived per-file parse jobs
// fanned out across a project tree.
package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Job is one unit of indexing work: parse a single file and produce
// whatever the caller's Func returns for it (normally a slice of
// tags.Record, but kept generic so the pool doesn't depend on
// internal/tags).
type Job struct {
	Path string
}

// Func does the actual work for one Job.
type Func func(ctx context.Context, job Job) (any, error)

// Result pairs a Job with what Func produced for it, or the error Func
// returned.
type Result struct {
	Job   Job
	Value any
	Err   error
}

// Pool runs jobs through Func with bounded concurrency, collecting a
// Result per job. Once the context is canceled, jobs that have not
// started yet are not run and get the context's error as their Result;
// a job's own error is recorded in its Result and does not stop the
// others.
type Pool struct {
	limit int
}

// New creates a Pool that runs at most limit jobs concurrently. A
// non-positive limit is treated as 1.
func New(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{limit: limit}
}

// Progress reports how many of the submitted jobs have finished so far,
// safe to read concurrently with Run.
type Progress struct {
	total     int64
	completed int64
}

// Total returns the number of jobs submitted to the run.
func (p *Progress) Total() int64 { return atomic.LoadInt64(&p.total) }

// Completed returns the number of jobs that have finished (successfully
// or not) so far.
func (p *Progress) Completed() int64 { return atomic.LoadInt64(&p.completed) }

// Run submits every job in jobs to the pool and blocks until all of
// them have completed or ctx is canceled. Results are returned in
// submission order, regardless of completion order, so callers can zip
// them back up against jobs.
func (p *Pool) Run(ctx context.Context, jobs []Job, fn Func) ([]Result, *Progress) {
	progress := &Progress{total: int64(len(jobs))}
	results := make([]Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	var mu sync.Mutex
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			var value any
			err := ctx.Err()
			if err == nil {
				value, err = fn(ctx, job)
			}
			mu.Lock()
			results[i] = Result{Job: job, Value: value, Err: err}
			mu.Unlock()
			atomic.AddInt64(&progress.completed, 1)
			return nil
		})
	}

	// errgroup.Go's error is deliberately swallowed here: a per-file
	// parse failure belongs in that file's Result, not as a reason to
	// abort every other file's indexing.
	_ = g.Wait()
	return results, progress
}
