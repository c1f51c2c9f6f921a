package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_RunsAllJobsAndPreservesOrder(t *testing.T) {
	jobs := make([]Job, 20)
	for i := range jobs {
		jobs[i] = Job{Path: fmt.Sprintf("file%d.c", i)}
	}

	pool := New(4)
	results, progress := pool.Run(context.Background(), jobs, func(_ context.Context, job Job) (any, error) {
		return job.Path + ".parsed", nil
	})

	assert.Len(t, results, len(jobs))
	for i, r := range results {
		assert.Equal(t, jobs[i].Path, r.Job.Path)
		assert.Equal(t, jobs[i].Path+".parsed", r.Value)
		assert.NoError(t, r.Err)
	}
	assert.Equal(t, int64(len(jobs)), progress.Completed())
	assert.Equal(t, int64(len(jobs)), progress.Total())
}

func TestPool_CollectsPerJobErrorsWithoutAbortingOthers(t *testing.T) {
	jobs := []Job{{Path: "good.c"}, {Path: "bad.c"}, {Path: "also-good.c"}}

	pool := New(2)
	results, _ := pool.Run(context.Background(), jobs, func(_ context.Context, job Job) (any, error) {
		if job.Path == "bad.c" {
			return nil, fmt.Errorf("parse error in %s", job.Path)
		}
		return job.Path, nil
	})

	require := assert.New(t)
	require.NoError(results[0].Err)
	require.Error(results[1].Err)
	require.NoError(results[2].Err)
}

func TestPool_RespectsConcurrencyLimit(t *testing.T) {
	var inFlight, maxInFlight int64
	jobs := make([]Job, 10)

	pool := New(3)
	pool.Run(context.Background(), jobs, func(_ context.Context, _ Job) (any, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			max := atomic.LoadInt64(&maxInFlight)
			if cur <= max || atomic.CompareAndSwapInt64(&maxInFlight, max, cur) {
				break
			}
		}
		atomic.AddInt64(&inFlight, -1)
		return nil, nil
	})

	assert.LessOrEqual(t, maxInFlight, int64(3))
}
