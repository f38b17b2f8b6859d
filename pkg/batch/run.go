package batch

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of one job.
type Result struct {
	Job      Job
	Output   string
	Err      error
	Duration time.Duration
}

// Func captures one job and returns the path it wrote.
type Func func(ctx context.Context, job Job) (string, error)

// Run calls fn for every job with at most parallel calls in flight and
// returns the results in job order. Jobs not started before ctx is done
// fail with ctx's error.
func Run(ctx context.Context, jobs []Job, parallel int, fn Func) []Result {
	if parallel < 1 {
		parallel = 1
	}

	results := make([]Result, len(jobs))
	slots := make(chan struct{}, parallel)
	var wg sync.WaitGroup

	for i, job := range jobs {
		results[i].Job = job

		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		}

		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			defer func() { <-slots }()

			start := time.Now()
			out, err := fn(ctx, job)
			results[i].Output = out
			results[i].Err = err
			results[i].Duration = time.Since(start)
		}(i, job)
	}

	wg.Wait()
	return results
}

// Failed counts the results with an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
