package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

type Job func(ctx context.Context, id int64) error

// JobError ties a failure to the id that produced it.
type JobError struct {
	ID  int64
	Err error
}

func (e JobError) Error() string {
	return fmt.Sprintf("job %d: %v", e.ID, e.Err)
}

func (e JobError) Unwrap() error {
	return e.Err
}

// Run feeds ids to workers goroutines and collects every failure. Ids not yet
// dispatched when ctx is cancelled are skipped.
func Run(ctx context.Context, ids []int64, workers int, fn Job) []JobError {
	if len(ids) == 0 || fn == nil {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}

	jobs := make(chan int64)
	errs := make(chan JobError, len(ids))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if err := fn(ctx, id); err != nil {
					errs <- JobError{ID: id, Err: err}
				}
			}
		}()
	}

dispatch:
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	out := make([]JobError, 0, len(errs))
	for err := range errs {
		out = append(out, err)
	}
	return out
}
