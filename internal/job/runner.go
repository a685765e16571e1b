package job

import (
	"context"
	"sync"
)

// Runner owns the background jobs of the process. Shutdown cancels them and
// returns once every job has returned, so their dependencies can be closed after it.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(parent context.Context) *Runner {
	ctx, cancel := context.WithCancel(parent)
	return &Runner{ctx: ctx, cancel: cancel}
}

// Go starts job in its own goroutine. job must return when its context is done.
func (r *Runner) Go(job func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		job(r.ctx)
	}()
}

func (r *Runner) Shutdown() {
	r.cancel()
	r.wg.Wait()
}
