package backend

import (
	"context"
	"sync"
)

// poolWorkerCap bounds the worker count regardless of the admission
// ceiling: downstream calls are I/O bound, so a small pool is enough.
const poolWorkerCap = 32

// Pool executes downstream calls on a fixed set of workers. Admission
// control happens upstream; the pool exists so a burst of admitted
// requests cannot spawn an unbounded number of in-flight downstream calls.
type Pool struct {
	tasks     chan func()
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	workers   int
}

// PoolSize returns the worker count for a given admission ceiling.
func PoolSize(maxConcurrency int) int {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if maxConcurrency > poolWorkerCap {
		return poolWorkerCap
	}
	return maxConcurrency
}

// NewPool starts workers sized by PoolSize(maxConcurrency).
func NewPool(maxConcurrency int) *Pool {
	p := &Pool{
		tasks:   make(chan func()),
		done:    make(chan struct{}),
		workers: PoolSize(maxConcurrency),
	}
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.worker()
	}
	return p
}

// Workers returns the pool's worker count.
func (p *Pool) Workers() int { return p.workers }

// Generate runs one call on a pool worker, waiting for a free worker and
// then for the result, both bounded by ctx. If ctx expires while the call
// is in flight the call is abandoned: the worker finishes it (the
// generator's own context handling keeps that short) and the caller gets
// ctx.Err().
func (p *Pool) Generate(ctx context.Context, g Generator, req *Request) (*Result, error) {
	type outcome struct {
		res *Result
		err error
	}
	resCh := make(chan outcome, 1)

	task := func() {
		res, err := g.Generate(ctx, req)
		resCh <- outcome{res: res, err: err}
	}

	select {
	case p.tasks <- task:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, context.Canceled
	}

	select {
	case o := <-resCh:
		return o.res, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the workers after in-flight tasks complete.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.done:
			return
		}
	}
}
