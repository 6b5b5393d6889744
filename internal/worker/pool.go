package worker

import (
	"context"
	"sync"
)

// Job is a unit of work producing an R
type Job[R any] interface {
	Execute(ctx context.Context) R
}

// Pool runs jobs on a fixed number of goroutines. Results are drained as
// they arrive, so Submit never waits on an unread result.
type Pool[R any] struct {
	workers    int
	jobQueue   chan Job[R]
	results    chan R
	collected  chan []R
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	startOnce  sync.Once
	closeJobs  sync.Once
	closeOnce  sync.Once
}

// NewPool creates a pool of workers bound to ctx
func NewPool[R any](ctx context.Context, workers int) *Pool[R] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool[R]{
		workers:    workers,
		jobQueue:   make(chan Job[R], workers*2),
		results:    make(chan R, workers*2),
		collected:  make(chan []R, 1),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers and the result collector
func (p *Pool[R]) Start() {
	p.startOnce.Do(func() {
		go p.collect()
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

func (p *Pool[R]) collect() {
	var out []R
	for r := range p.results {
		out = append(out, r)
	}
	p.collected <- out
}

func (p *Pool[R]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.results <- job.Execute(p.ctx)
		}
	}
}

// Submit queues a job. It returns false if the pool was canceled first.
// Submit must not be called after Wait.
func (p *Pool[R]) Submit(job Job[R]) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Wait closes the queue, waits for queued jobs to finish and returns their
// results in completion order. Jobs still queued when the context ends are
// dropped.
func (p *Pool[R]) Wait() []R {
	p.Start()
	p.closeJobs.Do(func() { close(p.jobQueue) })
	p.wg.Wait()
	p.closeResults()
	out := <-p.collected
	p.cancelFunc()
	return out
}

// Shutdown cancels outstanding work and stops the workers
func (p *Pool[R]) Shutdown() {
	p.cancelFunc()
	p.Start()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[R]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
