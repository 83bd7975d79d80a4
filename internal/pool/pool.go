// Package pool runs jobs on a fixed number of goroutines fed from a
// bounded queue.
package pool

import (
	"context"
	"runtime"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrShutdown is returned by Submit once ShutdownAndWait has been called.
var ErrShutdown = errors.New("pool is shut down")

// ErrSkipped is passed to OnDone for jobs drained after a failure.
var ErrSkipped = errors.New("job skipped after an earlier failure")

// Handler processes one job.
type Handler[T any] func(ctx context.Context, job T) error

type item[T any] struct {
	ctx context.Context
	job T
}

// Pool is a bounded worker pool. After the first handler error the
// remaining queued jobs are drained without being run; jobs already
// running are left to finish.
type Pool[T any] struct {
	handler Handler[T]
	workers int
	jobs    chan item[T]
	stop    chan struct{}
	wg      sync.WaitGroup
	start   sync.Once

	// OnDone, when set before the first Submit, is called after every
	// job that reached a worker, whether it ran or was drained.
	OnDone func(job T, err error)

	// sendMu keeps the queue open while a Submit is sending.
	sendMu sync.RWMutex
	closed bool

	errMu    sync.Mutex
	firstErr error
}

// New creates a pool with the given number of workers. Values below one
// default to runtime.NumCPU().
func New[T any](workers int, handler Handler[T]) *Pool[T] {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}
	return &Pool[T]{
		handler: handler,
		workers: workers,
		jobs:    make(chan item[T], workers),
		stop:    make(chan struct{}),
	}
}

// Workers returns the number of worker goroutines.
func (p *Pool[T]) Workers() int {
	return p.workers
}

func (p *Pool[T]) run() {
	p.start.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.work()
		}
	})
}

func (p *Pool[T]) work() {
	defer p.wg.Done()
	for it := range p.jobs {
		var err error
		if p.Err() != nil {
			err = ErrSkipped
		} else if err = p.handler(it.ctx, it.job); err != nil {
			p.fail(err)
		}
		if p.OnDone != nil {
			p.OnDone(it.job, err)
		}
	}
}

func (p *Pool[T]) fail(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.firstErr == nil {
		p.firstErr = err
		close(p.stop)
	}
}

// Err returns the first job error, if any.
func (p *Pool[T]) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.firstErr
}

// Submit queues a job. It blocks while the queue is full and fails when
// ctx is done, when an earlier job failed, or after shutdown. The job's
// handler receives ctx.
func (p *Pool[T]) Submit(ctx context.Context, job T) error {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	if p.closed {
		return ErrShutdown
	}
	if err := p.Err(); err != nil {
		return errors.Wrap(err, "pool stopped after a failed job")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.run()

	select {
	case p.jobs <- item[T]{ctx: ctx, job: job}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stop:
		return errors.Wrap(p.Err(), "pool stopped after a failed job")
	}
}

// ShutdownAndWait stops accepting jobs, waits for the workers to finish
// and returns the first job error. Calling it more than once is safe.
func (p *Pool[T]) ShutdownAndWait() error {
	p.sendMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.sendMu.Unlock()

	p.run()
	p.wg.Wait()
	return p.Err()
}
