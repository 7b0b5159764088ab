// Package workers runs background tasks on a bounded pool and hands back
// futures for their results.
package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrPoolClosed = errors.New("worker pool closed")

// Pool is a fixed set of goroutines draining a bounded queue.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewPool(size, queue int) *Pool {
	if size <= 0 {
		size = 1
	}
	if queue < 0 {
		queue = 0
	}
	p := &Pool{tasks: make(chan func(), queue)}
	p.wg.Add(size)
	for range size {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Go enqueues task, blocking while the queue is full. It fails once the
// pool is closed or ctx is done.
func (p *Pool) Go(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit runs fn on the pool and returns its future. fn sees a context
// detached from ctx's cancellation so a caller that stops waiting does
// not abort work already accepted. A panic in fn fails the future.
func Submit[T any](ctx context.Context, pool *Pool, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	taskCtx := context.WithoutCancel(ctx)
	err := pool.Go(ctx, func() {
		var (
			value T
			err   error
		)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
			f.resolve(value, err)
		}()
		value, err = fn(taskCtx)
	})
	if err != nil {
		var zero T
		f.resolve(zero, err)
	}
	return f
}
