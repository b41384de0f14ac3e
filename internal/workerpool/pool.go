// Package workerpool bounds how many blocking disk operations run at once.
// Credential persistence and save-file writes go through a Pool so a slow
// disk queues work here instead of piling up goroutines everywhere else.
package workerpool

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Do and Go after Close.
var ErrClosed = errors.New("worker pool closed")

type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New returns a pool allowing size concurrent jobs. size < 1 is treated as 1.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Do waits for a free slot, runs fn on the calling goroutine and returns its
// error. If ctx ends while waiting, fn is not run.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if !p.enter() {
		return ErrClosed
	}
	defer p.wg.Done()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	return fn()
}

// Go runs fn in the background once a slot is free. Errors are reported to
// onErr when it is non-nil.
func (p *Pool) Go(ctx context.Context, fn func(context.Context) error, onErr func(error)) error {
	if !p.enter() {
		return ErrClosed
	}

	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		defer p.sem.Release(1)

		if err := fn(ctx); err != nil && onErr != nil {
			onErr(err)
		}
	}()

	return nil
}

// Close rejects new jobs and waits for running and queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) enter() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}
	p.wg.Add(1)
	return true
}
