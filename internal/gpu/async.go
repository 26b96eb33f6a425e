package gpu

import (
	"context"
	"sync"
	"time"

	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
)

// Result carries the outcome of an asynchronous single-device query
type Result struct {
	Device *DeviceRecord
	Err    error
}

// CollectionResult carries the outcome of an asynchronous all-devices query
type CollectionResult struct {
	Devices []*DeviceRecord
	Err     error
}

// workerPool runs backend-touching calls off the caller's goroutine. The
// pool is fixed-size; a pending job waits for a free worker rather than
// spawning a new one, which bounds concurrent native queries.
type workerPool struct {
	jobs chan func()
	done chan struct{}
	wg   sync.WaitGroup
}

func newWorkerPool(n int) *workerPool {
	p := &workerPool{jobs: make(chan func()), done: make(chan struct{})}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			job()
		case <-p.done:
			return
		}
	}
}

func (p *workerPool) close() {
	close(p.done)
	p.wg.Wait()
}

// GetGPUCachedAsync is GetGPUCached offloaded to the worker pool. The
// returned channel delivers exactly one Result. Outcome semantics match
// the synchronous path; only where the call may block differs.
//
// Cancelling ctx abandons the wait, not the native query: a query already
// running completes on its worker. The same holds for the configured
// async timeout.
func (m *Manager) GetGPUCachedAsync(ctx context.Context, index int) <-chan Result {
	out := make(chan Result, 1)
	m.submit(ctx, out, func() Result {
		snap := m.GetGPUCached(index)
		if snap == nil {
			errFactory := errors.New()
			return Result{Err: errFactory.WithData(ErrDeviceNotFound, index)}
		}
		return Result{Device: snap}
	})
	return out
}

// GetAsync is the asynchronous variant of Get: the primary device's
// snapshot, resolved on the worker pool.
func (m *Manager) GetAsync(ctx context.Context) <-chan Result {
	return m.GetGPUCachedAsync(ctx, m.PrimaryIndex())
}

// GetAllAsync resolves a snapshot for every device in the collection on
// the worker pool. Devices whose refresh fails contribute their last
// known record, mirroring the synchronous path.
func (m *Manager) GetAllAsync(ctx context.Context) <-chan CollectionResult {
	out := make(chan CollectionResult, 1)

	job := func() {
		count := m.DeviceCount()
		devices := make([]*DeviceRecord, 0, count)
		for i := 0; i < count; i++ {
			if snap := m.GetGPUCached(i); snap != nil {
				devices = append(devices, snap)
			}
		}
		deliver(out, CollectionResult{Devices: devices})
	}

	go func() {
		select {
		case m.pool.jobs <- job:
		case <-m.pool.done:
			errFactory := errors.New()
			deliver(out, CollectionResult{Err: errFactory.New(ErrManagerClosed)})
		case <-ctx.Done():
			errFactory := errors.New()
			deliver(out, CollectionResult{Err: errFactory.Wrap(errors.ErrTimeout, ctx.Err())})
		}
	}()

	return out
}

// submit schedules fn on the pool and arranges for exactly one Result on
// out, honoring both ctx and the Manager's async wait bound.
func (m *Manager) submit(ctx context.Context, out chan Result, fn func() Result) {
	var timeout <-chan time.Time
	if m.asyncTimeout > 0 {
		timer := time.NewTimer(m.asyncTimeout)
		timeout = timer.C
		go func() {
			<-timeout
			errFactory := errors.New()
			deliver(out, Result{Err: errFactory.New(ErrAsyncTimeout)})
		}()
	}

	job := func() {
		deliver(out, fn())
	}

	go func() {
		select {
		case m.pool.jobs <- job:
		case <-m.pool.done:
			errFactory := errors.New()
			deliver(out, Result{Err: errFactory.New(ErrManagerClosed)})
		case <-ctx.Done():
			errFactory := errors.New()
			deliver(out, Result{Err: errFactory.Wrap(errors.ErrTimeout, ctx.Err())})
		}
	}()
}

// deliver performs a non-blocking send so that a late worker result after
// a timeout is dropped instead of leaking the worker.
func deliver[T any](out chan T, r T) {
	select {
	case out <- r:
	default:
	}
}
