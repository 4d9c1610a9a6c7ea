// Package workerpool runs bounded background work, keeping heavy
// per-frame analysis off the capture and processing loops.
package workerpool

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/framecast/engine/internal/logging"
)

var log = logging.L("workerpool")

// Task is a unit of work submitted to the pool.
type Task func()

// Pool is a fixed set of worker goroutines behind a bounded queue.
// Submission never blocks: when the queue is full the task is rejected
// and counted, which is the right behavior for per-frame work where a
// stale frame is worthless anyway.
type Pool struct {
	workers   int
	tasks     chan Task
	wg        sync.WaitGroup
	accepting atomic.Bool
	rejected  atomic.Uint64
	stopOnce  sync.Once
	closeOnce sync.Once
	stopped   chan struct{}
}

// New starts a pool of workers goroutines with a queue of queueSize.
func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{
		workers: workers,
		tasks:   make(chan Task, queueSize),
		stopped: make(chan struct{}),
	}
	p.accepting.Store(true)

	for i := 0; i < workers; i++ {
		go p.run()
	}

	log.Debug("worker pool started", "workers", workers, "queueSize", queueSize)
	return p
}

// Submit enqueues a task. Returns false when the pool is stopped or
// the queue is full. The wg.Add happens before the enqueue attempt so
// Drain cannot miss an in-flight submission.
func (p *Pool) Submit(task Task) bool {
	if !p.accepting.Load() {
		return false
	}

	p.wg.Add(1)
	select {
	case p.tasks <- task:
		return true
	default:
		p.wg.Done()
		p.rejected.Add(1)
		return false
	}
}

// Rejected returns how many submissions were turned away.
func (p *Pool) Rejected() uint64 {
	return p.rejected.Load()
}

// StopAccepting rejects all further submissions.
func (p *Pool) StopAccepting() {
	p.accepting.Store(false)
}

// Drain waits for queued and in-flight tasks to finish, bounded by the
// context. Call StopAccepting first. Workers exit after Drain returns.
func (p *Pool) Drain(ctx context.Context) {
	p.stopOnce.Do(func() {
		close(p.stopped)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("worker pool drain timed out")
	}

	p.closeOnce.Do(func() {
		close(p.tasks)
	})
}

func (p *Pool) run() {
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.exec(task)
		case <-p.stopped:
			// finish what is already queued, then exit
			for {
				select {
				case task, ok := <-p.tasks:
					if !ok {
						return
					}
					p.exec(task)
				default:
					return
				}
			}
		}
	}
}

// exec runs one task with panic recovery; a panicking analysis task
// must not take the capture pipeline down with it.
func (p *Pool) exec(task Task) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}
