// Package queue provides bounded-concurrency worker pools with per-key
// serialization. The pipeline's correctness contract is that no two workers
// process the same sync event id concurrently; the pool guarantees it by
// holding at most one task in flight per key and parking later submissions
// until the current one terminates.
package queue

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task is one unit of background work. Tasks with the same non-empty Key are
// executed one at a time, in submission order.
type Task struct {
	Key string
	Run func(ctx context.Context)
}

// Pool runs tasks on a fixed number of workers.
type Pool struct {
	name    string
	workers int

	mu       sync.Mutex
	closed   bool
	inFlight map[string]bool
	waiting  map[string][]Task
	timers   map[*time.Timer]bool

	tasks   chan Task
	done    chan struct{}
	wg      sync.WaitGroup
	baseCtx context.Context
}

func New(name string, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		name:     name,
		workers:  workers,
		inFlight: make(map[string]bool),
		waiting:  make(map[string][]Task),
		timers:   make(map[*time.Timer]bool),
		tasks:    make(chan Task, 256),
		done:     make(chan struct{}),
		baseCtx:  context.Background(),
	}
}

// WithBaseContext sets the context handed to every task, typically carrying
// the process instrumenter. Call before Start.
func (p *Pool) WithBaseContext(ctx context.Context) *Pool {
	p.baseCtx = ctx
	return p
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	log.Printf("Worker pool %s started (%d workers)", p.name, p.workers)
}

// Stop prevents new submissions, cancels pending timers, and waits for the
// workers to drain. In-flight tasks run to completion.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for t := range p.timers {
		t.Stop()
	}
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()
}

// Submit enqueues a task. If another task with the same key is in flight the
// task is parked and dispatched when the current one terminates.
func (p *Pool) Submit(t Task) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if t.Key != "" {
		if p.inFlight[t.Key] {
			p.waiting[t.Key] = append(p.waiting[t.Key], t)
			p.mu.Unlock()
			return
		}
		p.inFlight[t.Key] = true
	}
	p.mu.Unlock()

	p.dispatch(t)
}

// SubmitAfter enqueues a task once the delay elapses. Used for retry
// scheduling: a timer plus re-enqueue, never a busy wait.
func (p *Pool) SubmitAfter(t Task, delay time.Duration) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		p.mu.Lock()
		delete(p.timers, timer)
		p.mu.Unlock()
		p.Submit(t)
	})
	p.timers[timer] = true
	p.mu.Unlock()
}

func (p *Pool) dispatch(t Task) {
	select {
	case p.tasks <- t:
	case <-p.done:
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case t := <-p.tasks:
			t.Run(p.baseCtx)
			p.finish(t.Key)
		}
	}
}

// finish releases the key and dispatches the next parked task, if any.
func (p *Pool) finish(key string) {
	if key == "" {
		return
	}
	p.mu.Lock()
	q := p.waiting[key]
	if len(q) == 0 {
		delete(p.inFlight, key)
		p.mu.Unlock()
		return
	}
	next := q[0]
	if len(q) == 1 {
		delete(p.waiting, key)
	} else {
		p.waiting[key] = q[1:]
	}
	p.mu.Unlock()

	// Dispatch off the worker goroutine so a full channel cannot deadlock.
	go p.dispatch(next)
}
