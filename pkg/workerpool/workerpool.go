// Package workerpool provides a shared pool of workers with per-call
// "rooms". The upload pipeline fans chunk encryption out into a room
// and waits for the whole room to finish; results are written by the
// jobs themselves keyed by chunk index, so completion order never
// matters.
package workerpool

import (
	"runtime"
	"sync"
)

type task struct {
	run  func() error
	room *Room
}

// Pool is a fixed set of workers fed from a global queue.
type Pool struct {
	config    Config
	taskQueue chan task
	closeOnce sync.Once
}

// Config tunes the pool. Zero values pick defaults.
type Config struct {
	// WorkerCount is the number of workers. Defaults to 3x NumCPU.
	WorkerCount int
	// GlobalBuffer is the queue capacity. Defaults to 1000.
	GlobalBuffer int
}

// New starts a pool.
func New(config Config) *Pool {
	if config.WorkerCount < 1 {
		config.WorkerCount = runtime.NumCPU() * 3
	}
	if config.GlobalBuffer < 1 {
		config.GlobalBuffer = 1000
	}

	p := &Pool{
		config:    config,
		taskQueue: make(chan task, config.GlobalBuffer),
	}

	for i := 0; i < config.WorkerCount; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	for t := range p.taskQueue {
		err := t.run()
		if err != nil {
			t.room.recordErr(err)
		}
		t.room.wg.Done()
	}
}

// Close stops the workers once the queue drains. Submitting after Close
// panics, as on any closed channel.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.taskQueue)
	})
}

// Room groups the tasks of one logical operation.
type Room struct {
	pool *Pool
	wg   sync.WaitGroup

	mu      sync.Mutex
	firstEr error
}

// NewRoom creates a room on the pool.
func (p *Pool) NewRoom() *Room {
	return &Room{pool: p}
}

// Submit queues a job. Blocks while the global queue is full.
func (r *Room) Submit(job func() error) {
	r.wg.Add(1)
	r.pool.taskQueue <- task{run: job, room: r}
}

// Wait blocks until every submitted job has finished and returns the
// first error any of them reported.
func (r *Room) Wait() error {
	r.wg.Wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstEr
}

func (r *Room) recordErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.firstEr == nil {
		r.firstEr = err
	}
}
