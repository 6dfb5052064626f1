package workerpool

import (
	"sync"
)

// WorkerPool runs submitted jobs on a fixed number of goroutines.
type WorkerPool struct {
	workers    int
	jobs       chan func()
	wg         sync.WaitGroup
	closeOnce  sync.Once
	stopOnce   sync.Once
	stopSignal chan struct{}
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	wp := &WorkerPool{
		workers:    workers,
		jobs:       make(chan func(), workers*2),
		stopSignal: make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.stopSignal:
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			job()
		}
	}
}

// Submit submits a job to the worker pool. It blocks while the queue is full
// and reports false once the pool is stopped.
func (wp *WorkerPool) Submit(job func()) bool {
	select {
	case <-wp.stopSignal:
		return false
	default:
	}
	select {
	case <-wp.stopSignal:
		return false
	case wp.jobs <- job:
		return true
	}
}

// Wait stops accepting jobs and waits until all queued jobs have run.
// Submit must not be called concurrently with or after Wait.
func (wp *WorkerPool) Wait() {
	wp.closeOnce.Do(func() {
		close(wp.jobs)
	})
	wp.wg.Wait()
}

// Stop stops the workers without draining the queue and waits for running
// jobs to finish.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.stopSignal)
	})
	wp.wg.Wait()
}
