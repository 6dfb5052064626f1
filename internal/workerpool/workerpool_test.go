package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	pool := NewWorkerPool(5)
	require.NotNil(t, pool)
	assert.Equal(t, 5, pool.workers)
	defer pool.Stop()
}

func TestNewWorkerPool_AtLeastOneWorker(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Stop()
	assert.Equal(t, 1, pool.workers)
}

func TestWorkerPool_WaitDrainsQueue(t *testing.T) {
	pool := NewWorkerPool(2)

	var executed int64
	for i := 0; i < 50; i++ {
		ok := pool.Submit(func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&executed, 1)
		})
		require.True(t, ok)
	}

	pool.Wait()
	assert.Equal(t, int64(50), atomic.LoadInt64(&executed))
}

func TestWorkerPool_ConcurrentExecution(t *testing.T) {
	pool := NewWorkerPool(3)

	var mu sync.Mutex
	activeJobs := 0
	maxActive := 0

	for i := 0; i < 10; i++ {
		pool.Submit(func() {
			mu.Lock()
			activeJobs++
			if activeJobs > maxActive {
				maxActive = activeJobs
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			activeJobs--
			mu.Unlock()
		})
	}

	pool.Wait()

	assert.LessOrEqual(t, maxActive, 3)
	assert.Equal(t, 0, activeJobs)
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Stop()

	ran := false
	assert.False(t, pool.Submit(func() { ran = true }))
	assert.False(t, ran)

	// Stop and Wait are safe to call again
	pool.Stop()
	pool.Wait()
}
