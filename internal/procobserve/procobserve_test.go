package procobserve

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitStart_ObservesImmediately(t *testing.T) {
	resolve := func() (int, bool) { return 42, true }
	remaining := time.Second
	assert.Equal(t, Started, WaitStart(context.Background(), resolve, &remaining))
}

func TestWaitStart_BackoffSequence(t *testing.T) {
	var mu sync.Mutex
	var gaps []time.Duration
	last := time.Now()
	calls := 0

	resolve := func() (int, bool) {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if calls > 0 {
			gaps = append(gaps, now.Sub(last))
		}
		last = now
		calls++
		// Converges on the seventh call, once the back-off has reached its
		// 1s cap; only the polling cadence matters here.
		return 0, calls > 6
	}

	remaining := 3 * time.Second
	WaitStart(context.Background(), resolve, &remaining)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, len(gaps), 4)
	// Back-off should roughly double each step, bounded by scheduler jitter.
	for i := 1; i < len(gaps) && i < 4; i++ {
		assert.Greater(t, gaps[i], gaps[i-1]/2)
	}
}

func TestWaitStart_TimeoutReturnsStopped(t *testing.T) {
	resolve := func() (int, bool) { return 0, false }
	remaining := 120 * time.Millisecond
	assert.Equal(t, Stopped, WaitStart(context.Background(), resolve, &remaining))
}

func TestWaitStart_ShutdownStopsPromptly(t *testing.T) {
	resolve := func() (int, bool) { return 0, false }
	remaining := 10 * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	status := WaitStart(ctx, resolve, &remaining)
	assert.Equal(t, Stopped, status)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWaitStop_ObservesDisappearance(t *testing.T) {
	calls := 0
	resolve := func() (int, bool) {
		calls++
		return 0, calls < 3
	}
	remaining := time.Second
	assert.Equal(t, Stopped, WaitStop(context.Background(), resolve, &remaining))
}

func TestWaitStop_TimeoutReturnsStarted(t *testing.T) {
	resolve := func() (int, bool) { return 99, true }
	remaining := 150 * time.Millisecond
	assert.Equal(t, Started, WaitStop(context.Background(), resolve, &remaining))
}
