package reader

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterEnforcesMinDelay(t *testing.T) {
	minDelay := 50 * time.Millisecond
	rl := newRateLimiter(minDelay, 0)
	ctx := context.Background()

	var admitted []time.Time
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Acquire(ctx))
		admitted = append(admitted, time.Now())
		rl.Release()
	}

	for i := 1; i < len(admitted); i++ {
		gap := admitted[i].Sub(admitted[i-1])
		assert.GreaterOrEqual(t, gap, minDelay-5*time.Millisecond,
			"admissions %d and %d were only %v apart", i-1, i, gap)
	}
}

func TestRateLimiterConcurrencyCap(t *testing.T) {
	rl := newRateLimiter(time.Millisecond, 2)
	ctx := context.Background()

	var mu sync.Mutex
	var maxInFlight int

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !assert.NoError(t, rl.Acquire(ctx)) {
				return
			}
			defer rl.Release()

			mu.Lock()
			if n := rl.InFlight(); n > maxInFlight {
				maxInFlight = n
			}
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxInFlight, 2)
	assert.Equal(t, 0, rl.InFlight())
}

func TestRateLimiterCancelledWaiterUnblocksSuccessors(t *testing.T) {
	rl := newRateLimiter(time.Millisecond, 1)

	require.NoError(t, rl.Acquire(context.Background()))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.Acquire(cancelled), context.Canceled)

	// The cancelled caller must not wedge the queue for the next one.
	rl.Release()
	ctx, timeout := context.WithTimeout(context.Background(), time.Second)
	defer timeout()
	assert.NoError(t, rl.Acquire(ctx))
	rl.Release()
}
