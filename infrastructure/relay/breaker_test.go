package relay

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func openBreaker(clock *fakeClock) *CircuitBreaker {
	b := NewCircuitBreaker(5, 5*time.Minute, clock.Now)
	for range 5 {
		b.Allow()
		b.RecordResult(false)
	}
	return b
}

func Test_Breaker_Opens_After_Threshold(t *testing.T) {
	req := require.New(t)
	clock := &fakeClock{now: time.Now()}
	b := NewCircuitBreaker(5, 5*time.Minute, clock.Now)

	// Given 4 failures the breaker is still closed
	for range 4 {
		req.True(b.Allow())
		b.RecordResult(false)
	}
	req.True(b.Allow())

	// When the fifth failure is recorded
	b.RecordResult(false)

	// Then calls are rejected
	req.False(b.Allow())
	req.True(b.IsOpen())
	stats := b.Stats()
	req.Equal(int64(5), stats.TotalRequests)
	req.Equal(int64(5), stats.TotalFailures)
}

func Test_Breaker_Lets_Single_Trial_Call_After_Cooldown(t *testing.T) {
	req := require.New(t)
	clock := &fakeClock{now: time.Now()}
	b := openBreaker(clock)

	clock.Advance(4 * time.Minute)
	req.False(b.Allow())

	// When the cooldown elapsed and many callers race
	clock.Advance(time.Minute)
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	// Then exactly one trial call went through
	req.Equal(int32(1), allowed.Load())
}

func Test_Breaker_Trial_Success_Closes(t *testing.T) {
	req := require.New(t)
	clock := &fakeClock{now: time.Now()}
	b := openBreaker(clock)
	clock.Advance(5 * time.Minute)

	req.True(b.Allow())
	b.RecordResult(true)

	req.False(b.IsOpen())
	req.Equal(0, b.Stats().ConsecutiveFailures)
	req.True(b.Allow())
	req.True(b.Allow())
}

func Test_Breaker_Trial_Failure_Rearms_Cooldown(t *testing.T) {
	req := require.New(t)
	clock := &fakeClock{now: time.Now()}
	b := openBreaker(clock)
	clock.Advance(5 * time.Minute)

	req.True(b.Allow())
	b.RecordResult(false)

	// The window restarts from the failed trial call
	clock.Advance(4 * time.Minute)
	req.False(b.Allow())
	clock.Advance(time.Minute)
	req.True(b.Allow())
}
