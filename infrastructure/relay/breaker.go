package relay

import (
	"sync"
	"time"
)

const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 5 * time.Minute
)

// CircuitBreaker stops relay traffic after repeated failures.
// Once open, a single trial call is let through after the cooldown; its outcome
// either closes the breaker or restarts the cooldown.
type CircuitBreaker struct {
	mu                  sync.Mutex
	threshold           int
	cooldown            time.Duration
	now                 func() time.Time
	consecutiveFailures int
	lastFailureTime     time.Time
	totalRequests       int64
	totalFailures       int64
	trialInFlight       bool
}

func NewCircuitBreaker(threshold int, cooldown time.Duration, now func() time.Time) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: now}
}

// Allow reports whether a call may reach the network.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consecutiveFailures < b.threshold {
		return true
	}
	if b.trialInFlight || b.now().Sub(b.lastFailureTime) < b.cooldown {
		return false
	}
	b.trialInFlight = true
	return true
}

// RecordResult must follow every call that Allow let through.
func (b *CircuitBreaker) RecordResult(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalRequests++
	b.trialInFlight = false
	if success {
		b.consecutiveFailures = 0
		return
	}
	b.totalFailures++
	b.consecutiveFailures++
	b.lastFailureTime = b.now()
}

func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures >= b.threshold
}

type BreakerStats struct {
	ConsecutiveFailures int
	TotalRequests       int64
	TotalFailures       int64
	Open                bool
}

func (b *CircuitBreaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		ConsecutiveFailures: b.consecutiveFailures,
		TotalRequests:       b.totalRequests,
		TotalFailures:       b.totalFailures,
		Open:                b.consecutiveFailures >= b.threshold,
	}
}
