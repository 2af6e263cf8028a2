package pool

import (
	"sync"
	"time"
)

// breakerState is the circuit breaker's own state machine, distinct from
// a connection's State — it guards connection creation, not an individual
// connection's lifecycle.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// circuitBreaker wraps connection creation: it trips to Open after a run
// of consecutive failures, tries one trial connection (HalfOpen) after a
// backoff, and on failure there multiplies the backoff up to a ceiling.
type circuitBreaker struct {
	mu sync.Mutex

	state               breakerState
	consecutiveFailures int
	threshold           int

	resetTimeout     time.Duration
	baseResetTimeout time.Duration
	maxResetTimeout  time.Duration
	backoffFactor    float64

	openedAt time.Time
}

func newCircuitBreaker(threshold int, resetTimeout, maxResetTimeout time.Duration, backoffFactor float64) *circuitBreaker {
	if backoffFactor < 1 {
		backoffFactor = 2
	}
	return &circuitBreaker{
		threshold:        threshold,
		resetTimeout:     resetTimeout,
		baseResetTimeout: resetTimeout,
		maxResetTimeout:  maxResetTimeout,
		backoffFactor:    backoffFactor,
	}
}

// allow reports whether a creation attempt may proceed. Closed allows;
// HalfOpen rejects because its single trial is already in flight; Open
// rejects until resetTimeout has elapsed, at which point it transitions to
// HalfOpen and allows the caller that observed the transition to make the
// trial attempt.
func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerHalfOpen:
		return false // a trial is already in flight
	default: // breakerOpen
		if time.Since(b.openedAt) < b.resetTimeout {
			return false
		}
		b.state = breakerHalfOpen
		return true
	}
}

func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.resetTimeout = b.baseResetTimeout
	b.state = breakerClosed
}

func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen {
		b.resetTimeout = time.Duration(float64(b.resetTimeout) * b.backoffFactor)
		if b.maxResetTimeout > 0 && b.resetTimeout > b.maxResetTimeout {
			b.resetTimeout = b.maxResetTimeout
		}
		b.state = breakerOpen
		b.openedAt = time.Now()
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.threshold {
		b.state = breakerOpen
		b.openedAt = time.Now()
	}
}

func (b *circuitBreaker) currentState() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
