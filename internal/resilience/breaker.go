// Package resilience holds the circuit breaker guarding outbound task API
// calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without dispatching when the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	closed breakerState = iota
	open
	halfOpen
)

// Breaker trips after a run of consecutive failures and rejects calls for
// a cool-down period, after which a single probe call decides whether it
// closes again.
type Breaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	now         func() time.Time // for testing
}

// NewBreaker builds a breaker that opens after maxFailures consecutive
// failures and cools down for timeout before probing.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         time.Now,
	}
}

// Execute runs fn unless the circuit is open. fn's error counts toward the
// failure run; success resets it.
func (b *Breaker) Execute(fn func() error) error {
	if !b.ready() {
		return ErrCircuitOpen
	}
	err := fn()
	b.record(err)
	return err
}

// ready reports whether a call may proceed, moving open to half-open once
// the cool-down has elapsed.
func (b *Breaker) ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == open {
		if b.now().Sub(b.openedAt) < b.timeout {
			return false
		}
		b.state = halfOpen
	}
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.state = closed
		return
	}
	b.failures++
	if b.state == halfOpen || b.failures >= b.maxFailures {
		b.state = open
		b.openedAt = b.now()
	}
}
