// Package resilience provides reliability patterns for storage and other
// external calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// Breaker opens after a run of consecutive failures and rejects calls until
// a timeout elapses. It then lets exactly one probe through: success closes
// the circuit, failure reopens it.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	probing     bool
	isFailure   func(error) bool
	isIgnored   func(error) bool
	onChange    func(from, to State)
	now         func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailurePredicate makes the breaker count only errors for which fn
// returns true. Other errors are passed through and count as successes,
// e.g. a "not found" answer proves the backend is healthy.
func WithFailurePredicate(fn func(error) bool) Option {
	return func(b *Breaker) { b.isFailure = fn }
}

// WithIgnore makes errors for which fn returns true leave the breaker
// untouched: they count neither as failures nor as successes. Use it for
// outcomes that say nothing about the backend, such as a caller giving up.
func WithIgnore(fn func(error) bool) Option {
	return func(b *Breaker) { b.isIgnored = fn }
}

// WithStateChange registers fn to run on every transition. fn is called
// after the breaker lock is released and must not block.
func WithStateChange(fn func(from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// NewBreaker creates a breaker that opens after maxFailures consecutive
// failures and probes again after timeout.
func NewBreaker(maxFailures int, timeout time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		isFailure:   func(err error) bool { return err != nil },
		now:         time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Execute runs fn unless the circuit is open or a half-open probe is
// already in flight, in which case it returns ErrCircuitOpen.
func (b *Breaker) Execute(fn func() error) error {
	probe, from, to, ok := b.admit()
	b.notify(from, to)
	if !ok {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	from = b.state
	if probe {
		b.probing = false
	}
	switch {
	case err != nil && b.isIgnored != nil && b.isIgnored(err):
		// A half-open circuit stays half-open; the next call probes again.
	case err != nil && b.isFailure(err):
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	default:
		b.failures = 0
		b.state = StateClosed
	}
	to = b.state
	b.mu.Unlock()

	b.notify(from, to)
	return err
}

// admit decides whether a call may run and moves an expired open circuit
// to half-open.
func (b *Breaker) admit() (probe bool, from, to State, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from = b.state
	switch b.state {
	case StateClosed:
		return false, from, from, true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return false, from, from, false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true, from, b.state, true
	default:
		if b.probing {
			return false, from, from, false
		}
		b.probing = true
		return true, from, from, true
	}
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onChange != nil {
		b.onChange(from, to)
	}
}

// State returns the current position. An open circuit whose timeout has
// passed still reports StateOpen until the next call probes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateOpen && b.now().Sub(b.openedAt) < b.timeout
}
