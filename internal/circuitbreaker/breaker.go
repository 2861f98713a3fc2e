// Package circuitbreaker stops sending to an endpoint that keeps failing at the
// transport or server level, so callers fail fast instead of piling up timeouts.
package circuitbreaker

import (
	"sync"
	"sync/atomic"
	"time"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	FailThreshold    int           `json:"fail_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Timeout          time.Duration `json:"timeout"`
	// OnStateChange, if set, is called after every transition while the breaker lock is held.
	OnStateChange func(from, to State) `json:"-"`
}

type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time

	failThreshold    int
	successThreshold int
	timeout          time.Duration
	onStateChange    func(from, to State)
	now              func() time.Time

	metrics metrics
}

type metrics struct {
	allowed      atomic.Int64
	rejected     atomic.Int64
	successes    atomic.Int64
	failures     atomic.Int64
	stateChanges atomic.Int32
}

func New(config Config) *Breaker {
	return &Breaker{
		failThreshold:    config.FailThreshold,
		successThreshold: config.SuccessThreshold,
		timeout:          config.Timeout,
		onStateChange:    config.OnStateChange,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. An open breaker lets a trial call
// through once Timeout has passed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.timeout {
			b.metrics.rejected.Add(1)
			return false
		}
		b.transitionTo(StateHalfOpen)
	}
	b.metrics.allowed.Add(1)
	return true
}

// Record feeds the outcome of an allowed call back into the breaker.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.metrics.successes.Add(1)
	} else {
		b.metrics.failures.Add(1)
	}

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.failThreshold {
			b.open()
		}
	case StateHalfOpen:
		if !success {
			b.open()
			return
		}
		b.successes++
		if b.successes >= b.successThreshold {
			b.transitionTo(StateClosed)
		}
	case StateOpen:
		// late result of a call allowed before the breaker opened
	}
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.transitionTo(StateOpen)
}

func (b *Breaker) transitionTo(to State) {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	b.metrics.stateChanges.Add(1)
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the breaker. A transition is reported only if it was not closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateClosed {
		b.transitionTo(StateClosed)
		return
	}
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) Metrics() MetricsSnapshot {
	b.mu.Lock()
	state, consecutive := b.state, b.failures
	b.mu.Unlock()

	return MetricsSnapshot{
		Allowed:             b.metrics.allowed.Load(),
		Rejected:            b.metrics.rejected.Load(),
		Successes:           b.metrics.successes.Load(),
		Failures:            b.metrics.failures.Load(),
		ConsecutiveFailures: consecutive,
		StateChanges:        b.metrics.stateChanges.Load(),
		CurrentState:        state.String(),
	}
}

type MetricsSnapshot struct {
	Allowed             int64
	Rejected            int64
	Successes           int64
	Failures            int64
	ConsecutiveFailures int
	StateChanges        int32
	CurrentState        string
}
