// Package ratelimit paces outgoing requests by their exchange weight.
// It never retries; it only delays a request until the budget allows it.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter holds a weight budget shared by all requests plus optional named
// buckets, such as one for order placement.
type Limiter struct {
	weight  *rate.Limiter
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
	metrics metrics
}

type metrics struct {
	waits       atomic.Int64
	rejected    atomic.Int64
	weightSpent atomic.Int64
}

// New creates a Limiter allowing weight units per period. The full budget is
// available as a burst. A weight of 0 leaves the shared budget unlimited so
// that only named buckets pace requests.
func New(weight int, period time.Duration) *Limiter {
	return &Limiter{
		weight:  newLimiter(weight, period),
		buckets: make(map[string]*rate.Limiter),
	}
}

func newLimiter(n int, period time.Duration) *rate.Limiter {
	if n <= 0 || period <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(n)/period.Seconds()), n)
}

// Wait blocks until weight units are available or ctx is done.
// A weight below 1 counts as 1. A weight above the whole budget waits for a
// full budget instead of failing.
func (l *Limiter) Wait(ctx context.Context, weight int) error {
	return l.wait(ctx, l.weight, weight)
}

// AddBucket registers a named budget, replacing any previous one.
func (l *Limiter) AddBucket(name string, n int, period time.Duration) {
	l.mu.Lock()
	l.buckets[name] = newLimiter(n, period)
	l.mu.Unlock()
}

// WaitBucket blocks on the named budget. Unknown buckets do not block.
func (l *Limiter) WaitBucket(ctx context.Context, name string, n int) error {
	l.mu.RLock()
	b, ok := l.buckets[name]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	return l.wait(ctx, b, n)
}

func (l *Limiter) wait(ctx context.Context, lim *rate.Limiter, n int) error {
	if n < 1 {
		n = 1
	}
	spent := n
	if burst := lim.Burst(); burst > 0 && n > burst {
		n = burst
	}
	l.metrics.waits.Add(1)
	if err := lim.WaitN(ctx, n); err != nil {
		l.metrics.rejected.Add(1)
		return err
	}
	l.metrics.weightSpent.Add(int64(spent))
	return nil
}

// Metrics returns a snapshot of the limiter counters.
func (l *Limiter) Metrics() MetricsSnapshot {
	l.mu.RLock()
	buckets := len(l.buckets)
	l.mu.RUnlock()

	return MetricsSnapshot{
		Waits:       l.metrics.waits.Load(),
		Rejected:    l.metrics.rejected.Load(),
		WeightSpent: l.metrics.weightSpent.Load(),
		Buckets:     buckets,
	}
}

// MetricsSnapshot is a point-in-time capture of limiter counters.
type MetricsSnapshot struct {
	Waits       int64
	Rejected    int64
	WeightSpent int64
	Buckets     int
}
