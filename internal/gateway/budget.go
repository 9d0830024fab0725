package gateway

import (
	"context"
	"math"
	"sync"
	"time"
)

// Budget is a token bucket that paces Gmail API usage. Tokens refill
// continuously at a fixed rate up to a burst capacity; every operation
// consumes tokens equal to its cost before it may proceed.
//
// Admission never busy-waits: when the bucket cannot cover a cost, the
// caller sleeps exactly long enough for the deficit to refill and then
// retries. Costs larger than the capacity are drawn down in bucket-sized
// slices, so a batch pays exactly what its operations would pay if issued
// one at a time.
type Budget struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	last       time.Time

	// Injectable for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBudget creates a full bucket that refills ratePerSecond tokens up to capacity.
func NewBudget(ratePerSecond, capacity float64) *Budget {
	b := &Budget{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: ratePerSecond,
		now:        time.Now,
		sleep:      sleepContext,
	}
	b.last = b.now()
	return b
}

// Acquire blocks until cost tokens have been consumed, or the context ends.
// It returns the total time spent waiting for refills.
func (b *Budget) Acquire(ctx context.Context, cost float64) (time.Duration, error) {
	if cost <= 0 {
		return 0, nil
	}

	var waited time.Duration
	remaining := cost
	for {
		b.mu.Lock()
		b.refillLocked()
		if b.tokens >= remaining {
			b.tokens -= remaining
			b.mu.Unlock()
			return waited, nil
		}

		// Draw down what is available now and sleep for the deficit,
		// capped at one bucketful per round for oversized costs.
		remaining -= b.tokens
		b.tokens = 0
		deficit := math.Min(remaining, b.capacity)
		wait := time.Duration(deficit / b.refillRate * float64(time.Second))
		b.mu.Unlock()

		if err := b.sleep(ctx, wait); err != nil {
			return waited, err
		}
		waited += wait
	}
}

// Tokens returns the number of tokens currently available.
func (b *Budget) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.tokens
}

// refillLocked credits tokens for the time elapsed since the last refill.
// The caller must hold b.mu.
func (b *Budget) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.last = now
}

// sleepContext sleeps for d or until the context ends, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
