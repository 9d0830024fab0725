// Package gateway mediates every Gmail API call through token-bucket
// admission and bounded retry. All remote operations in the organize
// pipeline go through a single Gateway so that rate limiting, burst
// behavior, retry policy, and failure classification live in one place.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/mailfold/mailfold/internal/instrumentation"
	"github.com/mailfold/mailfold/internal/logging"
)

// Kind distinguishes read operations from write operations.
// Dry-run mode short-circuits writes but lets reads execute.
type Kind int

const (
	Read Kind = iota
	Write
)

// Operation describes one remote call to be executed under the gateway's
// admission and retry policy.
type Operation struct {
	// Name identifies the operation for logs, metrics, and spans
	// (e.g. "labels.create", "messages.batchModify").
	Name string

	// Kind marks the operation as a read or a write.
	Kind Kind

	// Cost is the number of quota tokens the operation consumes.
	// Zero means 1. Batch operations charge one token per covered item.
	Cost float64

	// Do performs the remote call. It may be invoked multiple times.
	Do func(ctx context.Context) error
}

// Config holds the gateway's rate limiting and retry policy.
type Config struct {
	// RatePerSecond is the sustained token refill rate.
	RatePerSecond float64

	// Burst is the bucket capacity.
	Burst float64

	// MaxAttempts bounds how often a transient failure is retried.
	MaxAttempts int

	// BaseDelay and MaxDelay bound the full-jitter exponential backoff
	// between retry attempts.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// DryRun makes write operations succeed without executing.
	DryRun bool
}

// DefaultConfig returns the gateway policy tuned for the Gmail API:
// 10 requests per second sustained with a small burst allowance.
func DefaultConfig() Config {
	return Config{
		RatePerSecond: 10,
		Burst:         12,
		MaxAttempts:   5,
		BaseDelay:     time.Second,
		MaxDelay:      32 * time.Second,
	}
}

// Gateway executes operations under a shared token budget with bounded
// retries for transient failures.
type Gateway struct {
	cfg     Config
	budget  *Budget
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	calls   atomic.Int64
	retries atomic.Int64

	// Injectable for deterministic tests.
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// Stats is a point-in-time view of the gateway's call accounting.
type Stats struct {
	Calls   int64 // remote invocations, retries included
	Retries int64
}

// New creates a Gateway with the given policy. The logger may be nil, in
// which case slog.Default() is used; metrics may be nil to disable recording.
func New(cfg Config, logger *slog.Logger, metrics *instrumentation.Metrics) *Gateway {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultConfig().RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		cfg:     cfg,
		budget:  NewBudget(cfg.RatePerSecond, cfg.Burst),
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		sleep:   sleepContext,
		jitter:  rand.Float64,
	}
}

// DryRun reports whether write operations are being skipped.
func (g *Gateway) DryRun() bool {
	return g.cfg.DryRun
}

// Tokens returns the number of quota tokens currently available.
func (g *Gateway) Tokens() float64 {
	return g.budget.Tokens()
}

// Stats returns the number of remote invocations and retries so far.
func (g *Gateway) Stats() Stats {
	return Stats{Calls: g.calls.Load(), Retries: g.retries.Load()}
}

// Execute runs op under admission control and the retry policy.
//
// Transient failures are retried with full-jitter exponential backoff;
// a Retry-After hint from the server takes precedence over the computed
// backoff for that attempt. Non-transient failures return immediately.
// When every attempt fails transiently the result is an APIError with
// class quota_exhausted carrying the last status and the attempt count.
func (g *Gateway) Execute(ctx context.Context, op Operation) error {
	if op.Do == nil {
		return fmt.Errorf("gateway: operation %q has no body", op.Name)
	}
	cost := op.Cost
	if cost <= 0 {
		cost = 1
	}

	logger := logging.WithOperation(g.logger, op.Name)

	if g.cfg.DryRun && op.Kind == Write {
		logger.Info("skipping write", logging.Status(logging.StatusDryRun))
		return nil
	}

	wait, err := g.budget.Acquire(ctx, cost)
	if err != nil {
		return g.contextError(op, err)
	}
	if g.metrics != nil {
		g.metrics.RecordRateLimitWait(ctx, op.Name, wait)
	}
	if wait > 0 {
		logger.Debug("rate limit wait", slog.Duration(logging.KeyDuration, wait))
	}

	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		g.calls.Add(1)
		start := g.now()
		err := op.Do(ctx)
		elapsed := g.now().Sub(start)

		if err == nil {
			if g.metrics != nil {
				g.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, op.Name,
					instrumentation.StatusSuccess, elapsed)
			}
			return nil
		}
		if g.metrics != nil {
			g.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, op.Name,
				instrumentation.StatusError, elapsed)
		}

		class := Classify(err)
		if class != ClassTransient {
			return &APIError{
				Class:    class,
				Status:   statusOf(err),
				Op:       op.Name,
				Attempts: attempt + 1,
				Err:      err,
			}
		}

		lastErr = err
		if attempt == g.cfg.MaxAttempts-1 {
			break
		}

		delay, hinted := RetryAfterHint(err)
		if !hinted {
			delay = g.backoff(attempt)
		}
		logger.Warn("transient failure, backing off",
			logging.Attempt(attempt+1),
			slog.Duration("backoff", delay),
			slog.Bool("server_hint", hinted),
			logging.Err(err),
		)
		g.retries.Add(1)
		if g.metrics != nil {
			g.metrics.RecordGoogleAPIRetry(ctx, instrumentation.ServiceGmail, op.Name)
		}
		if sleepErr := g.sleep(ctx, delay); sleepErr != nil {
			return g.contextError(op, sleepErr)
		}
	}

	return &APIError{
		Class:    ClassQuotaExhausted,
		Status:   statusOf(lastErr),
		Op:       op.Name,
		Attempts: g.cfg.MaxAttempts,
		Err:      lastErr,
	}
}

// backoff computes the full-jitter delay before retry number attempt+1:
// a uniformly random duration in [0, min(maxDelay, baseDelay*2^attempt)].
func (g *Gateway) backoff(attempt int) time.Duration {
	bound := float64(g.cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if ceil := float64(g.cfg.MaxDelay); bound > ceil {
		bound = ceil
	}
	return time.Duration(g.jitter() * bound)
}

// contextError wraps a context failure during admission or backoff.
// Deadline expiry becomes a timeout-classed APIError; cancellation is
// passed through so callers can distinguish a user stop from a failure.
func (g *Gateway) contextError(op Operation, err error) error {
	if Classify(err) == ClassTimeout {
		return &APIError{Class: ClassTimeout, Op: op.Name, Err: err}
	}
	return err
}
