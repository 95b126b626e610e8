package dbserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrReadinessTimeout is returned when the engine never answers a probe
// within the retry budget. It is fatal: the driver stops the engine and
// exits non-zero.
var ErrReadinessTimeout = errors.New("database engine did not become ready")

// ProbeFunc is a zero-argument liveness probe. The returned string is the
// probe's captured diagnostic output, surfaced once on the first failure.
type ProbeFunc func(ctx context.Context) (diagnostics string, err error)

// Waiter polls a probe until it succeeds or a bounded attempt budget is
// exhausted. Bounded polling tolerates the engine's startup jitter without
// hanging forever against an instance that will never come up.
type Waiter struct {
	MaxAttempts int
	Interval    time.Duration
	Logger      *slog.Logger
}

// NewWaiter returns a Waiter with the stock 60x2s budget.
func NewWaiter(logger *slog.Logger) *Waiter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Waiter{MaxAttempts: 60, Interval: 2 * time.Second, Logger: logger}
}

// Wait calls probe up to MaxAttempts times, sleeping Interval between
// attempts. The first failed attempt logs the probe's diagnostics once;
// subsequent failures are silent until the budget runs out.
func (w *Waiter) Wait(ctx context.Context, probe ProbeFunc) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// Make a zero-value Waiter safe: one attempt, and an interval
	// NewConstant accepts.
	maxAttempts := w.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}

	attempts := 0
	firstFailureLogged := false

	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewConstant(interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		diagnostics, probeErr := probe(ctx)
		if probeErr != nil {
			if !firstFailureLogged {
				firstFailureLogged = true
				logger.Warn("engine not ready yet",
					"attempt", attempts,
					"error", probeErr,
					"diagnostics", diagnostics)
			}
			return retry.RetryableError(probeErr)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w after %d attempts: %v", ErrReadinessTimeout, attempts, err)
	}

	logger.Info("engine ready", "attempts", attempts)
	return nil
}
