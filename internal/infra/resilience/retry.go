package resilience

import (
	"context"
	"log/slog"
	"time"

	"agentic-rag/internal/domain"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy is a reusable wrapper for capability calls: bounded attempts
// with capped exponential backoff. Only transient errors (provider outages,
// rate limits) are retried; everything else surfaces immediately.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Execute runs fn under the policy. attempts, when non-nil, is incremented
// once per attempt so callers can record attempt counts.
func (p RetryPolicy) Execute(ctx context.Context, logger *slog.Logger, op string, attempts *int, fn func(context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	maxBackoff := p.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Second
	}

	backoff := retry.WithCappedDuration(maxBackoff, retry.NewExponential(initial))
	backoff = retry.WithMaxRetries(uint64(maxAttempts-1), backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempts != nil {
			*attempts++
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if domain.IsTransient(err) {
			logger.Warn("transient_failure_retrying",
				slog.String("op", op),
				slog.String("error", err.Error()))
			return retry.RetryableError(err)
		}
		return err
	})
}
