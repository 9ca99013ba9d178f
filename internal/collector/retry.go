package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arthurcm/sitegen/internal/domain"
	apperrors "github.com/arthurcm/sitegen/internal/errors"
)

// RetryPolicy bounds repeated fetch attempts
type RetryPolicy struct {
	MaxAttempts int
	// Timeout applies to each attempt; zero means only the caller's deadline.
	Timeout time.Duration
	// Backoff is multiplied by the attempt number between attempts.
	Backoff time.Duration
}

type retryingCollector struct {
	next   Collector
	policy RetryPolicy
	logger *slog.Logger
}

// WithRetry wraps c so that transport failures, 5xx and 429 responses are
// retried up to policy.MaxAttempts times. Client errors and malformed
// responses are returned immediately.
func WithRetry(c Collector, policy RetryPolicy, logger *slog.Logger) Collector {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retryingCollector{next: c, policy: policy, logger: logger}
}

func (r *retryingCollector) FetchRepositories(ctx context.Context, username string, opts FetchOptions) ([]*domain.Repository, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		repos, err := r.attempt(ctx, username, opts)
		if err == nil {
			return repos, nil
		}
		lastErr = err

		if !retryable(ctx, err) || attempt == r.policy.MaxAttempts {
			break
		}

		wait := r.policy.Backoff * time.Duration(attempt)
		r.logger.Warn("fetch failed, retrying", "username", username, "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

func (r *retryingCollector) attempt(ctx context.Context, username string, opts FetchOptions) ([]*domain.Repository, error) {
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}
	return r.next.FetchRepositories(ctx, username, opts)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var fetchErr *apperrors.FetchError
	if !errors.As(err, &fetchErr) {
		return false
	}
	return fetchErr.Temporary()
}
