package genai

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryOptions configures the retry behavior for Gemini API calls.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions is used when no retry options are provided.
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:  4,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// isRetryable reports whether the error is a transient API failure worth
// retrying. Authentication and invalid-argument errors are permanent.
func isRetryable(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
		return true
	default:
		return false
	}
}

// withRetry invokes fn with exponential backoff and jitter until it succeeds,
// the error is permanent, or the attempt budget is exhausted.
func withRetry[T any](ctx context.Context, opts RetryOptions, logger *zap.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	delay := opts.InitialDelay
	if delay <= 0 {
		delay = DefaultRetryOptions.InitialDelay
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		attempts = attempt

		if !isRetryable(err) || attempt == opts.MaxAttempts {
			break
		}

		// Full jitter keeps concurrent callers from retrying in lockstep.
		sleep := time.Duration(rand.Int63n(int64(delay)))
		logger.Warn("Transient Gemini API error, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", sleep),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * opts.Multiplier)
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
	return zero, fmt.Errorf("after %d attempt(s): %w", attempts, lastErr)
}
