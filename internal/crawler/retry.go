package crawler

import (
	"context"

	"sjsage522/blogworker/pkg/errors"
)

// staleRetryAttempts bounds local retries of a card interaction
const staleRetryAttempts = 3

// WithRetries runs op up to attempts times. Only retryable errors trigger another attempt.
func WithRetries[T any](ctx context.Context, attempts int, pause PauseFunc, op func(attempt int) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = op(attempt)
		if err == nil || !errors.IsRetryable(err) {
			return result, err
		}
		if attempt == attempts {
			break
		}
		if pause != nil {
			if perr := pause(ctx); perr != nil {
				return result, perr
			}
		}
	}
	return result, err
}
