package adapters

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// WithRetry wraps an external-call operation with a jittered exponential
// backoff, bounded to maxAttempts total tries and to ctx's lifetime.
// Stage agents use this around LLMClient/LinterClient calls, and the
// Validator around ArtifactStore and RunnerClient calls (§7 "External-call
// errors" policy). The runner's poll loop waits a fixed interval between
// polls; only each individual Status call goes through this helper.
func WithRetry(ctx context.Context, maxAttempts int, op func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxAttempts-1)), ctx)
	return backoff.Retry(op, policy)
}
