package embedding

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"knowledge-rag/internal/models"
)

// RetryPolicy is an explicit backoff policy for embedding backend calls:
// bounded attempts, exponential schedule, and a retryable-error predicate.
// Permanent failures are surfaced immediately and never retried.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Retryable       func(error) bool
}

// DefaultRetryPolicy retries transient failures up to maxAttempts times.
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	return RetryPolicy{
		MaxAttempts:     maxAttempts,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Retryable:       models.IsTransientEmbedding,
	}
}

// Do runs op under the policy. op errors must already be classified into the
// transient/permanent taxonomy.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = models.IsTransientEmbedding
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(wrapped,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx))
}

// classify maps raw backend errors onto the transient/permanent taxonomy.
// Network-level and rate-limit failures are transient; anything else about a
// specific input is permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if models.IsTransientEmbedding(err) || models.IsPermanentEmbedding(err) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return errors.Join(models.ErrEmbeddingTransient, err)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "timeout", "connection", "temporarily", "unavailable", "502", "503"} {
		if strings.Contains(msg, marker) {
			return errors.Join(models.ErrEmbeddingTransient, err)
		}
	}
	return errors.Join(models.ErrEmbeddingPermanent, err)
}
