package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"docintel/internal/models"
)

// classify separates transient backend failures, which callers may retry,
// from permanent ones. Dimension mismatches pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrDimensionMismatch) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporarily unavailable",
		"too many requests",
		"status code: 429",
		"status code: 500",
		"status code: 502",
		"status code: 503",
		"status code: 504",
	} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
		}
	}
	return err
}

// Retrying wraps an Embedder with bounded exponential backoff. Only
// transient failures are retried; everything else is surfaced on the
// first attempt.
type Retrying struct {
	inner       Embedder
	maxRetries  uint64
	initialWait time.Duration
}

func NewRetrying(inner Embedder, maxRetries int) *Retrying {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retrying{
		inner:       inner,
		maxRetries:  uint64(maxRetries),
		initialWait: 500 * time.Millisecond,
	}
}

func (r *Retrying) Dim() int { return r.inner.Dim() }

func (r *Retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.initialWait
	op := func() error {
		var err error
		vectors, err = r.inner.Embed(ctx, texts)
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrEmbeddingUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(policy, r.maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return vectors, nil
}
