package scraper

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retrier re-runs failed operations up to limit attempts with a constant delay
// between them. Every error kind is retried the same way.
type retrier struct {
	limit   int
	delay   time.Duration
	metrics *Metrics
	logger  *slog.Logger

	totalRetries atomic.Int64
}

func newRetrier(limit int, delay time.Duration, metrics *Metrics, logger *slog.Logger) *retrier {
	if limit < 1 {
		limit = 1
	}
	if delay < 0 {
		delay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retrier{
		limit:   limit,
		delay:   delay,
		metrics: metrics,
		logger:  logger,
	}
}

func (r *retrier) policy() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(r.delay), uint64(r.limit-1))
}

// TotalRetries reports how many retries have been scheduled so far.
func (r *retrier) TotalRetries() int {
	return int(r.totalRetries.Load())
}

// retryDo runs op until it succeeds or r.limit attempts have failed, in which
// case the error of the last attempt is returned as is.
func retryDo[T any](r *retrier, kind string, op func() (T, error)) (T, error) {
	attempt := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		return op()
	}, r.policy(), func(err error, wait time.Duration) {
		r.totalRetries.Add(1)
		r.metrics.IncRetries(kind)
		r.logger.Debug("retrying fetch",
			slog.String("kind", kind),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	})
}
