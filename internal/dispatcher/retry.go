package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	// MaxDelay caps both computed backoff and server hints. Zero means no cap.
	MaxDelay time.Duration
	// Jitter adds up to Jitter*delay of random extra wait.
	Jitter float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   90 * time.Second,
		Jitter:     0.25,
	}
}

// Backoff returns the wait before retry number attempt (1 based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	delay = p.clamp(delay)
	if p.Jitter > 0 {
		delay += delay * p.Jitter * rand.Float64()
	}
	return time.Duration(p.clamp(delay))
}

func (p RetryPolicy) clamp(d float64) float64 {
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return float64(p.MaxDelay)
	}
	return d
}

// delay prefers the server's retry hint over the computed backoff.
func (p RetryPolicy) delay(attempt int, lastErr error) time.Duration {
	var se *StatusError
	if errors.As(lastErr, &se) && se.RetryAfter > 0 {
		return time.Duration(p.clamp(float64(se.RetryAfter)))
	}
	return p.Backoff(attempt)
}

// Retry submits task to d and resubmits it after a delay while it fails with
// a retryable error, for at most 1+MaxRetries attempts.
func Retry(ctx context.Context, d *Dispatcher, model string, policy RetryPolicy, task Task) error {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := policy.delay(attempt, lastErr)
			dispatchRetries.WithLabelValues(model).Inc()
			d.log.Warn("retrying upstream call",
				zap.String("model", model),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", policy.MaxRetries),
				zap.Duration("delay", wait),
				zap.Error(lastErr),
			)

			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("context done during retry: %w", ctx.Err())
			}
		}

		err := d.Do(ctx, model, task)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
	}

	return &RetriesExhaustedError{
		Model:    model,
		Attempts: policy.MaxRetries + 1,
		Err:      lastErr,
	}
}
