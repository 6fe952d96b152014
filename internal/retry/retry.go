package retry

import (
	"context"
	"log"
	"time"

	"dealsync-backend/internal/mailerr"
)

// Policy controls how many times a rate-limited call is retried and how long
// the backoff between attempts grows.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// GmailPolicy is used for mail-provider calls. These run in an unattended
// background loop, so they tolerate long waits.
var GmailPolicy = Policy{MaxRetries: 5, BaseDelay: 1 * time.Second}

// InferencePolicy is used for the extraction call, which is latency-sensitive.
var InferencePolicy = Policy{MaxRetries: 2, BaseDelay: 500 * time.Millisecond}

// Do executes fn, retrying with exponential backoff while fn fails with a
// rate-limited error. The delay for attempt n is BaseDelay * 2^(n-1), unless
// the provider supplied an explicit retry hint, which takes precedence. Any
// error that is not rate-limited propagates immediately. The returned count
// is the number of retries performed; it is reported for observability and is
// meaningful on success as well as on failure.
func Do[T any](ctx context.Context, label string, policy Policy, fn func() (T, error)) (T, int, error) {
	var zero T
	attempt := 0
	for {
		result, err := fn()
		if err == nil {
			return result, attempt, nil
		}
		attempt++
		if !mailerr.IsRateLimited(err) || attempt > policy.MaxRetries {
			return zero, attempt - 1, err
		}

		delay := policy.BaseDelay << (attempt - 1)
		if hint := mailerr.RetryAfterOf(err); hint > 0 {
			delay = hint
		}
		log.Printf("[Retry] %s rate limited, retrying in %s (attempt %d/%d)", label, delay, attempt, policy.MaxRetries)

		select {
		case <-ctx.Done():
			return zero, attempt - 1, ctx.Err()
		case <-time.After(delay):
		}
	}
}
