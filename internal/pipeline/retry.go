package pipeline

import (
	"time"
)

// RetryPolicy bounds automatic re-extraction of failed submissions.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 30 * time.Second, MaxDelay: 15 * time.Minute}
}

// Backoff returns the delay before the attempt following attempt n (1 based): base * 2^(n-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// NextAttempt returns when the next automatic attempt is due, or nil once the budget is spent.
func (p RetryPolicy) NextAttempt(attempts int, now time.Time) *time.Time {
	if p.Exhausted(attempts) {
		return nil
	}
	next := now.Add(p.Backoff(attempts))
	return &next
}
