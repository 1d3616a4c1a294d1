package sync

import (
	"math"
	"time"
)

// RetryPolicy bounds automatic retries of failed batch rounds
type RetryPolicy struct {
	MaxAttempts int           // retries after the first failure; 0 disables retry
	BaseDelay   time.Duration // delay before the first retry
	Multiplier  float64       // growth factor per attempt
	MaxDelay    time.Duration // cap; 0 means uncapped
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
		MaxDelay:    time.Minute,
	}
}

// Allows reports whether retry number attempt (1-based) may be scheduled
func (p RetryPolicy) Allows(attempt int) bool {
	return attempt >= 1 && attempt <= p.MaxAttempts
}

// Delay returns the wait before retry number attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
