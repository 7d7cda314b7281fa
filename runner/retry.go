package runner

import (
	"math"
	"time"
)

// RetryStrategy encapsulates the decision and delay between retries.
type RetryStrategy interface {
	// SleepDuration returns how long to wait before the next retry attempt.
	// The attempt index starts at 0, incrementing after each failure.
	SleepDuration(attempt int, err error) time.Duration
}

// NoDelayStrategy retries immediately without waiting.
type NoDelayStrategy struct{}

func (NoDelayStrategy) SleepDuration(_ int, _ error) time.Duration {
	return 0
}

// ExponentialBackoffStrategy grows the delay geometrically and caps it:
//
//	WithRetryStrategy(ExponentialBackoffStrategy{
//	    Base:   2 * time.Second,
//	    Factor: 2,
//	    Max:    8 * time.Second,
//	})
type ExponentialBackoffStrategy struct {
	// Base is the delay before the first retry.
	Base time.Duration
	// Factor multiplies the delay each iteration (2 => base, 2x, 4x, ...).
	Factor float64
	// Max caps the exponential growth; zero means uncapped.
	Max time.Duration
}

func (e ExponentialBackoffStrategy) SleepDuration(attempt int, _ error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	factor := e.Factor
	if factor <= 0 {
		factor = 2
	}
	delay := time.Duration(float64(e.Base) * math.Pow(factor, float64(attempt)))
	if e.Max > 0 && delay > e.Max {
		return e.Max
	}
	return delay
}

// DelayForAttempt is the engine-facing helper for launch backoff: after the
// Nth failed attempt (1-based) the next try waits min(base * 2^(N-1), max).
func DelayForAttempt(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return ExponentialBackoffStrategy{Base: base, Factor: 2, Max: max}.SleepDuration(attempt-1, nil)
}
