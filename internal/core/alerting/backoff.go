package alerting

import (
	"fmt"
	"strings"
	"time"
)

const DefaultMaxAttempts = 3

func DefaultDelays() []time.Duration {
	return []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second}
}

// RetryPolicy bounds delivery attempts and spaces retries out.
type RetryPolicy struct {
	MaxAttempts int
	Delays      []time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Delays:      DefaultDelays(),
	}
}

// Normalize fills defaults and raises any delay that is shorter than the one
// before it, so the schedule never decreases.
func (p RetryPolicy) Normalize() RetryPolicy {
	out := RetryPolicy{MaxAttempts: p.MaxAttempts}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = DefaultMaxAttempts
	}
	delays := p.Delays
	if len(delays) == 0 {
		delays = DefaultDelays()
	}
	out.Delays = make([]time.Duration, len(delays))
	var floor time.Duration
	for i, d := range delays {
		if d < floor {
			d = floor
		}
		out.Delays[i] = d
		floor = d
	}
	return out
}

// Backoff returns the wait before the next attempt after attemptCount failures.
// Counts past the configured list reuse the last delay.
func (p RetryPolicy) Backoff(attemptCount int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	idx := attemptCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Delays) {
		idx = len(p.Delays) - 1
	}
	return p.Delays[idx]
}

func (p RetryPolicy) Exhausted(attemptCount int) bool {
	return attemptCount >= p.MaxAttempts
}

// ParseDelays reads a comma separated list of Go durations, e.g. "5s,15s,45s".
func ParseDelays(raw string) ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("parse backoff delay %q: %w", part, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("backoff delay %q is negative", part)
		}
		out = append(out, d)
	}
	return out, nil
}
