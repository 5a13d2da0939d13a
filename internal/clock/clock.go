// Package clock provides the time_provider abstraction the spec requires
// (§4.12): every component that needs "now" takes a Provider, never calls
// time.Now() directly, so TEST_TIME can pin the clock for reproducible
// recurrence-expansion and voice-latency tests.
package clock

import "time"

// Provider returns the current instant.
type Provider interface {
	Now() time.Time
}

// Real is the production clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed always returns the same instant. Used when TEST_TIME is set.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At }

// FromEnv builds the configured provider: Real unless override is non-nil,
// in which case Fixed(override).
func FromEnv(override *time.Time) Provider {
	if override != nil {
		return Fixed{At: *override}
	}
	return Real{}
}
