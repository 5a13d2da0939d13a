package icsparse

import "time"

// Limits are the hard resource budgets from spec §4.2, all configurable so
// an operator on a more capable host can raise them.
type Limits struct {
	ChunkSize               int
	MaxInputBytes           int64
	WarnInputBytes          int64
	MaxIterations           int
	WallClockBudget         time.Duration
	MaxEventsPerStream      int
	DuplicateTupleThreshold int
}

// DefaultLimits matches the numbers named in spec §4.2.
func DefaultLimits() Limits {
	return Limits{
		ChunkSize:               8 * 1024,
		MaxInputBytes:           50 * 1024 * 1024,
		WarnInputBytes:          10 * 1024 * 1024,
		MaxIterations:           10_000,
		WallClockBudget:         30 * time.Second,
		MaxEventsPerStream:      1_000,
		DuplicateTupleThreshold: 5,
	}
}
