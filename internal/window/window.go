// Package window holds the published calendar window: the single,
// lock-free shared read path every voice and kiosk handler queries. Writers
// (the scheduler) swap in a brand new snapshot atomically; readers never
// block on a writer mid-refresh. Grounded in the teacher's generic
// internal/cache.Cache (mutex + TTL), re-architected per spec §4.8 into an
// atomic.Pointer swap since that cache's per-key locking is the wrong shape
// for "replace everything at once, many readers, one writer".
package window

import (
	"sync/atomic"
	"time"

	"github.com/chimewatch/calendar-assistant/internal/model"
	"github.com/chimewatch/calendar-assistant/internal/voice/precompute"
)

// Snapshot is one immutable published window. Once installed, a Snapshot is
// never mutated; a refresh builds an entirely new one.
type Snapshot struct {
	Version      int64
	PublishedAt  time.Time
	WindowStart  time.Time
	WindowEnd    time.Time
	Events       []model.CalendarEvent
	Health       model.HealthSnapshot
	IsFallback   bool // smart-fallback: this cycle kept the prior snapshot's events
	SourceErrors map[string]string

	// Precomputed is built before the snapshot is published, so a published
	// snapshot carries it except on a fallback publish, where it is nil;
	// handlers treat a nil value as a miss and compute the answer live.
	Precomputed *precompute.Responses
}

// Publisher is the single writer; Read is safe for any number of concurrent
// readers with no locking.
type Publisher struct {
	current atomic.Pointer[Snapshot]
	version atomic.Int64
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// Read returns the most recently published snapshot, or nil before the
// first successful refresh completes.
func (p *Publisher) Read() *Snapshot {
	return p.current.Load()
}

// Publish installs a new snapshot. version is assigned internally so
// callers never race each other over the counter.
func (p *Publisher) Publish(s Snapshot) *Snapshot {
	s.Version = p.version.Add(1)
	p.current.Store(&s)
	return &s
}

// Keep republishes the currently installed snapshot unchanged except for
// Health, for a smart-fallback cycle that decided to keep the prior window
// rather than overwrite it with zero events. Version is deliberately left
// untouched: per §8, a fallback cycle never bumps window_version even
// though the health status attached to it may change. Returns nil if
// nothing has been published yet, since there is nothing to keep.
func (p *Publisher) Keep(health model.HealthSnapshot) *Snapshot {
	prior := p.current.Load()
	if prior == nil {
		return nil
	}
	s := *prior
	s.Health = health
	s.IsFallback = true
	p.current.Store(&s)
	return &s
}

// SmartFallback decides whether a refresh cycle that produced zero events
// should publish that empty result or instead republish the prior snapshot
// with IsFallback set, per the heuristic in §9: a cycle with EventsOut==0 is
// only trusted as "genuinely no events" when at least one source actually
// succeeded; if every source failed, or the prior window had events but this
// cycle fetched zero successes, the prior snapshot is kept.
func (p *Publisher) SmartFallback(newEvents []model.CalendarEvent, allSourcesFailed bool, fetchSuccessCount int) (useFallback bool) {
	if len(newEvents) > 0 {
		return false
	}
	if allSourcesFailed {
		return true
	}
	prior := p.Read()
	if prior != nil && len(prior.Events) > 0 && fetchSuccessCount == 0 {
		return true
	}
	return false
}
