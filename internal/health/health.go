// Package health tracks refresh-cycle health and exposes Prometheus metrics
// (spec §4.12 and the ambient-stack expansion in SPEC_FULL.md), adopting
// github.com/prometheus/client_golang the way cuemby-warren and
// prysmaticlabs-prysm register their own counters/histograms/gauges, since
// the teacher itself carries no metrics dependency.
package health

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chimewatch/calendar-assistant/internal/model"
)

// Metrics is the process-wide registry of refresh and voice metrics.
type Metrics struct {
	FetchAttemptsTotal   *prometheus.CounterVec
	FetchSuccessesTotal  *prometheus.CounterVec
	RefreshDuration      prometheus.Histogram
	WindowEventCount     prometheus.Gauge
	VoiceRequestDuration *prometheus.HistogramVec
}

// NewMetrics constructs and registers every metric against reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		FetchAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calendar_assistant_fetch_attempts_total",
			Help: "Total fetch attempts per source.",
		}, []string{"source"}),
		FetchSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calendar_assistant_fetch_successes_total",
			Help: "Total successful fetches per source.",
		}, []string{"source"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "calendar_assistant_refresh_duration_seconds",
			Help:    "Wall-clock duration of a full refresh cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		WindowEventCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "calendar_assistant_window_event_count",
			Help: "Number of events in the currently published window.",
		}),
		VoiceRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "calendar_assistant_voice_request_duration_seconds",
			Help:    "Voice handler latency by intent and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"intent", "outcome"}),
	}
	reg.MustRegister(
		m.FetchAttemptsTotal,
		m.FetchSuccessesTotal,
		m.RefreshDuration,
		m.WindowEventCount,
		m.VoiceRequestDuration,
	)
	return m
}

// Tracker accumulates the rolling health snapshot served at /healthz,
// mutex-guarded since refreshes (writer) and the health endpoint (reader)
// run on different goroutines; unlike the window publisher this value is
// small and read-modify-write isn't on the hot path, so a plain mutex
// (matching the teacher's internal/cache.Cache idiom) is the right tool
// rather than an atomic.Pointer.
type Tracker struct {
	mu   sync.Mutex
	snap model.HealthSnapshot
}

func NewTracker() *Tracker {
	return &Tracker{snap: model.HealthSnapshot{Status: model.HealthCritical}}
}

func (t *Tracker) RecordAttempt(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.LastAttempt = at
}

func (t *Tracker) RecordSuccess(at time.Time, eventCount int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.LastSuccess = at
	t.snap.EventCount = eventCount
	t.snap.Status = model.HealthOK
}

func (t *Tracker) RecordDegraded(notes string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Status = model.HealthDegraded
	t.snap.LastProbeNotes = notes
}

func (t *Tracker) RecordCritical(notes string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Status = model.HealthCritical
	t.snap.LastProbeNotes = notes
}

func (t *Tracker) RecordHeartbeat(at time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.LastHeartbeat = at
	t.snap.LastProbeOK = ok
}

func (t *Tracker) Snapshot() model.HealthSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}
