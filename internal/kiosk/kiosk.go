// Package kiosk implements the thin, unauthenticated JSON API a kiosk
// display polls for the current window and health status (spec A6). No
// request here touches the voice intent registry or cache — a kiosk wants
// the raw event list and health snapshot, not a speech-formatted answer.
package kiosk

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/chimewatch/calendar-assistant/internal/model"
	"github.com/chimewatch/calendar-assistant/internal/window"
)

type Handlers struct {
	publisher *window.Publisher
}

func New(publisher *window.Publisher) *Handlers {
	return &Handlers{publisher: publisher}
}

type eventsResponse struct {
	Version      int64                  `json:"version"`
	PublishedAt  time.Time              `json:"published_at"`
	WindowStart  time.Time              `json:"window_start"`
	WindowEnd    time.Time              `json:"window_end"`
	Events       []model.CalendarEvent  `json:"events"`
	IsFallback   bool                   `json:"is_fallback"`
}

func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	snap := h.publisher.Read()
	if snap == nil {
		http.Error(w, "window not yet published", http.StatusServiceUnavailable)
		return
	}
	resp := eventsResponse{
		Version:     snap.Version,
		PublishedAt: snap.PublishedAt,
		WindowStart: snap.WindowStart,
		WindowEnd:   snap.WindowEnd,
		Events:      snap.Events,
		IsFallback:  snap.IsFallback,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.publisher.Read()
	w.Header().Set("Content-Type", "application/json")
	if snap == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(model.HealthSnapshot{Status: model.HealthCritical})
		return
	}
	if snap.Health.Status != model.HealthOK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(snap.Health)
}

// HandleMorningSummary serves the general (unauthenticated) variant of the
// morning summary, distinct from the voice webhook's authenticated variant
// under /api/alexa/morning-summary.
func (h *Handlers) HandleMorningSummary(w http.ResponseWriter, r *http.Request) {
	snap := h.publisher.Read()
	w.Header().Set("Content-Type", "application/json")
	if snap == nil || snap.Precomputed == nil {
		_ = json.NewEncoder(w).Encode(map[string]any{"events": []model.CalendarEvent{}})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"events":       snap.Precomputed.MorningSummary,
		"window_start": snap.Precomputed.MorningWindowStart,
		"window_end":   snap.Precomputed.MorningWindowEnd,
	})
}
