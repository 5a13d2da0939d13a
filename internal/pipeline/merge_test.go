package pipeline

import (
	"testing"
	"time"

	"github.com/chimewatch/calendar-assistant/internal/model"
)

func evAt(uid, subject string, start time.Time) model.CalendarEvent {
	return model.CalendarEvent{
		ID:      uid,
		Subject: subject,
		Start:   model.TimeRef{UTC: start},
		End:     model.TimeRef{UTC: start.Add(time.Hour)},
	}
}

func TestMergeDedupesAcrossSources(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	a := evAt("standup@example.com", "Standup", start)
	b := evAt("standup@example.com", "Standup", start) // identical key, second source

	res := Merge([][]model.CalendarEvent{{a}, {b}})
	if res.EventsIn != 2 {
		t.Errorf("EventsIn = %d, want 2", res.EventsIn)
	}
	if res.EventsOut != 1 {
		t.Errorf("EventsOut = %d, want 1 (deduplicated)", res.EventsOut)
	}
}

func TestMergeFirstOccurrenceWins(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	a := evAt("standup@example.com", "Standup", start)
	a.Location = "old room"
	b := evAt("standup@example.com", "Standup", start)
	b.Location = "new room"

	res := Merge([][]model.CalendarEvent{{a}, {b}})
	if len(res.Events) != 1 {
		t.Fatalf("expected 1 merged event, got %d", len(res.Events))
	}
	if res.Events[0].Location != "old room" {
		t.Errorf("Location = %q, want the first-seen source's value %q", res.Events[0].Location, "old room")
	}
}

func TestMergeDistinctEventsBothSurvive(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	a := evAt("standup@example.com", "Standup", start)
	b := evAt("retro@example.com", "Retro", start.Add(2*time.Hour))

	res := Merge([][]model.CalendarEvent{{a, b}})
	if res.EventsOut != 2 {
		t.Errorf("EventsOut = %d, want 2", res.EventsOut)
	}
}

func TestMergeRecurrenceIDDistinguishesInstances(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	rid1 := start
	rid2 := start.Add(7 * 24 * time.Hour)

	a := evAt("weekly@example.com", "Weekly", start)
	a.RecurrenceID = &rid1
	b := evAt("weekly@example.com", "Weekly", start.Add(7*24*time.Hour))
	b.RecurrenceID = &rid2

	res := Merge([][]model.CalendarEvent{{a, b}})
	if res.EventsOut != 2 {
		t.Errorf("EventsOut = %d, want 2 distinct recurrence instances", res.EventsOut)
	}
}
