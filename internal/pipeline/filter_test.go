package pipeline

import (
	"testing"
	"time"

	"github.com/chimewatch/calendar-assistant/internal/model"
)

func TestFilterDropsCancelledPastAndSkipped(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	cancelled := evAt("a@example.com", "Cancelled", now.Add(time.Hour))
	cancelled.IsCancelled = true

	past := evAt("b@example.com", "Past", now.Add(-2*time.Hour))
	past.End.UTC = now.Add(-time.Hour)

	skipped := evAt("c@example.com", "Skipped", now.Add(time.Hour))

	kept := evAt("d@example.com", "Kept", now.Add(time.Hour))

	res := Filter([]model.CalendarEvent{cancelled, past, skipped, kept}, now, map[string]bool{"c@example.com": true})

	if res.EventsOut != 1 {
		t.Fatalf("EventsOut = %d, want 1, got events: %+v", res.EventsOut, res.Events)
	}
	if res.Events[0].ID != "d@example.com" {
		t.Errorf("surviving event = %q, want %q", res.Events[0].ID, "d@example.com")
	}
	if res.EventsFiltered != 3 {
		t.Errorf("EventsFiltered = %d, want 3", res.EventsFiltered)
	}
}

func TestFilterDropsEventEndingExactlyAtNow(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	endsAtNow := evAt("e@example.com", "Ends now", now.Add(-time.Hour))
	endsAtNow.End.UTC = now

	res := Filter([]model.CalendarEvent{endsAtNow}, now, nil)

	if res.EventsOut != 0 {
		t.Errorf("EventsOut = %d, want 0: an event ending exactly at now must not survive", res.EventsOut)
	}
}

func TestFocusTimePredicateMatchesKeywordAndShape(t *testing.T) {
	cfg := FilterConfig{FocusTimeKeywords: []string{"focus time"}}
	pred := FocusTimePredicate(cfg)

	byKeyword := model.CalendarEvent{Subject: "Focus Time: deep work"}
	if !pred(byKeyword) {
		t.Error("expected subject-keyword match to report focus time")
	}

	byShape := model.CalendarEvent{Subject: "Heads down", Status: model.StatusFree, IsOrganizer: true}
	if !pred(byShape) {
		t.Error("expected free/organizer/no-attendees shape to report focus time")
	}

	meeting := model.CalendarEvent{Subject: "1:1 with manager", Status: model.StatusBusy, Attendees: []model.Attendee{{Email: "mgr@example.com"}}}
	if pred(meeting) {
		t.Error("a real meeting with attendees should not be classified as focus time")
	}
}

func TestFollowUpPredicateMatchesPrefixAndStatus(t *testing.T) {
	cfg := FilterConfig{FollowUpPrefixes: []string{"following:"}}
	pred := FollowUpPredicate(cfg)

	byPrefix := model.CalendarEvent{Subject: "Following: offsite"}
	if !pred(byPrefix) {
		t.Error("expected 'Following:' prefix to match")
	}

	byStatus := model.CalendarEvent{Subject: "anything", Status: model.StatusWorkingElsewhere}
	if !pred(byStatus) {
		t.Error("expected working-elsewhere status to match")
	}

	normal := model.CalendarEvent{Subject: "Planning", Status: model.StatusBusy}
	if pred(normal) {
		t.Error("an ordinary busy meeting should not match the follow-up predicate")
	}
}

func TestDefaultFilterConfigFallsBackWhenUnconfigured(t *testing.T) {
	activeFilterConfig = FilterConfig{}
	cfg := DefaultFilterConfig()
	if len(cfg.FocusTimeKeywords) == 0 || len(cfg.FollowUpPrefixes) == 0 {
		t.Fatal("expected hardcoded defaults when no config has been installed")
	}
}

func TestSetDefaultFilterConfigOverridesDefaults(t *testing.T) {
	t.Cleanup(func() { activeFilterConfig = FilterConfig{} })

	SetDefaultFilterConfig(FilterConfig{FocusTimeKeywords: []string{"heads down"}})
	cfg := DefaultFilterConfig()
	if len(cfg.FocusTimeKeywords) != 1 || cfg.FocusTimeKeywords[0] != "heads down" {
		t.Fatalf("expected operator-configured keywords to win, got %+v", cfg)
	}
}
