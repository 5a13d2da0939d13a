package intents

import (
	"testing"
	"time"

	"github.com/chimewatch/calendar-assistant/internal/model"
	"github.com/chimewatch/calendar-assistant/internal/voice"
	"github.com/chimewatch/calendar-assistant/internal/voice/precompute"
)

func busyEvent(id string, start, end time.Time) model.CalendarEvent {
	return model.CalendarEvent{
		ID:      id,
		Subject: id,
		Status:  model.StatusBusy,
		Start:   model.TimeRef{UTC: start},
		End:     model.TimeRef{UTC: end},
	}
}

func TestNewRegistryRegistersAllFiveIntents(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"next-meeting", "time-until-next", "done-for-day", "launch-summary", "morning-summary"} {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("intent %q not registered", name)
		}
	}
}

func TestNextMeetingUsesPrecomputedWhenPresent(t *testing.T) {
	reg := NewRegistry()
	intent, _ := reg.Lookup("next-meeting")

	now := time.Date(2026, 8, 3, 8, 0, 0, 0, time.UTC)
	precomputedMeeting := busyEvent("precomputed-standup", now.Add(time.Hour), now.Add(2*time.Hour))
	win := voice.WindowView{
		Precomputed: &precompute.Responses{HasNextMeeting: true, NextMeeting: &precomputedMeeting},
	}

	resp, err := intent.Run(voice.Params{}, win, now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Payload["subject"] != "precomputed-standup" {
		t.Errorf("subject = %v, want the precomputed meeting's subject", resp.Payload["subject"])
	}
}

func TestNextMeetingFallsBackToLiveComputation(t *testing.T) {
	reg := NewRegistry()
	intent, _ := reg.Lookup("next-meeting")

	now := time.Date(2026, 8, 3, 8, 0, 0, 0, time.UTC)
	live := busyEvent("live-standup", now.Add(time.Hour), now.Add(2*time.Hour))
	win := voice.WindowView{Events: []model.CalendarEvent{live}, Precomputed: nil}

	resp, err := intent.Run(voice.Params{}, win, now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Payload["subject"] != "live-standup" {
		t.Errorf("subject = %v, want live-standup (no precomputed answer available)", resp.Payload["subject"])
	}
}

func TestNextMeetingInProgressUsesActivePhrasing(t *testing.T) {
	reg := NewRegistry()
	intent, _ := reg.Lookup("next-meeting")

	now := time.Date(2026, 8, 3, 8, 0, 0, 0, time.UTC)
	active := busyEvent("standup", now.Add(-10*time.Minute), now.Add(20*time.Minute))
	win := voice.WindowView{
		Precomputed: &precompute.Responses{HasNextMeeting: true, NextMeeting: &active, NextMeetingCategory: "active"},
	}

	resp, err := intent.Run(voice.Params{}, win, now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.SpeechText == "" || resp.SpeechText[:len("You're currently in")] != "You're currently in" {
		t.Errorf("SpeechText = %q, want the active-meeting phrasing", resp.SpeechText)
	}
}

func TestNextMeetingNoMeetingsResponse(t *testing.T) {
	reg := NewRegistry()
	intent, _ := reg.Lookup("next-meeting")

	now := time.Date(2026, 8, 3, 8, 0, 0, 0, time.UTC)
	resp, err := intent.Run(voice.Params{}, voice.WindowView{}, now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.SpeechText != "You have no upcoming meetings." {
		t.Errorf("SpeechText = %q, want the no-meetings response", resp.SpeechText)
	}
}

func TestDoneForDayUsesPrecomputedFlag(t *testing.T) {
	reg := NewRegistry()
	intent, _ := reg.Lookup("done-for-day")

	now := time.Date(2026, 8, 3, 22, 0, 0, 0, time.UTC)
	win := voice.WindowView{Precomputed: &precompute.Responses{DoneForDay: true}}

	resp, err := intent.Run(voice.Params{}, win, now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Payload["done_for_day"] != true {
		t.Errorf("done_for_day = %v, want true", resp.Payload["done_for_day"])
	}
}

func TestMorningSummaryEmptyWhenNoPrecomputed(t *testing.T) {
	reg := NewRegistry()
	intent, _ := reg.Lookup("morning-summary")

	now := time.Date(2026, 8, 3, 20, 0, 0, 0, time.UTC)
	resp, err := intent.Run(voice.Params{}, voice.WindowView{}, now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.SpeechText != "You have no meetings scheduled for tomorrow morning." {
		t.Errorf("SpeechText = %q, want the empty-morning response", resp.SpeechText)
	}
}

func TestMorningSummaryListsPrecomputedEvents(t *testing.T) {
	reg := NewRegistry()
	intent, _ := reg.Lookup("morning-summary")

	now := time.Date(2026, 8, 3, 20, 0, 0, 0, time.UTC)
	tomorrow := busyEvent("tomorrow-standup", now.Add(13*time.Hour), now.Add(14*time.Hour))
	win := voice.WindowView{Precomputed: &precompute.Responses{MorningSummary: []model.CalendarEvent{tomorrow}}}

	resp, err := intent.Run(voice.Params{}, win, now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Payload["count"] != 1 {
		t.Errorf("count = %v, want 1", resp.Payload["count"])
	}
}

func TestTimeUntilNextHumanizesDuration(t *testing.T) {
	reg := NewRegistry()
	intent, _ := reg.Lookup("time-until-next")

	now := time.Date(2026, 8, 3, 8, 0, 0, 0, time.UTC)
	next := busyEvent("standup", now.Add(90*time.Minute), now.Add(2*time.Hour))
	win := voice.WindowView{Precomputed: &precompute.Responses{HasNextMeeting: true, NextMeeting: &next, TimeUntilNext: 90 * time.Minute}}

	resp, err := intent.Run(voice.Params{}, win, now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Payload["seconds_until"] != int((90 * time.Minute).Seconds()) {
		t.Errorf("seconds_until = %v, want %d", resp.Payload["seconds_until"], int((90*time.Minute).Seconds()))
	}
}

func TestHumanizeDurationBoundaries(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "less than a minute"},
		{5 * time.Minute, "5 minutes"},
		{1 * time.Minute, "1 minute"},
		{time.Hour, "1 hour"},
		{90 * time.Minute, "1 hour 30 minutes"},
	}
	for _, tc := range cases {
		got := humanizeDuration(tc.d)
		if got != tc.want {
			t.Errorf("humanizeDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
