// Package precompute builds the handful of voice answers that are
// parameterized only by "now" and the freshly published event window, at
// refresh time rather than at request time (spec C9). Grounded in the
// distilled spec's re-architecture note: "a PrecomputedResponses value
// published alongside each window version," not a shared dict threaded
// through request context.
package precompute

import (
	"time"

	"github.com/chimewatch/calendar-assistant/internal/model"
	"github.com/chimewatch/calendar-assistant/internal/pipeline"
)

// Responses holds the named answers computed once per refresh.
type Responses struct {
	NextMeeting         *model.CalendarEvent
	NextMeetingCategory string // "active" (in progress) or "upcoming"
	TimeUntilNext       time.Duration
	HasNextMeeting      bool
	DoneForDay          bool
	LastMeetingEnd      time.Time
	MorningSummary      []model.CalendarEvent
	MorningWindowStart  time.Time
	MorningWindowEnd    time.Time
}

// Build computes every precomputed answer against events and now, in tzName
// (falling back to UTC if tzName fails to load — the scheduler's own
// tzresolve.Resolver has already validated the configured zone by the time a
// refresh reaches this point, so this is a defensive last resort, not the
// primary resolution path).
func Build(events []model.CalendarEvent, now time.Time, tzName string) *Responses {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)

	cfg := pipeline.DefaultFilterConfig()
	isFocusTime := pipeline.FocusTimePredicate(cfg)
	isFollowUp := pipeline.FollowUpPredicate(cfg)

	r := &Responses{}

	next := pipeline.NextMeeting(events, now, isFocusTime, isFollowUp)
	if next != nil {
		ev := next.Event
		r.NextMeeting = &ev
		r.NextMeetingCategory = next.Category
		r.HasNextMeeting = true
		r.TimeUntilNext = time.Duration(next.SecondsUntilStart) * time.Second
	}

	dayEnd := time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 0, loc)
	r.LastMeetingEnd = lastMeetingEndOfDay(events, local, dayEnd)
	r.DoneForDay = !hasRemainingMeetingToday(events, now, dayEnd.UTC())

	tomorrow := local.AddDate(0, 0, 1)
	morningStart := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, loc)
	morningEnd := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 12, 0, 0, 0, loc)
	r.MorningWindowStart = morningStart
	r.MorningWindowEnd = morningEnd
	r.MorningSummary = eventsBetween(events, morningStart.UTC(), morningEnd.UTC())

	return r
}

func hasRemainingMeetingToday(events []model.CalendarEvent, now, dayEndUTC time.Time) bool {
	for _, ev := range events {
		if ev.IsCancelled || ev.Status == model.StatusFree {
			continue
		}
		if ev.Start.UTC.After(now) && !ev.Start.UTC.After(dayEndUTC) {
			return true
		}
	}
	return false
}

func lastMeetingEndOfDay(events []model.CalendarEvent, local time.Time, dayEndLocal time.Time) time.Time {
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	var latest time.Time
	for _, ev := range events {
		if ev.IsCancelled || ev.Status == model.StatusFree {
			continue
		}
		end := ev.End.UTC
		if end.Before(dayStart.UTC()) || end.After(dayEndLocal.UTC()) {
			continue
		}
		if end.After(latest) {
			latest = end
		}
	}
	return latest
}

func eventsBetween(events []model.CalendarEvent, start, end time.Time) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, 4)
	for _, ev := range events {
		if ev.IsCancelled {
			continue
		}
		if !ev.Start.UTC.Before(start) && ev.Start.UTC.Before(end) {
			out = append(out, ev)
		}
	}
	return out
}
