// Package intents implements the five concrete voice intents (spec C10),
// each a pure function of (params, window view, now) per the distilled
// spec's re-architecture note replacing a handler-subclass hierarchy with
// plain functions registered into a static table.
package intents

import (
	"fmt"
	"time"

	"github.com/chimewatch/calendar-assistant/internal/model"
	"github.com/chimewatch/calendar-assistant/internal/pipeline"
	"github.com/chimewatch/calendar-assistant/internal/speech"
	"github.com/chimewatch/calendar-assistant/internal/voice"
)

// NewRegistry builds the registry with all five intents registered.
func NewRegistry() *voice.Registry {
	r := voice.NewRegistry()
	r.Register(nextMeetingIntent())
	r.Register(timeUntilNextIntent())
	r.Register(doneForDayIntent())
	r.Register(launchSummaryIntent())
	r.Register(morningSummaryIntent())
	return r
}

func nextMeetingIntent() voice.Intent {
	return voice.Intent{
		Name:          "next-meeting",
		Precomputable: true,
		Cacheable:     true,
		Run: func(_ voice.Params, win voice.WindowView, now time.Time) (voice.Response, error) {
			var next *model.CalendarEvent
			var category string
			if win.Precomputed != nil && win.Precomputed.HasNextMeeting {
				next = win.Precomputed.NextMeeting
				category = win.Precomputed.NextMeetingCategory
			} else {
				cfg := pipeline.DefaultFilterConfig()
				if p := pipeline.NextMeeting(win.Events, now, pipeline.FocusTimePredicate(cfg), pipeline.FollowUpPredicate(cfg)); p != nil {
					next, category = &p.Event, p.Category
				}
			}
			if next == nil {
				return noMeetingsResponse(), nil
			}
			if category == "active" {
				return meetingResponse("You're currently in", *next, now), nil
			}
			return meetingResponse("Your next meeting is", *next, now), nil
		},
	}
}

func timeUntilNextIntent() voice.Intent {
	return voice.Intent{
		Name:          "time-until-next",
		Precomputable: true,
		Cacheable:     true,
		Run: func(_ voice.Params, win voice.WindowView, now time.Time) (voice.Response, error) {
			var next *model.CalendarEvent
			var until time.Duration
			if win.Precomputed != nil && win.Precomputed.HasNextMeeting {
				next = win.Precomputed.NextMeeting
				until = win.Precomputed.TimeUntilNext
			} else {
				cfg := pipeline.DefaultFilterConfig()
				if p := pipeline.NextMeeting(win.Events, now, pipeline.FocusTimePredicate(cfg), pipeline.FollowUpPredicate(cfg)); p != nil {
					ev := p.Event
					next = &ev
					until = time.Duration(p.SecondsUntilStart) * time.Second
				}
			}
			if next == nil {
				return noMeetingsResponse(), nil
			}
			text := fmt.Sprintf("%s starts in %s.", next.Subject, humanizeDuration(until))
			segs := []speech.Segment{{Text: text}}
			return toResponse(segs, map[string]any{
				"subject":          next.Subject,
				"seconds_until":    int(until.Seconds()),
			}), nil
		},
	}
}

func doneForDayIntent() voice.Intent {
	return voice.Intent{
		Name:          "done-for-day",
		Precomputable: true,
		Cacheable:     true,
		Run: func(_ voice.Params, win voice.WindowView, now time.Time) (voice.Response, error) {
			var done bool
			if win.Precomputed != nil {
				done = win.Precomputed.DoneForDay
			} else {
				cfg := pipeline.DefaultFilterConfig()
				next := pipeline.NextMeeting(win.Events, now, pipeline.FocusTimePredicate(cfg), pipeline.FollowUpPredicate(cfg))
				done = next == nil || next.Event.Start.UTC.Day() != now.Day()
			}
			var text string
			if done {
				text = "You're done for the day. No more meetings scheduled."
			} else {
				text = "You still have meetings left today."
			}
			return toResponse([]speech.Segment{{Text: text}}, map[string]any{"done_for_day": done}), nil
		},
	}
}

func launchSummaryIntent() voice.Intent {
	return voice.Intent{
		Name:          "launch-summary",
		Precomputable: true,
		Cacheable:     true,
		Run: func(_ voice.Params, win voice.WindowView, now time.Time) (voice.Response, error) {
			cfg := pipeline.DefaultFilterConfig()
			var next *model.CalendarEvent
			if p := pipeline.NextMeeting(win.Events, now, pipeline.FocusTimePredicate(cfg), pipeline.FollowUpPredicate(cfg)); p != nil {
				ev := p.Event
				next = &ev
			}
			if win.Precomputed != nil && win.Precomputed.HasNextMeeting {
				next = win.Precomputed.NextMeeting
			}
			count := remainingTodayCount(win.Events, now)
			var segs []speech.Segment
			segs = append(segs, speech.Segment{Text: fmt.Sprintf("You have %d meeting%s remaining today.", count, plural(count))})
			if next != nil {
				segs = append(segs, speech.Segment{Pause: true, PauseFor: "250ms"})
				segs = append(segs, speech.Segment{Text: fmt.Sprintf("Next up: %s at %s.", next.Subject, next.Start.UTC.In(now.Location()).Format("3:04 PM"))})
			}
			return toResponse(segs, map[string]any{"remaining_today": count}), nil
		},
	}
}

func morningSummaryIntent() voice.Intent {
	return voice.Intent{
		Name:          "morning-summary",
		Precomputable: true,
		Cacheable:     true,
		Run: func(_ voice.Params, win voice.WindowView, now time.Time) (voice.Response, error) {
			var items []model.CalendarEvent
			if win.Precomputed != nil {
				items = win.Precomputed.MorningSummary
			}
			if len(items) == 0 {
				return toResponse([]speech.Segment{{Text: "You have no meetings scheduled for tomorrow morning."}}, nil), nil
			}
			var segs []speech.Segment
			segs = append(segs, speech.Segment{Text: fmt.Sprintf("Tomorrow morning you have %d meeting%s.", len(items), plural(len(items)))})
			for _, ev := range items {
				segs = append(segs, speech.Segment{Pause: true, PauseFor: "200ms"})
				segs = append(segs, speech.Segment{Text: fmt.Sprintf("%s at %s.", ev.Subject, ev.Start.UTC.In(now.Location()).Format("3:04 PM"))})
			}
			return toResponse(segs, map[string]any{"count": len(items)}), nil
		},
	}
}

func meetingResponse(lead string, ev model.CalendarEvent, now time.Time) voice.Response {
	when := ev.Start.UTC.In(now.Location()).Format("3:04 PM")
	text := fmt.Sprintf("%s %s at %s.", lead, ev.Subject, when)
	payload := map[string]any{
		"subject":    ev.Subject,
		"location":   ev.Location,
		"start_unix": ev.Start.UTC.Unix(),
	}
	return toResponse([]speech.Segment{{Text: text, Emphasis: "moderate"}}, payload)
}

func noMeetingsResponse() voice.Response {
	return toResponse([]speech.Segment{{Text: "You have no upcoming meetings."}}, nil)
}

func toResponse(segs []speech.Segment, payload map[string]any) voice.Response {
	ssml, ok := speech.Render(segs)
	resp := voice.Response{SpeechText: speech.Plain(segs), Payload: payload}
	if ok {
		resp.SSML = ssml
	}
	return resp
}

func remainingTodayCount(events []model.CalendarEvent, now time.Time) int {
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
	count := 0
	for _, ev := range events {
		if ev.IsCancelled || ev.Status == model.StatusFree {
			continue
		}
		if ev.Start.UTC.After(now) && !ev.Start.UTC.After(dayEnd.UTC()) {
			count++
		}
	}
	return count
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	mins := int(d.Minutes())
	if mins < 60 {
		return fmt.Sprintf("%d minute%s", mins, plural(mins))
	}
	hours := mins / 60
	rem := mins % 60
	if rem == 0 {
		return fmt.Sprintf("%d hour%s", hours, plural(hours))
	}
	return fmt.Sprintf("%d hour%s %d minute%s", hours, plural(hours), rem, plural(rem))
}
