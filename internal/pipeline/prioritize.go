package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/chimewatch/calendar-assistant/internal/model"
)

// GroupWindow is the span within which two meetings are considered part of
// the same "block" for the next-meeting selection (spec §4.6): back-to-back
// meetings inside this window are treated as one unit rather than surfacing
// the gap between them as free time.
const GroupWindow = 30 * time.Minute

// Priority is the event NextMeeting selects, together with the timing
// category that answer needs: "active" for a meeting already in progress
// (SecondsUntilStart negative) or "upcoming" for one that hasn't started.
type Priority struct {
	Event             model.CalendarEvent
	SecondsUntilStart int64
	Category          string
}

// NextMeeting picks the event that should answer "what's my next meeting",
// applying the exclusion predicates, a 30-minute grouping window, a
// business-meeting-over-lunch tie-break, and an earliest-start/subject
// tie-break, in that priority order. A meeting already in progress right now
// takes priority over any future candidate and is returned with category
// "active" and a negative SecondsUntilStart.
func NextMeeting(events []model.CalendarEvent, now time.Time, isFocusTime, isFollowUp func(model.CalendarEvent) bool) *Priority {
	eligible := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if isFocusTime(ev) || isFollowUp(ev) {
			continue
		}
		if ev.Status == model.StatusFree {
			continue
		}
		eligible = append(eligible, ev)
	}

	if active := earliestActive(eligible, now); active != nil {
		return &Priority{
			Event:             *active,
			SecondsUntilStart: int64(active.Start.UTC.Sub(now).Seconds()),
			Category:          "active",
		}
	}

	candidates := make([]model.CalendarEvent, 0, len(eligible))
	for _, ev := range eligible {
		if ev.Start.UTC.Before(now) {
			continue
		}
		candidates = append(candidates, ev)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].Start.UTC.Equal(candidates[j].Start.UTC) {
			return candidates[i].Start.UTC.Before(candidates[j].Start.UTC)
		}
		return candidates[i].Subject < candidates[j].Subject
	})

	earliest := candidates[0]
	grouped := []model.CalendarEvent{earliest}
	for _, ev := range candidates[1:] {
		if ev.Start.UTC.Sub(earliest.Start.UTC) <= GroupWindow {
			grouped = append(grouped, ev)
			continue
		}
		break
	}

	chosen := &grouped[0]
	if len(grouped) > 1 {
		sort.SliceStable(grouped, func(i, j int) bool {
			bi, bj := isLunch(grouped[i]), isLunch(grouped[j])
			if bi != bj {
				return !bi // non-lunch sorts first
			}
			if !grouped[i].Start.UTC.Equal(grouped[j].Start.UTC) {
				return grouped[i].Start.UTC.Before(grouped[j].Start.UTC)
			}
			return grouped[i].Subject < grouped[j].Subject
		})
		chosen = &grouped[0]
	}

	return &Priority{
		Event:             *chosen,
		SecondsUntilStart: int64(chosen.Start.UTC.Sub(now).Seconds()),
		Category:          "upcoming",
	}
}

// earliestActive returns the in-progress event (start <= now < end) with the
// earliest start, or nil if none is currently running. Overlapping active
// events are vanishingly rare but tie-broken the same way as upcoming ones.
func earliestActive(events []model.CalendarEvent, now time.Time) *model.CalendarEvent {
	var best *model.CalendarEvent
	for i, ev := range events {
		if ev.Start.UTC.After(now) || !ev.End.UTC.After(now) {
			continue
		}
		if best == nil || ev.Start.UTC.Before(best.Start.UTC) ||
			(ev.Start.UTC.Equal(best.Start.UTC) && ev.Subject < best.Subject) {
			best = &events[i]
		}
	}
	return best
}

func isLunch(ev model.CalendarEvent) bool {
	subject := strings.ToLower(ev.Subject)
	return strings.Contains(subject, "lunch") || strings.Contains(subject, "break")
}
