package pipeline

import (
	"strings"
	"time"

	"github.com/chimewatch/calendar-assistant/internal/model"
)

// FilterConfig names the keyword lists the filter/prioritize stages use to
// recognize focus-time and follow-up blocks. Operator-configurable per the
// "Following:" heuristic open question (see DESIGN.md).
type FilterConfig struct {
	FocusTimeKeywords []string
	FollowUpPrefixes  []string
}

func DefaultFilterConfig() FilterConfig {
	if len(activeFilterConfig.FocusTimeKeywords) > 0 || len(activeFilterConfig.FollowUpPrefixes) > 0 {
		return activeFilterConfig
	}
	return FilterConfig{
		FocusTimeKeywords: []string{"focus time", "deep work", "do not disturb", "no meetings"},
		FollowUpPrefixes:  []string{"following:"},
	}
}

// activeFilterConfig is set once at startup from Config, so every caller of
// DefaultFilterConfig (precompute, intents, scheduler) picks up the
// operator's configured keyword lists without threading a FilterConfig
// through every function signature in those packages.
var activeFilterConfig FilterConfig

// SetDefaultFilterConfig installs the operator-configured keyword lists.
func SetDefaultFilterConfig(cfg FilterConfig) {
	activeFilterConfig = cfg
}

// Filter drops cancelled events, events whose end instant is at or before
// now, and events explicitly marked skipped (see internal/skipstore). No
// event with end_utc <= now survives to the published window.
func Filter(events []model.CalendarEvent, now time.Time, skipped map[string]bool) model.StageResult {
	res := model.StageResult{Success: true, EventsIn: len(events)}
	for _, ev := range events {
		if ev.IsCancelled {
			res.EventsFiltered++
			continue
		}
		if skipped[ev.ID] {
			res.EventsFiltered++
			continue
		}
		if !ev.End.UTC.After(now) {
			res.EventsFiltered++
			continue
		}
		res.Events = append(res.Events, ev)
	}
	res.EventsOut = len(res.Events)
	return res
}

// FocusTimePredicate reports whether an event represents a focus-time block
// that should never be surfaced as "your next meeting".
func FocusTimePredicate(cfg FilterConfig) func(model.CalendarEvent) bool {
	return func(ev model.CalendarEvent) bool {
		subject := strings.ToLower(ev.Subject)
		for _, kw := range cfg.FocusTimeKeywords {
			if strings.Contains(subject, kw) {
				return true
			}
		}
		return ev.Status == model.StatusFree && ev.IsOrganizer && len(ev.Attendees) == 0
	}
}

// FollowUpPredicate reports whether an event is a "Following:" marker block
// a vendor inserts for a working-elsewhere period, which should be excluded
// from "next meeting" but kept for status display.
func FollowUpPredicate(cfg FilterConfig) func(model.CalendarEvent) bool {
	return func(ev model.CalendarEvent) bool {
		subject := strings.ToLower(strings.TrimSpace(ev.Subject))
		for _, prefix := range cfg.FollowUpPrefixes {
			if strings.HasPrefix(subject, prefix) {
				return true
			}
		}
		return ev.Status == model.StatusWorkingElsewhere
	}
}
