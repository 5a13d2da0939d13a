// Package ical expands recurring events into their concrete occurrences
// within a window (spec C3). It is grounded in the teacher's
// RecurrenceExpander (pkg/ical/recurrence.go), generalized from a one-shot
// rrule.Between call into a genuinely incremental walk (rule.After, one
// occurrence at a time) bounded by a worker pool, an occurrence cap, and a
// per-rule time budget, since this system expands many independent sources
// concurrently rather than a single CalDAV REPORT at a time.
package ical

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"
	"golang.org/x/sync/semaphore"

	"github.com/chimewatch/calendar-assistant/internal/errs"
	"github.com/chimewatch/calendar-assistant/internal/model"
)

// ExpanderConfig tunes the bounds from §4.3. Defaults match the spec.
type ExpanderConfig struct {
	Concurrency          int64
	YieldEvery           int
	MaxOccurrences       int
	PerRuleBudget        time.Duration
	ExdateToleranceSecs  int
	InfiniteRuleLookback time.Duration // how far before "now" an unbounded RRULE may still surface occurrences
}

func DefaultExpanderConfig() ExpanderConfig {
	return ExpanderConfig{
		Concurrency:          1,
		YieldEvery:           50,
		MaxOccurrences:       250,
		PerRuleBudget:        200 * time.Millisecond,
		ExdateToleranceSecs:  60,
		InfiniteRuleLookback: 7 * 24 * time.Hour,
	}
}

// Expander expands RRULE/RDATE masters into concrete instances, honoring
// EXDATE suppression and RECURRENCE-ID overrides.
type Expander struct {
	cfg    ExpanderConfig
	sem    *semaphore.Weighted
	logger zerolog.Logger
}

func NewExpander(cfg ExpanderConfig, logger zerolog.Logger) *Expander {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Expander{cfg: cfg, sem: semaphore.NewWeighted(cfg.Concurrency), logger: logger}
}

// Expand walks events, passing non-recurring events through untouched and
// replacing each recurring master with its concrete occurrences in
// [rangeStart, rangeEnd]. Overrides (separate events carrying a
// RecurrenceID matching one of the master's own instants) suppress the
// generated occurrence at that instant in favor of the override itself.
func (x *Expander) Expand(ctx context.Context, events []model.CalendarEvent, rangeStart, rangeEnd time.Time) ([]model.CalendarEvent, error) {
	masters := make([]model.CalendarEvent, 0, len(events))
	overridesByMaster := map[string][]model.CalendarEvent{}
	var passthrough []model.CalendarEvent

	for _, ev := range events {
		switch {
		case ev.RecurrenceID != nil && ev.RRuleMasterUID != "":
			overridesByMaster[ev.RRuleMasterUID] = append(overridesByMaster[ev.RRuleMasterUID], ev)
		case ev.IsRecurring && (ev.RRule != "" || len(ev.RDates) > 0):
			masters = append(masters, ev)
		default:
			passthrough = append(passthrough, ev)
		}
	}

	type job struct {
		idx int
		ev  model.CalendarEvent
	}
	results := make([][]model.CalendarEvent, len(masters))
	errsOut := make([]error, len(masters))

	jobs := make(chan job)
	done := make(chan struct{})

	go func() {
		defer close(jobs)
		for i, m := range masters {
			select {
			case jobs <- job{idx: i, ev: m}:
			case <-ctx.Done():
				return
			}
		}
	}()

	workerCount := int(x.cfg.Concurrency)
	if workerCount < 1 {
		workerCount = 1
	}
	for w := 0; w < workerCount; w++ {
		go func() {
			for j := range jobs {
				if err := x.sem.Acquire(ctx, 1); err != nil {
					errsOut[j.idx] = err
					continue
				}
				instances, err := x.expandMaster(j.ev, overridesByMaster[j.ev.ID], rangeStart, rangeEnd)
				x.sem.Release(1)
				if err != nil {
					errsOut[j.idx] = err
					x.logger.Warn().Err(err).Str("uid", j.ev.ID).Msg("recurrence expansion failed")
					continue
				}
				results[j.idx] = instances
			}
			select {
			case done <- struct{}{}:
			case <-ctx.Done():
			}
		}()
	}
	for w := 0; w < workerCount; w++ {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := append([]model.CalendarEvent(nil), passthrough...)
	for i, m := range masters {
		if errsOut[i] != nil {
			failed := m
			failed.FailedExpansion = true
			out = append(out, failed)
			continue
		}
		out = append(out, results[i]...)
	}
	// unmatched overrides (master outside window, or master failed to
	// parse) still surface on their own merits.
	for uid, ovs := range overridesByMaster {
		if !containsMaster(masters, uid) {
			out = append(out, ovs...)
		}
	}
	return out, nil
}

func containsMaster(masters []model.CalendarEvent, uid string) bool {
	for _, m := range masters {
		if m.ID == uid {
			return true
		}
	}
	return false
}

func (x *Expander) expandMaster(master model.CalendarEvent, overrides []model.CalendarEvent, rangeStart, rangeEnd time.Time) ([]model.CalendarEvent, error) {
	duration := master.End.UTC.Sub(master.Start.UTC)

	var instants []time.Time
	if master.RRule != "" {
		occ, err := x.ruleOccurrences(master, rangeStart, rangeEnd, duration)
		if err != nil {
			return nil, err
		}
		instants = append(instants, occ...)
	}
	instants = append(instants, master.RDates...)
	instants = suppressExcluded(instants, master.ExDates, x.cfg.ExdateToleranceSecs)

	overrideAt := map[int64]model.CalendarEvent{}
	for _, ov := range overrides {
		overrideAt[ov.RecurrenceID.UTC().Unix()] = ov
	}

	sort.Slice(instants, func(i, j int) bool { return instants[i].Before(instants[j]) })

	var out []model.CalendarEvent
	seen := 0
	for _, instant := range instants {
		if seen >= x.cfg.MaxOccurrences {
			break
		}
		instEnd := instant.Add(duration)
		if !instant.Before(rangeEnd) || !instEnd.After(rangeStart) {
			continue
		}
		if ov, matched := overrideAt[instant.Unix()]; matched {
			out = append(out, ov)
			seen++
			continue
		}
		inst := master
		inst.ID = fmt.Sprintf("%s#%d", master.ID, instant.Unix())
		inst.IsRecurring = false
		inst.IsExpandedInstance = true
		inst.RRuleMasterUID = master.ID
		inst.RRule = ""
		inst.RDates = nil
		inst.ExDates = nil
		t := instant
		inst.RecurrenceID = &t
		inst.Start = model.TimeRef{Wall: instant.In(master.Start.Wall.Location()), TZID: master.Start.TZID, UTC: instant, AllDay: master.Start.AllDay}
		inst.End = model.TimeRef{Wall: instEnd.In(master.End.Wall.Location()), TZID: master.End.TZID, UTC: instEnd, AllDay: master.End.AllDay}
		out = append(out, inst)
		seen++
	}

	for at, ov := range overrideAt {
		stillNeeded := true
		for _, o := range out {
			if o.RecurrenceID != nil && o.RecurrenceID.Unix() == at {
				stillNeeded = false
				break
			}
		}
		if stillNeeded && ov.Start.UTC.Before(rangeEnd) && ov.End.UTC.After(rangeStart) {
			out = append(out, ov)
		}
	}

	return out, nil
}

// ruleOccurrences walks the RRULE one occurrence at a time via rule.After,
// so a pathological rule (e.g. SECONDLY over decades) never pays the cost of
// materializing occurrences past whatever this worker actually gets to
// consume before PerRuleBudget or MaxOccurrences cuts it off. Every
// YieldEvery occurrences it calls runtime.Gosched() so a slow rule actually
// gives up the processor rather than just getting flagged after the fact.
// Unbounded rules (no COUNT/UNTIL) are clamped to start no earlier than
// InfiniteRuleLookback before rangeStart.
func (x *Expander) ruleOccurrences(master model.CalendarEvent, rangeStart, rangeEnd time.Time, duration time.Duration) ([]time.Time, error) {
	dtstart := master.Start.UTC
	lowerBound := rangeStart.Add(-x.cfg.InfiniteRuleLookback)
	effectiveStart := dtstart
	upperRule := strings.ToUpper(master.RRule)
	bounded := strings.Contains(upperRule, "COUNT=") || strings.Contains(upperRule, "UNTIL=")
	if !bounded && dtstart.Before(lowerBound) {
		effectiveStart = lowerBound
	}

	ruleStr := "DTSTART:" + effectiveStart.Format("20060102T150405Z") + "\nRRULE:" + master.RRule
	rule, err := rrule.StrToRRule(ruleStr)
	if err != nil {
		return nil, errs.New(errs.KindRRuleParseError, master.ID, "invalid RRULE: "+master.RRule, err)
	}

	windowStart := rangeStart.Add(-duration)
	windowEnd := rangeEnd.Add(duration)
	deadline := time.Now().Add(x.cfg.PerRuleBudget)

	var out []time.Time
	cursor := windowStart
	inclusive := true
	for i := 1; ; i++ {
		occ := rule.After(cursor, inclusive)
		if occ.IsZero() || occ.After(windowEnd) {
			break
		}
		out = append(out, occ)
		cursor = occ
		inclusive = false

		if len(out) >= x.cfg.MaxOccurrences {
			break
		}
		if i%x.cfg.YieldEvery == 0 {
			runtime.Gosched()
			if time.Now().After(deadline) {
				return out, errs.New(errs.KindRRuleBudgetExceeded, master.ID, "rrule expansion exceeded per-rule time budget", nil)
			}
		}
	}
	return out, nil
}

// suppressExcluded drops any instant within toleranceSecs of an EXDATE,
// matching the "moved instance" tolerance from §4.3: feed-supplied EXDATE
// timestamps occasionally drift a few seconds from the RRULE-computed
// instant they are meant to cancel.
func suppressExcluded(instants, exdates []time.Time, toleranceSecs int) []time.Time {
	if len(exdates) == 0 {
		return instants
	}
	tol := time.Duration(toleranceSecs) * time.Second
	var out []time.Time
	for _, inst := range instants {
		excluded := false
		for _, ex := range exdates {
			d := inst.Sub(ex)
			if d < 0 {
				d = -d
			}
			if d <= tol {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, inst)
		}
	}
	return out
}
