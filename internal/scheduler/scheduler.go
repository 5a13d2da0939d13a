// Package scheduler drives the periodic refresh cycle (spec C8): fetch
// every source, parse, expand recurrences, merge, filter, precompute voice
// responses, and publish a new window snapshot. Grounded in the teacher's
// cmd/ldap-dav/main.go lifecycle (start a goroutine, select on a timer and
// a cancellation signal) generalized from a one-shot server start into a
// repeating cycle.
package scheduler

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chimewatch/calendar-assistant/internal/clock"
	"github.com/chimewatch/calendar-assistant/internal/config"
	"github.com/chimewatch/calendar-assistant/internal/fetch"
	"github.com/chimewatch/calendar-assistant/internal/health"
	"github.com/chimewatch/calendar-assistant/internal/icsparse"
	"github.com/chimewatch/calendar-assistant/internal/model"
	"github.com/chimewatch/calendar-assistant/internal/pipeline"
	"github.com/chimewatch/calendar-assistant/internal/skipstore"
	"github.com/chimewatch/calendar-assistant/internal/voice/precompute"
	"github.com/chimewatch/calendar-assistant/internal/window"
	pkgical "github.com/chimewatch/calendar-assistant/pkg/ical"
)

// Scheduler owns the refresh timer and every component a refresh cycle
// needs to read from or write to.
type Scheduler struct {
	cfg       *config.Config
	clk       clock.Provider
	fetcher   *fetch.Orchestrator
	scanner   *icsparse.Scanner
	expander  *pkgical.Expander
	skips     skipstore.Store
	publisher *window.Publisher
	metrics   *health.Metrics
	tracker   *health.Tracker
	logger    zerolog.Logger
}

func New(
	cfg *config.Config,
	clk clock.Provider,
	fetcher *fetch.Orchestrator,
	scanner *icsparse.Scanner,
	expander *pkgical.Expander,
	skips skipstore.Store,
	publisher *window.Publisher,
	metrics *health.Metrics,
	tracker *health.Tracker,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		cfg: cfg, clk: clk, fetcher: fetcher, scanner: scanner, expander: expander,
		skips: skips, publisher: publisher, metrics: metrics, tracker: tracker, logger: logger,
	}
}

// Run blocks, firing a refresh immediately and then every cfg.Refresh.Interval
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)

	timer := time.NewTimer(s.cfg.Refresh.Interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.runOnce(ctx)
			timer.Reset(s.cfg.Refresh.Interval)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	cycleID := uuid.NewString()
	log := s.logger.With().Str("refresh_id", cycleID).Logger()
	started := time.Now()
	now := s.clk.Now()

	log.Info().Msg("refresh cycle starting")
	s.tracker.RecordAttempt(now)

	rawResponses, fetchErrs := s.fetcher.FetchAll(ctx, s.cfg.Sources)

	perSource := make([][]model.CalendarEvent, 0, len(s.cfg.Sources))
	sourceErrors := map[string]string{}
	successCount := 0
	allFailed := true

	for i, src := range s.cfg.Sources {
		if fetchErrs[i] != nil {
			sourceErrors[src.ID] = fetchErrs[i].Error()
			log.Warn().Err(fetchErrs[i]).Str("source", src.ID).Msg("fetch failed")
			continue
		}
		allFailed = false
		successCount++

		parseResult, err := s.scanner.Parse(ctx, bytes.NewReader(rawResponses[i].Body), src.ID)
		if err != nil {
			sourceErrors[src.ID] = err.Error()
			log.Warn().Err(err).Str("source", src.ID).Msg("parse failed")
			continue
		}
		for _, w := range parseResult.Warnings {
			log.Warn().Str("source", src.ID).Msg(w)
		}
		for _, sec := range parseResult.SecurityEvents {
			log.Warn().Str("source", src.ID).Str("kind", sec.Kind).Str("detail", sec.Detail).Msg("security event")
		}

		windowStart := now
		windowEnd := now.AddDate(0, 0, s.cfg.Window.ExpansionDays)
		expanded, err := s.expander.Expand(ctx, parseResult.Events, windowStart, windowEnd)
		if err != nil {
			sourceErrors[src.ID] = err.Error()
			log.Warn().Err(err).Str("source", src.ID).Msg("expansion failed")
			continue
		}
		perSource = append(perSource, expanded)
	}

	pc := model.NewProcessingContext(now)
	pc.Extra["per_source_events"] = perSource
	skipped, err := s.skips.Snapshot(ctx, now)
	if err != nil {
		log.Warn().Err(err).Msg("skip store snapshot failed")
		skipped = map[string]bool{}
	}
	pc.SkippedEventIDs = skipped

	result := pipeline.NewPostProcessingPipeline().Run(ctx, pc)
	for _, w := range result.Warnings {
		log.Warn().Msg(w)
	}
	if result.Err != nil {
		log.Warn().Err(result.Err).Msg("post-processing pipeline reported errors")
	}

	if allFailed {
		s.tracker.RecordDegraded("all sources failed")
	} else if len(sourceErrors) > 0 {
		s.tracker.RecordDegraded("one or more sources failed")
	} else {
		s.tracker.RecordSuccess(now, len(result.Events))
	}
	s.tracker.RecordHeartbeat(now, len(sourceErrors) == 0)

	useFallback := s.publisher.SmartFallback(result.Events, allFailed, successCount)

	var published *window.Snapshot
	if useFallback && s.publisher.Read() != nil {
		log.Warn().Msg("smart fallback: keeping prior window, version not bumped")
		published = s.publisher.Keep(s.tracker.Snapshot())
	} else {
		snap := window.Snapshot{
			PublishedAt:  now,
			WindowStart:  now,
			WindowEnd:    now.AddDate(0, 0, s.cfg.Window.ExpansionDays),
			Events:       result.Events,
			SourceErrors: sourceErrors,
			IsFallback:   useFallback,
			Health:       s.tracker.Snapshot(),
		}
		if !useFallback {
			snap.Precomputed = precompute.Build(result.Events, now, s.cfg.Timezone)
		}
		published = s.publisher.Publish(snap)
	}

	if s.metrics != nil {
		s.metrics.RefreshDuration.Observe(time.Since(started).Seconds())
		s.metrics.WindowEventCount.Set(float64(len(published.Events)))
	}

	log.Info().
		Int("events", len(published.Events)).
		Int64("version", published.Version).
		Bool("fallback", published.IsFallback).
		Dur("elapsed", time.Since(started)).
		Msg("refresh cycle complete")
}
