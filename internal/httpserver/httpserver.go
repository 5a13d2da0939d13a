// Package httpserver wires every component into a runnable server: the
// scheduler's refresh loop, the voice registry and runner, and the kiosk
// API, then serves them behind one *http.Server. Grounded in the teacher's
// internal/httpserver.NewServer (construct dependencies, build the mux,
// return a Server plus a cleanup func), with the storage/directory
// construction replaced by this system's fetch/icsparse/expander/skipstore
// construction.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/chimewatch/calendar-assistant/internal/clock"
	"github.com/chimewatch/calendar-assistant/internal/config"
	"github.com/chimewatch/calendar-assistant/internal/fetch"
	"github.com/chimewatch/calendar-assistant/internal/health"
	"github.com/chimewatch/calendar-assistant/internal/icsparse"
	"github.com/chimewatch/calendar-assistant/internal/kiosk"
	"github.com/chimewatch/calendar-assistant/internal/pipeline"
	"github.com/chimewatch/calendar-assistant/internal/router"
	"github.com/chimewatch/calendar-assistant/internal/scheduler"
	"github.com/chimewatch/calendar-assistant/internal/skipstore"
	"github.com/chimewatch/calendar-assistant/internal/tzresolve"
	"github.com/chimewatch/calendar-assistant/internal/voice"
	"github.com/chimewatch/calendar-assistant/internal/voice/intents"
	"github.com/chimewatch/calendar-assistant/internal/voice/respcache"
	"github.com/chimewatch/calendar-assistant/internal/window"
	pkgical "github.com/chimewatch/calendar-assistant/pkg/ical"
)

type Server struct {
	http      *http.Server
	scheduler *scheduler.Scheduler
	logger    zerolog.Logger
}

func NewServer(cfg *config.Config, logger zerolog.Logger) (*Server, func(), error) {
	tz, err := tzresolve.New(cfg.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("httpserver: timezone: %w", err)
	}
	clk := clock.FromEnv(cfg.TestTime)

	var skips skipstore.Store
	if cfg.SkipStorePath != "" {
		sqliteStore, err := skipstore.NewSQLite(cfg.SkipStorePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("httpserver: skip store: %w", err)
		}
		skips = sqliteStore
	} else {
		skips = skipstore.NewMemory()
	}

	reg := prometheus.NewRegistry()
	metrics := health.NewMetrics(reg)
	tracker := health.NewTracker()

	if len(cfg.VendorMarkers) > 0 {
		icsparse.VendorMarkers = cfg.VendorMarkers
	}
	pipeline.SetDefaultFilterConfig(pipeline.FilterConfig{
		FocusTimeKeywords: cfg.FocusTimeKeywords,
		FollowUpPrefixes:  cfg.FollowUpPrefixes,
	})

	fetcher := fetch.NewOrchestrator(cfg.Fetch.Concurrency, cfg.Fetch.MaxRetries, cfg.Fetch.RetryBackoffFactor, metrics, logger)
	scanner := icsparse.NewScanner(icsparse.DefaultLimits(), clk, tz, logger)
	expander := pkgical.NewExpander(pkgical.ExpanderConfig{
		Concurrency:          cfg.RRule.Concurrency,
		YieldEvery:           cfg.RRule.YieldEvery,
		MaxOccurrences:       cfg.RRule.MaxOccurrences,
		PerRuleBudget:        cfg.RRule.PerRuleBudgetMillis,
		ExdateToleranceSecs:  cfg.RRule.ExdateToleranceSecs,
		InfiniteRuleLookback: cfg.RRule.InfiniteRuleLookback,
	}, logger)

	publisher := window.NewPublisher()

	sched := scheduler.New(cfg, clk, fetcher, scanner, expander, skips, publisher, metrics, tracker, logger)

	registry := intents.NewRegistry()
	cache := respcache.New()
	runner := voice.NewRunner(registry, publisher, cache, cfg.Auth.BearerToken, metrics, clk, logger)
	kioskHandlers := kiosk.New(publisher)

	mux := router.New(cfg, runner, kioskHandlers, registry, logger)

	srv := &Server{
		http: &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		scheduler: sched,
		logger:    logger,
	}

	cleanup := func() {
		if closer, ok := skips.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	logger.Info().Msgf("listening on %s", cfg.HTTP.Addr)
	return srv, cleanup, nil
}

// Start runs the refresh scheduler in the background and blocks serving
// HTTP until the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	go s.scheduler.Run(ctx)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
