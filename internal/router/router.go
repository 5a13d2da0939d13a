// Package router assembles the HTTP surface: the voice webhook family under
// /api/alexa/*, the kiosk JSON API, and /healthz and /metrics. Grounded in
// the teacher's internal/router/{router,logging}.go (ServeMux plus a
// statusRecorder-based logging wrapper); the well-known CalDAV discovery
// routes are dropped since there is no DAV service in this system.
package router

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chimewatch/calendar-assistant/internal/config"
	"github.com/chimewatch/calendar-assistant/internal/kiosk"
	"github.com/chimewatch/calendar-assistant/internal/voice"
)

func New(cfg *config.Config, runner *voice.Runner, kioskHandlers *kiosk.Handlers, registry *voice.Registry, logger zerolog.Logger) http.Handler {
	r := &Router{config: cfg, runner: runner, kiosk: kioskHandlers, logger: logger}
	return r.setupRoutes(registry)
}

func (r *Router) setupRoutes(registry *voice.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", r.wrap(r.kiosk.HandleHealth))
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/next", r.wrap(r.kiosk.HandleEvents))
	mux.HandleFunc("/api/morning-summary", r.wrap(r.kiosk.HandleMorningSummary))

	for _, name := range []string{"next-meeting", "time-until-next", "done-for-day", "launch-summary", "morning-summary"} {
		if _, ok := registry.Lookup(name); !ok {
			continue
		}
		intentName := name
		path := "/api/alexa/" + intentName
		mux.HandleFunc(path, r.wrap(func(w http.ResponseWriter, req *http.Request) {
			r.runner.Handle(w, req, intentName)
		}))
	}

	return mux
}

// wrap applies the teacher's request-logging pattern: a statusRecorder
// capturing status/bytes, logged after the handler returns.
func (r *Router) wrap(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: 0, wroteHeader: false}

		h(rec, req)

		dur := time.Since(start)
		r.logger.Debug().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", statusOrDefault(rec.status)).
			Int("bytes", rec.bytes).
			Float64("duration_ms", float64(dur.Microseconds())/1000.0).
			Str("ip", realIP(req)).
			Msg("http request")
	}
}
