package router

import (
	"github.com/rs/zerolog"

	"github.com/chimewatch/calendar-assistant/internal/config"
	"github.com/chimewatch/calendar-assistant/internal/kiosk"
	"github.com/chimewatch/calendar-assistant/internal/voice"
)

// Router wires the voice webhook family, the kiosk JSON API, and the health
// endpoint onto one http.ServeMux, the same structure the teacher's DAV
// router used for its own routes (request logging wrapped around a mux,
// rather than a framework's per-route middleware chain).
type Router struct {
	config *config.Config
	runner *voice.Runner
	kiosk  *kiosk.Handlers
	logger zerolog.Logger
}
