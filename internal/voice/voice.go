// Package voice implements the composed voice-intent handler lifecycle
// (spec C10): validate params, authenticate, read the published window,
// serve a precomputed answer, fall back to a cache, then compute live.
// Grounded in the distilled spec's re-architecture note replacing a
// "subclass hierarchy of voice handlers sharing auth/validation" with plain
// composition — a static Intent table plus one Runner, in the same spirit as
// the teacher's internal/auth.Chain composing BasicAuth/BearerAuth instead
// of subclassing an AuthHandler base type.
package voice

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/chimewatch/calendar-assistant/internal/clock"
	"github.com/chimewatch/calendar-assistant/internal/health"
	"github.com/chimewatch/calendar-assistant/internal/model"
	"github.com/chimewatch/calendar-assistant/internal/voice/precompute"
	"github.com/chimewatch/calendar-assistant/internal/voice/respcache"
	"github.com/chimewatch/calendar-assistant/internal/window"
)

// Params is the decoded, validated set of query-string parameters passed to
// an intent's Run function.
type Params = respcache.Params

// WindowView is the read-only slice of window state an intent needs: the
// events in scope and the precomputed answers alongside them.
type WindowView struct {
	Events      []model.CalendarEvent
	Precomputed *precompute.Responses // nil when the snapshot carries none (a fallback publish)
	Version     int64
	Health      model.HealthSnapshot
	IsFallback  bool
}

// Response is what every intent produces.
type Response = respcache.Response

// Intent describes one voice capability: its parameter schema and how to
// answer it given a window view and the current time.
type Intent struct {
	Name          string
	RequiredParams []string
	Precomputable bool
	Cacheable     bool
	Run           func(params Params, win WindowView, now time.Time) (Response, error)
}

// Registry maps intent name to descriptor, built once at startup via
// NewRegistry — no init() side effects, no implicit decorator registration.
type Registry struct {
	intents map[string]Intent
}

func NewRegistry() *Registry {
	return &Registry{intents: make(map[string]Intent)}
}

func (r *Registry) Register(i Intent) {
	r.intents[i.Name] = i
}

func (r *Registry) Lookup(name string) (Intent, bool) {
	i, ok := r.intents[name]
	return i, ok
}

// Runner is the single composed lifecycle every intent request goes
// through: param validation, auth, window read, then the precomputed answer
// (a parameter-free request for a precomputable intent whose snapshot
// carries precomputed values skips the cache), else cache, then compute.
type Runner struct {
	registry    *Registry
	publisher   *window.Publisher
	cache       *respcache.Cache
	bearerToken string
	metrics     *health.Metrics
	clk         clock.Provider
	logger      zerolog.Logger
}

func NewRunner(registry *Registry, publisher *window.Publisher, cache *respcache.Cache, bearerToken string, metrics *health.Metrics, clk clock.Provider, logger zerolog.Logger) *Runner {
	return &Runner{registry: registry, publisher: publisher, cache: cache, bearerToken: bearerToken, metrics: metrics, clk: clk, logger: logger}
}

// Handle serves one voice webhook request for the named intent.
func (r *Runner) Handle(w http.ResponseWriter, req *http.Request, intentName string) {
	start := r.clk.Now()
	outcome := "error"
	defer func() {
		if r.metrics != nil {
			r.metrics.VoiceRequestDuration.WithLabelValues(intentName, outcome).Observe(time.Since(start).Seconds())
		}
	}()

	intent, ok := r.registry.Lookup(intentName)
	if !ok {
		http.Error(w, "unknown intent", http.StatusNotFound)
		return
	}

	params := Params{}
	for k := range req.URL.Query() {
		params[k] = req.URL.Query().Get(k)
	}
	for _, p := range intent.RequiredParams {
		if params[p] == "" {
			outcome = "bad_request"
			http.Error(w, "missing param: "+p, http.StatusBadRequest)
			return
		}
	}

	if !r.authenticate(req) {
		outcome = "unauthorized"
		w.Header().Set("WWW-Authenticate", `Bearer realm="voice"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	snap := r.publisher.Read()
	if snap == nil {
		outcome = "unavailable"
		http.Error(w, "window not yet published", http.StatusServiceUnavailable)
		return
	}

	win := WindowView{
		Events:      snap.Events,
		Precomputed: snap.Precomputed,
		Version:     snap.Version,
		Health:      snap.Health,
		IsFallback:  snap.IsFallback,
	}

	now := r.clk.Now()

	var resp Response
	var err error
	usePrecomputed := intent.Precomputable && len(params) == 0 && snap.Precomputed != nil
	if intent.Cacheable && r.cache != nil && !usePrecomputed {
		if cached, hit := r.cache.Get(intentName, snap.Version, params); hit {
			resp = cached
			outcome = "cache_hit"
			writeJSON(w, resp)
			return
		}
	}

	resp, err = intent.Run(params, win, now)
	if err != nil {
		outcome = "compute_error"
		r.logger.Warn().Err(err).Str("intent", intentName).Msg("voice intent failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if intent.Cacheable && r.cache != nil {
		r.cache.Set(intentName, snap.Version, params, resp)
	}
	outcome = "ok"
	writeJSON(w, resp)
}

func (r *Runner) authenticate(req *http.Request) bool {
	const prefix = "Bearer "
	h := req.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return false
	}
	token := h[len(prefix):]
	return subtle.ConstantTimeCompare([]byte(token), []byte(r.bearerToken)) == 1
}

func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	body := map[string]any{"speech_text": resp.SpeechText}
	if resp.SSML != "" {
		body["ssml"] = resp.SSML
	}
	for k, v := range resp.Payload {
		body[k] = v
	}
	_ = json.NewEncoder(w).Encode(body)
}
