// Package fetch retrieves each configured ICS source over HTTP, bounding
// concurrency with a semaphore and reusing one pooled *http.Client across
// every request (spec C1). Grounded in the teacher's internal/cache.Cache
// for the conditional-fetch (ETag/Last-Modified) cache, and in its
// getenv-configured timeout conventions for the client itself.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/chimewatch/calendar-assistant/internal/cache"
	"github.com/chimewatch/calendar-assistant/internal/errs"
	"github.com/chimewatch/calendar-assistant/internal/health"
	"github.com/chimewatch/calendar-assistant/internal/model"
)

// condEntry is what the conditional-fetch cache remembers per source.
type condEntry struct {
	etag         string
	lastModified string
	body         []byte
}

// Orchestrator fetches every configured source concurrently, bounded by
// Concurrency, retrying transient failures with exponential backoff and
// jitter.
type Orchestrator struct {
	client     *http.Client
	sem        *semaphore.Weighted
	maxRetries int
	backoff    float64
	cond       *cache.Cache[string, condEntry]
	metrics    *health.Metrics
	logger     zerolog.Logger
}

// NewOrchestrator builds the shared transport once: IPv4-only dialing and a
// small connection pool are enough for a handful of personal-calendar
// sources polled every few minutes, so there is no reason to let Go's
// default transport grow an unbounded pool of idle connections.
func NewOrchestrator(concurrency int64, maxRetries int, backoffFactor float64, metrics *health.Metrics, logger zerolog.Logger) *Orchestrator {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp4", addr)
		},
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		MaxConnsPerHost:     4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Orchestrator{
		client:     &http.Client{Transport: transport},
		sem:        semaphore.NewWeighted(concurrency),
		maxRetries: maxRetries,
		backoff:    backoffFactor,
		cond:       cache.New[string, condEntry](24 * time.Hour),
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchAll fetches every source concurrently and returns one RawIcsResponse
// (or error) per source, in the same order as sources.
func (o *Orchestrator) FetchAll(ctx context.Context, sources []model.SourceSpec) ([]model.RawIcsResponse, []error) {
	results := make([]model.RawIcsResponse, len(sources))
	fetchErrs := make([]error, len(sources))

	done := make(chan int, len(sources))
	for i, src := range sources {
		i, src := i, src
		go func() {
			if err := o.sem.Acquire(ctx, 1); err != nil {
				fetchErrs[i] = err
				done <- i
				return
			}
			defer o.sem.Release(1)
			resp, err := o.fetchOneWithRetry(ctx, src)
			results[i] = resp
			fetchErrs[i] = err
			done <- i
		}()
	}
	for range sources {
		<-done
	}
	return results, fetchErrs
}

func (o *Orchestrator) fetchOneWithRetry(ctx context.Context, src model.SourceSpec) (model.RawIcsResponse, error) {
	if o.metrics != nil {
		o.metrics.FetchAttemptsTotal.WithLabelValues(src.ID).Inc()
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffDelay(attempt, o.backoff)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return model.RawIcsResponse{}, ctx.Err()
			}
		}

		resp, err := o.fetchOnce(ctx, src)
		if err == nil {
			if o.metrics != nil {
				o.metrics.FetchSuccessesTotal.WithLabelValues(src.ID).Inc()
			}
			return resp, nil
		}
		lastErr = err

		var typed *errs.Error
		if errors.As(err, &typed) && !typed.Retryable() {
			return model.RawIcsResponse{}, err
		}
	}
	return model.RawIcsResponse{}, lastErr
}

func backoffDelay(attempt int, factor float64) time.Duration {
	base := time.Duration(float64(time.Second) * pow(factor, attempt-1))
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func (o *Orchestrator) fetchOnce(ctx context.Context, src model.SourceSpec) (model.RawIcsResponse, error) {
	timeout := src.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, src.URL, nil)
	if err != nil {
		return model.RawIcsResponse{}, errs.New(errs.KindFetchNetwork, src.ID, "building request", err)
	}

	switch src.Auth {
	case model.SourceAuthBasic:
		req.SetBasicAuth(src.Username, src.Password)
	case model.SourceAuthBearer:
		req.Header.Set("Authorization", "Bearer "+src.Token)
	}
	for k, v := range src.Headers {
		req.Header.Set(k, v)
	}

	if prior, ok := o.cond.Get(src.ID); ok {
		if prior.etag != "" {
			req.Header.Set("If-None-Match", prior.etag)
		}
		if prior.lastModified != "" {
			req.Header.Set("If-Modified-Since", prior.lastModified)
		}
	}

	resp, err := o.client.Do(req)
	if err != nil {
		kind := errs.KindFetchNetwork
		if reqCtx.Err() != nil {
			kind = errs.KindFetchTimeout
		}
		return model.RawIcsResponse{}, errs.New(kind, src.ID, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		prior, _ := o.cond.Get(src.ID)
		return model.RawIcsResponse{StatusCode: resp.StatusCode, Body: prior.body, ETag: prior.etag, LastModified: prior.lastModified}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return model.RawIcsResponse{}, errs.New(errs.KindFetchAuth, src.ID, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return model.RawIcsResponse{}, errs.New(errs.KindFetchNetwork, src.ID, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return model.RawIcsResponse{}, errs.New(errs.KindValidation, src.ID, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024*1024))
	if err != nil {
		return model.RawIcsResponse{}, errs.New(errs.KindFetchNetwork, src.ID, "reading body", err)
	}

	etag := resp.Header.Get("ETag")
	lastMod := resp.Header.Get("Last-Modified")
	o.cond.Set(src.ID, condEntry{etag: etag, lastModified: lastMod, body: body}, time.Now().Add(24*time.Hour))

	return model.RawIcsResponse{StatusCode: resp.StatusCode, Body: body, ETag: etag, LastModified: lastMod}, nil
}
