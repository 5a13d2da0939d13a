package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/chimewatch/calendar-assistant/internal/health"
	"github.com/chimewatch/calendar-assistant/internal/model"
)

func testMetrics() *health.Metrics {
	return health.NewMetrics(prometheus.NewRegistry())
}

func TestFetchAllSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))
	defer srv.Close()

	o := NewOrchestrator(4, 2, 2.0, testMetrics(), zerolog.Nop())
	sources := []model.SourceSpec{{ID: "s1", URL: srv.URL, RequestTimeout: 2 * time.Second}}

	results, errs := o.FetchAll(context.Background(), sources)
	if errs[0] != nil {
		t.Fatalf("fetch error: %v", errs[0])
	}
	if len(results[0].Body) == 0 {
		t.Error("expected a non-empty body")
	}
}

func TestFetchRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))
	defer srv.Close()

	o := NewOrchestrator(4, 2, 1.0, testMetrics(), zerolog.Nop())
	sources := []model.SourceSpec{{ID: "s1", URL: srv.URL, RequestTimeout: 2 * time.Second}}

	results, errs := o.FetchAll(context.Background(), sources)
	if errs[0] != nil {
		t.Fatalf("expected the retry to eventually succeed, got: %v", errs[0])
	}
	if len(results[0].Body) == 0 {
		t.Error("expected a non-empty body after retry")
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Errorf("calls = %d, want at least 2 (one failure, one retry)", calls)
	}
}

func TestFetchAuthFailureIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	o := NewOrchestrator(4, 3, 1.0, testMetrics(), zerolog.Nop())
	sources := []model.SourceSpec{{ID: "s1", URL: srv.URL, RequestTimeout: 2 * time.Second}}

	_, errs := o.FetchAll(context.Background(), sources)
	if errs[0] == nil {
		t.Fatal("expected an auth error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want exactly 1 (auth failures should not retry)", calls)
	}
}

func TestFetchBasicAuthHeader(t *testing.T) {
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))
	defer srv.Close()

	o := NewOrchestrator(4, 1, 1.0, testMetrics(), zerolog.Nop())
	sources := []model.SourceSpec{{
		ID: "s1", URL: srv.URL, RequestTimeout: 2 * time.Second,
		Auth: model.SourceAuthBasic, Username: "resident", Password: "hunter2",
	}}

	_, errs := o.FetchAll(context.Background(), sources)
	if errs[0] != nil {
		t.Fatalf("fetch error: %v", errs[0])
	}
	if gotUser != "resident" || gotPass != "hunter2" {
		t.Errorf("got basic auth (%q, %q), want (resident, hunter2)", gotUser, gotPass)
	}
}

func TestFetchConditionalNotModifiedReusesCachedBody(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("ETag", `"v1"`)
			w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		t.Error("expected the second request to carry If-None-Match")
	}))
	defer srv.Close()

	o := NewOrchestrator(4, 1, 1.0, testMetrics(), zerolog.Nop())
	sources := []model.SourceSpec{{ID: "s1", URL: srv.URL, RequestTimeout: 2 * time.Second}}

	first, errs1 := o.FetchAll(context.Background(), sources)
	if errs1[0] != nil {
		t.Fatalf("first fetch error: %v", errs1[0])
	}
	second, errs2 := o.FetchAll(context.Background(), sources)
	if errs2[0] != nil {
		t.Fatalf("second fetch error: %v", errs2[0])
	}
	if string(second[0].Body) != string(first[0].Body) {
		t.Errorf("second fetch body = %q, want the cached body %q", second[0].Body, first[0].Body)
	}
}
