package config

import (
	"testing"
	"time"
)

func TestLoadSingleSourceFallback(t *testing.T) {
	t.Setenv("ICS_URL", "https://example.com/cal.ics")
	t.Setenv("ALEXA_BEARER_TOKEN", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Sources) != 1 {
		t.Fatalf("len(Sources) = %d, want 1", len(cfg.Sources))
	}
	if cfg.Sources[0].ID != "default" {
		t.Errorf("Sources[0].ID = %q, want %q", cfg.Sources[0].ID, "default")
	}
	if cfg.Sources[0].URL != "https://example.com/cal.ics" {
		t.Errorf("Sources[0].URL = %q, want the configured ICS_URL", cfg.Sources[0].URL)
	}
}

func TestLoadIndexedSources(t *testing.T) {
	t.Setenv("ICS_SOURCES_0_URL", "https://example.com/personal.ics")
	t.Setenv("ICS_SOURCES_0_ID", "personal")
	t.Setenv("ICS_SOURCES_1_URL", "https://example.com/work.ics")
	t.Setenv("ICS_SOURCES_1_ID", "work")
	t.Setenv("ICS_SOURCES_1_AUTH", "bearer")
	t.Setenv("ICS_SOURCES_1_TOKEN", "work-token")
	t.Setenv("ALEXA_BEARER_TOKEN", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("len(Sources) = %d, want 2", len(cfg.Sources))
	}
	if cfg.Sources[0].ID != "personal" || cfg.Sources[1].ID != "work" {
		t.Errorf("Sources = %+v, want [personal work]", cfg.Sources)
	}
	if cfg.Sources[1].Token != "work-token" {
		t.Errorf("Sources[1].Token = %q, want %q", cfg.Sources[1].Token, "work-token")
	}
}

func TestLoadIndexedSourcesStopsAtFirstGap(t *testing.T) {
	t.Setenv("ICS_SOURCES_0_URL", "https://example.com/a.ics")
	t.Setenv("ICS_SOURCES_2_URL", "https://example.com/c.ics") // gap at index 1
	t.Setenv("ALEXA_BEARER_TOKEN", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Sources) != 1 {
		t.Fatalf("len(Sources) = %d, want 1 (loading stops at the first gap)", len(cfg.Sources))
	}
}

func TestLoadMissingSourcesErrors(t *testing.T) {
	t.Setenv("ALEXA_BEARER_TOKEN", "secret")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error when no ICS source is configured")
	}
}

func TestLoadMissingBearerTokenErrors(t *testing.T) {
	t.Setenv("ICS_URL", "https://example.com/cal.ics")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error when ALEXA_BEARER_TOKEN is unset")
	}
}

func TestLoadTestTimeOverride(t *testing.T) {
	t.Setenv("ICS_URL", "https://example.com/cal.ics")
	t.Setenv("ALEXA_BEARER_TOKEN", "secret")
	t.Setenv("TEST_TIME", "2026-08-03T09:00:00Z")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TestTime == nil {
		t.Fatal("expected TestTime to be set")
	}
	want := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	if !cfg.TestTime.Equal(want) {
		t.Errorf("TestTime = %v, want %v", *cfg.TestTime, want)
	}
}

func TestLoadInvalidTestTimeErrors(t *testing.T) {
	t.Setenv("ICS_URL", "https://example.com/cal.ics")
	t.Setenv("ALEXA_BEARER_TOKEN", "secret")
	t.Setenv("TEST_TIME", "not-a-time")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a malformed TEST_TIME")
	}
}

func TestLoadFocusTimeKeywordsDefaultAndOverride(t *testing.T) {
	t.Setenv("ICS_URL", "https://example.com/cal.ics")
	t.Setenv("ALEXA_BEARER_TOKEN", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.FocusTimeKeywords) == 0 {
		t.Fatal("expected default focus-time keywords")
	}

	t.Setenv("FOCUS_TIME_KEYWORDS", "heads down, quiet hours")
	cfg2, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg2.FocusTimeKeywords) != 2 || cfg2.FocusTimeKeywords[0] != "heads down" {
		t.Errorf("FocusTimeKeywords = %+v, want [heads down, quiet hours] trimmed", cfg2.FocusTimeKeywords)
	}
}
