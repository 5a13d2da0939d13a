package icsparse

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/chimewatch/calendar-assistant/internal/clock"
	"github.com/chimewatch/calendar-assistant/internal/errs"
	"github.com/chimewatch/calendar-assistant/internal/tzresolve"
)

func testScanner(t *testing.T, limits Limits) *Scanner {
	t.Helper()
	tz, err := tzresolve.New("America/New_York")
	if err != nil {
		t.Fatalf("tzresolve.New: %v", err)
	}
	return NewScanner(limits, clock.Real{}, tz, zerolog.Nop())
}

func oneEventICS(uid string) string {
	return "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:" + uid + "\r\n" +
		"SUMMARY:Standup\r\n" +
		"DTSTART:20260803T090000Z\r\n" +
		"DTEND:20260803T093000Z\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
}

func TestParseSingleEvent(t *testing.T) {
	s := testScanner(t, DefaultLimits())
	res, err := s.Parse(context.Background(), strings.NewReader(oneEventICS("a@example.com")), "src1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("len(Events) = %d, want 1", len(res.Events))
	}
	if res.Events[0].Subject != "Standup" {
		t.Errorf("Subject = %q, want %q", res.Events[0].Subject, "Standup")
	}
}

// TestParseFoldedLineAcrossChunkBoundary forces a tiny ChunkSize so the
// folded SUMMARY value is reconstructed from several Read calls, not just
// split on '\n' within a single buffer.
func TestParseFoldedLineAcrossChunkBoundary(t *testing.T) {
	ics := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:folded@example.com\r\n" +
		"SUMMARY:Folded \r\n" +
		" Line Summary\r\n" +
		"DTSTART:20260803T090000Z\r\n" +
		"DTEND:20260803T093000Z\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	limits := DefaultLimits()
	limits.ChunkSize = 8 // forces the fold sequence to straddle several reads
	s := testScanner(t, limits)

	res, err := s.Parse(context.Background(), strings.NewReader(ics), "src1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("len(Events) = %d, want 1", len(res.Events))
	}
	if res.Events[0].Subject != "Folded Line Summary" {
		t.Errorf("Subject = %q, want %q", res.Events[0].Subject, "Folded Line Summary")
	}
}

func TestParseDuplicateTupleCircuitBreaker(t *testing.T) {
	limits := DefaultLimits()
	limits.DuplicateTupleThreshold = 2

	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\n")
	for i := 0; i < 5; i++ {
		buf.WriteString("BEGIN:VEVENT\r\nUID:dup@example.com\r\nSUMMARY:Dup\r\nDTSTART:20260803T090000Z\r\nDTEND:20260803T093000Z\r\nEND:VEVENT\r\n")
	}
	buf.WriteString("END:VCALENDAR\r\n")

	s := testScanner(t, limits)
	res, err := s.Parse(context.Background(), &buf, "src1")
	if err == nil {
		t.Fatal("expected an upstream-corrupted error from the duplicate tuple circuit breaker")
	}
	var typed *errs.Error
	if !errors.As(err, &typed) || typed.Kind != errs.KindUpstreamCorrupted {
		t.Fatalf("error = %v, want a KindUpstreamCorrupted *errs.Error", err)
	}
	if len(res.SecurityEvents) == 0 {
		t.Error("expected a SecurityEvent to be recorded for the duplicate tuple overshoot")
	}
}

func TestParseMaxEventsPerStreamTruncates(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxEventsPerStream = 2

	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\n")
	for i := 0; i < 5; i++ {
		buf.WriteString("BEGIN:VEVENT\r\nUID:ev" + string(rune('a'+i)) + "@example.com\r\nSUMMARY:Ev\r\nDTSTART:20260803T090000Z\r\nDTEND:20260803T093000Z\r\nEND:VEVENT\r\n")
	}
	buf.WriteString("END:VCALENDAR\r\n")

	s := testScanner(t, limits)
	res, err := s.Parse(context.Background(), &buf, "src1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !res.Truncated {
		t.Error("expected Truncated=true once MaxEventsPerStream is hit")
	}
	if len(res.Events) != 2 {
		t.Errorf("len(Events) = %d, want 2 (capped)", len(res.Events))
	}
}

func TestParseMaxInputBytesFatal(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxInputBytes = 32
	limits.ChunkSize = 16

	s := testScanner(t, limits)
	_, err := s.Parse(context.Background(), strings.NewReader(oneEventICS("big@example.com")), "src1")
	if err == nil {
		t.Fatal("expected an input-too-large error")
	}
	var typed *errs.Error
	if !errors.As(err, &typed) || typed.Kind != errs.KindInputTooLarge {
		t.Fatalf("error = %v, want a KindInputTooLarge *errs.Error", err)
	}
}

func TestParseMissingUIDIsWarnedNotFatal(t *testing.T) {
	ics := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\n" +
		"BEGIN:VEVENT\r\nSUMMARY:No UID\r\nDTSTART:20260803T090000Z\r\nDTEND:20260803T093000Z\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:good@example.com\r\nSUMMARY:Good\r\nDTSTART:20260803T090000Z\r\nDTEND:20260803T093000Z\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	s := testScanner(t, DefaultLimits())
	res, err := s.Parse(context.Background(), strings.NewReader(ics), "src1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("len(Events) = %d, want 1 (the malformed VEVENT should be skipped, not fatal)", len(res.Events))
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning about the skipped VEVENT")
	}
}

func TestParseWallClockBudgetExceeded(t *testing.T) {
	limits := DefaultLimits()
	limits.WallClockBudget = 0 // exceeded immediately

	s := testScanner(t, limits)
	res, err := s.Parse(context.Background(), strings.NewReader(oneEventICS("a@example.com")), "src1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	found := false
	for _, se := range res.SecurityEvents {
		if se.Kind == "wall_clock_budget_exceeded" {
			found = true
		}
	}
	if !found {
		t.Error("expected a wall_clock_budget_exceeded security event")
	}
}
