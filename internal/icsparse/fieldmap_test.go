package icsparse

import (
	"context"
	"strings"
	"testing"
	"time"
)

// TestParseExplicitOffsetDateTimeReinterpretsForDST covers a vendor export
// that bakes in a DATE-TIME's UTC offset directly (non-standard, but seen in
// the wild) rather than emitting "Z" or a bare floating local time. The
// supplied offset (-0500, standard time) is stale for an August instant in
// America/New_York, which is on daylight time (-0400); the parsed event
// must land on the wall-clock moment the zone's real DST rule implies, not
// the one the stale offset implies.
func TestParseExplicitOffsetDateTimeReinterpretsForDST(t *testing.T) {
	s := testScanner(t, DefaultLimits())
	ics := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:stale-offset@example.com\r\n" +
		"SUMMARY:Standup\r\n" +
		"DTSTART:20260803T090000-0500\r\n" +
		"DTEND:20260803T093000-0500\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	res, err := s.Parse(context.Background(), strings.NewReader(ics), "src1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("len(Events) = %d, want 1", len(res.Events))
	}

	want := time.Date(2026, 8, 3, 13, 0, 0, 0, time.UTC) // 09:00 EDT (-0400), not the stale -0500
	if !res.Events[0].Start.UTC.Equal(want) {
		t.Errorf("Start.UTC = %v, want %v (reinterpreted under the zone's real DST offset)", res.Events[0].Start.UTC, want)
	}
}
