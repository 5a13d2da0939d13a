// Package icsparse is the streaming ICS parser (spec C2): it decodes an
// untrusted byte stream incrementally, applying RFC 5545 line unfolding
// across chunk boundaries, and emits CalendarEvent skeletons one VEVENT at a
// time while enforcing the resource budgets in Limits. The chunked framing
// and budget enforcement here have no library analog in the example corpus
// (see DESIGN.md); per-event field decoding is delegated to go-ical once a
// complete VEVENT span is framed (fieldmap.go).
package icsparse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/chimewatch/calendar-assistant/internal/clock"
	"github.com/chimewatch/calendar-assistant/internal/errs"
	"github.com/chimewatch/calendar-assistant/internal/model"
	"github.com/chimewatch/calendar-assistant/internal/tzresolve"
)

type scanState int

const (
	stateIdle scanState = iota
	stateInCalendar
	stateInEvent
	stateDone
)

// SecurityEvent records a limit overshoot for audit logging, per spec §4.2:
// "any limit overshoot is reported as a SECURITY-class event."
type SecurityEvent struct {
	Kind   string
	Detail string
}

// ParseResult is everything one Parse call produces.
type ParseResult struct {
	Events           []model.CalendarEvent
	Warnings         []string
	SecurityEvents   []SecurityEvent
	CalendarMetadata map[string]string
	Truncated        bool // hit MaxEventsPerStream
}

// Scanner is the streaming parser. One Scanner may be reused across many
// Parse calls; it holds no per-stream state between calls.
type Scanner struct {
	limits   Limits
	clk      clock.Provider
	tz       *tzresolve.Resolver
	logger   zerolog.Logger
}

func NewScanner(limits Limits, clk clock.Provider, tz *tzresolve.Resolver, logger zerolog.Logger) *Scanner {
	return &Scanner{limits: limits, clk: clk, tz: tz, logger: logger}
}

// Parse reads r to completion (or until a hard limit aborts it), framing
// VEVENT blocks per the Idle/InCalendar/InEvent state machine.
func (s *Scanner) Parse(ctx context.Context, r io.Reader, sourceID string) (*ParseResult, error) {
	res := &ParseResult{CalendarMetadata: map[string]string{}}

	started := time.Now()
	state := stateIdle

	var totalBytes int64
	var iterations int
	warnedLarge := false

	var pendingLine []byte // unfolded logical line under construction
	var eventLines [][]byte
	seenTuples := map[string]int{}
	stopAccepting := false

	chunk := make([]byte, s.limits.ChunkSize)
	var carry []byte

	flushLogical := func(line []byte) {
		switch {
		case bytes.HasPrefix(line, []byte("BEGIN:VCALENDAR")):
			if state == stateIdle {
				state = stateInCalendar
			}
		case bytes.HasPrefix(line, []byte("END:VCALENDAR")):
			state = stateDone
		case bytes.HasPrefix(line, []byte("BEGIN:VEVENT")):
			if state == stateInCalendar {
				state = stateInEvent
				eventLines = eventLines[:0]
			}
		case bytes.HasPrefix(line, []byte("END:VEVENT")):
			if state == stateInEvent {
				state = stateInCalendar
				if !stopAccepting {
					ev, tuple, err := s.parseEventBlock(eventLines, sourceID)
					if err != nil {
						res.Warnings = append(res.Warnings, fmt.Sprintf("skipped VEVENT: %v", err))
					} else {
						seenTuples[tuple]++
						if seenTuples[tuple] > s.limits.DuplicateTupleThreshold {
							res.SecurityEvents = append(res.SecurityEvents, SecurityEvent{
								Kind:   "upstream_corrupted",
								Detail: fmt.Sprintf("tuple %q repeated %d times", tuple, seenTuples[tuple]),
							})
							state = stateDone
							return
						}
						res.Events = append(res.Events, *ev)
						if len(res.Events) >= s.limits.MaxEventsPerStream {
							stopAccepting = true
							res.Truncated = true
						}
					}
				}
			}
		default:
			if state == stateInEvent {
				eventLines = append(eventLines, append([]byte(nil), line...))
			} else if state == stateInCalendar && len(eventLines) == 0 {
				// calendar-level metadata (PRODID, VERSION, X-WR-CALNAME, ...)
				if i := bytes.IndexByte(line, ':'); i > 0 {
					res.CalendarMetadata[string(line[:i])] = string(line[i+1:])
				}
			}
		}
	}

	corrupted := false

abort:
	for {
		iterations++
		if iterations > s.limits.MaxIterations {
			res.SecurityEvents = append(res.SecurityEvents, SecurityEvent{Kind: "max_iterations_exceeded"})
			break
		}
		if time.Since(started) > s.limits.WallClockBudget {
			res.SecurityEvents = append(res.SecurityEvents, SecurityEvent{Kind: "wall_clock_budget_exceeded"})
			break
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		n, err := r.Read(chunk)
		if n > 0 {
			totalBytes += int64(n)
			if totalBytes > s.limits.WarnInputBytes && !warnedLarge {
				warnedLarge = true
				res.Warnings = append(res.Warnings, "InputTooLarge: stream exceeded warn threshold")
				res.SecurityEvents = append(res.SecurityEvents, SecurityEvent{Kind: "input_too_large_warn"})
			}
			if totalBytes > s.limits.MaxInputBytes {
				res.SecurityEvents = append(res.SecurityEvents, SecurityEvent{Kind: "input_too_large_fatal"})
				return res, errs.New(errs.KindInputTooLarge, sourceID, "stream exceeded max input size", nil)
			}

			data := chunk[:n]
			if len(carry) > 0 {
				data = append(append([]byte(nil), carry...), data...)
				carry = nil
			}

			lines := bytes.Split(data, []byte("\n"))
			// last element may be an incomplete line spanning into the next chunk
			carry = append([]byte(nil), lines[len(lines)-1]...)
			lines = lines[:len(lines)-1]

			for _, raw := range lines {
				raw = bytes.TrimSuffix(raw, []byte("\r"))
				if len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\t') {
					pendingLine = append(pendingLine, raw[1:]...)
					continue
				}
				if pendingLine != nil {
					flushLogical(pendingLine)
					if state == stateDone {
						corrupted = len(res.SecurityEvents) > 0
						pendingLine = nil
						break abort
					}
				}
				pendingLine = append([]byte(nil), raw...)
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return res, err
		}
		if n == 0 {
			break
		}
	}

	if pendingLine != nil {
		flushLogical(pendingLine)
	}
	if len(carry) > 0 {
		flushLogical(bytes.TrimSuffix(carry, []byte("\r")))
	}

	if corrupted {
		return res, errs.New(errs.KindUpstreamCorrupted, sourceID, "duplicate (UID, RECURRENCE-ID) tuple threshold exceeded", nil)
	}

	return res, nil
}
