// Package model holds the value types shared by the event pipeline, the
// window publisher, and the voice handlers. Nothing in this package talks to
// the network, a clock, or a file; it is data only.
package model

import "time"

// CalendarStatus is the merged busy/free classification of an event, derived
// by the status mapper (see internal/icsparse/status.go).
type CalendarStatus string

const (
	StatusBusy             CalendarStatus = "busy"
	StatusFree             CalendarStatus = "free"
	StatusTentative        CalendarStatus = "tentative"
	StatusOutOfOffice      CalendarStatus = "out_of_office"
	StatusWorkingElsewhere CalendarStatus = "working_elsewhere"
)

// AttendeeType mirrors the RFC 5545 CUTYPE parameter, narrowed to the values
// this system cares about.
type AttendeeType string

const (
	AttendeeIndividual AttendeeType = "individual"
	AttendeeRoom       AttendeeType = "room"
	AttendeeResource   AttendeeType = "resource"
	AttendeeGroup      AttendeeType = "group"
)

// Attendee is one ATTENDEE line of a VEVENT.
type Attendee struct {
	DisplayName    string
	Email          string
	Type           AttendeeType
	ResponseStatus string // PARTSTAT value, e.g. ACCEPTED, DECLINED, NEEDS-ACTION
}

// TimeRef is a wall-clock instant plus the timezone it was authored in, and
// the UTC instant that wall-clock resolves to under that zone. Keeping all
// three avoids re-deriving the UTC instant (and re-triggering DST
// auto-correction, see internal/tzresolve) every time a consumer wants it.
type TimeRef struct {
	Wall   time.Time // as parsed, in the event's own location
	TZID   string
	UTC    time.Time
	AllDay bool
}

// CalendarEvent is the immutable value this whole system revolves around.
// Once it is installed into a window version it is never mutated; a refresh
// produces a brand new slice of these.
type CalendarEvent struct {
	ID string // derived: UID, or UID+start for an expanded instance

	Subject      string
	BodyPreview  string
	Location     string

	Start TimeRef
	End   TimeRef

	IsAllDay bool

	Status       CalendarStatus
	IsCancelled  bool
	IsOrganizer  bool

	Attendees []Attendee

	IsRecurring        bool
	RRule              string      // raw RRULE value, master events only
	RDates             []time.Time // raw RDATE instants, master events only
	ExDates            []time.Time // raw EXDATE instants, master events only
	RecurrenceID       *time.Time  // original instant of a moved/overridden instance
	IsExpandedInstance bool
	RRuleMasterUID     string

	// FailedExpansion marks a recurring master whose RRULE could not be
	// expanded (RRuleParseError). Retained for diagnostics; downstream
	// listing stages should skip it.
	FailedExpansion bool

	CreatedAt  *time.Time
	ModifiedAt *time.Time

	IsOnlineMeeting  bool
	OnlineMeetingURL string

	// SourceID identifies which SourceSpec this event was fetched from,
	// used only for diagnostics and per-source warnings.
	SourceID string
}

// DedupKey is the compound identity the merger (C4) deduplicates on:
// (UID, subject, start_utc, end_utc, is_all_day, recurrence_id).
type DedupKey struct {
	UID          string
	Subject      string
	StartUTC     int64
	EndUTC       int64
	IsAllDay     bool
	RecurrenceID int64 // 0 when RecurrenceID is nil
}

// UID returns the event's recurrence identity (the RRULE master UID for an
// expanded instance, otherwise the event's own ID).
func (e *CalendarEvent) UID() string {
	if e.IsExpandedInstance {
		return e.RRuleMasterUID
	}
	return e.ID
}

// Key builds the merger's dedup key for this event.
func (e *CalendarEvent) Key() DedupKey {
	var rid int64
	if e.RecurrenceID != nil {
		rid = e.RecurrenceID.UTC().Unix()
	}
	return DedupKey{
		UID:          e.UID(),
		Subject:      e.Subject,
		StartUTC:     e.Start.UTC.Unix(),
		EndUTC:       e.End.UTC.Unix(),
		IsAllDay:     e.IsAllDay,
		RecurrenceID: rid,
	}
}
