package icsparse

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/chimewatch/calendar-assistant/internal/model"
	"github.com/chimewatch/calendar-assistant/internal/tzresolve"
)

// explicitOffsetDateTime matches a non-standard DATE-TIME value carrying its
// own UTC offset (e.g. "20260803T090000-0500") rather than "Z" or a bare
// floating local time. RFC 5545 doesn't define this form, but some vendor
// exports emit it anyway, and the offset they bake in can go stale across a
// DST transition.
var explicitOffsetDateTime = regexp.MustCompile(`^\d{8}T\d{6}[+-]\d{4}$`)

// onlineMeetingPatterns match URL shapes that show up in LOCATION/DESCRIPTION
// for the two vendors seen across real personal-calendar exports.
var onlineMeetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https://teams\.microsoft\.com/l/meetup-join/\S+`),
	regexp.MustCompile(`https://\S+\.skype\.com/\S+`),
}

// parseEventBlock wraps one VEVENT's accumulated lines in a synthetic
// calendar envelope and decodes it with go-ical, the same decode-then-map
// approach the teacher's pkg/ical/recurrence.go parseEvent uses on a whole
// file. It returns the mapped event and the (UID, RECURRENCE-ID) dedup
// tuple used for the duplicate-tuple circuit breaker.
func (s *Scanner) parseEventBlock(lines [][]byte, sourceID string) (*model.CalendarEvent, string, error) {
	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//calendar-assistant//ics-scan//EN\r\nBEGIN:VEVENT\r\n")
	for _, l := range lines {
		buf.Write(l)
		buf.WriteString("\r\n")
	}
	buf.WriteString("END:VEVENT\r\nEND:VCALENDAR\r\n")

	cal, err := ical.NewDecoder(&buf).Decode()
	if err != nil {
		return nil, "", fmt.Errorf("decode VEVENT span: %w", err)
	}

	var comp *ical.Component
	for _, c := range cal.Children {
		if c.Name == ical.CompEvent {
			comp = c
			break
		}
	}
	if comp == nil {
		return nil, "", fmt.Errorf("no VEVENT in span")
	}

	ev := &model.CalendarEvent{SourceID: sourceID}

	uidProp := comp.Props.Get(ical.PropUID)
	if uidProp == nil {
		return nil, "", fmt.Errorf("missing UID")
	}
	ev.ID = uidProp.Value

	if p := comp.Props.Get(ical.PropSummary); p != nil {
		ev.Subject = p.Value
	}
	if p := comp.Props.Get(ical.PropDescription); p != nil {
		ev.BodyPreview = p.Value
	}
	if p := comp.Props.Get(ical.PropLocation); p != nil {
		ev.Location = p.Value
	}

	dtstart := comp.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		return nil, "", fmt.Errorf("missing DTSTART")
	}
	startRef, err := s.parseTimeRef(dtstart)
	if err != nil {
		return nil, "", fmt.Errorf("invalid DTSTART: %w", err)
	}
	ev.Start = startRef
	ev.IsAllDay = startRef.AllDay

	if dtend := comp.Props.Get(ical.PropDateTimeEnd); dtend != nil {
		endRef, err := s.parseTimeRef(dtend)
		if err != nil {
			return nil, "", fmt.Errorf("invalid DTEND: %w", err)
		}
		ev.End = endRef
	} else if dur := comp.Props.Get(ical.PropDuration); dur != nil {
		d, err := parseISODuration(dur.Value)
		if err != nil {
			return nil, "", fmt.Errorf("invalid DURATION: %w", err)
		}
		ev.End = model.TimeRef{Wall: startRef.Wall.Add(d), TZID: startRef.TZID, UTC: startRef.UTC.Add(d), AllDay: startRef.AllDay}
	} else if startRef.AllDay {
		ev.End = model.TimeRef{Wall: startRef.Wall.Add(24 * time.Hour), TZID: startRef.TZID, UTC: startRef.UTC.Add(24 * time.Hour), AllDay: true}
	} else {
		ev.End = model.TimeRef{Wall: startRef.Wall.Add(time.Hour), TZID: startRef.TZID, UTC: startRef.UTC.Add(time.Hour)}
	}

	if p := comp.Props.Get(ical.PropRecurrenceRule); p != nil {
		ev.IsRecurring = true
		ev.RRuleMasterUID = ev.ID
		ev.RRule = p.Value
	}

	for _, p := range comp.Props.Values(ical.PropRecurrenceDates) {
		dates, err := parseMultiValueDates(p.Value)
		if err == nil {
			ev.RDates = append(ev.RDates, dates...)
			ev.IsRecurring = true
			ev.RRuleMasterUID = ev.ID
		}
	}
	for _, p := range comp.Props.Values(ical.PropExceptionDates) {
		dates, err := parseMultiValueDates(p.Value)
		if err == nil {
			ev.ExDates = append(ev.ExDates, dates...)
		}
	}

	if p := comp.Props.Get(ical.PropRecurrenceID); p != nil {
		recRef, err := s.parseTimeRef(p)
		if err == nil {
			t := recRef.UTC
			ev.RecurrenceID = &t
		}
	}

	if p := comp.Props.Get("CREATED"); p != nil {
		if t, err := time.Parse("20060102T150405Z", p.Value); err == nil {
			ev.CreatedAt = &t
		}
	}
	if p := comp.Props.Get("LAST-MODIFIED"); p != nil {
		if t, err := time.Parse("20060102T150405Z", p.Value); err == nil {
			ev.ModifiedAt = &t
		}
	}

	raw := rawStatusFields{subject: ev.Subject}
	if p := comp.Props.Get("STATUS"); p != nil {
		raw.status = p.Value
	}
	if p := comp.Props.Get("TRANSP"); p != nil {
		raw.transp = p.Value
	}
	if name := VendorMarkers["busy_status_prop"]; name != "" {
		if p := comp.Props.Get(name); p != nil {
			raw.vendorTag = p.Value
		}
	}
	if name := VendorMarkers["deleted_prop"]; name != "" {
		if p := comp.Props.Get(name); p != nil {
			raw.vendorDel = strings.EqualFold(p.Value, "1") || strings.EqualFold(p.Value, "TRUE")
		}
	}
	cls := classifyStatus(raw)
	if cls.drop {
		return nil, "", fmt.Errorf("event marked deleted by vendor occurrence marker")
	}
	ev.Status = cls.status
	ev.IsCancelled = cls.cancelled

	for _, attProp := range comp.Props.Values(ical.PropAttendee) {
		addr := strings.TrimPrefix(attProp.Value, "mailto:")
		addr = strings.TrimPrefix(addr, "MAILTO:")
		a := model.Attendee{
			Email:          addr,
			DisplayName:    attProp.Params.Get("CN"),
			ResponseStatus: attProp.Params.Get(ical.ParamParticipationStatus),
		}
		switch strings.ToUpper(attProp.Params.Get("CUTYPE")) {
		case "ROOM":
			a.Type = model.AttendeeRoom
		case "RESOURCE":
			a.Type = model.AttendeeResource
		case "GROUP":
			a.Type = model.AttendeeGroup
		default:
			a.Type = model.AttendeeIndividual
		}
		ev.Attendees = append(ev.Attendees, a)
	}

	if p := comp.Props.Get(ical.PropOrganizer); p != nil {
		organizer := strings.TrimPrefix(strings.TrimPrefix(p.Value, "mailto:"), "MAILTO:")
		ev.IsOrganizer = strings.EqualFold(organizer, sourceID)
	}

	haystack := ev.Location + " " + ev.BodyPreview
	for _, re := range onlineMeetingPatterns {
		if loc := re.FindString(haystack); loc != "" {
			ev.IsOnlineMeeting = true
			ev.OnlineMeetingURL = loc
			break
		}
	}

	tuple := ev.ID
	if ev.RecurrenceID != nil {
		tuple = fmt.Sprintf("%s#%d", ev.ID, ev.RecurrenceID.Unix())
	}

	return ev, tuple, nil
}

// parseMultiValueDates splits a comma-separated RDATE/EXDATE value into UTC
// instants, mirroring the teacher's parseMultipleDates but tolerant of a
// single malformed entry rather than discarding the whole property.
func parseMultiValueDates(raw string) ([]time.Time, error) {
	var out []time.Time
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch {
		case len(part) == 8:
			if t, err := time.ParseInLocation("20060102", part, time.UTC); err == nil {
				out = append(out, t)
			}
		case strings.HasSuffix(part, "Z"):
			if t, err := time.Parse("20060102T150405Z", part); err == nil {
				out = append(out, t)
			}
		case len(part) == 15:
			if t, err := time.ParseInLocation("20060102T150405", part, time.UTC); err == nil {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (s *Scanner) parseTimeRef(p *ical.Prop) (model.TimeRef, error) {
	val := p.Value
	tzid := p.Params.Get("TZID")

	switch {
	case len(val) == 8:
		t, err := time.ParseInLocation("20060102", val, time.UTC)
		if err != nil {
			return model.TimeRef{}, err
		}
		return model.TimeRef{Wall: t, TZID: "", UTC: t, AllDay: true}, nil
	case strings.HasSuffix(val, "Z"):
		t, err := time.Parse("20060102T150405Z", val)
		if err != nil {
			return model.TimeRef{}, err
		}
		return model.TimeRef{Wall: t, TZID: "UTC", UTC: t, AllDay: false}, nil
	case len(val) == 15:
		loc := s.tz.DefaultLocation()
		if tzid != "" {
			loc = s.tz.Resolve(tzid)
		}
		t, err := time.ParseInLocation("20060102T150405", val, loc)
		if err != nil {
			return model.TimeRef{}, err
		}
		return model.TimeRef{Wall: t, TZID: tzid, UTC: t.UTC(), AllDay: false}, nil
	case explicitOffsetDateTime.MatchString(val):
		loc := s.tz.DefaultLocation()
		if tzid != "" {
			loc = s.tz.Resolve(tzid)
		}
		t, err := time.Parse("20060102T150405-0700", val)
		if err != nil {
			return model.TimeRef{}, err
		}
		reinterpreted := tzresolve.ReinterpretForDST(t, loc)
		return model.TimeRef{Wall: reinterpreted, TZID: tzid, UTC: reinterpreted.UTC(), AllDay: false}, nil
	default:
		return model.TimeRef{}, fmt.Errorf("unrecognized date-time value %q", val)
	}
}

// parseISODuration implements the ISO 8601 duration subset RFC 5545 allows
// (PnDTnHnMnS / PnW), mirroring the teacher's hand-rolled parser since the
// stdlib has no ISO 8601 duration support.
func parseISODuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("duration %q missing P prefix", s)
	}
	s = s[1:]

	var total time.Duration
	if strings.HasSuffix(s, "W") {
		var weeks int
		if _, err := fmt.Sscanf(s, "%dW", &weeks); err != nil {
			return 0, fmt.Errorf("invalid week duration %q", s)
		}
		total = time.Duration(weeks) * 7 * 24 * time.Hour
		if neg {
			total = -total
		}
		return total, nil
	}

	datePart, timePart, hasTime := strings.Cut(s, "T")
	var days int
	if datePart != "" {
		if _, err := fmt.Sscanf(datePart, "%dD", &days); err != nil {
			return 0, fmt.Errorf("invalid date portion %q", datePart)
		}
	}
	total += time.Duration(days) * 24 * time.Hour

	if hasTime {
		var hours, minutes, seconds int
		rest := timePart
		if i := strings.Index(rest, "H"); i >= 0 {
			fmt.Sscanf(rest[:i], "%d", &hours)
			rest = rest[i+1:]
		}
		if i := strings.Index(rest, "M"); i >= 0 {
			fmt.Sscanf(rest[:i], "%d", &minutes)
			rest = rest[i+1:]
		}
		if i := strings.Index(rest, "S"); i >= 0 {
			fmt.Sscanf(rest[:i], "%d", &seconds)
		}
		total += time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	}

	if neg {
		total = -total
	}
	return total, nil
}
