// Package tzresolve implements the timezone resolution strategy from spec
// §4.12: map platform-specific names to IANA, resolve legacy aliases,
// validate against the platform zoneinfo database, and fall back to an
// operator-configured default (never UTC by default, since this is a
// personal-calendar deployment and UTC is rarely what the resident means).
package tzresolve

import (
	"fmt"
	"time"

	_ "time/tzdata" // self-contained zoneinfo on images that lack /usr/share/zoneinfo
)

// Resolver resolves an arbitrary TZID string to a *time.Location, falling
// back to a configured default zone when nothing else matches.
type Resolver struct {
	defaultZone string
	defaultLoc  *time.Location
}

// New builds a Resolver. defaultZone must itself be a loadable IANA zone;
// New fails fast if it is not, since every other resolution path falls back
// to it.
func New(defaultZone string) (*Resolver, error) {
	if defaultZone == "" {
		defaultZone = "America/New_York"
	}
	loc, err := time.LoadLocation(defaultZone)
	if err != nil {
		return nil, fmt.Errorf("tzresolve: default zone %q: %w", defaultZone, err)
	}
	return &Resolver{defaultZone: defaultZone, defaultLoc: loc}, nil
}

// Resolve implements the four-step strategy from §4.12.
func (r *Resolver) Resolve(tzid string) *time.Location {
	if tzid == "" {
		return r.defaultLoc
	}

	if iana, ok := windowsToIANA[tzid]; ok {
		if loc, err := time.LoadLocation(iana); err == nil {
			return loc
		}
	}

	name := tzid
	if modern, ok := legacyIANAAliases[tzid]; ok {
		name = modern
	}

	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}

	return r.defaultLoc
}

// DefaultLocation returns the operator-configured fallback zone.
func (r *Resolver) DefaultLocation() *time.Location { return r.defaultLoc }

// ReinterpretForDST implements the DST auto-correction rule: given a
// wall-clock time that was parsed with a UTC offset baked in (e.g. an
// "O" suffix form, or a stale feed-supplied offset), and the zone it should
// actually be interpreted under, recompute the instant using the zone's own
// DST-aware rules rather than trusting the supplied offset when they
// disagree. This matters both for feeds with stale offsets and for
// TEST_TIME clock overrides that must honor the zone's real DST schedule
// rather than whatever offset a fixture happened to embed.
func ReinterpretForDST(wall time.Time, loc *time.Location) time.Time {
	suppliedOffsetName, suppliedOffset := wall.Zone()
	_ = suppliedOffsetName

	reinterpreted := time.Date(
		wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(),
		loc,
	)
	_, correctOffset := reinterpreted.Zone()

	if correctOffset == suppliedOffset {
		return wall
	}
	return reinterpreted
}
