package icsparse

import (
	"strings"

	"github.com/chimewatch/calendar-assistant/internal/model"
)

// rawStatusFields is the subset of a VEVENT's raw property values the status
// mapper needs, gathered once per event so the rule table stays pure.
type rawStatusFields struct {
	status    string // STATUS
	transp    string // TRANSP
	subject   string // SUMMARY
	vendorTag string // vendor busy-status marker, resolved via VendorMarkers
	vendorDel bool   // vendor deleted-occurrence marker present
}

type classification struct {
	status    model.CalendarStatus
	cancelled bool
	drop      bool // when set, parseEvent discards the event
}

type statusRule struct {
	name  string
	match func(rawStatusFields) bool
	apply func(rawStatusFields) classification
}

// VendorMarkers names the non-standard vendor properties this mapper
// consults, keyed by the logical marker the rules below test against.
// Configurable per the vendor-marker open question (see DESIGN.md); callers
// populate this from config before classification runs, so a future feed
// from a different vendor only needs a config change, not a code change.
var VendorMarkers = map[string]string{
	"deleted_prop":     "X-MICROSOFT-CDO-DELETED-OCCURRENCE",
	"busy_status_prop": "X-MICROSOFT-CDO-BUSYSTATUS",
}

// statusRules implements the eight priority-ordered rules from §4.5: first
// match wins.
var statusRules = []statusRule{
	{
		name:  "vendor-deleted",
		match: func(f rawStatusFields) bool { return f.vendorDel },
		apply: func(rawStatusFields) classification { return classification{status: model.StatusFree} },
	},
	{
		name: "vendor-free-following",
		match: func(f rawStatusFields) bool {
			return strings.EqualFold(f.vendorTag, "FREE") && hasFollowingPrefix(f.subject)
		},
		apply: func(rawStatusFields) classification {
			return classification{status: model.StatusTentative}
		},
	},
	{
		name:  "vendor-free",
		match: func(f rawStatusFields) bool { return strings.EqualFold(f.vendorTag, "FREE") },
		apply: func(rawStatusFields) classification { return classification{status: model.StatusFree} },
	},
	{
		name:  "cancelled",
		match: func(f rawStatusFields) bool { return strings.EqualFold(f.status, "CANCELLED") },
		apply: func(rawStatusFields) classification {
			return classification{status: model.StatusFree, cancelled: true}
		},
	},
	{
		name:  "tentative",
		match: func(f rawStatusFields) bool { return strings.EqualFold(f.status, "TENTATIVE") },
		apply: func(rawStatusFields) classification { return classification{status: model.StatusTentative} },
	},
	{
		name: "transparent-confirmed",
		match: func(f rawStatusFields) bool {
			return strings.EqualFold(f.transp, "TRANSPARENT") && strings.EqualFold(f.status, "CONFIRMED")
		},
		apply: func(rawStatusFields) classification { return classification{status: model.StatusTentative} },
	},
	{
		name:  "transparent",
		match: func(f rawStatusFields) bool { return strings.EqualFold(f.transp, "TRANSPARENT") },
		apply: func(rawStatusFields) classification { return classification{status: model.StatusFree} },
	},
	{
		name:  "following-prefix",
		match: func(f rawStatusFields) bool { return hasFollowingPrefix(f.subject) },
		apply: func(rawStatusFields) classification {
			return classification{status: model.StatusTentative}
		},
	},
	{
		name:  "default-busy",
		match: func(rawStatusFields) bool { return true },
		apply: func(rawStatusFields) classification { return classification{status: model.StatusBusy} },
	},
}

func hasFollowingPrefix(subject string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(subject)), "following:")
}

// classifyStatus walks statusRules in priority order and applies the first
// match.
func classifyStatus(f rawStatusFields) classification {
	for _, rule := range statusRules {
		if rule.match(f) {
			return rule.apply(f)
		}
	}
	return classification{status: model.StatusBusy}
}
