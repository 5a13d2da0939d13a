// Package pipeline implements the merge, filter, and prioritization stages
// (spec C4-C6) as a small Stage/Pipeline chain, grounded in the teacher's
// layered "decode, mutate, re-encode, tolerate partial failure" style
// (pkg/ical/ical.go) generalized to events instead of ICS bytes.
package pipeline

import (
	"hash/maphash"

	"github.com/chimewatch/calendar-assistant/internal/model"
)

var dedupSeed = maphash.MakeSeed()

// Merge combines events from every source into one deduplicated slice.
// Two events collide when their DedupKey matches; the first-seen copy wins
// and later collisions are discarded, per the dedup rule's "first occurrence
// wins" tie-break.
func Merge(perSource [][]model.CalendarEvent) model.StageResult {
	res := model.StageResult{Success: true}

	seen := make(map[uint64]struct{})
	for _, source := range perSource {
		for _, ev := range source {
			res.EventsIn++
			h := hashKey(ev.Key())
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			res.Events = append(res.Events, ev)
		}
	}
	res.EventsOut = len(res.Events)
	return res
}

func hashKey(k model.DedupKey) uint64 {
	var h maphash.Hash
	h.SetSeed(dedupSeed)
	h.WriteString(k.UID)
	h.WriteByte(0)
	h.WriteString(k.Subject)
	h.WriteByte(0)
	writeInt64(&h, k.StartUTC)
	writeInt64(&h, k.EndUTC)
	writeInt64(&h, k.RecurrenceID)
	if k.IsAllDay {
		h.WriteByte(1)
	}
	return h.Sum64()
}

func writeInt64(h *maphash.Hash, v int64) {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	h.Write(b[:])
}
