// Package aggregate implements the streaming-history aggregation engine: a
// one-shot, I/O-free pipeline that folds a raw play-event log into compact,
// query-ready buckets and session records.
package aggregate

import (
	"github.com/music-livereview/backend/internal/models"
)

// DefaultMaxEvents caps how many validated events a single run will accept.
// Past the cap the run keeps its partial state and flags the result as
// truncated rather than growing without bound.
const DefaultMaxEvents = 5_000_000

// normalized is the output of the validation stage.
type normalized struct {
	// events holds the accepted, normalized play events in input order.
	events []models.PlayEvent

	// skipped counts entries rejected for a missing or unparseable timestamp.
	skipped int64

	// truncated is set when the event cap stopped further input.
	truncated bool
}

// normalizeEntries validates raw export entries and produces normalized play
// events. Rejection never aborts the run: bad entries are counted and
// dropped. Entries past maxEvents accepted events are not read at all.
func normalizeEntries(entries []models.StreamEntry, maxEvents int) normalized {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	out := normalized{events: make([]models.PlayEvent, 0, min(len(entries), maxEvents))}
	for i := range entries {
		if len(out.events) >= maxEvents {
			out.truncated = true
			break
		}
		ev, ok := entries[i].Normalize()
		if !ok {
			out.skipped++
			continue
		}
		out.events = append(out.events, ev)
	}
	return out
}
