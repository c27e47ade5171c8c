package aggregate

import (
	"github.com/music-livereview/backend/internal/models"
)

// segmentChains walks time-sorted events and folds auto-advance chain
// statistics into the hourly bucket map. A chain is a maximal run of
// consecutive events where every continuation started with reason
// "trackdone"; the whole chain is attributed to the slot its first event
// started in. Linear scan, constant memory beyond the bucket map.
//
// The segmenter owns the chain fields of hourlyAgg exclusively; the
// accumulator pass only ever touches msPlayed.
func segmentChains(sorted []models.PlayEvent, hourly map[hourKey]*hourlyAgg) {
	if len(sorted) == 0 {
		return
	}

	chainStart := sorted[0].Timestamp
	chainLength := int64(1)

	flush := func() {
		ts := chainStart.UTC()
		key := hourKey{models.MonthKey(ts), int(ts.Weekday()), ts.Hour()}
		agg := hourly[key]
		if agg == nil {
			agg = &hourlyAgg{}
			hourly[key] = agg
		}
		agg.totalChainLength += chainLength
		agg.chainCount++
	}

	for i := 1; i < len(sorted); i++ {
		if sorted[i].ReasonStart == models.ReasonTrackDone {
			chainLength++
			continue
		}
		flush()
		chainStart = sorted[i].Timestamp
		chainLength = 1
	}
	flush()
}
