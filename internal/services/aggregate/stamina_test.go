package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/music-livereview/backend/internal/models"
)

func chainEvent(ts time.Time, reasonStart string) models.PlayEvent {
	return models.PlayEvent{Timestamp: ts.UTC(), ReasonStart: reasonStart}
}

func TestSegmentChainsEmpty(t *testing.T) {
	hourly := map[hourKey]*hourlyAgg{}
	segmentChains(nil, hourly)
	assert.Empty(t, hourly)
}

func TestSegmentChainsSingleEvent(t *testing.T) {
	ts := time.Date(2023, 4, 10, 14, 30, 0, 0, time.UTC) // Monday
	hourly := map[hourKey]*hourlyAgg{}
	segmentChains([]models.PlayEvent{chainEvent(ts, "clickrow")}, hourly)

	agg := hourly[hourKey{"2023-04-01", 1, 14}]
	require.NotNil(t, agg)
	assert.Equal(t, int64(1), agg.chainCount)
	assert.Equal(t, int64(1), agg.totalChainLength)
}

func TestSegmentChainsTrackdoneRun(t *testing.T) {
	// clickrow, trackdone, trackdone, fwdbtn, trackdone splits into a chain of
	// three and a chain of two. The first event's reason never matters; only
	// continuations are inspected.
	base := time.Date(2023, 4, 10, 9, 0, 0, 0, time.UTC)
	events := []models.PlayEvent{
		chainEvent(base, "clickrow"),
		chainEvent(base.Add(3*time.Minute), "trackdone"),
		chainEvent(base.Add(6*time.Minute), "trackdone"),
		chainEvent(base.Add(9*time.Minute), "fwdbtn"),
		chainEvent(base.Add(12*time.Minute), "trackdone"),
	}
	hourly := map[hourKey]*hourlyAgg{}
	segmentChains(events, hourly)

	agg := hourly[hourKey{"2023-04-01", 1, 9}]
	require.NotNil(t, agg)
	assert.Equal(t, int64(2), agg.chainCount)
	assert.Equal(t, int64(5), agg.totalChainLength)
}

func TestSegmentChainsAttributedToStartSlot(t *testing.T) {
	// A chain starting at 22:58 and running past midnight is attributed
	// entirely to the 22:00 slot of its first event.
	start := time.Date(2023, 4, 10, 22, 58, 0, 0, time.UTC)
	events := []models.PlayEvent{
		chainEvent(start, "playbtn"),
		chainEvent(start.Add(4*time.Minute), "trackdone"),
		chainEvent(start.Add(8*time.Minute), "trackdone"),
	}
	hourly := map[hourKey]*hourlyAgg{}
	segmentChains(events, hourly)

	require.Len(t, hourly, 1)
	agg := hourly[hourKey{"2023-04-01", 1, 22}]
	require.NotNil(t, agg)
	assert.Equal(t, int64(1), agg.chainCount)
	assert.Equal(t, int64(3), agg.totalChainLength)
}

func TestSegmentChainsConservation(t *testing.T) {
	// Every event belongs to exactly one chain, so the summed chain lengths
	// across all slots equal the event count.
	base := time.Date(2023, 4, 10, 9, 0, 0, 0, time.UTC)
	reasons := []string{"clickrow", "trackdone", "fwdbtn", "trackdone", "trackdone", "backbtn", "clickrow", "trackdone"}
	events := make([]models.PlayEvent, len(reasons))
	for i, r := range reasons {
		events[i] = chainEvent(base.Add(time.Duration(i)*47*time.Minute), r)
	}
	hourly := map[hourKey]*hourlyAgg{}
	segmentChains(events, hourly)

	var total, chains int64
	for _, agg := range hourly {
		total += agg.totalChainLength
		chains += agg.chainCount
	}
	assert.Equal(t, int64(len(events)), total)
	assert.Equal(t, int64(4), chains)
}

func TestSegmentChainsSharesBucketsWithAccumulator(t *testing.T) {
	// The segmenter folds into the same slot the accumulator's msPlayed lives
	// in, never clobbering it.
	ts := time.Date(2023, 4, 10, 14, 0, 0, 0, time.UTC)
	ev := models.PlayEvent{Timestamp: ts, MsPlayed: 60000, ReasonStart: "clickrow", ArtistName: "Band"}

	acc := newAccumulator()
	acc.observe(&ev)
	segmentChains([]models.PlayEvent{ev}, acc.hourly)

	agg := acc.hourly[hourKey{"2023-04-01", 1, 14}]
	require.NotNil(t, agg)
	assert.Equal(t, int64(60000), agg.msPlayed)
	assert.Equal(t, int64(1), agg.chainCount)
}
