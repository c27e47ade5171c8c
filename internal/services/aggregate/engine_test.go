package aggregate

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/music-livereview/backend/internal/models"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrBool(v bool) *bool        { return &v }

// entry builds a well-formed music entry at the given RFC3339 timestamp.
func entry(ts string, ms float64, track, artist string, mods ...func(*models.StreamEntry)) models.StreamEntry {
	e := models.StreamEntry{
		Timestamp:  ts,
		MsPlayed:   ptrFloat(ms),
		TrackName:  track,
		ArtistName: artist,
	}
	if track != "" && artist != "" {
		e.TrackURI = "spotify:track:" + track + ":" + artist
		e.AlbumName = artist + " LP"
	}
	for _, mod := range mods {
		mod(&e)
	}
	return e
}

func withReasonStart(r string) func(*models.StreamEntry) {
	return func(e *models.StreamEntry) { e.ReasonStart = r }
}

func withReasonEnd(r string) func(*models.StreamEntry) {
	return func(e *models.StreamEntry) { e.ReasonEnd = r }
}

func withSkipped() func(*models.StreamEntry) {
	return func(e *models.StreamEntry) { e.Skipped = ptrBool(true) }
}

func withShuffle() func(*models.StreamEntry) {
	return func(e *models.StreamEntry) { e.Shuffle = ptrBool(true) }
}

func asPodcast(episode string) func(*models.StreamEntry) {
	return func(e *models.StreamEntry) {
		e.TrackName = ""
		e.TrackURI = ""
		e.AlbumName = ""
		e.ArtistName = ""
		e.EpisodeName = episode
		e.EpisodeURI = "spotify:episode:" + episode
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	eng := New(Options{})
	res := eng.Aggregate(nil)

	assert.Zero(t, res.Summary.TotalEntries)
	assert.Empty(t, res.ArtistBuckets)
	assert.Empty(t, res.TrackBuckets)
	assert.Empty(t, res.HourlyStatsBuckets)
	assert.Empty(t, res.Marathons)
	assert.False(t, res.Truncated)
	assert.False(t, res.Summary.DateFrom.IsZero())
}

func TestAggregateRejectsBadTimestamps(t *testing.T) {
	entries := []models.StreamEntry{
		{Timestamp: "", MsPlayed: ptrFloat(1000)},
		{Timestamp: "not-a-date", MsPlayed: ptrFloat(1000)},
		entry("2023-04-10T12:00:00Z", 180000, "Song", "Band"),
	}
	res := New(Options{}).Aggregate(entries)

	assert.Equal(t, int64(1), res.Summary.TotalEntries)
	assert.Equal(t, int64(2), res.SkippedEntries)
}

func TestAggregateCoercesBadDurations(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)
	neg := -500.0
	entries := []models.StreamEntry{
		{Timestamp: "2023-04-10T12:00:00Z", MsPlayed: &nan, ArtistName: "Band"},
		{Timestamp: "2023-04-10T12:05:00Z", MsPlayed: &inf, ArtistName: "Band"},
		{Timestamp: "2023-04-10T12:10:00Z", MsPlayed: &neg, ArtistName: "Band"},
		{Timestamp: "2023-04-10T12:15:00Z", ArtistName: "Band"},
	}
	res := New(Options{}).Aggregate(entries)

	// A bad duration is not disqualifying: all four events count, at 0 ms.
	assert.Equal(t, int64(4), res.Summary.TotalEntries)
	assert.Zero(t, res.Summary.TotalMsPlayed)
	assert.Zero(t, res.SkippedEntries)
}

func TestAggregateTruncatesAtCap(t *testing.T) {
	entries := make([]models.StreamEntry, 10)
	for i := range entries {
		ts := time.Date(2023, 4, 10, 12, i, 0, 0, time.UTC).Format(time.RFC3339)
		entries[i] = entry(ts, 60000, "Song", "Band")
	}
	res := New(Options{MaxEvents: 7}).Aggregate(entries)

	assert.True(t, res.Truncated)
	assert.Equal(t, int64(7), res.Summary.TotalEntries)
}

func TestAccumulatorOrderIndependence(t *testing.T) {
	entries := []models.StreamEntry{
		entry("2023-04-10T08:00:00Z", 180000, "Alpha", "Band A", withReasonStart("clickrow"), withReasonEnd("trackdone")),
		entry("2023-04-10T08:03:00Z", 120000, "Beta", "Band A", withReasonStart("trackdone"), withSkipped()),
		entry("2023-04-15T22:00:00Z", 200000, "Gamma", "Band B", withShuffle(), withReasonEnd("trackdone")),
		entry("2023-05-01T06:30:00Z", 90000, "Alpha", "Band A", withReasonStart("backbtn")),
		{Timestamp: "2023-05-02T10:00:00Z", MsPlayed: ptrFloat(300000), EpisodeName: "Ep 1", EpisodeURI: "spotify:episode:1"},
	}

	base := New(Options{}).Aggregate(entries)

	perm := make([]models.StreamEntry, len(entries))
	copy(perm, entries)
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		got := New(Options{}).Aggregate(perm)

		assert.Equal(t, base.Summary.TotalEntries, got.Summary.TotalEntries)
		assert.Equal(t, base.Summary.TotalMsPlayed, got.Summary.TotalMsPlayed)
		assert.Equal(t, base.Summary.UniqueTracks, got.Summary.UniqueTracks)
		assert.Equal(t, base.Summary.DateFrom, got.Summary.DateFrom)
		assert.Equal(t, base.Summary.DateTo, got.Summary.DateTo)
		// Materialized output is deterministically ordered, so slices compare
		// directly even across permuted input.
		assert.Equal(t, base.ArtistBuckets, got.ArtistBuckets)
		assert.Equal(t, base.TrackBuckets, got.TrackBuckets)
		assert.Equal(t, base.MonthlyTotals, got.MonthlyTotals)
		assert.Equal(t, base.TrackFirstPlays, got.TrackFirstPlays)
	}
}

func TestArtistMonthlyConservation(t *testing.T) {
	entries := []models.StreamEntry{
		entry("2023-04-10T08:00:00Z", 180000, "Alpha", "Band A"),
		entry("2023-04-11T09:00:00Z", 180000, "Beta", "Band B"),
		// No artist metadata: counted in totals, absent from artist buckets.
		{Timestamp: "2023-04-12T10:00:00Z", MsPlayed: ptrFloat(60000)},
		{Timestamp: "2023-04-13T10:00:00Z", MsPlayed: ptrFloat(60000), EpisodeName: "Ep"},
	}
	res := New(Options{}).Aggregate(entries)

	byMonth := map[string]int64{}
	for _, b := range res.ArtistBuckets {
		byMonth[b.Month] += b.PlayCount
	}
	for _, mt := range res.MonthlyTotals {
		assert.LessOrEqual(t, byMonth[mt.Month], mt.PlayCount)
	}
	require.Len(t, res.MonthlyTotals, 1)
	assert.Equal(t, int64(4), res.MonthlyTotals[0].PlayCount)
	assert.Equal(t, int64(2), byMonth["2023-04-01"])
}

func TestBucketInvariants(t *testing.T) {
	entries := []models.StreamEntry{
		entry("2023-04-08T08:00:00Z", 10000, "Alpha", "Band A", withSkipped()),                       // Saturday
		entry("2023-04-10T08:00:00Z", 180000, "Alpha", "Band A", withShuffle(), withReasonEnd("trackdone")), // Monday
		entry("2023-04-10T09:00:00Z", 20000, "Alpha", "Band A", withShuffle(), withReasonEnd("fwdbtn"), withSkipped()),
	}
	res := New(Options{}).Aggregate(entries)

	require.Len(t, res.ArtistBuckets, 1)
	ab := res.ArtistBuckets[0]
	assert.LessOrEqual(t, ab.SkipCount, ab.PlayCount)
	assert.Equal(t, ab.PlayCount, ab.WeekdayPlayCount+ab.WeekendPlayCount)
	assert.Equal(t, int64(1), ab.WeekendPlayCount)
	assert.Equal(t, int64(1), ab.WeekendSkipCount)

	require.Len(t, res.TrackBuckets, 1)
	tb := res.TrackBuckets[0]
	assert.LessOrEqual(t, tb.ShuffleTrackdoneCount, tb.ShufflePlayCount)
	assert.LessOrEqual(t, tb.TrackdoneCount+tb.FwdSkipCount, tb.PlayCount)
	assert.Equal(t, int64(2), tb.ShufflePlayCount)
	assert.Equal(t, int64(1), tb.ShuffleTrackdoneCount)
	assert.Equal(t, int64(2), tb.ShortPlayCount)
}

func TestPodcastClassification(t *testing.T) {
	entries := []models.StreamEntry{
		entry("2023-04-10T08:00:00Z", 180000, "Alpha", "Band A"),
		entry("2023-04-10T09:00:00Z", 2_400_000, "", "", asPodcast("Deep Dive")),
	}
	res := New(Options{}).Aggregate(entries)

	require.Len(t, res.MonthlyTotals, 1)
	mt := res.MonthlyTotals[0]
	assert.Equal(t, int64(2), mt.PlayCount)
	assert.Equal(t, int64(1), mt.PodcastPlayCount)
	assert.Equal(t, int64(2_400_000), mt.PodcastMsPlayed)
	// Podcast plays never reach the track buckets.
	assert.Len(t, res.TrackBuckets, 1)
	// But their listening time still lands in the hourly heatmap.
	var hourlyMs int64
	for _, h := range res.HourlyStatsBuckets {
		hourlyMs += h.MsPlayed
	}
	assert.Equal(t, res.Summary.TotalMsPlayed, hourlyMs)
}

func TestFirstPlayFallbackIdentity(t *testing.T) {
	noURI := entry("2023-03-05T10:00:00Z", 60000, "Alpha", "Band A")
	noURI.TrackURI = ""
	entries := []models.StreamEntry{
		noURI,
		entry("2023-04-10T08:00:00Z", 60000, "Alpha", "Band A"),
	}
	res := New(Options{}).Aggregate(entries)

	// Distinct identities: the URI-less play falls back to name+artist.
	require.Len(t, res.TrackFirstPlays, 2)
	months := map[string]string{}
	for _, fp := range res.TrackFirstPlays {
		months[fp.TrackKey] = fp.FirstPlayMonth
	}
	assert.Equal(t, "2023-03-01", months["Alpha\x00Band A"])
	assert.Equal(t, "2023-04-01", months["spotify:track:Alpha:Band A"])
}

func TestFirstPlayKeepsEarliestAcrossOrder(t *testing.T) {
	entries := []models.StreamEntry{
		entry("2023-06-10T08:00:00Z", 60000, "Alpha", "Band A"),
		entry("2023-01-02T08:00:00Z", 60000, "Alpha", "Band A"),
		entry("2023-03-15T08:00:00Z", 60000, "Alpha", "Band A"),
	}
	res := New(Options{}).Aggregate(entries)

	require.Len(t, res.TrackFirstPlays, 1)
	assert.Equal(t, "2023-01-01", res.TrackFirstPlays[0].FirstPlayMonth)
}

func TestProgressStages(t *testing.T) {
	var stages []Stage
	eng := New(Options{Progress: func(s Stage) { stages = append(stages, s) }})
	eng.Aggregate([]models.StreamEntry{entry("2023-04-10T08:00:00Z", 1000, "A", "B")})

	assert.Equal(t, []Stage{StageNormalizing, StageAccumulating, StageSegmenting, StageMaterializing}, stages)
}
