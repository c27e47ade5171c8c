package aggregate

import (
	"time"

	"github.com/music-livereview/backend/internal/models"
)

// Map keys for the four bucket maps. Months are kept in their string wire
// form ("YYYY-MM-01") so the same value keys the map and the output record.
type (
	artistKey struct {
		month  string
		artist string
	}

	trackKey struct {
		month  string
		track  string
		artist string
	}

	hourKey struct {
		month string
		dow   int
		hour  int
	}
)

// artistAgg accumulates one month of plays for one artist.
type artistAgg struct {
	playCount        int64
	msPlayed         int64
	skipCount        int64
	deliberateCount  int64
	servedCount      int64
	weekdayPlayCount int64
	weekendPlayCount int64
	weekdaySkipCount int64
	weekendSkipCount int64
}

// trackAgg accumulates one month of plays for one track. Album name and URI
// are carried from the first event that named them.
type trackAgg struct {
	albumName             string
	trackURI              string
	playCount             int64
	msPlayed              int64
	skipCount             int64
	backCount             int64
	shufflePlayCount      int64
	shuffleTrackdoneCount int64
	deliberateCount       int64
	servedCount           int64
	shortPlayCount        int64
	trackdoneCount        int64
	fwdSkipCount          int64
}

// hourlyAgg accumulates one (month, weekday, hour) slot. msPlayed is owned by
// the accumulator pass; the chain fields are owned by the stamina segmenter.
type hourlyAgg struct {
	msPlayed         int64
	totalChainLength int64
	chainCount       int64
}

// monthlyAgg accumulates one month's totals across all entries.
type monthlyAgg struct {
	playCount        int64
	msPlayed         int64
	podcastPlayCount int64
	podcastMsPlayed  int64
	shuffleCount     int64
}

// accumulator is the order-independent bucket-building pass. All of its
// updates are commutative, so events may be observed in any order. It is
// owned by a single aggregation run and never shared.
type accumulator struct {
	artistMonthly map[artistKey]*artistAgg
	trackMonthly  map[trackKey]*trackAgg
	hourly        map[hourKey]*hourlyAgg
	monthlyTotals map[string]*monthlyAgg

	// firstPlays keeps the minimum timestamp per track identity.
	firstPlays map[string]time.Time

	totalMs      int64
	totalEntries int64

	uniqueTracks  map[string]struct{}
	uniqueArtists map[string]struct{}
	uniqueAlbums  map[string]struct{}

	dateFrom time.Time
	dateTo   time.Time
}

func newAccumulator() *accumulator {
	return &accumulator{
		artistMonthly: make(map[artistKey]*artistAgg),
		trackMonthly:  make(map[trackKey]*trackAgg),
		hourly:        make(map[hourKey]*hourlyAgg),
		monthlyTotals: make(map[string]*monthlyAgg),
		firstPlays:    make(map[string]time.Time),
		uniqueTracks:  make(map[string]struct{}),
		uniqueArtists: make(map[string]struct{}),
		uniqueAlbums:  make(map[string]struct{}),
	}
}

// observe folds a single validated event into every bucket map and the
// summary scalars. It is total over validated input: no event can fail here.
func (a *accumulator) observe(e *models.PlayEvent) {
	month := models.MonthKey(e.Timestamp)
	ts := e.Timestamp.UTC()
	dow := int(ts.Weekday())
	hour := ts.Hour()

	skipped := e.Skipped
	weekend := e.IsWeekend()
	deliberate := e.IsDeliberate()
	served := e.IsServed()

	a.totalEntries++
	a.totalMs += e.MsPlayed
	if e.TrackURI != "" {
		a.uniqueTracks[e.TrackURI] = struct{}{}
	}
	if e.ArtistName != "" {
		a.uniqueArtists[e.ArtistName] = struct{}{}
	}
	if e.AlbumName != "" {
		a.uniqueAlbums[e.AlbumName] = struct{}{}
	}
	if a.dateFrom.IsZero() || ts.Before(a.dateFrom) {
		a.dateFrom = ts
	}
	if a.dateTo.IsZero() || ts.After(a.dateTo) {
		a.dateTo = ts
	}

	if e.ArtistName != "" {
		agg := a.artistMonthly[artistKey{month, e.ArtistName}]
		if agg == nil {
			agg = &artistAgg{}
			a.artistMonthly[artistKey{month, e.ArtistName}] = agg
		}
		agg.playCount++
		agg.msPlayed += e.MsPlayed
		if skipped {
			agg.skipCount++
		}
		if deliberate {
			agg.deliberateCount++
		}
		if served {
			agg.servedCount++
		}
		if weekend {
			agg.weekendPlayCount++
			if skipped {
				agg.weekendSkipCount++
			}
		} else {
			agg.weekdayPlayCount++
			if skipped {
				agg.weekdaySkipCount++
			}
		}
	}

	if e.TrackName != "" && e.ArtistName != "" {
		key := trackKey{month, e.TrackName, e.ArtistName}
		agg := a.trackMonthly[key]
		if agg == nil {
			agg = &trackAgg{albumName: e.AlbumName, trackURI: e.TrackURI}
			a.trackMonthly[key] = agg
		}
		agg.playCount++
		agg.msPlayed += e.MsPlayed
		if skipped {
			agg.skipCount++
		}
		if e.WentBack() {
			agg.backCount++
		}
		if e.Shuffle {
			agg.shufflePlayCount++
			if e.IsTrackDone() {
				agg.shuffleTrackdoneCount++
			}
		}
		if deliberate {
			agg.deliberateCount++
		}
		if served {
			agg.servedCount++
		}
		if e.IsShortPlay() {
			agg.shortPlayCount++
		}
		if e.IsTrackDone() {
			agg.trackdoneCount++
		}
		if e.IsFwdSkip() {
			agg.fwdSkipCount++
		}
	}

	// Hourly listening time counts every event, podcast-only plays included.
	hAgg := a.hourly[hourKey{month, dow, hour}]
	if hAgg == nil {
		hAgg = &hourlyAgg{}
		a.hourly[hourKey{month, dow, hour}] = hAgg
	}
	hAgg.msPlayed += e.MsPlayed

	if id := e.TrackIdentity(); id != "" {
		if existing, ok := a.firstPlays[id]; !ok || ts.Before(existing) {
			a.firstPlays[id] = ts
		}
	}

	mt := a.monthlyTotals[month]
	if mt == nil {
		mt = &monthlyAgg{}
		a.monthlyTotals[month] = mt
	}
	mt.playCount++
	mt.msPlayed += e.MsPlayed
	if e.IsPodcast() {
		mt.podcastPlayCount++
		mt.podcastMsPlayed += e.MsPlayed
	}
	if e.Shuffle {
		mt.shuffleCount++
	}
}

// summary returns the scalar summary. Empty input yields now for both ends of
// the date range, matching the historical wire behavior.
func (a *accumulator) summary(now time.Time) models.SessionSummary {
	from, to := a.dateFrom, a.dateTo
	if from.IsZero() {
		from = now.UTC()
	}
	if to.IsZero() {
		to = now.UTC()
	}
	return models.SessionSummary{
		TotalMsPlayed: a.totalMs,
		TotalEntries:  a.totalEntries,
		UniqueTracks:  int64(len(a.uniqueTracks)),
		UniqueArtists: int64(len(a.uniqueArtists)),
		UniqueAlbums:  int64(len(a.uniqueAlbums)),
		DateFrom:      from,
		DateTo:        to,
	}
}
