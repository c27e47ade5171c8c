// Package models contains the data structures used throughout the application.
package models

import "time"

// MonthKey formats an instant as the first-of-month date string ("YYYY-MM-01",
// UTC) used to key every monthly bucket. The string form is the wire format
// persisted by storage and consumed by the dashboard.
func MonthKey(t time.Time) string {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// ArtistBucket is one month of pre-aggregated listening for a single artist.
//
// Invariants (engine defects if violated): SkipCount <= PlayCount and
// WeekdayPlayCount + WeekendPlayCount == PlayCount.
type ArtistBucket struct {
	// Month is the first-of-month key, "YYYY-MM-01".
	Month string `json:"month" bson:"month"`

	// ArtistName is the artist this bucket aggregates.
	ArtistName string `json:"artistName" bson:"artistName" validate:"required"`

	// PlayCount is the number of plays.
	PlayCount int64 `json:"playCount" bson:"playCount" validate:"min=0"`

	// MsPlayed is the total listening time in milliseconds.
	MsPlayed int64 `json:"msPlayed" bson:"msPlayed" validate:"min=0"`

	// SkipCount is the number of plays the user skipped.
	SkipCount int64 `json:"skipCount" bson:"skipCount" validate:"min=0"`

	// DeliberateCount is the number of plays started by an explicit user action.
	DeliberateCount int64 `json:"deliberateCount" bson:"deliberateCount" validate:"min=0"`

	// ServedCount is the number of plays started by playback flow.
	ServedCount int64 `json:"servedCount" bson:"servedCount" validate:"min=0"`

	// WeekdayPlayCount is the number of plays on Monday through Friday, UTC.
	WeekdayPlayCount int64 `json:"weekdayPlayCount" bson:"weekdayPlayCount" validate:"min=0"`

	// WeekendPlayCount is the number of plays on Saturday or Sunday, UTC.
	WeekendPlayCount int64 `json:"weekendPlayCount" bson:"weekendPlayCount" validate:"min=0"`

	// WeekdaySkipCount is the number of skipped weekday plays.
	WeekdaySkipCount int64 `json:"weekdaySkipCount" bson:"weekdaySkipCount" validate:"min=0"`

	// WeekendSkipCount is the number of skipped weekend plays.
	WeekendSkipCount int64 `json:"weekendSkipCount" bson:"weekendSkipCount" validate:"min=0"`
}

// TrackBucket is one month of pre-aggregated listening for a single track.
//
// Invariants: ShuffleTrackdoneCount <= ShufflePlayCount and
// TrackdoneCount + FwdSkipCount <= PlayCount (a play may end by neither
// reason).
type TrackBucket struct {
	// Month is the first-of-month key, "YYYY-MM-01".
	Month string `json:"month" bson:"month"`

	// TrackName is the track title.
	TrackName string `json:"trackName" bson:"trackName" validate:"required"`

	// ArtistName is the album artist of the track.
	ArtistName string `json:"artistName" bson:"artistName" validate:"required"`

	// AlbumName is the album title, empty when the export doesn't carry one.
	AlbumName string `json:"albumName,omitempty" bson:"albumName,omitempty"`

	// TrackURI is the stable catalog URI, empty when the export doesn't carry one.
	TrackURI string `json:"spotifyTrackUri,omitempty" bson:"spotifyTrackUri,omitempty"`

	// PlayCount is the number of plays.
	PlayCount int64 `json:"playCount" bson:"playCount" validate:"min=0"`

	// MsPlayed is the total listening time in milliseconds.
	MsPlayed int64 `json:"msPlayed" bson:"msPlayed" validate:"min=0"`

	// SkipCount is the number of plays the user skipped.
	SkipCount int64 `json:"skipCount" bson:"skipCount" validate:"min=0"`

	// BackCount is the number of plays started via the back button (rewinds).
	BackCount int64 `json:"backCount" bson:"backCount" validate:"min=0"`

	// ShufflePlayCount is the number of plays with shuffle on.
	ShufflePlayCount int64 `json:"shufflePlayCount" bson:"shufflePlayCount" validate:"min=0"`

	// ShuffleTrackdoneCount is the number of shuffled plays that completed.
	ShuffleTrackdoneCount int64 `json:"shuffleTrackdoneCount" bson:"shuffleTrackdoneCount" validate:"min=0"`

	// DeliberateCount is the number of plays started by an explicit user action.
	DeliberateCount int64 `json:"deliberateCount" bson:"deliberateCount" validate:"min=0"`

	// ServedCount is the number of plays started by playback flow.
	ServedCount int64 `json:"servedCount" bson:"servedCount" validate:"min=0"`

	// ShortPlayCount is the number of plays under 30 seconds.
	ShortPlayCount int64 `json:"shortPlayCount" bson:"shortPlayCount" validate:"min=0"`

	// TrackdoneCount is the number of plays that ran to the end of the track.
	TrackdoneCount int64 `json:"trackdoneCount" bson:"trackdoneCount" validate:"min=0"`

	// FwdSkipCount is the number of plays ended with a forward skip.
	FwdSkipCount int64 `json:"fwdSkipCount" bson:"fwdSkipCount" validate:"min=0"`
}

// HourlyStatsBucket aggregates listening time and auto-advance chain stats for
// one (month, day-of-week, hour-of-day) slot. DayOfWeek is UTC with 0=Sunday;
// consumers remap to Monday-first for display. TotalChainLength/ChainCount is
// the average number of back-to-back auto-advanced tracks for chains starting
// in this slot.
type HourlyStatsBucket struct {
	// Month is the first-of-month key, "YYYY-MM-01".
	Month string `json:"month" bson:"month"`

	// DayOfWeek is the UTC weekday, 0=Sunday through 6=Saturday.
	DayOfWeek int `json:"dayOfWeek" bson:"dayOfWeek" validate:"min=0,max=6"`

	// HourOfDay is the UTC hour, 0 through 23.
	HourOfDay int `json:"hourOfDay" bson:"hourOfDay" validate:"min=0,max=23"`

	// MsPlayed is the total listening time in milliseconds.
	MsPlayed int64 `json:"msPlayed" bson:"msPlayed" validate:"min=0"`

	// TotalChainLength is the summed length of auto-advance chains starting here.
	TotalChainLength int64 `json:"totalChainLength" bson:"totalChainLength" validate:"min=0"`

	// ChainCount is the number of auto-advance chains starting here.
	ChainCount int64 `json:"chainCount" bson:"chainCount" validate:"min=0"`
}

// TrackFirstPlay records the earliest month a track identity was ever played.
// The identity is the catalog URI when the export carries one, otherwise the
// track/artist name pair joined with a NUL byte.
type TrackFirstPlay struct {
	// TrackKey is the stable track identity.
	TrackKey string `json:"spotifyTrackUri" bson:"trackKey" validate:"required"`

	// FirstPlayMonth is the earliest month of play, "YYYY-MM-01".
	FirstPlayMonth string `json:"firstPlayMonth" bson:"firstPlayMonth"`
}

// MonthlyTotal aggregates all listening for one month, regardless of whether
// the entries carried artist or track metadata.
type MonthlyTotal struct {
	// Month is the first-of-month key, "YYYY-MM-01".
	Month string `json:"month" bson:"month"`

	// PlayCount is the number of plays.
	PlayCount int64 `json:"playCount" bson:"playCount" validate:"min=0"`

	// MsPlayed is the total listening time in milliseconds.
	MsPlayed int64 `json:"msPlayed" bson:"msPlayed" validate:"min=0"`

	// PodcastPlayCount is the number of podcast plays.
	PodcastPlayCount int64 `json:"podcastPlayCount" bson:"podcastPlayCount" validate:"min=0"`

	// PodcastMsPlayed is the podcast listening time in milliseconds.
	PodcastMsPlayed int64 `json:"podcastMsPlayed" bson:"podcastMsPlayed" validate:"min=0"`

	// ShuffleCount is the number of plays with shuffle on.
	ShuffleCount int64 `json:"shuffleCount" bson:"shuffleCount" validate:"min=0"`
}

// Marathon is a gap-bounded listening session that met the marathon
// thresholds, ranked by duration among all qualifying sessions in the upload.
type Marathon struct {
	// StartTime is the effective start of the session (first event's timestamp
	// minus its played duration), UTC.
	StartTime time.Time `json:"startTime" bson:"startTime"`

	// EndTime is the timestamp of the last event in the session, UTC.
	EndTime time.Time `json:"endTime" bson:"endTime"`

	// DurationMs is the wall-clock span of the session in milliseconds.
	DurationMs int64 `json:"durationMs" bson:"durationMs" validate:"min=0"`

	// PlayCount is the number of events in the session.
	PlayCount int64 `json:"playCount" bson:"playCount" validate:"min=3"`

	// SkipCount is the number of skipped events in the session.
	SkipCount int64 `json:"skipCount" bson:"skipCount" validate:"min=0"`

	// SkipRate is SkipCount/PlayCount as a 0-100 percentage, one decimal.
	SkipRate float64 `json:"skipRate" bson:"skipRate" validate:"min=0,max=100"`

	// TopArtist is the artist with the most listening time in the session.
	TopArtist string `json:"topArtist,omitempty" bson:"topArtist,omitempty"`

	// TopTrack is the most-played track in the session.
	TopTrack string `json:"topTrack,omitempty" bson:"topTrack,omitempty"`

	// TopTrackArtist is the artist of the most-played track.
	TopTrackArtist string `json:"topTrackArtist,omitempty" bson:"topTrackArtist,omitempty"`

	// Rank is 1-based and dense, assigned after sorting by duration descending.
	Rank int `json:"rank" bson:"rank" validate:"min=1"`
}

// SessionSummary holds the scalar summary of an entire upload.
type SessionSummary struct {
	// TotalMsPlayed is the total listening time in milliseconds.
	TotalMsPlayed int64 `json:"totalMsPlayed" bson:"totalMsPlayed" validate:"min=0"`

	// TotalEntries is the number of validated events processed.
	TotalEntries int64 `json:"totalEntries" bson:"totalEntries" validate:"min=0"`

	// UniqueTracks is the number of distinct track URIs seen.
	UniqueTracks int64 `json:"uniqueTracks" bson:"uniqueTracks" validate:"min=0"`

	// UniqueArtists is the number of distinct artist names seen.
	UniqueArtists int64 `json:"uniqueArtists" bson:"uniqueArtists" validate:"min=0"`

	// UniqueAlbums is the number of distinct album names seen.
	UniqueAlbums int64 `json:"uniqueAlbums" bson:"uniqueAlbums" validate:"min=0"`

	// DateFrom is the earliest event timestamp, UTC.
	DateFrom time.Time `json:"dateFrom" bson:"dateFrom"`

	// DateTo is the latest event timestamp, UTC.
	DateTo time.Time `json:"dateTo" bson:"dateTo"`
}

// AggregationResult bundles everything one aggregation run produces. Its
// shape is the wire format persisted by storage and rendered by the dashboard:
// field names, millisecond units and the array forms must be preserved.
type AggregationResult struct {
	// Summary holds the scalar summary of the whole upload.
	Summary SessionSummary `json:"summary"`

	// ArtistBuckets is the flattened month×artist aggregate set.
	ArtistBuckets []ArtistBucket `json:"artistBuckets"`

	// TrackBuckets is the flattened month×track aggregate set.
	TrackBuckets []TrackBucket `json:"trackBuckets"`

	// HourlyStatsBuckets is the flattened month×weekday×hour aggregate set.
	HourlyStatsBuckets []HourlyStatsBucket `json:"hourlyStatsBuckets"`

	// TrackFirstPlays maps each track identity to its earliest play month.
	TrackFirstPlays []TrackFirstPlay `json:"trackFirstPlays"`

	// MonthlyTotals is the flattened per-month aggregate set.
	MonthlyTotals []MonthlyTotal `json:"monthlyTotals"`

	// Marathons holds the ranked qualifying listening sessions.
	Marathons []Marathon `json:"marathons"`

	// Truncated is set when the input exceeded the configured event cap and
	// the run stopped accepting entries. Callers surface it as an advisory
	// warning; it never aborts the run.
	Truncated bool `json:"truncated,omitempty"`

	// SkippedEntries is the number of raw entries rejected by validation.
	SkippedEntries int64 `json:"skippedEntries,omitempty"`
}
