// Package models contains the data structures used throughout the application.
package models

import "time"

// StatsFilter narrows personal-stats queries to a date range, an artist, and
// a result limit. Zero values mean "no filter".
type StatsFilter struct {
	// From is the inclusive start of the month range, "YYYY-MM-01".
	From string `json:"from,omitempty"`

	// To is the inclusive end of the month range, "YYYY-MM-01".
	To string `json:"to,omitempty"`

	// Artist restricts results to a single artist name.
	Artist string `json:"artist,omitempty"`

	// Limit caps the number of returned rows.
	Limit int `json:"limit,omitempty" validate:"min=0,max=500"`

	// Sort orders top lists by "hours" or "count".
	Sort string `json:"sort,omitempty" validate:"omitempty,oneof=hours count"`
}

// Overview is the headline summary of a listening history.
type Overview struct {
	// TotalHours is total listening time in hours, one decimal.
	TotalHours float64 `json:"totalHours"`

	// TotalDays is TotalHours/24, one decimal.
	TotalDays float64 `json:"totalDays"`

	// TotalPlays is the number of plays.
	TotalPlays int64 `json:"totalPlays"`

	// UniqueTracks is the number of distinct tracks.
	UniqueTracks int64 `json:"uniqueTracks"`

	// UniqueArtists is the number of distinct artists.
	UniqueArtists int64 `json:"uniqueArtists"`

	// UniqueAlbums is the number of distinct albums.
	UniqueAlbums int64 `json:"uniqueAlbums"`

	// DateFrom is the start of the listening period.
	DateFrom time.Time `json:"dateFrom"`

	// DateTo is the end of the listening period.
	DateTo time.Time `json:"dateTo"`
}

// TopArtistEntry is one row of the top-artists list.
type TopArtistEntry struct {
	// Name is the artist name.
	Name string `json:"name"`

	// PlayCount is the number of plays in the filtered range.
	PlayCount int64 `json:"playCount"`

	// TotalHours is listening time in hours, one decimal.
	TotalHours float64 `json:"totalHours"`
}

// TopTrackEntry is one row of the top-tracks list.
type TopTrackEntry struct {
	// Name is the track title.
	Name string `json:"name"`

	// ArtistName is the track's artist.
	ArtistName string `json:"artistName"`

	// PlayCount is the number of plays in the filtered range.
	PlayCount int64 `json:"playCount"`

	// TotalHours is listening time in hours, one decimal.
	TotalHours float64 `json:"totalHours"`
}

// TimelinePoint is one month of the listening timeline.
type TimelinePoint struct {
	// Period is the month key, "YYYY-MM-01".
	Period string `json:"period"`

	// TotalHours is listening time in hours, one decimal.
	TotalHours float64 `json:"totalHours"`

	// TotalPlays is the number of plays.
	TotalPlays int64 `json:"totalPlays"`
}

// Heatmap is a 7×24 matrix of listening hours. Rows are Monday-first
// weekdays (the UTC Sunday-first buckets are remapped for display), columns
// are hours of day.
type Heatmap struct {
	Data [7][24]float64 `json:"data"`
}

// DiscoveryRatePoint splits one month's track plays into first-ever listens
// and repeats.
type DiscoveryRatePoint struct {
	// Period is the month key, "YYYY-MM-01".
	Period string `json:"period"`

	// NewSongs is the number of distinct tracks first played this month.
	NewSongs int64 `json:"newSongs"`

	// Repeats is the number of distinct tracks played this month that were
	// first played earlier.
	Repeats int64 `json:"repeats"`

	// DiscoveryRate is NewSongs/(NewSongs+Repeats) as a 0-100 percentage,
	// one decimal.
	DiscoveryRate float64 `json:"discoveryRate"`
}

// SessionStamina reports average auto-advance chain lengths per weekday/hour
// slot (Monday-first), plus the overall average across all chains.
type SessionStamina struct {
	Data           [7][24]float64 `json:"data"`
	OverallAverage float64        `json:"overallAverage"`
}

// MarathonEntry is the display form of a ranked marathon session.
type MarathonEntry struct {
	// Rank is 1-based, by duration descending.
	Rank int `json:"rank"`

	// Date is the UTC date of the session start, "YYYY-MM-DD".
	Date string `json:"date"`

	// DurationMinutes is the wall-clock duration in minutes.
	DurationMinutes int64 `json:"durationMinutes"`

	// PlayCount is the number of tracks in the session.
	PlayCount int64 `json:"playCount"`

	// SkipRate is a 0-100 percentage, one decimal.
	SkipRate float64 `json:"skipRate"`

	// Mood labels the session by its skip behavior.
	Mood string `json:"mood"`

	// TopArtist is the session's dominant artist by listening time.
	TopArtist string `json:"topArtist,omitempty"`

	// TopTrack is the session's most-played track.
	TopTrack string `json:"topTrack,omitempty"`

	// TopTrackArtist is the artist of the most-played track.
	TopTrackArtist string `json:"topTrackArtist,omitempty"`
}

// PersonalityInputs are the scalar signals the personality classifier
// consumes. They are derived entirely from stored buckets.
type PersonalityInputs struct {
	// HourTotals is total ms played per hour of day, index 0 = midnight UTC.
	HourTotals [24]int64 `json:"hourTotals"`

	// Top10ArtistMsPct is the share of listening time accounted for by the
	// top 10 artists, 0-100.
	Top10ArtistMsPct float64 `json:"top10ArtistMsPct"`

	// GlobalSkipRate is skipped plays over all artist-attributed plays, 0-100.
	GlobalSkipRate float64 `json:"globalSkipRate"`

	// AvgChainLength is the average auto-advance chain length in songs.
	AvgChainLength float64 `json:"avgChainLength"`

	// ShuffleRate is shuffled plays over all plays, 0-100.
	ShuffleRate float64 `json:"shuffleRate"`

	// UniqueArtistCount is the number of distinct artists in the history.
	UniqueArtistCount int64 `json:"uniqueArtistCount"`
}
