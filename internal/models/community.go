// Package models contains the data structures used throughout the application.
package models

// GlobalStats aggregates across every opted-in completed upload.
type GlobalStats struct {
	// TotalUploads is the number of active completed sessions.
	TotalUploads int64 `json:"totalUploads"`

	// AvgTotalHours is the mean listening hours per upload, one decimal.
	AvgTotalHours float64 `json:"avgTotalHours"`

	// MedianTotalHours is the median listening hours per upload, one decimal.
	MedianTotalHours float64 `json:"medianTotalHours"`

	// AvgUniqueArtists is the mean distinct-artist count per upload.
	AvgUniqueArtists float64 `json:"avgUniqueArtists"`

	// AvgUniqueTracks is the mean distinct-track count per upload.
	AvgUniqueTracks float64 `json:"avgUniqueTracks"`

	// TopGlobalArtists ranks artists by how many uploads they appear in.
	TopGlobalArtists []GlobalArtistEntry `json:"topGlobalArtists"`
}

// GlobalArtistEntry is one row of the community top-artists list.
type GlobalArtistEntry struct {
	// Name is the artist name.
	Name string `json:"name"`

	// UploadCount is the number of uploads the artist appears in.
	UploadCount int64 `json:"uploadCount"`
}

// TrendingArtistEntry is one row of the trending-artists list for a period.
type TrendingArtistEntry struct {
	// Name is the artist name.
	Name string `json:"name"`

	// UploadCount is the number of uploads in the period with this artist.
	UploadCount int64 `json:"uploadCount"`

	// TotalPlays sums the artist's plays across those uploads.
	TotalPlays int64 `json:"totalPlays"`
}

// Percentiles places one session among all active completed sessions.
// Values are 0-100, one decimal: "you listened more than N% of uploaders".
type Percentiles struct {
	TotalHoursPercentile    float64 `json:"totalHoursPercentile"`
	UniqueArtistsPercentile float64 `json:"uniqueArtistsPercentile"`
	UniqueTracksPercentile  float64 `json:"uniqueTracksPercentile"`
}

// PersonalityDistribution reports how recorded personalities are spread
// across the community.
type PersonalityDistribution struct {
	// Entries is ordered by count descending.
	Entries []PersonalityDistributionEntry `json:"entries"`

	// Total is the number of sessions with a recorded personality.
	Total int64 `json:"total"`
}

// PersonalityDistributionEntry is one personality's share of the community.
type PersonalityDistributionEntry struct {
	// PersonalityID identifies the personality.
	PersonalityID string `json:"personalityId"`

	// Count is the number of sessions with this personality.
	Count int64 `json:"count"`

	// Percentage is Count/Total as 0-100, one decimal.
	Percentage float64 `json:"percentage"`
}
