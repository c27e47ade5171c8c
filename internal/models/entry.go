// Package models contains the data structures used throughout the application.
package models

import (
	"math"
	"time"
)

// StreamEntry represents a raw entry from the streaming-history export, as it
// appears in the uploaded JSON. Every field except the timestamp and played
// duration is an optional signal; numeric fields may be malformed and must be
// treated as untrusted until normalized.
//
// Privacy-sensitive export fields (username, decrypted IP, user agent, offline
// timestamp, incognito flag) are deliberately absent from this type: they are
// dropped at the JSON boundary and never enter the pipeline.
type StreamEntry struct {
	// Timestamp is the raw "ts" value from the export (ISO 8601).
	Timestamp string `json:"ts"`

	// MsPlayed is the played duration in milliseconds. A pointer so that a
	// missing field can be told apart from an explicit zero.
	MsPlayed *float64 `json:"ms_played"`

	// TrackName is the track title, empty for podcast episodes.
	TrackName string `json:"master_metadata_track_name"`

	// ArtistName is the album artist name.
	ArtistName string `json:"master_metadata_album_artist_name"`

	// AlbumName is the album title.
	AlbumName string `json:"master_metadata_album_album_name"`

	// TrackURI is the stable catalog URI of the track, when known.
	TrackURI string `json:"spotify_track_uri"`

	// EpisodeName is the podcast episode title, if this entry is a podcast play.
	EpisodeName string `json:"episode_name"`

	// EpisodeShowName is the podcast show title.
	EpisodeShowName string `json:"episode_show_name"`

	// EpisodeURI is the stable catalog URI of the episode.
	EpisodeURI string `json:"spotify_episode_uri"`

	// ReasonStart is why playback started (clickrow, playbtn, backbtn,
	// trackdone, fwdbtn, ...).
	ReasonStart string `json:"reason_start"`

	// ReasonEnd is why playback ended (trackdone, fwdbtn, ...).
	ReasonEnd string `json:"reason_end"`

	// Shuffle reports whether shuffle mode was on.
	Shuffle *bool `json:"shuffle"`

	// Skipped reports whether the user skipped the track.
	Skipped *bool `json:"skipped"`
}

// PlayEvent is a validated, normalized play event. It is produced by the
// aggregation engine's normalizer and is the only event shape the rest of the
// pipeline ever sees: the timestamp is a valid instant and MsPlayed is a
// non-negative integer.
type PlayEvent struct {
	// Timestamp is the instant the play was logged, UTC.
	Timestamp time.Time

	// MsPlayed is the played duration in milliseconds, never negative.
	MsPlayed int64

	// TrackName is the track title, empty when unknown or a podcast play.
	TrackName string

	// ArtistName is the album artist name, empty when unknown.
	ArtistName string

	// AlbumName is the album title, empty when unknown.
	AlbumName string

	// TrackURI is the stable track identity, empty when unknown.
	TrackURI string

	// EpisodeName is the podcast episode title, empty for music plays.
	EpisodeName string

	// EpisodeURI is the stable episode identity, empty for music plays.
	EpisodeURI string

	// ReasonStart is why playback started.
	ReasonStart string

	// ReasonEnd is why playback ended.
	ReasonEnd string

	// Shuffle reports whether shuffle mode was on.
	Shuffle bool

	// Skipped reports whether the user skipped the track.
	Skipped bool
}

// Playback reason codes observed in the export.
const (
	ReasonTrackDone = "trackdone"
	ReasonFwdBtn    = "fwdbtn"
	ReasonBackBtn   = "backbtn"
	ReasonClickRow  = "clickrow"
	ReasonPlayBtn   = "playbtn"
)

// ShortPlayThresholdMs is the played duration below which an event counts as
// a short play (an "intro test" listen).
const ShortPlayThresholdMs = 30_000

// IsDeliberate reports whether the play was explicitly initiated by the user.
func (e *PlayEvent) IsDeliberate() bool {
	return e.ReasonStart == ReasonClickRow || e.ReasonStart == ReasonPlayBtn || e.ReasonStart == ReasonBackBtn
}

// IsServed reports whether the play happened as a natural consequence of
// playback flow rather than a deliberate user action.
func (e *PlayEvent) IsServed() bool {
	return e.ReasonStart == ReasonTrackDone || e.ReasonStart == ReasonFwdBtn
}

// IsShortPlay reports whether the event played for less than 30 seconds.
func (e *PlayEvent) IsShortPlay() bool {
	return e.MsPlayed < ShortPlayThresholdMs
}

// IsTrackDone reports whether playback ran to the natural end of the track.
func (e *PlayEvent) IsTrackDone() bool {
	return e.ReasonEnd == ReasonTrackDone
}

// IsFwdSkip reports whether the event ended with a forward skip.
func (e *PlayEvent) IsFwdSkip() bool {
	return e.ReasonEnd == ReasonFwdBtn
}

// WentBack reports whether the event started via the back button (a rewind).
func (e *PlayEvent) WentBack() bool {
	return e.ReasonStart == ReasonBackBtn
}

// IsPodcast reports whether the event is a podcast play: no track name but
// some episode identity present.
func (e *PlayEvent) IsPodcast() bool {
	return e.TrackName == "" && (e.EpisodeName != "" || e.EpisodeURI != "")
}

// IsWeekend reports whether the event happened on a Saturday or Sunday, UTC.
func (e *PlayEvent) IsWeekend() bool {
	wd := e.Timestamp.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// TrackIdentity returns the stable identity used for first-play tracking:
// the catalog URI when present, otherwise the track/artist name pair. It
// returns an empty string when the event carries no track identity at all.
func (e *PlayEvent) TrackIdentity() string {
	if e.TrackURI != "" {
		return e.TrackURI
	}
	if e.TrackName != "" && e.ArtistName != "" {
		return e.TrackName + "\x00" + e.ArtistName
	}
	return ""
}

// Normalize converts a raw export entry into a validated PlayEvent. It returns
// false when the entry must be rejected, which happens only when the timestamp
// is absent or not parseable as an instant. A missing, non-finite or negative
// played duration is coerced to zero instead of rejecting, since a bad
// duration alone is not disqualifying.
func (e *StreamEntry) Normalize() (PlayEvent, bool) {
	if e.Timestamp == "" {
		return PlayEvent{}, false
	}
	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return PlayEvent{}, false
	}

	var ms int64
	if e.MsPlayed != nil {
		v := *e.MsPlayed
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0 {
			ms = int64(v)
		}
	}

	return PlayEvent{
		Timestamp:   ts.UTC(),
		MsPlayed:    ms,
		TrackName:   e.TrackName,
		ArtistName:  e.ArtistName,
		AlbumName:   e.AlbumName,
		TrackURI:    e.TrackURI,
		EpisodeName: e.EpisodeName,
		EpisodeURI:  e.EpisodeURI,
		ReasonStart: e.ReasonStart,
		ReasonEnd:   e.ReasonEnd,
		Shuffle:     e.Shuffle != nil && *e.Shuffle,
		Skipped:     e.Skipped != nil && *e.Skipped,
	}, true
}
