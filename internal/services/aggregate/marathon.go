package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/music-livereview/backend/internal/models"
)

// Marathon thresholds. A session boundary is a gap of more than
// marathonGap between the effective start of an event and the end of its
// predecessor; a session qualifies as a marathon when it holds at least
// marathonMinTracks events and spans at least marathonMinDuration.
const (
	marathonGap         = 30 * time.Minute
	marathonMinTracks   = 3
	marathonMinDuration = 30 * time.Minute
)

// detectMarathons groups time-sorted events into gap-bounded listening
// sessions, keeps the ones that qualify as marathons and ranks them by
// duration descending. Ranks are dense, 1..N, with equal durations keeping
// their encounter order.
func detectMarathons(sorted []models.PlayEvent) []models.Marathon {
	if len(sorted) == 0 {
		return []models.Marathon{}
	}

	marathons := []models.Marathon{}

	// effectiveStart backs the timestamp off by the played duration: the
	// export logs an event at the moment playback ended.
	effectiveStart := func(e *models.PlayEvent) time.Time {
		return e.Timestamp.Add(-time.Duration(e.MsPlayed) * time.Millisecond)
	}

	sessionStart := effectiveStart(&sorted[0])
	sessionFirst := 0

	finalize := func(session []models.PlayEvent) {
		end := session[len(session)-1].Timestamp
		duration := end.Sub(sessionStart)
		if len(session) < marathonMinTracks || duration < marathonMinDuration {
			return
		}

		var plays, skips int64
		artistMs := make(map[string]int64)
		artistOrder := make([]string, 0, 8)
		type trackCount struct {
			track  string
			artist string
			plays  int64
		}
		trackPlays := make(map[string]*trackCount)
		trackOrder := make([]string, 0, 8)

		for i := range session {
			e := &session[i]
			plays++
			if e.Skipped {
				skips++
			}
			if e.ArtistName != "" {
				if _, ok := artistMs[e.ArtistName]; !ok {
					artistOrder = append(artistOrder, e.ArtistName)
				}
				artistMs[e.ArtistName] += e.MsPlayed
			}
			if e.TrackName != "" && e.ArtistName != "" {
				key := e.TrackName + "\x00" + e.ArtistName
				tc := trackPlays[key]
				if tc == nil {
					tc = &trackCount{track: e.TrackName, artist: e.ArtistName}
					trackPlays[key] = tc
					trackOrder = append(trackOrder, key)
				}
				tc.plays++
			}
		}

		// Ties go to the first artist/track encountered in the session.
		var topArtist string
		var topArtistMs int64
		for _, name := range artistOrder {
			if artistMs[name] > topArtistMs {
				topArtistMs = artistMs[name]
				topArtist = name
			}
		}

		var topTrack, topTrackArtist string
		var topTrackPlays int64
		for _, key := range trackOrder {
			if tc := trackPlays[key]; tc.plays > topTrackPlays {
				topTrackPlays = tc.plays
				topTrack = tc.track
				topTrackArtist = tc.artist
			}
		}

		marathons = append(marathons, models.Marathon{
			StartTime:      sessionStart,
			EndTime:        end,
			DurationMs:     duration.Milliseconds(),
			PlayCount:      plays,
			SkipCount:      skips,
			SkipRate:       round1(float64(skips) / float64(plays) * 100),
			TopArtist:      topArtist,
			TopTrack:       topTrack,
			TopTrackArtist: topTrackArtist,
		})
	}

	for i := 1; i < len(sorted); i++ {
		gap := effectiveStart(&sorted[i]).Sub(sorted[i-1].Timestamp)
		// Overlapping events from clock skew yield negative gaps; those are
		// clamped and never treated as a boundary.
		if gap > marathonGap {
			finalize(sorted[sessionFirst:i])
			sessionStart = effectiveStart(&sorted[i])
			sessionFirst = i
		}
	}
	finalize(sorted[sessionFirst:])

	sort.SliceStable(marathons, func(i, j int) bool {
		return marathons[i].DurationMs > marathons[j].DurationMs
	})
	for i := range marathons {
		marathons[i].Rank = i + 1
	}
	return marathons
}

// round1 rounds to one decimal place, half away from zero.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
