package aggregate

import (
	"sort"
	"time"

	"github.com/music-livereview/backend/internal/models"
)

// The materializer flattens the keyed maps into the plain record arrays of
// the wire format, decomposing each map key back into explicit fields. It
// performs no computation and drops no entries; records are emitted in a
// deterministic key order so repeated runs over the same input produce
// byte-identical output.

func materializeArtists(m map[artistKey]*artistAgg) []models.ArtistBucket {
	out := make([]models.ArtistBucket, 0, len(m))
	for k, agg := range m {
		out = append(out, models.ArtistBucket{
			Month:            k.month,
			ArtistName:       k.artist,
			PlayCount:        agg.playCount,
			MsPlayed:         agg.msPlayed,
			SkipCount:        agg.skipCount,
			DeliberateCount:  agg.deliberateCount,
			ServedCount:      agg.servedCount,
			WeekdayPlayCount: agg.weekdayPlayCount,
			WeekendPlayCount: agg.weekendPlayCount,
			WeekdaySkipCount: agg.weekdaySkipCount,
			WeekendSkipCount: agg.weekendSkipCount,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].ArtistName < out[j].ArtistName
	})
	return out
}

func materializeTracks(m map[trackKey]*trackAgg) []models.TrackBucket {
	out := make([]models.TrackBucket, 0, len(m))
	for k, agg := range m {
		out = append(out, models.TrackBucket{
			Month:                 k.month,
			TrackName:             k.track,
			ArtistName:            k.artist,
			AlbumName:             agg.albumName,
			TrackURI:              agg.trackURI,
			PlayCount:             agg.playCount,
			MsPlayed:              agg.msPlayed,
			SkipCount:             agg.skipCount,
			BackCount:             agg.backCount,
			ShufflePlayCount:      agg.shufflePlayCount,
			ShuffleTrackdoneCount: agg.shuffleTrackdoneCount,
			DeliberateCount:       agg.deliberateCount,
			ServedCount:           agg.servedCount,
			ShortPlayCount:        agg.shortPlayCount,
			TrackdoneCount:        agg.trackdoneCount,
			FwdSkipCount:          agg.fwdSkipCount,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		if out[i].ArtistName != out[j].ArtistName {
			return out[i].ArtistName < out[j].ArtistName
		}
		return out[i].TrackName < out[j].TrackName
	})
	return out
}

func materializeHourly(m map[hourKey]*hourlyAgg) []models.HourlyStatsBucket {
	out := make([]models.HourlyStatsBucket, 0, len(m))
	for k, agg := range m {
		out = append(out, models.HourlyStatsBucket{
			Month:            k.month,
			DayOfWeek:        k.dow,
			HourOfDay:        k.hour,
			MsPlayed:         agg.msPlayed,
			TotalChainLength: agg.totalChainLength,
			ChainCount:       agg.chainCount,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].HourOfDay < out[j].HourOfDay
	})
	return out
}

func materializeFirstPlays(m map[string]time.Time) []models.TrackFirstPlay {
	out := make([]models.TrackFirstPlay, 0, len(m))
	for key, ts := range m {
		out = append(out, models.TrackFirstPlay{
			TrackKey:       key,
			FirstPlayMonth: models.MonthKey(ts),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackKey < out[j].TrackKey })
	return out
}

func materializeMonthlyTotals(m map[string]*monthlyAgg) []models.MonthlyTotal {
	out := make([]models.MonthlyTotal, 0, len(m))
	for month, agg := range m {
		out = append(out, models.MonthlyTotal{
			Month:            month,
			PlayCount:        agg.playCount,
			MsPlayed:         agg.msPlayed,
			PodcastPlayCount: agg.podcastPlayCount,
			PodcastMsPlayed:  agg.podcastMsPlayed,
			ShuffleCount:     agg.shuffleCount,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
