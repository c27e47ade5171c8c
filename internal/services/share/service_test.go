package share

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/music-livereview/backend/internal/config"
	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/utils"
)

const testToken = "ABCDEFGHIJKLMNOPQRSTUV"

type fakeStats struct {
	overview  models.Overview
	artists   []models.TopArtistEntry
	tracks    []models.TopTrackEntry
	marathons []models.MarathonEntry
	timeline  []models.TimelinePoint

	calls int
	err   error
}

func (f *fakeStats) Overview(ctx context.Context, token string) (*models.Overview, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	o := f.overview
	return &o, nil
}

func (f *fakeStats) TopArtists(ctx context.Context, token string, filter models.StatsFilter) ([]models.TopArtistEntry, error) {
	return f.artists, f.err
}

func (f *fakeStats) TopTracks(ctx context.Context, token string, filter models.StatsFilter) ([]models.TopTrackEntry, error) {
	return f.tracks, f.err
}

func (f *fakeStats) Marathons(ctx context.Context, token string, filter models.StatsFilter) ([]models.MarathonEntry, error) {
	return f.marathons, f.err
}

func (f *fakeStats) Timeline(ctx context.Context, token string, filter models.StatsFilter) ([]models.TimelinePoint, error) {
	return f.timeline, f.err
}

func overviewHours(hours int64, artists int64) models.Overview {
	return models.Overview{
		TotalHours:    float64(hours),
		UniqueArtists: artists,
		DateFrom:      time.Date(2019, 1, 15, 0, 0, 0, 0, time.UTC),
		DateTo:        time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func newTestService(f *fakeStats) *Service {
	cfg := config.CreateDefaultConfig()
	logger := utils.NewLogger(utils.LoggerOptions{Level: zapcore.ErrorLevel})
	return NewService(f, cfg, logger)
}

func TestPreviewHeadlineSelection(t *testing.T) {
	tests := []struct {
		name         string
		stats        fakeStats
		wantHeadline string
		wantSubline  string
	}{
		{
			name:         "huge totals lead with hours",
			stats:        fakeStats{overview: overviewHours(6000, 4000)},
			wantHeadline: "Listened to 6,000 hours of music",
			wantSubline:  "That's 250 days straight",
		},
		{
			name: "long marathon beats artist count",
			stats: fakeStats{
				overview: overviewHours(800, 4000),
				marathons: []models.MarathonEntry{
					{Rank: 1, DurationMinutes: 510, PlayCount: 120, TopArtist: "Khruangbin"},
				},
			},
			wantHeadline: "8.5-hour listening marathon in one sitting",
			wantSubline:  "Top artist: Khruangbin",
		},
		{
			name: "marathon without a dominant artist falls back to plays",
			stats: fakeStats{
				overview: overviewHours(800, 200),
				marathons: []models.MarathonEntry{
					{Rank: 1, DurationMinutes: 540, PlayCount: 120},
				},
			},
			wantHeadline: "9-hour listening marathon in one sitting",
			wantSubline:  "120 tracks played",
		},
		{
			name:         "artist explorer",
			stats:        fakeStats{overview: overviewHours(800, 3500)},
			wantHeadline: "Explored 3,500 different artists",
			wantSubline:  "Across Jan 2019 – Mar 2023",
		},
		{
			name:         "mid-size totals",
			stats:        fakeStats{overview: overviewHours(1200, 300)},
			wantHeadline: "Listened to 1,200 hours of music",
			wantSubline:  "That's 50 days straight",
		},
		{
			name:         "small totals mention artists",
			stats:        fakeStats{overview: overviewHours(340, 210)},
			wantHeadline: "Listened to 340 hours of music",
			wantSubline:  "210 artists explored",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(&tc.stats)
			data, err := svc.Preview(context.Background(), testToken)
			require.NoError(t, err)
			assert.Equal(t, tc.wantHeadline, data.Headline)
			assert.Equal(t, tc.wantSubline, data.Subline)
			assert.Equal(t, "Jan 2019 – Mar 2023", data.DateRange)
		})
	}
}

func TestPreviewCleansUntrustedNames(t *testing.T) {
	f := &fakeStats{
		overview: overviewHours(100, 50),
		artists: []models.TopArtistEntry{
			{Name: "Sigur\x00  R\u00f3s\t"},
		},
		tracks: []models.TopTrackEntry{
			{Name: strings.Repeat("x", 200), PlayCount: 42},
		},
	}
	svc := newTestService(f)

	data, err := svc.Preview(context.Background(), testToken)
	require.NoError(t, err)

	assert.Equal(t, "Sigur R\u00f3s", data.TopArtist)
	assert.Len(t, data.TopTrack, 80)
	assert.True(t, strings.HasSuffix(data.TopTrack, "..."))
}

func TestPreviewUsesCache(t *testing.T) {
	f := &fakeStats{overview: overviewHours(100, 50)}
	svc := newTestService(f)

	_, err := svc.Preview(context.Background(), testToken)
	require.NoError(t, err)
	_, err = svc.Preview(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)

	svc.InvalidatePreview(testToken)
	_, err = svc.Preview(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
}

func TestPreviewPropagatesErrors(t *testing.T) {
	f := &fakeStats{err: models.ErrSessionNotFound}
	svc := newTestService(f)

	_, err := svc.Preview(context.Background(), testToken)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestPageRendersMetaTags(t *testing.T) {
	f := &fakeStats{
		overview: overviewHours(6000, 400),
		artists:  []models.TopArtistEntry{{Name: `Sigur "Rós"`, PlayCount: 900, TotalHours: 120}},
		tracks:   []models.TopTrackEntry{{Name: "Svefn-g-englar", ArtistName: `Sigur "Rós"`, PlayCount: 1234}},
	}
	svc := newTestService(f)

	html, err := svc.Page(context.Background(), testToken)
	require.NoError(t, err)

	assert.Contains(t, html, `<meta property="og:title" content="Listened to 6,000 hours of music">`)
	assert.Contains(t, html, "#1 Artist: Sigur &quot;R\u00f3s&quot;")
	assert.Contains(t, html, "Most-played song: Svefn-g-englar (1,234x)")
	assert.Contains(t, html, "/results/"+testToken)
	assert.Contains(t, html, `<link rel="canonical" href="http://localhost:8080/results/`+testToken+`">`)
	assert.NotContains(t, html, `Sigur "Rós"`)
}

func TestBuildTimelineValues(t *testing.T) {
	vals := buildTimelineValues([]float64{10, 20, 5})
	assert.Equal(t, []float64{0.5, 1, 0.25}, vals)

	// All-zero input divides by the floor of 1, not by zero.
	vals = buildTimelineValues([]float64{0, 0})
	assert.Equal(t, []float64{0, 0}, vals)

	// 72 monthly points fold into 24 quarters.
	long := make([]float64, 72)
	for i := range long {
		long[i] = 1
	}
	vals = buildTimelineValues(long)
	require.Len(t, vals, 24)
	assert.Equal(t, 1.0, vals[0])
}

func TestPreviewCacheExpiry(t *testing.T) {
	cache := NewPreviewCache(time.Minute, 10)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("a", &PreviewData{Headline: "x"})
	_, ok := cache.Get("a")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestPreviewCacheEviction(t *testing.T) {
	cache := NewPreviewCache(time.Minute, 2)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("a", &PreviewData{Headline: "a"})
	now = now.Add(time.Second)
	cache.Set("b", &PreviewData{Headline: "b"})
	now = now.Add(time.Second)

	// Cache is full; the entry closest to expiry goes.
	cache.Set("c", &PreviewData{Headline: "c"})
	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Get("a")
	assert.False(t, ok)
	_, ok = cache.Get("b")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}
