package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap/zapcore"

	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/utils"
)

type fakeSessions struct {
	session *models.UploadSession
}

func (f *fakeSessions) Create(context.Context, *models.UploadSession) error { return nil }

func (f *fakeSessions) FindByID(_ context.Context, id bson.ObjectID) (*models.UploadSession, error) {
	if f.session != nil && f.session.ID == id {
		return f.session, nil
	}
	return nil, models.ErrSessionNotFound
}

func (f *fakeSessions) FindByShareToken(_ context.Context, token string) (*models.UploadSession, error) {
	if f.session != nil && f.session.ShareToken == token {
		return f.session, nil
	}
	return nil, models.ErrSessionNotFound
}

func (f *fakeSessions) UpdateStatus(context.Context, *models.UploadSession) error { return nil }
func (f *fakeSessions) SetPersonality(context.Context, bson.ObjectID, string) error {
	return nil
}
func (f *fakeSessions) DeactivateOthers(context.Context, string, bson.ObjectID) (int64, error) {
	return 0, nil
}
func (f *fakeSessions) CountCompleted(context.Context, bool) (int64, error) { return 0, nil }
func (f *fakeSessions) Delete(context.Context, bson.ObjectID) error         { return nil }

type fakeBuckets struct {
	result models.AggregationResult
}

func (f *fakeBuckets) ReplaceAll(context.Context, bson.ObjectID, *models.AggregationResult) error {
	return nil
}

func (f *fakeBuckets) ArtistBuckets(context.Context, bson.ObjectID) ([]models.ArtistBucket, error) {
	return f.result.ArtistBuckets, nil
}

func (f *fakeBuckets) TrackBuckets(context.Context, bson.ObjectID) ([]models.TrackBucket, error) {
	return f.result.TrackBuckets, nil
}

func (f *fakeBuckets) HourlyBuckets(context.Context, bson.ObjectID) ([]models.HourlyStatsBucket, error) {
	return f.result.HourlyStatsBuckets, nil
}

func (f *fakeBuckets) FirstPlays(context.Context, bson.ObjectID) ([]models.TrackFirstPlay, error) {
	return f.result.TrackFirstPlays, nil
}

func (f *fakeBuckets) MonthlyTotals(context.Context, bson.ObjectID) ([]models.MonthlyTotal, error) {
	return f.result.MonthlyTotals, nil
}

func (f *fakeBuckets) Marathons(context.Context, bson.ObjectID) ([]models.Marathon, error) {
	return f.result.Marathons, nil
}

func (f *fakeBuckets) DeleteAll(context.Context, bson.ObjectID) error { return nil }

type fakeResolver struct {
	hits map[string]bson.ObjectID
}

func (f *fakeResolver) Get(_ context.Context, token string) (bson.ObjectID, bool, error) {
	id, ok := f.hits[token]
	return id, ok, nil
}

func (f *fakeResolver) Put(_ context.Context, token string, id bson.ObjectID) error {
	if f.hits == nil {
		f.hits = make(map[string]bson.ObjectID)
	}
	f.hits[token] = id
	return nil
}

const testToken = "ABCDEFGHIJKLMNOPQRSTUV"

func newService(buckets *fakeBuckets, session *models.UploadSession) *Service {
	logger := utils.NewLogger(utils.LoggerOptions{Level: zapcore.ErrorLevel})
	return NewService(&fakeSessions{session: session}, buckets, &fakeResolver{}, logger)
}

func completedSession() *models.UploadSession {
	s := models.NewUploadSession(testToken, "", false)
	s.ID = bson.NewObjectID()
	s.MarkCompleted(models.SessionSummary{
		TotalMsPlayed: 7_200_000,
		TotalEntries:  100,
		UniqueTracks:  40,
		UniqueArtists: 12,
		DateFrom:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		DateTo:        time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC),
	}, false)
	return s
}

func TestResolveRejectsBadTokens(t *testing.T) {
	svc := newService(&fakeBuckets{}, completedSession())

	_, err := svc.Resolve(context.Background(), "short")
	assert.ErrorIs(t, err, models.ErrInvalidShareToken)

	_, err = svc.Resolve(context.Background(), "AAAAAAAAAAAAAAAAAAAAAA")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestResolveRequiresCompletion(t *testing.T) {
	session := models.NewUploadSession(testToken, "", false)
	session.ID = bson.NewObjectID()
	svc := newService(&fakeBuckets{}, session)

	_, err := svc.Resolve(context.Background(), testToken)
	assert.ErrorIs(t, err, models.ErrSessionNotCompleted)
}

func TestOverview(t *testing.T) {
	buckets := &fakeBuckets{result: models.AggregationResult{
		TrackBuckets: []models.TrackBucket{
			{Month: "2023-01-01", TrackName: "A", ArtistName: "X", AlbumName: "Album 1"},
			{Month: "2023-02-01", TrackName: "A", ArtistName: "X", AlbumName: "Album 1"},
			{Month: "2023-01-01", TrackName: "B", ArtistName: "Y", AlbumName: "Album 2"},
			{Month: "2023-01-01", TrackName: "C", ArtistName: "Y"},
		},
	}}
	svc := newService(buckets, completedSession())

	o, err := svc.Overview(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, 2.0, o.TotalHours)
	assert.Equal(t, 0.1, o.TotalDays)
	assert.EqualValues(t, 100, o.TotalPlays)
	assert.EqualValues(t, 2, o.UniqueAlbums)
	assert.EqualValues(t, 12, o.UniqueArtists)
}

func TestTopArtistsSortingAndLimit(t *testing.T) {
	buckets := &fakeBuckets{result: models.AggregationResult{
		ArtistBuckets: []models.ArtistBucket{
			{Month: "2023-01-01", ArtistName: "Many Plays", PlayCount: 50, MsPlayed: 1_800_000},
			{Month: "2023-01-01", ArtistName: "Long Listens", PlayCount: 10, MsPlayed: 7_200_000},
			{Month: "2023-02-01", ArtistName: "Long Listens", PlayCount: 5, MsPlayed: 3_600_000},
		},
	}}
	svc := newService(buckets, completedSession())
	ctx := context.Background()

	byHours, err := svc.TopArtists(ctx, testToken, models.StatsFilter{})
	require.NoError(t, err)
	require.Len(t, byHours, 2)
	assert.Equal(t, "Long Listens", byHours[0].Name)
	assert.Equal(t, 3.0, byHours[0].TotalHours)
	assert.EqualValues(t, 15, byHours[0].PlayCount)

	byCount, err := svc.TopArtists(ctx, testToken, models.StatsFilter{Sort: "count"})
	require.NoError(t, err)
	assert.Equal(t, "Many Plays", byCount[0].Name)

	limited, err := svc.TopArtists(ctx, testToken, models.StatsFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	ranged, err := svc.TopArtists(ctx, testToken, models.StatsFilter{From: "2023-02-01"})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "Long Listens", ranged[0].Name)
	assert.Equal(t, 1.0, ranged[0].TotalHours)
}

func TestHeatmapMondayFirstRemap(t *testing.T) {
	buckets := &fakeBuckets{result: models.AggregationResult{
		HourlyStatsBuckets: []models.HourlyStatsBucket{
			// UTC Sunday maps to the last display row.
			{Month: "2023-01-01", DayOfWeek: 0, HourOfDay: 9, MsPlayed: 3_600_000},
			// UTC Monday maps to the first display row.
			{Month: "2023-01-01", DayOfWeek: 1, HourOfDay: 22, MsPlayed: 1_800_000},
			{Month: "2023-02-01", DayOfWeek: 1, HourOfDay: 22, MsPlayed: 1_800_000},
		},
	}}
	svc := newService(buckets, completedSession())

	h, err := svc.Heatmap(context.Background(), testToken, models.StatsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, h.Data[6][9])
	assert.Equal(t, 1.0, h.Data[0][22])
	assert.Equal(t, 0.0, h.Data[0][9])
}

func TestDiscoveryRate(t *testing.T) {
	buckets := &fakeBuckets{result: models.AggregationResult{
		TrackBuckets: []models.TrackBucket{
			{Month: "2023-01-01", TrackName: "A", ArtistName: "X"},
			{Month: "2023-01-01", TrackName: "B", ArtistName: "X"},
			{Month: "2023-02-01", TrackName: "A", ArtistName: "X"},
			{Month: "2023-02-01", TrackName: "C", ArtistName: "X", TrackURI: "spotify:track:c"},
		},
		TrackFirstPlays: []models.TrackFirstPlay{
			{TrackKey: "A\x00X", FirstPlayMonth: "2023-01-01"},
			{TrackKey: "B\x00X", FirstPlayMonth: "2023-01-01"},
			{TrackKey: "spotify:track:c", FirstPlayMonth: "2023-02-01"},
		},
	}}
	svc := newService(buckets, completedSession())

	points, err := svc.DiscoveryRate(context.Background(), testToken, models.StatsFilter{})
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "2023-01-01", points[0].Period)
	assert.EqualValues(t, 2, points[0].NewSongs)
	assert.EqualValues(t, 0, points[0].Repeats)
	assert.Equal(t, 100.0, points[0].DiscoveryRate)

	assert.Equal(t, "2023-02-01", points[1].Period)
	assert.EqualValues(t, 1, points[1].NewSongs)
	assert.EqualValues(t, 1, points[1].Repeats)
	assert.Equal(t, 50.0, points[1].DiscoveryRate)
}

func TestStaminaAverages(t *testing.T) {
	buckets := &fakeBuckets{result: models.AggregationResult{
		HourlyStatsBuckets: []models.HourlyStatsBucket{
			{Month: "2023-01-01", DayOfWeek: 1, HourOfDay: 20, TotalChainLength: 10, ChainCount: 4},
			{Month: "2023-02-01", DayOfWeek: 1, HourOfDay: 20, TotalChainLength: 6, ChainCount: 2},
			{Month: "2023-01-01", DayOfWeek: 0, HourOfDay: 9, TotalChainLength: 3, ChainCount: 1},
		},
	}}
	svc := newService(buckets, completedSession())

	st, err := svc.Stamina(context.Background(), testToken, models.StatsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2.7, st.Data[0][20])
	assert.Equal(t, 3.0, st.Data[6][9])
	assert.Equal(t, 2.7, st.OverallAverage)
}

func TestMarathonsMoodAndRerank(t *testing.T) {
	start := func(month time.Month) time.Time {
		return time.Date(2023, month, 10, 18, 0, 0, 0, time.UTC)
	}
	buckets := &fakeBuckets{result: models.AggregationResult{
		Marathons: []models.Marathon{
			{StartTime: start(1), EndTime: start(1).Add(3 * time.Hour), DurationMs: 10_800_000, PlayCount: 40, SkipRate: 5, Rank: 1},
			{StartTime: start(2), EndTime: start(2).Add(2 * time.Hour), DurationMs: 7_200_000, PlayCount: 30, SkipRate: 33.3, Rank: 2},
			{StartTime: start(3), EndTime: start(3).Add(time.Hour), DurationMs: 3_600_000, PlayCount: 20, SkipRate: 60, Rank: 3},
		},
	}}
	svc := newService(buckets, completedSession())
	ctx := context.Background()

	all, err := svc.Marathons(ctx, testToken, models.StatsFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, MoodInTheZone, all[0].Mood)
	assert.Equal(t, MoodExploratory, all[1].Mood)
	assert.Equal(t, MoodRestless, all[2].Mood)
	assert.Equal(t, "2023-01-10", all[0].Date)
	assert.EqualValues(t, 180, all[0].DurationMinutes)

	// Filtering off the top session re-ranks the rest from 1.
	filtered, err := svc.Marathons(ctx, testToken, models.StatsFilter{From: "2023-02-01"})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, 1, filtered[0].Rank)
	assert.Equal(t, 2, filtered[1].Rank)
}

func TestPersonalityInputs(t *testing.T) {
	artists := make([]models.ArtistBucket, 0, 12)
	// 11 artists at 1h each; the top-10 share excludes exactly one hour.
	for i := 0; i < 11; i++ {
		artists = append(artists, models.ArtistBucket{
			Month:      "2023-01-01",
			ArtistName: string(rune('A' + i)),
			PlayCount:  10,
			SkipCount:  2,
			MsPlayed:   3_600_000,
		})
	}
	buckets := &fakeBuckets{result: models.AggregationResult{
		ArtistBuckets: artists,
		TrackBuckets: []models.TrackBucket{
			{Month: "2023-01-01", TrackName: "A", ArtistName: "X", PlayCount: 100, ShufflePlayCount: 25},
		},
		HourlyStatsBuckets: []models.HourlyStatsBucket{
			{Month: "2023-01-01", DayOfWeek: 1, HourOfDay: 23, MsPlayed: 5_000, TotalChainLength: 12, ChainCount: 3},
			{Month: "2023-01-01", DayOfWeek: 2, HourOfDay: 23, MsPlayed: 7_000, TotalChainLength: 8, ChainCount: 2},
		},
	}}
	svc := newService(buckets, completedSession())

	inputs, err := svc.PersonalityInputs(context.Background(), testToken)
	require.NoError(t, err)
	assert.EqualValues(t, 12_000, inputs.HourTotals[23])
	assert.Equal(t, 4.0, inputs.AvgChainLength)
	assert.Equal(t, 90.9, inputs.Top10ArtistMsPct)
	assert.Equal(t, 20.0, inputs.GlobalSkipRate)
	assert.Equal(t, 25.0, inputs.ShuffleRate)
	assert.EqualValues(t, 12, inputs.UniqueArtistCount)
}
