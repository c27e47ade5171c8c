package upload

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap/zapcore"

	"github.com/music-livereview/backend/internal/config"
	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/services/aggregate"
	"github.com/music-livereview/backend/internal/utils"
)

// fakeSessions is an in-memory SessionRepository.
type fakeSessions struct {
	mu      sync.Mutex
	byID    map[bson.ObjectID]*models.UploadSession
	byToken map[string]bson.ObjectID
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		byID:    make(map[bson.ObjectID]*models.UploadSession),
		byToken: make(map[string]bson.ObjectID),
	}
}

func (f *fakeSessions) Create(_ context.Context, s *models.UploadSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID.IsZero() {
		s.ID = bson.NewObjectID()
	}
	cp := *s
	f.byID[s.ID] = &cp
	f.byToken[s.ShareToken] = s.ID
	return nil
}

func (f *fakeSessions) FindByID(_ context.Context, id bson.ObjectID) (*models.UploadSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) FindByShareToken(_ context.Context, token string) (*models.UploadSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byToken[token]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	cp := *f.byID[id]
	return &cp, nil
}

func (f *fakeSessions) UpdateStatus(_ context.Context, s *models.UploadSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.byID[s.ID] = &cp
	return nil
}

func (f *fakeSessions) SetPersonality(_ context.Context, id bson.ObjectID, personalityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return models.ErrSessionNotFound
	}
	s.PersonalityID = personalityID
	return nil
}

func (f *fakeSessions) DeactivateOthers(_ context.Context, userHash string, keep bson.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.byID {
		if s.UserHash == userHash && id != keep && s.IsActive {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) CountCompleted(_ context.Context, communityOnly bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.byID {
		if s.Status != models.UploadCompleted {
			continue
		}
		if communityOnly && (!s.IsActive || s.OptOut) {
			continue
		}
		n++
	}
	return n, nil
}

func (f *fakeSessions) Delete(_ context.Context, id bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return models.ErrSessionNotFound
	}
	delete(f.byToken, s.ShareToken)
	delete(f.byID, id)
	return nil
}

// fakeBuckets is an in-memory BucketRepository.
type fakeBuckets struct {
	mu      sync.Mutex
	results map[bson.ObjectID]*models.AggregationResult
}

func newFakeBuckets() *fakeBuckets {
	return &fakeBuckets{results: make(map[bson.ObjectID]*models.AggregationResult)}
}

func (f *fakeBuckets) ReplaceAll(_ context.Context, id bson.ObjectID, result *models.AggregationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[id] = result
	return nil
}

func (f *fakeBuckets) get(id bson.ObjectID) *models.AggregationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[id]
}

func (f *fakeBuckets) ArtistBuckets(_ context.Context, id bson.ObjectID) ([]models.ArtistBucket, error) {
	return f.get(id).ArtistBuckets, nil
}

func (f *fakeBuckets) TrackBuckets(_ context.Context, id bson.ObjectID) ([]models.TrackBucket, error) {
	return f.get(id).TrackBuckets, nil
}

func (f *fakeBuckets) HourlyBuckets(_ context.Context, id bson.ObjectID) ([]models.HourlyStatsBucket, error) {
	return f.get(id).HourlyStatsBuckets, nil
}

func (f *fakeBuckets) FirstPlays(_ context.Context, id bson.ObjectID) ([]models.TrackFirstPlay, error) {
	return f.get(id).TrackFirstPlays, nil
}

func (f *fakeBuckets) MonthlyTotals(_ context.Context, id bson.ObjectID) ([]models.MonthlyTotal, error) {
	return f.get(id).MonthlyTotals, nil
}

func (f *fakeBuckets) Marathons(_ context.Context, id bson.ObjectID) ([]models.Marathon, error) {
	return f.get(id).Marathons, nil
}

func (f *fakeBuckets) DeleteAll(_ context.Context, id bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.results, id)
	return nil
}

// fakeTokens records token cache writes.
type fakeTokens struct {
	mu   sync.Mutex
	puts map[string]bson.ObjectID
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{puts: make(map[string]bson.ObjectID)}
}

func (f *fakeTokens) Put(_ context.Context, token string, id bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[token] = id
	return nil
}

func (f *fakeTokens) Invalidate(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.puts, token)
	return nil
}

// fakeCommunityCache counts invalidations.
type fakeCommunityCache struct {
	mu          sync.Mutex
	invalidated int
}

func (f *fakeCommunityCache) InvalidateAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	return nil
}

func testConfig() *config.Config {
	cfg := config.CreateDefaultConfig()
	cfg.Upload.Workers = 1
	cfg.Upload.ProcessTimeout = 10 * time.Second
	return cfg
}

type fakePreviews struct {
	invalidated []string
}

func (f *fakePreviews) InvalidatePreview(token string) {
	f.invalidated = append(f.invalidated, token)
}

type fixture struct {
	manager  *Manager
	sessions *fakeSessions
	buckets  *fakeBuckets
	tokens   *fakeTokens
	cache    *fakeCommunityCache
	previews *fakePreviews
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions: newFakeSessions(),
		buckets:  newFakeBuckets(),
		tokens:   newFakeTokens(),
		cache:    &fakeCommunityCache{},
		previews: &fakePreviews{},
	}
	logger := utils.NewLogger(utils.LoggerOptions{Level: zapcore.ErrorLevel})
	f.manager = NewManager(f.sessions, f.buckets, f.tokens, f.cache, f.previews, nil, testConfig(), logger)
	t.Cleanup(f.manager.Close)
	return f
}

func ms(v float64) *float64 { return &v }

func rawEntry(ts string, msPlayed float64, track, artist string) models.StreamEntry {
	return models.StreamEntry{
		Timestamp:   ts,
		MsPlayed:    ms(msPlayed),
		TrackName:   track,
		ArtistName:  artist,
		ReasonStart: models.ReasonClickRow,
		ReasonEnd:   models.ReasonTrackDone,
	}
}

func (f *fixture) waitDone(t *testing.T, token string) *models.UploadSession {
	t.Helper()
	var session *models.UploadSession
	require.Eventually(t, func() bool {
		s, err := f.sessions.FindByShareToken(context.Background(), token)
		if err != nil {
			return false
		}
		session = s
		return s.Status == models.UploadCompleted || s.Status == models.UploadFailed
	}, 5*time.Second, 10*time.Millisecond)
	return session
}

func TestUploadRejectsBadPayloads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Upload(ctx, nil)
	assert.ErrorIs(t, err, models.ErrPayloadInvalid)

	_, err = f.manager.Upload(ctx, &models.UploadPayload{})
	assert.ErrorIs(t, err, models.ErrEmptyUpload)

	_, err = f.manager.Upload(ctx, &models.UploadPayload{
		Entries:    []models.StreamEntry{rawEntry("2023-01-01T10:00:00Z", 1000, "A", "B")},
		Aggregated: &models.AggregationResult{},
	})
	assert.ErrorIs(t, err, models.ErrConflictingPayloads)

	_, err = f.manager.Upload(ctx, &models.UploadPayload{
		UserHash: "not-a-hash",
		Entries:  []models.StreamEntry{rawEntry("2023-01-01T10:00:00Z", 1000, "A", "B")},
	})
	assert.ErrorIs(t, err, models.ErrPayloadInvalid)
}

func TestUploadProcessesEntries(t *testing.T) {
	f := newFixture(t)

	resp, err := f.manager.Upload(context.Background(), &models.UploadPayload{
		Entries: []models.StreamEntry{
			rawEntry("2023-01-01T10:00:00Z", 60_000, "Track One", "Artist A"),
			rawEntry("2023-01-01T10:05:00Z", 90_000, "Track Two", "Artist A"),
			rawEntry("2023-02-03T22:00:00Z", 120_000, "Track Three", "Artist B"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.UploadPending, resp.Status)
	assert.Len(t, resp.ShareToken, 22)

	session := f.waitDone(t, resp.ShareToken)
	assert.Equal(t, models.UploadCompleted, session.Status)
	assert.EqualValues(t, 3, session.EntryCount)
	assert.EqualValues(t, 270_000, session.TotalMsPlayed)
	assert.EqualValues(t, 3, session.UniqueTracks)
	assert.EqualValues(t, 2, session.UniqueArtists)
	assert.False(t, session.Truncated)

	stored := f.buckets.get(session.ID)
	require.NotNil(t, stored)
	assert.Len(t, stored.MonthlyTotals, 2)

	f.tokens.mu.Lock()
	_, cached := f.tokens.puts[resp.ShareToken]
	f.tokens.mu.Unlock()
	assert.True(t, cached)

	f.cache.mu.Lock()
	invalidated := f.cache.invalidated
	f.cache.mu.Unlock()
	assert.Positive(t, invalidated)
}

func TestUploadFailsWhenNothingValidates(t *testing.T) {
	f := newFixture(t)

	resp, err := f.manager.Upload(context.Background(), &models.UploadPayload{
		Entries: []models.StreamEntry{
			{Timestamp: "garbage", MsPlayed: ms(1000), TrackName: "A", ArtistName: "B"},
			{Timestamp: "", MsPlayed: ms(1000), TrackName: "C", ArtistName: "D"},
		},
	})
	require.NoError(t, err)

	session := f.waitDone(t, resp.ShareToken)
	assert.Equal(t, models.UploadFailed, session.Status)
}

func TestUploadAcceptsAggregatedResult(t *testing.T) {
	f := newFixture(t)

	engine := aggregate.New(aggregate.Options{})
	result := engine.Aggregate([]models.StreamEntry{
		rawEntry("2023-01-01T10:00:00Z", 60_000, "Track One", "Artist A"),
		rawEntry("2023-01-01T10:05:00Z", 90_000, "Track Two", "Artist A"),
	})

	resp, err := f.manager.Upload(context.Background(), &models.UploadPayload{Aggregated: result})
	require.NoError(t, err)

	session := f.waitDone(t, resp.ShareToken)
	assert.Equal(t, models.UploadCompleted, session.Status)
	assert.EqualValues(t, 2, session.EntryCount)

	stored := f.buckets.get(session.ID)
	require.NotNil(t, stored)
	assert.Equal(t, result.ArtistBuckets, stored.ArtistBuckets)
}

func TestUploadRepeatDeactivatesPrevious(t *testing.T) {
	f := newFixture(t)
	hash := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	entries := []models.StreamEntry{rawEntry("2023-01-01T10:00:00Z", 60_000, "Track", "Artist")}

	first, err := f.manager.Upload(context.Background(), &models.UploadPayload{UserHash: hash, Entries: entries})
	require.NoError(t, err)
	f.waitDone(t, first.ShareToken)

	second, err := f.manager.Upload(context.Background(), &models.UploadPayload{UserHash: hash, Entries: entries})
	require.NoError(t, err)
	f.waitDone(t, second.ShareToken)

	require.Eventually(t, func() bool {
		prev, err := f.sessions.FindByShareToken(context.Background(), first.ShareToken)
		return err == nil && !prev.IsActive
	}, 5*time.Second, 10*time.Millisecond)

	current, err := f.sessions.FindByShareToken(context.Background(), second.ShareToken)
	require.NoError(t, err)
	assert.True(t, current.IsActive)
}

func TestValidateAggregatedStructure(t *testing.T) {
	base := func() *models.AggregationResult {
		engine := aggregate.New(aggregate.Options{})
		return engine.Aggregate([]models.StreamEntry{
			rawEntry("2023-01-01T10:00:00Z", 60_000, "Track", "Artist"),
		})
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validateAggregated(base()))
	})

	t.Run("bad month", func(t *testing.T) {
		r := base()
		r.ArtistBuckets[0].Month = "2023-01-15"
		assert.ErrorIs(t, validateAggregated(r), models.ErrPayloadInvalid)
	})

	t.Run("bad marathon rank", func(t *testing.T) {
		r := base()
		r.Marathons = []models.Marathon{{
			StartTime:  time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC),
			EndTime:    time.Date(2023, 1, 1, 11, 0, 0, 0, time.UTC),
			DurationMs: 3_600_000,
			PlayCount:  5,
			Rank:       3,
		}}
		assert.ErrorIs(t, validateAggregated(r), models.ErrPayloadInvalid)
	})

	t.Run("empty summary", func(t *testing.T) {
		r := base()
		r.Summary.TotalEntries = 0
		assert.ErrorIs(t, validateAggregated(r), models.ErrEmptyUpload)
	})
}

func TestSetPersonalityRequiresCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session := models.NewUploadSession("ABCDEFGHIJKLMNOPQRSTUV", "", false)
	require.NoError(t, f.sessions.Create(ctx, session))

	err := f.manager.SetPersonality(ctx, session.ShareToken, "the-loyalist")
	assert.ErrorIs(t, err, models.ErrSessionNotCompleted)

	session.MarkCompleted(models.SessionSummary{TotalEntries: 1}, false)
	require.NoError(t, f.sessions.UpdateStatus(ctx, session))

	require.NoError(t, f.manager.SetPersonality(ctx, session.ShareToken, "the-loyalist"))
	got, err := f.sessions.FindByShareToken(ctx, session.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, "the-loyalist", got.PersonalityID)
}

func TestDeleteRemovesEverything(t *testing.T) {
	f := newFixture(t)

	resp, err := f.manager.Upload(context.Background(), &models.UploadPayload{
		Entries: []models.StreamEntry{rawEntry("2023-01-01T10:00:00Z", 60_000, "Track", "Artist")},
	})
	require.NoError(t, err)
	session := f.waitDone(t, resp.ShareToken)

	require.NoError(t, f.manager.Delete(context.Background(), resp.ShareToken))

	_, err = f.sessions.FindByShareToken(context.Background(), resp.ShareToken)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	assert.Nil(t, f.buckets.get(session.ID))
}

func TestDeleteDropsCachedSharePreview(t *testing.T) {
	f := newFixture(t)

	resp, err := f.manager.Upload(context.Background(), &models.UploadPayload{
		Entries: []models.StreamEntry{rawEntry("2023-01-01T10:00:00Z", 60_000, "Track", "Artist")},
	})
	require.NoError(t, err)
	f.waitDone(t, resp.ShareToken)

	require.NoError(t, f.manager.Delete(context.Background(), resp.ShareToken))

	assert.Equal(t, []string{resp.ShareToken}, f.previews.invalidated)
}
