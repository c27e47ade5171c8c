// Package stats builds the personal read models served to a share page. All
// views are computed from the stored buckets of one completed session; the
// raw export is never consulted after aggregation.
package stats

import (
	"context"
	"math"
	"sort"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/music-livereview/backend/internal/db/mongo/repositories"
	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/utils"
)

// DefaultTopLimit caps top-artist and top-track lists when no limit is given.
const DefaultTopLimit = 10

// MarathonLimit caps the marathons view.
const MarathonLimit = 20

// msPerHour converts milliseconds to fractional hours.
const msPerHour = float64(1000 * 60 * 60)

// Marathon mood labels, by skip rate.
const (
	MoodInTheZone   = "In the Zone"
	MoodExploratory = "Exploratory"
	MoodRestless    = "Restless"
)

// TokenResolver resolves cached share tokens. Satisfied by
// managers.TokenCache.
type TokenResolver interface {
	Get(ctx context.Context, token string) (bson.ObjectID, bool, error)
	Put(ctx context.Context, token string, sessionID bson.ObjectID) error
}

// Service serves personal stats for completed sessions.
type Service struct {
	sessions repositories.SessionRepository
	buckets  repositories.BucketRepository
	tokens   TokenResolver
	logger   *utils.Logger
}

// NewService creates a personal stats service.
func NewService(
	sessions repositories.SessionRepository,
	buckets repositories.BucketRepository,
	tokens TokenResolver,
	logger *utils.Logger,
) *Service {
	return &Service{
		sessions: sessions,
		buckets:  buckets,
		tokens:   tokens,
		logger:   logger.Named("stats_service"),
	}
}

// Resolve maps a share token to its completed session. Lookups go through
// the Redis token cache; misses fall back to Mongo and repopulate it.
func (s *Service) Resolve(ctx context.Context, token string) (*models.UploadSession, error) {
	if err := utils.ValidateVar(token, "required,share_token"); err != nil {
		return nil, models.ErrInvalidShareToken
	}

	if id, ok, err := s.tokens.Get(ctx, token); err == nil && ok {
		session, err := s.sessions.FindByID(ctx, id)
		if err == nil {
			return s.requireCompleted(session)
		}
	}

	session, err := s.sessions.FindByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Put(ctx, token, session.ID); err != nil {
		s.logger.Warn("Failed to cache share token", "error", err)
	}
	return s.requireCompleted(session)
}

func (s *Service) requireCompleted(session *models.UploadSession) (*models.UploadSession, error) {
	if session.Status != models.UploadCompleted {
		return nil, models.ErrSessionNotCompleted
	}
	return session, nil
}

// Overview returns the headline summary for a session.
func (s *Service) Overview(ctx context.Context, token string) (*models.Overview, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	tracks, err := s.buckets.TrackBuckets(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	albums := lo.Uniq(lo.FilterMap(tracks, func(b models.TrackBucket, _ int) (string, bool) {
		return b.AlbumName, b.AlbumName != ""
	}))

	hours := float64(session.TotalMsPlayed) / msPerHour
	return &models.Overview{
		TotalHours:    round1(hours),
		TotalDays:     round1(hours / 24),
		TotalPlays:    session.EntryCount,
		UniqueTracks:  session.UniqueTracks,
		UniqueArtists: session.UniqueArtists,
		UniqueAlbums:  int64(len(albums)),
		DateFrom:      session.DateFrom,
		DateTo:        session.DateTo,
	}, nil
}

// TopArtists returns the artists with the most listening in the filtered
// range, ordered by hours or play count.
func (s *Service) TopArtists(ctx context.Context, token string, filter models.StatsFilter) ([]models.TopArtistEntry, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	buckets, err := s.buckets.ArtistBuckets(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	type agg struct {
		plays int64
		ms    int64
	}
	totals := make(map[string]*agg)
	for i := range buckets {
		b := &buckets[i]
		if !monthInRange(b.Month, filter) {
			continue
		}
		if filter.Artist != "" && b.ArtistName != filter.Artist {
			continue
		}
		a := totals[b.ArtistName]
		if a == nil {
			a = &agg{}
			totals[b.ArtistName] = a
		}
		a.plays += b.PlayCount
		a.ms += b.MsPlayed
	}

	entries := make([]models.TopArtistEntry, 0, len(totals))
	for name, a := range totals {
		entries = append(entries, models.TopArtistEntry{
			Name:       name,
			PlayCount:  a.plays,
			TotalHours: msToHours1(a.ms),
		})
	}

	byCount := filter.Sort == "count"
	sort.Slice(entries, func(i, j int) bool {
		if byCount {
			if entries[i].PlayCount != entries[j].PlayCount {
				return entries[i].PlayCount > entries[j].PlayCount
			}
		} else if entries[i].TotalHours != entries[j].TotalHours {
			return entries[i].TotalHours > entries[j].TotalHours
		}
		return entries[i].Name < entries[j].Name
	})

	return capLimit(entries, filter.Limit, DefaultTopLimit), nil
}

// TopTracks returns the most-listened tracks in the filtered range.
func (s *Service) TopTracks(ctx context.Context, token string, filter models.StatsFilter) ([]models.TopTrackEntry, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	buckets, err := s.buckets.TrackBuckets(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	type key struct{ track, artist string }
	type agg struct {
		plays int64
		ms    int64
	}
	totals := make(map[key]*agg)
	for i := range buckets {
		b := &buckets[i]
		if !monthInRange(b.Month, filter) {
			continue
		}
		if filter.Artist != "" && b.ArtistName != filter.Artist {
			continue
		}
		k := key{b.TrackName, b.ArtistName}
		a := totals[k]
		if a == nil {
			a = &agg{}
			totals[k] = a
		}
		a.plays += b.PlayCount
		a.ms += b.MsPlayed
	}

	entries := make([]models.TopTrackEntry, 0, len(totals))
	for k, a := range totals {
		entries = append(entries, models.TopTrackEntry{
			Name:       k.track,
			ArtistName: k.artist,
			PlayCount:  a.plays,
			TotalHours: msToHours1(a.ms),
		})
	}

	byCount := filter.Sort == "count"
	sort.Slice(entries, func(i, j int) bool {
		if byCount {
			if entries[i].PlayCount != entries[j].PlayCount {
				return entries[i].PlayCount > entries[j].PlayCount
			}
		} else if entries[i].TotalHours != entries[j].TotalHours {
			return entries[i].TotalHours > entries[j].TotalHours
		}
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ArtistName < entries[j].ArtistName
	})

	return capLimit(entries, filter.Limit, DefaultTopLimit), nil
}

// Timeline returns listening hours and plays per month.
func (s *Service) Timeline(ctx context.Context, token string, filter models.StatsFilter) ([]models.TimelinePoint, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	totals, err := s.buckets.MonthlyTotals(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	points := lo.FilterMap(totals, func(t models.MonthlyTotal, _ int) (models.TimelinePoint, bool) {
		if !monthInRange(t.Month, filter) {
			return models.TimelinePoint{}, false
		}
		return models.TimelinePoint{
			Period:     t.Month,
			TotalHours: msToHours1(t.MsPlayed),
			TotalPlays: t.PlayCount,
		}, true
	})

	return points, nil
}

// Heatmap returns hours listened per Monday-first weekday and hour of day.
func (s *Service) Heatmap(ctx context.Context, token string, filter models.StatsFilter) (*models.Heatmap, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	buckets, err := s.buckets.HourlyBuckets(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	var ms [7][24]int64
	for i := range buckets {
		b := &buckets[i]
		if !monthInRange(b.Month, filter) {
			continue
		}
		ms[mondayFirst(b.DayOfWeek)][b.HourOfDay] += b.MsPlayed
	}

	var heatmap models.Heatmap
	for d := range 7 {
		for h := range 24 {
			heatmap.Data[d][h] = msToHours1(ms[d][h])
		}
	}
	return &heatmap, nil
}

// DiscoveryRate splits each month's distinct tracks into first listens and
// repeats, using the stored first-play index.
func (s *Service) DiscoveryRate(ctx context.Context, token string, filter models.StatsFilter) ([]models.DiscoveryRatePoint, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	tracks, err := s.buckets.TrackBuckets(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	firstPlays, err := s.buckets.FirstPlays(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	firstMonth := make(map[string]string, len(firstPlays))
	for _, fp := range firstPlays {
		firstMonth[fp.TrackKey] = fp.FirstPlayMonth
	}

	type split struct{ newSongs, repeats int64 }
	byMonth := make(map[string]*split)
	for i := range tracks {
		b := &tracks[i]
		if !monthInRange(b.Month, filter) {
			continue
		}
		sp := byMonth[b.Month]
		if sp == nil {
			sp = &split{}
			byMonth[b.Month] = sp
		}
		if firstMonth[trackKey(b)] == b.Month {
			sp.newSongs++
		} else {
			sp.repeats++
		}
	}

	months := lo.Keys(byMonth)
	sort.Strings(months)

	points := make([]models.DiscoveryRatePoint, 0, len(months))
	for _, month := range months {
		sp := byMonth[month]
		total := sp.newSongs + sp.repeats
		var rate float64
		if total > 0 {
			rate = round1(float64(sp.newSongs) / float64(total) * 100)
		}
		points = append(points, models.DiscoveryRatePoint{
			Period:        month,
			NewSongs:      sp.newSongs,
			Repeats:       sp.repeats,
			DiscoveryRate: rate,
		})
	}
	return points, nil
}

// Stamina returns average auto-advance chain lengths per Monday-first
// weekday/hour slot, plus the overall average.
func (s *Service) Stamina(ctx context.Context, token string, filter models.StatsFilter) (*models.SessionStamina, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	buckets, err := s.buckets.HourlyBuckets(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	var length, chains [7][24]int64
	var totalLength, totalChains int64
	for i := range buckets {
		b := &buckets[i]
		if !monthInRange(b.Month, filter) {
			continue
		}
		d := mondayFirst(b.DayOfWeek)
		length[d][b.HourOfDay] += b.TotalChainLength
		chains[d][b.HourOfDay] += b.ChainCount
		totalLength += b.TotalChainLength
		totalChains += b.ChainCount
	}

	stamina := &models.SessionStamina{}
	for d := range 7 {
		for h := range 24 {
			if chains[d][h] > 0 {
				stamina.Data[d][h] = round1(float64(length[d][h]) / float64(chains[d][h]))
			}
		}
	}
	if totalChains > 0 {
		stamina.OverallAverage = round1(float64(totalLength) / float64(totalChains))
	}
	return stamina, nil
}

// Marathons returns the ranked marathon sessions in display form. When a
// date filter is active the filtered subset is re-ranked by duration;
// without filters the stored all-time ranks are kept.
func (s *Service) Marathons(ctx context.Context, token string, filter models.StatsFilter) ([]models.MarathonEntry, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	marathons, err := s.buckets.Marathons(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	filtered := filter.From != "" || filter.To != ""
	entries := make([]models.MarathonEntry, 0, len(marathons))
	for i := range marathons {
		m := &marathons[i]
		month := models.MonthKey(m.StartTime)
		if !monthInRange(month, filter) {
			continue
		}
		rank := m.Rank
		if filtered {
			rank = len(entries) + 1
		}
		entries = append(entries, models.MarathonEntry{
			Rank:            rank,
			Date:            m.StartTime.UTC().Format("2006-01-02"),
			DurationMinutes: m.DurationMs / 60_000,
			PlayCount:       m.PlayCount,
			SkipRate:        m.SkipRate,
			Mood:            marathonMood(m.SkipRate),
			TopArtist:       m.TopArtist,
			TopTrack:        m.TopTrack,
			TopTrackArtist:  m.TopTrackArtist,
		})
		if len(entries) == MarathonLimit {
			break
		}
	}
	return entries, nil
}

// PersonalityInputs derives the classifier signals from stored buckets.
func (s *Service) PersonalityInputs(ctx context.Context, token string) (*models.PersonalityInputs, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	hourly, err := s.buckets.HourlyBuckets(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	artists, err := s.buckets.ArtistBuckets(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	tracks, err := s.buckets.TrackBuckets(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	inputs := &models.PersonalityInputs{UniqueArtistCount: session.UniqueArtists}

	var totalLength, totalChains int64
	for i := range hourly {
		b := &hourly[i]
		inputs.HourTotals[b.HourOfDay] += b.MsPlayed
		totalLength += b.TotalChainLength
		totalChains += b.ChainCount
	}
	if totalChains > 0 {
		inputs.AvgChainLength = round1(float64(totalLength) / float64(totalChains))
	}

	artistMs := make(map[string]int64)
	var totalArtistMs, artistPlays, artistSkips int64
	for i := range artists {
		b := &artists[i]
		artistMs[b.ArtistName] += b.MsPlayed
		totalArtistMs += b.MsPlayed
		artistPlays += b.PlayCount
		artistSkips += b.SkipCount
	}
	if totalArtistMs > 0 {
		sums := lo.Values(artistMs)
		sort.Slice(sums, func(i, j int) bool { return sums[i] > sums[j] })
		var top10 int64
		for i, v := range sums {
			if i == 10 {
				break
			}
			top10 += v
		}
		inputs.Top10ArtistMsPct = round1(float64(top10) / float64(totalArtistMs) * 100)
	}
	if artistPlays > 0 {
		inputs.GlobalSkipRate = round1(float64(artistSkips) / float64(artistPlays) * 100)
	}

	var trackPlays, shufflePlays int64
	for i := range tracks {
		trackPlays += tracks[i].PlayCount
		shufflePlays += tracks[i].ShufflePlayCount
	}
	if trackPlays > 0 {
		inputs.ShuffleRate = round1(float64(shufflePlays) / float64(trackPlays) * 100)
	}

	return inputs, nil
}

// marathonMood labels a marathon by its skip rate, using the same bands the
// personality classifier uses for skip behavior.
func marathonMood(skipRate float64) string {
	switch {
	case skipRate < 20:
		return MoodInTheZone
	case skipRate < 50:
		return MoodExploratory
	default:
		return MoodRestless
	}
}

// trackKey reproduces the track identity used by the first-play index.
func trackKey(b *models.TrackBucket) string {
	if b.TrackURI != "" {
		return b.TrackURI
	}
	return b.TrackName + "\x00" + b.ArtistName
}

// mondayFirst remaps a UTC Sunday-first weekday index to Monday-first.
func mondayFirst(dow int) int {
	if dow == 0 {
		return 6
	}
	return dow - 1
}

// monthInRange checks a month key against an inclusive filter range. Month
// keys sort lexically.
func monthInRange(month string, f models.StatsFilter) bool {
	if f.From != "" && month < f.From {
		return false
	}
	if f.To != "" && month > f.To {
		return false
	}
	return true
}

func capLimit[T any](entries []T, limit, def int) []T {
	if limit <= 0 {
		limit = def
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func msToHours1(ms int64) float64 {
	return round1(float64(ms) / msPerHour)
}
