package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/music-livereview/backend/internal/config"
	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/services/share"
	"github.com/music-livereview/backend/internal/utils"
)

const testToken = "ABCDEFGHIJKLMNOPQRSTUV"

func testLogger() *utils.Logger {
	return utils.NewLogger(utils.LoggerOptions{Level: zapcore.ErrorLevel})
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  models.StatsFilter
	}{
		{
			name:  "empty query",
			query: "",
			want:  models.StatsFilter{},
		},
		{
			name:  "dates normalize to month keys",
			query: "from=2022-03-15&to=2023-01-02",
			want:  models.StatsFilter{From: "2022-03-01", To: "2023-01-01"},
		},
		{
			name:  "bad dates are ignored",
			query: "from=yesterday&to=2023-13-40",
			want:  models.StatsFilter{},
		},
		{
			name:  "limit and sort",
			query: "limit=25&sort=count&artist=Khruangbin",
			want:  models.StatsFilter{Limit: 25, Sort: "count", Artist: "Khruangbin"},
		},
		{
			name:  "limit is capped",
			query: "limit=9999",
			want:  models.StatsFilter{Limit: 500},
		},
		{
			name:  "unknown sort is dropped",
			query: "sort=alphabetical",
			want:  models.StatsFilter{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/stats?"+tt.query, nil)
			assert.Equal(t, tt.want, parseFilter(r))
		})
	}
}

func TestRespondDomainErrorCodes(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
	}{
		{models.ErrSessionNotFound, http.StatusNotFound},
		{models.ErrSessionNotCompleted, http.StatusNotFound},
		{models.ErrInsufficientData, http.StatusNotFound},
		{models.ErrInvalidShareToken, http.StatusBadRequest},
		{models.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{models.ErrServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondDomainError(rec, testLogger(), tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}

// shareStats is a minimal StatsProvider for share handler tests.
type shareStats struct {
	overview *models.Overview
	err      error
}

func (f *shareStats) Overview(context.Context, string) (*models.Overview, error) {
	return f.overview, f.err
}

func (f *shareStats) TopArtists(context.Context, string, models.StatsFilter) ([]models.TopArtistEntry, error) {
	return nil, f.err
}

func (f *shareStats) TopTracks(context.Context, string, models.StatsFilter) ([]models.TopTrackEntry, error) {
	return nil, f.err
}

func (f *shareStats) Marathons(context.Context, string, models.StatsFilter) ([]models.MarathonEntry, error) {
	return nil, f.err
}

func (f *shareStats) Timeline(context.Context, string, models.StatsFilter) ([]models.TimelinePoint, error) {
	return nil, f.err
}

func newShareRouter(t *testing.T, stats *shareStats, enabled bool) http.Handler {
	t.Helper()
	cfg := config.CreateDefaultConfig()
	cfg.Features.EnableSharePages = enabled

	shareService := share.NewService(stats, cfg, testLogger())
	handler := NewShareHandler(shareService, nil, cfg, testLogger())

	r := chi.NewRouter()
	r.Get("/share/{token}", handler.Page)
	return r
}

func TestSharePageRendersHTML(t *testing.T) {
	stats := &shareStats{overview: &models.Overview{TotalHours: 1234, UniqueArtists: 250}}
	router := newShareRouter(t, stats, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/share/"+testToken, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "og:title")
	assert.Contains(t, rec.Body.String(), "/results/"+testToken)
}

func TestSharePageFallsBackToRedirect(t *testing.T) {
	stats := &shareStats{err: models.ErrSessionNotFound}
	router := newShareRouter(t, stats, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/share/"+testToken, nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/results/"+testToken)
}

func TestSharePageDisabledRedirects(t *testing.T) {
	stats := &shareStats{overview: &models.Overview{TotalHours: 10}}
	router := newShareRouter(t, stats, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/share/"+testToken, nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/results/"+testToken)
}
