package handlers

import (
	"net/http"
	"strconv"

	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/services/personality"
	"github.com/music-livereview/backend/internal/services/stats"
	"github.com/music-livereview/backend/internal/utils"
)

// Recorder counts stats view hits. Satisfied by system.MetricsService.
type Recorder interface {
	IncStatsRequest(view string)
}

// StatsHandler serves the personal read models for one completed session.
type StatsHandler struct {
	stats    *stats.Service
	recorder Recorder
	logger   *utils.Logger
}

// NewStatsHandler creates a new stats handler. recorder may be nil.
func NewStatsHandler(statsService *stats.Service, recorder Recorder, logger *utils.Logger) *StatsHandler {
	return &StatsHandler{
		stats:    statsService,
		recorder: recorder,
		logger:   logger.Named("stats_handler"),
	}
}

// parseFilter reads the shared query parameters for stats views. from and to
// are full dates; only their month matters, so they are normalized to month
// keys. Bad values are ignored rather than rejected.
func parseFilter(r *http.Request) models.StatsFilter {
	q := r.URL.Query()

	var filter models.StatsFilter
	if t := utils.ParseDate(q.Get("from")); !t.IsZero() {
		filter.From = models.MonthKey(t)
	}
	if t := utils.ParseDate(q.Get("to")); !t.IsZero() {
		filter.To = models.MonthKey(t)
	}
	filter.Artist = q.Get("artist")
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = min(limit, 500)
	}
	if sort := q.Get("sort"); sort == "hours" || sort == "count" {
		filter.Sort = sort
	}
	return filter
}

func (h *StatsHandler) record(view string) {
	if h.recorder != nil {
		h.recorder.IncStatsRequest(view)
	}
}

// Overview serves the headline summary.
func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	h.record("overview")
	overview, err := h.stats.Overview(r.Context(), shareToken(r))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, overview)
}

// TopArtists serves the ranked artist list.
func (h *StatsHandler) TopArtists(w http.ResponseWriter, r *http.Request) {
	h.record("top_artists")
	entries, err := h.stats.TopArtists(r.Context(), shareToken(r), parseFilter(r))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, entries)
}

// TopTracks serves the ranked track list.
func (h *StatsHandler) TopTracks(w http.ResponseWriter, r *http.Request) {
	h.record("top_tracks")
	entries, err := h.stats.TopTracks(r.Context(), shareToken(r), parseFilter(r))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, entries)
}

// Timeline serves listening totals per month.
func (h *StatsHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	h.record("timeline")
	points, err := h.stats.Timeline(r.Context(), shareToken(r), parseFilter(r))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, points)
}

// Heatmap serves the weekday/hour listening grid.
func (h *StatsHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	h.record("heatmap")
	heatmap, err := h.stats.Heatmap(r.Context(), shareToken(r), parseFilter(r))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, heatmap)
}

// Discovery serves the new-vs-repeat split per month.
func (h *StatsHandler) Discovery(w http.ResponseWriter, r *http.Request) {
	h.record("discovery")
	points, err := h.stats.DiscoveryRate(r.Context(), shareToken(r), parseFilter(r))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, points)
}

// Stamina serves average session chain lengths per weekday/hour slot.
func (h *StatsHandler) Stamina(w http.ResponseWriter, r *http.Request) {
	h.record("stamina")
	stamina, err := h.stats.Stamina(r.Context(), shareToken(r), parseFilter(r))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, stamina)
}

// Marathons serves the ranked marathon sessions.
func (h *StatsHandler) Marathons(w http.ResponseWriter, r *http.Request) {
	h.record("marathons")
	entries, err := h.stats.Marathons(r.Context(), shareToken(r), parseFilter(r))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, entries)
}

// PersonalityInputs serves the raw classifier signals, for clients that run
// the classification themselves.
func (h *StatsHandler) PersonalityInputs(w http.ResponseWriter, r *http.Request) {
	h.record("personality_inputs")
	inputs, err := h.stats.PersonalityInputs(r.Context(), shareToken(r))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, inputs)
}

// Personality classifies the session server-side and serves the full result.
func (h *StatsHandler) Personality(w http.ResponseWriter, r *http.Request) {
	h.record("personality")
	inputs, err := h.stats.PersonalityInputs(r.Context(), shareToken(r))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, personality.Classify(inputs))
}
