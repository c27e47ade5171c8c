package handlers

import (
	"net/http"
	"strconv"

	"github.com/music-livereview/backend/internal/config"
	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/services/community"
	"github.com/music-livereview/backend/internal/utils"
)

// CommunityHandler serves aggregates computed across the whole community.
type CommunityHandler struct {
	community *community.Service
	config    *config.Config
	logger    *utils.Logger
}

// NewCommunityHandler creates a new community stats handler.
func NewCommunityHandler(communityService *community.Service, cfg *config.Config, logger *utils.Logger) *CommunityHandler {
	return &CommunityHandler{
		community: communityService,
		config:    cfg,
		logger:    logger.Named("community_handler"),
	}
}

func (h *CommunityHandler) enabled(w http.ResponseWriter) bool {
	if !h.config.Features.EnableCommunityStats {
		respondDomainError(w, h.logger, models.ErrServiceUnavailable)
		return false
	}
	return true
}

// Global serves the community-wide summary.
func (h *CommunityHandler) Global(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	stats, err := h.community.Global(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, stats)
}

// Trending serves the trending artists for a period.
func (h *CommunityHandler) Trending(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	entries, err := h.community.Trending(r.Context(), q.Get("period"), limit)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, entries)
}

// Percentiles places one session among the community.
func (h *CommunityHandler) Percentiles(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	pct, err := h.community.Percentiles(r.Context(), shareToken(r))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, pct)
}

// Personalities serves the community personality distribution.
func (h *CommunityHandler) Personalities(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	dist, err := h.community.Distribution(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dist)
}
