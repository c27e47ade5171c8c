package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/music-livereview/backend/internal/config"
	"github.com/music-livereview/backend/internal/services/share"
	"github.com/music-livereview/backend/internal/utils"
)

// ShareRecorder counts rendered share pages. Satisfied by
// system.MetricsService.
type ShareRecorder interface {
	IncSharePageRendered()
}

// ShareHandler serves the crawler-facing share pages. It never surfaces an
// error page; anything that goes wrong falls back to a redirect into the SPA,
// which shows its own not-found state.
type ShareHandler struct {
	share    *share.Service
	recorder ShareRecorder
	config   *config.Config
	logger   *utils.Logger
}

// NewShareHandler creates a new share page handler. recorder may be nil.
func NewShareHandler(shareService *share.Service, recorder ShareRecorder, cfg *config.Config, logger *utils.Logger) *ShareHandler {
	return &ShareHandler{
		share:    shareService,
		recorder: recorder,
		config:   cfg,
		logger:   logger.Named("share_handler"),
	}
}

// Page renders the OG preview page for a share token.
func (h *ShareHandler) Page(w http.ResponseWriter, r *http.Request) {
	token := shareToken(r)
	spaURL := fmt.Sprintf("%s/results/%s", strings.TrimRight(h.config.Share.BaseURL, "/"), token)

	if !h.config.Features.EnableSharePages {
		http.Redirect(w, r, spaURL, http.StatusFound)
		return
	}

	html, err := h.share.Page(r.Context(), token)
	if err != nil {
		h.logger.Debug("Share page fallback redirect", "error", err)
		http.Redirect(w, r, spaURL, http.StatusFound)
		return
	}

	if h.recorder != nil {
		h.recorder.IncSharePageRendered()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write([]byte(html))
}
