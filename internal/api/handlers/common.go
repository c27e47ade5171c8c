package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/utils"
)

// respondDomainError maps a service error onto the standard error envelope.
// Internal errors are logged; client errors are not.
func respondDomainError(w http.ResponseWriter, logger *utils.Logger, err error) {
	code := models.StatusCodeFor(err)
	if code >= http.StatusInternalServerError {
		logger.Error("Request failed", err)
	}
	utils.RespondWithJSON(w, code, models.NewErrorResponse(err))
}

// shareToken extracts the {token} route parameter.
func shareToken(r *http.Request) string {
	return chi.URLParam(r, "token")
}
