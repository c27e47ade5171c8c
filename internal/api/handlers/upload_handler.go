// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/music-livereview/backend/internal/config"
	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/services/personality"
	"github.com/music-livereview/backend/internal/services/upload"
	"github.com/music-livereview/backend/internal/utils"
)

// UploadHandler handles upload sessions: accepting exports, polling their
// status, recording a personality and deleting everything again.
type UploadHandler struct {
	manager *upload.Manager
	config  *config.Config
	logger  *utils.Logger
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(manager *upload.Manager, cfg *config.Config, logger *utils.Logger) *UploadHandler {
	return &UploadHandler{
		manager: manager,
		config:  cfg,
		logger:  logger.Named("upload_handler"),
	}
}

// Upload accepts a listening history export. The body is JSON, usually
// gzip-compressed, carrying either raw entries or a pre-aggregated result.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.config.Features.EnableUploads {
		respondDomainError(w, h.logger, models.ErrServiceUnavailable)
		return
	}

	var payload models.UploadPayload
	if err := utils.DecodeJSONBody(r, &payload, h.config.Upload.MaxBodyBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondDomainError(w, h.logger, models.ErrPayloadTooLarge)
			return
		}
		h.logger.Debug("Failed to decode upload body", "error", err)
		respondDomainError(w, h.logger, models.ErrPayloadInvalid)
		return
	}

	resp, err := h.manager.Upload(r.Context(), &payload)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusAccepted, resp)
}

// Status reports the processing state for a share token.
func (h *UploadHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp, err := h.manager.Status(r.Context(), shareToken(r))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// personalityRequest is the body of a personality POST.
type personalityRequest struct {
	PersonalityID string `json:"personalityId" validate:"required"`
}

// SetPersonality records the personality the client settled on for a session.
func (h *UploadHandler) SetPersonality(w http.ResponseWriter, r *http.Request) {
	if !h.config.Features.EnablePersonality {
		respondDomainError(w, h.logger, models.ErrServiceUnavailable)
		return
	}

	var req personalityRequest
	if err := utils.DecodeJSONBody(r, &req, 4096); err != nil {
		respondDomainError(w, h.logger, models.ErrInvalidInput)
		return
	}
	if err := utils.Validate(&req); err != nil {
		utils.RespondWithValidationError(w, err)
		return
	}
	if !personality.IsKnown(req.PersonalityID) {
		respondDomainError(w, h.logger, models.ErrInvalidInput)
		return
	}

	if err := h.manager.SetPersonality(r.Context(), shareToken(r), req.PersonalityID); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.APIResponse{Success: true})
}

// Delete removes a session and everything stored for it.
func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.Context(), shareToken(r)); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
