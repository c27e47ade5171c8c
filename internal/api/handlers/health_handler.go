// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/music-livereview/backend/internal/config"
	"github.com/music-livereview/backend/internal/services/system"
	"github.com/music-livereview/backend/internal/utils"
)

// HealthHandler serves the liveness and diagnostic health endpoints.
type HealthHandler struct {
	logger    *utils.Logger
	healthSvc *system.HealthService
	config    *config.Config
	startTime time.Time
	version   string
	revision  string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(
	logger *utils.Logger,
	healthSvc *system.HealthService,
	config *config.Config,
) *HealthHandler {
	version, revision := utils.BuildVersion()
	return &HealthHandler{
		logger:    logger.Named("health_handler"),
		healthSvc: healthSvc,
		config:    config,
		startTime: time.Now(),
		version:   version,
		revision:  revision,
	}
}

// Check reports overall status plus per-component state for mongo and
// redis. Load balancers key off the status code alone.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	health := h.healthSvc.GetHealth(r.Context())

	response := map[string]any{
		"status":     health.Status,
		"version":    h.version,
		"uptime":     time.Since(h.startTime).Round(time.Second).String(),
		"components": health.Components,
	}

	utils.RespondWithJSON(w, h.statusCode(health), response)
}

// DetailedCheck adds runtime diagnostics on top of Check: memory and
// goroutine stats, build info, and the feature switches this instance is
// running with.
func (h *HealthHandler) DetailedCheck(w http.ResponseWriter, r *http.Request) {
	health := h.healthSvc.GetHealth(r.Context())

	response := map[string]any{
		"health":      health,
		"uptime":      time.Since(h.startTime).Round(time.Second).String(),
		"startTime":   h.startTime,
		"environment": h.config.Environment,
		"features":    h.config.Features,
		"build": map[string]any{
			"version":   h.version,
			"revision":  h.revision,
			"goVersion": runtime.Version(),
		},
	}

	utils.RespondWithJSON(w, h.statusCode(health), response)
}

func (h *HealthHandler) statusCode(health system.SystemHealth) int {
	if health.Status != system.StatusUp {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
