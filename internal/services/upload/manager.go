// Package upload provides the upload session lifecycle: accepting exports,
// running aggregation in the background, and persisting the results.
package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/music-livereview/backend/internal/config"
	"github.com/music-livereview/backend/internal/db/mongo/repositories"
	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/services/aggregate"
	"github.com/music-livereview/backend/internal/utils"
)

// Recorder receives processing outcomes for metrics. A nil Recorder is
// allowed and disables recording.
type Recorder interface {
	RecordUpload(status models.UploadStatus, duration time.Duration, events int64)
	RecordTruncated()
	SetAggregationQueueDepth(depth int)
}

// TokenStore caches share-token lookups. Satisfied by managers.TokenCache.
type TokenStore interface {
	Put(ctx context.Context, token string, sessionID bson.ObjectID) error
	Invalidate(ctx context.Context, token string) error
}

// CommunityCache invalidates cached community aggregates. Satisfied by
// managers.StatsCache.
type CommunityCache interface {
	InvalidateAll(ctx context.Context) error
}

// PreviewInvalidator drops a token's cached share preview. Satisfied by
// share.Service; a nil value disables invalidation.
type PreviewInvalidator interface {
	InvalidatePreview(token string)
}

// Manager owns the upload session lifecycle. Uploads are accepted
// synchronously but aggregated by a background worker pool; clients poll the
// status endpoint until processing completes.
type Manager struct {
	sessions repositories.SessionRepository
	buckets  repositories.BucketRepository
	tokens   TokenStore
	stats    CommunityCache
	previews PreviewInvalidator
	recorder Recorder
	cfg      *config.Config
	logger   *utils.Logger

	jobs chan job
	wg   sync.WaitGroup
}

type job struct {
	session *models.UploadSession
	payload *models.UploadPayload
}

// NewManager creates an upload manager and starts its worker pool.
func NewManager(
	sessions repositories.SessionRepository,
	buckets repositories.BucketRepository,
	tokens TokenStore,
	stats CommunityCache,
	previews PreviewInvalidator,
	recorder Recorder,
	cfg *config.Config,
	logger *utils.Logger,
) *Manager {
	workers := cfg.Upload.Workers
	if workers <= 0 {
		workers = 1
	}

	m := &Manager{
		sessions: sessions,
		buckets:  buckets,
		tokens:   tokens,
		stats:    stats,
		previews: previews,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger.Named("upload_manager"),
		jobs:     make(chan job, workers*2),
	}

	m.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go m.worker(i)
	}

	return m
}

// Upload validates a payload, creates a pending session, and queues it for
// aggregation. The response carries the share token the client will poll.
func (m *Manager) Upload(ctx context.Context, payload *models.UploadPayload) (*models.UploadResponse, error) {
	if err := m.validatePayload(payload); err != nil {
		return nil, err
	}

	token, err := utils.GenerateShareToken()
	if err != nil {
		m.logger.Error("Failed to generate share token", err)
		return nil, models.NewInternalError(err, "Failed to generate share token")
	}

	session := models.NewUploadSession(token, payload.UserHash, payload.OptOut)
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	select {
	case m.jobs <- job{session: session, payload: payload}:
		m.recordQueueDepth()
	default:
		// Queue full. Fail the session rather than block the request.
		session.MarkFailed()
		_ = m.sessions.UpdateStatus(ctx, session)
		m.logger.Warn("Upload queue full, rejecting upload", "token", utils.TruncateString(token, 8)+"...")
		return nil, models.ErrServiceUnavailable
	}

	m.logger.Info("Accepted upload",
		"token", utils.TruncateString(token, 8)+"...",
		"entries", len(payload.Entries),
		"preAggregated", payload.Aggregated != nil,
		"optOut", payload.OptOut)

	return &models.UploadResponse{
		ShareToken: session.ShareToken,
		Status:     session.Status,
	}, nil
}

// Status reports the processing state for a share token.
func (m *Manager) Status(ctx context.Context, token string) (*models.StatusResponse, error) {
	session, err := m.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	resp := &models.StatusResponse{
		Status:    session.Status,
		Truncated: session.Truncated,
	}
	if session.Status == models.UploadCompleted {
		resp.EntryCount = session.EntryCount
		resp.DateFrom = &session.DateFrom
		resp.DateTo = &session.DateTo
	}

	return resp, nil
}

// SetPersonality records the personality the client computed for a session.
// The ID must already be validated against the known personality set.
func (m *Manager) SetPersonality(ctx context.Context, token, personalityID string) error {
	session, err := m.findByToken(ctx, token)
	if err != nil {
		return err
	}

	if session.Status != models.UploadCompleted {
		return models.ErrSessionNotCompleted
	}

	if err := m.sessions.SetPersonality(ctx, session.ID, personalityID); err != nil {
		return err
	}

	// The distribution snapshot is stale now.
	if err := m.stats.InvalidateAll(ctx); err != nil {
		m.logger.Warn("Failed to invalidate community cache", "error", err)
	}

	return nil
}

// Delete removes a session and all of its stored buckets.
func (m *Manager) Delete(ctx context.Context, token string) error {
	session, err := m.findByToken(ctx, token)
	if err != nil {
		return err
	}

	if err := m.buckets.DeleteAll(ctx, session.ID); err != nil {
		return err
	}
	if err := m.sessions.Delete(ctx, session.ID); err != nil {
		return err
	}

	_ = m.tokens.Invalidate(ctx, token)
	if m.previews != nil {
		m.previews.InvalidatePreview(token)
	}
	if err := m.stats.InvalidateAll(ctx); err != nil {
		m.logger.Warn("Failed to invalidate community cache", "error", err)
	}

	m.logger.Info("Deleted session", "id", session.ID.Hex())
	return nil
}

// Close drains the worker pool. Queued jobs finish first; stop accepting
// requests before calling this.
func (m *Manager) Close() {
	close(m.jobs)
	m.wg.Wait()
}

func (m *Manager) findByToken(ctx context.Context, token string) (*models.UploadSession, error) {
	if err := utils.ValidateVar(token, "required,share_token"); err != nil {
		return nil, models.ErrInvalidShareToken
	}
	return m.sessions.FindByShareToken(ctx, token)
}

// validatePayload enforces the payload contract: exactly one of Entries or
// Aggregated, and a well-formed user hash when one is present.
func (m *Manager) validatePayload(payload *models.UploadPayload) error {
	if payload == nil {
		return models.ErrPayloadInvalid
	}
	if len(payload.Entries) > 0 && payload.Aggregated != nil {
		return models.ErrConflictingPayloads
	}
	if len(payload.Entries) == 0 && payload.Aggregated == nil {
		return models.ErrEmptyUpload
	}
	if payload.UserHash != "" {
		if err := utils.ValidateVar(payload.UserHash, "user_hash"); err != nil {
			return models.ErrPayloadInvalid
		}
	}
	if payload.Aggregated != nil {
		if err := validateAggregated(payload.Aggregated); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()
	logger := m.logger.With("worker", id)
	for j := range m.jobs {
		m.process(j, logger)
		m.recordQueueDepth()
	}
}

func (m *Manager) recordQueueDepth() {
	if m.recorder != nil {
		m.recorder.SetAggregationQueueDepth(len(m.jobs))
	}
}

// process runs one aggregation job end to end. It never returns an error;
// failures mark the session failed and are visible to the polling client.
func (m *Manager) process(j job, logger *utils.Logger) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Upload.ProcessTimeout)
	defer cancel()

	session := j.session
	session.MarkProcessing()
	if err := m.sessions.UpdateStatus(ctx, session); err != nil {
		logger.Error("Failed to mark session processing", err, "id", session.ID.Hex())
		m.fail(ctx, session, logger, start, 0)
		return
	}

	var result *models.AggregationResult
	if j.payload.Aggregated != nil {
		result = j.payload.Aggregated
	} else {
		engine := aggregate.New(aggregate.Options{
			MaxEvents: m.cfg.Upload.MaxEvents,
			Progress: func(stage aggregate.Stage) {
				logger.Debug("Aggregation stage", "id", session.ID.Hex(), "stage", string(stage))
			},
		})
		result = engine.Aggregate(j.payload.Entries)
	}

	if result.Summary.TotalEntries == 0 {
		logger.Warn("Upload produced no valid events", "id", session.ID.Hex(),
			"skipped", result.SkippedEntries)
		m.fail(ctx, session, logger, start, 0)
		return
	}

	if err := m.buckets.ReplaceAll(ctx, session.ID, result); err != nil {
		logger.Error("Failed to persist buckets", err, "id", session.ID.Hex())
		m.fail(ctx, session, logger, start, result.Summary.TotalEntries)
		return
	}

	session.MarkCompleted(result.Summary, result.Truncated)
	if err := m.sessions.UpdateStatus(ctx, session); err != nil {
		logger.Error("Failed to mark session completed", err, "id", session.ID.Hex())
		m.fail(ctx, session, logger, start, result.Summary.TotalEntries)
		return
	}

	// A repeat upload by the same user replaces their community presence.
	if session.UserHash != "" && !session.OptOut {
		if n, err := m.sessions.DeactivateOthers(ctx, session.UserHash, session.ID); err != nil {
			logger.Warn("Failed to deactivate previous sessions", "error", err, "id", session.ID.Hex())
		} else if n > 0 {
			logger.Info("Deactivated previous sessions", "count", n, "id", session.ID.Hex())
		}
	}

	if err := m.tokens.Put(ctx, session.ShareToken, session.ID); err != nil {
		logger.Warn("Failed to cache share token", "error", err)
	}
	if err := m.stats.InvalidateAll(ctx); err != nil {
		logger.Warn("Failed to invalidate community cache", "error", err)
	}

	if m.recorder != nil {
		m.recorder.RecordUpload(models.UploadCompleted, time.Since(start), session.EntryCount)
		if result.Truncated {
			m.recorder.RecordTruncated()
		}
	}

	logger.Info("Completed aggregation",
		"id", session.ID.Hex(),
		"entries", session.EntryCount,
		"skipped", result.SkippedEntries,
		"truncated", result.Truncated,
		"duration", time.Since(start))
}

func (m *Manager) fail(ctx context.Context, session *models.UploadSession, logger *utils.Logger, start time.Time, events int64) {
	session.MarkFailed()
	if err := m.sessions.UpdateStatus(ctx, session); err != nil {
		logger.Error("Failed to mark session failed", err, "id", session.ID.Hex())
	}
	if m.recorder != nil {
		m.recorder.RecordUpload(models.UploadFailed, time.Since(start), events)
	}
}

// validateAggregated checks a client-computed result before it is trusted.
// Field-level constraints come from the model validate tags; the structural
// checks below cover what tags cannot express.
func validateAggregated(result *models.AggregationResult) error {
	v := utils.GetValidator()

	for i := range result.ArtistBuckets {
		b := &result.ArtistBuckets[i]
		if err := v.Struct(b); err != nil {
			return fmt.Errorf("%w: artist bucket %d: %v", models.ErrPayloadInvalid, i, err)
		}
		if err := v.Var(b.Month, "month_key"); err != nil {
			return fmt.Errorf("%w: artist bucket %d has bad month %q", models.ErrPayloadInvalid, i, b.Month)
		}
	}

	for i := range result.TrackBuckets {
		b := &result.TrackBuckets[i]
		if err := v.Struct(b); err != nil {
			return fmt.Errorf("%w: track bucket %d: %v", models.ErrPayloadInvalid, i, err)
		}
		if err := v.Var(b.Month, "month_key"); err != nil {
			return fmt.Errorf("%w: track bucket %d has bad month %q", models.ErrPayloadInvalid, i, b.Month)
		}
	}

	for i := range result.HourlyStatsBuckets {
		if err := v.Struct(&result.HourlyStatsBuckets[i]); err != nil {
			return fmt.Errorf("%w: hourly bucket %d: %v", models.ErrPayloadInvalid, i, err)
		}
	}

	for i := range result.MonthlyTotals {
		b := &result.MonthlyTotals[i]
		if err := v.Struct(b); err != nil {
			return fmt.Errorf("%w: monthly total %d: %v", models.ErrPayloadInvalid, i, err)
		}
		if err := v.Var(b.Month, "month_key"); err != nil {
			return fmt.Errorf("%w: monthly total %d has bad month %q", models.ErrPayloadInvalid, i, b.Month)
		}
	}

	// Marathons must arrive ranked 1..N.
	for i := range result.Marathons {
		mar := &result.Marathons[i]
		if err := v.Struct(mar); err != nil {
			return fmt.Errorf("%w: marathon %d: %v", models.ErrPayloadInvalid, i, err)
		}
		if mar.Rank != i+1 {
			return fmt.Errorf("%w: marathon %d has rank %d", models.ErrPayloadInvalid, i, mar.Rank)
		}
	}

	if result.Summary.TotalEntries <= 0 {
		return models.ErrEmptyUpload
	}

	return nil
}
