// Package models contains the data structures used throughout the application.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// UploadStatus is the lifecycle state of an upload session.
type UploadStatus string

const (
	// UploadPending means the session exists but processing has not started.
	UploadPending UploadStatus = "pending"
	// UploadProcessing means buckets are being persisted.
	UploadProcessing UploadStatus = "processing"
	// UploadCompleted means the session's stats are ready to serve.
	UploadCompleted UploadStatus = "completed"
	// UploadFailed means processing aborted; the session holds no usable stats.
	UploadFailed UploadStatus = "failed"
)

// UploadSession represents one uploaded streaming-history export and the
// shareable link derived from it. A user may upload multiple times; only the
// most recent active session per user hash participates in community stats.
type UploadSession struct {
	// ID is the unique identifier for the session.
	ID bson.ObjectID `json:"id" bson:"_id,omitempty"`

	// ShareToken is the URL-safe token used to access the session's stats.
	ShareToken string `json:"shareToken" bson:"shareToken" validate:"required,min=10"`

	// Status is the current lifecycle state.
	Status UploadStatus `json:"status" bson:"status" validate:"required,oneof=pending processing completed failed"`

	// UserHash is a salted hash of the export's username, used to deduplicate
	// repeat uploads by the same person. Empty when the export carried no
	// username or the user opted out.
	UserHash string `json:"-" bson:"userHash,omitempty"`

	// IsActive marks the session that represents the user in community stats.
	IsActive bool `json:"-" bson:"isActive"`

	// OptOut excludes the session from community aggregates.
	OptOut bool `json:"-" bson:"optOut"`

	// EntryCount is the number of validated events, set on completion.
	EntryCount int64 `json:"entryCount,omitempty" bson:"entryCount,omitempty"`

	// TotalMsPlayed is the total listening time, set on completion.
	TotalMsPlayed int64 `json:"totalMsPlayed,omitempty" bson:"totalMsPlayed,omitempty"`

	// UniqueTracks is the distinct-track count, set on completion.
	UniqueTracks int64 `json:"uniqueTracks,omitempty" bson:"uniqueTracks,omitempty"`

	// UniqueArtists is the distinct-artist count, set on completion.
	UniqueArtists int64 `json:"uniqueArtists,omitempty" bson:"uniqueArtists,omitempty"`

	// Truncated records that the upload exceeded the event cap and was
	// processed partially.
	Truncated bool `json:"truncated,omitempty" bson:"truncated,omitempty"`

	// DateFrom is the start of the listening period, set on completion.
	DateFrom time.Time `json:"dateFrom,omitzero" bson:"dateFrom,omitempty"`

	// DateTo is the end of the listening period, set on completion.
	DateTo time.Time `json:"dateTo,omitzero" bson:"dateTo,omitempty"`

	// PersonalityID is the personality the user recorded for this session.
	PersonalityID string `json:"personalityId,omitempty" bson:"personalityId,omitempty"`

	ObjectTimes `bson:",inline"`
}

// NewUploadSession creates a pending session for a freshly generated token.
func NewUploadSession(shareToken, userHash string, optOut bool) *UploadSession {
	s := &UploadSession{
		ShareToken: shareToken,
		Status:     UploadPending,
		UserHash:   userHash,
		IsActive:   !optOut,
		OptOut:     optOut,
	}
	s.CreateNow()
	return s
}

// MarkProcessing transitions the session into the processing state.
func (s *UploadSession) MarkProcessing() {
	s.Status = UploadProcessing
	s.UpdateNow()
}

// MarkCompleted records the summary scalars and completes the session.
func (s *UploadSession) MarkCompleted(summary SessionSummary, truncated bool) {
	s.Status = UploadCompleted
	s.EntryCount = summary.TotalEntries
	s.TotalMsPlayed = summary.TotalMsPlayed
	s.UniqueTracks = summary.UniqueTracks
	s.UniqueArtists = summary.UniqueArtists
	s.DateFrom = summary.DateFrom
	s.DateTo = summary.DateTo
	s.Truncated = truncated
	s.UpdateNow()
}

// MarkFailed transitions the session into the failed state.
func (s *UploadSession) MarkFailed() {
	s.Status = UploadFailed
	s.UpdateNow()
}

// UploadResponse is returned to the client after an upload is accepted.
type UploadResponse struct {
	// ShareToken is the token under which the stats will be served.
	ShareToken string `json:"shareToken"`

	// Status is the session status at the time of response.
	Status UploadStatus `json:"status"`
}

// StatusResponse reports upload progress to a polling client.
type StatusResponse struct {
	// Status is the current session status.
	Status UploadStatus `json:"status"`

	// EntryCount is present once processing completed.
	EntryCount int64 `json:"entryCount,omitempty"`

	// Truncated warns that the upload was processed partially.
	Truncated bool `json:"truncated,omitempty"`

	// DateFrom is the start of the listening period, once completed.
	DateFrom *time.Time `json:"dateFrom,omitempty"`

	// DateTo is the end of the listening period, once completed.
	DateTo *time.Time `json:"dateTo,omitempty"`
}

// UploadPayload is the body of an upload request. Exactly one of Entries or
// Aggregated must be set: Entries carries raw export entries for server-side
// aggregation, Aggregated carries the result of a client-side run.
type UploadPayload struct {
	// OptOut excludes this upload from community aggregates.
	OptOut bool `json:"optOut"`

	// UserHash is the client-computed hash of the export's username.
	UserHash string `json:"userHash,omitempty"`

	// Entries is the raw export, for server-side aggregation.
	Entries []StreamEntry `json:"entries,omitempty"`

	// Aggregated is a pre-aggregated result from the browser worker.
	Aggregated *AggregationResult `json:"aggregated,omitempty"`
}
