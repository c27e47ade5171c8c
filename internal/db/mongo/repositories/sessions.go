// Package repositories contains MongoDB repository implementations.
package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/utils"
)

// Collection names
const (
	sessionsCollection = "upload_sessions"
)

// SessionRepository defines the interface for upload session data access.
type SessionRepository interface {
	Create(ctx context.Context, session *models.UploadSession) error
	FindByID(ctx context.Context, id bson.ObjectID) (*models.UploadSession, error)
	FindByShareToken(ctx context.Context, token string) (*models.UploadSession, error)
	UpdateStatus(ctx context.Context, session *models.UploadSession) error
	SetPersonality(ctx context.Context, id bson.ObjectID, personalityID string) error
	DeactivateOthers(ctx context.Context, userHash string, keep bson.ObjectID) (int64, error)
	CountCompleted(ctx context.Context, communityOnly bool) (int64, error)
	Delete(ctx context.Context, id bson.ObjectID) error
}

// sessionRepository is the MongoDB implementation of SessionRepository.
type sessionRepository struct {
	collection *mongo.Collection
	logger     *utils.Logger
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *mongo.Database, logger *utils.Logger) SessionRepository {
	return &sessionRepository{
		collection: db.Collection(sessionsCollection),
		logger:     logger.Named("session_repository"),
	}
}

// Create inserts a new upload session.
func (r *sessionRepository) Create(ctx context.Context, session *models.UploadSession) error {
	if session.ID.IsZero() {
		session.ID = bson.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		r.logger.Error("Failed to create upload session", err, "token", session.ShareToken)
		return models.NewInternalError(err, "Failed to create upload session")
	}

	return nil
}

// FindByID finds a session by its ID.
func (r *sessionRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.UploadSession, error) {
	var session models.UploadSession

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrSessionNotFound
		}
		r.logger.Error("Failed to find session by ID", err, "id", id.Hex())
		return nil, models.NewInternalError(err, "Failed to find session")
	}

	return &session, nil
}

// FindByShareToken finds a session by its share token.
func (r *sessionRepository) FindByShareToken(ctx context.Context, token string) (*models.UploadSession, error) {
	var session models.UploadSession

	err := r.collection.FindOne(ctx, bson.M{"shareToken": token}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrSessionNotFound
		}
		r.logger.Error("Failed to find session by token", err)
		return nil, models.NewInternalError(err, "Failed to find session")
	}

	return &session, nil
}

// UpdateStatus persists the session's lifecycle fields after a state change.
func (r *sessionRepository) UpdateStatus(ctx context.Context, session *models.UploadSession) error {
	update := bson.D{
		cmdSet(bson.M{
			"status":        session.Status,
			"entryCount":    session.EntryCount,
			"totalMsPlayed": session.TotalMsPlayed,
			"uniqueTracks":  session.UniqueTracks,
			"uniqueArtists": session.UniqueArtists,
			"truncated":     session.Truncated,
			"dateFrom":      session.DateFrom,
			"dateTo":        session.DateTo,
			"updatedAt":     session.UpdatedAt,
		}),
	}

	result, err := r.collection.UpdateByID(ctx, session.ID, update)
	if err != nil {
		r.logger.Error("Failed to update session status", err, "id", session.ID.Hex(), "status", string(session.Status))
		return models.NewInternalError(err, "Failed to update session")
	}

	if result.MatchedCount == 0 {
		return models.ErrSessionNotFound
	}

	return nil
}

// SetPersonality records the computed personality for a session.
func (r *sessionRepository) SetPersonality(ctx context.Context, id bson.ObjectID, personalityID string) error {
	update := bson.D{cmdSet(bson.M{"personalityId": personalityID})}

	result, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		r.logger.Error("Failed to set session personality", err, "id", id.Hex())
		return models.NewInternalError(err, "Failed to update session")
	}

	if result.MatchedCount == 0 {
		return models.ErrSessionNotFound
	}

	return nil
}

// DeactivateOthers clears the active flag on all other sessions sharing the
// same user hash, so a repeat upload replaces the person in community stats
// instead of double counting them. It returns the number of sessions retired.
func (r *sessionRepository) DeactivateOthers(ctx context.Context, userHash string, keep bson.ObjectID) (int64, error) {
	if userHash == "" {
		return 0, nil
	}

	filter := bson.M{
		"userHash": userHash,
		"_id":      bson.M{"$ne": keep},
		"isActive": true,
	}

	result, err := r.collection.UpdateMany(ctx, filter, bson.D{cmdSet(bson.M{"isActive": false})})
	if err != nil {
		r.logger.Error("Failed to deactivate previous sessions", err)
		return 0, models.NewInternalError(err, "Failed to deactivate previous sessions")
	}

	return result.ModifiedCount, nil
}

// CountCompleted counts completed sessions. With communityOnly it counts only
// the active, opted-in sessions that participate in community aggregates.
func (r *sessionRepository) CountCompleted(ctx context.Context, communityOnly bool) (int64, error) {
	filter := bson.M{"status": models.UploadCompleted}
	if communityOnly {
		filter["isActive"] = true
		filter["optOut"] = false
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count completed sessions", err)
		return 0, models.NewInternalError(err, "Failed to count sessions")
	}

	return count, nil
}

// Delete removes a session document.
func (r *sessionRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		r.logger.Error("Failed to delete session", err, "id", id.Hex())
		return models.NewInternalError(err, "Failed to delete session")
	}

	if result.DeletedCount == 0 {
		return models.ErrSessionNotFound
	}

	return nil
}

// ActiveCommunityFilter is the filter matching sessions that participate in
// community aggregates. Shared with the community repository so both sides
// agree on what "the community" means.
func ActiveCommunityFilter() bson.M {
	return bson.M{
		"status":   models.UploadCompleted,
		"isActive": true,
		"optOut":   false,
	}
}
