package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	dbmongo "github.com/music-livereview/backend/internal/db/mongo"
	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/utils"
)

// MaintenanceTask represents a maintenance task to be executed.
type MaintenanceTask struct {
	Name     string
	Interval time.Duration
	LastRun  time.Time
	Fn       func(context.Context) error
}

// MaintenanceConfig contains configuration for the maintenance service.
type MaintenanceConfig struct {
	// Whether to enable automatic maintenance tasks
	Enabled bool
	// Maximum age of a processing session before it is considered stuck
	StuckSessionMaxAge time.Duration
	// Maximum age of failed sessions before they are removed
	FailedSessionMaxAge time.Duration
	// Maximum age of inactive non-community sessions before removal
	InactiveSessionMaxAge time.Duration
	// Interval for running maintenance tasks
	MaintenanceInterval time.Duration
	// Timeout for individual maintenance tasks
	TaskTimeout time.Duration
}

// DefaultMaintenanceConfig returns the default maintenance configuration.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Enabled:               true,
		StuckSessionMaxAge:    time.Hour,
		FailedSessionMaxAge:   7 * 24 * time.Hour,
		InactiveSessionMaxAge: 90 * 24 * time.Hour,
		MaintenanceInterval:   1 * time.Hour,
		TaskTimeout:           10 * time.Minute,
	}
}

// MaintenanceService runs background cleanup over upload sessions and their
// stored aggregates.
type MaintenanceService struct {
	config  MaintenanceConfig
	mongoDB *mongo.Database
	logger  *utils.Logger
	tasks   []*MaintenanceTask
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewMaintenanceService creates a new maintenance service.
func NewMaintenanceService(
	config MaintenanceConfig,
	mongoDB *mongo.Database,
	logger *utils.Logger,
) *MaintenanceService {
	s := &MaintenanceService{
		config:  config,
		mongoDB: mongoDB,
		logger:  logger.Named("maintenance_service"),
		stopCh:  make(chan struct{}),
		tasks:   make([]*MaintenanceTask, 0),
	}

	s.RegisterTask("stuck_session_cleanup", config.MaintenanceInterval, s.FailStuckSessions)
	s.RegisterTask("failed_session_cleanup", config.MaintenanceInterval, s.CleanupFailedSessions)
	s.RegisterTask("inactive_session_cleanup", 24*time.Hour, s.CleanupInactiveSessions)
	s.RegisterTask("orphaned_bucket_cleanup", 24*time.Hour, s.CleanupOrphanedBuckets)

	return s
}

// RegisterTask registers a new maintenance task.
func (s *MaintenanceService) RegisterTask(name string, interval time.Duration, fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := &MaintenanceTask{
		Name:     name,
		Interval: interval,
		LastRun:  time.Now().Add(-interval), // Schedule to run immediately
		Fn:       fn,
	}

	s.tasks = append(s.tasks, task)
	s.logger.Info("Registered maintenance task", "name", name, "interval", interval)
}

// Start starts the maintenance service.
func (s *MaintenanceService) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Maintenance service is disabled")
		return nil
	}

	s.logger.Info("Starting maintenance service")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runDueTasks(ctx)
			case <-s.stopCh:
				s.logger.Info("Stopping maintenance service")
				return
			case <-ctx.Done():
				s.logger.Info("Context cancelled, stopping maintenance service")
				return
			}
		}
	}()

	return nil
}

// Stop stops the maintenance service.
func (s *MaintenanceService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunAllTasks runs all maintenance tasks immediately.
func (s *MaintenanceService) RunAllTasks(ctx context.Context) error {
	s.logger.Info("Running all maintenance tasks")

	s.mu.Lock()
	tasks := make([]*MaintenanceTask, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	var errs []error
	for _, task := range tasks {
		if err := s.runTask(ctx, task); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("some maintenance tasks failed: %v", errs)
	}
	return nil
}

// runDueTasks runs all maintenance tasks whose interval has elapsed.
func (s *MaintenanceService) runDueTasks(ctx context.Context) {
	s.mu.Lock()
	var dueTasks []*MaintenanceTask
	now := time.Now()
	for _, task := range s.tasks {
		if now.Sub(task.LastRun) >= task.Interval {
			dueTasks = append(dueTasks, task)
		}
	}
	s.mu.Unlock()

	if len(dueTasks) == 0 {
		return
	}

	s.logger.Debug("Running due maintenance tasks", "count", len(dueTasks))
	for _, task := range dueTasks {
		if err := s.runTask(ctx, task); err != nil {
			s.logger.Error("Maintenance task failed", err, "name", task.Name)
		}
	}
}

// runTask runs one task with its timeout and updates its last-run time.
func (s *MaintenanceService) runTask(ctx context.Context, task *MaintenanceTask) (err error) {
	taskCtx, cancel := context.WithTimeout(ctx, s.config.TaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in task %s: %v", task.Name, r)
			s.logger.Error("Task panic recovered", err, "name", task.Name)
		}
	}()

	s.logger.Debug("Running maintenance task", "name", task.Name)
	if err := task.Fn(taskCtx); err != nil {
		return fmt.Errorf("task %s failed: %w", task.Name, err)
	}

	s.mu.Lock()
	task.LastRun = time.Now()
	s.mu.Unlock()

	s.logger.Debug("Completed maintenance task", "name", task.Name)
	return nil
}

// FailStuckSessions marks sessions stuck in pending or processing as failed.
// An aggregation run that outlives its timeout leaves the session in
// processing; polling clients would wait forever without this.
func (s *MaintenanceService) FailStuckSessions(ctx context.Context) error {
	cutoff := time.Now().Add(-s.config.StuckSessionMaxAge)
	filter := bson.M{
		"status":    bson.M{"$in": []models.UploadStatus{models.UploadPending, models.UploadProcessing}},
		"updatedAt": bson.M{"$lt": cutoff},
	}
	update := bson.M{"$set": bson.M{
		"status":    models.UploadFailed,
		"updatedAt": time.Now(),
	}}

	result, err := s.mongoDB.Collection(dbmongo.SessionsCollection).UpdateMany(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark stuck sessions: %w", err)
	}

	if result.ModifiedCount > 0 {
		s.logger.Info("Marked stuck sessions failed", "count", result.ModifiedCount, "maxAge", s.config.StuckSessionMaxAge)
	}
	return nil
}

// CleanupFailedSessions removes failed sessions older than the configured max
// age, together with any buckets a partial run may have written.
func (s *MaintenanceService) CleanupFailedSessions(ctx context.Context) error {
	cutoff := time.Now().Add(-s.config.FailedSessionMaxAge)
	filter := bson.M{
		"status":    models.UploadFailed,
		"updatedAt": bson.M{"$lt": cutoff},
	}
	return s.deleteSessions(ctx, filter, "failed")
}

// CleanupInactiveSessions removes sessions that were replaced by a newer
// upload from the same user and have not been active for the retention
// period. Their share links stop resolving.
func (s *MaintenanceService) CleanupInactiveSessions(ctx context.Context) error {
	cutoff := time.Now().Add(-s.config.InactiveSessionMaxAge)
	filter := bson.M{
		"status":    models.UploadCompleted,
		"isActive":  false,
		"userHash":  bson.M{"$ne": ""},
		"updatedAt": bson.M{"$lt": cutoff},
	}
	return s.deleteSessions(ctx, filter, "inactive")
}

// deleteSessions removes the matched sessions and all buckets keyed to them.
func (s *MaintenanceService) deleteSessions(ctx context.Context, filter bson.M, kind string) error {
	sessions := s.mongoDB.Collection(dbmongo.SessionsCollection)

	cursor, err := sessions.Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to find %s sessions: %w", kind, err)
	}
	var docs []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return fmt.Errorf("failed to decode %s sessions: %w", kind, err)
	}
	if len(docs) == 0 {
		return nil
	}

	ids := make([]bson.ObjectID, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}

	bucketFilter := bson.M{"sessionId": bson.M{"$in": ids}}
	for _, coll := range bucketCollections() {
		if _, err := s.mongoDB.Collection(coll).DeleteMany(ctx, bucketFilter); err != nil {
			s.logger.Error("Failed to delete buckets", err, "collection", coll, "kind", kind)
		}
	}

	result, err := sessions.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return fmt.Errorf("failed to delete %s sessions: %w", kind, err)
	}

	s.logger.Info("Removed old sessions", "kind", kind, "count", result.DeletedCount)
	return nil
}

// CleanupOrphanedBuckets removes bucket rows whose session no longer exists.
// Session deletion removes buckets first, so orphans only appear when that
// second step was interrupted.
func (s *MaintenanceService) CleanupOrphanedBuckets(ctx context.Context) error {
	sessions := s.mongoDB.Collection(dbmongo.SessionsCollection)

	cursor, err := sessions.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	var docs []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return fmt.Errorf("failed to decode sessions: %w", err)
	}

	ids := make([]bson.ObjectID, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}

	filter := bson.M{"sessionId": bson.M{"$nin": ids}}
	var totalDeleted int64
	for _, coll := range bucketCollections() {
		result, err := s.mongoDB.Collection(coll).DeleteMany(ctx, filter)
		if err != nil {
			s.logger.Error("Failed to delete orphaned buckets", err, "collection", coll)
			continue
		}
		totalDeleted += result.DeletedCount
	}

	if totalDeleted > 0 {
		s.logger.Info("Removed orphaned buckets", "count", totalDeleted)
	}
	return nil
}

// PerformMaintenance runs a specific maintenance task by name.
func (s *MaintenanceService) PerformMaintenance(ctx context.Context, taskName string) error {
	s.mu.Lock()
	var task *MaintenanceTask
	for _, t := range s.tasks {
		if t.Name == taskName {
			task = t
			break
		}
	}
	s.mu.Unlock()

	if task == nil {
		return fmt.Errorf("maintenance task not found: %s", taskName)
	}
	return s.runTask(ctx, task)
}

func bucketCollections() []string {
	return []string{
		dbmongo.ArtistBucketsCollection,
		dbmongo.TrackBucketsCollection,
		dbmongo.HourlyBucketsCollection,
		dbmongo.TrackFirstPlaysCollection,
		dbmongo.MonthlyTotalsCollection,
		dbmongo.MarathonsCollection,
	}
}
