// Package audit appends immutable activity log entries.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tasktrail/internal/apperr"
	"tasktrail/internal/domain"
	"tasktrail/internal/store"
)

// Actions recorded by the entity mutators.
const (
	ActionCreatedProject  = "created project"
	ActionUpdatedProject  = "updated project"
	ActionDeletedProject  = "deleted project"
	ActionAssignedProject = "assigned users to project"
	ActionCreatedTask     = "created task"
	ActionUpdatedTask     = "updated task"
	ActionDeletedTask     = "deleted task"
	ActionAssignedTask    = "assigned user to task"
)

// Recorder writes one entry per call. It never retries.
type Recorder struct {
	Log    store.ActivityLog
	Now    func() time.Time
	NewID  func() string
	logger *zap.Logger
}

func NewRecorder(log store.ActivityLog, logger *zap.Logger) Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Recorder{
		Log:    log,
		Now:    time.Now,
		NewID:  uuid.NewString,
		logger: logger.Named("audit"),
	}
}

// Record appends an entry stamped with the server time and returns its id.
func (r Recorder) Record(ctx context.Context, actorID, action string, targetType domain.TargetType, targetID string, details domain.Details) (string, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	newID := r.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	if details == nil {
		details = domain.Details{}
	}
	entry := domain.ActivityLogEntry{
		ID:         newID(),
		User:       actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		Timestamp:  domain.Timestamp(now()),
	}
	if err := r.Log.AppendActivity(ctx, entry); err != nil {
		if r.logger != nil {
			r.logger.Error("Failed to append activity entry",
				zap.String("actor", actorID),
				zap.String("action", action),
				zap.String("target_type", string(targetType)),
				zap.String("target_id", targetID),
				zap.Error(err))
		}
		return "", apperr.Storage(err)
	}
	return entry.ID, nil
}
