// Package engine orchestrates policy checks, storage writes and audit logging.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tasktrail/internal/apperr"
	"tasktrail/internal/audit"
	"tasktrail/internal/domain"
	"tasktrail/internal/engine/auth"
	"tasktrail/internal/store"
)

type Engine struct {
	Store  store.Store
	Audit  audit.Recorder
	Tokens auth.Tokens
	Now    func() time.Time
	NewID  func() string
	logger *zap.Logger
}

func New(s store.Store, tokens auth.Tokens, logger *zap.Logger) Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Engine{
		Store:  s,
		Audit:  audit.NewRecorder(s, logger),
		Tokens: tokens,
		Now:    time.Now,
		NewID:  uuid.NewString,
		logger: logger.Named("engine"),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return domain.Timestamp(e.Now())
	}
	return domain.Timestamp(time.Now())
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) log() *zap.Logger {
	if e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

// record writes the audit entry for a mutation that has already been applied.
// A failure here leaves the mutation in place and is reported as a storage fault.
func (e Engine) record(ctx context.Context, actor domain.Identity, action string, targetType domain.TargetType, targetID string, details domain.Details) error {
	rec := e.Audit
	rec.Now = e.now
	if _, err := rec.Record(ctx, actor.ID, action, targetType, targetID, details); err != nil {
		e.log().Warn("Mutation applied without activity entry",
			zap.String("action", action),
			zap.String("target_id", targetID),
			zap.Error(err))
		return err
	}
	return nil
}

// storeErr maps storage sentinels onto typed failures.
func storeErr(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict("already exists")
	default:
		return apperr.Storage(err)
	}
}
