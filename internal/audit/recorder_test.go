package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tasktrail/internal/apperr"
	"tasktrail/internal/domain"
	"tasktrail/internal/store/memstore"
)

func TestRecordAppendsEntry(t *testing.T) {
	s := memstore.New()
	r := NewRecorder(s, zap.NewNop())
	r.Now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC) }
	r.NewID = func() string { return "log-1" }

	id, err := r.Record(context.Background(), "u1", ActionCreatedProject, domain.TargetProject, "p1", domain.Details{"title": "A"})
	require.NoError(t, err)
	assert.Equal(t, "log-1", id)

	entries, err := s.ListActivity(context.Background(), domain.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "u1", e.User)
	assert.Equal(t, "created project", e.Action)
	assert.Equal(t, domain.TargetProject, e.TargetType)
	assert.Equal(t, "p1", e.TargetID)
	assert.Equal(t, domain.Details{"title": "A"}, e.Details)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 123000000, time.UTC), e.Timestamp)
}

func TestRecordNilDetailsBecomesEmpty(t *testing.T) {
	s := memstore.New()
	r := NewRecorder(s, nil)
	_, err := r.Record(context.Background(), "u1", ActionUpdatedTask, domain.TargetTask, "t1", nil)
	require.NoError(t, err)
	entries, _ := s.ListActivity(context.Background(), domain.ActivityFilter{})
	require.Len(t, entries, 1)
	assert.NotNil(t, entries[0].Details)
	assert.Empty(t, entries[0].Details)
}

func TestRecordSurfacesStorageFault(t *testing.T) {
	s := memstore.New()
	s.FailActivity = errors.New("connection reset")
	r := NewRecorder(s, zap.NewNop())
	_, err := r.Record(context.Background(), "u1", ActionDeletedTask, domain.TargetTask, "t1", nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStorage))
	assert.Equal(t, "connection reset", err.Error())
}
