// Package store declares the storage-access interfaces the engine depends on.
package store

import (
	"context"
	"errors"
	"time"

	"tasktrail/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Projects persists project documents.
type Projects interface {
	InsertProject(ctx context.Context, p domain.Project) error
	GetProject(ctx context.Context, id string) (domain.Project, error)
	ListProjects(ctx context.Context, f domain.ProjectFilter) ([]domain.Project, error)
	// UpdateProject replaces the stored document; last write wins.
	UpdateProject(ctx context.Context, p domain.Project) error
	// DeleteProject removes and returns the stored document.
	DeleteProject(ctx context.Context, id string) (domain.Project, error)
	// AddProjectMembers merges userIDs into assignedUsers without duplicates.
	AddProjectMembers(ctx context.Context, id string, userIDs []string, at time.Time) (domain.Project, error)
	CountProjectsByStatus(ctx context.Context, f domain.ProjectFilter) (map[string]int, error)
}

// Tasks persists task documents.
type Tasks interface {
	InsertTask(ctx context.Context, t domain.Task) error
	GetTask(ctx context.Context, id string) (domain.Task, error)
	ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id string) (domain.Task, error)
	// SetTaskAssignee replaces the single assignee.
	SetTaskAssignee(ctx context.Context, id, userID string, at time.Time) (domain.Task, error)
	// CountTasksBy groups matching tasks by "status" or "priority".
	CountTasksBy(ctx context.Context, f domain.TaskFilter, field string) (map[string]int, error)
}

// ActivityLog is the append-only audit trail.
type ActivityLog interface {
	AppendActivity(ctx context.Context, e domain.ActivityLogEntry) error
	// ListActivity returns entries newest first.
	ListActivity(ctx context.Context, f domain.ActivityFilter) ([]domain.ActivityLogEntry, error)
}

// Users persists accounts. Emails are unique after normalization.
type Users interface {
	InsertUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUsers(ctx context.Context, ids []string) ([]domain.User, error)
}

// Store bundles every collection a running service needs.
type Store interface {
	Projects
	Tasks
	ActivityLog
	Users
	Close() error
}
