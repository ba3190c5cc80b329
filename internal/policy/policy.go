// Package policy holds the pure access rules deciding who may read or write which records.
package policy

import (
	"github.com/samber/lo"

	"tasktrail/internal/apperr"
	"tasktrail/internal/domain"
)

// MemberStatusOnlyMessage is returned when a Member tries to change anything other than status.
const MemberStatusOnlyMessage = "Members can only update task status"

var (
	// ProjectUpdatableFields is the allow-list of project fields an update may touch.
	ProjectUpdatableFields = []string{"title", "description", "startDate", "endDate", "status", "assignedUsers"}
	// TaskUpdatableFields is the allow-list of task fields an Admin update may touch.
	TaskUpdatableFields = []string{"title", "description", "dueDate", "status", "priority", "assignedTo", "project", "subTasks"}
	memberTaskFields    = []string{"status"}
)

// TaskUpdatePolicy describes the field restrictions for one caller on one task.
type TaskUpdatePolicy struct {
	AllowedFields  []string
	MustHaveAccess bool
}

// Allows reports whether every supplied field is in the allow-list.
func (p TaskUpdatePolicy) Allows(supplied []string) bool {
	_, disallowed := lo.Difference(p.AllowedFields, supplied)
	return len(disallowed) == 0
}

func (p TaskUpdatePolicy) StatusOnly() bool {
	return len(p.AllowedFields) == 1 && p.AllowedFields[0] == "status"
}

// CanListProjects returns the visibility filter for project listings.
func CanListProjects(id domain.Identity) domain.ProjectFilter {
	if id.IsAdmin() {
		return domain.ProjectFilter{}
	}
	return domain.ProjectFilter{Member: id.ID}
}

func CanReadProject(id domain.Identity, p domain.Project) bool {
	if id.IsAdmin() {
		return true
	}
	return id.ID != "" && lo.Contains(p.AssignedUsers, id.ID)
}

// CanWriteProject covers create, update, delete and assign.
func CanWriteProject(id domain.Identity) bool {
	return id.IsAdmin()
}

func CanReadTask(id domain.Identity, t domain.Task) bool {
	if id.IsAdmin() {
		return true
	}
	return id.ID != "" && t.AssignedTo == id.ID
}

// CanWriteTask covers task create, delete and assign. Updates go through ResolveTaskUpdatePolicy.
func CanWriteTask(id domain.Identity) bool {
	return id.IsAdmin()
}

// ResolveTaskUpdatePolicy decides which task fields the caller may change.
func ResolveTaskUpdatePolicy(id domain.Identity, t domain.Task) (TaskUpdatePolicy, error) {
	if id.IsAdmin() {
		return TaskUpdatePolicy{AllowedFields: TaskUpdatableFields}, nil
	}
	if id.ID == "" || t.AssignedTo != id.ID {
		return TaskUpdatePolicy{}, apperr.Denied()
	}
	return TaskUpdatePolicy{AllowedFields: memberTaskFields, MustHaveAccess: true}, nil
}

// ActivityScope returns the activity log filter: Admin sees all, Member sees own entries.
func ActivityScope(id domain.Identity) domain.ActivityFilter {
	if id.IsAdmin() {
		return domain.ActivityFilter{}
	}
	return domain.ActivityFilter{User: id.ID}
}

func CanListUsers(id domain.Identity) bool {
	return id.IsAdmin()
}
