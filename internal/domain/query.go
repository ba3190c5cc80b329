package domain

import "time"

// SortOrder selects ascending or descending ordering.
type SortOrder int

const (
	Ascending  SortOrder = 1
	Descending SortOrder = -1
)

// Sort is a single-field ordering; ties are always broken by id.
type Sort struct {
	Field string
	Order SortOrder
}

// ProjectFilter is the storage-level filter produced for project listings.
type ProjectFilter struct {
	// Member restricts results to projects whose assignedUsers contain this id.
	Member string
}

// TaskFilter is the storage-level filter produced for task listings.
type TaskFilter struct {
	AssignedTo string
	Status     TaskStatus
	Priority   TaskPriority
	DueBefore  *time.Time
	Search     string
	Sort       Sort
}

// ActivityFilter scopes activity log reads.
type ActivityFilter struct {
	User  string
	Limit int
}

// TaskQuery carries the raw, user-supplied list options for tasks.
type TaskQuery struct {
	Status    string
	Priority  string
	DueDate   string
	Search    string
	SortBy    string
	SortOrder string
}

// SortableTaskFields lists the fields a task listing may be ordered by.
var SortableTaskFields = []string{"title", "status", "priority", "dueDate", "createdAt", "updatedAt"}

// GroupCount is one bucket of a grouped count.
type GroupCount struct {
	Key   string
	Count int
}
