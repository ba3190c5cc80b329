package domain

// UserSummary is the public projection of a user.
type UserSummary struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// ProjectRef is the minimal projection of a project used inside task views.
type ProjectRef struct {
	ID    string
	Title string
}

// ProjectView is a project with its members resolved.
type ProjectView struct {
	Project
	Members []UserSummary
}

// TaskView is a task with assignee and project resolved.
type TaskView struct {
	Task
	Assignee   *UserSummary
	ProjectRef *ProjectRef
}

// ActivityView is an activity entry with its actor resolved.
type ActivityView struct {
	ActivityLogEntry
	Actor *UserSummary
}

// DashboardSummary aggregates counts within a caller's visibility scope.
type DashboardSummary struct {
	TotalProjects    int
	ProjectsByStatus []GroupCount
	TotalTasks       int
	TasksByStatus    []GroupCount
	TasksByPriority  []GroupCount
}
