package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the coarse permission level carried by every identity.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
)

// Identity is the authenticated caller as resolved by the auth layer.
type Identity struct {
	ID   string
	Role Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "Active"
	ProjectCompleted ProjectStatus = "Completed"
	ProjectOnHold    ProjectStatus = "On Hold"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "Todo"
	TaskInProgress TaskStatus = "In Progress"
	TaskCompleted  TaskStatus = "Completed"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "Low"
	PriorityMedium TaskPriority = "Medium"
	PriorityHigh   TaskPriority = "High"
)

// TargetType names the kind of entity an activity entry refers to.
type TargetType string

const (
	TargetProject TargetType = "Project"
	TargetTask    TargetType = "Task"
)

var (
	ProjectStatuses = []ProjectStatus{ProjectActive, ProjectCompleted, ProjectOnHold}
	TaskStatuses    = []TaskStatus{TaskTodo, TaskInProgress, TaskCompleted}
	TaskPriorities  = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh}
	Roles           = []Role{RoleAdmin, RoleMember}
)

func ParseRole(v string) (Role, error) {
	for _, r := range Roles {
		if string(r) == v {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", v)
}

func ParseProjectStatus(v string) (ProjectStatus, error) {
	for _, s := range ProjectStatuses {
		if string(s) == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("invalid project status %q", v)
}

func ParseTaskStatus(v string) (TaskStatus, error) {
	for _, s := range TaskStatuses {
		if string(s) == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("invalid task status %q", v)
}

func ParseTaskPriority(v string) (TaskPriority, error) {
	for _, p := range TaskPriorities {
		if string(p) == v {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid task priority %q", v)
}

// Project is a container of work with a set of assigned members.
type Project struct {
	ID            string
	Title         string
	Description   string
	StartDate     *time.Time
	EndDate       *time.Time
	Status        ProjectStatus
	AssignedUsers []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type SubTask struct {
	Title     string `json:"title" bson:"title"`
	Completed bool   `json:"completed" bson:"completed"`
}

// Task is a unit of work with at most one assignee.
type Task struct {
	ID          string
	Title       string
	Description string
	DueDate     *time.Time
	Status      TaskStatus
	Priority    TaskPriority
	AssignedTo  string
	Project     string
	SubTasks    []SubTask
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User is an account able to authenticate against the API.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Details is the free-form payload attached to an activity entry.
type Details map[string]any

// ActivityLogEntry is an immutable audit record.
type ActivityLogEntry struct {
	ID         string
	User       string
	Action     string
	TargetType TargetType
	TargetID   string
	Details    Details
	Timestamp  time.Time
}

// Clone returns a deep copy so callers cannot alias stored slices.
func (p Project) Clone() Project {
	p.AssignedUsers = cloneSlice(p.AssignedUsers)
	p.StartDate = cloneTime(p.StartDate)
	p.EndDate = cloneTime(p.EndDate)
	return p
}

func (t Task) Clone() Task {
	t.SubTasks = cloneSlice(t.SubTasks)
	t.DueDate = cloneTime(t.DueDate)
	return t
}

// Clone returns a deep copy of the entry's details.
func (e ActivityLogEntry) Clone() ActivityLogEntry {
	e.Details = e.Details.Clone()
	return e
}

// DetailCloner is implemented by detail values that hold references of their own.
type DetailCloner interface {
	CloneDetail() any
}

// Clone copies d and every nested map or slice it holds.
func (d Details) Clone() Details {
	if d == nil {
		return nil
	}
	out := make(Details, len(d))
	for k, v := range d {
		out[k] = CloneDetailValue(v)
	}
	return out
}

// CloneDetailValue deep-copies one value stored in Details.
func CloneDetailValue(v any) any {
	switch x := v.(type) {
	case DetailCloner:
		return x.CloneDetail()
	case Details:
		return x.Clone()
	case map[string]any:
		return map[string]any(Details(x).Clone())
	case []any:
		if x == nil {
			return x
		}
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = CloneDetailValue(item)
		}
		return out
	case []string:
		return cloneSlice(x)
	case []SubTask:
		return cloneSlice(x)
	}
	return v
}

// cloneSlice copies s while keeping the nil/empty distinction.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// NormalizeEmail lowercases and trims an email for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Timestamp truncates to millisecond precision in UTC so every backend round-trips it exactly.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// ParseDate accepts a calendar date (2006-01-02) or an RFC3339 timestamp.
func ParseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return Timestamp(t), nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", v)
}
