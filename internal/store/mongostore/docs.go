package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"tasktrail/internal/domain"
)

type projectDoc struct {
	ID            string     `bson:"_id"`
	Title         string     `bson:"title"`
	Description   string     `bson:"description,omitempty"`
	StartDate     *time.Time `bson:"startDate,omitempty"`
	EndDate       *time.Time `bson:"endDate,omitempty"`
	Status        string     `bson:"status"`
	AssignedUsers []string   `bson:"assignedUsers"`
	CreatedAt     time.Time  `bson:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt"`
}

func toProjectDoc(p domain.Project) projectDoc {
	users := p.AssignedUsers
	if users == nil {
		users = []string{}
	}
	return projectDoc{
		ID:            p.ID,
		Title:         p.Title,
		Description:   p.Description,
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		Status:        string(p.Status),
		AssignedUsers: users,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (d projectDoc) toDomain() domain.Project {
	users := d.AssignedUsers
	if users == nil {
		users = []string{}
	}
	return domain.Project{
		ID:            d.ID,
		Title:         d.Title,
		Description:   d.Description,
		StartDate:     utcPtr(d.StartDate),
		EndDate:       utcPtr(d.EndDate),
		Status:        domain.ProjectStatus(d.Status),
		AssignedUsers: users,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

type taskDoc struct {
	ID          string           `bson:"_id"`
	Title       string           `bson:"title"`
	Description string           `bson:"description,omitempty"`
	DueDate     *time.Time       `bson:"dueDate,omitempty"`
	Status      string           `bson:"status"`
	Priority    string           `bson:"priority"`
	AssignedTo  string           `bson:"assignedTo,omitempty"`
	Project     string           `bson:"project,omitempty"`
	SubTasks    []domain.SubTask `bson:"subTasks"`
	CreatedAt   time.Time        `bson:"createdAt"`
	UpdatedAt   time.Time        `bson:"updatedAt"`
}

func toTaskDoc(t domain.Task) taskDoc {
	subs := t.SubTasks
	if subs == nil {
		subs = []domain.SubTask{}
	}
	return taskDoc{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		AssignedTo:  t.AssignedTo,
		Project:     t.Project,
		SubTasks:    subs,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (d taskDoc) toDomain() domain.Task {
	subs := d.SubTasks
	if subs == nil {
		subs = []domain.SubTask{}
	}
	return domain.Task{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		DueDate:     utcPtr(d.DueDate),
		Status:      domain.TaskStatus(d.Status),
		Priority:    domain.TaskPriority(d.Priority),
		AssignedTo:  d.AssignedTo,
		Project:     d.Project,
		SubTasks:    subs,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// activityDoc stores details as bson.M so nested documents decode as maps.
type activityDoc struct {
	ID         string    `bson:"_id"`
	User       string    `bson:"user"`
	Action     string    `bson:"action"`
	TargetType string    `bson:"targetType"`
	TargetID   string    `bson:"targetId"`
	Details    bson.M    `bson:"details"`
	Timestamp  time.Time `bson:"timestamp"`
}

func toActivityDoc(e domain.ActivityLogEntry) activityDoc {
	details := bson.M{}
	for k, v := range e.Details {
		details[k] = v
	}
	return activityDoc{
		ID:         e.ID,
		User:       e.User,
		Action:     e.Action,
		TargetType: string(e.TargetType),
		TargetID:   e.TargetID,
		Details:    details,
		Timestamp:  e.Timestamp,
	}
}

func (d activityDoc) toDomain() domain.ActivityLogEntry {
	details := domain.Details{}
	for k, v := range d.Details {
		details[k] = v
	}
	return domain.ActivityLogEntry{
		ID:         d.ID,
		User:       d.User,
		Action:     d.Action,
		TargetType: domain.TargetType(d.TargetType),
		TargetID:   d.TargetID,
		Details:    details,
		Timestamp:  d.Timestamp.UTC(),
	}
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func toUserDoc(u domain.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        domain.NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) toDomain() domain.User {
	return domain.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         domain.Role(d.Role),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

type groupRow struct {
	Key   string `bson:"_id"`
	Count int    `bson:"count"`
}
