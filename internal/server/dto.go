package server

import (
	"bytes"
	"encoding/json"
	"time"

	"tasktrail/internal/domain"
	"tasktrail/internal/engine"
)

// Request payloads. Every field is optional at the schema level so the
// engine reports missing values with its own messages.

type RegisterRequest struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

type ProjectRequest struct {
	Title         *string  `json:"title,omitempty"`
	Description   *string  `json:"description,omitempty"`
	StartDate     *string  `json:"startDate,omitempty" doc:"RFC3339 timestamp or YYYY-MM-DD; empty clears"`
	EndDate       *string  `json:"endDate,omitempty" doc:"RFC3339 timestamp or YYYY-MM-DD; empty clears"`
	Status        *string  `json:"status,omitempty" enum:"Active,Completed,On Hold"`
	AssignedUsers []string `json:"assignedUsers,omitempty"`
}

// UnmarshalJSON treats an explicit null as a supplied empty value.
func (r *ProjectRequest) UnmarshalJSON(data []byte) error {
	type plain ProjectRequest
	if err := json.Unmarshal(data, (*plain)(r)); err != nil {
		return err
	}
	nulls, err := nullKeys(data)
	if err != nil {
		return err
	}
	supplyNulls(nulls, map[string]**string{
		"title":       &r.Title,
		"description": &r.Description,
		"startDate":   &r.StartDate,
		"endDate":     &r.EndDate,
		"status":      &r.Status,
	})
	if nulls["assignedUsers"] && r.AssignedUsers == nil {
		r.AssignedUsers = []string{}
	}
	return nil
}

func (r ProjectRequest) input() engine.ProjectInput {
	in := engine.ProjectInput{
		Title:       r.Title,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Status:      r.Status,
	}
	if r.AssignedUsers != nil {
		users := r.AssignedUsers
		in.AssignedUsers = &users
	}
	return in
}

type SubTaskBody struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed,omitempty"`
}

type SubTaskResponse struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type TaskRequest struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	DueDate     *string       `json:"dueDate,omitempty" doc:"RFC3339 timestamp or YYYY-MM-DD; empty clears"`
	Status      *string       `json:"status,omitempty"`
	Priority    *string       `json:"priority,omitempty"`
	AssignedTo  *string       `json:"assignedTo,omitempty"`
	Project     *string       `json:"project,omitempty"`
	SubTasks    []SubTaskBody `json:"subTasks,omitempty"`
}

// UnmarshalJSON treats an explicit null as a supplied empty value, so
// {"title": null} counts as sending title.
func (r *TaskRequest) UnmarshalJSON(data []byte) error {
	type plain TaskRequest
	if err := json.Unmarshal(data, (*plain)(r)); err != nil {
		return err
	}
	nulls, err := nullKeys(data)
	if err != nil {
		return err
	}
	supplyNulls(nulls, map[string]**string{
		"title":       &r.Title,
		"description": &r.Description,
		"dueDate":     &r.DueDate,
		"status":      &r.Status,
		"priority":    &r.Priority,
		"assignedTo":  &r.AssignedTo,
		"project":     &r.Project,
	})
	if nulls["subTasks"] && r.SubTasks == nil {
		r.SubTasks = []SubTaskBody{}
	}
	return nil
}

// nullKeys returns the top-level keys of a JSON object whose value is null.
func nullKeys(data []byte) (map[string]bool, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := map[string]bool{}
	for k, v := range raw {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			out[k] = true
		}
	}
	return out, nil
}

func supplyNulls(nulls map[string]bool, fields map[string]**string) {
	for k, f := range fields {
		if nulls[k] && *f == nil {
			*f = new(string)
		}
	}
}

func (r TaskRequest) input() engine.TaskInput {
	in := engine.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate,
		Status:      r.Status,
		Priority:    r.Priority,
		AssignedTo:  r.AssignedTo,
		Project:     r.Project,
	}
	if r.SubTasks != nil {
		subs := make([]domain.SubTask, 0, len(r.SubTasks))
		for _, s := range r.SubTasks {
			subs = append(subs, domain.SubTask{Title: s.Title, Completed: s.Completed})
		}
		in.SubTasks = &subs
	}
	return in
}

type AssignProjectRequest struct {
	UserIDs []string `json:"userIds,omitempty"`
}

type AssignTaskRequest struct {
	UserID string `json:"userId,omitempty"`
}

// Response payloads

type MessageResponse struct {
	Message string `json:"message"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

type SessionResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type MeResponse struct {
	User UserResponse `json:"user"`
}

type ProjectResponse struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	StartDate     *time.Time     `json:"startDate,omitempty"`
	EndDate       *time.Time     `json:"endDate,omitempty"`
	Status        string         `json:"status"`
	AssignedUsers []UserResponse `json:"assignedUsers"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type ProjectRefResponse struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

type TaskResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	DueDate     *time.Time          `json:"dueDate,omitempty"`
	Status      string              `json:"status"`
	Priority    string              `json:"priority"`
	AssignedTo  *UserResponse       `json:"assignedTo,omitempty"`
	Project     *ProjectRefResponse `json:"project,omitempty"`
	SubTasks    []SubTaskResponse   `json:"subTasks"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

type ActivityResponse struct {
	ID         string         `json:"id"`
	User       *UserResponse  `json:"user,omitempty"`
	Action     string         `json:"action"`
	TargetType string         `json:"targetType"`
	TargetID   string         `json:"targetId"`
	Details    map[string]any `json:"details"`
	Timestamp  time.Time      `json:"timestamp"`
}

type GroupResponse struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type DashboardResponse struct {
	TotalProjects    int             `json:"totalProjects"`
	ProjectsByStatus []GroupResponse `json:"projectsByStatus"`
	TotalTasks       int             `json:"totalTasks"`
	TasksByStatus    []GroupResponse `json:"tasksByStatus"`
	TasksByPriority  []GroupResponse `json:"tasksByPriority"`
}

func userResponse(u domain.UserSummary) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role)}
}

func userResponses(items []domain.UserSummary) []UserResponse {
	out := make([]UserResponse, 0, len(items))
	for _, u := range items {
		out = append(out, userResponse(u))
	}
	return out
}

func sessionResponse(s engine.Session) SessionResponse {
	return SessionResponse{Token: s.Token, User: userResponse(s.User.Summary())}
}

func projectResponse(v domain.ProjectView) ProjectResponse {
	return ProjectResponse{
		ID:            v.ID,
		Title:         v.Title,
		Description:   v.Description,
		StartDate:     v.StartDate,
		EndDate:       v.EndDate,
		Status:        string(v.Status),
		AssignedUsers: userResponses(v.Members),
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func mapProjects(items []domain.ProjectView) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, projectResponse(p))
	}
	return out
}

func taskResponse(v domain.TaskView) TaskResponse {
	res := TaskResponse{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		DueDate:     v.DueDate,
		Status:      string(v.Status),
		Priority:    string(v.Priority),
		SubTasks:    make([]SubTaskResponse, 0, len(v.SubTasks)),
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
	for _, s := range v.SubTasks {
		res.SubTasks = append(res.SubTasks, SubTaskResponse{Title: s.Title, Completed: s.Completed})
	}
	if v.Assignee != nil {
		u := userResponse(*v.Assignee)
		u.Role = ""
		res.AssignedTo = &u
	}
	if v.ProjectRef != nil {
		res.Project = &ProjectRefResponse{ID: v.ProjectRef.ID, Title: v.ProjectRef.Title}
	}
	return res
}

func mapTasks(items []domain.TaskView) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}

func activityResponse(v domain.ActivityView) ActivityResponse {
	res := ActivityResponse{
		ID:         v.ID,
		Action:     v.Action,
		TargetType: string(v.TargetType),
		TargetID:   v.TargetID,
		Details:    map[string]any(v.Details),
		Timestamp:  v.Timestamp,
	}
	if res.Details == nil {
		res.Details = map[string]any{}
	}
	if v.Actor != nil {
		u := userResponse(*v.Actor)
		u.Role = ""
		res.User = &u
	}
	return res
}

func mapActivity(items []domain.ActivityView) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(items))
	for _, a := range items {
		out = append(out, activityResponse(a))
	}
	return out
}

func groupResponses(items []domain.GroupCount) []GroupResponse {
	out := make([]GroupResponse, 0, len(items))
	for _, g := range items {
		out = append(out, GroupResponse{Key: g.Key, Count: g.Count})
	}
	return out
}

func dashboardResponse(s domain.DashboardSummary) DashboardResponse {
	return DashboardResponse{
		TotalProjects:    s.TotalProjects,
		ProjectsByStatus: groupResponses(s.ProjectsByStatus),
		TotalTasks:       s.TotalTasks,
		TasksByStatus:    groupResponses(s.TasksByStatus),
		TasksByPriority:  groupResponses(s.TasksByPriority),
	}
}
