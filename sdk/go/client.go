package tasktrailsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal TaskTrail HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/api",
		Timeout:  10 * time.Second,
	}
}

// User is the public projection of an account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session is returned by Register and Login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Project struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	Status        string     `json:"status"`
	AssignedUsers []User     `json:"assignedUsers"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type SubTask struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type ProjectRef struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

type Task struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	DueDate     *time.Time  `json:"dueDate,omitempty"`
	Status      string      `json:"status"`
	Priority    string      `json:"priority"`
	AssignedTo  *User       `json:"assignedTo,omitempty"`
	Project     *ProjectRef `json:"project,omitempty"`
	SubTasks    []SubTask   `json:"subTasks"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// ActivityLog is one audit entry. Update entries carry {field: {from, to}} details.
type ActivityLog struct {
	ID         string         `json:"id"`
	User       *User          `json:"user,omitempty"`
	Action     string         `json:"action"`
	TargetType string         `json:"targetType"`
	TargetID   string         `json:"targetId"`
	Details    map[string]any `json:"details"`
	Timestamp  time.Time      `json:"timestamp"`
}

type Group struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type DashboardSummary struct {
	TotalProjects    int     `json:"totalProjects"`
	ProjectsByStatus []Group `json:"projectsByStatus"`
	TotalTasks       int     `json:"totalTasks"`
	TasksByStatus    []Group `json:"tasksByStatus"`
	TasksByPriority  []Group `json:"tasksByPriority"`
}

// TaskQuery holds the list filters for Tasks. Zero values are omitted.
type TaskQuery struct {
	Status    string
	Priority  string
	DueDate   string
	Search    string
	SortBy    string
	SortOrder string
}

func (q TaskQuery) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("status", q.Status)
	set("priority", q.Priority)
	set("dueDate", q.DueDate)
	set("search", q.Search)
	set("sortBy", q.SortBy)
	set("sortOrder", q.SortOrder)
	return v
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Register creates a member account and stores the returned token on the client.
func (c *Client) Register(ctx context.Context, name, email, password string) (Session, error) {
	var resp Session
	body := map[string]any{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "auth/register", body, &resp); err != nil {
		return resp, err
	}
	c.BearerToken = resp.Token
	return resp, nil
}

// Login signs in and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp Session
	body := map[string]any{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return resp, err
	}
	c.BearerToken = resp.Token
	return resp, nil
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "auth/me", nil, &resp)
	return resp.User, err
}

func (c *Client) Users(ctx context.Context) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, "auth/users", nil, &resp)
	return resp, err
}

// CreateProject posts fields as given; keys use the API's camelCase names.
func (c *Client) CreateProject(ctx context.Context, fields map[string]any) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", fields, &resp)
	return resp, err
}

func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "projects", nil, &resp)
	return resp, err
}

func (c *Client) Project(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "projects/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// UpdateProject sends only the supplied fields.
func (c *Client) UpdateProject(ctx context.Context, id string, fields map[string]any) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPut, "projects/"+url.PathEscape(id), fields, &resp)
	return resp, err
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "projects/"+url.PathEscape(id), nil, nil)
}

// AssignProject adds userIDs to the project's members.
func (c *Client) AssignProject(ctx context.Context, id string, userIDs []string) (Project, error) {
	if userIDs == nil {
		userIDs = []string{}
	}
	var resp Project
	endpoint := fmt.Sprintf("projects/%s/assign", url.PathEscape(id))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"userIds": userIDs}, &resp)
	return resp, err
}

func (c *Client) CreateTask(ctx context.Context, fields map[string]any) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", fields, &resp)
	return resp, err
}

func (c *Client) Tasks(ctx context.Context, q TaskQuery) ([]Task, error) {
	endpoint := "tasks"
	if v := q.values(); len(v) > 0 {
		endpoint += "?" + v.Encode()
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) Task(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) UpdateTask(ctx context.Context, id string, fields map[string]any) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPut, "tasks/"+url.PathEscape(id), fields, &resp)
	return resp, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(id), nil, nil)
}

// AssignTask replaces the task's assignee.
func (c *Client) AssignTask(ctx context.Context, id, userID string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s/assign", url.PathEscape(id))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"userId": userID}, &resp)
	return resp, err
}

// ActivityLogs returns entries newest first; limit 0 returns all.
func (c *Client) ActivityLogs(ctx context.Context, limit int) ([]ActivityLog, error) {
	endpoint := "activity-logs"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []ActivityLog
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) Dashboard(ctx context.Context) (DashboardSummary, error) {
	var resp DashboardSummary
	err := c.do(ctx, http.MethodGet, "dashboard/summary", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Message = envelope.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
