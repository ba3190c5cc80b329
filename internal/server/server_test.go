package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"tasktrail/internal/domain"
	"tasktrail/internal/engine"
	"tasktrail/internal/engine/auth"
	"tasktrail/internal/store/memstore"
	tasktrailsdk "tasktrail/sdk/go"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	Admin  domain.User
	close  func()
}

func (s *testServer) Close() { s.close() }

func (s *testServer) client() *tasktrailsdk.Client {
	return tasktrailsdk.New(s.URL)
}

func (s *testServer) adminClient(t *testing.T) *tasktrailsdk.Client {
	t.Helper()
	c := s.client()
	_, err := c.Login(context.Background(), "ada@example.com", "adminpass")
	require.NoError(t, err)
	return c
}

func (s *testServer) memberClient(t *testing.T, name, email string) (*tasktrailsdk.Client, tasktrailsdk.User) {
	t.Helper()
	c := s.client()
	sess, err := c.Register(context.Background(), name, email, "memberpass")
	require.NoError(t, err)
	return c, sess.User
}

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	auth.Cost = bcrypt.MinCost
	e := engine.New(memstore.New(), auth.Tokens{Secret: "test-secret", TTL: time.Hour}, zap.NewNop())
	admin, err := e.AddUser(context.Background(), engine.NewUser{
		Name: "Ada", Email: "ada@example.com", Password: "adminpass", Role: domain.RoleAdmin,
	})
	require.NoError(t, err)
	handler, err := New(Config{Engine: e, BasePath: "/api"})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		Admin:  admin,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
		},
	}
	return ts, ts.Close
}

func apiStatus(t *testing.T, err error) (int, string) {
	t.Helper()
	var apiErr *tasktrailsdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected api error, got %v", err)
	return apiErr.StatusCode, apiErr.Message
}

func TestHealthIsPublic(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()

	_, err := srv.client().Projects(ctx)
	status, msg := apiStatus(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "No token, authorization denied", msg)

	c := srv.client()
	c.BearerToken = "garbage"
	_, err = c.Tasks(ctx, tasktrailsdk.TaskQuery{})
	status, msg = apiStatus(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token is not valid", msg)

	_, err = srv.client().Login(ctx, "ada@example.com", "wrong")
	status, msg = apiStatus(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", msg)
}

func TestRegisterMeAndUsers(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()

	member, user := srv.memberClient(t, "Max", "Max@Example.com")
	assert.Equal(t, "Member", user.Role)
	assert.Equal(t, "max@example.com", user.Email)

	me, err := member.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)

	_, err = srv.client().Register(ctx, "Max Again", "max@example.com", "memberpass")
	status, _ := apiStatus(t, err)
	assert.Equal(t, http.StatusConflict, status)

	_, err = srv.client().Register(ctx, "", "nobody@example.com", "memberpass")
	status, _ = apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	_, err = member.Users(ctx)
	status, msg := apiStatus(t, err)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Access denied", msg)

	users, err := srv.adminClient(t).Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestProjectLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	admin := srv.adminClient(t)
	_, max := srv.memberClient(t, "Max", "max@example.com")
	_, mia := srv.memberClient(t, "Mia", "mia@example.com")

	p, err := admin.CreateProject(ctx, map[string]any{"title": "Website", "startDate": "2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, "Active", p.Status)
	assert.Empty(t, p.AssignedUsers)
	require.NotNil(t, p.StartDate)
	assert.Equal(t, "2024-03-01", p.StartDate.Format("2006-01-02"))

	p, err = admin.AssignProject(ctx, p.ID, []string{max.ID})
	require.NoError(t, err)
	p, err = admin.AssignProject(ctx, p.ID, []string{mia.ID, max.ID})
	require.NoError(t, err)
	require.Len(t, p.AssignedUsers, 2)
	assert.Equal(t, "Max", p.AssignedUsers[0].Name)
	assert.Equal(t, "Mia", p.AssignedUsers[1].Name)

	p, err = admin.UpdateProject(ctx, p.ID, map[string]any{"status": "On Hold"})
	require.NoError(t, err)
	assert.Equal(t, "On Hold", p.Status)

	_, err = admin.UpdateProject(ctx, p.ID, map[string]any{"status": "Paused"})
	status, _ := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	logs, err := admin.ActivityLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 4)
	assert.Equal(t, "updated project", logs[0].Action)
	assert.Equal(t, p.ID, logs[0].TargetID)
	assert.Equal(t, map[string]any{"status": map[string]any{"from": "Active", "to": "On Hold"}}, logs[0].Details)
	require.NotNil(t, logs[0].User)
	assert.Equal(t, "Ada", logs[0].User.Name)

	require.NoError(t, admin.DeleteProject(ctx, p.ID))
	_, err = admin.Project(ctx, p.ID)
	status, msg := apiStatus(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Project not found", msg)

	err = admin.DeleteProject(ctx, p.ID)
	status, _ = apiStatus(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProjectVisibilityForMembers(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	admin := srv.adminClient(t)
	member, max := srv.memberClient(t, "Max", "max@example.com")

	mine, err := admin.CreateProject(ctx, map[string]any{"title": "Mine", "assignedUsers": []string{max.ID}})
	require.NoError(t, err)
	other, err := admin.CreateProject(ctx, map[string]any{"title": "Other"})
	require.NoError(t, err)

	list, err := member.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	_, err = member.Project(ctx, other.ID)
	status, _ := apiStatus(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	_, err = member.CreateProject(ctx, map[string]any{"title": "Nope"})
	status, _ = apiStatus(t, err)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestMemberTaskRules(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	admin := srv.adminClient(t)
	member, max := srv.memberClient(t, "Max", "max@example.com")

	project, err := admin.CreateProject(ctx, map[string]any{"title": "Website"})
	require.NoError(t, err)
	own, err := admin.CreateTask(ctx, map[string]any{
		"title": "Write copy", "assignedTo": max.ID, "project": project.ID, "priority": "High",
	})
	require.NoError(t, err)
	require.NotNil(t, own.AssignedTo)
	assert.Equal(t, "Max", own.AssignedTo.Name)
	require.NotNil(t, own.Project)
	assert.Equal(t, "Website", own.Project.Title)
	assert.Equal(t, "Todo", own.Status)

	other, err := admin.CreateTask(ctx, map[string]any{"title": "Not yours"})
	require.NoError(t, err)

	tasks, err := member.Tasks(ctx, tasktrailsdk.TaskQuery{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, own.ID, tasks[0].ID)

	_, err = member.UpdateTask(ctx, own.ID, map[string]any{"title": "x"})
	status, msg := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Members can only update task status", msg)

	_, err = member.UpdateTask(ctx, own.ID, map[string]any{"status": "Completed", "title": nil})
	status, msg = apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Members can only update task status", msg)

	_, err = member.UpdateTask(ctx, own.ID, map[string]any{"status": "Done"})
	status, _ = apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	updated, err := member.UpdateTask(ctx, own.ID, map[string]any{"status": "Completed"})
	require.NoError(t, err)
	assert.Equal(t, "Completed", updated.Status)
	assert.Equal(t, "Write copy", updated.Title)

	_, err = member.UpdateTask(ctx, other.ID, map[string]any{"status": "Completed"})
	status, _ = apiStatus(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	_, err = member.Task(ctx, other.ID)
	status, _ = apiStatus(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	err = member.DeleteTask(ctx, own.ID)
	status, _ = apiStatus(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	logs, err := member.ActivityLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "updated task", logs[0].Action)
	assert.Equal(t, map[string]any{"status": map[string]any{"from": "Todo", "to": "Completed"}}, logs[0].Details)
}

func TestTaskQueryAndAssign(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	admin := srv.adminClient(t)
	_, max := srv.memberClient(t, "Max", "max@example.com")
	_, mia := srv.memberClient(t, "Mia", "mia@example.com")

	for _, f := range []map[string]any{
		{"title": "Alpha", "priority": "Low", "dueDate": "2024-05-01"},
		{"title": "Bravo", "priority": "High", "description": "fix the LOGIN page", "dueDate": "2024-04-01"},
		{"title": "Charlie", "priority": "High"},
	} {
		_, err := admin.CreateTask(ctx, f)
		require.NoError(t, err)
	}

	high, err := admin.Tasks(ctx, tasktrailsdk.TaskQuery{Priority: "High", SortBy: "title", SortOrder: "desc"})
	require.NoError(t, err)
	require.Len(t, high, 2)
	assert.Equal(t, "Charlie", high[0].Title)
	assert.Equal(t, "Bravo", high[1].Title)

	found, err := admin.Tasks(ctx, tasktrailsdk.TaskQuery{Search: "login"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bravo", found[0].Title)

	due, err := admin.Tasks(ctx, tasktrailsdk.TaskQuery{DueDate: "2024-04-15"})
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "Bravo", due[0].Title)

	_, err = admin.Tasks(ctx, tasktrailsdk.TaskQuery{SortBy: "color"})
	status, _ := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)

	_, err = admin.CreateTask(ctx, map[string]any{"description": "no title"})
	status, msg := apiStatus(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "title is required", msg)

	task := found[0]
	task, err = admin.AssignTask(ctx, task.ID, max.ID)
	require.NoError(t, err)
	task, err = admin.AssignTask(ctx, task.ID, mia.ID)
	require.NoError(t, err)
	require.NotNil(t, task.AssignedTo)
	assert.Equal(t, mia.ID, task.AssignedTo.ID)

	_, err = admin.AssignTask(ctx, "missing", mia.ID)
	status, msg = apiStatus(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Task not found", msg)
}

func TestDashboardScopes(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	admin := srv.adminClient(t)
	member, max := srv.memberClient(t, "Max", "max@example.com")

	_, err := admin.CreateProject(ctx, map[string]any{"title": "A", "assignedUsers": []string{max.ID}})
	require.NoError(t, err)
	_, err = admin.CreateProject(ctx, map[string]any{"title": "B", "status": "Completed"})
	require.NoError(t, err)
	_, err = admin.CreateTask(ctx, map[string]any{"title": "T1", "assignedTo": max.ID})
	require.NoError(t, err)
	_, err = admin.CreateTask(ctx, map[string]any{"title": "T2", "priority": "High"})
	require.NoError(t, err)

	sum, err := admin.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalProjects)
	assert.Equal(t, []tasktrailsdk.Group{{Key: "Active", Count: 1}, {Key: "Completed", Count: 1}}, sum.ProjectsByStatus)
	assert.Equal(t, 2, sum.TotalTasks)
	assert.Equal(t, []tasktrailsdk.Group{{Key: "High", Count: 1}, {Key: "Medium", Count: 1}}, sum.TasksByPriority)

	sum, err = member.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalProjects)
	assert.Equal(t, 1, sum.TotalTasks)
	assert.Equal(t, []tasktrailsdk.Group{{Key: "Todo", Count: 1}}, sum.TasksByStatus)
}

func TestOpenAPIDocument(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, err := http.Get(srv.URL + "/api/openapi.json")
	require.NoError(t, err)
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "bearerAuth")
	assert.Contains(t, string(body), "/api/tasks/{id}/assign")

	res, err = http.Get(srv.URL + "/docs")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestOpenAPIDocumentConcurrentReads(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	const readers = 8
	bodies := make([]string, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := http.Get(srv.URL + "/api/openapi.json")
			if err != nil {
				return
			}
			defer res.Body.Close()
			b, _ := io.ReadAll(res.Body)
			bodies[i] = string(b)
		}(i)
	}
	wg.Wait()

	for _, b := range bodies {
		assert.Contains(t, b, "bearerAuth")
		assert.Equal(t, bodies[0], b)
	}
}

func TestRequestLoggerCapturesStatus(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := requestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "HTTP request", entry.Message)
	assert.Equal(t, int64(http.StatusTeapot), entry.ContextMap()["status"])
	assert.Equal(t, "/api/tasks", entry.ContextMap()["path"])
}
