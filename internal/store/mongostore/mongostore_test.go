package mongostore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"tasktrail/internal/domain"
	"tasktrail/internal/store"
	"tasktrail/internal/store/mongostore"
)

var created = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func projectBSON(id string, users ...string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "title", Value: "Website"},
		{Key: "status", Value: "Active"},
		{Key: "assignedUsers", Value: bson.A(toAny(users))},
		{Key: "createdAt", Value: created},
		{Key: "updatedAt", Value: created},
	}
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func TestProjects(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		err := s.InsertProject(context.Background(), domain.Project{ID: "p1", Title: "Website", Status: domain.ProjectActive, CreatedAt: created, UpdatedAt: created})
		require.NoError(t, err)
	})

	mt.Run("insert duplicate id", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))
		err := s.InsertProject(context.Background(), domain.Project{ID: "p1"})
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	mt.Run("get", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.projects", mtest.FirstBatch, projectBSON("p1", "u1")))
		p, err := s.GetProject(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, "p1", p.ID)
		assert.Equal(t, domain.ProjectActive, p.Status)
		assert.Equal(t, []string{"u1"}, p.AssignedUsers)
		assert.True(t, created.Equal(p.CreatedAt))
	})

	mt.Run("get missing", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.projects", mtest.FirstBatch))
		_, err := s.GetProject(context.Background(), "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	mt.Run("list", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.projects", mtest.FirstBatch,
			projectBSON("p1"), projectBSON("p2", "u1", "u2")))
		ps, err := s.ListProjects(context.Background(), domain.ProjectFilter{})
		require.NoError(t, err)
		require.Len(t, ps, 2)
		assert.Equal(t, []string{}, ps[0].AssignedUsers)
		assert.Equal(t, []string{"u1", "u2"}, ps[1].AssignedUsers)
	})

	mt.Run("update missing", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		err := s.UpdateProject(context.Background(), domain.Project{ID: "nope"})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	mt.Run("update", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		err := s.UpdateProject(context.Background(), domain.Project{ID: "p1", Title: "Renamed"})
		assert.NoError(t, err)
	})

	mt.Run("add members", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: projectBSON("p1", "u1", "u2")}})
		p, err := s.AddProjectMembers(context.Background(), "p1", []string{"u2"}, created)
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2"}, p.AssignedUsers)
	})

	mt.Run("delete", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: projectBSON("p1")}})
		p, err := s.DeleteProject(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, "Website", p.Title)
	})

	mt.Run("count by status", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.projects", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "Active"}, {Key: "count", Value: 2}},
			bson.D{{Key: "_id", Value: "Completed"}, {Key: "count", Value: 1}}))
		counts, err := s.CountProjectsByStatus(context.Background(), domain.ProjectFilter{Member: "u1"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"Active": 2, "Completed": 1}, counts)
	})
}

func TestTasks(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	task := bson.D{
		{Key: "_id", Value: "t1"},
		{Key: "title", Value: "Write copy"},
		{Key: "status", Value: "Todo"},
		{Key: "priority", Value: "High"},
		{Key: "assignedTo", Value: "u1"},
		{Key: "subTasks", Value: bson.A{bson.D{{Key: "title", Value: "draft"}, {Key: "completed", Value: true}}}},
		{Key: "createdAt", Value: created},
		{Key: "updatedAt", Value: created},
	}

	mt.Run("get", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.tasks", mtest.FirstBatch, task))
		got, err := s.GetTask(context.Background(), "t1")
		require.NoError(t, err)
		assert.Equal(t, domain.PriorityHigh, got.Priority)
		assert.Equal(t, []domain.SubTask{{Title: "draft", Completed: true}}, got.SubTasks)
		assert.Nil(t, got.DueDate)
	})

	mt.Run("list", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.tasks", mtest.FirstBatch, task))
		got, err := s.ListTasks(context.Background(), domain.TaskFilter{AssignedTo: "u1", Search: "copy"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "u1", got[0].AssignedTo)
	})

	mt.Run("set assignee", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: task}})
		got, err := s.SetTaskAssignee(context.Background(), "t1", "u1", created)
		require.NoError(t, err)
		assert.Equal(t, "t1", got.ID)
	})

	mt.Run("count by priority", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.tasks", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "High"}, {Key: "count", Value: 3}}))
		counts, err := s.CountTasksBy(context.Background(), domain.TaskFilter{}, "priority")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"High": 3}, counts)
	})
}

func TestActivityAndUsers(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("append and list", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(t, s.AppendActivity(context.Background(), domain.ActivityLogEntry{
			ID: "a1", User: "u1", Action: "created task", TargetType: domain.TargetTask, TargetID: "t1",
			Details: domain.Details{"title": "Write copy"}, Timestamp: created,
		}))

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.activitylogs", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "a1"},
			{Key: "user", Value: "u1"},
			{Key: "action", Value: "updated task"},
			{Key: "targetType", Value: "Task"},
			{Key: "targetId", Value: "t1"},
			{Key: "details", Value: bson.D{{Key: "status", Value: bson.D{{Key: "from", Value: "todo"}, {Key: "to", Value: "done"}}}}},
			{Key: "timestamp", Value: created},
		}))
		entries, err := s.ListActivity(context.Background(), domain.ActivityFilter{User: "u1", Limit: 10})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.TargetTask, entries[0].TargetType)
		status, ok := entries[0].Details["status"].(bson.M)
		require.True(t, ok)
		assert.Equal(t, "done", status["to"])
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}))
		err := s.InsertUser(context.Background(), domain.User{ID: "u2", Email: "Ada@Example.com"})
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	mt.Run("get by email", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "name", Value: "Ada"},
			{Key: "email", Value: "ada@example.com"},
			{Key: "password", Value: "hash"},
			{Key: "role", Value: "Admin"},
			{Key: "createdAt", Value: created},
			{Key: "updatedAt", Value: created},
		}))
		u, err := s.GetUserByEmail(context.Background(), " ADA@example.com ")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, u.Role)
		assert.Equal(t, "hash", u.PasswordHash)
	})

	mt.Run("get users with no ids", func(mt *mtest.T) {
		s := mongostore.New(mt.DB)
		users, err := s.GetUsers(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, users)
	})
}

func TestTaskQuery(t *testing.T) {
	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	q := mongostore.TaskQuery(domain.TaskFilter{
		AssignedTo: "u1",
		Status:     domain.TaskTodo,
		Priority:   domain.PriorityHigh,
		DueBefore:  &due,
		Search:     "a.b",
	})

	assert.Equal(t, "u1", q["assignedTo"])
	assert.Equal(t, "Todo", q["status"])
	assert.Equal(t, "High", q["priority"])
	assert.Equal(t, bson.M{"$lte": due}, q["dueDate"])
	rx := primitive.Regex{Pattern: `a\.b`, Options: "i"}
	assert.Equal(t, bson.A{bson.M{"title": rx}, bson.M{"description": rx}}, q["$or"])

	assert.Empty(t, mongostore.TaskQuery(domain.TaskFilter{}))
}

func TestTaskSort(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}, mongostore.TaskSort(domain.Sort{}))
	assert.Equal(t, bson.D{{Key: "dueDate", Value: -1}, {Key: "_id", Value: -1}},
		mongostore.TaskSort(domain.Sort{Field: "dueDate", Order: domain.Descending}))
}

func TestGroupPipeline(t *testing.T) {
	p := mongostore.GroupPipeline(mongostore.ProjectQuery(domain.ProjectFilter{Member: "u1"}), "status")
	require.Len(t, p, 2)
	assert.Equal(t, "$match", p[0][0].Key)
	assert.Equal(t, bson.M{"assignedUsers": "u1"}, p[0][0].Value)
	assert.Equal(t, "$group", p[1][0].Key)
}
