package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktrail/internal/apperr"
	"tasktrail/internal/changes"
	"tasktrail/internal/domain"
)

func (f *fixture) seedTask(t *testing.T, in TaskInput) domain.TaskView {
	t.Helper()
	view, err := f.e.CreateTask(context.Background(), admin, in)
	require.NoError(t, err)
	return view
}

func TestCreateTaskDefaultsAndPopulation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.e.CreateProject(ctx, admin, ProjectInput{Title: str("Launch")})
	require.NoError(t, err)

	view := f.seedTask(t, TaskInput{
		Title:      str("Write copy"),
		AssignedTo: str(member.ID),
		Project:    str(p.ID),
		SubTasks:   &[]domain.SubTask{{Title: "draft"}},
	})
	assert.Equal(t, domain.TaskTodo, view.Status)
	assert.Equal(t, domain.PriorityMedium, view.Priority)
	assert.Equal(t, []domain.SubTask{{Title: "draft"}}, view.SubTasks)
	require.NotNil(t, view.Assignee)
	assert.Equal(t, "Max", view.Assignee.Name)
	require.NotNil(t, view.ProjectRef)
	assert.Equal(t, domain.ProjectRef{ID: p.ID, Title: "Launch"}, *view.ProjectRef)

	entries := f.activity(t)
	assert.Equal(t, "created task", entries[0].Action)
	assert.Equal(t, domain.Details{"title": "Write copy", "project": p.ID}, entries[0].Details)
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.e.CreateTask(ctx, member, TaskInput{Title: str("x")})
	assert.True(t, apperr.Is(err, apperr.KindDenied))
	_, err = f.e.CreateTask(ctx, admin, TaskInput{Title: str("  ")})
	assert.True(t, apperr.Is(err, apperr.KindInvalid))
	_, err = f.e.CreateTask(ctx, admin, TaskInput{Title: str("x"), Priority: str("Urgent")})
	assert.True(t, apperr.Is(err, apperr.KindInvalid))
	_, err = f.e.CreateTask(ctx, admin, TaskInput{Title: str("x"), SubTasks: &[]domain.SubTask{{Title: ""}}})
	assert.True(t, apperr.Is(err, apperr.KindInvalid))
}

func TestMemberTaskScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.seedTask(t, TaskInput{Title: str("Mine"), AssignedTo: str(member.ID)})
	theirs := f.seedTask(t, TaskInput{Title: str("Theirs"), AssignedTo: str(other.ID)})
	f.seedTask(t, TaskInput{Title: str("Nobody's")})

	list, err := f.e.ListTasks(ctx, member, domain.TaskQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	for _, task := range list {
		assert.Equal(t, member.ID, task.AssignedTo)
	}

	all, err := f.e.ListTasks(ctx, admin, domain.TaskQuery{SortBy: "title", SortOrder: "desc"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Theirs", all[0].Title)

	_, err = f.e.GetTask(ctx, member, mine.ID)
	require.NoError(t, err)
	_, err = f.e.GetTask(ctx, member, theirs.ID)
	assert.True(t, apperr.Is(err, apperr.KindDenied))
	_, err = f.e.GetTask(ctx, member, "missing")
	assert.EqualError(t, err, "Task not found")

	_, err = f.e.ListTasks(ctx, member, domain.TaskQuery{SortBy: "secret"})
	assert.True(t, apperr.Is(err, apperr.KindInvalid))
}

func TestMemberUpdatesOnlyStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.seedTask(t, TaskInput{Title: str("Mine"), AssignedTo: str(member.ID)})
	before := len(f.activity(t))

	_, err := f.e.UpdateTask(ctx, member, task.ID, TaskInput{Title: str("x")})
	assert.True(t, apperr.Is(err, apperr.KindInvalid))
	assert.EqualError(t, err, "Members can only update task status")

	_, err = f.e.UpdateTask(ctx, member, task.ID, TaskInput{Status: str("Done")})
	assert.EqualError(t, err, "Members can only update task status")

	_, err = f.e.UpdateTask(ctx, member, task.ID, TaskInput{Status: str("Completed"), Priority: str("High")})
	assert.EqualError(t, err, "Members can only update task status")

	_, err = f.e.UpdateTask(ctx, member, task.ID, TaskInput{})
	assert.True(t, apperr.Is(err, apperr.KindInvalid))

	stored, err := f.store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", stored.Title)
	assert.Len(t, f.activity(t), before)

	updated, err := f.e.UpdateTask(ctx, member, task.ID, TaskInput{Status: str("In Progress")})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskInProgress, updated.Status)
	entries := f.activity(t)
	assert.Equal(t, member.ID, entries[0].User)
	assert.Equal(t, domain.Details{"status": changes.FieldChange{From: "Todo", To: "In Progress"}}, entries[0].Details)
}

func TestNonAssigneeMemberIsDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.seedTask(t, TaskInput{Title: str("Mine"), AssignedTo: str(member.ID)})

	_, err := f.e.UpdateTask(ctx, other, task.ID, TaskInput{Status: str("Completed")})
	assert.True(t, apperr.Is(err, apperr.KindDenied))
	_, err = f.e.UpdateTask(ctx, other, "missing", TaskInput{Status: str("Completed")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAdminTaskUpdateDiff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.seedTask(t, TaskInput{Title: str("T"), DueDate: str("2024-05-01"), AssignedTo: str(member.ID)})

	updated, err := f.e.UpdateTask(ctx, admin, task.ID, TaskInput{
		Title:      str("T"),
		Priority:   str("High"),
		DueDate:    str(""),
		AssignedTo: str(member.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityHigh, updated.Priority)
	assert.Nil(t, updated.DueDate)

	entries := f.activity(t)
	assert.Equal(t, "updated task", entries[0].Action)
	assert.Equal(t, domain.Details{
		"priority": changes.FieldChange{From: "Medium", To: "High"},
		"dueDate":  changes.FieldChange{From: "2024-05-01T00:00:00Z", To: nil},
	}, entries[0].Details)
}

func TestAssignTaskReplaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.seedTask(t, TaskInput{Title: str("T")})

	_, err := f.e.AssignTask(ctx, admin, task.ID, member.ID)
	require.NoError(t, err)
	view, err := f.e.AssignTask(ctx, admin, task.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, view.AssignedTo)
	require.NotNil(t, view.Assignee)
	assert.Equal(t, "Mia", view.Assignee.Name)

	entries := f.activity(t)
	assert.Equal(t, "assigned user to task", entries[0].Action)
	assert.Equal(t, domain.Details{"userId": other.ID}, entries[0].Details)

	_, err = f.e.AssignTask(ctx, admin, task.ID, " "+member.ID+" ")
	require.NoError(t, err)
	assert.Equal(t, domain.Details{"userId": " " + member.ID + " "}, f.activity(t)[0].Details)

	_, err = f.e.AssignTask(ctx, admin, task.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalid))
	_, err = f.e.AssignTask(ctx, member, task.ID, member.ID)
	assert.True(t, apperr.Is(err, apperr.KindDenied))
	_, err = f.e.AssignTask(ctx, admin, "missing", member.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.seedTask(t, TaskInput{Title: str("Gone")})

	_, err := f.e.DeleteTask(ctx, member, task.ID)
	assert.True(t, apperr.Is(err, apperr.KindDenied))
	_, err = f.e.DeleteTask(ctx, admin, task.ID)
	require.NoError(t, err)
	_, err = f.e.DeleteTask(ctx, admin, task.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	entries := f.activity(t)
	assert.Equal(t, "deleted task", entries[0].Action)
	assert.Equal(t, task.ID, entries[0].TargetID)
	assert.Equal(t, domain.Details{"title": "Gone"}, entries[0].Details)
}

func TestEveryMutationLogsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	count := func() int { return len(f.activity(t)) }

	p, err := f.e.CreateProject(ctx, admin, ProjectInput{Title: str("P")})
	require.NoError(t, err)
	require.Equal(t, 1, count())
	_, err = f.e.UpdateProject(ctx, admin, p.ID, ProjectInput{Description: str("d")})
	require.NoError(t, err)
	require.Equal(t, 2, count())
	_, err = f.e.AssignProjectUsers(ctx, admin, p.ID, []string{member.ID})
	require.NoError(t, err)
	require.Equal(t, 3, count())
	task := f.seedTask(t, TaskInput{Title: str("T"), Project: str(p.ID)})
	require.Equal(t, 4, count())
	_, err = f.e.AssignTask(ctx, admin, task.ID, member.ID)
	require.NoError(t, err)
	require.Equal(t, 5, count())
	_, err = f.e.UpdateTask(ctx, member, task.ID, TaskInput{Status: str("Completed")})
	require.NoError(t, err)
	require.Equal(t, 6, count())
	_, err = f.e.DeleteTask(ctx, admin, task.ID)
	require.NoError(t, err)
	require.Equal(t, 7, count())
	_, err = f.e.DeleteProject(ctx, admin, p.ID)
	require.NoError(t, err)
	require.Equal(t, 8, count())

	actions := []string{}
	for _, e := range f.activity(t) {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{
		"deleted project", "deleted task", "updated task", "assigned user to task",
		"created task", "assigned users to project", "updated project", "created project",
	}, actions)
}
