package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktrail/internal/apperr"
	"tasktrail/internal/domain"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.e.Register(ctx, "Zoe", "Zoe@Example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, sess.User.Role)
	assert.Equal(t, "zoe@example.com", sess.User.Email)
	assert.NotEmpty(t, sess.Token)

	id, err := f.e.Authenticate(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{ID: sess.User.ID, Role: domain.RoleMember}, id)

	login, err := f.e.Login(ctx, "zoe@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, login.User.ID)

	_, err = f.e.Login(ctx, "zoe@example.com", "wrong")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	_, err = f.e.Login(ctx, "nobody@example.com", "hunter22")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = f.e.Register(ctx, "Zoe", "zoe@example.com", "hunter22")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.e.Authenticate("garbage")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, tc := range []struct{ name, email, password string }{
		{"", "a@b.c", "secret1"},
		{"A", "not-an-email", "secret1"},
		{"A", "a@b.c", "123"},
	} {
		_, err := f.e.Register(ctx, tc.name, tc.email, tc.password)
		assert.True(t, apperr.Is(err, apperr.KindInvalid), "%+v", tc)
	}
	_, err := f.e.AddUser(ctx, NewUser{Name: "A", Email: "a@b.c", Password: "secret1", Role: "Owner"})
	assert.True(t, apperr.Is(err, apperr.KindInvalid))
}

func TestListUsersAndMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.e.ListUsers(ctx, member)
	assert.True(t, apperr.Is(err, apperr.KindDenied))

	users, err := f.e.ListUsers(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	me, err := f.e.Me(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, "Max", me.Name)

	_, err = f.e.Me(ctx, domain.Identity{ID: "ghost", Role: domain.RoleMember})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestActivityScopeAndDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.e.CreateProject(ctx, admin, ProjectInput{Title: str("P"), AssignedUsers: &[]string{member.ID}})
	require.NoError(t, err)
	_, err = f.e.CreateProject(ctx, admin, ProjectInput{Title: str("Q"), Status: str("Completed")})
	require.NoError(t, err)
	task := f.seedTask(t, TaskInput{Title: str("T1"), AssignedTo: str(member.ID), Priority: str("High"), Project: str(p.ID)})
	f.seedTask(t, TaskInput{Title: str("T2")})
	_, err = f.e.UpdateTask(ctx, member, task.ID, TaskInput{Status: str("Completed")})
	require.NoError(t, err)

	mine, err := f.e.ListActivity(ctx, member, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Actor)
	assert.Equal(t, "Max", mine[0].Actor.Name)

	all, err := f.e.ListActivity(ctx, admin, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, "updated task", all[0].Action)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Timestamp.After(all[i-1].Timestamp))
	}

	sum, err := f.e.Dashboard(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalProjects)
	assert.Equal(t, []domain.GroupCount{{Key: "Active", Count: 1}, {Key: "Completed", Count: 1}}, sum.ProjectsByStatus)
	assert.Equal(t, 2, sum.TotalTasks)
	assert.Equal(t, []domain.GroupCount{{Key: "Completed", Count: 1}, {Key: "Todo", Count: 1}}, sum.TasksByStatus)
	assert.Equal(t, []domain.GroupCount{{Key: "High", Count: 1}, {Key: "Medium", Count: 1}}, sum.TasksByPriority)

	scoped, err := f.e.Dashboard(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, 1, scoped.TotalProjects)
	assert.Equal(t, 1, scoped.TotalTasks)
	assert.Equal(t, []domain.GroupCount{{Key: "Completed", Count: 1}}, scoped.TasksByStatus)
}
