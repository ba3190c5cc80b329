package engine

import (
	"context"
	"strings"

	"tasktrail/internal/apperr"
	"tasktrail/internal/audit"
	"tasktrail/internal/changes"
	"tasktrail/internal/domain"
	"tasktrail/internal/policy"
)

const taskNotFound = "Task not found"

func (e Engine) CreateTask(ctx context.Context, actor domain.Identity, in TaskInput) (domain.TaskView, error) {
	if !policy.CanWriteTask(actor) {
		return domain.TaskView{}, apperr.Denied()
	}
	patch, err := in.patch()
	if err != nil {
		return domain.TaskView{}, err
	}
	if !patch.Title.Set {
		return domain.TaskView{}, apperr.Invalid("title is required")
	}
	now := e.now()
	t := domain.Task{
		ID:        e.newID(),
		Status:    domain.TaskTodo,
		Priority:  domain.PriorityMedium,
		SubTasks:  []domain.SubTask{},
		CreatedAt: now,
		UpdatedAt: now,
	}.Apply(patch, now)
	if err := e.Store.InsertTask(ctx, t); err != nil {
		return domain.TaskView{}, storeErr(err, taskNotFound)
	}
	details := domain.Details{"title": t.Title, "project": t.Project}
	if err := e.record(ctx, actor, audit.ActionCreatedTask, domain.TargetTask, t.ID, details); err != nil {
		return domain.TaskView{}, err
	}
	return e.taskView(ctx, t)
}

// ListTasks returns the caller's visible tasks filtered and sorted by q.
func (e Engine) ListTasks(ctx context.Context, actor domain.Identity, q domain.TaskQuery) ([]domain.TaskView, error) {
	f, err := policy.CanListTasks(actor, q)
	if err != nil {
		return nil, err
	}
	items, err := e.Store.ListTasks(ctx, f)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return e.taskViews(ctx, items)
}

func (e Engine) GetTask(ctx context.Context, actor domain.Identity, id string) (domain.TaskView, error) {
	t, err := e.Store.GetTask(ctx, id)
	if err != nil {
		return domain.TaskView{}, storeErr(err, taskNotFound)
	}
	if !policy.CanReadTask(actor, t) {
		return domain.TaskView{}, apperr.Denied()
	}
	return e.taskView(ctx, t)
}

// UpdateTask applies an update within the caller's field policy.
// Admins may change any updatable field; the assigned Member may only change status.
func (e Engine) UpdateTask(ctx context.Context, actor domain.Identity, id string, in TaskInput) (domain.TaskView, error) {
	current, err := e.Store.GetTask(ctx, id)
	if err != nil {
		return domain.TaskView{}, storeErr(err, taskNotFound)
	}
	pol, err := policy.ResolveTaskUpdatePolicy(actor, current)
	if err != nil {
		return domain.TaskView{}, err
	}
	if !pol.Allows(in.fields()) {
		return domain.TaskView{}, apperr.Invalid(policy.MemberStatusOnlyMessage)
	}
	if pol.StatusOnly() {
		if in.Status == nil {
			return domain.TaskView{}, apperr.Invalid(policy.MemberStatusOnlyMessage)
		}
		if _, err := domain.ParseTaskStatus(*in.Status); err != nil {
			return domain.TaskView{}, apperr.Invalid(policy.MemberStatusOnlyMessage)
		}
	}
	patch, err := in.patch()
	if err != nil {
		return domain.TaskView{}, err
	}
	diff := changes.Diff(current.Fields(), patch.Supplied(), pol.AllowedFields)
	next := current.Apply(patch, e.now())
	if err := e.Store.UpdateTask(ctx, next); err != nil {
		return domain.TaskView{}, storeErr(err, taskNotFound)
	}
	if err := e.record(ctx, actor, audit.ActionUpdatedTask, domain.TargetTask, next.ID, changes.Details(diff)); err != nil {
		return domain.TaskView{}, err
	}
	return e.taskView(ctx, next)
}

func (e Engine) DeleteTask(ctx context.Context, actor domain.Identity, id string) (domain.Task, error) {
	if !policy.CanWriteTask(actor) {
		return domain.Task{}, apperr.Denied()
	}
	deleted, err := e.Store.DeleteTask(ctx, id)
	if err != nil {
		return domain.Task{}, storeErr(err, taskNotFound)
	}
	if err := e.record(ctx, actor, audit.ActionDeletedTask, domain.TargetTask, deleted.ID, domain.Details{"title": deleted.Title}); err != nil {
		return domain.Task{}, err
	}
	return deleted, nil
}

// AssignTask replaces the task's single assignee.
func (e Engine) AssignTask(ctx context.Context, actor domain.Identity, id, userID string) (domain.TaskView, error) {
	if !policy.CanWriteTask(actor) {
		return domain.TaskView{}, apperr.Denied()
	}
	raw := userID
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.TaskView{}, apperr.Invalid("userId is required")
	}
	t, err := e.Store.SetTaskAssignee(ctx, id, userID, e.now())
	if err != nil {
		return domain.TaskView{}, storeErr(err, taskNotFound)
	}
	if err := e.record(ctx, actor, audit.ActionAssignedTask, domain.TargetTask, t.ID, domain.Details{"userId": raw}); err != nil {
		return domain.TaskView{}, err
	}
	return e.taskView(ctx, t)
}
