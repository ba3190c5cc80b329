package engine

import (
	"context"

	"tasktrail/internal/apperr"
	"tasktrail/internal/audit"
	"tasktrail/internal/changes"
	"tasktrail/internal/domain"
	"tasktrail/internal/policy"
)

const projectNotFound = "Project not found"

// CreateProject validates and stores a new project. Only Admins may create.
func (e Engine) CreateProject(ctx context.Context, actor domain.Identity, in ProjectInput) (domain.ProjectView, error) {
	if !policy.CanWriteProject(actor) {
		return domain.ProjectView{}, apperr.Denied()
	}
	patch, err := in.patch()
	if err != nil {
		return domain.ProjectView{}, err
	}
	if !patch.Title.Set {
		return domain.ProjectView{}, apperr.Invalid("title is required")
	}
	now := e.now()
	p := domain.Project{
		ID:            e.newID(),
		Status:        domain.ProjectActive,
		AssignedUsers: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}.Apply(patch, now)
	if err := e.Store.InsertProject(ctx, p); err != nil {
		return domain.ProjectView{}, storeErr(err, projectNotFound)
	}
	details := domain.Details{"title": p.Title, "status": string(p.Status)}
	if err := e.record(ctx, actor, audit.ActionCreatedProject, domain.TargetProject, p.ID, details); err != nil {
		return domain.ProjectView{}, err
	}
	return e.projectView(ctx, p)
}

// ListProjects returns every project visible to the caller.
func (e Engine) ListProjects(ctx context.Context, actor domain.Identity) ([]domain.ProjectView, error) {
	items, err := e.Store.ListProjects(ctx, policy.CanListProjects(actor))
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return e.projectViews(ctx, items)
}

func (e Engine) GetProject(ctx context.Context, actor domain.Identity, id string) (domain.ProjectView, error) {
	p, err := e.Store.GetProject(ctx, id)
	if err != nil {
		return domain.ProjectView{}, storeErr(err, projectNotFound)
	}
	if !policy.CanReadProject(actor, p) {
		return domain.ProjectView{}, apperr.Denied()
	}
	return e.projectView(ctx, p)
}

// UpdateProject applies the supplied fields and records the field-level diff.
func (e Engine) UpdateProject(ctx context.Context, actor domain.Identity, id string, in ProjectInput) (domain.ProjectView, error) {
	if !policy.CanWriteProject(actor) {
		return domain.ProjectView{}, apperr.Denied()
	}
	patch, err := in.patch()
	if err != nil {
		return domain.ProjectView{}, err
	}
	current, err := e.Store.GetProject(ctx, id)
	if err != nil {
		return domain.ProjectView{}, storeErr(err, projectNotFound)
	}
	diff := changes.Diff(current.Fields(), patch.Supplied(), policy.ProjectUpdatableFields)
	next := current.Apply(patch, e.now())
	if err := e.Store.UpdateProject(ctx, next); err != nil {
		return domain.ProjectView{}, storeErr(err, projectNotFound)
	}
	if err := e.record(ctx, actor, audit.ActionUpdatedProject, domain.TargetProject, next.ID, changes.Details(diff)); err != nil {
		return domain.ProjectView{}, err
	}
	return e.projectView(ctx, next)
}

// DeleteProject removes a project. Its activity entries survive.
func (e Engine) DeleteProject(ctx context.Context, actor domain.Identity, id string) (domain.Project, error) {
	if !policy.CanWriteProject(actor) {
		return domain.Project{}, apperr.Denied()
	}
	deleted, err := e.Store.DeleteProject(ctx, id)
	if err != nil {
		return domain.Project{}, storeErr(err, projectNotFound)
	}
	if err := e.record(ctx, actor, audit.ActionDeletedProject, domain.TargetProject, deleted.ID, domain.Details{"title": deleted.Title}); err != nil {
		return domain.Project{}, err
	}
	return deleted, nil
}

// AssignProjectUsers merges userIDs into the project's members. Existing members are kept.
func (e Engine) AssignProjectUsers(ctx context.Context, actor domain.Identity, id string, userIDs []string) (domain.ProjectView, error) {
	if !policy.CanWriteProject(actor) {
		return domain.ProjectView{}, apperr.Denied()
	}
	if userIDs == nil {
		return domain.ProjectView{}, apperr.Invalid("userIds must be an array")
	}
	ids := cleanIDs(userIDs)
	p, err := e.Store.AddProjectMembers(ctx, id, ids, e.now())
	if err != nil {
		return domain.ProjectView{}, storeErr(err, projectNotFound)
	}
	if err := e.record(ctx, actor, audit.ActionAssignedProject, domain.TargetProject, p.ID, domain.Details{"userIds": append([]string{}, userIDs...)}); err != nil {
		return domain.ProjectView{}, err
	}
	return e.projectView(ctx, p)
}
