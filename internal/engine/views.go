package engine

import (
	"context"
	"errors"

	"github.com/samber/lo"

	"tasktrail/internal/apperr"
	"tasktrail/internal/domain"
	"tasktrail/internal/store"
)

// usersByID resolves ids into summaries. Unknown ids are omitted from the map.
func (e Engine) usersByID(ctx context.Context, ids []string) (map[string]domain.UserSummary, error) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return map[string]domain.UserSummary{}, nil
	}
	users, err := e.Store.GetUsers(ctx, ids)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return lo.SliceToMap(users, func(u domain.User) (string, domain.UserSummary) {
		return u.ID, u.Summary()
	}), nil
}

func summaryOf(users map[string]domain.UserSummary, id string) domain.UserSummary {
	if u, ok := users[id]; ok {
		return u
	}
	return domain.UserSummary{ID: id}
}

func (e Engine) projectView(ctx context.Context, p domain.Project) (domain.ProjectView, error) {
	views, err := e.projectViews(ctx, []domain.Project{p})
	if err != nil {
		return domain.ProjectView{}, err
	}
	return views[0], nil
}

func (e Engine) projectViews(ctx context.Context, items []domain.Project) ([]domain.ProjectView, error) {
	users, err := e.usersByID(ctx, lo.FlatMap(items, func(p domain.Project, _ int) []string { return p.AssignedUsers }))
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProjectView, 0, len(items))
	for _, p := range items {
		members := make([]domain.UserSummary, 0, len(p.AssignedUsers))
		for _, id := range p.AssignedUsers {
			members = append(members, summaryOf(users, id))
		}
		out = append(out, domain.ProjectView{Project: p, Members: members})
	}
	return out, nil
}

func (e Engine) taskView(ctx context.Context, t domain.Task) (domain.TaskView, error) {
	views, err := e.taskViews(ctx, []domain.Task{t})
	if err != nil {
		return domain.TaskView{}, err
	}
	return views[0], nil
}

func (e Engine) taskViews(ctx context.Context, items []domain.Task) ([]domain.TaskView, error) {
	users, err := e.usersByID(ctx, lo.Map(items, func(t domain.Task, _ int) string { return t.AssignedTo }))
	if err != nil {
		return nil, err
	}
	projects := map[string]domain.ProjectRef{}
	for _, id := range lo.Uniq(lo.Compact(lo.Map(items, func(t domain.Task, _ int) string { return t.Project }))) {
		p, err := e.Store.GetProject(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			projects[id] = domain.ProjectRef{ID: id}
		case err != nil:
			return nil, apperr.Storage(err)
		default:
			projects[id] = domain.ProjectRef{ID: p.ID, Title: p.Title}
		}
	}
	out := make([]domain.TaskView, 0, len(items))
	for _, t := range items {
		v := domain.TaskView{Task: t}
		if t.AssignedTo != "" {
			u := summaryOf(users, t.AssignedTo)
			v.Assignee = &u
		}
		if t.Project != "" {
			ref := projects[t.Project]
			v.ProjectRef = &ref
		}
		out = append(out, v)
	}
	return out, nil
}
