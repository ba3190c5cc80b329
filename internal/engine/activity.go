package engine

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"tasktrail/internal/apperr"
	"tasktrail/internal/domain"
	"tasktrail/internal/policy"
)

// ListActivity returns activity entries newest first. Members only see their own.
func (e Engine) ListActivity(ctx context.Context, actor domain.Identity, limit int) ([]domain.ActivityView, error) {
	f := policy.ActivityScope(actor)
	f.Limit = limit
	entries, err := e.Store.ListActivity(ctx, f)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	users, err := e.usersByID(ctx, lo.Map(entries, func(en domain.ActivityLogEntry, _ int) string { return en.User }))
	if err != nil {
		return nil, err
	}
	out := make([]domain.ActivityView, 0, len(entries))
	for _, en := range entries {
		v := domain.ActivityView{ActivityLogEntry: en}
		if en.User != "" {
			u := summaryOf(users, en.User)
			v.Actor = &u
		}
		out = append(out, v)
	}
	return out, nil
}

// Dashboard aggregates project and task counts within the caller's scope.
func (e Engine) Dashboard(ctx context.Context, actor domain.Identity) (domain.DashboardSummary, error) {
	var sum domain.DashboardSummary
	byStatus, err := e.Store.CountProjectsByStatus(ctx, policy.CanListProjects(actor))
	if err != nil {
		return sum, apperr.Storage(err)
	}
	sum.ProjectsByStatus, sum.TotalProjects = groups(byStatus)

	taskScope := policy.DashboardTaskFilter(actor)
	taskStatus, err := e.Store.CountTasksBy(ctx, taskScope, "status")
	if err != nil {
		return sum, apperr.Storage(err)
	}
	sum.TasksByStatus, sum.TotalTasks = groups(taskStatus)
	taskPriority, err := e.Store.CountTasksBy(ctx, taskScope, "priority")
	if err != nil {
		return sum, apperr.Storage(err)
	}
	sum.TasksByPriority, _ = groups(taskPriority)
	return sum, nil
}

func groups(counts map[string]int) ([]domain.GroupCount, int) {
	out := make([]domain.GroupCount, 0, len(counts))
	total := 0
	for k, n := range counts {
		out = append(out, domain.GroupCount{Key: k, Count: n})
		total += n
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, total
}
