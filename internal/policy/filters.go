package policy

import (
	"strings"

	"github.com/samber/lo"

	"tasktrail/internal/apperr"
	"tasktrail/internal/domain"
)

// DefaultTaskSort is used when no sortBy is supplied.
var DefaultTaskSort = domain.Sort{Field: "createdAt", Order: domain.Ascending}

// CanListTasks builds the storage filter for a task listing from the caller and the raw query.
func CanListTasks(id domain.Identity, q domain.TaskQuery) (domain.TaskFilter, error) {
	var f domain.TaskFilter
	if !id.IsAdmin() {
		f.AssignedTo = id.ID
	}
	if q.Status != "" {
		s, err := domain.ParseTaskStatus(q.Status)
		if err != nil {
			return domain.TaskFilter{}, apperr.Invalid(err.Error())
		}
		f.Status = s
	}
	if q.Priority != "" {
		p, err := domain.ParseTaskPriority(q.Priority)
		if err != nil {
			return domain.TaskFilter{}, apperr.Invalid(err.Error())
		}
		f.Priority = p
	}
	if q.DueDate != "" {
		due, err := domain.ParseDate(q.DueDate)
		if err != nil {
			return domain.TaskFilter{}, apperr.Invalid(err.Error())
		}
		f.DueBefore = &due
	}
	f.Search = strings.TrimSpace(q.Search)
	sort, err := taskSort(q.SortBy, q.SortOrder)
	if err != nil {
		return domain.TaskFilter{}, err
	}
	f.Sort = sort
	return f, nil
}

func taskSort(sortBy, sortOrder string) (domain.Sort, error) {
	order := domain.Ascending
	if sortOrder == "desc" {
		order = domain.Descending
	}
	if sortBy == "" {
		return domain.Sort{Field: DefaultTaskSort.Field, Order: order}, nil
	}
	if !lo.Contains(domain.SortableTaskFields, sortBy) {
		return domain.Sort{}, apperr.Invalidf("unsupported sortBy %q", sortBy)
	}
	return domain.Sort{Field: sortBy, Order: order}, nil
}

// DashboardTaskFilter is the task scope used for aggregate counts.
func DashboardTaskFilter(id domain.Identity) domain.TaskFilter {
	if id.IsAdmin() {
		return domain.TaskFilter{Sort: DefaultTaskSort}
	}
	return domain.TaskFilter{AssignedTo: id.ID, Sort: DefaultTaskSort}
}
