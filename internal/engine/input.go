package engine

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"tasktrail/internal/apperr"
	"tasktrail/internal/domain"
)

// ProjectInput carries the raw fields of a project create or update request.
// A nil field was not supplied.
type ProjectInput struct {
	Title         *string
	Description   *string
	StartDate     *string
	EndDate       *string
	Status        *string
	AssignedUsers *[]string
}

// patch validates the supplied fields and maps them onto the project allow-list.
func (in ProjectInput) patch() (domain.ProjectPatch, error) {
	var p domain.ProjectPatch
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return p, apperr.Invalid("title is required")
		}
		p.Title = domain.Some(title)
	}
	if in.Description != nil {
		p.Description = domain.Some(*in.Description)
	}
	if in.StartDate != nil {
		d, err := optionalDate(*in.StartDate, "startDate")
		if err != nil {
			return p, err
		}
		p.StartDate = domain.Some(d)
	}
	if in.EndDate != nil {
		d, err := optionalDate(*in.EndDate, "endDate")
		if err != nil {
			return p, err
		}
		p.EndDate = domain.Some(d)
	}
	if in.Status != nil {
		s, err := domain.ParseProjectStatus(*in.Status)
		if err != nil {
			return p, apperr.Invalid(err.Error())
		}
		p.Status = domain.Some(s)
	}
	if in.AssignedUsers != nil {
		p.AssignedUsers = domain.Some(cleanIDs(*in.AssignedUsers))
	}
	return p, nil
}

// TaskInput carries the raw fields of a task create or update request.
type TaskInput struct {
	Title       *string
	Description *string
	DueDate     *string
	Status      *string
	Priority    *string
	AssignedTo  *string
	Project     *string
	SubTasks    *[]domain.SubTask
}

// fields lists the wire names of every supplied field.
func (in TaskInput) fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(in.Title != nil, "title")
	add(in.Description != nil, "description")
	add(in.DueDate != nil, "dueDate")
	add(in.Status != nil, "status")
	add(in.Priority != nil, "priority")
	add(in.AssignedTo != nil, "assignedTo")
	add(in.Project != nil, "project")
	add(in.SubTasks != nil, "subTasks")
	return out
}

func (in TaskInput) patch() (domain.TaskPatch, error) {
	var p domain.TaskPatch
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return p, apperr.Invalid("title is required")
		}
		p.Title = domain.Some(title)
	}
	if in.Description != nil {
		p.Description = domain.Some(*in.Description)
	}
	if in.DueDate != nil {
		d, err := optionalDate(*in.DueDate, "dueDate")
		if err != nil {
			return p, err
		}
		p.DueDate = domain.Some(d)
	}
	if in.Status != nil {
		s, err := domain.ParseTaskStatus(*in.Status)
		if err != nil {
			return p, apperr.Invalid(err.Error())
		}
		p.Status = domain.Some(s)
	}
	if in.Priority != nil {
		pr, err := domain.ParseTaskPriority(*in.Priority)
		if err != nil {
			return p, apperr.Invalid(err.Error())
		}
		p.Priority = domain.Some(pr)
	}
	if in.AssignedTo != nil {
		p.AssignedTo = domain.Some(strings.TrimSpace(*in.AssignedTo))
	}
	if in.Project != nil {
		p.Project = domain.Some(strings.TrimSpace(*in.Project))
	}
	if in.SubTasks != nil {
		subs := make([]domain.SubTask, 0, len(*in.SubTasks))
		for i, st := range *in.SubTasks {
			title := strings.TrimSpace(st.Title)
			if title == "" {
				return p, apperr.Invalidf("subTasks[%d].title is required", i)
			}
			subs = append(subs, domain.SubTask{Title: title, Completed: st.Completed})
		}
		p.SubTasks = domain.Some(subs)
	}
	return p, nil
}

// optionalDate parses a date; the empty string clears the value.
func optionalDate(v, field string) (*time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(v)
	if err != nil {
		return nil, apperr.Invalidf("%s: %v", field, err)
	}
	return &d, nil
}

func cleanIDs(ids []string) []string {
	out := lo.Uniq(lo.Compact(lo.Map(ids, func(id string, _ int) string { return strings.TrimSpace(id) })))
	if out == nil {
		return []string{}
	}
	return out
}
